package fieldbus

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-basyx/titan-aas/internal/common"
	"github.com/eclipse-basyx/titan-aas/internal/events"
)

type fakeFieldClient struct {
	mu      sync.Mutex
	values  map[string]float64
	readErr error
	writes  []struct {
		Node string
		Raw  float64
	}
}

func newFakeFieldClient() *fakeFieldClient {
	return &fakeFieldClient{values: map[string]float64{}}
}

func (f *fakeFieldClient) set(node string, v float64) {
	f.mu.Lock()
	f.values[node] = v
	f.mu.Unlock()
}

func (f *fakeFieldClient) Read(_ context.Context, node string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return 0, f.readErr
	}
	return f.values[node], nil
}

func (f *fakeFieldClient) Write(_ context.Context, node string, raw float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, struct {
		Node string
		Raw  float64
	}{node, raw})
	return nil
}

type recordingWriter struct {
	mu      sync.Mutex
	updates []string
}

func (w *recordingWriter) UpdateElementValue(_ context.Context, submodelID, idShortPath string, value json.RawMessage) error {
	w.mu.Lock()
	w.updates = append(w.updates, submodelID+"|"+idShortPath+"|"+string(value))
	w.mu.Unlock()
	return nil
}

func (w *recordingWriter) snapshot() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.updates...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func tempMapping() common.FieldbusMapping {
	return common.FieldbusMapping{
		SubmodelID:     "urn:x:sm:plant",
		IDShortPath:    "Temperature",
		NodeOrRegister: "ns=2;s=Temp",
		DataType:       "double",
		ScaleFactor:    0.5,
		Offset:         -40,
		Direction:      DirectionBoth,
		IntervalMs:     10,
		DebounceCount:  2,
	}
}

func TestPollerCommitsDebouncedChange(t *testing.T) {
	t.Parallel()

	client := newFakeFieldClient()
	client.set("ns=2;s=Temp", 652) // 652*0.5-40 = 286
	writer := &recordingWriter{}

	p := NewPoller(client, writer, []common.FieldbusMapping{tempMapping()})
	p.Start()
	defer p.Stop()

	waitFor(t, func() bool { return len(writer.snapshot()) >= 1 })
	require.Equal(t, `urn:x:sm:plant|Temperature|"286"`, writer.snapshot()[0])

	// a changed reading needs two consecutive confirmations, then commits once
	client.set("ns=2;s=Temp", 700) // 310
	waitFor(t, func() bool { return len(writer.snapshot()) >= 2 })
	require.Equal(t, `urn:x:sm:plant|Temperature|"310"`, writer.snapshot()[1])

	// a stable value does not re-commit
	time.Sleep(100 * time.Millisecond)
	require.Len(t, writer.snapshot(), 2)
}

func TestPollerSurvivesReadErrors(t *testing.T) {
	t.Parallel()

	client := newFakeFieldClient()
	client.set("ns=2;s=Temp", 652)
	writer := &recordingWriter{}

	p := NewPoller(client, writer, []common.FieldbusMapping{tempMapping()})
	p.Start()
	defer p.Stop()

	waitFor(t, func() bool { return len(writer.snapshot()) >= 1 })

	client.mu.Lock()
	client.readErr = context.DeadlineExceeded
	client.mu.Unlock()
	time.Sleep(50 * time.Millisecond)

	client.mu.Lock()
	client.readErr = nil
	client.values["ns=2;s=Temp"] = 700
	client.mu.Unlock()

	// the task kept running and picks up the new value
	waitFor(t, func() bool { return len(writer.snapshot()) >= 2 })
}

func TestWriteThroughInvertsConversion(t *testing.T) {
	t.Parallel()

	client := newFakeFieldClient()
	p := NewPoller(client, &recordingWriter{}, []common.FieldbusMapping{tempMapping()})

	ev := events.New(events.TypeUpdated, events.EntitySubmodelElement, "urn:x:sm:plant")
	ev.IDShortPath = "Temperature"
	ev.ValueBytes = []byte(`"286"`)
	require.NoError(t, p.HandleEvent(context.Background(), ev))

	client.mu.Lock()
	defer client.mu.Unlock()
	require.Len(t, client.writes, 1)
	require.Equal(t, "ns=2;s=Temp", client.writes[0].Node)
	require.InDelta(t, 652, client.writes[0].Raw, 1e-9)
}

func TestWriteThroughSkipsOwnEcho(t *testing.T) {
	t.Parallel()

	client := newFakeFieldClient()
	m := tempMapping()
	p := NewPoller(client, &recordingWriter{}, []common.FieldbusMapping{m})
	p.rememberWrite(m, "286")

	ev := events.New(events.TypeUpdated, events.EntitySubmodelElement, "urn:x:sm:plant")
	ev.IDShortPath = "Temperature"
	ev.ValueBytes = []byte(`"286"`)
	require.NoError(t, p.HandleEvent(context.Background(), ev))

	client.mu.Lock()
	defer client.mu.Unlock()
	require.Empty(t, client.writes)
}

func TestWriteThroughIgnoresUnmappedAndUnparsable(t *testing.T) {
	t.Parallel()

	client := newFakeFieldClient()
	p := NewPoller(client, &recordingWriter{}, []common.FieldbusMapping{tempMapping()})
	ctx := context.Background()

	other := events.New(events.TypeUpdated, events.EntitySubmodelElement, "urn:x:sm:other")
	other.IDShortPath = "Temperature"
	other.ValueBytes = []byte(`"1"`)
	require.NoError(t, p.HandleEvent(ctx, other))

	garbage := events.New(events.TypeUpdated, events.EntitySubmodelElement, "urn:x:sm:plant")
	garbage.IDShortPath = "Temperature"
	garbage.ValueBytes = []byte(`{"not":"scalar"}`)
	require.NoError(t, p.HandleEvent(ctx, garbage))

	created := events.New(events.TypeCreated, events.EntitySubmodelElement, "urn:x:sm:plant")
	created.IDShortPath = "Temperature"
	created.ValueBytes = []byte(`"1"`)
	require.NoError(t, p.HandleEvent(ctx, created))

	client.mu.Lock()
	defer client.mu.Unlock()
	require.Empty(t, client.writes)
}

func TestValueConversion(t *testing.T) {
	t.Parallel()

	boolMapping := common.FieldbusMapping{DataType: "boolean"}
	require.Equal(t, "true", formatFieldValue(1, boolMapping))
	require.Equal(t, "false", formatFieldValue(0, boolMapping))

	intMapping := common.FieldbusMapping{DataType: "xs:int", ScaleFactor: 2}
	require.Equal(t, "10", formatFieldValue(5, intMapping))
	raw, err := parseFieldValue("10", intMapping)
	require.NoError(t, err)
	require.InDelta(t, 5, raw, 1e-9)

	_, err = parseFieldValue("notanumber", intMapping)
	require.Error(t, err)
}
