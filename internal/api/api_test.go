package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-basyx/titan-aas/internal/common"
	"github.com/eclipse-basyx/titan-aas/internal/common/canonical"
	"github.com/eclipse-basyx/titan-aas/internal/common/model"
	"github.com/eclipse-basyx/titan-aas/internal/events"
	"github.com/eclipse-basyx/titan-aas/internal/repository"
)

// memDocs is the shared storage shape of the in-memory store fakes: ordered
// identifiers plus canonical doc/etag per identifier.
type memDocs struct {
	mu    sync.Mutex
	order []string
	docs  map[string][]byte
	etags map[string]string
}

func newMemDocs() *memDocs {
	return &memDocs{docs: map[string][]byte{}, etags: map[string]string{}}
}

func (m *memDocs) get(id string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, "", common.NewErrNotFound("no document " + id)
	}
	return doc, m.etags[id], nil
}

func (m *memDocs) create(id string, v any) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; ok {
		return nil, "", common.NewErrConflict("document " + id + " already exists")
	}
	doc, etag, err := canonical.MarshalWithETag(v)
	if err != nil {
		return nil, "", err
	}
	m.order = append(m.order, id)
	m.docs[id] = doc
	m.etags[id] = etag
	return doc, etag, nil
}

// update checks the precondition and replaces the document under one lock,
// like the row-locked transaction in the real store.
func (m *memDocs) update(id string, v any, ifMatch string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return nil, "", common.NewErrNotFound("no document " + id)
	}
	if ifMatch != "" && ifMatch != m.etags[id] {
		return nil, "", common.NewErrPreconditionFailed("stored version changed since read")
	}
	doc, etag, err := canonical.MarshalWithETag(v)
	if err != nil {
		return nil, "", err
	}
	m.docs[id] = doc
	m.etags[id] = etag
	return doc, etag, nil
}

func (m *memDocs) delete(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return false, nil
	}
	delete(m.docs, id)
	delete(m.etags, id)
	for i, o := range m.order {
		if o == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// listPaged mimics the repository page envelope, including the cursor.
func (m *memDocs) listPaged(limit int, cursor string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	start := 0
	if cursor != "" {
		for i, id := range m.order {
			if id == cursor {
				start = i
				break
			}
		}
	}
	var sb strings.Builder
	sb.WriteString(`{"result":[`)
	end := start + limit
	if end > len(m.order) {
		end = len(m.order)
	}
	for i := start; i < end; i++ {
		if i > start {
			sb.WriteString(",")
		}
		sb.Write(m.docs[m.order[i]])
	}
	sb.WriteString(`],"paging_metadata":{"cursor":`)
	if end < len(m.order) {
		sb.WriteString(`"` + m.order[end] + `"`)
	} else {
		sb.WriteString("null")
	}
	sb.WriteString("}}")
	return []byte(sb.String()), nil
}

type fakeShells struct{ *memDocs }

func (f *fakeShells) GetBytes(_ context.Context, id string) ([]byte, string, error) {
	return f.get(id)
}

func (f *fakeShells) GetTyped(_ context.Context, id string) (*model.AssetAdministrationShell, error) {
	doc, _, err := f.get(id)
	if err != nil {
		return nil, err
	}
	var shell model.AssetAdministrationShell
	if err := jsonAPI.Unmarshal(doc, &shell); err != nil {
		return nil, err
	}
	return &shell, nil
}

func (f *fakeShells) Create(_ context.Context, shell *model.AssetAdministrationShell) ([]byte, string, error) {
	return f.create(shell.ID, shell)
}

func (f *fakeShells) Update(_ context.Context, id string, shell *model.AssetAdministrationShell, ifMatch string) ([]byte, string, error) {
	return f.update(id, shell, ifMatch)
}

func (f *fakeShells) Delete(_ context.Context, id string) (bool, error) { return f.delete(id) }

func (f *fakeShells) ListPagedBytes(_ context.Context, limit int, cursor string, _ repository.ListFilter) ([]byte, error) {
	return f.listPaged(limit, cursor)
}

type fakeSubmodels struct{ *memDocs }

func (f *fakeSubmodels) GetBytes(_ context.Context, id string) ([]byte, string, error) {
	return f.get(id)
}

func (f *fakeSubmodels) GetTyped(_ context.Context, id string) (*model.Submodel, error) {
	doc, _, err := f.get(id)
	if err != nil {
		return nil, err
	}
	var sm model.Submodel
	if err := jsonAPI.Unmarshal(doc, &sm); err != nil {
		return nil, err
	}
	return &sm, nil
}

func (f *fakeSubmodels) Create(_ context.Context, sm *model.Submodel) ([]byte, string, error) {
	return f.create(sm.ID, sm)
}

func (f *fakeSubmodels) Update(_ context.Context, id string, sm *model.Submodel, ifMatch string) ([]byte, string, error) {
	return f.update(id, sm, ifMatch)
}

func (f *fakeSubmodels) Delete(_ context.Context, id string) (bool, error) { return f.delete(id) }

func (f *fakeSubmodels) ListPagedBytes(_ context.Context, limit int, cursor string, _ repository.ListFilter) ([]byte, error) {
	return f.listPaged(limit, cursor)
}

type fakeConcepts struct{ *memDocs }

func (f *fakeConcepts) GetBytes(_ context.Context, id string) ([]byte, string, error) {
	return f.get(id)
}

func (f *fakeConcepts) Create(_ context.Context, cd *model.ConceptDescription) ([]byte, string, error) {
	return f.create(cd.ID, cd)
}

func (f *fakeConcepts) Update(_ context.Context, id string, cd *model.ConceptDescription, ifMatch string) ([]byte, string, error) {
	return f.update(id, cd, ifMatch)
}

func (f *fakeConcepts) Delete(_ context.Context, id string) (bool, error) { return f.delete(id) }

func (f *fakeConcepts) ListPagedBytes(_ context.Context, limit int, cursor string, _ repository.ListFilter) ([]byte, error) {
	return f.listPaged(limit, cursor)
}

type fakeLinks struct {
	mu    sync.Mutex
	links map[string][]model.SpecificAssetID
}

func newFakeLinks() *fakeLinks {
	return &fakeLinks{links: map[string][]model.SpecificAssetID{}}
}

func (f *fakeLinks) GetLinks(_ context.Context, id string) ([]model.SpecificAssetID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.SpecificAssetID(nil), f.links[id]...), nil
}

func (f *fakeLinks) ReplaceLinks(_ context.Context, id string, links []model.SpecificAssetID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links[id] = append([]model.SpecificAssetID(nil), links...)
	return nil
}

func (f *fakeLinks) DeleteLinks(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.links, id)
	return nil
}

func (f *fakeLinks) ShellIDsByLinks(_ context.Context, pairs []model.SpecificAssetID, _ int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, stored := range f.links {
		for _, want := range pairs {
			for _, have := range stored {
				if have.Name == want.Name && have.Value == want.Value {
					ids = append(ids, id)
				}
			}
		}
	}
	return ids, nil
}

type fakeAttachments struct {
	mu   sync.Mutex
	data map[string][]byte
	mime map[string]string
}

func newFakeAttachments() *fakeAttachments {
	return &fakeAttachments{data: map[string][]byte{}, mime: map[string]string{}}
}

func attachmentKey(submodelID, path string) string { return submodelID + "|" + path }

func (f *fakeAttachments) Put(_ context.Context, submodelID, path, contentType string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := attachmentKey(submodelID, path)
	f.data[key] = payload
	f.mime[key] = contentType
	return nil
}

func (f *fakeAttachments) Get(_ context.Context, submodelID, path string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := attachmentKey(submodelID, path)
	payload, ok := f.data[key]
	if !ok {
		return nil, "", common.NewErrNotFound("no attachment at " + path)
	}
	return payload, f.mime[key], nil
}

func (f *fakeAttachments) Delete(_ context.Context, submodelID, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, attachmentKey(submodelID, path))
	return nil
}

// captureBus records published events for assertions.
type captureBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *captureBus) Publish(_ context.Context, ev events.Event) error {
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
	return nil
}

func (b *captureBus) Subscribe(events.Handler)    {}
func (b *captureBus) Start(context.Context) error { return nil }
func (b *captureBus) Stop()                       {}

func (b *captureBus) last() (events.Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return events.Event{}, false
	}
	return b.events[len(b.events)-1], true
}

func (b *captureBus) ofType(eventType, entity string) []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.Event
	for _, ev := range b.events {
		if ev.EventType == eventType && ev.Entity == entity {
			out = append(out, ev)
		}
	}
	return out
}

type testEnv struct {
	server *httptest.Server
	svc    *Service
	bus    *captureBus
	links  *fakeLinks
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	bus := &captureBus{}
	links := newFakeLinks()
	svc := NewService(
		&fakeShells{newMemDocs()},
		&fakeSubmodels{newMemDocs()},
		&fakeConcepts{newMemDocs()},
		links,
		newFakeAttachments(),
		nil,
		bus,
		"http://titan.example:5004",
	)
	server := httptest.NewServer(NewRouter(Deps{Service: svc}))
	t.Cleanup(server.Close)
	return &testEnv{server: server, svc: svc, bus: bus, links: links}
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers map[string]string) *http.Response {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func bodyOf(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var sb strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		sb.Write(buf[:n])
		if err != nil {
			break
		}
	}
	return sb.String()
}

func b64(id string) string { return common.EncodeIdentifier(id) }

const shellDoc = `{
  "id": "urn:x:aas:motor",
  "idShort": "Motor",
  "modelType": "AssetAdministrationShell",
  "assetInformation": {"assetKind": "Instance", "globalAssetId": "urn:x:asset:motor"}
}`

const submodelDoc = `{
  "id": "urn:x:sm:temp",
  "idShort": "Sensors",
  "modelType": "Submodel",
  "submodelElements": [
    {"idShort": "T", "modelType": "Property", "valueType": "xs:double", "value": "23.5"}
  ]
}`
