package federation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/eclipse-basyx/titan-aas/internal/events"
)

type fakeState struct {
	mu        sync.Mutex
	peers     map[string]Peer
	conflicts map[string]ConflictInfo
	resolved  map[string]string
	entries   []SyncLogEntry
}

func newFakeState() *fakeState {
	return &fakeState{
		peers:     map[string]Peer{},
		conflicts: map[string]ConflictInfo{},
		resolved:  map[string]string{},
	}
}

func (s *fakeState) SavePeer(_ context.Context, p Peer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[p.ID] = p
	return nil
}

func (s *fakeState) DeletePeer(_ context.Context, peerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, peerID)
	return nil
}

func (s *fakeState) LoadPeers(_ context.Context) ([]Peer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Peer
	for _, p := range s.peers {
		out = append(out, p)
	}
	return out, nil
}

func (s *fakeState) SaveConflict(_ context.Context, info ConflictInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflicts[info.ID] = info
	return nil
}

func (s *fakeState) MarkConflictResolved(_ context.Context, conflictID, strategy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved[conflictID] = strategy
	return nil
}

func (s *fakeState) LoadOpenConflicts(_ context.Context) ([]ConflictInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ConflictInfo
	for _, info := range s.conflicts {
		if _, done := s.resolved[info.ID]; !done {
			out = append(out, info)
		}
	}
	return out, nil
}

func (s *fakeState) AppendSyncLog(_ context.Context, entry SyncLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *fakeState) peer(id string) (Peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[id]
	return p, ok
}

func TestRegistryWritesThroughAndRestores(t *testing.T) {
	t.Parallel()

	st := newFakeState()
	st.peers["old"] = Peer{ID: "old", BaseURL: "http://old", Status: PeerUnknown}

	reg := NewPeerRegistry(nil)
	require.NoError(t, reg.AttachState(context.Background(), st))

	// persisted peers survive a restart
	restored, ok := reg.Get("old")
	require.True(t, ok)
	require.Equal(t, "http://old", restored.BaseURL)

	reg.Register(Peer{ID: "p1", BaseURL: "http://p1", Capabilities: allCaps()})
	saved, ok := st.peer("p1")
	require.True(t, ok)
	require.Equal(t, PeerUnknown, saved.Status)
	require.True(t, saved.Capabilities.AASRepository)

	require.True(t, reg.Remove("p1"))
	_, ok = st.peer("p1")
	require.False(t, ok)
}

func TestConflictLifecyclePersisted(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := newFakeState()
	st.conflicts["c0"] = ConflictInfo{ID: "c0", PeerID: "p9", EntityType: events.EntitySubmodel, EntityID: "urn:x:sm:old"}

	cm := NewConflictManager(newFakeStore(), nil)
	require.NoError(t, cm.AttachState(ctx, st))
	require.Len(t, cm.Unresolved(""), 1)

	id := cm.Record(ConflictInfo{PeerID: "p1", EntityType: events.EntitySubmodel, EntityID: "urn:x:sm:1",
		LocalDoc: []byte(`{}`), RemoteDoc: []byte(`{}`)})
	st.mu.Lock()
	_, saved := st.conflicts[id]
	st.mu.Unlock()
	require.True(t, saved)

	require.NoError(t, cm.Resolve(ctx, id, StrategyLocalPreferred))
	st.mu.Lock()
	strategy := st.resolved[id]
	st.mu.Unlock()
	require.Equal(t, StrategyLocalPreferred, strategy)
}

func TestPushRecordsSyncLog(t *testing.T) {
	t.Parallel()

	peerSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer peerSrv.Close()

	reg := NewPeerRegistry(nil)
	reg.Register(Peer{ID: "p1", BaseURL: peerSrv.URL, Capabilities: allCaps()})
	reg.peers["p1"].Status = PeerOnline

	q := NewChangeQueue(10)
	q.TrackChange(events.EntitySubmodel, "urn:x:sm:1", events.TypeCreated, []byte(`{"id":"urn:x:sm:1"}`), "aaaa")

	st := newFakeState()
	m := NewManager(Config{Mode: ModePush, Topology: TopologyMesh}, reg, q, newFakeStore(), nil, nil, nil)
	m.AttachState(st)
	summary := m.SyncOnce(context.Background())
	require.Equal(t, 1, summary.Pushed)

	st.mu.Lock()
	defer st.mu.Unlock()
	require.Len(t, st.entries, 1)
	require.Equal(t, "p1", st.entries[0].PeerID)
	require.Equal(t, "push", st.entries[0].Direction)
	require.Equal(t, events.EntitySubmodel, st.entries[0].EntityType)
	require.Equal(t, "urn:x:sm:1", st.entries[0].EntityID)
	require.Equal(t, events.TypeCreated, st.entries[0].Outcome)
	require.NotZero(t, st.entries[0].SyncedAt)
}

func TestPostgresStateStoreRoundTrips(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	st := NewPostgresStateStore(db)

	mock.ExpectExec(`INSERT INTO .*"federation_peers"`).WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, st.SavePeer(ctx, Peer{ID: "p1", BaseURL: "http://p1", Capabilities: allCaps(),
		Status: PeerOnline, LastSeen: "2026-08-24T10:00:00Z", LastSync: time.UnixMicro(1234).UTC()}))

	mock.ExpectQuery(`SELECT .*FROM .*"federation_peers"`).
		WillReturnRows(sqlmock.NewRows([]string{"peer_id", "base_url", "capabilities", "status", "last_seen", "last_sync"}).
			AddRow("p1", "http://p1", `{"aasRepository":true}`, PeerOnline, "2026-08-24T10:00:00Z", int64(1234)))
	peers, err := st.LoadPeers(ctx)
	require.NoError(t, err)
	require.Len(t, peers, 1)
	require.True(t, peers[0].Capabilities.AASRepository)
	require.Equal(t, time.UnixMicro(1234).UTC(), peers[0].LastSync)

	mock.ExpectExec(`INSERT INTO .*"federation_sync_log"`).WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, st.AppendSyncLog(ctx, SyncLogEntry{PeerID: "p1", Direction: "push",
		EntityType: events.EntitySubmodel, EntityID: "urn:x:sm:1", Outcome: "created", SyncedAt: 99}))

	mock.ExpectExec(`UPDATE .*"federation_conflicts"`).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, st.MarkConflictResolved(ctx, "c1", StrategyRemotePreferred))

	require.NoError(t, mock.ExpectationsWereMet())
}
