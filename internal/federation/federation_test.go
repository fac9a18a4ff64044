package federation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-basyx/titan-aas/internal/common"
	"github.com/eclipse-basyx/titan-aas/internal/common/canonical"
	"github.com/eclipse-basyx/titan-aas/internal/events"
)

type fakeStore struct {
	mu   sync.Mutex
	docs map[string][]byte // entityType|id -> canonical bytes
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: map[string][]byte{}}
}

func (s *fakeStore) key(entityType, id string) string { return entityType + "|" + id }

func (s *fakeStore) GetLocalBytes(_ context.Context, entityType, id string) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[s.key(entityType, id)]
	if !ok {
		return nil, "", common.NewErrNotFound("absent")
	}
	return doc, canonical.ETag(doc), nil
}

func (s *fakeStore) ApplyRemote(_ context.Context, entityType, id string, doc []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[s.key(entityType, id)] = doc
	return canonical.ETag(doc), nil
}

func (s *fakeStore) DeleteLocal(_ context.Context, entityType, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, s.key(entityType, id))
	return nil
}

func allCaps() Capabilities {
	return Capabilities{
		AASRepository:                true,
		SubmodelRepository:           true,
		ConceptDescriptionRepository: true,
		Registry:                     true,
		Discovery:                    true,
		Events:                       true,
	}
}

func TestCheckHealthMarksStatus(t *testing.T) {
	t.Parallel()

	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	ailing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ailing.Close()

	reg := NewPeerRegistry(nil)
	reg.Register(Peer{ID: "p1", BaseURL: healthy.URL})
	reg.Register(Peer{ID: "p2", BaseURL: "http://127.0.0.1:1"})
	reg.Register(Peer{ID: "p3", BaseURL: ailing.URL})

	status, err := reg.CheckHealth(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, PeerOnline, status)

	status, err = reg.CheckHealth(context.Background(), "p2")
	require.NoError(t, err)
	require.Equal(t, PeerOffline, status)

	// reachable but unhealthy peers degrade instead of dropping offline
	status, err = reg.CheckHealth(context.Background(), "p3")
	require.NoError(t, err)
	require.Equal(t, PeerDegraded, status)

	p1, ok := reg.Get("p1")
	require.True(t, ok)
	require.Equal(t, PeerOnline, p1.Status)
	require.NotEmpty(t, p1.LastSeen)

	p3, ok := reg.Get("p3")
	require.True(t, ok)
	require.Equal(t, PeerDegraded, p3.Status)
	require.NotEmpty(t, p3.LastSeen)

	_, err = reg.CheckHealth(context.Background(), "nope")
	require.Error(t, err)
}

func TestChangeQueueBoundedDropsOldest(t *testing.T) {
	t.Parallel()

	q := NewChangeQueue(2)
	q.TrackChange(events.EntitySubmodel, "urn:a", events.TypeCreated, nil, "")
	q.TrackChange(events.EntitySubmodel, "urn:b", events.TypeCreated, nil, "")
	q.TrackChange(events.EntitySubmodel, "urn:c", events.TypeCreated, nil, "")

	all := q.All()
	require.Len(t, all, 2)
	require.Equal(t, "urn:b", all[0].EntityID)
	require.Equal(t, "urn:c", all[1].EntityID)
}

func TestChangeQueueFoldsElementEvents(t *testing.T) {
	t.Parallel()

	q := NewChangeQueue(10)
	ev := events.New(events.TypeCreated, events.EntitySubmodelElement, "urn:x:sm:1")
	ev.IDShortPath = "T"
	require.NoError(t, q.HandleEvent(context.Background(), ev))

	all := q.All()
	require.Len(t, all, 1)
	require.Equal(t, events.EntitySubmodel, all[0].EntityType)
	require.Equal(t, events.TypeUpdated, all[0].Op)
}

func TestGetSyncPeersTopologies(t *testing.T) {
	t.Parallel()

	reg := NewPeerRegistry(nil)
	reg.Register(Peer{ID: "hub", BaseURL: "http://hub"})
	reg.Register(Peer{ID: "spoke", BaseURL: "http://spoke"})

	// spoke: only the hub, healthy or not
	m := NewManager(Config{Mode: ModePush, Topology: TopologyHubSpoke, HubPeerID: "hub"}, reg, NewChangeQueue(10), newFakeStore(), nil, nil, nil)
	peers := m.getSyncPeers()
	require.Len(t, peers, 1)
	require.Equal(t, "hub", peers[0].ID)

	// mesh: only healthy peers
	m = NewManager(Config{Mode: ModePush, Topology: TopologyMesh}, reg, NewChangeQueue(10), newFakeStore(), nil, nil, nil)
	require.Empty(t, m.getSyncPeers())
}

func TestPushReplaysChangeQueue(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var requests []string
	peerSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests = append(requests, r.Method+" "+r.URL.Path+" ifmatch="+r.Header.Get("If-Match"))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer peerSrv.Close()

	reg := NewPeerRegistry(nil)
	reg.Register(Peer{ID: "p1", BaseURL: peerSrv.URL, Capabilities: allCaps()})
	reg.peers["p1"].Status = PeerOnline

	q := NewChangeQueue(10)
	q.TrackChange(events.EntitySubmodel, "urn:x:sm:1", events.TypeCreated, []byte(`{"id":"urn:x:sm:1"}`), "aaaa")
	q.TrackChange(events.EntitySubmodel, "urn:x:sm:1", events.TypeUpdated, []byte(`{"id":"urn:x:sm:1","idShort":"S"}`), "bbbb")
	q.TrackChange(events.EntityAAS, "urn:x:aas:1", events.TypeDeleted, nil, "")

	m := NewManager(Config{Mode: ModePush, Topology: TopologyMesh, DeltaSyncEnabled: true}, reg, q, newFakeStore(), nil, nil, nil)
	summary := m.SyncOnce(context.Background())
	require.Equal(t, 1, summary.Peers)
	require.Equal(t, 3, summary.Pushed)
	require.Equal(t, 0, summary.Errors)
	require.Equal(t, "ok", summary.Status)

	idB64 := common.EncodeIdentifier("urn:x:sm:1")
	aasB64 := common.EncodeIdentifier("urn:x:aas:1")
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{
		"POST /submodels ifmatch=",
		"PUT /submodels/" + idB64 + " ifmatch=bbbb",
		"DELETE /shells/" + aasB64 + " ifmatch=",
	}, requests)
}

func TestPullAdoptsAbsentAndDetectsConflicts(t *testing.T) {
	t.Parallel()

	peerSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/submodels":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"result":[{"id":"urn:x:sm:new","modelType":"Submodel"},{"id":"urn:x:sm:clash","modelType":"Submodel","idShort":"Remote"}],"paging_metadata":{"cursor":null}}`))
		default:
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"result":[],"paging_metadata":{"cursor":null}}`))
		}
	}))
	defer peerSrv.Close()

	store := newFakeStore()
	localDoc, err := canonical.Bytes([]byte(`{"id":"urn:x:sm:clash","modelType":"Submodel","idShort":"Local"}`))
	require.NoError(t, err)
	_, err = store.ApplyRemote(context.Background(), events.EntitySubmodel, "urn:x:sm:clash", localDoc)
	require.NoError(t, err)

	reg := NewPeerRegistry(nil)
	reg.Register(Peer{ID: "p1", BaseURL: peerSrv.URL, Capabilities: allCaps()})
	reg.peers["p1"].Status = PeerOnline

	conflicts := NewConflictManager(store, nil)
	m := NewManager(Config{Mode: ModePull, Topology: TopologyMesh}, reg, NewChangeQueue(10), store, conflicts, nil, nil)

	summary := m.SyncOnce(context.Background())
	require.Equal(t, 1, summary.Pulled)
	require.Equal(t, 1, summary.Conflicts)

	// the absent document was adopted with canonical bytes
	adopted, etag, err := store.GetLocalBytes(context.Background(), events.EntitySubmodel, "urn:x:sm:new")
	require.NoError(t, err)
	require.Len(t, etag, 16)
	require.JSONEq(t, `{"id":"urn:x:sm:new","modelType":"Submodel"}`, string(adopted))

	open := conflicts.Unresolved("")
	require.Len(t, open, 1)
	require.Equal(t, "urn:x:sm:clash", open[0].EntityID)
}

func TestConflictResolutionStrategies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	local, err := canonical.Bytes([]byte(`{"id":"urn:x:sm:1","idShort":"Local"}`))
	require.NoError(t, err)
	remote, err := canonical.Bytes([]byte(`{"id":"urn:x:sm:1","idShort":"Remote"}`))
	require.NoError(t, err)

	// remotePreferred overwrites local
	store := newFakeStore()
	_, err = store.ApplyRemote(ctx, events.EntitySubmodel, "urn:x:sm:1", local)
	require.NoError(t, err)
	cm := NewConflictManager(store, nil)
	id := cm.Record(ConflictInfo{PeerID: "p1", EntityType: events.EntitySubmodel, EntityID: "urn:x:sm:1",
		LocalETag: canonical.ETag(local), RemoteETag: canonical.ETag(remote), LocalDoc: local, RemoteDoc: remote})
	require.NoError(t, cm.Resolve(ctx, id, StrategyRemotePreferred))
	got, _, err := store.GetLocalBytes(ctx, events.EntitySubmodel, "urn:x:sm:1")
	require.NoError(t, err)
	require.JSONEq(t, string(remote), string(got))
	require.Empty(t, cm.Unresolved(""))

	// localPreferred keeps local
	store = newFakeStore()
	_, err = store.ApplyRemote(ctx, events.EntitySubmodel, "urn:x:sm:1", local)
	require.NoError(t, err)
	cm = NewConflictManager(store, nil)
	id = cm.Record(ConflictInfo{PeerID: "p1", EntityType: events.EntitySubmodel, EntityID: "urn:x:sm:1",
		LocalETag: canonical.ETag(local), RemoteETag: canonical.ETag(remote), LocalDoc: local, RemoteDoc: remote})
	require.NoError(t, cm.Resolve(ctx, id, StrategyLocalPreferred))
	got, _, err = store.GetLocalBytes(ctx, events.EntitySubmodel, "urn:x:sm:1")
	require.NoError(t, err)
	require.JSONEq(t, string(local), string(got))

	// unknown strategy is rejected and the conflict is consumed
	cm = NewConflictManager(store, nil)
	id = cm.Record(ConflictInfo{PeerID: "p1", EntityType: events.EntitySubmodel, EntityID: "urn:x:sm:1",
		LocalDoc: local, RemoteDoc: remote})
	err = cm.Resolve(ctx, id, "coinFlip")
	require.True(t, common.IsErrBadRequest(err))

	// resolving an unknown id is NotFound
	err = cm.Resolve(ctx, "missing", StrategyLocalPreferred)
	require.True(t, common.IsErrNotFound(err))
}

func TestLastWriteWinsUsesRevisionThenETag(t *testing.T) {
	t.Parallel()

	local := []byte(`{"administration":{"revision":"2"},"id":"urn:x"}`)
	remote := []byte(`{"administration":{"revision":"3"},"id":"urn:x"}`)
	require.True(t, remoteWins(&ConflictInfo{LocalDoc: local, RemoteDoc: remote}))
	require.False(t, remoteWins(&ConflictInfo{LocalDoc: remote, RemoteDoc: local}))

	// no revisions: lexicographically greater ETag wins
	require.True(t, remoteWins(&ConflictInfo{LocalDoc: []byte(`{}`), RemoteDoc: []byte(`{}`), LocalETag: "aaaa", RemoteETag: "bbbb"}))
	require.False(t, remoteWins(&ConflictInfo{LocalDoc: []byte(`{}`), RemoteDoc: []byte(`{}`), LocalETag: "bbbb", RemoteETag: "aaaa"}))
}

func TestBatchResolveFiltersByPeer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := newFakeStore()
	cm := NewConflictManager(store, nil)
	cm.Record(ConflictInfo{PeerID: "p1", EntityType: events.EntitySubmodel, EntityID: "urn:a", LocalDoc: []byte(`{}`), RemoteDoc: []byte(`{}`)})
	cm.Record(ConflictInfo{PeerID: "p2", EntityType: events.EntitySubmodel, EntityID: "urn:b", LocalDoc: []byte(`{}`), RemoteDoc: []byte(`{}`)})

	n, err := cm.ResolveAll(ctx, "p1", StrategyLocalPreferred)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Len(t, cm.Unresolved(""), 1)
	require.Equal(t, "p2", cm.Unresolved("")[0].PeerID)
}

func TestManagerStartStop(t *testing.T) {
	t.Parallel()

	reg := NewPeerRegistry(nil)
	m := NewManager(Config{Mode: ModePush, Topology: TopologyMesh, Interval: 10 * time.Millisecond}, reg, NewChangeQueue(4), newFakeStore(), nil, nil, nil)
	m.Start()
	time.Sleep(30 * time.Millisecond)
	m.Stop()
}
