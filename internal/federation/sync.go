/*******************************************************************************
* Copyright (C) 2026 the Eclipse BaSyx Authors and Fraunhofer IESE
*
* Permission is hereby granted, free of charge, to any person obtaining
* a copy of this software and associated documentation files (the
* "Software"), to deal in the Software without restriction, including
* without limitation the rights to use, copy, modify, merge, publish,
* distribute, sublicense, and/or sell copies of the Software, and to
* permit persons to whom the Software is furnished to do so, subject to
* the following conditions:
*
* The above copyright notice and this permission notice shall be
* included in all copies or substantial portions of the Software.
*
* THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
* EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
* MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND
* NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE
* LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION
* OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION
* WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*
* SPDX-License-Identifier: MIT
******************************************************************************/

package federation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/eclipse-basyx/titan-aas/internal/common"
	"github.com/eclipse-basyx/titan-aas/internal/common/canonical"
	"github.com/eclipse-basyx/titan-aas/internal/events"
)

// Sync modes.
const (
	ModePull          = "pull"
	ModePush          = "push"
	ModeBidirectional = "bidirectional"
)

// Topologies.
const (
	TopologyMesh     = "mesh"
	TopologyHubSpoke = "hubSpoke"
)

// LocalStore is the slice of the repository layer the sync loop writes
// through. Implemented by the API service.
type LocalStore interface {
	GetLocalBytes(ctx context.Context, entityType, identifier string) ([]byte, string, error)
	ApplyRemote(ctx context.Context, entityType, identifier string, doc []byte) (string, error)
	DeleteLocal(ctx context.Context, entityType, identifier string) error
}

// Summary is the outcome of one sync round.
type Summary struct {
	Peers     int    `json:"peers"`
	Pushed    int    `json:"pushed"`
	Pulled    int    `json:"pulled"`
	Conflicts int    `json:"conflicts"`
	Errors    int    `json:"errors"`
	Status    string `json:"status"`
}

// Config shapes the sync loop.
type Config struct {
	Mode             string
	Topology         string
	HubPeerID        string
	DeltaSyncEnabled bool
	Interval         time.Duration
}

// Manager runs the federation sync loop.
type Manager struct {
	cfg       Config
	registry  *PeerRegistry
	queue     *ChangeQueue
	store     LocalStore
	conflicts *ConflictManager
	bus       events.EventBus
	httpc     *http.Client
	state     StateStore

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager wires the sync loop together. A nil HTTP client gets a 10s
// timeout default.
func NewManager(cfg Config, registry *PeerRegistry, queue *ChangeQueue, store LocalStore, conflicts *ConflictManager, bus events.EventBus, httpc *http.Client) *Manager {
	if httpc == nil {
		httpc = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	return &Manager{cfg: cfg, registry: registry, queue: queue, store: store, conflicts: conflicts, bus: bus, httpc: httpc}
}

// AttachState turns on sync log persistence.
func (m *Manager) AttachState(state StateStore) {
	m.state = state
}

// logSync appends one sync outcome; failures are logged only.
func (m *Manager) logSync(ctx context.Context, peerID, direction, entityType, entityID, outcome, detail string) {
	if m.state == nil {
		return
	}
	entry := SyncLogEntry{
		PeerID:     peerID,
		Direction:  direction,
		EntityType: entityType,
		EntityID:   entityID,
		Outcome:    outcome,
		Detail:     detail,
		SyncedAt:   time.Now().UnixMicro(),
	}
	if err := m.state.AppendSyncLog(ctx, entry); err != nil {
		log.Printf("FED-SYNCLOG append for %s %s failed: %v", entityType, entityID, err)
	}
}

// Start launches the periodic sync task.
func (m *Manager) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.registry.CheckAll(ctx)
				summary := m.SyncOnce(ctx)
				log.Printf("FED-SYNC peers=%d pushed=%d pulled=%d conflicts=%d errors=%d status=%s",
					summary.Peers, summary.Pushed, summary.Pulled, summary.Conflicts, summary.Errors, summary.Status)
			}
		}
	}()
}

// Stop halts the loop.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// getSyncPeers resolves the peer set for this round: every healthy peer in
// a mesh; only the hub for a spoke; every healthy peer when this instance
// is the hub itself.
func (m *Manager) getSyncPeers() []Peer {
	if m.cfg.Topology == TopologyHubSpoke && m.cfg.HubPeerID != "" {
		if hub, ok := m.registry.Get(m.cfg.HubPeerID); ok {
			return []Peer{hub}
		}
		return nil
	}
	var healthy []Peer
	for _, p := range m.registry.List() {
		if p.Status == PeerOnline {
			healthy = append(healthy, p)
		}
	}
	return healthy
}

// SyncOnce performs one full exchange with every sync peer. Per-peer errors
// are counted, not fatal.
func (m *Manager) SyncOnce(ctx context.Context) Summary {
	peers := m.getSyncPeers()
	summary := Summary{Peers: len(peers), Status: "ok"}
	for _, peer := range peers {
		if m.cfg.Mode == ModePush || m.cfg.Mode == ModeBidirectional {
			pushed, errs := m.pushToPeer(ctx, peer)
			summary.Pushed += pushed
			summary.Errors += errs
		}
		if m.cfg.Mode == ModePull || m.cfg.Mode == ModeBidirectional {
			pulled, conflicts, errs := m.pullFromPeer(ctx, peer)
			summary.Pulled += pulled
			summary.Conflicts += conflicts
			summary.Errors += errs
		}
	}
	if summary.Errors > 0 {
		summary.Status = "partial"
	}
	return summary
}

// entityPath maps entity types onto their collection routes.
func entityPath(entityType string) (string, bool) {
	switch entityType {
	case events.EntityAAS:
		return "/shells", true
	case events.EntitySubmodel:
		return "/submodels", true
	case events.EntityConceptDescription:
		return "/concept-descriptions", true
	}
	return "", false
}

// capabilityAllows guards pushes by the peer's declared capabilities.
func capabilityAllows(peer Peer, entityType string) bool {
	switch entityType {
	case events.EntityAAS:
		return peer.Capabilities.AASRepository
	case events.EntitySubmodel:
		return peer.Capabilities.SubmodelRepository
	case events.EntityConceptDescription:
		return peer.Capabilities.ConceptDescriptionRepository
	}
	return false
}

// pushToPeer replays the change queue against one peer.
func (m *Manager) pushToPeer(ctx context.Context, peer Peer) (pushed, errs int) {
	var changes []Change
	if m.cfg.DeltaSyncEnabled {
		changes = m.queue.Since(peer.LastSync)
	} else {
		changes = m.queue.All()
	}
	for _, change := range changes {
		if !capabilityAllows(peer, change.EntityType) {
			continue
		}
		if err := m.pushChange(ctx, peer, change); err != nil {
			log.Printf("FED-PUSH %s %s %s to %s failed: %v", change.Op, change.EntityType, change.EntityID, peer.ID, err)
			m.logSync(ctx, peer.ID, "push", change.EntityType, change.EntityID, "error", err.Error())
			errs++
			continue
		}
		pushed++
		m.logSync(ctx, peer.ID, "push", change.EntityType, change.EntityID, change.Op, "")
		m.registry.setLastSync(peer.ID, change.Timestamp)
	}
	return pushed, errs
}

func (m *Manager) pushChange(ctx context.Context, peer Peer, change Change) error {
	path, ok := entityPath(change.EntityType)
	if !ok {
		return nil
	}
	idB64 := common.EncodeIdentifier(change.EntityID)
	var req *http.Request
	var err error
	switch change.Op {
	case events.TypeCreated:
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, peer.BaseURL+path, bytes.NewReader(change.Doc))
	case events.TypeUpdated:
		req, err = http.NewRequestWithContext(ctx, http.MethodPut, peer.BaseURL+path+"/"+idB64, bytes.NewReader(change.Doc))
		if err == nil && change.ETag != "" {
			req.Header.Set("If-Match", change.ETag)
		}
	case events.TypeDeleted:
		req, err = http.NewRequestWithContext(ctx, http.MethodDelete, peer.BaseURL+path+"/"+idB64, nil)
	default:
		return fmt.Errorf("unknown change op %q", change.Op)
	}
	if err != nil {
		return err
	}
	if req.Method != http.MethodDelete {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := m.httpc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	// conflict responses are a peer-side concern; a 409 on create means the
	// document is already there
	if resp.StatusCode >= 200 && resp.StatusCode < 300 || resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusNotFound && change.Op == events.TypeDeleted {
		return nil
	}
	return fmt.Errorf("peer returned %d", resp.StatusCode)
}

// pullFromPeer lists the peer's entities and reconciles each against local
// state.
func (m *Manager) pullFromPeer(ctx context.Context, peer Peer) (pulled, conflicts, errs int) {
	for _, entityType := range []string{events.EntityAAS, events.EntitySubmodel, events.EntityConceptDescription} {
		if !capabilityAllows(peer, entityType) {
			continue
		}
		p, c, e := m.pullEntityList(ctx, peer, entityType)
		pulled += p
		conflicts += c
		errs += e
	}
	return pulled, conflicts, errs
}

func (m *Manager) pullEntityList(ctx context.Context, peer Peer, entityType string) (pulled, conflicts, errs int) {
	path, _ := entityPath(entityType)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, peer.BaseURL+path, nil)
	if err != nil {
		return 0, 0, 1
	}
	resp, err := m.httpc.Do(req)
	if err != nil {
		log.Printf("FED-PULL list %s from %s failed: %v", entityType, peer.ID, err)
		return 0, 0, 1
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return 0, 0, 1
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, 0, 1
	}

	var envelope struct {
		Result []json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		log.Printf("FED-PULL list %s from %s does not parse: %v", entityType, peer.ID, err)
		return 0, 0, 1
	}

	for _, raw := range envelope.Result {
		var head struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &head); err != nil || head.ID == "" {
			errs++
			continue
		}
		p, c, e := m.reconcile(ctx, peer, entityType, head.ID, raw)
		pulled += p
		conflicts += c
		errs += e
	}
	return pulled, conflicts, errs
}

// reconcile compares one remote document against local state: absent means
// adopt, differing ETags mean conflict.
func (m *Manager) reconcile(ctx context.Context, peer Peer, entityType, identifier string, remoteDoc []byte) (pulled, conflicts, errs int) {
	remoteBytes, remoteETag, err := canonical.MarshalWithETagBytes(remoteDoc)
	if err != nil {
		return 0, 0, 1
	}

	localDoc, localETag, err := m.store.GetLocalBytes(ctx, entityType, identifier)
	if common.IsErrNotFound(err) {
		if _, err := m.store.ApplyRemote(ctx, entityType, identifier, remoteBytes); err != nil {
			log.Printf("FED-PULL adopt %s %s failed: %v", entityType, identifier, err)
			return 0, 0, 1
		}
		m.logSync(ctx, peer.ID, "pull", entityType, identifier, "adopted", "")
		m.publishUpdate(ctx, entityType, identifier)
		return 1, 0, 0
	}
	if err != nil {
		return 0, 0, 1
	}
	if localETag == remoteETag {
		return 0, 0, 0
	}
	m.conflicts.Record(ConflictInfo{
		PeerID:     peer.ID,
		EntityType: entityType,
		EntityID:   identifier,
		LocalETag:  localETag,
		RemoteETag: remoteETag,
		LocalDoc:   localDoc,
		RemoteDoc:  remoteBytes,
	})
	m.logSync(ctx, peer.ID, "pull", entityType, identifier, "conflict", "local "+localETag+" vs remote "+remoteETag)
	return 0, 1, 0
}

func (m *Manager) publishUpdate(ctx context.Context, entityType, identifier string) {
	if m.bus == nil {
		return
	}
	if err := m.bus.Publish(ctx, events.New(events.TypeUpdated, entityType, identifier)); err != nil {
		log.Printf("FED-EVENT publish for %s %s failed: %v", entityType, identifier, err)
	}
}
