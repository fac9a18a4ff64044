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

// Package federation synchronizes repository contents between Titan-AAS
// instances: a peer registry with health probing, a bounded change queue
// fed from the event stream, a push/pull sync loop and an ETag-based
// conflict manager.
package federation

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

// Peer statuses. DEGRADED means the peer answers but reports unhealthy.
const (
	PeerOnline   = "ONLINE"
	PeerOffline  = "OFFLINE"
	PeerDegraded = "DEGRADED"
	PeerUnknown  = "UNKNOWN"
)

// Capabilities guards what a peer accepts.
type Capabilities struct {
	AASRepository                bool `json:"aasRepository"`
	SubmodelRepository           bool `json:"submodelRepository"`
	ConceptDescriptionRepository bool `json:"conceptDescriptionRepository"`
	Registry                     bool `json:"registry"`
	Discovery                    bool `json:"discovery"`
	Events                       bool `json:"events"`
}

// Peer is one federation partner.
type Peer struct {
	ID           string       `json:"peerId"`
	BaseURL      string       `json:"baseUrl"`
	Capabilities Capabilities `json:"capabilities"`
	Status       string       `json:"status"`
	LastSeen     string       `json:"lastSeen,omitempty"`
	LastSync     time.Time    `json:"-"`
}

// PeerRegistry is the peer map, optionally written through to a StateStore.
type PeerRegistry struct {
	mu    sync.RWMutex
	peers map[string]*Peer
	httpc *http.Client
	state StateStore
}

// NewPeerRegistry builds a registry. A nil client gets the probe default.
func NewPeerRegistry(httpc *http.Client) *PeerRegistry {
	if httpc == nil {
		httpc = &http.Client{Timeout: 5 * time.Second}
	}
	return &PeerRegistry{peers: make(map[string]*Peer), httpc: httpc}
}

// AttachState rehydrates persisted peers and turns on write-through.
func (r *PeerRegistry) AttachState(ctx context.Context, state StateStore) error {
	peers, err := state.LoadPeers(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.state = state
	for i := range peers {
		p := peers[i]
		if _, ok := r.peers[p.ID]; !ok {
			r.peers[p.ID] = &p
		}
	}
	r.mu.Unlock()
	if len(peers) > 0 {
		log.Printf("FED-PEER-RESTORE %d peers from state store", len(peers))
	}
	return nil
}

// persistPeer writes one peer snapshot through; failures are logged only.
func (r *PeerRegistry) persistPeer(p Peer) {
	r.mu.RLock()
	state := r.state
	r.mu.RUnlock()
	if state == nil {
		return
	}
	if err := state.SavePeer(context.Background(), p); err != nil {
		log.Printf("FED-PEER-PERSIST %s failed: %v", p.ID, err)
	}
}

// Register adds or replaces a peer; its status starts UNKNOWN.
func (r *PeerRegistry) Register(peer Peer) {
	peer.Status = PeerUnknown
	r.mu.Lock()
	r.peers[peer.ID] = &peer
	r.mu.Unlock()
	r.persistPeer(peer)
	log.Printf("FED-PEER-REGISTER %s at %s", peer.ID, peer.BaseURL)
}

// Remove deletes a peer; the bool reports whether it existed.
func (r *PeerRegistry) Remove(peerID string) bool {
	r.mu.Lock()
	_, ok := r.peers[peerID]
	if ok {
		delete(r.peers, peerID)
	}
	state := r.state
	r.mu.Unlock()
	if !ok {
		return false
	}
	if state != nil {
		if err := state.DeletePeer(context.Background(), peerID); err != nil {
			log.Printf("FED-PEER-PERSIST delete of %s failed: %v", peerID, err)
		}
	}
	return true
}

// Get returns a snapshot of one peer.
func (r *PeerRegistry) Get(peerID string) (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[peerID]
	if !ok {
		return Peer{}, false
	}
	return *p, true
}

// List returns snapshots of all peers.
func (r *PeerRegistry) List() []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, *p)
	}
	return out
}

// CheckHealth probes a peer's health endpoint and updates status and
// lastSeen. A transport error marks the peer OFFLINE; a reachable peer
// answering non-2xx is DEGRADED.
func (r *PeerRegistry) CheckHealth(ctx context.Context, peerID string) (string, error) {
	r.mu.RLock()
	p, ok := r.peers[peerID]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("federation: unknown peer %q", peerID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/health", nil)
	if err != nil {
		return "", err
	}
	resp, err := r.httpc.Do(req)

	r.mu.Lock()
	if err != nil {
		p.Status = PeerOffline
	} else {
		_ = resp.Body.Close()
		p.LastSeen = time.Now().UTC().Format(time.RFC3339)
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			p.Status = PeerDegraded
		} else {
			p.Status = PeerOnline
		}
	}
	snapshot := *p
	r.mu.Unlock()

	r.persistPeer(snapshot)
	return snapshot.Status, nil
}

// CheckAll probes every peer.
func (r *PeerRegistry) CheckAll(ctx context.Context) {
	for _, p := range r.List() {
		if _, err := r.CheckHealth(ctx, p.ID); err != nil {
			log.Printf("FED-HEALTH probe of %s failed: %v", p.ID, err)
		}
	}
}

// setLastSync records the high-water mark of pushed changes.
func (r *PeerRegistry) setLastSync(peerID string, ts time.Time) {
	r.mu.Lock()
	var snapshot *Peer
	if p, ok := r.peers[peerID]; ok && ts.After(p.LastSync) {
		p.LastSync = ts
		cp := *p
		snapshot = &cp
	}
	r.mu.Unlock()
	if snapshot != nil {
		r.persistPeer(*snapshot)
	}
}
