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
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/eclipse-basyx/titan-aas/internal/common"
	"github.com/eclipse-basyx/titan-aas/internal/events"
	"github.com/google/uuid"
)

// Resolution strategies.
const (
	StrategyLastWriteWins   = "lastWriteWins"
	StrategyLocalPreferred  = "localPreferred"
	StrategyRemotePreferred = "remotePreferred"
)

// ConflictInfo is one detected divergence between a local and a remote
// document.
type ConflictInfo struct {
	ID         string    `json:"conflictId"`
	PeerID     string    `json:"peerId"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	LocalETag  string    `json:"localEtag"`
	RemoteETag string    `json:"remoteEtag"`
	LocalDoc   []byte    `json:"-"`
	RemoteDoc  []byte    `json:"-"`
	DetectedAt time.Time `json:"detectedAt"`
}

// ConflictManager keeps unresolved conflicts until a strategy is applied.
type ConflictManager struct {
	mu         sync.Mutex
	unresolved map[string]*ConflictInfo
	store      LocalStore
	bus        events.EventBus
	state      StateStore
}

// NewConflictManager builds a manager writing resolutions through the given
// store.
func NewConflictManager(store LocalStore, bus events.EventBus) *ConflictManager {
	return &ConflictManager{unresolved: make(map[string]*ConflictInfo), store: store, bus: bus}
}

// AttachState rehydrates open conflicts and turns on write-through. Restored
// conflicts carry detection metadata only; resolving one keeps the local
// document until the next sync round re-detects the divergence.
func (c *ConflictManager) AttachState(ctx context.Context, state StateStore) error {
	open, err := state.LoadOpenConflicts(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.state = state
	for i := range open {
		info := open[i]
		if _, ok := c.unresolved[info.ID]; !ok {
			c.unresolved[info.ID] = &info
		}
	}
	c.mu.Unlock()
	if len(open) > 0 {
		log.Printf("FED-CONFLICT-RESTORE %d open conflicts from state store", len(open))
	}
	return nil
}

// Record registers a conflict; a second detection of the same entity from
// the same peer replaces the first.
func (c *ConflictManager) Record(info ConflictInfo) string {
	if info.ID == "" {
		info.ID = uuid.NewString()
	}
	if info.DetectedAt.IsZero() {
		info.DetectedAt = time.Now().UTC()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, existing := range c.unresolved {
		if existing.PeerID == info.PeerID && existing.EntityType == info.EntityType && existing.EntityID == info.EntityID {
			delete(c.unresolved, id)
		}
	}
	c.unresolved[info.ID] = &info
	state := c.state
	log.Printf("FED-CONFLICT %s %s from %s: local %s vs remote %s", info.EntityType, info.EntityID, info.PeerID, info.LocalETag, info.RemoteETag)
	if state != nil {
		if err := state.SaveConflict(context.Background(), info); err != nil {
			log.Printf("FED-CONFLICT-PERSIST %s failed: %v", info.ID, err)
		}
	}
	return info.ID
}

// Unresolved lists open conflicts, optionally filtered by peer.
func (c *ConflictManager) Unresolved(peerID string) []ConflictInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []ConflictInfo
	for _, info := range c.unresolved {
		if peerID != "" && info.PeerID != peerID {
			continue
		}
		out = append(out, *info)
	}
	return out
}

// Resolve applies a strategy to one conflict and removes it from the open
// set.
func (c *ConflictManager) Resolve(ctx context.Context, conflictID, strategy string) error {
	c.mu.Lock()
	info, ok := c.unresolved[conflictID]
	if ok {
		delete(c.unresolved, conflictID)
	}
	state := c.state
	c.mu.Unlock()
	if !ok {
		return common.NewErrNotFound(fmt.Sprintf("no unresolved conflict %q", conflictID))
	}
	if err := c.apply(ctx, info, strategy); err != nil {
		return err
	}
	if state != nil {
		if err := state.MarkConflictResolved(ctx, conflictID, strategy); err != nil {
			log.Printf("FED-CONFLICT-PERSIST resolve of %s failed: %v", conflictID, err)
		}
	}
	return nil
}

// ResolveAll applies one strategy to every open conflict, optionally
// filtered by peer. Returns the number resolved.
func (c *ConflictManager) ResolveAll(ctx context.Context, peerID, strategy string) (int, error) {
	var firstErr error
	n := 0
	for _, info := range c.Unresolved(peerID) {
		if err := c.Resolve(ctx, info.ID, strategy); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		n++
	}
	return n, firstErr
}

func (c *ConflictManager) apply(ctx context.Context, info *ConflictInfo, strategy string) error {
	var winner []byte
	switch strategy {
	case StrategyLocalPreferred:
		winner = nil // keep local as-is
	case StrategyRemotePreferred:
		winner = info.RemoteDoc
	case StrategyLastWriteWins:
		if remoteWins(info) {
			winner = info.RemoteDoc
		}
	default:
		return common.NewErrBadRequest(fmt.Sprintf("unknown resolution strategy %q", strategy)).WithCode("Conflict.UnknownStrategy")
	}
	if winner == nil {
		log.Printf("FED-RESOLVE %s %s: keeping local document", info.EntityType, info.EntityID)
		return nil
	}
	if _, err := c.store.ApplyRemote(ctx, info.EntityType, info.EntityID, winner); err != nil {
		return err
	}
	if c.bus != nil {
		if err := c.bus.Publish(ctx, events.New(events.TypeUpdated, info.EntityType, info.EntityID)); err != nil {
			log.Printf("FED-RESOLVE event publish for %s %s failed: %v", info.EntityType, info.EntityID, err)
		}
	}
	log.Printf("FED-RESOLVE %s %s: adopted remote document from %s", info.EntityType, info.EntityID, info.PeerID)
	return nil
}

// remoteWins decides lastWriteWins: the higher administration.revision
// takes it; absent or equal revisions tie-break on the lexicographically
// greater ETag.
func remoteWins(info *ConflictInfo) bool {
	lr, lok := revisionOf(info.LocalDoc)
	rr, rok := revisionOf(info.RemoteDoc)
	if lok && rok && lr != rr {
		return rr > lr
	}
	return info.RemoteETag > info.LocalETag
}

func revisionOf(doc []byte) (int64, bool) {
	var head struct {
		Administration struct {
			Revision string `json:"revision"`
		} `json:"administration"`
	}
	if err := json.Unmarshal(doc, &head); err != nil {
		return 0, false
	}
	rev, err := strconv.ParseInt(head.Administration.Revision, 10, 64)
	if err != nil {
		return 0, false
	}
	return rev, true
}
