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
	"sync"
	"time"

	"github.com/eclipse-basyx/titan-aas/internal/events"
)

// Change is one tracked local write awaiting push.
type Change struct {
	EntityType string
	EntityID   string
	Op         string // created | updated | deleted
	Doc        []byte
	ETag       string
	Timestamp  time.Time
}

// ChangeQueue is a bounded FIFO of local changes. On overflow the oldest
// entry is dropped; a full resync recovers anything lost.
type ChangeQueue struct {
	mu      sync.Mutex
	changes []Change
	max     int
}

// DefaultChangeQueueDepth bounds the queue when not configured.
const DefaultChangeQueueDepth = 10000

// NewChangeQueue builds a queue with the given capacity.
func NewChangeQueue(max int) *ChangeQueue {
	if max <= 0 {
		max = DefaultChangeQueueDepth
	}
	return &ChangeQueue{max: max}
}

// TrackChange appends a change record.
func (q *ChangeQueue) TrackChange(entityType, entityID, op string, doc []byte, etag string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.changes) >= q.max {
		q.changes = q.changes[1:]
	}
	q.changes = append(q.changes, Change{
		EntityType: entityType,
		EntityID:   entityID,
		Op:         op,
		Doc:        doc,
		ETag:       etag,
		Timestamp:  time.Now().UTC(),
	})
}

// Since returns the changes newer than the given time, oldest first.
func (q *ChangeQueue) Since(t time.Time) []Change {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Change
	for _, c := range q.changes {
		if c.Timestamp.After(t) {
			out = append(out, c)
		}
	}
	return out
}

// All returns every queued change, oldest first.
func (q *ChangeQueue) All() []Change {
	return q.Since(time.Time{})
}

// Len returns the queue depth.
func (q *ChangeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.changes)
}

// HandleEvent feeds the queue from the event bus. Element-level events are
// folded onto their submodel; deletions carry no document. Satisfies
// events.Handler.
func (q *ChangeQueue) HandleEvent(_ context.Context, ev events.Event) error {
	entityType := ev.Entity
	if entityType == events.EntitySubmodelElement {
		entityType = events.EntitySubmodel
	}
	op := ev.EventType
	if ev.Entity == events.EntitySubmodelElement {
		op = events.TypeUpdated
	}
	q.TrackChange(entityType, ev.Identifier, op, ev.DocBytes, ev.ETag)
	return nil
}
