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

// Package ws streams entity change events to WebSocket clients. Each
// connection holds one filtered subscription with a bounded queue; when a
// queue overflows the oldest event is dropped so slow readers never stall
// the publisher.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/eclipse-basyx/titan-aas/internal/events"
)

// Filter narrows which events a subscription receives. Zero values match
// everything.
type Filter struct {
	EntityType string   `json:"entityType,omitempty"`
	EventTypes []string `json:"eventTypes,omitempty"`
	EntityID   string   `json:"entityId,omitempty"`
}

// Matches reports whether an event passes the filter.
func (f Filter) Matches(ev events.Event) bool {
	if f.EntityType != "" && f.EntityType != ev.Entity {
		return false
	}
	if f.EntityID != "" && f.EntityID != ev.Identifier {
		return false
	}
	if len(f.EventTypes) > 0 {
		ok := false
		for _, t := range f.EventTypes {
			if t == ev.EventType {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// Subscription is one live connection's queue.
type Subscription struct {
	ID     string
	Filter Filter
	queue  chan events.Event
}

// SubscriptionManager fans events out to live subscriptions.
type SubscriptionManager struct {
	mu         sync.RWMutex
	subs       map[string]*Subscription
	queueDepth int
}

// DefaultQueueDepth bounds a subscription queue when none is configured.
const DefaultQueueDepth = 256

// NewSubscriptionManager builds a manager with the given per-connection
// queue depth.
func NewSubscriptionManager(queueDepth int) *SubscriptionManager {
	if queueDepth <= 0 {
		queueDepth = DefaultQueueDepth
	}
	return &SubscriptionManager{subs: make(map[string]*Subscription), queueDepth: queueDepth}
}

// Subscribe registers a new subscription.
func (m *SubscriptionManager) Subscribe(filter Filter) *Subscription {
	sub := &Subscription{
		ID:     uuid.NewString(),
		Filter: filter,
		queue:  make(chan events.Event, m.queueDepth),
	}
	m.mu.Lock()
	m.subs[sub.ID] = sub
	m.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscription and discards its queued events.
func (m *SubscriptionManager) Unsubscribe(id string) {
	m.mu.Lock()
	sub, ok := m.subs[id]
	if ok {
		delete(m.subs, id)
	}
	m.mu.Unlock()
	if ok {
		close(sub.queue)
	}
}

// Count returns the number of live subscriptions.
func (m *SubscriptionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

// HandleEvent pushes an event into every matching queue; on a full queue
// the oldest entry is dropped in favour of the new one. Satisfies
// events.Handler.
func (m *SubscriptionManager) HandleEvent(_ context.Context, ev events.Event) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sub := range m.subs {
		if !sub.Filter.Matches(ev) {
			continue
		}
		select {
		case sub.queue <- ev:
		default:
			select {
			case <-sub.queue:
			default:
			}
			select {
			case sub.queue <- ev:
			default:
			}
		}
	}
	return nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

const writeWait = 10 * time.Second

// ServeWS upgrades the connection, reads the filter from query parameters
// and streams matching events as JSON frames until the client goes away.
func (m *SubscriptionManager) ServeWS(w http.ResponseWriter, r *http.Request) {
	filter := filterFromQuery(r)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WS-UPGRADE upgrade failed: %v", err)
		return
	}
	sub := m.Subscribe(filter)
	log.Printf("WS-OPEN subscription %s filter=%+v", sub.ID, filter)

	// reader only watches for close
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				m.Unsubscribe(sub.ID)
				return
			}
		}
	}()

	for ev := range sub.queue {
		payload, err := json.Marshal(ev)
		if err != nil {
			log.Printf("WS-MARSHAL event %s does not marshal: %v", ev.EventID, err)
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			m.Unsubscribe(sub.ID)
			break
		}
	}
	_ = conn.Close()
	log.Printf("WS-CLOSE subscription %s", sub.ID)
}

// filterFromQuery reads the subscription filter: entity selects the event
// class (aas, submodel or element), id narrows to one identifier.
func filterFromQuery(r *http.Request) Filter {
	q := r.URL.Query()
	f := Filter{
		EntityType: entityFromQuery(q.Get("entity")),
		EntityID:   q.Get("id"),
	}
	if raw := q.Get("eventTypes"); raw != "" {
		f.EventTypes = splitNonEmpty(raw)
	}
	return f
}

// entityFromQuery maps the wire-level entity name onto the event envelope's
// entity constant; element addresses submodel-element events.
func entityFromQuery(entity string) string {
	switch entity {
	case "aas":
		return events.EntityAAS
	case "submodel":
		return events.EntitySubmodel
	case "element":
		return events.EntitySubmodelElement
	}
	return entity
}

func splitNonEmpty(raw string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == ',' {
			if i > start {
				out = append(out, raw[start:i])
			}
			start = i + 1
		}
	}
	return out
}
