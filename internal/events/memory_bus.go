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

package events

import (
	"context"
	"log"
	"sync"
)

// MemoryBus fans events out in-process. Each subscription owns a bounded
// queue drained by one goroutine, so handlers run serially per subscription
// and a slow handler only delays its own queue. A full queue evicts its
// oldest entry so the newest event is always kept.
type MemoryBus struct {
	mu      sync.Mutex
	subs    []*memorySub
	started bool
	stopped bool
	queueN  int
	wg      sync.WaitGroup
}

type memorySub struct {
	handler Handler
	queue   chan Event
}

// NewMemoryBus builds a bus with the given per-subscription queue depth.
func NewMemoryBus(queueDepth int) *MemoryBus {
	if queueDepth <= 0 {
		queueDepth = 1024
	}
	return &MemoryBus{queueN: queueDepth}
}

// Subscribe registers a handler. Subscriptions made after Start still get a
// drain loop.
func (b *MemoryBus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &memorySub{handler: h, queue: make(chan Event, b.queueN)}
	b.subs = append(b.subs, sub)
	if b.started && !b.stopped {
		b.startSub(sub)
	}
}

// Publish enqueues the event for every subscription.
func (b *MemoryBus) Publish(_ context.Context, ev Event) error {
	b.mu.Lock()
	subs := b.subs
	stopped := b.stopped
	b.mu.Unlock()
	if stopped {
		return nil
	}
	for _, sub := range subs {
		select {
		case sub.queue <- ev:
		default:
			// full queue: evict the oldest entry, keep the new event
			select {
			case dropped := <-sub.queue:
				log.Printf("EVENTS-MEM-DROP subscription queue full, dropping oldest %s %s %s", dropped.Entity, dropped.EventType, dropped.Identifier)
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

// Start launches one drain goroutine per subscription.
func (b *MemoryBus) Start(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}
	b.started = true
	for _, sub := range b.subs {
		b.startSub(sub)
	}
	return nil
}

func (b *MemoryBus) startSub(sub *memorySub) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for ev := range sub.queue {
			if err := sub.handler(context.Background(), ev); err != nil {
				log.Printf("EVENTS-MEM-HANDLER handler failed for %s %s %s: %v", ev.Entity, ev.EventType, ev.Identifier, err)
			}
		}
	}()
}

// Stop closes all queues and waits for the drain loops to finish.
func (b *MemoryBus) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	subs := b.subs
	b.mu.Unlock()
	for _, sub := range subs {
		close(sub.queue)
	}
	b.wg.Wait()
}
