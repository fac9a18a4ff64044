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
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStreamBus delivers events through one Redis stream consumed by a
// consumer group, one consumer per instance. Unacknowledged entries are
// reclaimed from dead consumers after ClaimIdleMs; entries that keep
// failing move to the dead stream after MaxDeliveries attempts.
type RedisStreamBus struct {
	rdb      *redis.Client
	group    string
	consumer string

	mu       sync.Mutex
	handlers []Handler

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRedisStreamBus builds a stream bus. Empty group and consumer fall back
// to the defaults; the consumer id gets a random suffix so restarted
// instances never collide.
func NewRedisStreamBus(rdb *redis.Client, group, consumer string) *RedisStreamBus {
	if group == "" {
		group = ConsumerGroup
	}
	if consumer == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "titan"
		}
		consumer = host
	}
	consumer = consumer + "-" + uuid.NewString()[:8]
	return &RedisStreamBus{rdb: rdb, group: group, consumer: consumer}
}

// Subscribe registers a handler. All handlers see every entry; an entry is
// acknowledged only when every handler succeeded.
func (b *RedisStreamBus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish appends the event to the stream. MAXLEN is approximate so the
// stream self-trims without blocking on exact counts.
func (b *RedisStreamBus) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: marshal event %s: %w", ev.EventID, err)
	}
	return b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: StreamMaxLen,
		Approx: true,
		Values: map[string]any{"event": string(payload)},
	}).Err()
}

// Start creates the stream and group idempotently and launches the consume
// loop.
func (b *RedisStreamBus) Start(ctx context.Context) error {
	err := b.rdb.XGroupCreateMkStream(ctx, StreamKey, b.group, "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("events: create consumer group %q: %w", b.group, err)
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.consumeLoop(loopCtx)
	}()
	log.Printf("EVENTS-REDIS-START consuming %s as %s/%s", StreamKey, b.group, b.consumer)
	return nil
}

// Stop cancels the consume loop. Pending entries stay unacknowledged and
// are reclaimed by surviving consumers.
func (b *RedisStreamBus) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
}

func (b *RedisStreamBus) consumeLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		b.reclaimStale(ctx)
		b.readNew(ctx)
	}
}

// reclaimStale takes over entries whose consumer went quiet. Entries past
// the delivery budget move to the dead stream instead of cycling forever.
func (b *RedisStreamBus) reclaimStale(ctx context.Context) {
	pending, err := b.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: StreamKey,
		Group:  b.group,
		Idle:   ClaimIdleMs * time.Millisecond,
		Start:  "-",
		End:    "+",
		Count:  64,
	}).Result()
	if err != nil || len(pending) == 0 {
		return
	}

	var claimable []string
	for _, p := range pending {
		if p.RetryCount >= MaxDeliveries {
			b.moveToDead(ctx, p.ID)
			continue
		}
		claimable = append(claimable, p.ID)
	}
	if len(claimable) == 0 {
		return
	}
	msgs, err := b.rdb.XClaim(ctx, &redis.XClaimArgs{
		Stream:   StreamKey,
		Group:    b.group,
		Consumer: b.consumer,
		MinIdle:  ClaimIdleMs * time.Millisecond,
		Messages: claimable,
	}).Result()
	if err != nil {
		log.Printf("EVENTS-REDIS-CLAIM failed to claim %d entries: %v", len(claimable), err)
		return
	}
	for _, msg := range msgs {
		b.deliver(ctx, msg)
	}
}

// moveToDead copies the raw entry to the dead stream and acknowledges it on
// the live one.
func (b *RedisStreamBus) moveToDead(ctx context.Context, id string) {
	entries, err := b.rdb.XRange(ctx, StreamKey, id, id).Result()
	if err == nil && len(entries) == 1 {
		if err := b.rdb.XAdd(ctx, &redis.XAddArgs{Stream: DeadStreamKey, Values: entries[0].Values}).Err(); err != nil {
			log.Printf("EVENTS-REDIS-DEAD failed to move entry %s to dead stream: %v", id, err)
			return
		}
	}
	if err := b.rdb.XAck(ctx, StreamKey, b.group, id).Err(); err != nil {
		log.Printf("EVENTS-REDIS-DEADACK failed to ack dead entry %s: %v", id, err)
	}
}

func (b *RedisStreamBus) readNew(ctx context.Context) {
	streams, err := b.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    b.group,
		Consumer: b.consumer,
		Streams:  []string{StreamKey, ">"},
		Count:    64,
		Block:    BlockMs * time.Millisecond,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return
		}
		log.Printf("EVENTS-REDIS-READ read failed: %v", err)
		time.Sleep(BlockMs * time.Millisecond)
		return
	}
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			b.deliver(ctx, msg)
		}
	}
}

// deliver decodes the entry and runs every handler; the entry is ACKed only
// on full success so failures stay pending for reclaim.
func (b *RedisStreamBus) deliver(ctx context.Context, msg redis.XMessage) {
	raw, ok := msg.Values["event"].(string)
	if !ok {
		log.Printf("EVENTS-REDIS-DECODE entry %s carries no event field", msg.ID)
		_ = b.rdb.XAck(ctx, StreamKey, b.group, msg.ID).Err()
		return
	}
	var ev Event
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		log.Printf("EVENTS-REDIS-DECODE entry %s does not parse: %v", msg.ID, err)
		_ = b.rdb.XAck(ctx, StreamKey, b.group, msg.ID).Err()
		return
	}

	b.mu.Lock()
	handlers := b.handlers
	b.mu.Unlock()

	for _, h := range handlers {
		if err := h(ctx, ev); err != nil {
			log.Printf("EVENTS-REDIS-HANDLER handler failed for %s %s %s: %v", ev.Entity, ev.EventType, ev.Identifier, err)
			return
		}
	}
	if err := b.rdb.XAck(ctx, StreamKey, b.group, msg.ID).Err(); err != nil {
		log.Printf("EVENTS-REDIS-ACK failed to ack entry %s: %v", msg.ID, err)
	}
}
