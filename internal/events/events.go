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

// Package events carries entity change notifications between the write path
// and its consumers (WebSocket fanout, MQTT bridge, federation change
// tracking, field write-through). Two interchangeable buses: an in-process
// fan-out for single-instance deployments and a Redis Streams consumer group
// for clustered ones. Delivery is at-least-once on the stream bus; handlers
// must be idempotent.
package events

import (
	"context"

	"github.com/eclipse-basyx/titan-aas/internal/common"
	"github.com/google/uuid"
)

// Entity discriminators.
const (
	EntityAAS                = "aas"
	EntitySubmodel           = "submodel"
	EntitySubmodelElement    = "submodelElement"
	EntityConceptDescription = "conceptDescription"
)

// Event types.
const (
	TypeCreated = "created"
	TypeUpdated = "updated"
	TypeDeleted = "deleted"
)

// Event is the change notification envelope. DocBytes carries the canonical
// document where a consumer may need it (federation push); ValueBytes
// carries the element value projection on element events (MQTT payloads,
// field write-through). Both are Base64-encoded on the JSON wire.
type Event struct {
	EventID       string `json:"eventId"`
	EventType     string `json:"eventType"`
	Entity        string `json:"entity"`
	Identifier    string `json:"identifier"`
	IdentifierB64 string `json:"identifierB64"`
	IDShortPath   string `json:"idShortPath,omitempty"`
	Timestamp     string `json:"timestamp"`
	ETag          string `json:"etag,omitempty"`
	DocBytes      []byte `json:"docBytes,omitempty"`
	ValueBytes    []byte `json:"valueBytes,omitempty"`
}

// New builds an event with id and timestamp filled in.
func New(eventType, entity, identifier string) Event {
	return Event{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Entity:        entity,
		Identifier:    identifier,
		IdentifierB64: common.EncodeIdentifier(identifier),
		Timestamp:     common.GetCurrentTimestamp(),
	}
}

// Handler consumes events. Returning an error keeps the entry pending on
// the stream bus so it is retried; the memory bus only logs it.
type Handler func(ctx context.Context, ev Event) error

// EventBus is the contract both implementations satisfy.
type EventBus interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(h Handler)
	Start(ctx context.Context) error
	Stop()
}

// Stream bus constants.
const (
	StreamKey     = "titan:events"
	DeadStreamKey = "titan:events:dead"
	ConsumerGroup = "titan-workers"
	StreamMaxLen  = 100000
	ClaimIdleMs   = 30000
	BlockMs       = 1000
	MaxDeliveries = 3
)
