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

package mqttbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/eclipse-basyx/titan-aas/internal/common"
)

// MessageHandler consumes one inbound message. Errors are logged and the
// message is dropped; the subscriber never influences broker redelivery.
type MessageHandler func(ctx context.Context, topic string, payload []byte) error

// Dispatcher routes inbound messages to handlers by wildcard pattern.
type Dispatcher struct {
	mu      sync.RWMutex
	routes  []dispatchRoute
	client  Client
	qos     byte
}

type dispatchRoute struct {
	pattern string
	handler MessageHandler
}

// NewDispatcher builds a dispatcher subscribing with the given QoS.
func NewDispatcher(client Client, qos byte) *Dispatcher {
	return &Dispatcher{client: client, qos: qos}
}

// Handle registers a handler for a topic pattern.
func (d *Dispatcher) Handle(pattern string, h MessageHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes = append(d.routes, dispatchRoute{pattern: pattern, handler: h})
}

// Subscribe attaches every registered pattern on the broker connection.
func (d *Dispatcher) Subscribe() error {
	d.mu.RLock()
	routes := d.routes
	d.mu.RUnlock()
	for _, route := range routes {
		token := d.client.Subscribe(route.pattern, d.qos, d.onMessage)
		token.Wait()
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt subscribe %s: %w", route.pattern, err)
		}
		log.Printf("MQTT-SUBSCRIBED %s", route.pattern)
	}
	return nil
}

func (d *Dispatcher) onMessage(_ mqtt.Client, msg mqtt.Message) {
	d.Dispatch(context.Background(), msg.Topic(), msg.Payload())
}

// Dispatch finds the matching handlers and runs them. Exposed for tests and
// for fake clients that bypass paho.
func (d *Dispatcher) Dispatch(ctx context.Context, topic string, payload []byte) {
	d.mu.RLock()
	routes := d.routes
	d.mu.RUnlock()
	for _, route := range routes {
		if !TopicMatches(route.pattern, topic) {
			continue
		}
		if err := route.handler(ctx, topic, payload); err != nil {
			log.Printf("MQTT-HANDLER %s on %s: %v", route.pattern, topic, err)
		}
	}
}

// ElementWriter applies an element value write; the API service implements
// it on top of the repository, cache and event bus.
type ElementWriter interface {
	UpdateElementValue(ctx context.Context, submodelID, idShortPath string, value json.RawMessage) error
}

// ElementValueTopicPattern is the inbound write topic.
const ElementValueTopicPattern = "titan/element/+/+/value"

// ElementValueHandler decodes titan/element/{idB64}/{path}/value messages
// and writes the value through. The payload is either a bare JSON scalar or
// an object {"value": ..., "valueType": ...}; the object form wins when
// both parses succeed.
func ElementValueHandler(writer ElementWriter) MessageHandler {
	return func(ctx context.Context, topic string, payload []byte) error {
		idB64, path, err := parseElementValueTopic(topic)
		if err != nil {
			return err
		}
		submodelID, err := common.DecodeIdentifier(idB64)
		if err != nil {
			return fmt.Errorf("element write topic %s: %w", topic, err)
		}
		value, err := extractValue(payload)
		if err != nil {
			return fmt.Errorf("element write on %s: %w", topic, err)
		}
		return writer.UpdateElementValue(ctx, submodelID, path, value)
	}
}

func parseElementValueTopic(topic string) (idB64, path string, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[0] != "titan" || parts[1] != "element" || parts[4] != "value" {
		return "", "", fmt.Errorf("unexpected element write topic %q", topic)
	}
	return parts[2], parts[3], nil
}

// extractValue unwraps the {"value": ...} envelope when present; any other
// valid JSON passes through as the raw value.
func extractValue(payload []byte) (json.RawMessage, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(payload, &probe); err == nil {
		if v, ok := probe["value"]; ok {
			return v, nil
		}
		return nil, fmt.Errorf("object payload carries no value member")
	}
	if !json.Valid(payload) {
		return nil, fmt.Errorf("payload is not valid JSON")
	}
	return json.RawMessage(payload), nil
}
