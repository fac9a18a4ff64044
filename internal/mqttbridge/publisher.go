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

// Package mqttbridge mirrors entity change events onto an MQTT broker and
// accepts element value writes from it. The broker connection is owned by a
// single connection manager with explicit reconnect backoff; per-topic QoS
// and retain flags come from a wildcard-capable registry.
package mqttbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/eclipse-basyx/titan-aas/internal/common"
	"github.com/eclipse-basyx/titan-aas/internal/events"
)

// Connection states.
const (
	StateDisconnected = "DISCONNECTED"
	StateConnecting   = "CONNECTING"
	StateConnected    = "CONNECTED"
	StateReconnecting = "RECONNECTING"
	StateFailed       = "FAILED"
)

// Client is the slice of the paho client the bridge uses. Narrowed for
// testability.
type Client interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Disconnect(quiesce uint)
	IsConnected() bool
}

// ReconnectPolicy shapes the backoff between connection attempts.
type ReconnectPolicy struct {
	Initial     time.Duration
	Max         time.Duration
	Multiplier  float64
	MaxAttempts int
}

// DefaultReconnectPolicy matches the configuration defaults.
var DefaultReconnectPolicy = ReconnectPolicy{
	Initial:     500 * time.Millisecond,
	Max:         30 * time.Second,
	Multiplier:  2.0,
	MaxAttempts: 10,
}

func (p ReconnectPolicy) delay(attempt int) time.Duration {
	d := p.Initial
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
		if d >= p.Max {
			return p.Max
		}
	}
	return d
}

// Publisher owns the broker connection and publishes event envelopes onto
// the titan topic tree.
type Publisher struct {
	client Client
	policy ReconnectPolicy
	qos    *QoSRegistry

	mu       sync.Mutex
	state    string
	attempts int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPublisher builds a publisher around a connected-or-not client.
func NewPublisher(client Client, policy ReconnectPolicy, qos *QoSRegistry) *Publisher {
	if policy.Initial <= 0 {
		policy = DefaultReconnectPolicy
	}
	if qos == nil {
		qos = NewQoSRegistry(0, false)
	}
	return &Publisher{client: client, policy: policy, qos: qos, state: StateDisconnected}
}

// State returns the current connection state.
func (p *Publisher) State() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Publisher) setState(s string) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Start connects and keeps reconnecting in the background until the policy
// gives up.
func (p *Publisher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.connectLoop(ctx)
	}()
}

// Stop disconnects and halts the reconnect loop.
func (p *Publisher) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
	p.setState(StateDisconnected)
}

func (p *Publisher) connectLoop(ctx context.Context) {
	first := true
	for {
		if ctx.Err() != nil {
			return
		}
		if first {
			p.setState(StateConnecting)
		} else {
			p.setState(StateReconnecting)
		}
		token := p.client.Connect()
		token.Wait()
		if token.Error() == nil {
			p.mu.Lock()
			p.state = StateConnected
			p.attempts = 0
			p.mu.Unlock()
			log.Printf("MQTT-CONNECTED broker connection established")
			p.watchConnection(ctx)
			if ctx.Err() != nil {
				return
			}
			first = false
			continue
		}

		p.mu.Lock()
		p.attempts++
		attempts := p.attempts
		p.mu.Unlock()
		if attempts >= p.policy.MaxAttempts {
			p.setState(StateFailed)
			log.Printf("MQTT-FAILED giving up after %d connection attempts: %v", attempts, token.Error())
			return
		}
		delay := p.policy.delay(attempts - 1)
		log.Printf("MQTT-RETRY attempt %d failed (%v), retrying in %s", attempts, token.Error(), delay)
		first = false
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// watchConnection polls the live connection and returns when it drops so
// the loop can reconnect.
func (p *Publisher) watchConnection(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !p.client.IsConnected() {
				log.Printf("MQTT-DROPPED broker connection lost")
				return
			}
		}
	}
}

// Publish sends a payload on a topic with QoS and retain from the registry.
// Publishing while not connected surfaces an error.
func (p *Publisher) Publish(topic string, payload []byte) error {
	p.mu.Lock()
	state := p.state
	p.mu.Unlock()
	if state == StateFailed {
		return common.NewErrUnavailable("mqtt connection permanently failed").WithCode("Mqtt.Failed")
	}
	if state != StateConnected {
		return common.NewErrUnavailable(fmt.Sprintf("mqtt not connected (state %s)", state)).WithCode("Mqtt.NotConnected")
	}
	qos, retain := p.qos.Lookup(topic)
	token := p.client.Publish(topic, qos, retain, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish on %s: %w", topic, err)
	}
	return nil
}

// HandleEvent maps an event to its topic and publishes the JSON envelope.
// Satisfies events.Handler; publish failures are logged, not retried, so a
// flaky broker cannot wedge the stream consumer.
func (p *Publisher) HandleEvent(_ context.Context, ev events.Event) error {
	topic, ok := TopicFor(ev)
	if !ok {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("MQTT-MARSHAL event %s does not marshal: %v", ev.EventID, err)
		return nil
	}
	if err := p.Publish(topic, payload); err != nil {
		log.Printf("MQTT-PUBLISH failed on %s: %v", topic, err)
	}
	return nil
}

// TopicFor renders the topic of an event; ok is false for entities the
// bridge does not mirror.
func TopicFor(ev events.Event) (string, bool) {
	switch ev.Entity {
	case events.EntityAAS:
		return fmt.Sprintf("titan/aas/%s/%s", ev.IdentifierB64, ev.EventType), true
	case events.EntitySubmodel:
		return fmt.Sprintf("titan/submodel/%s/%s", ev.IdentifierB64, ev.EventType), true
	case events.EntitySubmodelElement:
		return fmt.Sprintf("titan/element/%s/%s/%s", ev.IdentifierB64, ev.IDShortPath, ev.EventType), true
	}
	return "", false
}
