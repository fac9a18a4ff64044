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
	"strings"
	"sync"
)

// QoSRegistry resolves per-topic QoS and retain flags. Patterns use MQTT
// wildcards: + matches one segment, # matches any suffix. The most recently
// registered matching pattern wins; unmatched topics get the default.
type QoSRegistry struct {
	mu             sync.RWMutex
	entries        []qosEntry
	defaultQoS     byte
	defaultRetain  bool
}

type qosEntry struct {
	pattern string
	qos     byte
	retain  bool
}

// NewQoSRegistry builds a registry with a fallback QoS and retain flag.
func NewQoSRegistry(defaultQoS byte, defaultRetain bool) *QoSRegistry {
	return &QoSRegistry{defaultQoS: defaultQoS, defaultRetain: defaultRetain}
}

// Register adds a pattern rule.
func (r *QoSRegistry) Register(pattern string, qos byte, retain bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, qosEntry{pattern: pattern, qos: qos, retain: retain})
}

// Lookup resolves a concrete topic.
func (r *QoSRegistry) Lookup(topic string) (byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.entries) - 1; i >= 0; i-- {
		if TopicMatches(r.entries[i].pattern, topic) {
			return r.entries[i].qos, r.entries[i].retain
		}
	}
	return r.defaultQoS, r.defaultRetain
}

// TopicMatches applies MQTT wildcard matching of a pattern to a topic.
func TopicMatches(pattern, topic string) bool {
	pp := strings.Split(pattern, "/")
	tp := strings.Split(topic, "/")
	for i, seg := range pp {
		if seg == "#" {
			return true
		}
		if i >= len(tp) {
			return false
		}
		if seg == "+" {
			continue
		}
		if seg != tp[i] {
			return false
		}
	}
	return len(pp) == len(tp)
}
