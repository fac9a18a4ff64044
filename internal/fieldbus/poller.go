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

// Package fieldbus bridges field-level data points (OPC-UA nodes, Modbus
// registers) onto submodel-element values. A poller task per mapping reads
// the field periodically and commits debounced changes through the element
// write path; writable mappings additionally subscribe to element-value
// events and write changed values back to the field. The actual protocol
// client is injected behind FieldClient.
package fieldbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/eclipse-basyx/titan-aas/internal/common"
	"github.com/eclipse-basyx/titan-aas/internal/events"
)

// Mapping directions.
const (
	DirectionRead  = "read"
	DirectionWrite = "write"
	DirectionBoth  = "both"
)

// FieldClient reads and writes raw field values by node id or register
// address. Implementations wrap a protocol library; raw values are the
// unscaled numbers on the wire.
type FieldClient interface {
	Read(ctx context.Context, nodeOrRegister string) (float64, error)
	Write(ctx context.Context, nodeOrRegister string, raw float64) error
}

// ElementWriter is the slice of the element write path the poller commits
// through. Implemented by the API service.
type ElementWriter interface {
	UpdateElementValue(ctx context.Context, submodelID, idShortPath string, value json.RawMessage) error
}

// Poller runs one polling task per read-capable mapping and handles
// write-through for write-capable ones.
type Poller struct {
	client   FieldClient
	writer   ElementWriter
	mappings []common.FieldbusMapping

	mu          sync.Mutex
	lastWritten map[string]string // mapping key -> last value pushed to the field

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller wires the poller; tasks start on Start.
func NewPoller(client FieldClient, writer ElementWriter, mappings []common.FieldbusMapping) *Poller {
	return &Poller{client: client, writer: writer, mappings: mappings, lastWritten: make(map[string]string)}
}

// Start launches one polling goroutine per read or both mapping.
func (p *Poller) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	for _, m := range p.mappings {
		if m.Direction != DirectionRead && m.Direction != DirectionBoth {
			continue
		}
		p.wg.Add(1)
		go func(m common.FieldbusMapping) {
			defer p.wg.Done()
			p.pollLoop(ctx, m)
		}(m)
	}
}

// Stop cancels all polling tasks and waits for them to drain.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func mappingKey(submodelID, idShortPath string) string {
	return submodelID + "|" + idShortPath
}

// pollLoop reads one mapping at its interval. A changed value is committed
// only after debounceCount consecutive reads agree on it; read errors reset
// the streak and are logged, never fatal.
func (p *Poller) pollLoop(ctx context.Context, m common.FieldbusMapping) {
	interval := time.Duration(m.IntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	debounce := m.DebounceCount
	if debounce <= 0 {
		debounce = 1
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var committed, candidate string
	streak := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		raw, err := p.client.Read(ctx, m.NodeOrRegister)
		if err != nil {
			log.Printf("FIELD-READ %s failed: %v", m.NodeOrRegister, err)
			candidate, streak = "", 0
			continue
		}
		value := formatFieldValue(raw, m)
		if value == committed {
			candidate, streak = "", 0
			continue
		}
		if value != candidate {
			candidate, streak = value, 1
		} else {
			streak++
		}
		if streak < debounce {
			continue
		}

		doc, err := json.Marshal(value)
		if err != nil {
			continue
		}
		p.rememberWrite(m, value)
		if err := p.writer.UpdateElementValue(ctx, m.SubmodelID, m.IDShortPath, doc); err != nil {
			log.Printf("FIELD-COMMIT %s/%s failed: %v", m.SubmodelID, m.IDShortPath, err)
			p.forgetWrite(m)
			candidate, streak = "", 0
			continue
		}
		committed = value
		candidate, streak = "", 0
	}
}

// HandleEvent writes changed element values back to the field for write and
// both mappings. Values the poller itself just committed are skipped to
// avoid write echo. Satisfies events.Handler.
func (p *Poller) HandleEvent(ctx context.Context, ev events.Event) error {
	if ev.Entity != events.EntitySubmodelElement || ev.EventType != events.TypeUpdated {
		return nil
	}
	for _, m := range p.mappings {
		if m.Direction != DirectionWrite && m.Direction != DirectionBoth {
			continue
		}
		if m.SubmodelID != ev.Identifier || m.IDShortPath != ev.IDShortPath {
			continue
		}
		value, err := decodeElementValue(ev.ValueBytes)
		if err != nil {
			log.Printf("FIELD-WRITE %s/%s carries no usable value: %v", m.SubmodelID, m.IDShortPath, err)
			continue
		}
		if p.wasJustWritten(m, value) {
			continue
		}
		raw, err := parseFieldValue(value, m)
		if err != nil {
			log.Printf("FIELD-WRITE %s/%s value %q does not convert: %v", m.SubmodelID, m.IDShortPath, value, err)
			continue
		}
		if err := p.client.Write(ctx, m.NodeOrRegister, raw); err != nil {
			log.Printf("FIELD-WRITE %s to %s failed: %v", value, m.NodeOrRegister, err)
			continue
		}
		p.rememberWrite(m, value)
	}
	return nil
}

func (p *Poller) rememberWrite(m common.FieldbusMapping, value string) {
	p.mu.Lock()
	p.lastWritten[mappingKey(m.SubmodelID, m.IDShortPath)] = value
	p.mu.Unlock()
}

func (p *Poller) forgetWrite(m common.FieldbusMapping) {
	p.mu.Lock()
	delete(p.lastWritten, mappingKey(m.SubmodelID, m.IDShortPath))
	p.mu.Unlock()
}

func (p *Poller) wasJustWritten(m common.FieldbusMapping, value string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastWritten[mappingKey(m.SubmodelID, m.IDShortPath)] == value
}

// formatFieldValue applies scale and offset to a raw reading and renders it
// for the element value representation.
func formatFieldValue(raw float64, m common.FieldbusMapping) string {
	scale := m.ScaleFactor
	if scale == 0 {
		scale = 1
	}
	scaled := raw*scale + m.Offset
	switch strings.ToLower(m.DataType) {
	case "bool", "boolean", "xs:boolean":
		return strconv.FormatBool(scaled != 0)
	case "int", "integer", "xs:int", "xs:integer", "xs:long":
		return strconv.FormatInt(int64(math.Round(scaled)), 10)
	default:
		return strconv.FormatFloat(scaled, 'f', -1, 64)
	}
}

// parseFieldValue inverts formatFieldValue: the element value string back to
// the raw field number.
func parseFieldValue(value string, m common.FieldbusMapping) (float64, error) {
	var scaled float64
	switch strings.ToLower(m.DataType) {
	case "bool", "boolean", "xs:boolean":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return 0, err
		}
		if b {
			scaled = 1
		}
	default:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, err
		}
		scaled = f
	}
	scale := m.ScaleFactor
	if scale == 0 {
		scale = 1
	}
	return (scaled - m.Offset) / scale, nil
}

// decodeElementValue extracts the scalar carried by an element event: a
// JSON string, number or boolean.
func decodeElementValue(doc []byte) (string, error) {
	if len(doc) == 0 {
		return "", fmt.Errorf("empty value document")
	}
	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		return "", err
	}
	switch val := v.(type) {
	case string:
		return val, nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(val), nil
	}
	return "", fmt.Errorf("value is not a scalar")
}
