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

package fieldbus

import (
	"context"
	"sync"
)

// SimClient is an in-memory FieldClient used when no PLC is attached.
// Reads return the last written raw value, so write-through and polling can
// be exercised end to end against the same register map.
type SimClient struct {
	mu        sync.Mutex
	registers map[string]float64
}

// NewSimClient builds an empty register map; unknown registers read as zero.
func NewSimClient() *SimClient {
	return &SimClient{registers: make(map[string]float64)}
}

// Read returns the current raw value of the register.
func (c *SimClient) Read(_ context.Context, nodeOrRegister string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registers[nodeOrRegister], nil
}

// Write stores the raw value.
func (c *SimClient) Write(_ context.Context, nodeOrRegister string, raw float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registers[nodeOrRegister] = raw
	return nil
}
