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

// Package common provides shared utilities for the Titan-AAS components:
// identifier encoding, typed API errors, configuration loading and database
// initialization.
package common

import (
	"encoding/json"
	"strings"
	"time"
)

// GetCurrentTimestamp returns the current time in RFC3339 format, the
// timestamp format of the messages[] envelope and event payloads.
func GetCurrentTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// NowUnixMicros returns the current time in unix microseconds, the ordering
// key of the document tables and the pagination cursor domain.
func NowUnixMicros() int64 {
	return time.Now().UnixMicro()
}

// NormalizeBasePath normalizes a context path: empty and "/" become "/",
// a leading slash is added when missing and trailing slashes are removed.
func NormalizeBasePath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimRight(p, "/")
}

// IsArrayNotEmpty reports whether a raw JSON value holds a non-empty,
// non-null value. Used when deciding whether a database JSON column carries
// content worth unmarshalling.
func IsArrayNotEmpty(data json.RawMessage) bool {
	return len(data) > 0 && string(data) != "null"
}
