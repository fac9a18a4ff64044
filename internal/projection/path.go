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

// Package projection walks submodel-element trees: idShortPath navigation,
// the $value/$metadata/$reference/$path projections, query modifiers and
// element CRUD. Everything in this package is a pure transformation; callers
// pass a freshly decoded document and persist the result themselves.
package projection

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/eclipse-basyx/titan-aas/internal/common"
)

// Segment is one parsed idShortPath token: an idShort plus any list indices
// applied to it, e.g. "Stack[0]" or "Matrix[1][2]".
type Segment struct {
	Name    string
	Indices []int
}

// String renders the segment back into path form.
func (s Segment) String() string {
	var b strings.Builder
	b.WriteString(s.Name)
	for _, i := range s.Indices {
		fmt.Fprintf(&b, "[%d]", i)
	}
	return b.String()
}

// ParsePath splits a dot-separated idShortPath into segments. List children
// are addressed as <idShort>[<index>]; nested lists stack indices.
func ParsePath(path string) ([]Segment, error) {
	if path == "" {
		return nil, common.NewErrBadRequest("idShortPath must not be empty").WithCode("Path.Invalid")
	}
	parts := strings.Split(path, ".")
	segs := make([]Segment, 0, len(parts))
	for _, part := range parts {
		seg, err := parseSegment(part)
		if err != nil {
			return nil, err
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

func parseSegment(tok string) (Segment, error) {
	open := strings.IndexByte(tok, '[')
	name := tok
	if open >= 0 {
		name = tok[:open]
	}
	if !isValidIdShort(name) {
		return Segment{}, common.NewErrBadRequest(fmt.Sprintf("invalid idShortPath segment %q", tok)).WithCode("Path.Invalid")
	}
	seg := Segment{Name: name}
	rest := ""
	if open >= 0 {
		rest = tok[open:]
	}
	for rest != "" {
		if rest[0] != '[' {
			return Segment{}, common.NewErrBadRequest(fmt.Sprintf("invalid index syntax in segment %q", tok)).WithCode("Path.Invalid")
		}
		close := strings.IndexByte(rest, ']')
		if close < 2 {
			return Segment{}, common.NewErrBadRequest(fmt.Sprintf("unterminated index in segment %q", tok)).WithCode("Path.Invalid")
		}
		idx, err := strconv.Atoi(rest[1:close])
		if err != nil || idx < 0 {
			return Segment{}, common.NewErrBadRequest(fmt.Sprintf("invalid list index in segment %q", tok)).WithCode("Path.Invalid")
		}
		seg.Indices = append(seg.Indices, idx)
		rest = rest[close+1:]
	}
	return seg, nil
}

// FormatPath joins segments back into an idShortPath.
func FormatPath(segs []Segment) string {
	parts := make([]string, len(segs))
	for i, s := range segs {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

func isValidIdShort(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
