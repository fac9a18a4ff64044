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

// Package repository is the persistence layer: one Postgres-backed document
// store per entity type, plus asset links for the discovery surface and the
// AASX package catalog. Documents are stored as canonical bytes next to
// their ETag; list reads assemble the whole page envelope inside SQL.
package repository

import (
	"context"
)

// ListFilter narrows a paged listing. SemanticID, Kind, GlobalAssetID and
// AssetKind are pushed down into SQL; IDShort forces the slow path.
type ListFilter struct {
	IDShort       string
	SemanticID    string
	Kind          string
	GlobalAssetID string
	AssetKind     string
}

// pushedDown reports whether the filter can be fully expressed in SQL.
func (f ListFilter) pushedDown() bool {
	return f.IDShort == ""
}

// empty reports whether no filter is set at all.
func (f ListFilter) empty() bool {
	return f == ListFilter{}
}

// DocumentStore is the generic byte-level contract every entity repository
// builds on.
type DocumentStore interface {
	// GetBytes returns the stored canonical bytes and ETag without parsing.
	GetBytes(ctx context.Context, identifier string) ([]byte, string, error)
	// CreateBytes inserts canonical bytes under an identifier; Conflict when
	// the identifier exists.
	CreateBytes(ctx context.Context, identifier string, docBytes []byte, etag string, cols map[string]any) error
	// UpdateBytes replaces the stored bytes; NotFound when absent. A
	// non-empty ifMatch is checked against the row's current ETag under the
	// row lock; a mismatch is a PreconditionFailed.
	UpdateBytes(ctx context.Context, identifier string, docBytes []byte, etag, ifMatch string, cols map[string]any) error
	// DeleteBytes removes the row; the bool reports whether a row existed.
	DeleteBytes(ctx context.Context, identifier string) (bool, error)
	// Exists probes for the identifier.
	Exists(ctx context.Context, identifier string) (bool, error)
	// ListPagedBytes returns the complete page envelope
	// {"result":[...],"paging_metadata":{"cursor":...}} as bytes.
	ListPagedBytes(ctx context.Context, limit int, cursor string, filter ListFilter) ([]byte, error)
}

// DefaultPageLimit applies when a list request carries no limit.
const DefaultPageLimit = 100

// MaxPageLimit caps a single page.
const MaxPageLimit = 1000

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageLimit
	}
	if limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}
