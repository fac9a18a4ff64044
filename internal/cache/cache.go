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

// Package cache is the Redis read-through layer in front of the document
// repositories. Two keyspaces: whole documents with their ETag, and element
// values under a shorter TTL. A cache miss is never authoritative; callers
// always fall back to storage.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entity prefixes of the document keyspace.
const (
	EntityAAS      = "aas"
	EntitySubmodel = "submodel"
	EntityCD       = "cd"
)

// DocCache caches canonical document bytes and element values in Redis.
type DocCache struct {
	rdb     *redis.Client
	docTTL  time.Duration
	elemTTL time.Duration
}

// New builds a cache on an existing Redis client.
func New(rdb *redis.Client, docTTL, elemTTL time.Duration) *DocCache {
	if docTTL <= 0 {
		docTTL = 60 * time.Second
	}
	if elemTTL <= 0 {
		elemTTL = 10 * time.Second
	}
	return &DocCache{rdb: rdb, docTTL: docTTL, elemTTL: elemTTL}
}

func docKey(entity, idB64 string) string { return entity + ":" + idB64 }
func elemKey(idB64, path string) string { return "elem:" + idB64 + ":" + path }
func elemPattern(idB64 string) string { return "elem:" + idB64 + ":*" }

// GetDoc returns cached bytes and ETag; ok is false on miss. Redis errors
// degrade to a miss.
func (c *DocCache) GetDoc(ctx context.Context, entity, idB64 string) ([]byte, string, bool) {
	raw, err := c.rdb.Get(ctx, docKey(entity, idB64)).Result()
	if err != nil {
		return nil, "", false
	}
	etag, doc, found := strings.Cut(raw, "\n")
	if !found {
		return nil, "", false
	}
	return []byte(doc), etag, true
}

// SetDoc stores bytes and ETag under the document TTL. The ETag rides in
// front of the payload, newline-separated.
func (c *DocCache) SetDoc(ctx context.Context, entity, idB64 string, docBytes []byte, etag string) error {
	val := etag + "\n" + string(docBytes)
	if err := c.rdb.Set(ctx, docKey(entity, idB64), val, c.docTTL).Err(); err != nil {
		return fmt.Errorf("cache set %s:%s: %w", entity, idB64, err)
	}
	return nil
}

// DeleteDoc drops the document key.
func (c *DocCache) DeleteDoc(ctx context.Context, entity, idB64 string) error {
	if err := c.rdb.Del(ctx, docKey(entity, idB64)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("cache del %s:%s: %w", entity, idB64, err)
	}
	return nil
}

// GetElemValue returns a cached element value projection; ok false on miss.
func (c *DocCache) GetElemValue(ctx context.Context, submodelIDB64, idShortPath string) ([]byte, bool) {
	raw, err := c.rdb.Get(ctx, elemKey(submodelIDB64, idShortPath)).Bytes()
	if err != nil {
		return nil, false
	}
	return raw, true
}

// SetElemValue stores an element value projection under the element TTL.
func (c *DocCache) SetElemValue(ctx context.Context, submodelIDB64, idShortPath string, valueBytes []byte) error {
	if err := c.rdb.Set(ctx, elemKey(submodelIDB64, idShortPath), valueBytes, c.elemTTL).Err(); err != nil {
		return fmt.Errorf("cache set elem %s:%s: %w", submodelIDB64, idShortPath, err)
	}
	return nil
}

// InvalidateElements sweeps every element-value key of a submodel. SCAN is
// used instead of KEYS so the sweep does not block Redis.
func (c *DocCache) InvalidateElements(ctx context.Context, submodelIDB64 string) error {
	iter := c.rdb.Scan(ctx, 0, elemPattern(submodelIDB64), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan elems %s: %w", submodelIDB64, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache del elems %s: %w", submodelIDB64, err)
	}
	return nil
}

// InvalidateSubmodel drops the submodel document key and every element key,
// the write-path invalidation for document-level writes.
func (c *DocCache) InvalidateSubmodel(ctx context.Context, idB64 string) error {
	if err := c.DeleteDoc(ctx, EntitySubmodel, idB64); err != nil {
		return err
	}
	return c.InvalidateElements(ctx, idB64)
}
