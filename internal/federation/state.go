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

package federation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/eclipse-basyx/titan-aas/internal/common"
)

// SyncLogEntry is one push or pull outcome recorded per peer and entity.
type SyncLogEntry struct {
	PeerID     string `json:"peerId"`
	Direction  string `json:"direction"`
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
	Outcome    string `json:"outcome"`
	Detail     string `json:"detail,omitempty"`
	SyncedAt   int64  `json:"syncedAt"`
}

// StateStore persists federation state across restarts: the peer set, the
// sync log and detected conflicts. Write-throughs are best-effort; failures
// are logged and never fail the sync path. A nil store keeps everything in
// memory.
type StateStore interface {
	SavePeer(ctx context.Context, p Peer) error
	DeletePeer(ctx context.Context, peerID string) error
	LoadPeers(ctx context.Context) ([]Peer, error)
	SaveConflict(ctx context.Context, info ConflictInfo) error
	MarkConflictResolved(ctx context.Context, conflictID, strategy string) error
	LoadOpenConflicts(ctx context.Context) ([]ConflictInfo, error)
	AppendSyncLog(ctx context.Context, entry SyncLogEntry) error
}

// PostgresStateStore keeps federation state in the federation_peers,
// federation_sync_log and federation_conflicts tables.
type PostgresStateStore struct {
	db *sql.DB
}

// NewPostgresStateStore binds the state store to a database pool.
func NewPostgresStateStore(db *sql.DB) *PostgresStateStore {
	return &PostgresStateStore{db: db}
}

// SavePeer upserts one peer row.
func (s *PostgresStateStore) SavePeer(ctx context.Context, p Peer) error {
	caps, err := json.Marshal(p.Capabilities)
	if err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-FEDST-PEER-CAPS capabilities do not marshal: %s", err))
	}
	query, args, err := goqu.Insert("federation_peers").Rows(goqu.Record{
		"peer_id":      p.ID,
		"base_url":     p.BaseURL,
		"capabilities": string(caps),
		"status":       p.Status,
		"last_seen":    p.LastSeen,
		"last_sync":    p.LastSync.UnixMicro(),
	}).OnConflict(goqu.DoUpdate("peer_id", goqu.Record{
		"base_url":     p.BaseURL,
		"capabilities": string(caps),
		"status":       p.Status,
		"last_seen":    p.LastSeen,
		"last_sync":    p.LastSync.UnixMicro(),
	})).ToSQL()
	if err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-FEDST-PEER-BUILDSQL failed to build upsert: %s", err))
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-FEDST-PEER-EXEC failed to upsert peer row: %s", err))
	}
	return nil
}

// DeletePeer removes one peer row.
func (s *PostgresStateStore) DeletePeer(ctx context.Context, peerID string) error {
	query, args, err := goqu.Delete("federation_peers").Where(goqu.Ex{"peer_id": peerID}).ToSQL()
	if err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-FEDST-PEERDEL-BUILDSQL failed to build delete: %s", err))
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-FEDST-PEERDEL-EXEC failed to delete peer row: %s", err))
	}
	return nil
}

// LoadPeers returns every persisted peer.
func (s *PostgresStateStore) LoadPeers(ctx context.Context) ([]Peer, error) {
	query, args, err := goqu.From("federation_peers").
		Select(goqu.C("peer_id"), goqu.C("base_url"), goqu.C("capabilities"),
			goqu.C("status"), goqu.C("last_seen"), goqu.C("last_sync")).
		ToSQL()
	if err != nil {
		return nil, common.NewInternalServerError(fmt.Sprintf("TITAN-FEDST-PEERS-BUILDSQL failed to build query: %s", err))
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.NewInternalServerError(fmt.Sprintf("TITAN-FEDST-PEERS-EXEC failed to query peers: %s", err))
	}
	defer func() { _ = rows.Close() }()

	var out []Peer
	for rows.Next() {
		var p Peer
		var caps string
		var lastSync int64
		if err := rows.Scan(&p.ID, &p.BaseURL, &caps, &p.Status, &p.LastSeen, &lastSync); err != nil {
			return nil, common.NewInternalServerError(fmt.Sprintf("TITAN-FEDST-PEERS-SCAN failed to scan peer row: %s", err))
		}
		if caps != "" {
			if err := json.Unmarshal([]byte(caps), &p.Capabilities); err != nil {
				return nil, common.NewInternalServerError(fmt.Sprintf("TITAN-FEDST-PEERS-CAPS capabilities of %q do not parse: %s", p.ID, err))
			}
		}
		p.LastSync = time.UnixMicro(lastSync).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveConflict upserts one open conflict row. The document payloads stay in
// memory; only the detection metadata survives a restart.
func (s *PostgresStateStore) SaveConflict(ctx context.Context, info ConflictInfo) error {
	query, args, err := goqu.Insert("federation_conflicts").Rows(goqu.Record{
		"conflict_id": info.ID,
		"peer_id":     info.PeerID,
		"entity_type": info.EntityType,
		"entity_id":   info.EntityID,
		"local_etag":  info.LocalETag,
		"remote_etag": info.RemoteETag,
		"detected_at": info.DetectedAt.Format(time.RFC3339),
		"resolved":    false,
		"strategy":    "",
	}).OnConflict(goqu.DoUpdate("conflict_id", goqu.Record{
		"local_etag":  info.LocalETag,
		"remote_etag": info.RemoteETag,
		"detected_at": info.DetectedAt.Format(time.RFC3339),
		"resolved":    false,
		"strategy":    "",
	})).ToSQL()
	if err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-FEDST-CONF-BUILDSQL failed to build upsert: %s", err))
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-FEDST-CONF-EXEC failed to upsert conflict row: %s", err))
	}
	return nil
}

// MarkConflictResolved flags a conflict row with the applied strategy.
func (s *PostgresStateStore) MarkConflictResolved(ctx context.Context, conflictID, strategy string) error {
	query, args, err := goqu.Update("federation_conflicts").
		Set(goqu.Record{"resolved": true, "strategy": strategy}).
		Where(goqu.Ex{"conflict_id": conflictID}).
		ToSQL()
	if err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-FEDST-CONFRES-BUILDSQL failed to build update: %s", err))
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-FEDST-CONFRES-EXEC failed to update conflict row: %s", err))
	}
	return nil
}

// LoadOpenConflicts returns unresolved conflict rows.
func (s *PostgresStateStore) LoadOpenConflicts(ctx context.Context) ([]ConflictInfo, error) {
	query, args, err := goqu.From("federation_conflicts").
		Select(goqu.C("conflict_id"), goqu.C("peer_id"), goqu.C("entity_type"),
			goqu.C("entity_id"), goqu.C("local_etag"), goqu.C("remote_etag"), goqu.C("detected_at")).
		Where(goqu.Ex{"resolved": false}).
		ToSQL()
	if err != nil {
		return nil, common.NewInternalServerError(fmt.Sprintf("TITAN-FEDST-CONFS-BUILDSQL failed to build query: %s", err))
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.NewInternalServerError(fmt.Sprintf("TITAN-FEDST-CONFS-EXEC failed to query conflicts: %s", err))
	}
	defer func() { _ = rows.Close() }()

	var out []ConflictInfo
	for rows.Next() {
		var info ConflictInfo
		var detected string
		if err := rows.Scan(&info.ID, &info.PeerID, &info.EntityType, &info.EntityID,
			&info.LocalETag, &info.RemoteETag, &detected); err != nil {
			return nil, common.NewInternalServerError(fmt.Sprintf("TITAN-FEDST-CONFS-SCAN failed to scan conflict row: %s", err))
		}
		if ts, err := time.Parse(time.RFC3339, detected); err == nil {
			info.DetectedAt = ts
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// AppendSyncLog records one sync outcome.
func (s *PostgresStateStore) AppendSyncLog(ctx context.Context, entry SyncLogEntry) error {
	query, args, err := goqu.Insert("federation_sync_log").Rows(goqu.Record{
		"peer_id":     entry.PeerID,
		"direction":   entry.Direction,
		"entity_type": entry.EntityType,
		"entity_id":   entry.EntityID,
		"outcome":     entry.Outcome,
		"detail":      entry.Detail,
		"synced_at":   entry.SyncedAt,
	}).ToSQL()
	if err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-FEDST-LOG-BUILDSQL failed to build insert: %s", err))
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-FEDST-LOG-EXEC failed to insert sync log row: %s", err))
	}
	return nil
}

// RecentSyncLog returns the newest log entries, optionally filtered by peer.
func (s *PostgresStateStore) RecentSyncLog(ctx context.Context, peerID string, limit int) ([]SyncLogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := goqu.From("federation_sync_log").
		Select(goqu.C("peer_id"), goqu.C("direction"), goqu.C("entity_type"),
			goqu.C("entity_id"), goqu.C("outcome"), goqu.C("detail"), goqu.C("synced_at")).
		Order(goqu.I("synced_at").Desc()).
		Limit(uint(limit))
	if peerID != "" {
		q = q.Where(goqu.Ex{"peer_id": peerID})
	}
	query, args, err := q.ToSQL()
	if err != nil {
		return nil, common.NewInternalServerError(fmt.Sprintf("TITAN-FEDST-LOGQ-BUILDSQL failed to build query: %s", err))
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.NewInternalServerError(fmt.Sprintf("TITAN-FEDST-LOGQ-EXEC failed to query sync log: %s", err))
	}
	defer func() { _ = rows.Close() }()

	var out []SyncLogEntry
	for rows.Next() {
		var e SyncLogEntry
		if err := rows.Scan(&e.PeerID, &e.Direction, &e.EntityType, &e.EntityID, &e.Outcome, &e.Detail, &e.SyncedAt); err != nil {
			return nil, common.NewInternalServerError(fmt.Sprintf("TITAN-FEDST-LOGQ-SCAN failed to scan sync log row: %s", err))
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
