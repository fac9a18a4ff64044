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

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // Postgres dialect for goqu
	_ "github.com/lib/pq"                               // PostgreSQL driver

	"github.com/eclipse-basyx/titan-aas/internal/common"
)

// pgDocStore is the shared Postgres implementation behind the three entity
// repositories. Each instance is bound to one table; the filter column set
// differs per table and unknown filters are simply not pushed down.
type pgDocStore struct {
	db    *sql.DB
	table string
	// filterColumns maps ListFilter fields to SQL columns present on this
	// table. Absent mappings disable the filter for this entity.
	filterColumns map[string]string
}

func newPgDocStore(db *sql.DB, table string, filterColumns map[string]string) *pgDocStore {
	return &pgDocStore{db: db, table: table, filterColumns: filterColumns}
}

// GetBytes returns the stored canonical bytes and ETag without parsing.
func (s *pgDocStore) GetBytes(ctx context.Context, identifier string) ([]byte, string, error) {
	query, args, err := goqu.From(s.table).
		Select(goqu.C("doc_bytes"), goqu.C("etag")).
		Where(goqu.Ex{"identifier": identifier}).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, "", common.NewInternalServerError(fmt.Sprintf("TITAN-REPO-GET-BUILDSQL failed to build query: %s", err))
	}
	var doc string
	var etag string
	row := s.db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&doc, &etag); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", common.NewErrNotFound(fmt.Sprintf("no %s entry for identifier %q", s.table, identifier))
		}
		return nil, "", common.NewInternalServerError(fmt.Sprintf("TITAN-REPO-GET-SCAN failed to read %s row: %s", s.table, err))
	}
	return []byte(doc), etag, nil
}

// CreateBytes inserts a document row. The identifier existing is a Conflict.
func (s *pgDocStore) CreateBytes(ctx context.Context, identifier string, docBytes []byte, etag string, cols map[string]any) error {
	now := common.NowUnixMicros()
	rec := goqu.Record{
		"identifier":     identifier,
		"identifier_b64": common.EncodeIdentifier(identifier),
		"doc_bytes":      string(docBytes),
		"etag":           etag,
		"created_at":     now,
		"updated_at":     now,
	}
	for k, v := range cols {
		rec[k] = v
	}
	query, args, err := goqu.Insert(s.table).Rows(rec).ToSQL()
	if err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-REPO-CREATE-BUILDSQL failed to build insert: %s", err))
	}
	exists, err := s.Exists(ctx, identifier)
	if err != nil {
		return err
	}
	if exists {
		return common.NewErrConflict(fmt.Sprintf("identifier %q already exists - use PUT for replacement", identifier))
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-REPO-CREATE-EXEC failed to insert into %s: %s", s.table, err))
	}
	return nil
}

// UpdateBytes replaces the stored document inside a transaction; the row is
// locked FOR UPDATE so concurrent writers serialize per identifier. A
// non-empty ifMatch is compared against the locked row's ETag, so a stale
// precondition fails even when writers race.
func (s *pgDocStore) UpdateBytes(ctx context.Context, identifier string, docBytes []byte, etag, ifMatch string, cols map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-REPO-UPDATE-BEGIN failed to begin transaction: %s", err))
	}
	defer func() { _ = tx.Rollback() }()

	var prevEtag string
	lockQuery := fmt.Sprintf("SELECT etag FROM %s WHERE identifier = $1 FOR UPDATE", s.table)
	if err := tx.QueryRowContext(ctx, lockQuery, identifier).Scan(&prevEtag); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.NewErrNotFound(fmt.Sprintf("no %s entry for identifier %q", s.table, identifier))
		}
		return common.NewInternalServerError(fmt.Sprintf("TITAN-REPO-UPDATE-LOCK failed to lock %s row: %s", s.table, err))
	}
	if ifMatch != "" && ifMatch != prevEtag {
		return common.NewErrPreconditionFailed(fmt.Sprintf("stored %s version changed since read", s.table))
	}

	rec := goqu.Record{
		"doc_bytes":  string(docBytes),
		"etag":       etag,
		"updated_at": common.NowUnixMicros(),
	}
	for k, v := range cols {
		rec[k] = v
	}
	query, args, err := goqu.Update(s.table).Set(rec).Where(goqu.Ex{"identifier": identifier}).ToSQL()
	if err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-REPO-UPDATE-BUILDSQL failed to build update: %s", err))
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-REPO-UPDATE-EXEC failed to update %s: %s", s.table, err))
	}
	if err := tx.Commit(); err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-REPO-UPDATE-COMMIT failed to commit: %s", err))
	}
	return nil
}

// DeleteBytes removes the row; deletion is idempotent.
func (s *pgDocStore) DeleteBytes(ctx context.Context, identifier string) (bool, error) {
	query, args, err := goqu.Delete(s.table).Where(goqu.Ex{"identifier": identifier}).ToSQL()
	if err != nil {
		return false, common.NewInternalServerError(fmt.Sprintf("TITAN-REPO-DELETE-BUILDSQL failed to build delete: %s", err))
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, common.NewInternalServerError(fmt.Sprintf("TITAN-REPO-DELETE-EXEC failed to delete from %s: %s", s.table, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, common.NewInternalServerError(fmt.Sprintf("TITAN-REPO-DELETE-ROWS failed to read affected rows: %s", err))
	}
	return n > 0, nil
}

// Exists probes for the identifier.
func (s *pgDocStore) Exists(ctx context.Context, identifier string) (bool, error) {
	query, args, err := goqu.From(s.table).
		Select(goqu.L("1")).
		Where(goqu.Ex{"identifier": identifier}).
		Limit(1).
		ToSQL()
	if err != nil {
		return false, common.NewInternalServerError(fmt.Sprintf("TITAN-REPO-EXISTS-BUILDSQL failed to build query: %s", err))
	}
	var one int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, common.NewInternalServerError(fmt.Sprintf("TITAN-REPO-EXISTS-SCAN failed to probe %s: %s", s.table, err))
	}
	return true, nil
}

// ListPagedBytes returns the page envelope as one byte string. With only
// pushed-down filters the envelope is assembled entirely inside SQL; an
// IDShort filter loads candidate rows and rebuilds the envelope in memory.
func (s *pgDocStore) ListPagedBytes(ctx context.Context, limit int, cursor string, filter ListFilter) ([]byte, error) {
	limit = clampLimit(limit)
	where, args, err := s.buildWhere(cursor, filter)
	if err != nil {
		return nil, err
	}
	if filter.pushedDown() {
		return s.listFastPath(ctx, limit, where, args)
	}
	return s.listSlowPath(ctx, limit, where, args, filter)
}

// buildWhere renders the pushed-down predicates. The IDShort filter is
// deliberately not rendered; the slow path applies it in memory.
func (s *pgDocStore) buildWhere(cursor string, filter ListFilter) (string, []any, error) {
	conds := []string{}
	args := []any{}
	if cursor != "" {
		after, err := common.ParseCursorToID(cursor)
		if err != nil {
			return "", nil, common.NewErrBadRequest(fmt.Sprintf("invalid cursor %q", cursor)).WithCode("Cursor.Invalid")
		}
		args = append(args, after)
		conds = append(conds, fmt.Sprintf("created_at > $%d", len(args)))
	}
	for field, value := range map[string]string{
		"semantic_id":     filter.SemanticID,
		"kind":            filter.Kind,
		"global_asset_id": filter.GlobalAssetID,
		"asset_kind":      filter.AssetKind,
	} {
		if value == "" {
			continue
		}
		col, ok := s.filterColumns[field]
		if !ok {
			continue
		}
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if len(conds) == 0 {
		return "", args, nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args, nil
}

// listFastPath assembles the envelope inside Postgres. The page CTE peeks
// one row past the limit so the cursor is emitted only when more rows
// follow.
func (s *pgDocStore) listFastPath(ctx context.Context, limit int, where string, args []any) ([]byte, error) {
	args = append(args, limit)
	limitArg := len(args)
	query := fmt.Sprintf(`
WITH page AS (
	SELECT doc_bytes, created_at FROM %s %s ORDER BY created_at ASC LIMIT $%d + 1
), lim AS (
	SELECT doc_bytes, created_at FROM page ORDER BY created_at ASC LIMIT $%d
)
SELECT '{"result":[' || COALESCE((SELECT string_agg(lim.doc_bytes, ',' ORDER BY lim.created_at) FROM lim), '')
	|| '],"paging_metadata":{"cursor":'
	|| CASE WHEN (SELECT count(*) FROM page) > $%d
		THEN '"' || (SELECT max(lim.created_at) FROM lim)::text || '"'
		ELSE 'null' END
	|| '}}'`, s.table, where, limitArg, limitArg, limitArg)

	var envelope string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&envelope); err != nil {
		return nil, common.NewInternalServerError(fmt.Sprintf("TITAN-REPO-LIST-FAST failed to assemble page for %s: %s", s.table, err))
	}
	return []byte(envelope), nil
}

// listSlowPath loads candidate rows and filters in memory on the id_short
// column, then rebuilds the identical envelope shape.
func (s *pgDocStore) listSlowPath(ctx context.Context, limit int, where string, args []any, filter ListFilter) ([]byte, error) {
	query := fmt.Sprintf(
		"SELECT doc_bytes, created_at, id_short FROM %s %s ORDER BY created_at ASC",
		s.table, where)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.NewInternalServerError(fmt.Sprintf("TITAN-REPO-LIST-SLOW failed to query %s: %s", s.table, err))
	}
	defer func() { _ = rows.Close() }()

	var docs []string
	var lastCreated int64
	more := false
	for rows.Next() {
		var doc string
		var created int64
		var idShort sql.NullString
		if err := rows.Scan(&doc, &created, &idShort); err != nil {
			return nil, common.NewInternalServerError(fmt.Sprintf("TITAN-REPO-LIST-SCAN failed to scan %s row: %s", s.table, err))
		}
		if filter.IDShort != "" && idShort.String != filter.IDShort {
			continue
		}
		if len(docs) == limit {
			more = true
			break
		}
		docs = append(docs, doc)
		lastCreated = created
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewInternalServerError(fmt.Sprintf("TITAN-REPO-LIST-ITER failed to iterate %s rows: %s", s.table, err))
	}

	var b strings.Builder
	b.WriteString(`{"result":[`)
	b.WriteString(strings.Join(docs, ","))
	b.WriteString(`],"paging_metadata":{"cursor":`)
	if more {
		fmt.Fprintf(&b, "%q", fmt.Sprintf("%d", lastCreated))
	} else {
		b.WriteString("null")
	}
	b.WriteString("}}")
	return []byte(b.String()), nil
}
