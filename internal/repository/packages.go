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

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"

	"github.com/eclipse-basyx/titan-aas/internal/common"
)

// PackageInfo lists the identifiers of every entity a package carried.
type PackageInfo struct {
	ShellIDs              []string `json:"shellIds"`
	SubmodelIDs           []string `json:"submodelIds"`
	ConceptDescriptionIDs []string `json:"conceptDescriptionIds"`
}

// PackageRecord is one catalog row of an ingested AASX package. Versions
// chain through PreviousVersionID; the newest row of a chain is the live
// one. The counts mirror the PackageInfo id lists.
type PackageRecord struct {
	ID                      string      `json:"packageId"`
	FileName                string      `json:"filename"`
	StorageURI              string      `json:"storageUri"`
	SizeBytes               int64       `json:"sizeBytes"`
	ContentHash             string      `json:"contentHash"`
	ShellCount              int         `json:"shellCount"`
	SubmodelCount           int         `json:"submodelCount"`
	ConceptDescriptionCount int         `json:"conceptDescriptionCount"`
	PackageInfo             PackageInfo `json:"packageInfo"`
	Version                 int         `json:"version"`
	PreviousVersionID       string      `json:"previousVersionId,omitempty"`
	CreatedAt               int64       `json:"createdAt"`
	CreatedBy               string      `json:"createdBy"`
	VersionComment          string      `json:"versionComment,omitempty"`
}

// PackageRepository is the AASX package catalog.
type PackageRepository struct {
	db *sql.DB
}

// NewPackageRepository binds the catalog to a database pool.
func NewPackageRepository(db *sql.DB) *PackageRepository {
	return &PackageRepository{db: db}
}

// Insert adds a catalog row.
func (r *PackageRepository) Insert(ctx context.Context, rec PackageRecord) error {
	query, args, err := goqu.Insert("aasx_packages").Rows(goqu.Record{
		"id":                      rec.ID,
		"file_name":               rec.FileName,
		"storage_uri":             rec.StorageURI,
		"size_bytes":              rec.SizeBytes,
		"content_hash":            rec.ContentHash,
		"shell_ids":               pq.Array(rec.PackageInfo.ShellIDs),
		"submodel_ids":            pq.Array(rec.PackageInfo.SubmodelIDs),
		"concept_description_ids": pq.Array(rec.PackageInfo.ConceptDescriptionIDs),
		"version":                 rec.Version,
		"created_at":              rec.CreatedAt,
		"created_by":              rec.CreatedBy,
		"version_comment":         nullIfEmpty(rec.VersionComment),
		"previous_version_id":     nullIfEmpty(rec.PreviousVersionID),
	}).ToSQL()
	if err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-PKG-INS-BUILDSQL failed to build insert: %s", err))
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-PKG-INS-EXEC failed to insert package row: %s", err))
	}
	return nil
}

// Get returns one catalog row.
func (r *PackageRepository) Get(ctx context.Context, id string) (*PackageRecord, error) {
	query, args, err := goqu.From("aasx_packages").
		Select(packageColumns()...).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, common.NewInternalServerError(fmt.Sprintf("TITAN-PKG-GET-BUILDSQL failed to build query: %s", err))
	}
	rec, err := scanPackage(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NewErrNotFound(fmt.Sprintf("no package with id %q", id))
		}
		return nil, common.NewInternalServerError(fmt.Sprintf("TITAN-PKG-GET-SCAN failed to read package row: %s", err))
	}
	return rec, nil
}

// List returns catalog rows ordered by creation time.
func (r *PackageRepository) List(ctx context.Context, limit int) ([]PackageRecord, error) {
	limit = clampLimit(limit)
	query, args, err := goqu.From("aasx_packages").
		Select(packageColumns()...).
		Order(goqu.I("created_at").Asc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, common.NewInternalServerError(fmt.Sprintf("TITAN-PKG-LIST-BUILDSQL failed to build query: %s", err))
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.NewInternalServerError(fmt.Sprintf("TITAN-PKG-LIST-EXEC failed to query packages: %s", err))
	}
	defer func() { _ = rows.Close() }()

	var out []PackageRecord
	for rows.Next() {
		rec, err := scanPackage(rows)
		if err != nil {
			return nil, common.NewInternalServerError(fmt.Sprintf("TITAN-PKG-LIST-SCAN failed to scan package row: %s", err))
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Versions walks the version chain of a package, newest first.
func (r *PackageRepository) Versions(ctx context.Context, id string) ([]PackageRecord, error) {
	var chain []PackageRecord
	cur := id
	for cur != "" {
		rec, err := r.Get(ctx, cur)
		if err != nil {
			if common.IsErrNotFound(err) && len(chain) > 0 {
				break
			}
			return nil, err
		}
		chain = append(chain, *rec)
		cur = rec.PreviousVersionID
	}
	return chain, nil
}

// Delete removes one catalog row; the bool reports whether a row existed.
func (r *PackageRepository) Delete(ctx context.Context, id string) (bool, error) {
	query, args, err := goqu.Delete("aasx_packages").Where(goqu.Ex{"id": id}).ToSQL()
	if err != nil {
		return false, common.NewInternalServerError(fmt.Sprintf("TITAN-PKG-DEL-BUILDSQL failed to build delete: %s", err))
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, common.NewInternalServerError(fmt.Sprintf("TITAN-PKG-DEL-EXEC failed to delete package row: %s", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, common.NewInternalServerError(fmt.Sprintf("TITAN-PKG-DEL-ROWS failed to read affected rows: %s", err))
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func packageColumns() []any {
	return []any{
		goqu.C("id"), goqu.C("file_name"), goqu.C("storage_uri"), goqu.C("size_bytes"),
		goqu.C("content_hash"), goqu.C("shell_ids"), goqu.C("submodel_ids"),
		goqu.C("concept_description_ids"), goqu.C("version"), goqu.C("created_at"),
		goqu.C("created_by"), goqu.C("version_comment"), goqu.C("previous_version_id"),
	}
}

func scanPackage(row rowScanner) (*PackageRecord, error) {
	var rec PackageRecord
	var comment, prev sql.NullString
	var shellIDs, submodelIDs, cdIDs pq.StringArray
	if err := row.Scan(&rec.ID, &rec.FileName, &rec.StorageURI, &rec.SizeBytes, &rec.ContentHash,
		&shellIDs, &submodelIDs, &cdIDs, &rec.Version, &rec.CreatedAt,
		&rec.CreatedBy, &comment, &prev); err != nil {
		return nil, err
	}
	rec.PackageInfo = PackageInfo{ShellIDs: shellIDs, SubmodelIDs: submodelIDs, ConceptDescriptionIDs: cdIDs}
	rec.ShellCount = len(shellIDs)
	rec.SubmodelCount = len(submodelIDs)
	rec.ConceptDescriptionCount = len(cdIDs)
	rec.VersionComment = comment.String
	rec.PreviousVersionID = prev.String
	return &rec, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
