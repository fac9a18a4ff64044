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

	"github.com/eclipse-basyx/titan-aas/internal/common"
)

// BlobAssetRepository stores externalized Blob and File payloads keyed by
// submodel and idShortPath. Rows go away with their submodel through the
// schema's ON DELETE CASCADE.
type BlobAssetRepository struct {
	db *sql.DB
}

// NewBlobAssetRepository binds the repository to a database pool.
func NewBlobAssetRepository(db *sql.DB) *BlobAssetRepository {
	return &BlobAssetRepository{db: db}
}

// Put stores or replaces a payload.
func (r *BlobAssetRepository) Put(ctx context.Context, submodelID, idShortPath, contentType string, payload []byte) error {
	query := `
INSERT INTO blob_assets (submodel_identifier, id_short_path, content_type, payload)
VALUES ($1, $2, $3, $4)
ON CONFLICT (submodel_identifier, id_short_path)
DO UPDATE SET content_type = EXCLUDED.content_type, payload = EXCLUDED.payload`
	if _, err := r.db.ExecContext(ctx, query, submodelID, idShortPath, contentType, payload); err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-BLOBS-PUT-EXEC failed to store blob asset: %s", err))
	}
	return nil
}

// Get returns the payload and content type for one element path.
func (r *BlobAssetRepository) Get(ctx context.Context, submodelID, idShortPath string) ([]byte, string, error) {
	query, args, err := goqu.From("blob_assets").
		Select(goqu.C("payload"), goqu.C("content_type")).
		Where(goqu.Ex{"submodel_identifier": submodelID, "id_short_path": idShortPath}).
		ToSQL()
	if err != nil {
		return nil, "", common.NewInternalServerError(fmt.Sprintf("TITAN-BLOBS-GET-BUILDSQL failed to build query: %s", err))
	}
	var payload []byte
	var contentType string
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&payload, &contentType); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", common.NewErrNotFound(fmt.Sprintf("no blob asset at %q in submodel %q", idShortPath, submodelID))
		}
		return nil, "", common.NewInternalServerError(fmt.Sprintf("TITAN-BLOBS-GET-SCAN failed to read blob asset: %s", err))
	}
	return payload, contentType, nil
}

// Delete removes one payload; idempotent.
func (r *BlobAssetRepository) Delete(ctx context.Context, submodelID, idShortPath string) error {
	query, args, err := goqu.Delete("blob_assets").
		Where(goqu.Ex{"submodel_identifier": submodelID, "id_short_path": idShortPath}).
		ToSQL()
	if err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-BLOBS-DEL-BUILDSQL failed to build delete: %s", err))
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-BLOBS-DEL-EXEC failed to delete blob asset: %s", err))
	}
	return nil
}
