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
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"

	"github.com/eclipse-basyx/titan-aas/internal/common"
	"github.com/eclipse-basyx/titan-aas/internal/common/model"
)

// AssetLinkRepository backs the discovery surface: specific-asset-id
// name/value pairs mapped onto shell identifiers.
type AssetLinkRepository struct {
	db *sql.DB
}

// NewAssetLinkRepository binds the repository to a database pool.
func NewAssetLinkRepository(db *sql.DB) *AssetLinkRepository {
	return &AssetLinkRepository{db: db}
}

// GetLinks returns the asset links registered for a shell.
func (r *AssetLinkRepository) GetLinks(ctx context.Context, aasIdentifier string) ([]model.SpecificAssetID, error) {
	query, args, err := goqu.From("asset_links").
		Select(goqu.C("name"), goqu.C("value")).
		Where(goqu.Ex{"aas_identifier": aasIdentifier}).
		Order(goqu.I("name").Asc()).
		ToSQL()
	if err != nil {
		return nil, common.NewInternalServerError(fmt.Sprintf("TITAN-LINKS-GET-BUILDSQL failed to build query: %s", err))
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.NewInternalServerError(fmt.Sprintf("TITAN-LINKS-GET-EXEC failed to query asset links: %s", err))
	}
	defer func() { _ = rows.Close() }()

	var links []model.SpecificAssetID
	for rows.Next() {
		var l model.SpecificAssetID
		if err := rows.Scan(&l.Name, &l.Value); err != nil {
			return nil, common.NewInternalServerError(fmt.Sprintf("TITAN-LINKS-GET-SCAN failed to scan asset link: %s", err))
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// ReplaceLinks swaps the full link set of a shell inside one transaction.
func (r *AssetLinkRepository) ReplaceLinks(ctx context.Context, aasIdentifier string, links []model.SpecificAssetID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-LINKS-SET-BEGIN failed to begin transaction: %s", err))
	}
	defer func() { _ = tx.Rollback() }()

	delQuery, delArgs, err := goqu.Delete("asset_links").Where(goqu.Ex{"aas_identifier": aasIdentifier}).ToSQL()
	if err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-LINKS-SET-BUILDSQL failed to build delete: %s", err))
	}
	if _, err := tx.ExecContext(ctx, delQuery, delArgs...); err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-LINKS-SET-DEL failed to clear asset links: %s", err))
	}
	if len(links) > 0 {
		recs := make([]any, 0, len(links))
		for _, l := range links {
			recs = append(recs, goqu.Record{"aas_identifier": aasIdentifier, "name": l.Name, "value": l.Value})
		}
		insQuery, insArgs, err := goqu.Insert("asset_links").Rows(recs...).ToSQL()
		if err != nil {
			return common.NewInternalServerError(fmt.Sprintf("TITAN-LINKS-SET-BUILDINS failed to build insert: %s", err))
		}
		if _, err := tx.ExecContext(ctx, insQuery, insArgs...); err != nil {
			return common.NewInternalServerError(fmt.Sprintf("TITAN-LINKS-SET-INS failed to insert asset links: %s", err))
		}
	}
	if err := tx.Commit(); err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-LINKS-SET-COMMIT failed to commit: %s", err))
	}
	return nil
}

// DeleteLinks removes every link of a shell.
func (r *AssetLinkRepository) DeleteLinks(ctx context.Context, aasIdentifier string) error {
	query, args, err := goqu.Delete("asset_links").Where(goqu.Ex{"aas_identifier": aasIdentifier}).ToSQL()
	if err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-LINKS-DEL-BUILDSQL failed to build delete: %s", err))
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-LINKS-DEL-EXEC failed to delete asset links: %s", err))
	}
	return nil
}

// ShellIDsByLinks returns the identifiers of shells matching every given
// name/value pair. Matching is conjunctive across pairs.
func (r *AssetLinkRepository) ShellIDsByLinks(ctx context.Context, pairs []model.SpecificAssetID, limit int) ([]string, error) {
	if len(pairs) == 0 {
		return nil, common.NewErrBadRequest("at least one assetId pair is required").WithCode("AssetLink.Empty")
	}
	limit = clampLimit(limit)

	conds := make([]string, 0, len(pairs))
	args := make([]any, 0, 2*len(pairs)+1)
	for _, p := range pairs {
		args = append(args, p.Name, p.Value)
		conds = append(conds, fmt.Sprintf("(name = $%d AND value = $%d)", len(args)-1, len(args)))
	}
	args = append(args, len(pairs))
	having := len(args)
	args = append(args, limit)
	limitArg := len(args)

	query := fmt.Sprintf(`
SELECT aas_identifier FROM asset_links
WHERE %s
GROUP BY aas_identifier
HAVING count(DISTINCT name || '=' || value) = $%d
ORDER BY aas_identifier ASC
LIMIT $%d`, strings.Join(conds, " OR "), having, limitArg)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.NewInternalServerError(fmt.Sprintf("TITAN-LINKS-LOOKUP-EXEC failed to query asset links: %s", err))
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, common.NewInternalServerError(fmt.Sprintf("TITAN-LINKS-LOOKUP-SCAN failed to scan identifier: %s", err))
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
