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

	"github.com/eclipse-basyx/titan-aas/internal/common"
	"github.com/eclipse-basyx/titan-aas/internal/common/canonical"
	"github.com/eclipse-basyx/titan-aas/internal/common/model"
)

// ShellRepository persists asset administration shells.
type ShellRepository struct {
	store *pgDocStore
}

// NewShellRepository binds the shell repository to a database pool.
func NewShellRepository(db *sql.DB) *ShellRepository {
	return &ShellRepository{store: newPgDocStore(db, "aas", map[string]string{
		"global_asset_id": "global_asset_id",
		"asset_kind":      "asset_kind",
	})}
}

// GetBytes returns the stored canonical bytes and ETag.
func (r *ShellRepository) GetBytes(ctx context.Context, identifier string) ([]byte, string, error) {
	return r.store.GetBytes(ctx, identifier)
}

// GetTyped parses the stored document into the typed model.
func (r *ShellRepository) GetTyped(ctx context.Context, identifier string) (*model.AssetAdministrationShell, error) {
	b, _, err := r.store.GetBytes(ctx, identifier)
	if err != nil {
		return nil, err
	}
	var shell model.AssetAdministrationShell
	if err := jsonUnmarshal(b, &shell); err != nil {
		return nil, common.NewInternalServerError(fmt.Sprintf("TITAN-AASREPO-GETTYPED stored shell %q does not parse: %s", identifier, err))
	}
	return &shell, nil
}

// Create validates, canonicalizes and inserts a shell.
func (r *ShellRepository) Create(ctx context.Context, shell *model.AssetAdministrationShell) ([]byte, string, error) {
	if err := model.AssertShellValid(shell); err != nil {
		return nil, "", err
	}
	shell.ModelType = model.ModelTypeAssetAdministrationShell
	b, etag, err := canonical.MarshalWithETag(shell)
	if err != nil {
		return nil, "", common.NewErrBadRequest(fmt.Sprintf("failed to canonicalize shell: %s", err))
	}
	if err := r.store.CreateBytes(ctx, shell.ID, b, etag, shellColumns(shell)); err != nil {
		return nil, "", err
	}
	return b, etag, nil
}

// Update replaces a stored shell. The identifier in the body must equal the
// path identifier; a non-empty ifMatch is verified against the stored ETag
// under the row lock.
func (r *ShellRepository) Update(ctx context.Context, identifier string, shell *model.AssetAdministrationShell, ifMatch string) ([]byte, string, error) {
	if shell.ID != identifier {
		return nil, "", common.NewErrBadRequest(fmt.Sprintf("body id %q does not match path identifier %q", shell.ID, identifier)).WithCode("Identifier.Mismatch")
	}
	if err := model.AssertShellValid(shell); err != nil {
		return nil, "", err
	}
	shell.ModelType = model.ModelTypeAssetAdministrationShell
	b, etag, err := canonical.MarshalWithETag(shell)
	if err != nil {
		return nil, "", common.NewErrBadRequest(fmt.Sprintf("failed to canonicalize shell: %s", err))
	}
	if err := r.store.UpdateBytes(ctx, identifier, b, etag, ifMatch, shellColumns(shell)); err != nil {
		return nil, "", err
	}
	return b, etag, nil
}

// Delete removes a shell; idempotent.
func (r *ShellRepository) Delete(ctx context.Context, identifier string) (bool, error) {
	return r.store.DeleteBytes(ctx, identifier)
}

// Exists probes for a shell identifier.
func (r *ShellRepository) Exists(ctx context.Context, identifier string) (bool, error) {
	return r.store.Exists(ctx, identifier)
}

// ListPagedBytes returns the page envelope bytes.
func (r *ShellRepository) ListPagedBytes(ctx context.Context, limit int, cursor string, filter ListFilter) ([]byte, error) {
	return r.store.ListPagedBytes(ctx, limit, cursor, filter)
}

func shellColumns(shell *model.AssetAdministrationShell) map[string]any {
	return map[string]any{
		"id_short":        shell.IDShort,
		"global_asset_id": shell.AssetInformation.GlobalAssetID,
		"asset_kind":      shell.AssetInformation.AssetKind,
	}
}

// SubmodelRepository persists submodels. Submodel deletion cascades the
// blob_assets rows through the schema's foreign key.
type SubmodelRepository struct {
	store *pgDocStore
}

// NewSubmodelRepository binds the submodel repository to a database pool.
func NewSubmodelRepository(db *sql.DB) *SubmodelRepository {
	return &SubmodelRepository{store: newPgDocStore(db, "submodels", map[string]string{
		"semantic_id": "semantic_id",
		"kind":        "kind",
	})}
}

// GetBytes returns the stored canonical bytes and ETag.
func (r *SubmodelRepository) GetBytes(ctx context.Context, identifier string) ([]byte, string, error) {
	return r.store.GetBytes(ctx, identifier)
}

// GetTyped parses the stored document into the typed model.
func (r *SubmodelRepository) GetTyped(ctx context.Context, identifier string) (*model.Submodel, error) {
	b, _, err := r.store.GetBytes(ctx, identifier)
	if err != nil {
		return nil, err
	}
	var sm model.Submodel
	if err := jsonUnmarshal(b, &sm); err != nil {
		return nil, common.NewInternalServerError(fmt.Sprintf("TITAN-SMREPO-GETTYPED stored submodel %q does not parse: %s", identifier, err))
	}
	return &sm, nil
}

// Create validates, canonicalizes and inserts a submodel.
func (r *SubmodelRepository) Create(ctx context.Context, sm *model.Submodel) ([]byte, string, error) {
	if err := model.AssertSubmodelValid(sm); err != nil {
		return nil, "", err
	}
	sm.ModelType = model.ModelTypeSubmodel
	b, etag, err := canonical.MarshalWithETag(sm)
	if err != nil {
		return nil, "", common.NewErrBadRequest(fmt.Sprintf("failed to canonicalize submodel: %s", err))
	}
	if err := r.store.CreateBytes(ctx, sm.ID, b, etag, submodelColumns(sm)); err != nil {
		return nil, "", err
	}
	return b, etag, nil
}

// Update replaces a stored submodel; a non-empty ifMatch is verified under
// the row lock.
func (r *SubmodelRepository) Update(ctx context.Context, identifier string, sm *model.Submodel, ifMatch string) ([]byte, string, error) {
	if sm.ID != identifier {
		return nil, "", common.NewErrBadRequest(fmt.Sprintf("body id %q does not match path identifier %q", sm.ID, identifier)).WithCode("Identifier.Mismatch")
	}
	if err := model.AssertSubmodelValid(sm); err != nil {
		return nil, "", err
	}
	sm.ModelType = model.ModelTypeSubmodel
	b, etag, err := canonical.MarshalWithETag(sm)
	if err != nil {
		return nil, "", common.NewErrBadRequest(fmt.Sprintf("failed to canonicalize submodel: %s", err))
	}
	if err := r.store.UpdateBytes(ctx, identifier, b, etag, ifMatch, submodelColumns(sm)); err != nil {
		return nil, "", err
	}
	return b, etag, nil
}

// Delete removes a submodel; idempotent.
func (r *SubmodelRepository) Delete(ctx context.Context, identifier string) (bool, error) {
	return r.store.DeleteBytes(ctx, identifier)
}

// Exists probes for a submodel identifier.
func (r *SubmodelRepository) Exists(ctx context.Context, identifier string) (bool, error) {
	return r.store.Exists(ctx, identifier)
}

// ListPagedBytes returns the page envelope bytes.
func (r *SubmodelRepository) ListPagedBytes(ctx context.Context, limit int, cursor string, filter ListFilter) ([]byte, error) {
	return r.store.ListPagedBytes(ctx, limit, cursor, filter)
}

// FindBySemanticID lists submodels whose semanticId resolves to the given
// value; the predicate is pushed down into SQL.
func (r *SubmodelRepository) FindBySemanticID(ctx context.Context, semanticID string, limit int, cursor string) ([]byte, error) {
	return r.store.ListPagedBytes(ctx, limit, cursor, ListFilter{SemanticID: semanticID})
}

// FindByKind lists submodels of the given modelling kind.
func (r *SubmodelRepository) FindByKind(ctx context.Context, kind string, limit int, cursor string) ([]byte, error) {
	return r.store.ListPagedBytes(ctx, limit, cursor, ListFilter{Kind: kind})
}

func submodelColumns(sm *model.Submodel) map[string]any {
	semanticID := ""
	if sm.SemanticID != nil {
		semanticID = sm.SemanticID.LastKeyValue()
	}
	return map[string]any{
		"id_short":    sm.IDShort,
		"semantic_id": semanticID,
		"kind":        sm.Kind,
	}
}

// ConceptDescriptionRepository persists concept descriptions.
type ConceptDescriptionRepository struct {
	store *pgDocStore
}

// NewConceptDescriptionRepository binds the repository to a database pool.
func NewConceptDescriptionRepository(db *sql.DB) *ConceptDescriptionRepository {
	return &ConceptDescriptionRepository{store: newPgDocStore(db, "concept_descriptions", map[string]string{})}
}

// GetBytes returns the stored canonical bytes and ETag.
func (r *ConceptDescriptionRepository) GetBytes(ctx context.Context, identifier string) ([]byte, string, error) {
	return r.store.GetBytes(ctx, identifier)
}

// GetTyped parses the stored document into the typed model.
func (r *ConceptDescriptionRepository) GetTyped(ctx context.Context, identifier string) (*model.ConceptDescription, error) {
	b, _, err := r.store.GetBytes(ctx, identifier)
	if err != nil {
		return nil, err
	}
	var cd model.ConceptDescription
	if err := jsonUnmarshal(b, &cd); err != nil {
		return nil, common.NewInternalServerError(fmt.Sprintf("TITAN-CDREPO-GETTYPED stored concept description %q does not parse: %s", identifier, err))
	}
	return &cd, nil
}

// Create validates, canonicalizes and inserts a concept description.
func (r *ConceptDescriptionRepository) Create(ctx context.Context, cd *model.ConceptDescription) ([]byte, string, error) {
	if err := model.AssertConceptDescriptionValid(cd); err != nil {
		return nil, "", err
	}
	cd.ModelType = model.ModelTypeConceptDescription
	b, etag, err := canonical.MarshalWithETag(cd)
	if err != nil {
		return nil, "", common.NewErrBadRequest(fmt.Sprintf("failed to canonicalize concept description: %s", err))
	}
	if err := r.store.CreateBytes(ctx, cd.ID, b, etag, map[string]any{"id_short": cd.IDShort}); err != nil {
		return nil, "", err
	}
	return b, etag, nil
}

// Update replaces a stored concept description; a non-empty ifMatch is
// verified under the row lock.
func (r *ConceptDescriptionRepository) Update(ctx context.Context, identifier string, cd *model.ConceptDescription, ifMatch string) ([]byte, string, error) {
	if cd.ID != identifier {
		return nil, "", common.NewErrBadRequest(fmt.Sprintf("body id %q does not match path identifier %q", cd.ID, identifier)).WithCode("Identifier.Mismatch")
	}
	if err := model.AssertConceptDescriptionValid(cd); err != nil {
		return nil, "", err
	}
	cd.ModelType = model.ModelTypeConceptDescription
	b, etag, err := canonical.MarshalWithETag(cd)
	if err != nil {
		return nil, "", common.NewErrBadRequest(fmt.Sprintf("failed to canonicalize concept description: %s", err))
	}
	if err := r.store.UpdateBytes(ctx, identifier, b, etag, ifMatch, map[string]any{"id_short": cd.IDShort}); err != nil {
		return nil, "", err
	}
	return b, etag, nil
}

// Delete removes a concept description; idempotent.
func (r *ConceptDescriptionRepository) Delete(ctx context.Context, identifier string) (bool, error) {
	return r.store.DeleteBytes(ctx, identifier)
}

// Exists probes for a concept description identifier.
func (r *ConceptDescriptionRepository) Exists(ctx context.Context, identifier string) (bool, error) {
	return r.store.Exists(ctx, identifier)
}

// ListPagedBytes returns the page envelope bytes.
func (r *ConceptDescriptionRepository) ListPagedBytes(ctx context.Context, limit int, cursor string, filter ListFilter) ([]byte, error) {
	return r.store.ListPagedBytes(ctx, limit, cursor, filter)
}
