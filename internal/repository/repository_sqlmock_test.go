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
	"encoding/json"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/eclipse-basyx/titan-aas/internal/common"
	"github.com/eclipse-basyx/titan-aas/internal/common/model"
)

func newMockedSubmodelRepo(t *testing.T) (*SubmodelRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSubmodelRepository(db), mock
}

func TestGetBytesReturnsStoredBytesAndEtag(t *testing.T) {
	t.Parallel()
	sut, mock := newMockedSubmodelRepo(t)

	mock.ExpectQuery(`SELECT .*"doc_bytes".*"etag".*FROM .*"submodels"`).
		WillReturnRows(sqlmock.NewRows([]string{"doc_bytes", "etag"}).
			AddRow(`{"id":"urn:x:sm:1","modelType":"Submodel"}`, "abcd1234abcd1234"))

	b, etag, err := sut.GetBytes(context.Background(), "urn:x:sm:1")
	require.NoError(t, err)
	require.Equal(t, "abcd1234abcd1234", etag)
	require.JSONEq(t, `{"id":"urn:x:sm:1","modelType":"Submodel"}`, string(b))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBytesNotFound(t *testing.T) {
	t.Parallel()
	sut, mock := newMockedSubmodelRepo(t)

	mock.ExpectQuery(`SELECT .*FROM .*"submodels"`).
		WillReturnRows(sqlmock.NewRows([]string{"doc_bytes", "etag"}))

	_, _, err := sut.GetBytes(context.Background(), "urn:x:sm:missing")
	require.True(t, common.IsErrNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateConflictsOnExistingIdentifier(t *testing.T) {
	t.Parallel()
	sut, mock := newMockedSubmodelRepo(t)

	mock.ExpectQuery(`SELECT 1 FROM .*"submodels"`).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	var sm model.Submodel
	require.NoError(t, json.Unmarshal([]byte(`{"id":"urn:x:sm:1","modelType":"Submodel"}`), &sm))
	_, _, err := sut.Create(context.Background(), &sm)
	require.True(t, common.IsErrConflict(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateInsertsCanonicalBytes(t *testing.T) {
	t.Parallel()
	sut, mock := newMockedSubmodelRepo(t)

	mock.ExpectQuery(`SELECT 1 FROM .*"submodels"`).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectExec(`INSERT INTO .*"submodels"`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	var sm model.Submodel
	require.NoError(t, json.Unmarshal([]byte(`{"id":"urn:x:sm:1","modelType":"Submodel","kind":"Instance"}`), &sm))
	b, etag, err := sut.Create(context.Background(), &sm)
	require.NoError(t, err)
	require.Len(t, etag, 16)
	require.JSONEq(t, `{"id":"urn:x:sm:1","modelType":"Submodel","kind":"Instance"}`, string(b))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLocksRowAndRejectsMissing(t *testing.T) {
	t.Parallel()
	sut, mock := newMockedSubmodelRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT etag FROM submodels WHERE identifier = \$1 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"etag"}))
	mock.ExpectRollback()

	var sm model.Submodel
	require.NoError(t, json.Unmarshal([]byte(`{"id":"urn:x:sm:1","modelType":"Submodel"}`), &sm))
	_, _, err := sut.Update(context.Background(), "urn:x:sm:1", &sm, "")
	require.True(t, common.IsErrNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRejectsStaleIfMatchUnderRowLock(t *testing.T) {
	t.Parallel()
	sut, mock := newMockedSubmodelRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT etag FROM submodels WHERE identifier = \$1 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"etag"}).AddRow("ffff0000ffff0000"))
	mock.ExpectRollback()

	var sm model.Submodel
	require.NoError(t, json.Unmarshal([]byte(`{"id":"urn:x:sm:1","modelType":"Submodel"}`), &sm))
	_, _, err := sut.Update(context.Background(), "urn:x:sm:1", &sm, "0123456789abcdef")
	require.True(t, common.IsErrPreconditionFailed(err))
	// ExpectationsWereMet proves no UPDATE ran after the failed check
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateWritesWhenIfMatchHoldsUnderRowLock(t *testing.T) {
	t.Parallel()
	sut, mock := newMockedSubmodelRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT etag FROM submodels WHERE identifier = \$1 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"etag"}).AddRow("ffff0000ffff0000"))
	mock.ExpectExec(`UPDATE .*"submodels"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var sm model.Submodel
	require.NoError(t, json.Unmarshal([]byte(`{"id":"urn:x:sm:1","modelType":"Submodel"}`), &sm))
	_, etag, err := sut.Update(context.Background(), "urn:x:sm:1", &sm, "ffff0000ffff0000")
	require.NoError(t, err)
	require.Len(t, etag, 16)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRejectsIdentifierMismatch(t *testing.T) {
	t.Parallel()
	sut, _ := newMockedSubmodelRepo(t)

	var sm model.Submodel
	require.NoError(t, json.Unmarshal([]byte(`{"id":"urn:x:sm:other","modelType":"Submodel"}`), &sm))
	_, _, err := sut.Update(context.Background(), "urn:x:sm:1", &sm, "")
	require.True(t, common.IsErrBadRequest(err))
	require.Equal(t, "Identifier.Mismatch", common.CodeOf(err))
}

func TestDeleteIsIdempotent(t *testing.T) {
	t.Parallel()
	sut, mock := newMockedSubmodelRepo(t)

	mock.ExpectExec(`DELETE FROM .*"submodels"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM .*"submodels"`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	existed, err := sut.Delete(context.Background(), "urn:x:sm:1")
	require.NoError(t, err)
	require.True(t, existed)

	existed, err = sut.Delete(context.Background(), "urn:x:sm:1")
	require.NoError(t, err)
	require.False(t, existed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListPagedBytesFastPathReturnsEnvelopeVerbatim(t *testing.T) {
	t.Parallel()
	sut, mock := newMockedSubmodelRepo(t)

	envelope := `{"result":[{"id":"a"},{"id":"b"}],"paging_metadata":{"cursor":"1756000000000002"}}`
	mock.ExpectQuery(`WITH page AS`).
		WillReturnRows(sqlmock.NewRows([]string{"envelope"}).AddRow(envelope))

	b, err := sut.ListPagedBytes(context.Background(), 2, "", ListFilter{})
	require.NoError(t, err)
	require.Equal(t, envelope, string(b))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListPagedBytesRejectsBadCursor(t *testing.T) {
	t.Parallel()
	sut, _ := newMockedSubmodelRepo(t)

	_, err := sut.ListPagedBytes(context.Background(), 10, "not-a-cursor", ListFilter{})
	require.True(t, common.IsErrBadRequest(err))
	require.Equal(t, "Cursor.Invalid", common.CodeOf(err))
}

func TestListPagedBytesSlowPathFiltersByIdShort(t *testing.T) {
	t.Parallel()
	sut, mock := newMockedSubmodelRepo(t)

	rows := sqlmock.NewRows([]string{"doc_bytes", "created_at", "id_short"}).
		AddRow(`{"id":"a","idShort":"Pump"}`, int64(1), "Pump").
		AddRow(`{"id":"b","idShort":"Motor"}`, int64(2), "Motor").
		AddRow(`{"id":"c","idShort":"Pump"}`, int64(3), "Pump")
	mock.ExpectQuery(`SELECT doc_bytes, created_at, id_short FROM submodels`).
		WillReturnRows(rows)

	b, err := sut.ListPagedBytes(context.Background(), 10, "", ListFilter{IDShort: "Pump"})
	require.NoError(t, err)
	require.JSONEq(t,
		`{"result":[{"id":"a","idShort":"Pump"},{"id":"c","idShort":"Pump"}],"paging_metadata":{"cursor":null}}`,
		string(b))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListPagedBytesSlowPathEmitsCursorWhenMoreRows(t *testing.T) {
	t.Parallel()
	sut, mock := newMockedSubmodelRepo(t)

	rows := sqlmock.NewRows([]string{"doc_bytes", "created_at", "id_short"}).
		AddRow(`{"id":"a"}`, int64(1), "X").
		AddRow(`{"id":"b"}`, int64(2), "X").
		AddRow(`{"id":"c"}`, int64(3), "X")
	mock.ExpectQuery(`SELECT doc_bytes, created_at, id_short FROM submodels`).
		WillReturnRows(rows)

	b, err := sut.ListPagedBytes(context.Background(), 2, "", ListFilter{IDShort: "X"})
	require.NoError(t, err)
	require.JSONEq(t,
		`{"result":[{"id":"a"},{"id":"b"}],"paging_metadata":{"cursor":"2"}}`,
		string(b))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShellIDsByLinksConjunctiveMatch(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	sut := NewAssetLinkRepository(db)

	mock.ExpectQuery(`SELECT aas_identifier FROM asset_links`).
		WillReturnRows(sqlmock.NewRows([]string{"aas_identifier"}).AddRow("urn:x:aas:1"))

	ids, err := sut.ShellIDsByLinks(context.Background(), []model.SpecificAssetID{
		{Name: "serial", Value: "S-1"},
		{Name: "plant", Value: "P-9"},
	}, 10)
	require.NoError(t, err)
	require.Equal(t, []string{"urn:x:aas:1"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShellIDsByLinksRequiresPairs(t *testing.T) {
	t.Parallel()
	sut := NewAssetLinkRepository(nil)

	_, err := sut.ShellIDsByLinks(context.Background(), nil, 10)
	require.True(t, common.IsErrBadRequest(err))
}

func TestPackageGetScansFullCatalogRow(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	sut := NewPackageRepository(db)

	cols := []string{"id", "file_name", "storage_uri", "size_bytes", "content_hash",
		"shell_ids", "submodel_ids", "concept_description_ids", "version", "created_at",
		"created_by", "version_comment", "previous_version_id"}
	mock.ExpectQuery(`SELECT .*FROM .*"aasx_packages"`).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"p2", "motor.aasx", "packages/p2/motor.aasx", int64(2048), "c0ffee",
			`{urn:x:aas:motor}`, `{urn:x:sm:nameplate,urn:x:sm:docs}`, `{}`,
			2, int64(1700000000000000), "line-operator", "second revision", "p1"))

	rec, err := sut.Get(context.Background(), "p2")
	require.NoError(t, err)
	require.Equal(t, "motor.aasx", rec.FileName)
	require.Equal(t, "packages/p2/motor.aasx", rec.StorageURI)
	require.Equal(t, int64(2048), rec.SizeBytes)
	require.Equal(t, "c0ffee", rec.ContentHash)
	require.Equal(t, []string{"urn:x:aas:motor"}, rec.PackageInfo.ShellIDs)
	require.Equal(t, []string{"urn:x:sm:nameplate", "urn:x:sm:docs"}, rec.PackageInfo.SubmodelIDs)
	require.Empty(t, rec.PackageInfo.ConceptDescriptionIDs)
	// counts mirror the id lists
	require.Equal(t, 1, rec.ShellCount)
	require.Equal(t, 2, rec.SubmodelCount)
	require.Equal(t, 0, rec.ConceptDescriptionCount)
	require.Equal(t, 2, rec.Version)
	require.Equal(t, "line-operator", rec.CreatedBy)
	require.Equal(t, "second revision", rec.VersionComment)
	require.Equal(t, "p1", rec.PreviousVersionID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBytesSurfacesQueryError(t *testing.T) {
	t.Parallel()
	sut, mock := newMockedSubmodelRepo(t)

	mock.ExpectQuery(`SELECT .*FROM .*"submodels"`).
		WillReturnError(errors.New("connection reset"))

	_, _, err := sut.GetBytes(context.Background(), "urn:x:sm:1")
	require.True(t, common.IsInternalServerError(err))
	require.NoError(t, mock.ExpectationsWereMet())
}
