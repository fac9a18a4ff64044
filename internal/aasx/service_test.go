package aasx

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/eclipse-basyx/titan-aas/internal/repository"
)

func newMockedPackageService(t *testing.T) (*PackageService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	mock.MatchExpectationsInOrder(false)

	blobs, err := NewLocalBlobStore(t.TempDir())
	require.NoError(t, err)

	return NewPackageService(
		repository.NewShellRepository(db),
		repository.NewSubmodelRepository(db),
		repository.NewConceptDescriptionRepository(db),
		repository.NewPackageRepository(db),
		blobs, nil), mock
}

func TestImportCatalogsPackageMetadata(t *testing.T) {
	t.Parallel()
	svc, mock := newMockedPackageService(t)
	data := buildPackage(t, validEntries())

	// every carried entity is new, so each upsert is an insert
	mock.ExpectQuery(`SELECT 1 FROM .*"aas"`).WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectExec(`INSERT INTO .*"aas"`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`SELECT 1 FROM .*"submodels"`).WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectExec(`INSERT INTO .*"submodels"`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`SELECT 1 FROM .*"concept_descriptions"`).WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectExec(`INSERT INTO .*"concept_descriptions"`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO .*"aasx_packages"`).WillReturnResult(sqlmock.NewResult(1, 1))

	rec, err := svc.Import(context.Background(), "motor.aasx", data, ImportOptions{
		CreatedBy:      "line-operator",
		VersionComment: "initial upload",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Equal(t, "motor.aasx", rec.FileName)
	require.True(t, strings.HasPrefix(rec.StorageURI, "packages/"))
	require.Equal(t, int64(len(data)), rec.SizeBytes)
	sum := sha256.Sum256(data)
	require.Equal(t, hex.EncodeToString(sum[:]), rec.ContentHash)

	require.Equal(t, []string{"urn:x:aas:motor"}, rec.PackageInfo.ShellIDs)
	require.Equal(t, []string{"urn:x:sm:nameplate"}, rec.PackageInfo.SubmodelIDs)
	require.Equal(t, []string{"urn:x:cd:manufacturer"}, rec.PackageInfo.ConceptDescriptionIDs)
	require.Equal(t, 1, rec.ShellCount)
	require.Equal(t, 1, rec.SubmodelCount)
	require.Equal(t, 1, rec.ConceptDescriptionCount)

	require.Equal(t, 1, rec.Version)
	require.Equal(t, "line-operator", rec.CreatedBy)
	require.Equal(t, "initial upload", rec.VersionComment)

	// the original file is retrievable under the recorded storage uri
	stored, _, err := svc.blobs.Get(context.Background(), rec.StorageURI)
	require.NoError(t, err)
	require.Equal(t, data, stored)
}
