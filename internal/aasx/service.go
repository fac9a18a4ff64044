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

package aasx

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/eclipse-basyx/titan-aas/internal/common"
	"github.com/eclipse-basyx/titan-aas/internal/events"
	"github.com/eclipse-basyx/titan-aas/internal/repository"
)

// PackageService ingests AASX packages into the repositories and keeps the
// package catalog with its version chains.
type PackageService struct {
	shells    *repository.ShellRepository
	submodels *repository.SubmodelRepository
	concepts  *repository.ConceptDescriptionRepository
	catalog   *repository.PackageRepository
	blobs     BlobStore
	bus       events.EventBus
}

// NewPackageService wires the ingestion pipeline. The bus may be nil for
// offline tooling.
func NewPackageService(shells *repository.ShellRepository, submodels *repository.SubmodelRepository,
	concepts *repository.ConceptDescriptionRepository, catalog *repository.PackageRepository,
	blobs BlobStore, bus events.EventBus) *PackageService {
	return &PackageService{shells: shells, submodels: submodels, concepts: concepts,
		catalog: catalog, blobs: blobs, bus: bus}
}

// ImportOptions carries the catalog metadata of an ingestion. A non-empty
// PreviousVersionID chains the upload onto an existing package.
type ImportOptions struct {
	PreviousVersionID string
	CreatedBy         string
	VersionComment    string
}

// Import parses the package, upserts its entities, stores the original file
// and catalogs the result with its size, content hash and entity inventory.
func (s *PackageService) Import(ctx context.Context, fileName string, data []byte, opts ImportOptions) (*repository.PackageRecord, error) {
	parsed, err := ImportFromStream(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	rec := repository.PackageRecord{
		ID:                uuid.NewString(),
		FileName:          fileName,
		SizeBytes:         int64(len(data)),
		ContentHash:       hex.EncodeToString(sum[:]),
		Version:           1,
		CreatedAt:         time.Now().UnixMicro(),
		CreatedBy:         opts.CreatedBy,
		VersionComment:    opts.VersionComment,
		PreviousVersionID: opts.PreviousVersionID,
	}
	if opts.PreviousVersionID != "" {
		prev, err := s.catalog.Get(ctx, opts.PreviousVersionID)
		if err != nil {
			return nil, err
		}
		rec.Version = prev.Version + 1
	}
	rec.StorageURI = "packages/" + rec.ID + "/" + fileName

	if err := s.applyEnvironment(ctx, parsed, &rec); err != nil {
		return nil, err
	}
	rec.ShellCount = len(rec.PackageInfo.ShellIDs)
	rec.SubmodelCount = len(rec.PackageInfo.SubmodelIDs)
	rec.ConceptDescriptionCount = len(rec.PackageInfo.ConceptDescriptionIDs)
	if err := s.blobs.Put(ctx, rec.StorageURI, "application/asset-administration-shell-package", data); err != nil {
		return nil, err
	}
	if err := s.catalog.Insert(ctx, rec); err != nil {
		return nil, err
	}
	log.Printf("AASX-IMPORT %s: %d shells, %d submodels, %d concept descriptions, %d files",
		rec.ID, len(parsed.Shells), len(parsed.Submodels), len(parsed.ConceptDescriptions), len(parsed.Files))
	return &rec, nil
}

// applyEnvironment upserts every entity the package carries and records the
// entity ids on the catalog row.
func (s *PackageService) applyEnvironment(ctx context.Context, parsed *ImportResult, rec *repository.PackageRecord) error {
	for i := range parsed.Shells {
		shell := &parsed.Shells[i]
		rec.PackageInfo.ShellIDs = append(rec.PackageInfo.ShellIDs, shell.ID)
		_, _, err := s.shells.Create(ctx, shell)
		if common.IsErrConflict(err) {
			_, _, err = s.shells.Update(ctx, shell.ID, shell, "")
			s.publish(ctx, events.TypeUpdated, events.EntityAAS, shell.ID)
		} else if err == nil {
			s.publish(ctx, events.TypeCreated, events.EntityAAS, shell.ID)
		}
		if err != nil {
			return fmt.Errorf("aasx: import shell %q: %w", shell.ID, err)
		}
	}
	for i := range parsed.Submodels {
		sm := &parsed.Submodels[i]
		rec.PackageInfo.SubmodelIDs = append(rec.PackageInfo.SubmodelIDs, sm.ID)
		_, _, err := s.submodels.Create(ctx, sm)
		if common.IsErrConflict(err) {
			_, _, err = s.submodels.Update(ctx, sm.ID, sm, "")
			s.publish(ctx, events.TypeUpdated, events.EntitySubmodel, sm.ID)
		} else if err == nil {
			s.publish(ctx, events.TypeCreated, events.EntitySubmodel, sm.ID)
		}
		if err != nil {
			return fmt.Errorf("aasx: import submodel %q: %w", sm.ID, err)
		}
	}
	for i := range parsed.ConceptDescriptions {
		cd := &parsed.ConceptDescriptions[i]
		rec.PackageInfo.ConceptDescriptionIDs = append(rec.PackageInfo.ConceptDescriptionIDs, cd.ID)
		_, _, err := s.concepts.Create(ctx, cd)
		if common.IsErrConflict(err) {
			_, _, err = s.concepts.Update(ctx, cd.ID, cd, "")
			s.publish(ctx, events.TypeUpdated, events.EntityConceptDescription, cd.ID)
		} else if err == nil {
			s.publish(ctx, events.TypeCreated, events.EntityConceptDescription, cd.ID)
		}
		if err != nil {
			return fmt.Errorf("aasx: import concept description %q: %w", cd.ID, err)
		}
	}
	return nil
}

// Get returns one catalog row.
func (s *PackageService) Get(ctx context.Context, id string) (*repository.PackageRecord, error) {
	return s.catalog.Get(ctx, id)
}

// List returns catalog rows.
func (s *PackageService) List(ctx context.Context, limit int) ([]repository.PackageRecord, error) {
	return s.catalog.List(ctx, limit)
}

// GetFile returns the stored package file.
func (s *PackageService) GetFile(ctx context.Context, id string) ([]byte, string, string, error) {
	rec, err := s.catalog.Get(ctx, id)
	if err != nil {
		return nil, "", "", err
	}
	data, ctype, err := s.blobs.Get(ctx, rec.StorageURI)
	if err != nil {
		return nil, "", "", err
	}
	return data, ctype, rec.FileName, nil
}

// Versions returns the version chain of a package, newest first.
func (s *PackageService) Versions(ctx context.Context, id string) ([]repository.PackageRecord, error) {
	return s.catalog.Versions(ctx, id)
}

// NewVersion ingests a replacement file as the next version of an existing
// package.
func (s *PackageService) NewVersion(ctx context.Context, previousID, fileName string, data []byte, opts ImportOptions) (*repository.PackageRecord, error) {
	opts.PreviousVersionID = previousID
	return s.Import(ctx, fileName, data, opts)
}

// Rollback re-applies the previous version's environment and catalogs the
// rollback as a new version on top of the chain.
func (s *PackageService) Rollback(ctx context.Context, id string) (*repository.PackageRecord, error) {
	rec, err := s.catalog.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.PreviousVersionID == "" {
		return nil, common.NewErrConflict(fmt.Sprintf("package %q has no previous version", id)).WithCode("Package.NoPreviousVersion")
	}
	prev, err := s.catalog.Get(ctx, rec.PreviousVersionID)
	if err != nil {
		return nil, err
	}
	data, _, err := s.blobs.Get(ctx, prev.StorageURI)
	if err != nil {
		return nil, err
	}
	return s.Import(ctx, prev.FileName, data, ImportOptions{
		PreviousVersionID: id,
		VersionComment:    fmt.Sprintf("rollback to version %d", prev.Version),
	})
}

// Delete removes the catalog row and its stored file. The entities the
// package created stay in the repositories.
func (s *PackageService) Delete(ctx context.Context, id string) error {
	rec, err := s.catalog.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.catalog.Delete(ctx, id); err != nil {
		return err
	}
	return s.blobs.Delete(ctx, rec.StorageURI)
}

func (s *PackageService) publish(ctx context.Context, eventType, entity, identifier string) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, events.New(eventType, entity, identifier)); err != nil {
		log.Printf("AASX-EVENT publish for %s %s failed: %v", entity, identifier, err)
	}
}
