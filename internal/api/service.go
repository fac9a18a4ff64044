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

// Package api is the HTTP surface of the server: repository, registry and
// discovery routes, submodel-element projections, package ingestion,
// federation control and the WebSocket upgrade. The Service in this package
// is the write path everything else funnels through; it owns cache
// read-through and event publication so that MQTT, WebSocket, federation
// and field write-through all observe the same changes.
package api

import (
	"context"
	"encoding/json"
	"log"

	"github.com/eclipse-basyx/titan-aas/internal/cache"
	"github.com/eclipse-basyx/titan-aas/internal/common"
	"github.com/eclipse-basyx/titan-aas/internal/common/canonical"
	"github.com/eclipse-basyx/titan-aas/internal/common/model"
	"github.com/eclipse-basyx/titan-aas/internal/events"
	"github.com/eclipse-basyx/titan-aas/internal/repository"
)

// ShellStore is the slice of the shell repository the service needs.
type ShellStore interface {
	GetBytes(ctx context.Context, identifier string) ([]byte, string, error)
	GetTyped(ctx context.Context, identifier string) (*model.AssetAdministrationShell, error)
	Create(ctx context.Context, shell *model.AssetAdministrationShell) ([]byte, string, error)
	Update(ctx context.Context, identifier string, shell *model.AssetAdministrationShell, ifMatch string) ([]byte, string, error)
	Delete(ctx context.Context, identifier string) (bool, error)
	ListPagedBytes(ctx context.Context, limit int, cursor string, filter repository.ListFilter) ([]byte, error)
}

// SubmodelStore is the slice of the submodel repository the service needs.
type SubmodelStore interface {
	GetBytes(ctx context.Context, identifier string) ([]byte, string, error)
	GetTyped(ctx context.Context, identifier string) (*model.Submodel, error)
	Create(ctx context.Context, sm *model.Submodel) ([]byte, string, error)
	Update(ctx context.Context, identifier string, sm *model.Submodel, ifMatch string) ([]byte, string, error)
	Delete(ctx context.Context, identifier string) (bool, error)
	ListPagedBytes(ctx context.Context, limit int, cursor string, filter repository.ListFilter) ([]byte, error)
}

// ConceptStore is the slice of the concept-description repository the
// service needs.
type ConceptStore interface {
	GetBytes(ctx context.Context, identifier string) ([]byte, string, error)
	Create(ctx context.Context, cd *model.ConceptDescription) ([]byte, string, error)
	Update(ctx context.Context, identifier string, cd *model.ConceptDescription, ifMatch string) ([]byte, string, error)
	Delete(ctx context.Context, identifier string) (bool, error)
	ListPagedBytes(ctx context.Context, limit int, cursor string, filter repository.ListFilter) ([]byte, error)
}

// LinkStore backs the discovery surface.
type LinkStore interface {
	GetLinks(ctx context.Context, aasIdentifier string) ([]model.SpecificAssetID, error)
	ReplaceLinks(ctx context.Context, aasIdentifier string, links []model.SpecificAssetID) error
	DeleteLinks(ctx context.Context, aasIdentifier string) error
	ShellIDsByLinks(ctx context.Context, pairs []model.SpecificAssetID, limit int) ([]string, error)
}

// AttachmentStore persists File/Blob element payloads out of band.
type AttachmentStore interface {
	Put(ctx context.Context, submodelID, idShortPath, contentType string, payload []byte) error
	Get(ctx context.Context, submodelID, idShortPath string) ([]byte, string, error)
	Delete(ctx context.Context, submodelID, idShortPath string) error
}

// Service implements the repository, registry and discovery semantics on
// top of the stores. Cache and bus are optional; a nil cache disables
// read-through, a nil bus disables change notifications.
type Service struct {
	shells      ShellStore
	submodels   SubmodelStore
	concepts    ConceptStore
	links       LinkStore
	attachments AttachmentStore
	cache       *cache.DocCache
	bus         events.EventBus
	externalURL string
}

// NewService wires the application service.
func NewService(shells ShellStore, submodels SubmodelStore, concepts ConceptStore,
	links LinkStore, attachments AttachmentStore, docCache *cache.DocCache,
	bus events.EventBus, externalURL string) *Service {
	return &Service{
		shells:      shells,
		submodels:   submodels,
		concepts:    concepts,
		links:       links,
		attachments: attachments,
		cache:       docCache,
		bus:         bus,
		externalURL: externalURL,
	}
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, ev); err != nil {
		log.Printf("API-EVENT publish %s %s %s failed: %v", ev.EventType, ev.Entity, ev.Identifier, err)
	}
}

func (s *Service) publishChange(ctx context.Context, eventType, entity, identifier string, doc []byte, etag string) {
	ev := events.New(eventType, entity, identifier)
	ev.ETag = etag
	ev.DocBytes = doc
	s.publish(ctx, ev)
}

// cacheSet is best-effort; a failed cache write never fails the request.
func (s *Service) cacheSet(ctx context.Context, entity, identifier string, doc []byte, etag string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetDoc(ctx, entity, common.EncodeIdentifier(identifier), doc, etag); err != nil {
		log.Printf("API-CACHE set %s %s failed: %v", entity, identifier, err)
	}
}

func (s *Service) cacheDrop(ctx context.Context, entity, identifier string) {
	if s.cache == nil {
		return
	}
	idB64 := common.EncodeIdentifier(identifier)
	var err error
	if entity == cache.EntitySubmodel {
		err = s.cache.InvalidateSubmodel(ctx, idB64)
	} else {
		err = s.cache.DeleteDoc(ctx, entity, idB64)
	}
	if err != nil {
		log.Printf("API-CACHE drop %s %s failed: %v", entity, identifier, err)
	}
}

func (s *Service) cacheGet(ctx context.Context, entity, identifier string) ([]byte, string, bool) {
	if s.cache == nil {
		return nil, "", false
	}
	return s.cache.GetDoc(ctx, entity, common.EncodeIdentifier(identifier))
}

// --- shells ---

// GetShell returns the stored document and its tag, cache first.
func (s *Service) GetShell(ctx context.Context, id string) ([]byte, string, error) {
	if doc, etag, ok := s.cacheGet(ctx, cache.EntityAAS, id); ok {
		return doc, etag, nil
	}
	doc, etag, err := s.shells.GetBytes(ctx, id)
	if err != nil {
		return nil, "", err
	}
	s.cacheSet(ctx, cache.EntityAAS, id, doc, etag)
	return doc, etag, nil
}

// CreateShell validates and stores a new shell.
func (s *Service) CreateShell(ctx context.Context, raw json.RawMessage) ([]byte, string, error) {
	var shell model.AssetAdministrationShell
	if err := jsonAPI.Unmarshal(raw, &shell); err != nil {
		return nil, "", common.NewErrBadRequest("shell does not parse: " + err.Error())
	}
	if err := model.AssertShellValid(&shell); err != nil {
		return nil, "", err
	}
	doc, etag, err := s.shells.Create(ctx, &shell)
	if err != nil {
		return nil, "", err
	}
	s.cacheSet(ctx, cache.EntityAAS, shell.ID, doc, etag)
	s.publishChange(ctx, events.TypeCreated, events.EntityAAS, shell.ID, doc, etag)
	return doc, etag, nil
}

// UpdateShell replaces a shell, honoring If-Match. An absent target without
// a precondition is created instead (upsert); created reports that case.
func (s *Service) UpdateShell(ctx context.Context, id string, raw json.RawMessage, ifMatch string) (doc []byte, etag string, created bool, err error) {
	var shell model.AssetAdministrationShell
	if err := jsonAPI.Unmarshal(raw, &shell); err != nil {
		return nil, "", false, common.NewErrBadRequest("shell does not parse: " + err.Error())
	}
	if err := model.AssertShellValid(&shell); err != nil {
		return nil, "", false, err
	}
	if shell.ID != id {
		return nil, "", false, common.NewErrBadRequest("body id does not match path identifier").WithCode("Id.Mismatch")
	}

	// precondition check happens inside the store's locked write
	doc, etag, err = s.shells.Update(ctx, id, &shell, ifMatch)
	if common.IsErrNotFound(err) {
		if ifMatch != "" {
			return nil, "", false, common.NewErrPreconditionFailed("no stored version to match against")
		}
		doc, etag, err = s.shells.Create(ctx, &shell)
		if err != nil {
			return nil, "", false, err
		}
		s.cacheSet(ctx, cache.EntityAAS, id, doc, etag)
		s.publishChange(ctx, events.TypeCreated, events.EntityAAS, id, doc, etag)
		return doc, etag, true, nil
	}
	if err != nil {
		return nil, "", false, err
	}
	s.cacheSet(ctx, cache.EntityAAS, id, doc, etag)
	s.publishChange(ctx, events.TypeUpdated, events.EntityAAS, id, doc, etag)
	return doc, etag, false, nil
}

// DeleteShell removes the shell and its asset links.
func (s *Service) DeleteShell(ctx context.Context, id string) error {
	found, err := s.shells.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return common.NewErrNotFound("shell " + id + " does not exist")
	}
	if s.links != nil {
		if err := s.links.DeleteLinks(ctx, id); err != nil {
			log.Printf("API-LINKS drop for %s failed: %v", id, err)
		}
	}
	s.cacheDrop(ctx, cache.EntityAAS, id)
	s.publishChange(ctx, events.TypeDeleted, events.EntityAAS, id, nil, "")
	return nil
}

// ListShells returns the page envelope bytes straight from the repository.
func (s *Service) ListShells(ctx context.Context, limit int, cursor string, filter repository.ListFilter) ([]byte, error) {
	return s.shells.ListPagedBytes(ctx, limit, cursor, filter)
}

// --- submodels ---

// GetSubmodel returns the stored document and its tag, cache first.
func (s *Service) GetSubmodel(ctx context.Context, id string) ([]byte, string, error) {
	if doc, etag, ok := s.cacheGet(ctx, cache.EntitySubmodel, id); ok {
		return doc, etag, nil
	}
	doc, etag, err := s.submodels.GetBytes(ctx, id)
	if err != nil {
		return nil, "", err
	}
	s.cacheSet(ctx, cache.EntitySubmodel, id, doc, etag)
	return doc, etag, nil
}

// CreateSubmodel validates and stores a new submodel.
func (s *Service) CreateSubmodel(ctx context.Context, raw json.RawMessage) ([]byte, string, error) {
	var sm model.Submodel
	if err := jsonAPI.Unmarshal(raw, &sm); err != nil {
		return nil, "", common.NewErrBadRequest("submodel does not parse: " + err.Error())
	}
	if err := model.AssertSubmodelValid(&sm); err != nil {
		return nil, "", err
	}
	doc, etag, err := s.submodels.Create(ctx, &sm)
	if err != nil {
		return nil, "", err
	}
	s.cacheSet(ctx, cache.EntitySubmodel, sm.ID, doc, etag)
	s.publishChange(ctx, events.TypeCreated, events.EntitySubmodel, sm.ID, doc, etag)
	return doc, etag, nil
}

// UpdateSubmodel replaces a submodel, honoring If-Match; upserts like
// UpdateShell.
func (s *Service) UpdateSubmodel(ctx context.Context, id string, raw json.RawMessage, ifMatch string) (doc []byte, etag string, created bool, err error) {
	var sm model.Submodel
	if err := jsonAPI.Unmarshal(raw, &sm); err != nil {
		return nil, "", false, common.NewErrBadRequest("submodel does not parse: " + err.Error())
	}
	if err := model.AssertSubmodelValid(&sm); err != nil {
		return nil, "", false, err
	}
	if sm.ID != id {
		return nil, "", false, common.NewErrBadRequest("body id does not match path identifier").WithCode("Id.Mismatch")
	}

	doc, etag, err = s.persistSubmodel(ctx, &sm, ifMatch)
	if common.IsErrNotFound(err) {
		if ifMatch != "" {
			return nil, "", false, common.NewErrPreconditionFailed("no stored version to match against")
		}
		doc, etag, err = s.submodels.Create(ctx, &sm)
		if err != nil {
			return nil, "", false, err
		}
		s.cacheSet(ctx, cache.EntitySubmodel, id, doc, etag)
		s.publishChange(ctx, events.TypeCreated, events.EntitySubmodel, id, doc, etag)
		return doc, etag, true, nil
	}
	if err != nil {
		return nil, "", false, err
	}
	s.publishChange(ctx, events.TypeUpdated, events.EntitySubmodel, id, doc, etag)
	return doc, etag, false, nil
}

// DeleteSubmodel removes the submodel, its cached projections and its
// attachments.
func (s *Service) DeleteSubmodel(ctx context.Context, id string) error {
	found, err := s.submodels.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return common.NewErrNotFound("submodel " + id + " does not exist")
	}
	s.cacheDrop(ctx, cache.EntitySubmodel, id)
	s.publishChange(ctx, events.TypeDeleted, events.EntitySubmodel, id, nil, "")
	return nil
}

// ListSubmodels returns the page envelope bytes straight from the
// repository.
func (s *Service) ListSubmodels(ctx context.Context, limit int, cursor string, filter repository.ListFilter) ([]byte, error) {
	return s.submodels.ListPagedBytes(ctx, limit, cursor, filter)
}

// persistSubmodel writes the typed submodel back and refreshes the caches;
// stale element projections are dropped wholesale.
func (s *Service) persistSubmodel(ctx context.Context, sm *model.Submodel, ifMatch string) ([]byte, string, error) {
	doc, etag, err := s.submodels.Update(ctx, sm.ID, sm, ifMatch)
	if err != nil {
		return nil, "", err
	}
	idB64 := common.EncodeIdentifier(sm.ID)
	if s.cache != nil {
		if err := s.cache.InvalidateElements(ctx, idB64); err != nil {
			log.Printf("API-CACHE invalidate elements %s failed: %v", sm.ID, err)
		}
		if err := s.cache.SetDoc(ctx, cache.EntitySubmodel, idB64, doc, etag); err != nil {
			log.Printf("API-CACHE set submodel %s failed: %v", sm.ID, err)
		}
	}
	return doc, etag, nil
}

// --- concept descriptions ---

// GetConceptDescription returns the stored document and its tag, cache
// first.
func (s *Service) GetConceptDescription(ctx context.Context, id string) ([]byte, string, error) {
	if doc, etag, ok := s.cacheGet(ctx, cache.EntityCD, id); ok {
		return doc, etag, nil
	}
	doc, etag, err := s.concepts.GetBytes(ctx, id)
	if err != nil {
		return nil, "", err
	}
	s.cacheSet(ctx, cache.EntityCD, id, doc, etag)
	return doc, etag, nil
}

// CreateConceptDescription validates and stores a new concept description.
func (s *Service) CreateConceptDescription(ctx context.Context, raw json.RawMessage) ([]byte, string, error) {
	var cd model.ConceptDescription
	if err := jsonAPI.Unmarshal(raw, &cd); err != nil {
		return nil, "", common.NewErrBadRequest("concept description does not parse: " + err.Error())
	}
	if err := model.AssertConceptDescriptionValid(&cd); err != nil {
		return nil, "", err
	}
	doc, etag, err := s.concepts.Create(ctx, &cd)
	if err != nil {
		return nil, "", err
	}
	s.cacheSet(ctx, cache.EntityCD, cd.ID, doc, etag)
	s.publishChange(ctx, events.TypeCreated, events.EntityConceptDescription, cd.ID, doc, etag)
	return doc, etag, nil
}

// UpdateConceptDescription replaces a concept description, honoring
// If-Match; upserts like UpdateShell.
func (s *Service) UpdateConceptDescription(ctx context.Context, id string, raw json.RawMessage, ifMatch string) (doc []byte, etag string, created bool, err error) {
	var cd model.ConceptDescription
	if err := jsonAPI.Unmarshal(raw, &cd); err != nil {
		return nil, "", false, common.NewErrBadRequest("concept description does not parse: " + err.Error())
	}
	if err := model.AssertConceptDescriptionValid(&cd); err != nil {
		return nil, "", false, err
	}
	if cd.ID != id {
		return nil, "", false, common.NewErrBadRequest("body id does not match path identifier").WithCode("Id.Mismatch")
	}

	doc, etag, err = s.concepts.Update(ctx, id, &cd, ifMatch)
	if common.IsErrNotFound(err) {
		if ifMatch != "" {
			return nil, "", false, common.NewErrPreconditionFailed("no stored version to match against")
		}
		doc, etag, err = s.concepts.Create(ctx, &cd)
		if err != nil {
			return nil, "", false, err
		}
		s.cacheSet(ctx, cache.EntityCD, id, doc, etag)
		s.publishChange(ctx, events.TypeCreated, events.EntityConceptDescription, id, doc, etag)
		return doc, etag, true, nil
	}
	if err != nil {
		return nil, "", false, err
	}
	s.cacheSet(ctx, cache.EntityCD, id, doc, etag)
	s.publishChange(ctx, events.TypeUpdated, events.EntityConceptDescription, id, doc, etag)
	return doc, etag, false, nil
}

// DeleteConceptDescription removes the concept description.
func (s *Service) DeleteConceptDescription(ctx context.Context, id string) error {
	found, err := s.concepts.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return common.NewErrNotFound("concept description " + id + " does not exist")
	}
	s.cacheDrop(ctx, cache.EntityCD, id)
	s.publishChange(ctx, events.TypeDeleted, events.EntityConceptDescription, id, nil, "")
	return nil
}

// ListConceptDescriptions returns the page envelope bytes straight from
// the repository.
func (s *Service) ListConceptDescriptions(ctx context.Context, limit int, cursor string, filter repository.ListFilter) ([]byte, error) {
	return s.concepts.ListPagedBytes(ctx, limit, cursor, filter)
}

// --- discovery ---

// ShellIDsByAssetLinks resolves asset-link pairs to shell identifiers.
func (s *Service) ShellIDsByAssetLinks(ctx context.Context, pairs []model.SpecificAssetID, limit int) ([]string, error) {
	if len(pairs) == 0 {
		return nil, common.NewErrBadRequest("at least one asset link is required").WithCode("AssetLinks.Empty")
	}
	return s.links.ShellIDsByLinks(ctx, pairs, limit)
}

// GetAssetLinks returns the asset links of one shell.
func (s *Service) GetAssetLinks(ctx context.Context, aasID string) ([]model.SpecificAssetID, error) {
	if _, _, err := s.GetShell(ctx, aasID); err != nil {
		return nil, err
	}
	return s.links.GetLinks(ctx, aasID)
}

// ReplaceAssetLinks overwrites the asset links of one shell.
func (s *Service) ReplaceAssetLinks(ctx context.Context, aasID string, links []model.SpecificAssetID) error {
	if _, _, err := s.GetShell(ctx, aasID); err != nil {
		return err
	}
	return s.links.ReplaceLinks(ctx, aasID, links)
}

// DeleteAssetLinks removes all asset links of one shell.
func (s *Service) DeleteAssetLinks(ctx context.Context, aasID string) error {
	if _, _, err := s.GetShell(ctx, aasID); err != nil {
		return err
	}
	return s.links.DeleteLinks(ctx, aasID)
}

// --- federation write-through ---

// GetLocalBytes serves the federation pull comparison.
func (s *Service) GetLocalBytes(ctx context.Context, entityType, identifier string) ([]byte, string, error) {
	switch entityType {
	case events.EntityAAS:
		return s.GetShell(ctx, identifier)
	case events.EntitySubmodel:
		return s.GetSubmodel(ctx, identifier)
	case events.EntityConceptDescription:
		return s.GetConceptDescription(ctx, identifier)
	}
	return nil, "", common.NewErrBadRequest("unknown entity type " + entityType).WithCode("Entity.Unknown")
}

// ApplyRemote adopts a remote document verbatim, creating or replacing the
// local copy. Events are emitted by the federation layer, not here.
func (s *Service) ApplyRemote(ctx context.Context, entityType, identifier string, doc []byte) (string, error) {
	canonicalDoc, etag, err := canonical.MarshalWithETagBytes(doc)
	if err != nil {
		return "", common.NewErrBadRequest("remote document does not parse: " + err.Error())
	}
	switch entityType {
	case events.EntityAAS:
		var shell model.AssetAdministrationShell
		if err := jsonAPI.Unmarshal(canonicalDoc, &shell); err != nil {
			return "", common.NewErrBadRequest("remote shell does not parse: " + err.Error())
		}
		shell.ID = identifier
		if _, etag, err = s.shells.Update(ctx, identifier, &shell, ""); common.IsErrNotFound(err) {
			_, etag, err = s.shells.Create(ctx, &shell)
		}
		if err != nil {
			return "", err
		}
		s.cacheDrop(ctx, cache.EntityAAS, identifier)
	case events.EntitySubmodel:
		var sm model.Submodel
		if err := jsonAPI.Unmarshal(canonicalDoc, &sm); err != nil {
			return "", common.NewErrBadRequest("remote submodel does not parse: " + err.Error())
		}
		sm.ID = identifier
		if _, etag, err = s.submodels.Update(ctx, identifier, &sm, ""); common.IsErrNotFound(err) {
			_, etag, err = s.submodels.Create(ctx, &sm)
		}
		if err != nil {
			return "", err
		}
		s.cacheDrop(ctx, cache.EntitySubmodel, identifier)
	case events.EntityConceptDescription:
		var cd model.ConceptDescription
		if err := jsonAPI.Unmarshal(canonicalDoc, &cd); err != nil {
			return "", common.NewErrBadRequest("remote concept description does not parse: " + err.Error())
		}
		cd.ID = identifier
		if _, etag, err = s.concepts.Update(ctx, identifier, &cd, ""); common.IsErrNotFound(err) {
			_, etag, err = s.concepts.Create(ctx, &cd)
		}
		if err != nil {
			return "", err
		}
		s.cacheDrop(ctx, cache.EntityCD, identifier)
	default:
		return "", common.NewErrBadRequest("unknown entity type " + entityType).WithCode("Entity.Unknown")
	}
	return etag, nil
}

// DeleteLocal removes the local copy of a remotely deleted entity; an
// already absent copy is fine.
func (s *Service) DeleteLocal(ctx context.Context, entityType, identifier string) error {
	var err error
	switch entityType {
	case events.EntityAAS:
		err = s.DeleteShell(ctx, identifier)
	case events.EntitySubmodel:
		err = s.DeleteSubmodel(ctx, identifier)
	case events.EntityConceptDescription:
		err = s.DeleteConceptDescription(ctx, identifier)
	default:
		return common.NewErrBadRequest("unknown entity type " + entityType).WithCode("Entity.Unknown")
	}
	if common.IsErrNotFound(err) {
		return nil
	}
	return err
}
