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

package api

import (
	"context"
	"encoding/json"
	"log"

	"github.com/eclipse-basyx/titan-aas/internal/common"
	"github.com/eclipse-basyx/titan-aas/internal/common/model"
	"github.com/eclipse-basyx/titan-aas/internal/events"
	"github.com/eclipse-basyx/titan-aas/internal/federation"
	"github.com/eclipse-basyx/titan-aas/internal/fieldbus"
	"github.com/eclipse-basyx/titan-aas/internal/mqttbridge"
	"github.com/eclipse-basyx/titan-aas/internal/projection"
)

// The service is the single write path behind federation sync, MQTT element
// writes and field write-through.
var (
	_ federation.LocalStore    = (*Service)(nil)
	_ mqttbridge.ElementWriter = (*Service)(nil)
	_ fieldbus.ElementWriter   = (*Service)(nil)
)

// RenderOptions select the representation of an element or submodel read.
type RenderOptions struct {
	Level  string
	Extent string
}

func (o RenderOptions) validate() error {
	switch o.Level {
	case "", projection.LevelCore, projection.LevelDeep:
	default:
		return common.NewErrBadRequest("level must be core or deep").WithCode("Level.Invalid")
	}
	switch o.Extent {
	case "", projection.ExtentWithoutBlobValue, projection.ExtentWithBlobValue:
	default:
		return common.NewErrBadRequest("extent must be withBlobValue or withoutBlobValue").WithCode("Extent.Invalid")
	}
	return nil
}

// ListElements returns the element forest of a submodel under the render
// options.
func (s *Service) ListElements(ctx context.Context, submodelID string, opts RenderOptions) ([]model.SubmodelElement, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	sm, err := s.submodels.GetTyped(ctx, submodelID)
	if err != nil {
		return nil, err
	}
	if opts.Level != "" {
		projection.ApplySubmodelLevel(sm, opts.Level)
	}
	projection.ApplySubmodelExtent(sm, opts.Extent)
	if sm.SubmodelElements == nil {
		return []model.SubmodelElement{}, nil
	}
	return sm.SubmodelElements, nil
}

// GetElement navigates to one element and applies the render options.
func (s *Service) GetElement(ctx context.Context, submodelID, idShortPath string, opts RenderOptions) (model.SubmodelElement, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	sm, err := s.submodels.GetTyped(ctx, submodelID)
	if err != nil {
		return nil, err
	}
	el, err := projection.Navigate(sm, idShortPath)
	if err != nil {
		return nil, err
	}
	if opts.Level != "" {
		projection.ApplyLevel(el, opts.Level)
	}
	projection.ApplyExtent(el, opts.Extent)
	return el, nil
}

// GetElementValue returns the $value projection of one element, cached per
// (submodel, path) until the next submodel write.
func (s *Service) GetElementValue(ctx context.Context, submodelID, idShortPath string) (json.RawMessage, error) {
	idB64 := common.EncodeIdentifier(submodelID)
	if s.cache != nil {
		if cached, ok := s.cache.GetElemValue(ctx, idB64, idShortPath); ok {
			return cached, nil
		}
	}
	sm, err := s.submodels.GetTyped(ctx, submodelID)
	if err != nil {
		return nil, err
	}
	el, err := projection.Navigate(sm, idShortPath)
	if err != nil {
		return nil, err
	}
	value, err := projection.Value(el)
	if err != nil {
		return nil, err
	}
	doc, err := jsonAPI.Marshal(value)
	if err != nil {
		return nil, common.NewInternalServerError("value serialization failed")
	}
	if s.cache != nil {
		if err := s.cache.SetElemValue(ctx, idB64, idShortPath, doc); err != nil {
			log.Printf("API-CACHE set element value %s/%s failed: %v", submodelID, idShortPath, err)
		}
	}
	return doc, nil
}

// GetElementMetadata returns the $metadata projection of one element.
func (s *Service) GetElementMetadata(ctx context.Context, submodelID, idShortPath string) (map[string]any, error) {
	sm, err := s.submodels.GetTyped(ctx, submodelID)
	if err != nil {
		return nil, err
	}
	el, err := projection.Navigate(sm, idShortPath)
	if err != nil {
		return nil, err
	}
	return projection.Metadata(el)
}

// GetElementReference returns the $reference projection of one element.
func (s *Service) GetElementReference(ctx context.Context, submodelID, idShortPath string) (*model.Reference, error) {
	sm, err := s.submodels.GetTyped(ctx, submodelID)
	if err != nil {
		return nil, err
	}
	return projection.ReferenceOf(sm, idShortPath)
}

// GetElementPaths returns the $path projection of one element.
func (s *Service) GetElementPaths(ctx context.Context, submodelID, idShortPath string) ([]string, error) {
	sm, err := s.submodels.GetTyped(ctx, submodelID)
	if err != nil {
		return nil, err
	}
	el, err := projection.Navigate(sm, idShortPath)
	if err != nil {
		return nil, err
	}
	return projection.Paths(el, idShortPath), nil
}

// PostElement inserts a new element; an empty idShortPath appends at the
// submodel root.
func (s *Service) PostElement(ctx context.Context, submodelID, idShortPath string, raw json.RawMessage) (model.SubmodelElement, error) {
	el, err := model.UnmarshalSubmodelElement(raw)
	if err != nil {
		return nil, err
	}
	sm, err := s.submodels.GetTyped(ctx, submodelID)
	if err != nil {
		return nil, err
	}
	if err := projection.InsertElement(sm, idShortPath, el); err != nil {
		return nil, err
	}
	// list children have no idShort; the event then addresses the list
	createdPath := el.GetIdShort()
	switch {
	case idShortPath != "" && createdPath != "":
		createdPath = idShortPath + "." + createdPath
	case idShortPath != "":
		createdPath = idShortPath
	}
	doc, etag, err := s.persistSubmodel(ctx, sm, "")
	if err != nil {
		return nil, err
	}
	s.publishElement(ctx, events.TypeCreated, sm, createdPath, doc, etag)
	return el, nil
}

// PutElement replaces the element at idShortPath.
func (s *Service) PutElement(ctx context.Context, submodelID, idShortPath string, raw json.RawMessage) (model.SubmodelElement, error) {
	el, err := model.UnmarshalSubmodelElement(raw)
	if err != nil {
		return nil, err
	}
	sm, err := s.submodels.GetTyped(ctx, submodelID)
	if err != nil {
		return nil, err
	}
	if err := projection.ReplaceElement(sm, idShortPath, el); err != nil {
		return nil, err
	}
	doc, etag, err := s.persistSubmodel(ctx, sm, "")
	if err != nil {
		return nil, err
	}
	s.publishElement(ctx, events.TypeUpdated, sm, idShortPath, doc, etag)
	return el, nil
}

// PatchElement merges a partial document into the element at idShortPath.
func (s *Service) PatchElement(ctx context.Context, submodelID, idShortPath string, partial json.RawMessage) error {
	sm, err := s.submodels.GetTyped(ctx, submodelID)
	if err != nil {
		return err
	}
	if err := projection.PatchElement(sm, idShortPath, partial); err != nil {
		return err
	}
	doc, etag, err := s.persistSubmodel(ctx, sm, "")
	if err != nil {
		return err
	}
	s.publishElement(ctx, events.TypeUpdated, sm, idShortPath, doc, etag)
	return nil
}

// DeleteElement removes the element at idShortPath.
func (s *Service) DeleteElement(ctx context.Context, submodelID, idShortPath string) error {
	sm, err := s.submodels.GetTyped(ctx, submodelID)
	if err != nil {
		return err
	}
	if err := projection.DeleteElement(sm, idShortPath); err != nil {
		return err
	}
	doc, etag, err := s.persistSubmodel(ctx, sm, "")
	if err != nil {
		return err
	}
	if s.attachments != nil {
		if err := s.attachments.Delete(ctx, submodelID, idShortPath); err != nil && !common.IsErrNotFound(err) {
			log.Printf("API-ATTACH drop %s/%s failed: %v", submodelID, idShortPath, err)
		}
	}
	ev := events.New(events.TypeDeleted, events.EntitySubmodelElement, submodelID)
	ev.IDShortPath = idShortPath
	ev.ETag = etag
	ev.DocBytes = doc
	s.publish(ctx, ev)
	return nil
}

// UpdateElementValue sets the value of the element at idShortPath. This is
// the write path MQTT element writes and the field poller commit through.
func (s *Service) UpdateElementValue(ctx context.Context, submodelID, idShortPath string, value json.RawMessage) error {
	sm, err := s.submodels.GetTyped(ctx, submodelID)
	if err != nil {
		return err
	}
	if err := projection.UpdateElementValue(sm, idShortPath, value); err != nil {
		return err
	}
	doc, etag, err := s.persistSubmodel(ctx, sm, "")
	if err != nil {
		return err
	}
	s.publishElement(ctx, events.TypeUpdated, sm, idShortPath, doc, etag)
	return nil
}

// publishElement emits an element event carrying the full document and, when
// the element has one, its value projection.
func (s *Service) publishElement(ctx context.Context, eventType string, sm *model.Submodel, idShortPath string, doc []byte, etag string) {
	ev := events.New(eventType, events.EntitySubmodelElement, sm.ID)
	ev.IDShortPath = idShortPath
	ev.ETag = etag
	ev.DocBytes = doc
	if el, err := projection.Navigate(sm, idShortPath); err == nil {
		if value, err := projection.Value(el); err == nil {
			if valueBytes, err := jsonAPI.Marshal(value); err == nil {
				ev.ValueBytes = valueBytes
			}
		}
	}
	s.publish(ctx, ev)
}

// --- submodel projections ---

// GetSubmodelRendered returns the typed submodel under the render options.
func (s *Service) GetSubmodelRendered(ctx context.Context, id string, opts RenderOptions) (*model.Submodel, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	sm, err := s.submodels.GetTyped(ctx, id)
	if err != nil {
		return nil, err
	}
	if opts.Level != "" {
		projection.ApplySubmodelLevel(sm, opts.Level)
	}
	projection.ApplySubmodelExtent(sm, opts.Extent)
	return sm, nil
}

// GetSubmodelValue returns the $value projection of a whole submodel.
func (s *Service) GetSubmodelValue(ctx context.Context, id string) (map[string]any, error) {
	sm, err := s.submodels.GetTyped(ctx, id)
	if err != nil {
		return nil, err
	}
	return projection.SubmodelValue(sm), nil
}

// PatchSubmodelValue applies an idShort-to-value map onto a submodel in one
// write.
func (s *Service) PatchSubmodelValue(ctx context.Context, id string, raw json.RawMessage, ifMatch string) error {
	var patch map[string]json.RawMessage
	if err := jsonAPI.Unmarshal(raw, &patch); err != nil {
		return common.NewErrBadRequest("value patch does not parse: " + err.Error())
	}
	sm, err := s.submodels.GetTyped(ctx, id)
	if err != nil {
		return err
	}
	for path, value := range patch {
		if err := projection.UpdateElementValue(sm, path, value); err != nil {
			return err
		}
	}
	// the precondition is enforced inside the locked write
	doc, etag, err := s.persistSubmodel(ctx, sm, ifMatch)
	if err != nil {
		return err
	}
	s.publishChange(ctx, events.TypeUpdated, events.EntitySubmodel, id, doc, etag)
	return nil
}

// GetSubmodelMetadata returns the $metadata projection of a submodel.
func (s *Service) GetSubmodelMetadata(ctx context.Context, id string) (map[string]any, error) {
	sm, err := s.submodels.GetTyped(ctx, id)
	if err != nil {
		return nil, err
	}
	return projection.Metadata(sm)
}

// PatchSubmodelMetadata merges metadata fields into a submodel. The element
// forest and the identifier are not patchable this way.
func (s *Service) PatchSubmodelMetadata(ctx context.Context, id string, raw json.RawMessage, ifMatch string) error {
	var patch map[string]json.RawMessage
	if err := jsonAPI.Unmarshal(raw, &patch); err != nil {
		return common.NewErrBadRequest("metadata patch does not parse: " + err.Error())
	}
	delete(patch, "submodelElements")
	delete(patch, "id")

	doc, _, err := s.submodels.GetBytes(ctx, id)
	if err != nil {
		return err
	}
	var merged map[string]json.RawMessage
	if err := jsonAPI.Unmarshal(doc, &merged); err != nil {
		return common.NewInternalServerError("stored submodel does not parse")
	}
	for k, v := range patch {
		merged[k] = v
	}
	mergedDoc, err := jsonAPI.Marshal(merged)
	if err != nil {
		return common.NewInternalServerError("metadata merge failed")
	}
	var sm model.Submodel
	if err := jsonAPI.Unmarshal(mergedDoc, &sm); err != nil {
		return common.NewErrBadRequest("patched submodel does not parse: " + err.Error())
	}
	if err := model.AssertSubmodelValid(&sm); err != nil {
		return err
	}
	newDoc, etag, err := s.persistSubmodel(ctx, &sm, ifMatch)
	if err != nil {
		return err
	}
	s.publishChange(ctx, events.TypeUpdated, events.EntitySubmodel, id, newDoc, etag)
	return nil
}

// GetSubmodelPaths returns the $path projection of a whole submodel.
func (s *Service) GetSubmodelPaths(ctx context.Context, id string) ([]string, error) {
	sm, err := s.submodels.GetTyped(ctx, id)
	if err != nil {
		return nil, err
	}
	return projection.SubmodelPaths(sm), nil
}

// GetSubmodelReference returns the model reference of a submodel.
func (s *Service) GetSubmodelReference(ctx context.Context, id string) (*model.Reference, error) {
	sm, err := s.submodels.GetTyped(ctx, id)
	if err != nil {
		return nil, err
	}
	return projection.SubmodelReference(sm), nil
}

// --- attachments ---

// GetAttachment returns the out-of-band payload of a File or Blob element.
func (s *Service) GetAttachment(ctx context.Context, submodelID, idShortPath string) ([]byte, string, error) {
	if _, err := s.GetElement(ctx, submodelID, idShortPath, RenderOptions{}); err != nil {
		return nil, "", err
	}
	return s.attachments.Get(ctx, submodelID, idShortPath)
}

// PutAttachment stores the out-of-band payload of a File or Blob element.
func (s *Service) PutAttachment(ctx context.Context, submodelID, idShortPath, contentType string, payload []byte) error {
	el, err := s.GetElement(ctx, submodelID, idShortPath, RenderOptions{})
	if err != nil {
		return err
	}
	switch el.GetModelType() {
	case model.ModelTypeFile, model.ModelTypeBlob:
	default:
		return common.NewErrBadRequest("element at " + idShortPath + " carries no attachment").WithCode("Element.TypeMismatch")
	}
	return s.attachments.Put(ctx, submodelID, idShortPath, contentType, payload)
}

// DeleteAttachment removes the out-of-band payload of a File or Blob
// element.
func (s *Service) DeleteAttachment(ctx context.Context, submodelID, idShortPath string) error {
	if _, err := s.GetElement(ctx, submodelID, idShortPath, RenderOptions{}); err != nil {
		return err
	}
	return s.attachments.Delete(ctx, submodelID, idShortPath)
}
