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

	"github.com/eclipse-basyx/titan-aas/internal/common"
	"github.com/eclipse-basyx/titan-aas/internal/common/model"
	"github.com/eclipse-basyx/titan-aas/internal/repository"
)

// Registry interface names per IDTA Part 2.
const (
	interfaceAASRepository      = "AAS-3.0"
	interfaceSubmodelRepository = "SUBMODEL-3.0"
)

// pageEnvelope mirrors the repository's page shape for re-projection.
type pageEnvelope struct {
	Result         []json.RawMessage    `json:"result"`
	PagingMetadata model.PagingMetadata `json:"paging_metadata"`
}

// ShellDescriptorPage is the registry page of shell descriptors.
type ShellDescriptorPage struct {
	Result         []model.AssetAdministrationShellDescriptor `json:"result"`
	PagingMetadata model.PagingMetadata                       `json:"paging_metadata"`
}

// SubmodelDescriptorPage is the registry page of submodel descriptors.
type SubmodelDescriptorPage struct {
	Result         []model.SubmodelDescriptor `json:"result"`
	PagingMetadata model.PagingMetadata       `json:"paging_metadata"`
}

func (s *Service) endpointFor(iface, collection, identifier string) model.Endpoint {
	return model.Endpoint{
		Interface: iface,
		ProtocolInformation: model.ProtocolInformation{
			Href:             s.externalURL + "/" + collection + "/" + common.EncodeIdentifier(identifier),
			EndpointProtocol: "HTTP",
		},
	}
}

// ShellDescriptors projects the stored shells onto registry descriptors.
// The registry surface is derived, not separately persisted: descriptors
// follow repository state with no sync lag.
func (s *Service) ShellDescriptors(ctx context.Context, limit int, cursor string) (*ShellDescriptorPage, error) {
	raw, err := s.shells.ListPagedBytes(ctx, limit, cursor, repository.ListFilter{})
	if err != nil {
		return nil, err
	}
	var envelope pageEnvelope
	if err := jsonAPI.Unmarshal(raw, &envelope); err != nil {
		return nil, common.NewInternalServerError("shell page does not parse")
	}
	page := &ShellDescriptorPage{
		Result:         make([]model.AssetAdministrationShellDescriptor, 0, len(envelope.Result)),
		PagingMetadata: envelope.PagingMetadata,
	}
	for _, doc := range envelope.Result {
		var shell model.AssetAdministrationShell
		if err := jsonAPI.Unmarshal(doc, &shell); err != nil {
			return nil, common.NewInternalServerError("stored shell does not parse")
		}
		page.Result = append(page.Result, model.AssetAdministrationShellDescriptor{
			Administration:   shell.Administration,
			AssetKind:        shell.AssetInformation.AssetKind,
			AssetType:        shell.AssetInformation.AssetType,
			Description:      shell.Description,
			DisplayName:      shell.DisplayName,
			Endpoints:        []model.Endpoint{s.endpointFor(interfaceAASRepository, "shells", shell.ID)},
			GlobalAssetID:    shell.AssetInformation.GlobalAssetID,
			IDShort:          shell.IDShort,
			ID:               shell.ID,
			SpecificAssetIDs: shell.AssetInformation.SpecificAssetIDs,
		})
	}
	return page, nil
}

// SubmodelDescriptors projects the stored submodels onto registry
// descriptors.
func (s *Service) SubmodelDescriptors(ctx context.Context, limit int, cursor string) (*SubmodelDescriptorPage, error) {
	raw, err := s.submodels.ListPagedBytes(ctx, limit, cursor, repository.ListFilter{})
	if err != nil {
		return nil, err
	}
	var envelope pageEnvelope
	if err := jsonAPI.Unmarshal(raw, &envelope); err != nil {
		return nil, common.NewInternalServerError("submodel page does not parse")
	}
	page := &SubmodelDescriptorPage{
		Result:         make([]model.SubmodelDescriptor, 0, len(envelope.Result)),
		PagingMetadata: envelope.PagingMetadata,
	}
	for _, doc := range envelope.Result {
		var sm model.Submodel
		if err := jsonAPI.Unmarshal(doc, &sm); err != nil {
			return nil, common.NewInternalServerError("stored submodel does not parse")
		}
		page.Result = append(page.Result, model.SubmodelDescriptor{
			Administration: sm.Administration,
			Description:    sm.Description,
			DisplayName:    sm.DisplayName,
			Endpoints:      []model.Endpoint{s.endpointFor(interfaceSubmodelRepository, "submodels", sm.ID)},
			IDShort:        sm.IDShort,
			ID:             sm.ID,
			SemanticID:     sm.SemanticID,
		})
	}
	return page, nil
}
