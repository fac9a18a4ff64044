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

package model

// ProtocolInformation describes how a descriptor endpoint is reached.
type ProtocolInformation struct {
	Href             string `json:"href"`
	EndpointProtocol string `json:"endpointProtocol,omitempty"`
	SubProtocol      string `json:"subprotocol,omitempty"`
}

// Endpoint binds an interface name to protocol information.
type Endpoint struct {
	Interface           string              `json:"interface"`
	ProtocolInformation ProtocolInformation `json:"protocolInformation"`
}

// SubmodelDescriptor is the registry view of a stored submodel.
type SubmodelDescriptor struct {
	Administration *AdministrativeInformation `json:"administration,omitempty"`
	Description    []LangStringTextType       `json:"description,omitempty"`
	DisplayName    []LangStringNameType       `json:"displayName,omitempty"`
	Endpoints      []Endpoint                 `json:"endpoints"`
	IDShort        string                     `json:"idShort,omitempty"`
	ID             string                     `json:"id"`
	SemanticID     *Reference                 `json:"semanticId,omitempty"`
}

// AssetAdministrationShellDescriptor is the registry view of a stored shell.
type AssetAdministrationShellDescriptor struct {
	Administration      *AdministrativeInformation `json:"administration,omitempty"`
	AssetKind           string                     `json:"assetKind,omitempty"`
	AssetType           string                     `json:"assetType,omitempty"`
	Description         []LangStringTextType       `json:"description,omitempty"`
	DisplayName         []LangStringNameType       `json:"displayName,omitempty"`
	Endpoints           []Endpoint                 `json:"endpoints"`
	GlobalAssetID       string                     `json:"globalAssetId,omitempty"`
	IDShort             string                     `json:"idShort,omitempty"`
	ID                  string                     `json:"id"`
	SpecificAssetIDs    []SpecificAssetID          `json:"specificAssetIds,omitempty"`
	SubmodelDescriptors []SubmodelDescriptor       `json:"submodelDescriptors,omitempty"`
}
