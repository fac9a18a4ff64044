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

import "encoding/json"

// Asset kinds.
const (
	AssetKindInstance = "Instance"
	AssetKindType     = "Type"
)

// Modelling kinds of a submodel.
const (
	ModellingKindInstance = "Instance"
	ModellingKindTemplate = "Template"
)

// AssetInformation identifies the asset a shell describes.
type AssetInformation struct {
	AssetKind        string            `json:"assetKind"`
	GlobalAssetID    string            `json:"globalAssetId,omitempty"`
	SpecificAssetIDs []SpecificAssetID `json:"specificAssetIds,omitempty"`
	AssetType        string            `json:"assetType,omitempty"`
	DefaultThumbnail *Resource         `json:"defaultThumbnail,omitempty"`
}

// Resource is a typed file reference.
type Resource struct {
	Path        string `json:"path"`
	ContentType string `json:"contentType,omitempty"`
}

// AssetAdministrationShell is the top-level digital twin descriptor.
type AssetAdministrationShell struct {
	Extensions                 []Extension                 `json:"extensions,omitempty"`
	Category                   string                      `json:"category,omitempty"`
	IDShort                    string                      `json:"idShort,omitempty"`
	DisplayName                []LangStringNameType        `json:"displayName,omitempty"`
	Description                []LangStringTextType        `json:"description,omitempty"`
	ModelType                  string                      `json:"modelType"`
	Administration             *AdministrativeInformation  `json:"administration,omitempty"`
	ID                         string                      `json:"id"`
	EmbeddedDataSpecifications []EmbeddedDataSpecification `json:"embeddedDataSpecifications,omitempty"`
	DerivedFrom                *Reference                  `json:"derivedFrom,omitempty"`
	AssetInformation           AssetInformation            `json:"assetInformation"`
	Submodels                  []Reference                 `json:"submodels,omitempty"`
}

// Submodel is a typed subtree of a shell describing one aspect of the asset.
type Submodel struct {
	Extensions                 []Extension                 `json:"extensions,omitempty"`
	Category                   string                      `json:"category,omitempty"`
	IDShort                    string                      `json:"idShort,omitempty"`
	DisplayName                []LangStringNameType        `json:"displayName,omitempty"`
	Description                []LangStringTextType        `json:"description,omitempty"`
	ModelType                  string                      `json:"modelType"`
	Administration             *AdministrativeInformation  `json:"administration,omitempty"`
	ID                         string                      `json:"id"`
	Kind                       string                      `json:"kind,omitempty"`
	SemanticID                 *Reference                  `json:"semanticId,omitempty"`
	SupplementalSemanticIDs    []Reference                 `json:"supplementalSemanticIds,omitempty"`
	Qualifiers                 []Qualifier                 `json:"qualifiers,omitempty"`
	EmbeddedDataSpecifications []EmbeddedDataSpecification `json:"embeddedDataSpecifications,omitempty"`
	SubmodelElements           []SubmodelElement           `json:"submodelElements,omitempty"`
}

// UnmarshalJSON dispatches the nested submodel elements by modelType.
func (s *Submodel) UnmarshalJSON(data []byte) error {
	type alias Submodel
	aux := &struct {
		*alias
		SubmodelElements []json.RawMessage `json:"submodelElements,omitempty"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	return unmarshalElementSlice(aux.SubmodelElements, &s.SubmodelElements)
}

// ConceptDescription is a shared vocabulary entry referenced by semanticId.
type ConceptDescription struct {
	Extensions                 []Extension                 `json:"extensions,omitempty"`
	Category                   string                      `json:"category,omitempty"`
	IDShort                    string                      `json:"idShort,omitempty"`
	DisplayName                []LangStringNameType        `json:"displayName,omitempty"`
	Description                []LangStringTextType        `json:"description,omitempty"`
	ModelType                  string                      `json:"modelType"`
	Administration             *AdministrativeInformation  `json:"administration,omitempty"`
	ID                         string                      `json:"id"`
	EmbeddedDataSpecifications []EmbeddedDataSpecification `json:"embeddedDataSpecifications,omitempty"`
	IsCaseOf                   []Reference                 `json:"isCaseOf,omitempty"`
}

// Environment is the multi-entity document carried by AASX packages.
type Environment struct {
	AssetAdministrationShells []AssetAdministrationShell `json:"assetAdministrationShells,omitempty"`
	Submodels                 []Submodel                 `json:"submodels,omitempty"`
	ConceptDescriptions       []ConceptDescription       `json:"conceptDescriptions,omitempty"`
}
