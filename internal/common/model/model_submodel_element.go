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

// Element model types (the modelType discriminator values).
const (
	ModelTypeProperty                     = "Property"
	ModelTypeMultiLanguageProperty        = "MultiLanguageProperty"
	ModelTypeRange                        = "Range"
	ModelTypeBlob                         = "Blob"
	ModelTypeFile                         = "File"
	ModelTypeReferenceElement             = "ReferenceElement"
	ModelTypeRelationshipElement          = "RelationshipElement"
	ModelTypeAnnotatedRelationshipElement = "AnnotatedRelationshipElement"
	ModelTypeSubmodelElementCollection    = "SubmodelElementCollection"
	ModelTypeSubmodelElementList          = "SubmodelElementList"
	ModelTypeEntity                       = "Entity"
	ModelTypeBasicEventElement            = "BasicEventElement"
	ModelTypeOperation                    = "Operation"
	ModelTypeCapability                   = "Capability"
)

// Identifiable model types.
const (
	ModelTypeAssetAdministrationShell = "AssetAdministrationShell"
	ModelTypeSubmodel                 = "Submodel"
	ModelTypeConceptDescription       = "ConceptDescription"
)

// SubmodelElement is the tagged union over the fourteen element variants.
// The discriminator is the external modelType string.
type SubmodelElement interface {
	GetModelType() string
	GetIdShort() string
	SetIdShort(string)
	GetSemanticID() *Reference
	GetQualifiers() []Qualifier
}

// ElementBase carries the fields common to every element variant. Variants
// embed it by pointer-receiver methods; json fields inline into the variant
// object.
type ElementBase struct {
	Extensions  []Extension          `json:"extensions,omitempty"`
	Category    string               `json:"category,omitempty"`
	IDShort     string               `json:"idShort,omitempty"`
	DisplayName []LangStringNameType `json:"displayName,omitempty"`
	Description []LangStringTextType `json:"description,omitempty"`
	ModelType   string               `json:"modelType"`

	SemanticID              *Reference                  `json:"semanticId,omitempty"`
	SupplementalSemanticIDs []Reference                 `json:"supplementalSemanticIds,omitempty"`
	Qualifiers              []Qualifier                 `json:"qualifiers,omitempty"`
	EmbeddedDataSpecifications []EmbeddedDataSpecification `json:"embeddedDataSpecifications,omitempty"`
}

//nolint:revive
func (b *ElementBase) GetModelType() string { return b.ModelType }

//nolint:revive
func (b *ElementBase) GetIdShort() string { return b.IDShort }

//nolint:revive
func (b *ElementBase) SetIdShort(idShort string) { b.IDShort = idShort }

//nolint:revive
func (b *ElementBase) GetSemanticID() *Reference { return b.SemanticID }

//nolint:revive
func (b *ElementBase) GetQualifiers() []Qualifier { return b.Qualifiers }
