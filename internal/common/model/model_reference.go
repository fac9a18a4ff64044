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

// Package model contains the AAS v3 metamodel types stored and served by
// Titan-AAS: shells, submodels, the fourteen submodel element variants,
// concept descriptions, descriptors and the API envelopes.
package model

// Reference types.
const (
	ReferenceTypeExternal = "ExternalReference"
	ReferenceTypeModel    = "ModelReference"
)

// Key types used in model references.
const (
	KeyTypeSubmodel                     = "Submodel"
	KeyTypeAssetAdministrationShell     = "AssetAdministrationShell"
	KeyTypeConceptDescription           = "ConceptDescription"
	KeyTypeProperty                     = "Property"
	KeyTypeMultiLanguageProperty        = "MultiLanguageProperty"
	KeyTypeRange                        = "Range"
	KeyTypeBlob                         = "Blob"
	KeyTypeFile                         = "File"
	KeyTypeReferenceElement             = "ReferenceElement"
	KeyTypeRelationshipElement          = "RelationshipElement"
	KeyTypeAnnotatedRelationshipElement = "AnnotatedRelationshipElement"
	KeyTypeSubmodelElementCollection    = "SubmodelElementCollection"
	KeyTypeSubmodelElementList          = "SubmodelElementList"
	KeyTypeEntity                       = "Entity"
	KeyTypeBasicEventElement            = "BasicEventElement"
	KeyTypeOperation                    = "Operation"
	KeyTypeCapability                   = "Capability"
	KeyTypeSubmodelElement              = "SubmodelElement"
)

// Key is one typed link in a reference chain.
type Key struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Reference points either at an external IRI or along a chain of typed keys
// into a specific model element. A valid reference carries at least one key.
type Reference struct {
	Type               string     `json:"type"`
	Keys               []Key      `json:"keys"`
	ReferredSemanticID *Reference `json:"referredSemanticId,omitempty"`
}

// LastKeyValue returns the value of the last key, or "" for an empty chain.
// For semanticId references this is the value indexed for submodel filtering.
func (r *Reference) LastKeyValue() string {
	if r == nil || len(r.Keys) == 0 {
		return ""
	}
	return r.Keys[len(r.Keys)-1].Value
}

// LangStringTextType is a language-tagged text value.
type LangStringTextType struct {
	Language string `json:"language"`
	Text     string `json:"text"`
}

// LangStringNameType is a language-tagged display name.
type LangStringNameType struct {
	Language string `json:"language"`
	Text     string `json:"text"`
}

// AdministrativeInformation carries versioning metadata of an identifiable.
type AdministrativeInformation struct {
	Version    string     `json:"version,omitempty"`
	Revision   string     `json:"revision,omitempty"`
	Creator    *Reference `json:"creator,omitempty"`
	TemplateID string     `json:"templateId,omitempty"`
}

// Qualifier is a constraint attached to an element.
type Qualifier struct {
	Kind        string     `json:"kind,omitempty"`
	Type        string     `json:"type"`
	ValueType   string     `json:"valueType"`
	Value       string     `json:"value,omitempty"`
	ValueID     *Reference `json:"valueId,omitempty"`
	SemanticID  *Reference `json:"semanticId,omitempty"`
}

// Extension is a proprietary name/value attachment.
type Extension struct {
	Name       string     `json:"name"`
	ValueType  string     `json:"valueType,omitempty"`
	Value      string     `json:"value,omitempty"`
	SemanticID *Reference `json:"semanticId,omitempty"`
	RefersTo   []Reference `json:"refersTo,omitempty"`
}

// SpecificAssetID names an asset within a discovery namespace.
type SpecificAssetID struct {
	Name              string     `json:"name"`
	Value             string     `json:"value"`
	ExternalSubjectID *Reference `json:"externalSubjectId,omitempty"`
	SemanticID        *Reference `json:"semanticId,omitempty"`
}

// EmbeddedDataSpecification pairs a data specification reference with its
// content. Content stays raw: vocabulary validation is advisory only.
type EmbeddedDataSpecification struct {
	DataSpecification        *Reference     `json:"dataSpecification,omitempty"`
	DataSpecificationContent map[string]any `json:"dataSpecificationContent,omitempty"`
}
