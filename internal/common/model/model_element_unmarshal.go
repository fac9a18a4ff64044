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

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// elementConstructors maps the modelType discriminator to a constructor of
// the concrete variant. One map lookup selects the type in constant time.
var elementConstructors = map[string]func() SubmodelElement{
	ModelTypeProperty:                     func() SubmodelElement { return &Property{} },
	ModelTypeMultiLanguageProperty:        func() SubmodelElement { return &MultiLanguageProperty{} },
	ModelTypeRange:                        func() SubmodelElement { return &Range{} },
	ModelTypeBlob:                         func() SubmodelElement { return &Blob{} },
	ModelTypeFile:                         func() SubmodelElement { return &File{} },
	ModelTypeReferenceElement:             func() SubmodelElement { return &ReferenceElement{} },
	ModelTypeRelationshipElement:          func() SubmodelElement { return &RelationshipElement{} },
	ModelTypeAnnotatedRelationshipElement: func() SubmodelElement { return &AnnotatedRelationshipElement{} },
	ModelTypeSubmodelElementCollection:    func() SubmodelElement { return &SubmodelElementCollection{} },
	ModelTypeSubmodelElementList:          func() SubmodelElement { return &SubmodelElementList{} },
	ModelTypeEntity:                       func() SubmodelElement { return &Entity{} },
	ModelTypeBasicEventElement:            func() SubmodelElement { return &BasicEventElement{} },
	ModelTypeOperation:                    func() SubmodelElement { return &Operation{} },
	ModelTypeCapability:                   func() SubmodelElement { return &Capability{} },
}

// NewElementOfType constructs an empty element of the given modelType, or
// nil when the type is unknown.
func NewElementOfType(modelType string) SubmodelElement {
	ctor, ok := elementConstructors[modelType]
	if !ok {
		return nil
	}
	return ctor()
}

// UnmarshalSubmodelElement creates the concrete SubmodelElement variant from
// JSON. An unknown modelType is a hard validation error.
func UnmarshalSubmodelElement(data []byte) (SubmodelElement, error) {
	var raw struct {
		ModelType string `json:"modelType"`
	}
	if err := jsonAPI.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to determine modelType: %w", err)
	}

	ctor, ok := elementConstructors[raw.ModelType]
	if !ok {
		return nil, fmt.Errorf("unsupported modelType: %q", raw.ModelType)
	}
	el := ctor()
	if err := jsonAPI.Unmarshal(data, el); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", raw.ModelType, err)
	}
	return el, nil
}
