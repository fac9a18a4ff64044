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

// DataTypeDefXSD is the xsd value-type discriminator of Property, Range and
// friends (e.g. "xs:double", "xs:string", "xs:int", "xs:boolean").
type DataTypeDefXSD string

// Common value types.
const (
	XSString  DataTypeDefXSD = "xs:string"
	XSBoolean DataTypeDefXSD = "xs:boolean"
	XSInt     DataTypeDefXSD = "xs:int"
	XSLong    DataTypeDefXSD = "xs:long"
	XSFloat   DataTypeDefXSD = "xs:float"
	XSDouble  DataTypeDefXSD = "xs:double"
)

// IsNumeric reports whether the value type orders numerically. Used by the
// Range min<=max constraint and field value conversion.
func (d DataTypeDefXSD) IsNumeric() bool {
	switch d {
	case XSInt, XSLong, XSFloat, XSDouble,
		"xs:short", "xs:byte", "xs:integer", "xs:decimal",
		"xs:unsignedInt", "xs:unsignedLong", "xs:unsignedShort", "xs:unsignedByte",
		"xs:nonNegativeInteger", "xs:nonPositiveInteger", "xs:positiveInteger", "xs:negativeInteger":
		return true
	}
	return false
}

// Property holds a single typed scalar value.
type Property struct {
	ElementBase
	ValueType DataTypeDefXSD `json:"valueType"`
	Value     string         `json:"value,omitempty"`
	ValueID   *Reference     `json:"valueId,omitempty"`
}

// NewProperty creates a Property with the discriminator set.
func NewProperty(valueType DataTypeDefXSD) *Property {
	return &Property{ElementBase: ElementBase{ModelType: ModelTypeProperty}, ValueType: valueType}
}

// MultiLanguageProperty holds one text value per language.
type MultiLanguageProperty struct {
	ElementBase
	Value   []LangStringTextType `json:"value,omitempty"`
	ValueID *Reference           `json:"valueId,omitempty"`
}

// Range holds a typed min/max pair.
type Range struct {
	ElementBase
	ValueType DataTypeDefXSD `json:"valueType"`
	Min       string         `json:"min,omitempty"`
	Max       string         `json:"max,omitempty"`
}

// Blob carries inline binary content, base64 on the wire. Large values are
// externalized into blob_assets by the repository.
type Blob struct {
	ElementBase
	ContentType string `json:"contentType"`
	Value       string `json:"value,omitempty"`
}

// File points at external binary content by URI.
type File struct {
	ElementBase
	ContentType string `json:"contentType"`
	Value       string `json:"value,omitempty"`
}

// ReferenceElement holds a single reference value.
type ReferenceElement struct {
	ElementBase
	Value *Reference `json:"value,omitempty"`
}

// Capability expresses an asset capability; it carries no value.
type Capability struct {
	ElementBase
}

// BasicEventElement describes an observable event source.
type BasicEventElement struct {
	ElementBase
	Observed      Reference  `json:"observed"`
	Direction     string     `json:"direction"` // input | output
	State         string     `json:"state"`     // on | off
	MessageTopic  string     `json:"messageTopic,omitempty"`
	MessageBroker *Reference `json:"messageBroker,omitempty"`
	LastUpdate    string     `json:"lastUpdate,omitempty"`
	MinInterval   string     `json:"minInterval,omitempty"`
	MaxInterval   string     `json:"maxInterval,omitempty"`
}
