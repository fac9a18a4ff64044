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

// Entity types.
const (
	EntityTypeSelfManaged = "SelfManagedEntity"
	EntityTypeCoManaged   = "CoManagedEntity"
)

// RelationshipElement relates two referable elements.
type RelationshipElement struct {
	ElementBase
	First  Reference `json:"first"`
	Second Reference `json:"second"`
}

// AnnotatedRelationshipElement is a relationship with data element
// annotations. Annotations nest the element union.
type AnnotatedRelationshipElement struct {
	ElementBase
	First       Reference         `json:"first"`
	Second      Reference         `json:"second"`
	Annotations []SubmodelElement `json:"annotations,omitempty"`
}

// UnmarshalJSON dispatches the nested annotation elements by modelType.
func (a *AnnotatedRelationshipElement) UnmarshalJSON(data []byte) error {
	type alias AnnotatedRelationshipElement
	aux := &struct {
		*alias
		Annotations []json.RawMessage `json:"annotations,omitempty"`
	}{alias: (*alias)(a)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	return unmarshalElementSlice(aux.Annotations, &a.Annotations)
}

// SubmodelElementCollection is an unordered set of uniquely named elements.
type SubmodelElementCollection struct {
	ElementBase
	Value []SubmodelElement `json:"value,omitempty"`
}

// UnmarshalJSON dispatches the nested child elements by modelType.
func (c *SubmodelElementCollection) UnmarshalJSON(data []byte) error {
	type alias SubmodelElementCollection
	aux := &struct {
		*alias
		Value []json.RawMessage `json:"value,omitempty"`
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	return unmarshalElementSlice(aux.Value, &c.Value)
}

// SubmodelElementList is an ordered, homogeneous element sequence. Children
// are addressed by index in idShortPaths.
type SubmodelElementList struct {
	ElementBase
	OrderRelevant        *bool          `json:"orderRelevant,omitempty"`
	SemanticIDListElement *Reference    `json:"semanticIdListElement,omitempty"`
	TypeValueListElement string         `json:"typeValueListElement"`
	ValueTypeListElement DataTypeDefXSD `json:"valueTypeListElement,omitempty"`
	Value                []SubmodelElement `json:"value,omitempty"`
}

// UnmarshalJSON dispatches the nested child elements by modelType.
func (l *SubmodelElementList) UnmarshalJSON(data []byte) error {
	type alias SubmodelElementList
	aux := &struct {
		*alias
		Value []json.RawMessage `json:"value,omitempty"`
	}{alias: (*alias)(l)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	return unmarshalElementSlice(aux.Value, &l.Value)
}

// Entity describes an asset entity with statement elements.
type Entity struct {
	ElementBase
	EntityType       string            `json:"entityType"`
	GlobalAssetID    string            `json:"globalAssetId,omitempty"`
	SpecificAssetIDs []SpecificAssetID `json:"specificAssetIds,omitempty"`
	Statements       []SubmodelElement `json:"statements,omitempty"`
}

// UnmarshalJSON dispatches the nested statement elements by modelType.
func (e *Entity) UnmarshalJSON(data []byte) error {
	type alias Entity
	aux := &struct {
		*alias
		Statements []json.RawMessage `json:"statements,omitempty"`
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	return unmarshalElementSlice(aux.Statements, &e.Statements)
}

// OperationVariable wraps an element used as an operation parameter.
type OperationVariable struct {
	Value SubmodelElement `json:"value"`
}

// UnmarshalJSON dispatches the wrapped element by modelType.
func (v *OperationVariable) UnmarshalJSON(data []byte) error {
	aux := struct {
		Value json.RawMessage `json:"value"`
	}{}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Value) == 0 {
		return nil
	}
	el, err := UnmarshalSubmodelElement(aux.Value)
	if err != nil {
		return err
	}
	v.Value = el
	return nil
}

// Operation declares callable behavior. Titan-AAS stores and serves
// operations; execution is delegated through the OperationExecutor interface.
type Operation struct {
	ElementBase
	InputVariables    []OperationVariable `json:"inputVariables,omitempty"`
	OutputVariables   []OperationVariable `json:"outputVariables,omitempty"`
	InoutputVariables []OperationVariable `json:"inoutputVariables,omitempty"`
}

// OperationExecutor is the delegation point for Operation invocation.
// Titan-AAS itself never executes operations.
type OperationExecutor interface {
	Invoke(submodelID string, idShortPath string, op *Operation, inputs []OperationVariable) ([]OperationVariable, error)
}

func unmarshalElementSlice(raw []json.RawMessage, dst *[]SubmodelElement) error {
	if len(raw) == 0 {
		return nil
	}
	out := make([]SubmodelElement, 0, len(raw))
	for _, r := range raw {
		el, err := UnmarshalSubmodelElement(r)
		if err != nil {
			return err
		}
		out = append(out, el)
	}
	*dst = out
	return nil
}
