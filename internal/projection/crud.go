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

package projection

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/eclipse-basyx/titan-aas/internal/common"
	"github.com/eclipse-basyx/titan-aas/internal/common/model"
)

// InsertElement adds an element to the submodel in place. An empty path
// inserts at the root. A path addressing a SubmodelElementList appends, and
// <list>[<i>] inserts at index i; any other path addresses the parent
// container the element is added to. Duplicate idShorts within the target
// parent are rejected.
func InsertElement(sm *model.Submodel, path string, el model.SubmodelElement) error {
	if err := model.AssertElementValid(el); err != nil {
		return err
	}
	if path == "" {
		return insertInto(rootSlot(sm), el, -1)
	}
	segs, err := ParsePath(path)
	if err != nil {
		return err
	}

	// <list>[<i>] means insert-at-index: resolve the list, not the child.
	last := &segs[len(segs)-1]
	insertAt := -1
	if n := len(last.Indices); n > 0 {
		insertAt = last.Indices[n-1]
		last.Indices = last.Indices[:n-1]
	}

	loc, err := locate(sm, segs)
	if err != nil {
		return err
	}
	target, ok := slotOf(loc.element)
	if !ok {
		return common.NewErrBadRequest(fmt.Sprintf("element at %q cannot hold children", path)).WithCode("Path.Invalid")
	}
	if list, isList := loc.element.(*model.SubmodelElementList); isList {
		if err := assertListAccepts(list, el); err != nil {
			return err
		}
		return insertInto(target, el, insertAt)
	}
	if insertAt >= 0 {
		return common.NewErrBadRequest(fmt.Sprintf("indexed insert requires a SubmodelElementList at %q", path)).WithCode("Path.Invalid")
	}
	return insertInto(target, el, -1)
}

func insertInto(s slot, el model.SubmodelElement, at int) error {
	children := s.get()
	if el.GetIdShort() != "" {
		for _, c := range children {
			if c.GetIdShort() == el.GetIdShort() {
				return common.NewErrConflict(fmt.Sprintf("element with idShort %q already exists in parent", el.GetIdShort())).WithCode("Element.Exists")
			}
		}
	}
	if at < 0 || at >= len(children) {
		s.set(append(children, el))
		return nil
	}
	out := make([]model.SubmodelElement, 0, len(children)+1)
	out = append(out, children[:at]...)
	out = append(out, el)
	out = append(out, children[at:]...)
	s.set(out)
	return nil
}

func assertListAccepts(list *model.SubmodelElementList, el model.SubmodelElement) error {
	if list.TypeValueListElement != "" && el.GetModelType() != list.TypeValueListElement {
		return common.NewErrBadRequest(fmt.Sprintf("list accepts %q elements, got %q", list.TypeValueListElement, el.GetModelType())).WithCode("List.ElementTypeMismatch")
	}
	if p, ok := el.(*model.Property); ok && list.ValueTypeListElement != "" && p.ValueType != list.ValueTypeListElement {
		return common.NewErrBadRequest(fmt.Sprintf("list accepts valueType %q, got %q", list.ValueTypeListElement, p.ValueType)).WithCode("List.ValueTypeMismatch")
	}
	return nil
}

// ReplaceElement swaps the element at path for a new one, in place.
func ReplaceElement(sm *model.Submodel, path string, el model.SubmodelElement) error {
	if err := model.AssertElementValid(el); err != nil {
		return err
	}
	segs, err := ParsePath(path)
	if err != nil {
		return err
	}
	loc, err := locate(sm, segs)
	if err != nil {
		return err
	}
	children := loc.parent.get()
	children[loc.index] = el
	loc.parent.set(children)
	return nil
}

// PatchElement merges the fields of a partial document of the same modelType
// into the element at path. A modelType change is rejected.
func PatchElement(sm *model.Submodel, path string, partial json.RawMessage) error {
	segs, err := ParsePath(path)
	if err != nil {
		return err
	}
	loc, err := locate(sm, segs)
	if err != nil {
		return err
	}

	var patch map[string]json.RawMessage
	if err := json.Unmarshal(partial, &patch); err != nil {
		return common.NewErrBadRequest(fmt.Sprintf("patch body is not a JSON object: %s", err))
	}
	if mt, ok := patch["modelType"]; ok {
		var s string
		if err := json.Unmarshal(mt, &s); err != nil || s != loc.element.GetModelType() {
			return common.NewErrBadRequest(fmt.Sprintf("patch must not change modelType %q", loc.element.GetModelType())).WithCode("Element.TypeMismatch")
		}
	}

	cur, err := json.Marshal(loc.element)
	if err != nil {
		return common.NewInternalServerError(fmt.Sprintf("patch merge failed: %s", err))
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(cur, &merged); err != nil {
		return common.NewInternalServerError(fmt.Sprintf("patch merge failed: %s", err))
	}
	for k, v := range patch {
		merged[k] = v
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return common.NewInternalServerError(fmt.Sprintf("patch merge failed: %s", err))
	}
	el, err := model.UnmarshalSubmodelElement(out)
	if err != nil {
		return common.NewErrBadRequest(fmt.Sprintf("patched element is invalid: %s", err))
	}
	if err := model.AssertElementValid(el); err != nil {
		return err
	}
	children := loc.parent.get()
	children[loc.index] = el
	loc.parent.set(children)
	return nil
}

// DeleteElement removes the element at path, in place.
func DeleteElement(sm *model.Submodel, path string) error {
	segs, err := ParsePath(path)
	if err != nil {
		return err
	}
	loc, err := locate(sm, segs)
	if err != nil {
		return err
	}
	children := loc.parent.get()
	loc.parent.set(append(children[:loc.index], children[loc.index+1:]...))
	return nil
}

// UpdateElementValue performs a value-only update on the element at path.
// The incoming value must match the shape the element's $value projection
// produces, and scalar values must satisfy the element's valueType.
func UpdateElementValue(sm *model.Submodel, path string, value json.RawMessage) error {
	el, err := Navigate(sm, path)
	if err != nil {
		return err
	}
	switch v := el.(type) {
	case *model.Property:
		s, err := decodeScalar(value)
		if err != nil {
			return err
		}
		if err := assertScalarMatchesType(s, v.ValueType); err != nil {
			return err
		}
		v.Value = s
	case *model.MultiLanguageProperty:
		var m map[string]string
		if err := json.Unmarshal(value, &m); err != nil {
			return common.NewErrBadRequest("multi-language value must be a {lang: text} object").WithCode("Value.TypeMismatch")
		}
		langs := make([]model.LangStringTextType, 0, len(m))
		for lang, text := range m {
			langs = append(langs, model.LangStringTextType{Language: lang, Text: text})
		}
		v.Value = langs
	case *model.Range:
		var mm struct {
			Min string `json:"min"`
			Max string `json:"max"`
		}
		if err := json.Unmarshal(value, &mm); err != nil {
			return common.NewErrBadRequest("range value must be a {min, max} object").WithCode("Value.TypeMismatch")
		}
		prev := *v
		v.Min, v.Max = mm.Min, mm.Max
		if err := model.AssertElementValid(v); err != nil {
			*v = prev
			return err
		}
	case *model.Blob:
		s, err := decodeScalar(value)
		if err != nil {
			return err
		}
		v.Value = s
	case *model.File:
		s, err := decodeScalar(value)
		if err != nil {
			return err
		}
		v.Value = s
	case *model.ReferenceElement:
		var ref model.Reference
		if err := json.Unmarshal(value, &ref); err != nil {
			return common.NewErrBadRequest("reference element value must be a Reference").WithCode("Value.TypeMismatch")
		}
		if err := model.AssertReferenceValid(&ref); err != nil {
			return err
		}
		v.Value = &ref
	default:
		return common.NewErrBadRequest(fmt.Sprintf("value update unsupported for modelType %q", el.GetModelType())).WithCode("Value.Unsupported")
	}
	return nil
}

// decodeScalar accepts a JSON string or a bare number/boolean literal and
// returns its textual form.
func decodeScalar(value json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(value, &n); err == nil {
		return n.String(), nil
	}
	var b bool
	if err := json.Unmarshal(value, &b); err == nil {
		return strconv.FormatBool(b), nil
	}
	return "", common.NewErrBadRequest("value must be a JSON scalar").WithCode("Value.TypeMismatch")
}

func assertScalarMatchesType(s string, vt model.DataTypeDefXSD) error {
	if s == "" {
		return nil
	}
	switch {
	case vt.IsNumeric():
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return common.NewErrBadRequest(fmt.Sprintf("value %q is not a valid %s", s, vt)).WithCode("Value.TypeMismatch")
		}
	case vt == model.XSBoolean:
		if s != "true" && s != "false" {
			return common.NewErrBadRequest(fmt.Sprintf("value %q is not a valid xs:boolean", s)).WithCode("Value.TypeMismatch")
		}
	}
	return nil
}
