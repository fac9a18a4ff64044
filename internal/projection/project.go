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

	"github.com/eclipse-basyx/titan-aas/internal/common"
	"github.com/eclipse-basyx/titan-aas/internal/common/model"
)

// Query modifier values.
const (
	LevelCore = "core"
	LevelDeep = "deep"

	ExtentWithoutBlobValue = "withoutBlobValue"
	ExtentWithBlobValue    = "withBlobValue"

	ContentNormal    = "normal"
	ContentTrimmed   = "trimmed"
	ContentValue     = "value"
	ContentPath      = "path"
	ContentReference = "reference"
	ContentMetadata  = "metadata"
)

// Value computes the $value projection of one element. Elements that carry
// no value (Capability, Operation, BasicEventElement) are rejected.
func Value(el model.SubmodelElement) (any, error) {
	v, ok := elementValue(el)
	if !ok {
		return nil, common.NewErrBadRequest(fmt.Sprintf("element of modelType %q has no value representation", el.GetModelType())).WithCode("Value.Unsupported")
	}
	return v, nil
}

// SubmodelValue computes the $value projection of a whole submodel: the
// idShort → value mapping of its top-level elements. Valueless elements are
// skipped.
func SubmodelValue(sm *model.Submodel) map[string]any {
	return childValueMap(sm.SubmodelElements)
}

func childValueMap(children []model.SubmodelElement) map[string]any {
	out := make(map[string]any, len(children))
	for _, c := range children {
		if v, ok := elementValue(c); ok && c.GetIdShort() != "" {
			out[c.GetIdShort()] = v
		}
	}
	return out
}

func elementValue(el model.SubmodelElement) (any, bool) {
	switch v := el.(type) {
	case *model.Property:
		return v.Value, true
	case *model.MultiLanguageProperty:
		m := make(map[string]string, len(v.Value))
		for _, ls := range v.Value {
			m[ls.Language] = ls.Text
		}
		return m, true
	case *model.Range:
		return map[string]string{"min": v.Min, "max": v.Max}, true
	case *model.Blob:
		return v.Value, true
	case *model.File:
		return v.Value, true
	case *model.ReferenceElement:
		return v.Value, true
	case *model.RelationshipElement:
		return map[string]any{"first": v.First, "second": v.Second}, true
	case *model.AnnotatedRelationshipElement:
		return map[string]any{"first": v.First, "second": v.Second, "annotations": childValueMap(v.Annotations)}, true
	case *model.SubmodelElementCollection:
		return childValueMap(v.Value), true
	case *model.SubmodelElementList:
		vals := make([]any, 0, len(v.Value))
		for _, c := range v.Value {
			if cv, ok := elementValue(c); ok {
				vals = append(vals, cv)
			}
		}
		return vals, true
	case *model.Entity:
		return map[string]any{"entityType": v.EntityType, "globalAssetId": v.GlobalAssetID, "statements": childValueMap(v.Statements)}, true
	}
	return nil, false
}

// valueCarryingFields are stripped by the $metadata projection.
var valueCarryingFields = []string{"value", "min", "max", "statements", "annotations", "first", "second"}

// Metadata computes the $metadata projection: the node as stored with its
// value-carrying fields removed.
func Metadata(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, common.NewInternalServerError(fmt.Sprintf("metadata projection failed: %s", err))
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, common.NewInternalServerError(fmt.Sprintf("metadata projection failed: %s", err))
	}
	for _, f := range valueCarryingFields {
		delete(m, f)
	}
	delete(m, "submodelElements")
	return m, nil
}

// ReferenceOf computes the $reference projection of an element: a model
// reference rooted at the submodel, one key per path hop.
func ReferenceOf(sm *model.Submodel, path string) (*model.Reference, error) {
	chain, err := NavigateChain(sm, path)
	if err != nil {
		return nil, err
	}
	segs, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	keys := make([]model.Key, 0, len(chain)+1)
	keys = append(keys, model.Key{Type: model.KeyTypeSubmodel, Value: sm.ID})
	ci := 0
	for _, seg := range segs {
		keys = append(keys, model.Key{Type: chain[ci].GetModelType(), Value: seg.Name})
		ci++
		for _, idx := range seg.Indices {
			keys = append(keys, model.Key{Type: chain[ci].GetModelType(), Value: fmt.Sprintf("%d", idx)})
			ci++
		}
	}
	return &model.Reference{Type: model.ReferenceTypeModel, Keys: keys}, nil
}

// SubmodelReference computes the $reference projection of the submodel
// itself.
func SubmodelReference(sm *model.Submodel) *model.Reference {
	return &model.Reference{
		Type: model.ReferenceTypeModel,
		Keys: []model.Key{{Type: model.KeyTypeSubmodel, Value: sm.ID}},
	}
}

// Paths computes the $path projection: the flattened leaf idShortPaths under
// the given element. A childless container contributes its own path.
func Paths(el model.SubmodelElement, base string) []string {
	var out []string
	collectPaths(el, base, &out)
	return out
}

// SubmodelPaths flattens every leaf path of a submodel.
func SubmodelPaths(sm *model.Submodel) []string {
	var out []string
	for _, c := range sm.SubmodelElements {
		collectPaths(c, c.GetIdShort(), &out)
	}
	return out
}

func collectPaths(el model.SubmodelElement, path string, out *[]string) {
	if list, ok := el.(*model.SubmodelElementList); ok {
		if len(list.Value) == 0 {
			*out = append(*out, path)
			return
		}
		for i, c := range list.Value {
			collectPaths(c, fmt.Sprintf("%s[%d]", path, i), out)
		}
		return
	}
	s, ok := slotOf(el)
	if !ok || len(s.get()) == 0 {
		*out = append(*out, path)
		return
	}
	for _, c := range s.get() {
		collectPaths(c, path+"."+c.GetIdShort(), out)
	}
}

// ApplyLevel prunes the tree in place for level=core: direct children stay,
// their subtrees go.
func ApplyLevel(el model.SubmodelElement, level string) {
	if level != LevelCore {
		return
	}
	s, ok := slotOf(el)
	if !ok {
		return
	}
	for _, c := range s.get() {
		if cs, ok := slotOf(c); ok {
			cs.set(nil)
		}
	}
}

// ApplySubmodelLevel prunes a whole submodel for level=core.
func ApplySubmodelLevel(sm *model.Submodel, level string) {
	if level != LevelCore {
		return
	}
	for _, c := range sm.SubmodelElements {
		if cs, ok := slotOf(c); ok {
			cs.set(nil)
		}
	}
}

// ApplyExtent strips Blob values in place for extent=withoutBlobValue.
func ApplyExtent(el model.SubmodelElement, extent string) {
	if extent == ExtentWithBlobValue || extent == "" {
		return
	}
	stripBlobs(el)
}

// ApplySubmodelExtent strips Blob values across a submodel.
func ApplySubmodelExtent(sm *model.Submodel, extent string) {
	if extent == ExtentWithBlobValue || extent == "" {
		return
	}
	for _, c := range sm.SubmodelElements {
		stripBlobs(c)
	}
}

func stripBlobs(el model.SubmodelElement) {
	if b, ok := el.(*model.Blob); ok {
		b.Value = ""
		return
	}
	if s, ok := slotOf(el); ok {
		for _, c := range s.get() {
			stripBlobs(c)
		}
	}
}
