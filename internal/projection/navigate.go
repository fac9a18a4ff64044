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
	"fmt"

	"github.com/eclipse-basyx/titan-aas/internal/common"
	"github.com/eclipse-basyx/titan-aas/internal/common/model"
)

// slot is a read/write view onto the child slice of some parent node. CRUD
// rewrites the slice through it so slice growth propagates to the parent.
type slot struct {
	get func() []model.SubmodelElement
	set func([]model.SubmodelElement)
}

func rootSlot(sm *model.Submodel) slot {
	return slot{
		get: func() []model.SubmodelElement { return sm.SubmodelElements },
		set: func(v []model.SubmodelElement) { sm.SubmodelElements = v },
	}
}

// slotOf returns the child slot of a container element; ok is false for
// leaves.
func slotOf(el model.SubmodelElement) (slot, bool) {
	switch v := el.(type) {
	case *model.SubmodelElementCollection:
		return slot{
			get: func() []model.SubmodelElement { return v.Value },
			set: func(c []model.SubmodelElement) { v.Value = c },
		}, true
	case *model.SubmodelElementList:
		return slot{
			get: func() []model.SubmodelElement { return v.Value },
			set: func(c []model.SubmodelElement) { v.Value = c },
		}, true
	case *model.Entity:
		return slot{
			get: func() []model.SubmodelElement { return v.Statements },
			set: func(c []model.SubmodelElement) { v.Statements = c },
		}, true
	case *model.AnnotatedRelationshipElement:
		return slot{
			get: func() []model.SubmodelElement { return v.Annotations },
			set: func(c []model.SubmodelElement) { v.Annotations = c },
		}, true
	}
	return slot{}, false
}

// location pins an element inside its parent slice.
type location struct {
	parent  slot
	index   int
	element model.SubmodelElement
}

// Navigate resolves an idShortPath against a submodel and returns the
// element it addresses.
func Navigate(sm *model.Submodel, path string) (model.SubmodelElement, error) {
	segs, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	loc, err := locate(sm, segs)
	if err != nil {
		return nil, err
	}
	return loc.element, nil
}

// NavigateChain resolves a path and returns every element along it, in
// order. The $reference projection builds its key chain from this.
func NavigateChain(sm *model.Submodel, path string) ([]model.SubmodelElement, error) {
	segs, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	cur := rootSlot(sm)
	chain := make([]model.SubmodelElement, 0, len(segs))
	for _, seg := range segs {
		loc, err := step(cur, seg, path)
		if err != nil {
			return nil, err
		}
		chain = append(chain, loc.element)
		// list hops count as chain entries too
		for _, idx := range seg.Indices {
			list, ok := loc.element.(*model.SubmodelElementList)
			if !ok {
				return nil, notAList(seg.Name, path)
			}
			if idx >= len(list.Value) {
				return nil, indexOutOfRange(seg.Name, idx, path)
			}
			loc.element = list.Value[idx]
			chain = append(chain, loc.element)
		}
		next, ok := slotOf(loc.element)
		if !ok {
			next = slot{get: func() []model.SubmodelElement { return nil }, set: func([]model.SubmodelElement) {}}
		}
		cur = next
	}
	return chain, nil
}

// locate resolves a parsed path to the final element and its parent slot.
func locate(sm *model.Submodel, segs []Segment) (location, error) {
	cur := rootSlot(sm)
	var loc location
	for _, seg := range segs {
		var err error
		loc, err = step(cur, seg, FormatPath(segs))
		if err != nil {
			return location{}, err
		}
		for _, idx := range seg.Indices {
			list, ok := loc.element.(*model.SubmodelElementList)
			if !ok {
				return location{}, notAList(seg.Name, FormatPath(segs))
			}
			if idx >= len(list.Value) {
				return location{}, indexOutOfRange(seg.Name, idx, FormatPath(segs))
			}
			listSlot, _ := slotOf(list)
			loc = location{parent: listSlot, index: idx, element: list.Value[idx]}
		}
		next, ok := slotOf(loc.element)
		if !ok {
			next = slot{get: func() []model.SubmodelElement { return nil }, set: func([]model.SubmodelElement) {}}
		}
		cur = next
	}
	return loc, nil
}

// step finds the named child in the current slot.
func step(cur slot, seg Segment, fullPath string) (location, error) {
	children := cur.get()
	for i, c := range children {
		if c.GetIdShort() == seg.Name {
			return location{parent: cur, index: i, element: c}, nil
		}
	}
	return location{}, common.NewErrNotFound(fmt.Sprintf("element %q not found resolving idShortPath %q", seg.Name, fullPath)).WithCode("Element.NotFound")
}

func notAList(name, path string) error {
	return common.NewErrBadRequest(fmt.Sprintf("element %q in path %q is indexed but is not a SubmodelElementList", name, path)).WithCode("Path.Invalid")
}

func indexOutOfRange(name string, idx int, path string) error {
	return common.NewErrNotFound(fmt.Sprintf("index %d of list %q out of range in path %q", idx, name, path)).WithCode("Element.NotFound")
}
