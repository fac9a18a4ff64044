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
	"regexp"
	"strconv"

	"github.com/eclipse-basyx/titan-aas/internal/common"
)

var idShortPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// AssertIdShortValid validates the idShort naming pattern. Empty idShorts
// are allowed (presence requirements are the caller's concern).
func AssertIdShortValid(idShort string) error {
	if idShort == "" {
		return nil
	}
	if !idShortPattern.MatchString(idShort) {
		return common.NewErrBadRequest(fmt.Sprintf("idShort %q does not match ^[a-zA-Z_][a-zA-Z0-9_]*$", idShort)).WithCode("IdShort.Invalid")
	}
	return nil
}

// AssertReferenceValid validates a reference: at least one key, each key
// carrying a type and value.
func AssertReferenceValid(r *Reference) error {
	if r == nil {
		return nil
	}
	if len(r.Keys) == 0 {
		return common.NewErrBadRequest("reference must have at least one key").WithCode("Reference.Empty")
	}
	for i, k := range r.Keys {
		if k.Type == "" || k.Value == "" {
			return common.NewErrBadRequest(fmt.Sprintf("reference key %d must carry type and value", i)).WithCode("Reference.InvalidKey")
		}
	}
	return AssertReferenceValid(r.ReferredSemanticID)
}

// AssertElementValid validates one element and its whole subtree: idShort
// pattern, child uniqueness in collections, list homogeneity and the Range
// ordering constraint.
func AssertElementValid(el SubmodelElement) error {
	if el == nil {
		return common.NewErrBadRequest("submodel element must not be null")
	}
	if err := AssertIdShortValid(el.GetIdShort()); err != nil {
		return err
	}
	if err := AssertReferenceValid(el.GetSemanticID()); err != nil {
		return err
	}

	switch v := el.(type) {
	case *Range:
		if err := assertRangeOrdered(v); err != nil {
			return err
		}
	case *ReferenceElement:
		if err := AssertReferenceValid(v.Value); err != nil {
			return err
		}
	case *RelationshipElement:
		if err := AssertReferenceValid(&v.First); err != nil {
			return err
		}
		if err := AssertReferenceValid(&v.Second); err != nil {
			return err
		}
	case *AnnotatedRelationshipElement:
		if err := AssertReferenceValid(&v.First); err != nil {
			return err
		}
		if err := AssertReferenceValid(&v.Second); err != nil {
			return err
		}
		for _, a := range v.Annotations {
			if err := AssertElementValid(a); err != nil {
				return err
			}
		}
	case *SubmodelElementCollection:
		if err := assertChildrenValid(v.Value, true); err != nil {
			return err
		}
	case *SubmodelElementList:
		if err := assertListValid(v); err != nil {
			return err
		}
	case *Entity:
		if v.EntityType != EntityTypeSelfManaged && v.EntityType != EntityTypeCoManaged {
			return common.NewErrBadRequest(fmt.Sprintf("unknown entityType %q", v.EntityType)).WithCode("Entity.InvalidType")
		}
		if err := assertChildrenValid(v.Statements, true); err != nil {
			return err
		}
	case *Operation:
		for _, vars := range [][]OperationVariable{v.InputVariables, v.OutputVariables, v.InoutputVariables} {
			for _, ov := range vars {
				if err := AssertElementValid(ov.Value); err != nil {
					return err
				}
			}
		}
	case *BasicEventElement:
		if err := AssertReferenceValid(&v.Observed); err != nil {
			return err
		}
	}
	return nil
}

// assertChildrenValid validates a child set; uniqueIdShorts additionally
// enforces the per-parent uniqueness invariant.
func assertChildrenValid(children []SubmodelElement, uniqueIdShorts bool) error {
	seen := make(map[string]struct{}, len(children))
	for _, c := range children {
		if err := AssertElementValid(c); err != nil {
			return err
		}
		if !uniqueIdShorts || c.GetIdShort() == "" {
			continue
		}
		if _, dup := seen[c.GetIdShort()]; dup {
			return common.NewErrConflict(fmt.Sprintf("duplicate idShort %q within parent", c.GetIdShort())).WithCode("IdShort.Duplicate")
		}
		seen[c.GetIdShort()] = struct{}{}
	}
	return nil
}

func assertListValid(l *SubmodelElementList) error {
	if l.TypeValueListElement == "" {
		return common.NewErrBadRequest("submodel element list requires typeValueListElement").WithCode("List.MissingElementType")
	}
	for i, c := range l.Value {
		if err := AssertElementValid(c); err != nil {
			return err
		}
		if c.GetModelType() != l.TypeValueListElement {
			return common.NewErrBadRequest(fmt.Sprintf("list element %d has modelType %q, list requires %q", i, c.GetModelType(), l.TypeValueListElement)).WithCode("List.ElementTypeMismatch")
		}
		if p, ok := c.(*Property); ok && l.ValueTypeListElement != "" && p.ValueType != l.ValueTypeListElement {
			return common.NewErrBadRequest(fmt.Sprintf("list element %d has valueType %q, list requires %q", i, p.ValueType, l.ValueTypeListElement)).WithCode("List.ValueTypeMismatch")
		}
	}
	return nil
}

func assertRangeOrdered(r *Range) error {
	if !r.ValueType.IsNumeric() || r.Min == "" || r.Max == "" {
		return nil
	}
	minVal, errMin := strconv.ParseFloat(r.Min, 64)
	maxVal, errMax := strconv.ParseFloat(r.Max, 64)
	if errMin != nil || errMax != nil {
		return common.NewErrBadRequest(fmt.Sprintf("range bounds %q..%q are not valid %s values", r.Min, r.Max, r.ValueType)).WithCode("Range.InvalidBound")
	}
	if minVal > maxVal {
		return common.NewErrBadRequest(fmt.Sprintf("range min %q exceeds max %q", r.Min, r.Max)).WithCode("Range.MinAboveMax")
	}
	return nil
}

// AssertShellValid validates a shell document for storage.
func AssertShellValid(shell *AssetAdministrationShell) error {
	if shell.ID == "" {
		return common.NewErrBadRequest("shell requires an id").WithCode("Shell.MissingId")
	}
	if err := AssertIdShortValid(shell.IDShort); err != nil {
		return err
	}
	if shell.AssetInformation.AssetKind == "" {
		return common.NewErrBadRequest("shell requires assetInformation.assetKind").WithCode("Shell.MissingAssetKind")
	}
	for i := range shell.Submodels {
		if err := AssertReferenceValid(&shell.Submodels[i]); err != nil {
			return err
		}
	}
	return AssertReferenceValid(shell.DerivedFrom)
}

// AssertSubmodelValid validates a submodel document and its element tree.
func AssertSubmodelValid(sm *Submodel) error {
	if sm.ID == "" {
		return common.NewErrBadRequest("submodel requires an id").WithCode("Submodel.MissingId")
	}
	if err := AssertIdShortValid(sm.IDShort); err != nil {
		return err
	}
	if sm.Kind != "" && sm.Kind != ModellingKindInstance && sm.Kind != ModellingKindTemplate {
		return common.NewErrBadRequest(fmt.Sprintf("unknown submodel kind %q", sm.Kind)).WithCode("Submodel.InvalidKind")
	}
	if err := AssertReferenceValid(sm.SemanticID); err != nil {
		return err
	}
	return assertChildrenValid(sm.SubmodelElements, true)
}

// AssertConceptDescriptionValid validates a concept description for storage.
func AssertConceptDescriptionValid(cd *ConceptDescription) error {
	if cd.ID == "" {
		return common.NewErrBadRequest("concept description requires an id").WithCode("ConceptDescription.MissingId")
	}
	if err := AssertIdShortValid(cd.IDShort); err != nil {
		return err
	}
	for i := range cd.IsCaseOf {
		if err := AssertReferenceValid(&cd.IsCaseOf[i]); err != nil {
			return err
		}
	}
	return nil
}
