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

// Package aasx ingests AASX packages: an OPC (ZIP) container carrying one
// or more AAS environment documents plus supplementary files. Only JSON
// environments are accepted; XML serialization is the excluded external
// collaborator and is rejected with a clear error.
package aasx

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/eclipse-basyx/titan-aas/internal/common"
	"github.com/eclipse-basyx/titan-aas/internal/common/model"
)

// OPC relationship types used by AASX containers.
const (
	relTypeAASXOrigin = "http://admin-shell.io/aasx/relationships/aasx-origin"
	relTypeAASSpec    = "http://admin-shell.io/aasx/relationships/aas-spec"
)

// PackageFile is one supplementary part of the container.
type PackageFile struct {
	Path        string
	ContentType string
	Data        []byte
}

// ImportResult is the parsed content of one package.
type ImportResult struct {
	Shells              []model.AssetAdministrationShell
	Submodels           []model.Submodel
	ConceptDescriptions []model.ConceptDescription
	Files               []PackageFile
}

type relationships struct {
	XMLName       xml.Name `xml:"Relationships"`
	Relationships []struct {
		Type   string `xml:"Type,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// ImportFromStream parses an AASX container. The stream is read fully; ZIP
// central directories need random access.
func ImportFromStream(r io.Reader) (*ImportResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, common.NewErrBadRequest(fmt.Sprintf("failed to read package stream: %s", err))
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, common.NewErrBadRequest(fmt.Sprintf("package is not a ZIP archive: %s", err)).WithCode("Package.Invalid")
	}

	parts := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, common.NewErrBadRequest(fmt.Sprintf("failed to open package part %q: %s", f.Name, err)).WithCode("Package.Invalid")
		}
		content, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, common.NewErrBadRequest(fmt.Sprintf("failed to read package part %q: %s", f.Name, err)).WithCode("Package.Invalid")
		}
		parts[normalizePartName(f.Name)] = content
	}

	if _, ok := parts["[Content_Types].xml"]; !ok {
		return nil, common.NewErrBadRequest("package carries no [Content_Types].xml and is not an OPC container").WithCode("Package.Invalid")
	}

	specParts, err := resolveSpecParts(parts)
	if err != nil {
		return nil, err
	}
	if len(specParts) == 0 {
		return nil, common.NewErrBadRequest("package declares no AAS environment document").WithCode("Package.Invalid")
	}

	result := &ImportResult{}
	consumed := map[string]bool{"[Content_Types].xml": true}
	for _, name := range specParts {
		doc, ok := parts[name]
		if !ok {
			return nil, common.NewErrBadRequest(fmt.Sprintf("declared environment part %q is missing", name)).WithCode("Package.Invalid")
		}
		consumed[name] = true
		if err := mergeEnvironment(result, name, doc); err != nil {
			return nil, err
		}
	}

	for name, content := range parts {
		if consumed[name] || isRelsPart(name) {
			continue
		}
		result.Files = append(result.Files, PackageFile{
			Path:        name,
			ContentType: guessContentType(name),
			Data:        content,
		})
	}
	return result, nil
}

// resolveSpecParts walks the OPC relationship chain: the root rels point at
// the aasx-origin part, whose own rels point at the aas-spec environment
// documents.
func resolveSpecParts(parts map[string][]byte) ([]string, error) {
	rootRels, ok := parts["_rels/.rels"]
	if !ok {
		return nil, common.NewErrBadRequest("package carries no _rels/.rels relationship part").WithCode("Package.Invalid")
	}
	origins, err := relTargets(rootRels, relTypeAASXOrigin, "")
	if err != nil {
		return nil, err
	}
	if len(origins) == 0 {
		return nil, common.NewErrBadRequest("package declares no aasx-origin relationship").WithCode("Package.Invalid")
	}

	var specs []string
	for _, origin := range origins {
		relsName := path.Join(path.Dir(origin), "_rels", path.Base(origin)+".rels")
		relsDoc, ok := parts[relsName]
		if !ok {
			continue
		}
		targets, err := relTargets(relsDoc, relTypeAASSpec, path.Dir(origin))
		if err != nil {
			return nil, err
		}
		specs = append(specs, targets...)
	}
	return specs, nil
}

// relTargets parses one relationship part and resolves targets of the given
// type relative to baseDir.
func relTargets(doc []byte, relType, baseDir string) ([]string, error) {
	var rels relationships
	if err := xml.Unmarshal(doc, &rels); err != nil {
		return nil, common.NewErrBadRequest(fmt.Sprintf("relationship part does not parse: %s", err)).WithCode("Package.Invalid")
	}
	var out []string
	for _, rel := range rels.Relationships {
		if rel.Type != relType {
			continue
		}
		target := rel.Target
		if strings.HasPrefix(target, "/") {
			target = strings.TrimPrefix(target, "/")
		} else if baseDir != "" {
			target = path.Join(baseDir, target)
		}
		out = append(out, normalizePartName(target))
	}
	return out, nil
}

// mergeEnvironment parses one environment document into the result. XML
// environments are detected up front and rejected.
func mergeEnvironment(result *ImportResult, name string, doc []byte) error {
	trimmed := bytes.TrimLeft(doc, " \t\r\n\xef\xbb\xbf")
	if len(trimmed) > 0 && trimmed[0] == '<' {
		return common.NewErrBadRequest(fmt.Sprintf("environment %q is XML; only JSON environments are supported", name)).WithCode("Package.XMLUnsupported")
	}
	var env model.Environment
	if err := json.Unmarshal(doc, &env); err != nil {
		return common.NewErrBadRequest(fmt.Sprintf("environment %q does not parse: %s", name, err)).WithCode("Package.Invalid")
	}
	result.Shells = append(result.Shells, env.AssetAdministrationShells...)
	result.Submodels = append(result.Submodels, env.Submodels...)
	result.ConceptDescriptions = append(result.ConceptDescriptions, env.ConceptDescriptions...)
	return nil
}

func normalizePartName(name string) string {
	return strings.TrimPrefix(path.Clean(name), "/")
}

func isRelsPart(name string) bool {
	return strings.HasSuffix(name, ".rels") && strings.Contains(name, "_rels/")
}

func guessContentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".json":
		return "application/json"
	case ".xml":
		return "application/xml"
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
