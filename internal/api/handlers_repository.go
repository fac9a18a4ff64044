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

package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eclipse-basyx/titan-aas/internal/common"
	"github.com/eclipse-basyx/titan-aas/internal/common/model"
	"github.com/eclipse-basyx/titan-aas/internal/repository"
)

func identifierParam(r *http.Request, name string) (string, error) {
	return common.DecodeIdentifier(chi.URLParam(r, name))
}

// createdID pulls the identifier out of a stored document for the Location
// header.
func createdID(doc []byte) string {
	var head struct {
		ID string `json:"id"`
	}
	if err := jsonAPI.Unmarshal(doc, &head); err != nil {
		return ""
	}
	return head.ID
}

func writeCreated(w http.ResponseWriter, collection string, doc []byte, etag string) {
	if id := createdID(doc); id != "" {
		w.Header().Set("Location", "/"+collection+"/"+common.EncodeIdentifier(id))
	}
	setETag(w, etag)
	writeRawJSON(w, http.StatusCreated, doc)
}

// writeResource handles the conditional read headers shared by every
// single-document GET.
func writeResource(w http.ResponseWriter, r *http.Request, doc []byte, etag string) {
	setETag(w, etag)
	if ifNoneMatchHit(r, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeRawJSON(w, http.StatusOK, doc)
}

func renderOptionsOf(r *http.Request) RenderOptions {
	q := r.URL.Query()
	return RenderOptions{Level: q.Get("level"), Extent: q.Get("extent")}
}

// --- shells ---

func (s *Service) handleListShells(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()

	// assetIds narrows via the discovery index instead of the paged scan
	if encoded := q["assetIds"]; len(encoded) > 0 {
		pairs := make([]model.SpecificAssetID, 0, len(encoded))
		for _, e := range encoded {
			raw, err := common.DecodeIdentifier(e)
			if err != nil {
				writeError(w, common.NewErrBadRequest("assetIds entry is not Base64URL"))
				return
			}
			var pair model.SpecificAssetID
			if err := jsonAPI.Unmarshal([]byte(raw), &pair); err != nil {
				writeError(w, common.NewErrBadRequest("assetIds entry does not parse: "+err.Error()))
				return
			}
			pairs = append(pairs, pair)
		}
		ids, err := s.ShellIDsByAssetLinks(r.Context(), pairs, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		result := make([]json.RawMessage, 0, len(ids))
		for _, id := range ids {
			doc, _, err := s.GetShell(r.Context(), id)
			if common.IsErrNotFound(err) {
				continue
			}
			if err != nil {
				writeError(w, err)
				return
			}
			result = append(result, doc)
		}
		writeJSON(w, http.StatusOK, struct {
			Result         []json.RawMessage    `json:"result"`
			PagingMetadata model.PagingMetadata `json:"paging_metadata"`
		}{Result: result})
		return
	}

	filter := repository.ListFilter{
		IDShort:       q.Get("idShort"),
		GlobalAssetID: q.Get("globalAssetId"),
		AssetKind:     q.Get("assetKind"),
	}
	doc, err := s.ListShells(r.Context(), limit, q.Get("cursor"), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeRawJSON(w, http.StatusOK, doc)
}

func (s *Service) handleCreateShell(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	doc, etag, err := s.CreateShell(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCreated(w, "shells", doc, etag)
}

func (s *Service) handleGetShell(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r, "aasIdentifier")
	if err != nil {
		writeError(w, err)
		return
	}
	doc, etag, err := s.GetShell(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeResource(w, r, doc, etag)
}

func (s *Service) handlePutShell(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r, "aasIdentifier")
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	doc, etag, created, err := s.UpdateShell(r.Context(), id, body, ifMatchOf(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if created {
		writeCreated(w, "shells", doc, etag)
		return
	}
	setETag(w, etag)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleDeleteShell(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r, "aasIdentifier")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.DeleteShell(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- submodels ---

func (s *Service) handleListSubmodels(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	semanticID := q.Get("semanticId")
	if semanticID != "" {
		if decoded, err := common.DecodeIdentifier(semanticID); err == nil {
			semanticID = decoded
		}
	}
	filter := repository.ListFilter{
		IDShort:    q.Get("idShort"),
		SemanticID: semanticID,
		Kind:       q.Get("kind"),
	}
	doc, err := s.ListSubmodels(r.Context(), limit, q.Get("cursor"), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeRawJSON(w, http.StatusOK, doc)
}

func (s *Service) handleCreateSubmodel(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	doc, etag, err := s.CreateSubmodel(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCreated(w, "submodels", doc, etag)
}

func (s *Service) handleGetSubmodel(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r, "submodelIdentifier")
	if err != nil {
		writeError(w, err)
		return
	}
	opts := renderOptionsOf(r)
	if opts.Level == "" && opts.Extent == "" {
		doc, etag, err := s.GetSubmodel(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeResource(w, r, doc, etag)
		return
	}
	sm, err := s.GetSubmodelRendered(r.Context(), id, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sm)
}

func (s *Service) handlePutSubmodel(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r, "submodelIdentifier")
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	doc, etag, created, err := s.UpdateSubmodel(r.Context(), id, body, ifMatchOf(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if created {
		writeCreated(w, "submodels", doc, etag)
		return
	}
	setETag(w, etag)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleDeleteSubmodel(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r, "submodelIdentifier")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.DeleteSubmodel(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleGetSubmodelValue(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r, "submodelIdentifier")
	if err != nil {
		writeError(w, err)
		return
	}
	value, err := s.GetSubmodelValue(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, value)
}

func (s *Service) handlePatchSubmodelValue(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r, "submodelIdentifier")
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.PatchSubmodelValue(r.Context(), id, body, ifMatchOf(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleGetSubmodelMetadata(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r, "submodelIdentifier")
	if err != nil {
		writeError(w, err)
		return
	}
	meta, err := s.GetSubmodelMetadata(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (s *Service) handlePatchSubmodelMetadata(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r, "submodelIdentifier")
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.PatchSubmodelMetadata(r.Context(), id, body, ifMatchOf(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleGetSubmodelPaths(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r, "submodelIdentifier")
	if err != nil {
		writeError(w, err)
		return
	}
	paths, err := s.GetSubmodelPaths(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paths)
}

func (s *Service) handleGetSubmodelReference(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r, "submodelIdentifier")
	if err != nil {
		writeError(w, err)
		return
	}
	ref, err := s.GetSubmodelReference(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

// --- submodel elements ---

func (s *Service) handleListElements(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r, "submodelIdentifier")
	if err != nil {
		writeError(w, err)
		return
	}
	elements, err := s.ListElements(r.Context(), id, renderOptionsOf(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Result         []model.SubmodelElement `json:"result"`
		PagingMetadata model.PagingMetadata    `json:"paging_metadata"`
	}{Result: elements})
}

func (s *Service) handlePostRootElement(w http.ResponseWriter, r *http.Request) {
	s.postElement(w, r, "")
}

func (s *Service) handlePostChildElement(w http.ResponseWriter, r *http.Request) {
	s.postElement(w, r, chi.URLParam(r, "idShortPath"))
}

func (s *Service) postElement(w http.ResponseWriter, r *http.Request, parentPath string) {
	id, err := identifierParam(r, "submodelIdentifier")
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	el, err := s.PostElement(r.Context(), id, parentPath, body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, el)
}

func (s *Service) handleGetElement(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r, "submodelIdentifier")
	if err != nil {
		writeError(w, err)
		return
	}
	el, err := s.GetElement(r.Context(), id, chi.URLParam(r, "idShortPath"), renderOptionsOf(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, el)
}

func (s *Service) handlePutElement(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r, "submodelIdentifier")
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	el, err := s.PutElement(r.Context(), id, chi.URLParam(r, "idShortPath"), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, el)
}

func (s *Service) handlePatchElement(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r, "submodelIdentifier")
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.PatchElement(r.Context(), id, chi.URLParam(r, "idShortPath"), body); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleDeleteElement(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r, "submodelIdentifier")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.DeleteElement(r.Context(), id, chi.URLParam(r, "idShortPath")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleGetElementValue(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r, "submodelIdentifier")
	if err != nil {
		writeError(w, err)
		return
	}
	value, err := s.GetElementValue(r.Context(), id, chi.URLParam(r, "idShortPath"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeRawJSON(w, http.StatusOK, value)
}

func (s *Service) handlePatchElementValue(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r, "submodelIdentifier")
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.UpdateElementValue(r.Context(), id, chi.URLParam(r, "idShortPath"), body); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleGetElementMetadata(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r, "submodelIdentifier")
	if err != nil {
		writeError(w, err)
		return
	}
	meta, err := s.GetElementMetadata(r.Context(), id, chi.URLParam(r, "idShortPath"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (s *Service) handleGetElementReference(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r, "submodelIdentifier")
	if err != nil {
		writeError(w, err)
		return
	}
	ref, err := s.GetElementReference(r.Context(), id, chi.URLParam(r, "idShortPath"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

func (s *Service) handleGetElementPaths(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r, "submodelIdentifier")
	if err != nil {
		writeError(w, err)
		return
	}
	paths, err := s.GetElementPaths(r.Context(), id, chi.URLParam(r, "idShortPath"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paths)
}

// --- attachments ---

func (s *Service) handleGetAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r, "submodelIdentifier")
	if err != nil {
		writeError(w, err)
		return
	}
	payload, contentType, err := s.GetAttachment(r.Context(), id, chi.URLParam(r, "idShortPath"))
	if err != nil {
		writeError(w, err)
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (s *Service) handlePutAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r, "submodelIdentifier")
	if err != nil {
		writeError(w, err)
		return
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, common.NewErrBadRequest("attachment read failed: "+err.Error()))
		return
	}
	if err := s.PutAttachment(r.Context(), id, chi.URLParam(r, "idShortPath"), r.Header.Get("Content-Type"), payload); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleDeleteAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r, "submodelIdentifier")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.DeleteAttachment(r.Context(), id, chi.URLParam(r, "idShortPath")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- concept descriptions ---

func (s *Service) handleListConceptDescriptions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	doc, err := s.ListConceptDescriptions(r.Context(), limit, q.Get("cursor"), repository.ListFilter{IDShort: q.Get("idShort")})
	if err != nil {
		writeError(w, err)
		return
	}
	writeRawJSON(w, http.StatusOK, doc)
}

func (s *Service) handleCreateConceptDescription(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	doc, etag, err := s.CreateConceptDescription(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCreated(w, "concept-descriptions", doc, etag)
}

func (s *Service) handleGetConceptDescription(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r, "cdIdentifier")
	if err != nil {
		writeError(w, err)
		return
	}
	doc, etag, err := s.GetConceptDescription(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeResource(w, r, doc, etag)
}

func (s *Service) handlePutConceptDescription(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r, "cdIdentifier")
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	doc, etag, created, err := s.UpdateConceptDescription(r.Context(), id, body, ifMatchOf(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if created {
		writeCreated(w, "concept-descriptions", doc, etag)
		return
	}
	setETag(w, etag)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleDeleteConceptDescription(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r, "cdIdentifier")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.DeleteConceptDescription(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
