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
	"net/http"

	"github.com/eclipse-basyx/titan-aas/internal/common"
	"github.com/eclipse-basyx/titan-aas/internal/common/model"
)

// --- registry ---

func (s *Service) handleShellDescriptors(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, err)
		return
	}
	page, err := s.ShellDescriptors(r.Context(), limit, r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Service) handleSubmodelDescriptors(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, err)
		return
	}
	page, err := s.SubmodelDescriptors(r.Context(), limit, r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// --- discovery ---

func (s *Service) handleShellsByAssetLink(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var pairs []model.SpecificAssetID
	if err := jsonAPI.Unmarshal(body, &pairs); err != nil {
		writeError(w, common.NewErrBadRequest("asset links do not parse: "+err.Error()))
		return
	}
	ids, err := s.ShellIDsByAssetLinks(r.Context(), pairs, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, struct {
		Result         []string             `json:"result"`
		PagingMetadata model.PagingMetadata `json:"paging_metadata"`
	}{Result: ids})
}

func (s *Service) handleGetAssetLinks(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r, "aasIdentifier")
	if err != nil {
		writeError(w, err)
		return
	}
	links, err := s.GetAssetLinks(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if links == nil {
		links = []model.SpecificAssetID{}
	}
	writeJSON(w, http.StatusOK, links)
}

func (s *Service) handleReplaceAssetLinks(w http.ResponseWriter, r *http.Request) {
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
	var links []model.SpecificAssetID
	if err := jsonAPI.Unmarshal(body, &links); err != nil {
		writeError(w, common.NewErrBadRequest("asset links do not parse: "+err.Error()))
		return
	}
	if err := s.ReplaceAssetLinks(r.Context(), id, links); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, links)
}

func (s *Service) handleDeleteAssetLinks(w http.ResponseWriter, r *http.Request) {
	id, err := identifierParam(r, "aasIdentifier")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.DeleteAssetLinks(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
