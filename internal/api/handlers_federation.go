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

	"github.com/go-chi/chi/v5"

	"github.com/eclipse-basyx/titan-aas/internal/common"
	"github.com/eclipse-basyx/titan-aas/internal/federation"
)

type federationHandlers struct {
	peers     *federation.PeerRegistry
	sync      *federation.Manager
	conflicts *federation.ConflictManager
}

func (h *federationHandlers) handleListPeers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.peers.List())
}

func (h *federationHandlers) handleRegisterPeer(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var peer federation.Peer
	if err := jsonAPI.Unmarshal(body, &peer); err != nil {
		writeError(w, common.NewErrBadRequest("peer does not parse: "+err.Error()))
		return
	}
	if peer.ID == "" || peer.BaseURL == "" {
		writeError(w, common.NewErrBadRequest("peerId and baseUrl are required").WithCode("Peer.Invalid"))
		return
	}
	h.peers.Register(peer)
	w.Header().Set("Location", "/federation/peers/"+peer.ID)
	writeJSON(w, http.StatusCreated, peer)
}

func (h *federationHandlers) handleRemovePeer(w http.ResponseWriter, r *http.Request) {
	if !h.peers.Remove(chi.URLParam(r, "peerId")) {
		writeError(w, common.NewErrNotFound("peer is not registered"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *federationHandlers) handleSyncNow(w http.ResponseWriter, r *http.Request) {
	if h.sync == nil {
		writeError(w, common.NewErrUnavailable("federation sync is not enabled"))
		return
	}
	writeJSON(w, http.StatusOK, h.sync.SyncOnce(r.Context()))
}

func (h *federationHandlers) handleListConflicts(w http.ResponseWriter, r *http.Request) {
	if h.conflicts == nil {
		writeError(w, common.NewErrUnavailable("federation sync is not enabled"))
		return
	}
	writeJSON(w, http.StatusOK, h.conflicts.Unresolved(r.URL.Query().Get("peerId")))
}

type resolutionRequest struct {
	Strategy string `json:"strategy"`
	PeerID   string `json:"peerId,omitempty"`
}

func (h *federationHandlers) handleResolve(w http.ResponseWriter, r *http.Request) {
	if h.conflicts == nil {
		writeError(w, common.NewErrUnavailable("federation sync is not enabled"))
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req resolutionRequest
	if err := jsonAPI.Unmarshal(body, &req); err != nil {
		writeError(w, common.NewErrBadRequest("resolution does not parse: "+err.Error()))
		return
	}
	if err := h.conflicts.Resolve(r.Context(), chi.URLParam(r, "conflictId"), req.Strategy); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *federationHandlers) handleResolveAll(w http.ResponseWriter, r *http.Request) {
	if h.conflicts == nil {
		writeError(w, common.NewErrUnavailable("federation sync is not enabled"))
		return
	}
	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req resolutionRequest
	if err := jsonAPI.Unmarshal(body, &req); err != nil {
		writeError(w, common.NewErrBadRequest("resolution does not parse: "+err.Error()))
		return
	}
	resolved, err := h.conflicts.ResolveAll(r.Context(), req.PeerID, req.Strategy)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"resolved": resolved})
}
