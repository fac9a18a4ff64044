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

	"github.com/eclipse-basyx/titan-aas/internal/aasx"
	"github.com/eclipse-basyx/titan-aas/internal/federation"
	"github.com/eclipse-basyx/titan-aas/internal/jobs"
	"github.com/eclipse-basyx/titan-aas/internal/ws"
)

// Deps are the surfaces the router mounts. Everything except Service is
// optional; a nil member leaves its routes unmounted.
type Deps struct {
	Service   *Service
	Packages  *aasx.PackageService
	Peers     *federation.PeerRegistry
	Sync      *federation.Manager
	Conflicts *federation.ConflictManager
	Jobs      *jobs.Queue
	WS        *ws.SubscriptionManager
}

// NewRouter builds the full route table.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()
	svc := d.Service

	r.Get("/health", handleHealth)
	r.Get("/description", handleDescription)

	r.Route("/shells", func(r chi.Router) {
		r.Get("/", svc.handleListShells)
		r.Post("/", svc.handleCreateShell)
		r.Route("/{aasIdentifier}", func(r chi.Router) {
			r.Get("/", svc.handleGetShell)
			r.Put("/", svc.handlePutShell)
			r.Delete("/", svc.handleDeleteShell)
		})
	})

	r.Route("/submodels", func(r chi.Router) {
		r.Get("/", svc.handleListSubmodels)
		r.Post("/", svc.handleCreateSubmodel)
		r.Route("/{submodelIdentifier}", func(r chi.Router) {
			r.Get("/", svc.handleGetSubmodel)
			r.Put("/", svc.handlePutSubmodel)
			r.Delete("/", svc.handleDeleteSubmodel)
			r.Get("/$value", svc.handleGetSubmodelValue)
			r.Patch("/$value", svc.handlePatchSubmodelValue)
			r.Get("/$metadata", svc.handleGetSubmodelMetadata)
			r.Patch("/$metadata", svc.handlePatchSubmodelMetadata)
			r.Get("/$path", svc.handleGetSubmodelPaths)
			r.Get("/$reference", svc.handleGetSubmodelReference)

			r.Route("/submodel-elements", func(r chi.Router) {
				r.Get("/", svc.handleListElements)
				r.Post("/", svc.handlePostRootElement)
				r.Route("/{idShortPath}", func(r chi.Router) {
					r.Get("/", svc.handleGetElement)
					r.Post("/", svc.handlePostChildElement)
					r.Put("/", svc.handlePutElement)
					r.Patch("/", svc.handlePatchElement)
					r.Delete("/", svc.handleDeleteElement)
					r.Get("/$value", svc.handleGetElementValue)
					r.Patch("/$value", svc.handlePatchElementValue)
					r.Get("/$metadata", svc.handleGetElementMetadata)
					r.Get("/$reference", svc.handleGetElementReference)
					r.Get("/$path", svc.handleGetElementPaths)
					r.Get("/attachment", svc.handleGetAttachment)
					r.Put("/attachment", svc.handlePutAttachment)
					r.Delete("/attachment", svc.handleDeleteAttachment)
				})
			})
		})
	})

	r.Route("/concept-descriptions", func(r chi.Router) {
		r.Get("/", svc.handleListConceptDescriptions)
		r.Post("/", svc.handleCreateConceptDescription)
		r.Route("/{cdIdentifier}", func(r chi.Router) {
			r.Get("/", svc.handleGetConceptDescription)
			r.Put("/", svc.handlePutConceptDescription)
			r.Delete("/", svc.handleDeleteConceptDescription)
		})
	})

	r.Get("/shell-descriptors", svc.handleShellDescriptors)
	r.Get("/submodel-descriptors", svc.handleSubmodelDescriptors)

	r.Route("/lookup", func(r chi.Router) {
		r.Post("/shellsByAssetLink", svc.handleShellsByAssetLink)
		r.Route("/shells/{aasIdentifier}", func(r chi.Router) {
			r.Get("/", svc.handleGetAssetLinks)
			r.Post("/", svc.handleReplaceAssetLinks)
			r.Delete("/", svc.handleDeleteAssetLinks)
		})
	})

	if d.Packages != nil {
		h := &packageHandlers{packages: d.Packages}
		r.Route("/packages", func(r chi.Router) {
			r.Get("/", h.handleList)
			r.Post("/", h.handleUpload)
			r.Route("/{packageId}", func(r chi.Router) {
				r.Get("/", h.handleDownload)
				r.Put("/", h.handleNewVersion)
				r.Delete("/", h.handleDelete)
				r.Get("/versions", h.handleVersions)
				r.Post("/versions", h.handleNewVersion)
				r.Post("/rollback", h.handleRollback)
			})
		})
	}

	if d.Peers != nil {
		h := &federationHandlers{peers: d.Peers, sync: d.Sync, conflicts: d.Conflicts}
		r.Route("/federation", func(r chi.Router) {
			r.Get("/peers", h.handleListPeers)
			r.Post("/peers", h.handleRegisterPeer)
			r.Delete("/peers/{peerId}", h.handleRemovePeer)
			r.Post("/sync/now", h.handleSyncNow)
			r.Get("/conflicts", h.handleListConflicts)
			r.Post("/conflicts/resolve", h.handleResolveAll)
			r.Post("/conflicts/{conflictId}/resolve", h.handleResolve)
		})
	}

	if d.Jobs != nil {
		h := &jobHandlers{queue: d.Jobs}
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", h.handleSubmit)
			r.Get("/dead-letters", h.handleDeadLetters)
			r.Get("/{jobId}", h.handleGet)
			r.Delete("/{jobId}", h.handleCancel)
		})
	}

	if d.WS != nil {
		r.Get("/ws", d.WS.ServeWS)
	}

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}

// handleDescription lists the implemented service profiles.
func handleDescription(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"profiles": {
		"https://admin-shell.io/aas/API/3/0/AssetAdministrationShellRepositoryServiceSpecification/SSP-001",
		"https://admin-shell.io/aas/API/3/0/SubmodelRepositoryServiceSpecification/SSP-001",
		"https://admin-shell.io/aas/API/3/0/ConceptDescriptionRepositoryServiceSpecification/SSP-001",
		"https://admin-shell.io/aas/API/3/0/AssetAdministrationShellRegistryServiceSpecification/SSP-002",
		"https://admin-shell.io/aas/API/3/0/SubmodelRegistryServiceSpecification/SSP-002",
		"https://admin-shell.io/aas/API/3/0/DiscoveryServiceSpecification/SSP-001",
		"https://admin-shell.io/aas/API/3/0/AasxFileServerServiceSpecification/SSP-001",
	}})
}
