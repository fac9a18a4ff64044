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
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/eclipse-basyx/titan-aas/internal/aasx"
	"github.com/eclipse-basyx/titan-aas/internal/common"
	"github.com/eclipse-basyx/titan-aas/internal/jobs"
)

type packageHandlers struct {
	packages *aasx.PackageService
}

// packageUpload accepts either a multipart form with a "file" part or a raw
// body with the file name in the fileName query parameter.
func packageUpload(r *http.Request) (fileName string, data []byte, err error) {
	contentType := r.Header.Get("Content-Type")
	if mediaType, _, merr := mime.ParseMediaType(contentType); merr == nil && strings.HasPrefix(mediaType, "multipart/") {
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return "", nil, common.NewErrBadRequest("multipart form does not parse: " + err.Error())
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, common.NewErrBadRequest("multipart form carries no file part")
		}
		defer func() { _ = file.Close() }()
		data, err := io.ReadAll(io.LimitReader(file, maxBodyBytes))
		if err != nil {
			return "", nil, common.NewErrBadRequest("file part read failed: " + err.Error())
		}
		return header.Filename, data, nil
	}

	data, err = readBody(r)
	if err != nil {
		return "", nil, err
	}
	fileName = r.URL.Query().Get("fileName")
	if fileName == "" {
		fileName = "package.aasx"
	}
	return fileName, data, nil
}

// importOptions reads the catalog metadata of an upload from the query.
func importOptions(r *http.Request) aasx.ImportOptions {
	q := r.URL.Query()
	return aasx.ImportOptions{
		CreatedBy:      q.Get("createdBy"),
		VersionComment: q.Get("versionComment"),
	}
}

func (h *packageHandlers) handleList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, err)
		return
	}
	records, err := h.packages.List(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *packageHandlers) handleUpload(w http.ResponseWriter, r *http.Request) {
	fileName, data, err := packageUpload(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rec, err := h.packages.Import(r.Context(), fileName, data, importOptions(r))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/packages/"+rec.ID)
	writeJSON(w, http.StatusCreated, rec)
}

func (h *packageHandlers) handleDownload(w http.ResponseWriter, r *http.Request) {
	data, contentType, fileName, err := h.packages.GetFile(r.Context(), chi.URLParam(r, "packageId"))
	if err != nil {
		writeError(w, err)
		return
	}
	if contentType == "" {
		contentType = "application/asset-administration-shell-package"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+fileName+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *packageHandlers) handleNewVersion(w http.ResponseWriter, r *http.Request) {
	fileName, data, err := packageUpload(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rec, err := h.packages.NewVersion(r.Context(), chi.URLParam(r, "packageId"), fileName, data, importOptions(r))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/packages/"+rec.ID)
	writeJSON(w, http.StatusCreated, rec)
}

func (h *packageHandlers) handleVersions(w http.ResponseWriter, r *http.Request) {
	records, err := h.packages.Versions(r.Context(), chi.URLParam(r, "packageId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *packageHandlers) handleRollback(w http.ResponseWriter, r *http.Request) {
	rec, err := h.packages.Rollback(r.Context(), chi.URLParam(r, "packageId"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/packages/"+rec.ID)
	writeJSON(w, http.StatusCreated, rec)
}

func (h *packageHandlers) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.packages.Delete(r.Context(), chi.URLParam(r, "packageId")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- jobs ---

type jobHandlers struct {
	queue *jobs.Queue
}

type jobSubmission struct {
	Task       string          `json:"task"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Priority   int             `json:"priority,omitempty"`
	MaxRetries int             `json:"maxRetries,omitempty"`
}

func (h *jobHandlers) handleSubmit(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var sub jobSubmission
	if err := jsonAPI.Unmarshal(body, &sub); err != nil {
		writeError(w, common.NewErrBadRequest("job submission does not parse: "+err.Error()))
		return
	}
	if sub.Task == "" {
		writeError(w, common.NewErrBadRequest("task is required").WithCode("Job.TaskMissing"))
		return
	}
	job, err := h.queue.Submit(r.Context(), sub.Task, sub.Payload, sub.Priority, sub.MaxRetries)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/jobs/"+job.ID)
	writeJSON(w, http.StatusCreated, job)
}

func (h *jobHandlers) handleGet(w http.ResponseWriter, r *http.Request) {
	job, err := h.queue.Get(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *jobHandlers) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := h.queue.Cancel(r.Context(), chi.URLParam(r, "jobId")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *jobHandlers) handleDeadLetters(w http.ResponseWriter, r *http.Request) {
	ids, err := h.queue.DeadLetters(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}
