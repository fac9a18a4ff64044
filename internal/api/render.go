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
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/eclipse-basyx/titan-aas/internal/common"
	"github.com/eclipse-basyx/titan-aas/internal/common/model"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

const maxBodyBytes = 64 << 20

// writeJSON marshals v and writes it with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := jsonAPI.Marshal(v)
	if err != nil {
		writeError(w, common.NewInternalServerError("response serialization failed"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		log.Printf("API-WRITE response write failed: %v", err)
	}
}

// writeRawJSON writes pre-serialized JSON bytes unchanged.
func writeRawJSON(w http.ResponseWriter, status int, doc []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(doc); err != nil {
		log.Printf("API-WRITE response write failed: %v", err)
	}
}

// writeError renders the AAS messages[] envelope for a failed operation.
func writeError(w http.ResponseWriter, err error) {
	status := common.StatusOf(err)
	result := model.Result{Messages: []model.Message{{
		Code:        common.CodeOf(err),
		MessageType: "Error",
		Text:        err.Error(),
		Timestamp:   common.GetCurrentTimestamp(),
	}}}
	data, merr := jsonAPI.Marshal(result)
	if merr != nil {
		http.Error(w, err.Error(), status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// setETag sets the quoted entity tag header.
func setETag(w http.ResponseWriter, etag string) {
	if etag != "" {
		w.Header().Set("ETag", `"`+etag+`"`)
	}
}

// normalizeETag strips the weak prefix and surrounding quotes so header
// values compare against stored tags.
func normalizeETag(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "W/")
	return strings.Trim(s, `"`)
}

func ifMatchOf(r *http.Request) string {
	return normalizeETag(r.Header.Get("If-Match"))
}

// ifNoneMatchHit reports whether the conditional read matches the current
// tag, including the wildcard form.
func ifNoneMatchHit(r *http.Request, etag string) bool {
	raw := r.Header.Get("If-None-Match")
	if raw == "" || etag == "" {
		return false
	}
	for _, part := range strings.Split(raw, ",") {
		if part = normalizeETag(part); part == "*" || part == etag {
			return true
		}
	}
	return false
}

// readBody drains the request body up to the configured cap.
func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, common.NewErrBadRequest("request body read failed: " + err.Error())
	}
	if len(data) > maxBodyBytes {
		return nil, common.NewErrBadRequest("request body exceeds size limit").WithCode("Body.TooLarge")
	}
	if len(data) == 0 {
		return nil, common.NewErrBadRequest("request body is empty").WithCode("Body.Empty")
	}
	return data, nil
}

// queryLimit parses the page size; zero falls back to the repository default.
func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, common.NewErrBadRequest("limit must be a non-negative integer").WithCode("Limit.Invalid")
	}
	return n, nil
}
