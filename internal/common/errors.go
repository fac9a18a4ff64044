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

package common

import (
	"errors"
	"net/http"
)

// APIError is the typed error carried from the domain layers up to the HTTP
// adapter. StatusCode selects the HTTP status, Code is the short machine
// code rendered into the messages[] envelope (e.g. "Submodel.NotFound").
type APIError struct {
	StatusCode int
	Code       string
	Text       string
}

func (e *APIError) Error() string {
	return e.Text
}

// WithCode returns a copy of the error carrying the given machine code.
func (e *APIError) WithCode(code string) *APIError {
	c := *e
	c.Code = code
	return &c
}

// NewErrNotFound creates a 404 error.
func NewErrNotFound(text string) *APIError {
	return &APIError{StatusCode: http.StatusNotFound, Code: "NotFound", Text: text}
}

// NewErrConflict creates a 409 error (duplicate identifier, element exists).
func NewErrConflict(text string) *APIError {
	return &APIError{StatusCode: http.StatusConflict, Code: "Conflict", Text: text}
}

// NewErrBadRequest creates a 400 error (malformed body, invalid identifier,
// invalid path, value-type mismatch).
func NewErrBadRequest(text string) *APIError {
	return &APIError{StatusCode: http.StatusBadRequest, Code: "BadRequest", Text: text}
}

// NewErrPreconditionFailed creates a 412 error for If-Match misses.
func NewErrPreconditionFailed(text string) *APIError {
	return &APIError{StatusCode: http.StatusPreconditionFailed, Code: "ETag.Mismatch", Text: text}
}

// NewErrUnauthorized creates a 401 error.
func NewErrUnauthorized(text string) *APIError {
	return &APIError{StatusCode: http.StatusUnauthorized, Code: "Unauthorized", Text: text}
}

// NewErrForbidden creates a 403 error.
func NewErrForbidden(text string) *APIError {
	return &APIError{StatusCode: http.StatusForbidden, Code: "Forbidden", Text: text}
}

// NewErrGone creates a 410 error (cancelled job queried).
func NewErrGone(text string) *APIError {
	return &APIError{StatusCode: http.StatusGone, Code: "Gone", Text: text}
}

// NewErrTooManyRequests creates a 429 error.
func NewErrTooManyRequests(text string) *APIError {
	return &APIError{StatusCode: http.StatusTooManyRequests, Code: "TooManyRequests", Text: text}
}

// NewErrUnavailable creates a 503 error (storage or cache down when essential).
func NewErrUnavailable(text string) *APIError {
	return &APIError{StatusCode: http.StatusServiceUnavailable, Code: "Unavailable", Text: text}
}

// NewInternalServerError creates a 500 error for unanticipated failures.
func NewInternalServerError(text string) *APIError {
	return &APIError{StatusCode: http.StatusInternalServerError, Code: "Internal", Text: text}
}

func isStatus(err error, status int) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == status
	}
	return false
}

// IsErrNotFound reports whether err is a 404 APIError.
func IsErrNotFound(err error) bool { return isStatus(err, http.StatusNotFound) }

// IsErrConflict reports whether err is a 409 APIError.
func IsErrConflict(err error) bool { return isStatus(err, http.StatusConflict) }

// IsErrBadRequest reports whether err is a 400 APIError.
func IsErrBadRequest(err error) bool { return isStatus(err, http.StatusBadRequest) }

// IsErrPreconditionFailed reports whether err is a 412 APIError.
func IsErrPreconditionFailed(err error) bool { return isStatus(err, http.StatusPreconditionFailed) }

// IsInternalServerError reports whether err is a 500 APIError.
func IsInternalServerError(err error) bool { return isStatus(err, http.StatusInternalServerError) }

// StatusOf returns the HTTP status for err, defaulting to 500 for errors
// that are not APIErrors.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return http.StatusInternalServerError
}

// CodeOf returns the machine code for err, defaulting to "Internal".
func CodeOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code != "" {
		return apiErr.Code
	}
	return "Internal"
}
