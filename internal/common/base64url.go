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
	"encoding/base64"
	"strconv"
	"strings"
)

// EncodeIdentifier returns the Base64URL form (RFC 4648, no padding) of an
// AAS identifier. The encoded form is the token used in URL path positions.
func EncodeIdentifier(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

// DecodeIdentifier decodes a Base64URL path token back into the raw AAS
// identifier. Empty tokens and tokens containing characters outside the
// Base64URL alphabet are rejected.
func DecodeIdentifier(token string) (string, error) {
	if token == "" {
		return "", NewErrBadRequest("identifier token must not be empty").WithCode("Identifier.Invalid")
	}
	for _, c := range token {
		if !isBase64URLChar(c) {
			return "", NewErrBadRequest("identifier token contains invalid character " + strconv.QuoteRune(c)).WithCode("Identifier.Invalid")
		}
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", NewErrBadRequest("identifier token is not valid base64url: " + err.Error()).WithCode("Identifier.Invalid")
	}
	return string(decoded), nil
}

func isBase64URLChar(c rune) bool {
	switch {
	case c >= 'A' && c <= 'Z':
		return true
	case c >= 'a' && c <= 'z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_':
		return true
	}
	return false
}

// ParseCursorToID parses a keyset pagination cursor into the int64 ordering
// key (createdAt in unix microseconds). An empty cursor yields zero, which
// selects from the beginning.
func ParseCursorToID(c string) (int64, error) {
	c = strings.TrimSpace(c)
	if c == "" {
		return 0, nil
	}

	return strconv.ParseInt(c, 10, 64)
}
