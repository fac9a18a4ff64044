package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeIdentifierRoundTrip(t *testing.T) {
	t.Parallel()

	for _, id := range []string{
		"urn:example:shell:1",
		"https://example.com/ids/sm/4713_9032_3022_1983",
		"id with spaces and ünïcode",
	} {
		enc := EncodeIdentifier(id)
		dec, err := DecodeIdentifier(enc)
		require.NoError(t, err)
		require.Equal(t, id, dec)
	}
}

func TestEncodeIdentifierUnpadded(t *testing.T) {
	t.Parallel()

	require.NotContains(t, EncodeIdentifier("ab"), "=")
	require.NotContains(t, EncodeIdentifier("abc"), "=")
	require.NotContains(t, EncodeIdentifier("abcd"), "=")
}

func TestDecodeIdentifierRejectsInvalid(t *testing.T) {
	t.Parallel()

	for _, bad := range []string{"", "abc+def", "abc/def", "abc=def", "%%%"} {
		_, err := DecodeIdentifier(bad)
		require.Error(t, err, "input %q", bad)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, 400, apiErr.StatusCode)
	}
}

func TestParseCursorToID(t *testing.T) {
	t.Parallel()

	id, err := ParseCursorToID("1756000000000000")
	require.NoError(t, err)
	require.Equal(t, int64(1756000000000000), id)

	_, err = ParseCursorToID("not-a-number")
	require.Error(t, err)
}
