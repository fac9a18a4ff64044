package canonical

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBytesSortsKeysAndStripsWhitespace(t *testing.T) {
	t.Parallel()

	in := []byte(`{ "b": 1, "a": { "z": true, "y": [1, 2, 3] } }`)
	out, err := Bytes(in)
	require.NoError(t, err)
	require.Equal(t, `{"a":{"y":[1,2,3],"z":true},"b":1}`, string(out))
}

func TestBytesElidesNullMembers(t *testing.T) {
	t.Parallel()

	in := []byte(`{"id":"urn:x:1","idShort":null,"nested":{"value":null,"kept":"x"},"arr":[null,1]}`)
	out, err := Bytes(in)
	require.NoError(t, err)
	// null object members vanish, null array items stay
	require.Equal(t, `{"arr":[null,1],"id":"urn:x:1","nested":{"kept":"x"}}`, string(out))
}

func TestBytesIdempotent(t *testing.T) {
	t.Parallel()

	in := []byte(`{"modelType":"Property","value":"23.5","valueType":"xs:double","idShort":"T"}`)
	once, err := Bytes(in)
	require.NoError(t, err)
	twice, err := Bytes(once)
	require.NoError(t, err)
	require.Equal(t, once, twice)
}

func TestETagStableUnderKeyReorder(t *testing.T) {
	t.Parallel()

	a := []byte(`{"x":1,"y":"s"}`)
	b := []byte(`{ "y" : "s" , "x" : 1 }`)

	ca, err := Bytes(a)
	require.NoError(t, err)
	cb, err := Bytes(b)
	require.NoError(t, err)

	require.Equal(t, ETag(ca), ETag(cb))
	require.Len(t, ETag(ca), 16)
}

func TestETagDiffersForDifferentContent(t *testing.T) {
	t.Parallel()

	ca, err := Bytes([]byte(`{"x":1}`))
	require.NoError(t, err)
	cb, err := Bytes([]byte(`{"x":2}`))
	require.NoError(t, err)
	require.NotEqual(t, ETag(ca), ETag(cb))
}

func TestBytesPreservesNumericLiterals(t *testing.T) {
	t.Parallel()

	out, err := Bytes([]byte(`{"i":42,"f":0.25,"neg":-7}`))
	require.NoError(t, err)
	require.Equal(t, `{"f":0.25,"i":42,"neg":-7}`, string(out))
}

func TestMarshalUsesJSONTags(t *testing.T) {
	t.Parallel()

	type sample struct {
		IDShort string `json:"idShort,omitempty"`
		ID      string `json:"id"`
	}
	out, _, err := MarshalWithETag(sample{ID: "urn:x:1"})
	require.NoError(t, err)
	require.Equal(t, `{"id":"urn:x:1"}`, string(out))
}
