package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortedKeys(t *testing.T) {
	obj := Obj{
		"zebra": Int(1),
		"alpha": Int(2),
		"mango": Int(3),
	}
	b, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"mango":3,"zebra":1}`, string(b))
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	b, err := MarshalCanonical(Str("<a> & <b>"))
	require.NoError(t, err)
	assert.Equal(t, `"<a> & <b>"`, string(b))
}

func TestMarshalCanonical_LineSeparatorsLiteral(t *testing.T) {
	b, err := MarshalCanonical(Str("a\u2028b\u2029c"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(b))
}

func TestMarshalCanonical_EscapedBackslashStays(t *testing.T) {
	// Literal backslash followed by the text "u2028": the backslash is
	// escaped, the text passes through untouched.
	b, err := MarshalCanonical(Str(`\u2028`))
	require.NoError(t, err)
	assert.Equal(t, `"\\u2028"`, string(b))
}

func TestMarshalCanonical_NFCNormalization(t *testing.T) {
	// e + combining acute normalizes to precomposed é.
	decomposed := "é"
	precomposed := "é"

	b1, err := MarshalCanonical(Str(decomposed))
	require.NoError(t, err)
	b2, err := MarshalCanonical(Str(precomposed))
	require.NoError(t, err)
	assert.Equal(t, string(b2), string(b1))
}

func TestMarshalCanonical_NilRejected(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.Error(t, err)
}

func TestFromJSON_RejectsFloats(t *testing.T) {
	_, err := FromJSON([]byte(`{"x": 1.5}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "float")
}

func TestFromJSON_RejectsNull(t *testing.T) {
	_, err := FromJSON([]byte(`{"x": null}`))
	assert.Error(t, err)
}

func TestFromJSON_RoundTrip(t *testing.T) {
	v, err := FromJSON([]byte(`{"b":[1,2],"a":"x","c":true}`))
	require.NoError(t, err)
	b, err := MarshalCanonical(v)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":[1,2],"c":true}`, string(b))
}

func TestSortedKeys_UTF16Order(t *testing.T) {
	// U+FF61 (halfwidth ideographic full stop) is one UTF-16 unit;
	// U+10000 encodes as a surrogate pair starting at 0xD800, which
	// sorts BEFORE 0xFF61 in UTF-16 but after it in UTF-8 bytes.
	obj := Obj{
		"｡":     Int(1),
		"\U00010000": Int(2),
	}
	keys := obj.SortedKeys()
	require.Len(t, keys, 2)
	assert.Equal(t, "\U00010000", keys[0])
	assert.Equal(t, "｡", keys[1])
}
