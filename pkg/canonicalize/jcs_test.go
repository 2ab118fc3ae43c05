package canonicalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJCSSortsKeys(t *testing.T) {
	out, err := JCS(map[string]any{"b": 2, "a": 1, "c": 3})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2,"c":3}`, string(out))
}

func TestJCSNoHTMLEscaping(t *testing.T) {
	out, err := JCS(map[string]any{"q": "a<b>&c"})
	require.NoError(t, err)
	assert.Equal(t, `{"q":"a<b>&c"}`, string(out))
}

func TestJCSNestedDeterminism(t *testing.T) {
	a := map[string]any{
		"outer": map[string]any{"z": true, "a": []any{1, "two", nil}},
		"n":     3.5,
	}
	b := map[string]any{
		"n":     3.5,
		"outer": map[string]any{"a": []any{1, "two", nil}, "z": true},
	}

	ca, err := JCS(a)
	require.NoError(t, err)
	cb, err := JCS(b)
	require.NoError(t, err)
	assert.Equal(t, string(ca), string(cb))
}

func TestJCSStructTagsRespected(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
		Skip  string `json:"-"`
	}
	out, err := JCS(payload{Name: "x", Count: 2, Skip: "hidden"})
	require.NoError(t, err)
	assert.Equal(t, `{"count":2,"name":"x"}`, string(out))
}

func TestJCSRejectsUnserializable(t *testing.T) {
	_, err := JCS(map[string]any{"fn": func() {}})
	require.Error(t, err)
}

func TestCanonicalHashStableAcrossKeyOrder(t *testing.T) {
	h1, err := CanonicalHash(map[string]any{"actor": "doctor_123", "type": "data_access"})
	require.NoError(t, err)
	h2, err := CanonicalHash(map[string]any{"type": "data_access", "actor": "doctor_123"})
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.True(t, strings.HasPrefix(h1, "sha256:"))
	assert.Len(t, strings.TrimPrefix(h1, "sha256:"), 64)
}

func TestCanonicalHashUnicodeNFC(t *testing.T) {
	// precomposed U+00E9 vs. "e" + combining acute U+0301
	h1, err := CanonicalHash(map[string]any{"name": "r\u00e9sum\u00e9"})
	require.NoError(t, err)
	h2, err := CanonicalHash(map[string]any{"name": "re\u0301sume\u0301"})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}
