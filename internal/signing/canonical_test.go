package signing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeSortsKeys(t *testing.T) {
	got, err := Canonicalize(map[string]any{
		"zebra": 1,
		"alpha": "a",
		"mid":   true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":"a","mid":true,"zebra":1}`, string(got))
}

func TestCanonicalizeIsDeterministic(t *testing.T) {
	type payload struct {
		Name   string            `json:"name"`
		Score  float64           `json:"score"`
		Labels map[string]string `json:"labels"`
	}
	p := payload{Name: "report", Score: 87.5, Labels: map[string]string{"b": "2", "a": "1"}}

	first, err := Canonicalize(p)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Canonicalize(p)
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}

func TestCanonicalizeExcludesNamedFields(t *testing.T) {
	got, err := Canonicalize(map[string]any{
		"action":           "login",
		"checksum":         "abc",
		"digitalSignature": "def",
	}, "checksum", "digitalSignature")
	require.NoError(t, err)
	assert.Equal(t, `{"action":"login"}`, string(got))
}

func TestCanonicalizePreservesNumberFormatting(t *testing.T) {
	// json.Number passthrough: the literal from the encoded form survives.
	got, err := Canonicalize(map[string]any{"score": 100, "ratio": 0.5})
	require.NoError(t, err)
	assert.Equal(t, `{"ratio":0.5,"score":100}`, string(got))
}

func TestCanonicalizeNestedStructures(t *testing.T) {
	got, err := Canonicalize(map[string]any{
		"outer": map[string]any{"y": []any{1, "two", nil}, "x": false},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"outer":{"x":false,"y":[1,"two",null]}}`, string(got))
}

func TestChecksumIsStableHex(t *testing.T) {
	sum := Checksum([]byte("payload"))
	assert.Len(t, sum, 64)
	assert.Equal(t, sum, Checksum([]byte("payload")))
	assert.NotEqual(t, sum, Checksum([]byte("payload2")))
}
