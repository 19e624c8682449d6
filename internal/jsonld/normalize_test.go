package jsonld

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVocab = "http://example.org/ftf-context#"

func decodeJSON(t *testing.T, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestNormalizeReplacesRemoteContext(t *testing.T) {
	tests := []struct {
		name    string
		context string
	}{
		{name: "https", context: "https://schema.org"},
		{name: "http", context: "http://schema.org/"},
		{name: "uppercase scheme", context: "HTTPS://schema.org"},
	}

	n := NewNormalizer(testVocab)
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			raw := `{"@context": "` + test.context + `", "@type": "Event", "name": "Launch"}`

			block, err := n.Normalize(0, raw)
			require.NoError(t, err)

			assert.True(t, block.ContextReplaced)
			obj := block.Data.(map[string]any)
			assert.Equal(t, map[string]any{"@vocab": testVocab}, obj["@context"])
			assert.Equal(t, "Event", obj["@type"])
			assert.Equal(t, "Launch", obj["name"])
			assert.Equal(t, raw, block.Raw)
		})
	}
}

func TestNormalizeIdentityOtherwise(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "no context", raw: `{"@type": "Thing"}`},
		{name: "relative context string", raw: `{"@context": "/contexts/local.jsonld", "name": "x"}`},
		{name: "urn context", raw: `{"@context": "urn:example:ctx"}`},
		{name: "object context", raw: `{"@context": {"@vocab": "https://schema.org/"}, "name": "x"}`},
		{name: "array context", raw: `{"@context": ["https://schema.org", {"x": "http://x/"}], "name": "x"}`},
		{name: "top-level array", raw: `[{"@context": "https://schema.org", "name": "x"}]`},
		{name: "scalar", raw: `42`},
	}

	n := NewNormalizer(testVocab)
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			block, err := n.Normalize(3, test.raw)
			require.NoError(t, err)

			assert.False(t, block.ContextReplaced)
			assert.Equal(t, 3, block.Index)
			assert.Equal(t, decodeJSON(t, test.raw), block.Data)
		})
	}
}

func TestNormalizeMalformed(t *testing.T) {
	n := NewNormalizer(testVocab)

	for _, raw := range []string{`{"@context": "https://schema.org",`, ``, `   `, `<!-- -->`, `{"name": "x"} trailing`} {
		_, err := n.Normalize(7, raw)

		var malformed *MalformedDataError
		require.True(t, errors.As(err, &malformed), "raw=%q", raw)
		assert.Equal(t, 7, malformed.Index)
	}
}

func TestBlockJSON(t *testing.T) {
	block, err := NewNormalizer(testVocab).Normalize(0, `{"@context": "https://schema.org", "name": "x"}`)
	require.NoError(t, err)

	out, err := block.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"@context": {"@vocab": "`+testVocab+`"}, "name": "x"}`, string(out))
}

func TestNormalizeNumbers(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want any
	}{
		{name: "small integer", raw: `30`, want: float64(30)},
		{name: "fraction", raw: `1.25`, want: 1.25},
		{
			name: "integer beyond float precision",
			raw:  `12345678901234567891`,
			want: map[string]any{"@value": "12345678901234567891", "@type": xsdInteger},
		},
		{
			name: "int64 beyond float precision",
			raw:  `9007199254740993`,
			want: map[string]any{"@value": "9007199254740993", "@type": xsdInteger},
		},
		{
			name: "overflowing double",
			raw:  `1.0e400`,
			want: map[string]any{"@value": "INF", "@type": xsdDouble},
		},
		{
			name: "value object keeps its type",
			raw:  `{"@value": 12345678901234567891, "@type": "http://example.org/big"}`,
			want: map[string]any{"@value": "12345678901234567891", "@type": "http://example.org/big"},
		},
	}

	n := NewNormalizer(testVocab)
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			block, err := n.Normalize(0, `{"@context": "https://schema.org", "n": `+test.raw+`}`)
			require.NoError(t, err)

			obj := block.Data.(map[string]any)
			assert.Equal(t, test.want, obj["n"])
		})
	}
}

func TestNormalizeLeavesContextNumbersPlain(t *testing.T) {
	block, err := NewNormalizer(testVocab).Normalize(0, `{"@context": {"@version": 1.1, "@vocab": "http://x/"}, "n": 1}`)
	require.NoError(t, err)

	ctx := block.Data.(map[string]any)["@context"].(map[string]any)
	assert.Equal(t, 1.1, ctx["@version"])
}
