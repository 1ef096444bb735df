package answer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		want     string
		strategy string
	}{
		{
			name:     "json envelope",
			raw:      `{"result": "The answer is 42.", "note": "ignored"}`,
			want:     "The answer is 42.",
			strategy: StrategyStrict,
		},
		{
			name:     "json envelope with surrounding whitespace",
			raw:      "  \n{\"result\": \"ok\"}\n",
			want:     "ok",
			strategy: StrategyStrict,
		},
		{
			name:     "non-string result is compacted",
			raw:      `{"result": {"a": 1, "b": [1, 2]}}`,
			want:     `{"a":1,"b":[1,2]}`,
			strategy: StrategyStrict,
		},
		{
			name:     "null result",
			raw:      `{"result": null}`,
			want:     "",
			strategy: StrategyStrict,
		},
		{
			name:     "placeholders in plain text",
			raw:      "Value is %[1]% and [2] more %% end",
			want:     "Value is  and  more  end",
			strategy: StrategyVerbatim,
		},
		{
			name:     "placeholders inside envelope",
			raw:      `{"result": "Paris %[1]% is the capital [2]."}`,
			want:     "Paris  is the capital .",
			strategy: StrategyStrict,
		},
		{
			name:     "raw control character breaks strict parse",
			raw:      "{\"result\": \"line one\nline two\", \"x\": 1}",
			want:     "line one\nline two",
			strategy: StrategyPattern,
		},
		{
			name:     "escaped quotes in malformed envelope",
			raw:      "{\"result\": \"say \\\"hi\\\"\tnow\"",
			want:     "say \"hi\"\tnow",
			strategy: StrategyPattern,
		},
		{
			name:     "truncated envelope",
			raw:      `{"result": "partial answer`,
			want:     "partial answer",
			strategy: StrategyPattern,
		},
		{
			name:     "doubled closing quotes",
			raw:      "{\"result\": \"partial\n\"\"\"}",
			want:     "partial\n",
			strategy: StrategyPattern,
		},
		{
			name:     "json object without result",
			raw:      `{"answer": "nope"}`,
			want:     `{"answer": "nope"}`,
			strategy: StrategyVerbatim,
		},
		{
			name:     "plain text",
			raw:      "Just an answer.",
			want:     "Just an answer.",
			strategy: StrategyVerbatim,
		},
		{
			name:     "empty",
			raw:      "",
			want:     "",
			strategy: StrategyVerbatim,
		},
		{
			name:     "garbage",
			raw:      "{{{\"\\",
			want:     "{{{\"\\",
			strategy: StrategyVerbatim,
		},
	}

	e := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Extract(tt.raw)
			assert.Equal(t, tt.want, got.Text)
			assert.Equal(t, tt.strategy, got.Strategy)
			assert.Equal(t, tt.want, Extract(tt.raw))
		})
	}
}

func TestExtract_ValidEnvelopeAlwaysReturnsResult(t *testing.T) {
	answers := []string{"", "a", "multi\nline", "unicode é ✓", `quoted "inner"`, "tabs\tand\\slashes"}
	for _, a := range answers {
		raw := `{"result": ` + quoteJSON(t, a) + `, "other": true}`
		assert.Equal(t, a, Extract(raw), "raw=%s", raw)
	}
}

func TestExtract_PlainTextUnchanged(t *testing.T) {
	inputs := []string{
		"no envelope here",
		"brackets [a] and percent 50% stay",
		"  leading and trailing spaces  ",
		"{ not json but no result key }",
	}
	for _, in := range inputs {
		assert.Equal(t, in, Extract(in))
	}
}

func quoteJSON(t *testing.T, s string) string {
	t.Helper()
	var b []byte
	b = append(b, '"')
	for _, r := range s {
		switch r {
		case '"':
			b = append(b, '\\', '"')
		case '\\':
			b = append(b, '\\', '\\')
		case '\n':
			b = append(b, '\\', 'n')
		case '\t':
			b = append(b, '\\', 't')
		default:
			b = append(b, string(r)...)
		}
	}
	return string(append(b, '"'))
}
