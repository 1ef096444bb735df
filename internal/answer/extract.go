// Package answer recovers the answer text from an agent's raw output.
//
// The backend sometimes returns plain text and sometimes wraps the answer in
// a JSON envelope ({"result": "..."}) that may not even be valid JSON. The
// extractor tries an ordered list of strategies and degrades to the raw text.
// It never returns an error.
package answer

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// Strategy names reported by Extractor.Extract.
const (
	StrategyStrict   = "strict_envelope"
	StrategyPattern  = "pattern_envelope"
	StrategyVerbatim = "verbatim"
)

// strategy attempts to recover the answer from raw text.
type strategy struct {
	name string
	fn   func(raw string) (string, bool)
}

// Result is the outcome of one extraction.
type Result struct {
	Text     string
	Strategy string
}

// Extractor runs the extraction strategies in order.
type Extractor struct {
	strategies []strategy
}

// NewExtractor returns an extractor with the default strategy chain:
// strict JSON envelope, pattern-matched envelope, verbatim text.
func NewExtractor() *Extractor {
	return &Extractor{strategies: []strategy{
		{StrategyStrict, strictEnvelope},
		{StrategyPattern, patternEnvelope},
		{StrategyVerbatim, verbatim},
	}}
}

var defaultExtractor = NewExtractor()

// Extract returns the cleaned answer text for raw output.
func Extract(raw string) string {
	return defaultExtractor.Extract(raw).Text
}

// Extract runs the strategies until one matches, then strips placeholders.
func (e *Extractor) Extract(raw string) Result {
	for _, s := range e.strategies {
		if text, ok := s.fn(raw); ok {
			return Result{Text: StripPlaceholders(text), Strategy: s.name}
		}
	}
	return Result{Text: StripPlaceholders(raw), Strategy: StrategyVerbatim}
}

// =============================================================================
// STRATEGIES
// =============================================================================

func strictEnvelope(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return "", false
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return "", false
	}
	result, ok := env["result"]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(result, &s); err == nil {
		return s, true
	}
	if bytes.Equal(bytes.TrimSpace(result), []byte("null")) {
		return "", true
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, result); err != nil {
		return string(result), true
	}
	return buf.String(), true
}

var (
	// Quoted value after "result", honoring backslash escapes.
	resultQuoted = regexp.MustCompile(`(?s)^\s*\{.*?"result"\s*:\s*"((?:[^"\\]|\\.)*)"`)

	// Opening quote with no closing quote: the envelope was cut short.
	resultTruncated = regexp.MustCompile(`(?s)^\s*\{.*?"result"\s*:\s*"(.*)$`)
)

func patternEnvelope(raw string) (string, bool) {
	if m := resultQuoted.FindStringSubmatch(raw); m != nil {
		return decodeEscapes(m[1]), true
	}
	if m := resultTruncated.FindStringSubmatch(raw); m != nil {
		rest := strings.TrimRight(m[1], " \t\r\n")
		rest = strings.TrimSuffix(rest, "}")
		rest = strings.TrimRight(rest, " \t\r\n")
		return decodeEscapes(trimTrailingQuotes(rest)), true
	}
	return "", false
}

func verbatim(raw string) (string, bool) {
	return raw, true
}

// decodeEscapes interprets JSON string escapes in s. Raw control characters,
// which is usually why strict parsing failed, are kept as-is. Undecodable
// input is returned unchanged.
func decodeEscapes(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20:
			b.WriteString(`\u00`)
			b.WriteByte("0123456789abcdef"[r>>4])
			b.WriteByte("0123456789abcdef"[r&0xf])
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')

	var out string
	if err := json.Unmarshal([]byte(b.String()), &out); err != nil {
		return s
	}
	return out
}
