package answer

import (
	"regexp"
	"strings"
)

// Placeholder shapes the backend leaves behind when it does not resolve a
// citation anchor inline. Order matters: %[n]% must go before [n] so the
// percent signs are not left as a stray %%.
var placeholderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`%\[\d+\]%`),
	regexp.MustCompile(`\[\d+\]`),
	regexp.MustCompile(`%%`),
}

// StripPlaceholders removes %[n]%, [n] and %% tokens. Surrounding whitespace
// is preserved literally. Removal repeats until nothing changes, so tokens
// formed by an earlier removal are also removed and the function is
// idempotent.
func StripPlaceholders(s string) string {
	for {
		out := s
		for _, re := range placeholderPatterns {
			out = re.ReplaceAllString(out, "")
		}
		if out == s {
			return out
		}
		s = out
	}
}

// trimTrailingQuotes strips a single trailing run of quote characters.
func trimTrailingQuotes(s string) string {
	return strings.TrimRight(s, `"`)
}
