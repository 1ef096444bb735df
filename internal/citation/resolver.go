// Package citation turns retrieved references into public links and builds
// the deduplicated citation block appended to an answer.
package citation

import (
	"strings"

	"kbchat/internal/types"
)

// Resolver maps private storage locators to public URLs.
type Resolver struct {
	SourcePrefix string
	PublicPrefix string
}

// NewResolver creates a resolver substituting sourcePrefix with publicPrefix.
func NewResolver(sourcePrefix, publicPrefix string) *Resolver {
	return &Resolver{SourcePrefix: sourcePrefix, PublicPrefix: publicPrefix}
}

// Resolve substitutes the source prefix, keeping the rest of the path.
// Locators without the prefix are returned verbatim.
func (r *Resolver) Resolve(locator string) string {
	if r.SourcePrefix == "" || !strings.HasPrefix(locator, r.SourcePrefix) {
		return locator
	}
	return r.PublicPrefix + strings.TrimPrefix(locator, r.SourcePrefix)
}

// ResolveReference returns the public URL for a reference. Storage locators
// go through Resolve; the URL-based location variants are already public.
// ok is false when the reference has no location at all.
func (r *Resolver) ResolveReference(ref types.RetrievedReference) (url string, ok bool) {
	locator, scheme := ref.Location.Locator()
	switch scheme {
	case types.SchemeNone:
		return "", false
	case types.SchemeS3:
		return r.Resolve(locator), true
	default:
		return locator, true
	}
}
