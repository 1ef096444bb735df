package citation

import (
	"fmt"
	"strings"

	"kbchat/internal/logging"
	"kbchat/internal/types"
)

// Empty block display modes.
const (
	EmptyPlaceholder = "placeholder"
	EmptyOmit        = "omit"
)

// DefaultPlaceholder is appended when a response carries no citations.
const DefaultPlaceholder = "(No citations available)"

// Source names recorded on a Block.
const (
	SourceDirect = "citations"
	SourceTrace  = "trace"
	SourceNone   = ""
)

const component = "citation"

// Resolved is one deduplicated citation line.
type Resolved struct {
	Index   int    `json:"index"`
	URL     string `json:"url"`
	Locator string `json:"locator"`
}

// Line formats the citation as a markdown link labeled by its own URL.
func (c Resolved) Line() string {
	return fmt.Sprintf("[%d] [%s](%s)", c.Index, c.URL, c.URL)
}

// Block is the aggregated citation block for one response.
type Block struct {
	// Text is the joined citation lines, "" when no reference resolved.
	Text        string
	Citations   []Resolved
	Diagnostics []types.Diagnostic
	Source      string

	emptyMode   string
	placeholder string
}

// Empty reports whether no citation line was produced.
func (b Block) Empty() bool {
	return b.Text == ""
}

// Append attaches the block to answer, separated by a blank line. An empty
// block appends the placeholder or nothing, depending on the display mode.
func (b Block) Append(answer string) string {
	if !b.Empty() {
		return answer + "\n\n" + b.Text
	}
	if b.emptyMode == EmptyOmit {
		return answer
	}
	placeholder := b.placeholder
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	return answer + "\n\n" + placeholder
}

// source yields the references a block is built from. ok is false when the
// source has nothing to offer and the next one should be tried.
type source struct {
	name string
	refs func(resp types.RawResponse) (refs []types.RetrievedReference, diags []types.Diagnostic, ok bool)
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithEmptyMode sets the empty block display mode.
func WithEmptyMode(mode string) Option {
	return func(a *Aggregator) { a.emptyMode = mode }
}

// WithPlaceholder sets the text appended in placeholder mode.
func WithPlaceholder(text string) Option {
	return func(a *Aggregator) { a.placeholder = text }
}

// Aggregator selects a citation source per response and builds the block.
type Aggregator struct {
	resolver    *Resolver
	emptyMode   string
	placeholder string
	sources     []source
}

// NewAggregator creates an aggregator. Sources are tried in order and the
// first one with references wins; sources are never merged.
func NewAggregator(resolver *Resolver, opts ...Option) *Aggregator {
	a := &Aggregator{
		resolver:    resolver,
		emptyMode:   EmptyPlaceholder,
		placeholder: DefaultPlaceholder,
		sources: []source{
			{SourceDirect, directReferences},
			{SourceTrace, traceReferences},
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate builds the citation block for resp.
func (a *Aggregator) Aggregate(resp types.RawResponse) Block {
	block := Block{emptyMode: a.emptyMode, placeholder: a.placeholder}

	var refs []types.RetrievedReference
	for _, src := range a.sources {
		r, diags, ok := src.refs(resp)
		block.Diagnostics = append(block.Diagnostics, diags...)
		if ok {
			refs = r
			block.Source = src.name
			break
		}
	}

	seen := make(map[string]bool)
	var lines []string
	for i, ref := range refs {
		url, ok := a.resolver.ResolveReference(ref)
		if !ok {
			block.Diagnostics = append(block.Diagnostics,
				types.Diagnosticf(component, "reference %d from %s has no location", i+1, block.Source))
			continue
		}
		if seen[url] {
			continue
		}
		seen[url] = true
		locator, _ := ref.Location.Locator()
		c := Resolved{Index: len(block.Citations) + 1, URL: url, Locator: locator}
		block.Citations = append(block.Citations, c)
		lines = append(lines, c.Line())
	}
	block.Text = strings.Join(lines, "\n")

	logging.CitationDebug("aggregated %d citations from %q (%d references, %d diagnostics)",
		len(block.Citations), block.Source, len(refs), len(block.Diagnostics))
	return block
}

// directReferences takes the first reference of every citation record.
func directReferences(resp types.RawResponse) ([]types.RetrievedReference, []types.Diagnostic, bool) {
	if !resp.HasCitations() {
		return nil, nil, false
	}
	var refs []types.RetrievedReference
	var diags []types.Diagnostic
	for i, rec := range resp.Citations {
		ref, ok := rec.FirstReference()
		if !ok {
			diags = append(diags, types.Diagnosticf(component, "citation %d has no retrieved references", i+1))
			continue
		}
		refs = append(refs, ref)
	}
	return refs, diags, true
}

// traceReferences collects every knowledge base lookup result observed
// during orchestration, in order.
func traceReferences(resp types.RawResponse) ([]types.RetrievedReference, []types.Diagnostic, bool) {
	var refs []types.RetrievedReference
	for _, frag := range resp.Trace[types.KeyOrchestration] {
		obs, ok := frag.Observation()
		if !ok || obs.KnowledgeBaseLookupOutput == nil {
			continue
		}
		refs = append(refs, obs.KnowledgeBaseLookupOutput.RetrievedReferences...)
	}
	return refs, nil, len(refs) > 0
}
