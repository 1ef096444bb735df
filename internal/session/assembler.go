package session

import (
	"kbchat/internal/answer"
	"kbchat/internal/citation"
	"kbchat/internal/logging"
	"kbchat/internal/trace"
	"kbchat/internal/types"
)

// Display is the finalized content of one assistant turn.
type Display struct {
	// Text is the answer with the citation block appended; markdown.
	Text string

	Citations   []citation.Resolved
	Phases      []trace.Phase
	Diagnostics []types.Diagnostic

	// Strategy names the extraction path that produced the answer.
	Strategy string
}

// Assembler runs extraction, citation aggregation and trace reconstruction
// for one raw response.
type Assembler struct {
	extractor  *answer.Extractor
	aggregator *citation.Aggregator
}

// NewAssembler creates an assembler using the default extractor.
func NewAssembler(aggregator *citation.Aggregator) *Assembler {
	return &Assembler{
		extractor:  answer.NewExtractor(),
		aggregator: aggregator,
	}
}

// Assemble produces the display content for resp. It never fails; shape
// problems end up in Display.Diagnostics.
func (a *Assembler) Assemble(resp types.RawResponse) Display {
	extracted := a.extractor.Extract(resp.OutputText)
	block := a.aggregator.Aggregate(resp)
	phases := trace.Reconstruct(resp.Trace)

	d := Display{
		Text:      block.Append(extracted.Text),
		Citations: block.Citations,
		Phases:    phases,
		Strategy:  extracted.Strategy,
	}
	d.Diagnostics = append(d.Diagnostics, resp.Diagnostics...)
	d.Diagnostics = append(d.Diagnostics, block.Diagnostics...)
	for _, p := range phases {
		d.Diagnostics = append(d.Diagnostics, p.Diagnostics...)
	}

	logging.Get(logging.CategoryCitation).Debug("assembled turn: strategy=%s citations=%d source=%q diagnostics=%d",
		d.Strategy, len(d.Citations), block.Source, len(d.Diagnostics))
	return d
}
