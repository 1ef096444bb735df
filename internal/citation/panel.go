package citation

import "kbchat/internal/types"

// PanelEntry is one retrieved reference as shown in the citations pane.
type PanelEntry struct {
	Number    int
	Record    int    // 1-based citation record, 0 for trace-derived entries
	CitedText string // answer span the record supports
	Snippet   string
	Locator   string
	URL       string
	Reference types.RetrievedReference
}

// PanelEntries lists every retrieved reference of the response without
// deduplication. Direct citations are used when present, otherwise the
// knowledge base lookups found in the orchestration trace.
func (r *Resolver) PanelEntries(resp types.RawResponse) []PanelEntry {
	var entries []PanelEntry
	add := func(record int, cited string, ref types.RetrievedReference) {
		locator, _ := ref.Location.Locator()
		url, _ := r.ResolveReference(ref)
		entries = append(entries, PanelEntry{
			Number:    len(entries) + 1,
			Record:    record,
			CitedText: cited,
			Snippet:   ref.Snippet(),
			Locator:   locator,
			URL:       url,
			Reference: ref,
		})
	}

	if resp.HasCitations() {
		for i, rec := range resp.Citations {
			cited := ""
			if rec.GeneratedResponsePart != nil && rec.GeneratedResponsePart.TextResponsePart != nil {
				cited = rec.GeneratedResponsePart.TextResponsePart.Text
			}
			for _, ref := range rec.RetrievedReferences {
				add(i+1, cited, ref)
			}
		}
		return entries
	}

	refs, _, _ := traceReferences(resp)
	for _, ref := range refs {
		add(0, "", ref)
	}
	return entries
}
