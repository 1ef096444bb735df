package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"kbchat/internal/citation"
)

// CitationPane lists every retrieved reference of the last response, one
// collapsible block each. Unlike the block under the answer it does not
// deduplicate.
type CitationPane struct {
	Viewport viewport.Model
	Styles   Styles
	Width    int
	Height   int

	entries []citation.PanelEntry
	loaded  bool
	fold    foldList

	selectedLine int
	fieldStyle   lipgloss.Style
	linkStyle    lipgloss.Style
}

var _ SidePane = (*CitationPane)(nil)

// NewCitationPane creates an empty citations pane.
func NewCitationPane(styles Styles, width, height int) *CitationPane {
	p := &CitationPane{
		Viewport:   viewport.New(width, height),
		Styles:     styles,
		Width:      width,
		Height:     height,
		fieldStyle: lipgloss.NewStyle().Foreground(styles.Theme.Muted).Bold(true),
		linkStyle:  lipgloss.NewStyle().Foreground(Info).Underline(true),
	}
	p.refresh()
	return p
}

// SetSize updates the pane dimensions
func (p *CitationPane) SetSize(width, height int) {
	p.Width = width
	p.Height = height
	p.Viewport.Width = width
	p.Viewport.Height = height
	p.refresh()
}

// SetEntries replaces the listed references.
func (p *CitationPane) SetEntries(entries []citation.PanelEntry) {
	p.entries = entries
	p.loaded = true
	p.fold.reset(len(entries))
	p.Viewport.GotoTop()
	p.refresh()
}

// Clear returns the pane to its empty state.
func (p *CitationPane) Clear() {
	p.entries = nil
	p.loaded = false
	p.fold.reset(0)
	p.refresh()
}

// Len returns the number of listed references.
func (p *CitationPane) Len() int { return len(p.entries) }

// Selected returns the 0-based index of the selected reference.
func (p *CitationPane) Selected() int { return p.fold.selected }

// IsExpanded reports whether entry i is open.
func (p *CitationPane) IsExpanded(i int) bool { return p.fold.isExpanded(i) }

func (p *CitationPane) SelectNext() {
	if p.fold.next() {
		p.refresh()
	}
}

func (p *CitationPane) SelectPrev() {
	if p.fold.prev() {
		p.refresh()
	}
}

func (p *CitationPane) ToggleExpand() {
	if p.fold.toggle() {
		p.refresh()
	}
}

func (p *CitationPane) View() string {
	return p.Viewport.View()
}

func (p *CitationPane) Content() string {
	var sb strings.Builder
	sb.WriteString(p.Styles.PaneHeader.Width(max(p.Width, 1)).Render("Citations"))
	sb.WriteString("\n")
	lines := 2

	switch {
	case !p.loaded:
		sb.WriteString(p.Styles.Muted.Render("No response yet."))
		return sb.String()
	case len(p.entries) == 0:
		sb.WriteString(p.Styles.Muted.Render("The last response retrieved no references."))
		return sb.String()
	}

	for i, e := range p.entries {
		if i == p.fold.selected {
			p.selectedLine = lines
		}
		block := p.entry(i, e)
		sb.WriteString(block)
		sb.WriteString("\n")
		lines += strings.Count(block, "\n") + 1
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (p *CitationPane) refresh() {
	p.Viewport.SetContent(p.Content())
	if len(p.entries) > 0 {
		follow(&p.Viewport, p.selectedLine)
	}
}

func (p *CitationPane) entry(i int, e citation.PanelEntry) string {
	expanded := p.fold.isExpanded(i)

	label := e.Locator
	if label == "" {
		label = "(no location)"
	}
	title := fmt.Sprintf("[%d] %s", e.Number, label)
	if i == p.fold.selected {
		title = p.Styles.Selected.Render(title)
	} else {
		title = p.Styles.Bold.Render(title)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s %s", foldMarker(expanded), title))
	if !expanded {
		return sb.String()
	}

	field := func(name, value string) {
		if value == "" {
			return
		}
		sb.WriteString("\n")
		sb.WriteString(indentLines(p.fieldStyle.Render(name)+"\n"+indentLines(value, "  "), "    "))
	}

	if e.Record > 0 {
		field("Citation", fmt.Sprintf("#%d", e.Record))
	} else {
		field("Source", "knowledge base lookup (trace)")
	}
	if e.URL != "" {
		field("URL", p.linkStyle.Render(e.URL))
	}
	field("Cited text", e.CitedText)
	field("Retrieved text", p.wrap(e.Snippet))
	field("Metadata", metadataLines(e.Reference.Metadata))
	return sb.String()
}

func (p *CitationPane) wrap(s string) string {
	if s == "" || p.Width <= 8 {
		return s
	}
	return lipgloss.NewStyle().Width(p.Width - 6).Render(s)
}

func metadataLines(md map[string]any) string {
	if len(md) == 0 {
		return ""
	}
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %v", k, md[k]))
	}
	return strings.Join(lines, "\n")
}
