package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"kbchat/internal/trace"
	"kbchat/internal/types"
)

// TracePane shows the reconstructed trace of the last response: a header
// per phase, one collapsible block per step.
type TracePane struct {
	Viewport viewport.Model
	Styles   Styles
	Width    int
	Height   int

	phases []trace.Phase
	steps  []stepRef // flattened for navigation
	fold   foldList

	cachedContent  string
	cacheValid     bool
	lastCacheWidth int
	selectedLine   int

	labelStyle lipgloss.Style
	kindStyle  lipgloss.Style
	jsonStyle  lipgloss.Style
}

type stepRef struct {
	phase int
	step  int
}

var _ SidePane = (*TracePane)(nil)

// NewTracePane creates an empty trace pane.
func NewTracePane(styles Styles, width, height int) *TracePane {
	p := &TracePane{
		Viewport:   viewport.New(width, height),
		Styles:     styles,
		Width:      width,
		Height:     height,
		labelStyle: lipgloss.NewStyle().Foreground(styles.Theme.Accent).Bold(true),
		kindStyle:  lipgloss.NewStyle().Foreground(styles.Theme.Muted).Italic(true),
		jsonStyle:  lipgloss.NewStyle().Foreground(styles.Theme.Foreground),
	}
	p.refresh()
	return p
}

// SetSize updates the pane dimensions
func (p *TracePane) SetSize(width, height int) {
	p.Width = width
	p.Height = height
	p.Viewport.Width = width
	p.Viewport.Height = height
	p.refresh()
}

// SetPhases replaces the displayed trace. Every step starts collapsed.
func (p *TracePane) SetPhases(phases []trace.Phase) {
	p.phases = phases
	p.steps = p.steps[:0]
	for i, ph := range phases {
		for j := range ph.Steps {
			p.steps = append(p.steps, stepRef{phase: i, step: j})
		}
	}
	p.fold.reset(len(p.steps))
	p.Viewport.GotoTop()
	p.refresh()
}

// StepCount returns the number of navigable steps.
func (p *TracePane) StepCount() int {
	return len(p.steps)
}

// Selected returns the 0-based index of the selected step.
func (p *TracePane) Selected() int {
	return p.fold.selected
}

// IsExpanded reports whether step i (0-based, across phases) is open.
func (p *TracePane) IsExpanded(i int) bool {
	return p.fold.isExpanded(i)
}

// SelectNext selects the next step
func (p *TracePane) SelectNext() {
	if p.fold.next() {
		p.refresh()
	}
}

// SelectPrev selects the previous step
func (p *TracePane) SelectPrev() {
	if p.fold.prev() {
		p.refresh()
	}
}

// ToggleExpand opens or closes the selected step
func (p *TracePane) ToggleExpand() {
	if p.fold.toggle() {
		p.refresh()
	}
}

// View returns the rendered view
func (p *TracePane) View() string {
	return p.Viewport.View()
}

// Content returns the full pane content, ignoring scrolling.
func (p *TracePane) Content() string {
	if p.cacheValid && p.lastCacheWidth == p.Width {
		return p.cachedContent
	}
	p.cachedContent = p.render()
	p.cacheValid = true
	p.lastCacheWidth = p.Width
	return p.cachedContent
}

func (p *TracePane) refresh() {
	p.cacheValid = false
	p.Viewport.SetContent(p.Content())
	if len(p.steps) > 0 {
		follow(&p.Viewport, p.selectedLine)
	}
}

func (p *TracePane) render() string {
	var sb strings.Builder
	sb.WriteString(p.Styles.PaneHeader.Width(max(p.Width, 1)).Render("Agent Trace"))
	sb.WriteString("\n")
	lines := 2

	if p.phases == nil {
		sb.WriteString(p.Styles.Muted.Render("No trace yet. Ask a question to see how the agent got its answer."))
		return sb.String()
	}

	write := func(s string) {
		sb.WriteString(s)
		sb.WriteString("\n")
		lines += strings.Count(s, "\n") + 1
	}

	idx := 0
	for _, ph := range p.phases {
		write(p.labelStyle.Render(ph.Label))
		if ph.NoTrace {
			write("  " + p.Styles.Muted.Render(trace.NoTraceText))
			continue
		}
		for _, st := range ph.Steps {
			expanded := p.fold.isExpanded(idx)
			if idx == p.fold.selected {
				p.selectedLine = lines
			}
			write(p.stepHeader(st, expanded, idx == p.fold.selected))
			if expanded {
				for _, f := range st.Fragments {
					write(p.fragment(f))
				}
			}
			idx++
		}
		if ph.Skipped > 0 {
			write("  " + p.Styles.Muted.Render(fmt.Sprintf("%d unrecognized fragments skipped", ph.Skipped)))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (p *TracePane) stepHeader(st trace.Step, expanded, selected bool) string {
	title := st.Title()
	if selected {
		title = p.Styles.Selected.Render(title)
	} else {
		title = p.Styles.Bold.Render(title)
	}

	kinds := make([]string, 0, len(st.Fragments))
	for _, k := range st.Kinds() {
		if k == types.KindUnrecognized {
			kinds = append(kinds, "untagged")
			continue
		}
		kinds = append(kinds, string(k))
	}
	meta := p.kindStyle.Render(" " + strings.Join(kinds, ", "))
	return fmt.Sprintf("  %s %s%s", foldMarker(expanded), title, meta)
}

func (p *TracePane) fragment(f types.Fragment) string {
	kind := string(f.Kind)
	if kind == "" {
		kind = "fragment"
	}
	body := indentLines(p.jsonStyle.Render(trace.FormatFragment(f)), "      ")
	return "    " + p.kindStyle.Render(kind) + "\n" + body
}
