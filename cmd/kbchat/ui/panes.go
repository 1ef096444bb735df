package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
)

// PaneKind identifies which side pane is shown next to the chat.
type PaneKind int

const (
	PaneNone PaneKind = iota
	PaneTrace
	PaneCitations
)

func (k PaneKind) String() string {
	switch k {
	case PaneTrace:
		return "Trace"
	case PaneCitations:
		return "Citations"
	default:
		return "Chat"
	}
}

// Split ratio bounds
const (
	MinSplitRatio     = 0.2
	MaxSplitRatio     = 0.9
	DefaultSplitRatio = 0.62
)

// SidePane is a scrollable pane of collapsible blocks.
type SidePane interface {
	SetSize(width, height int)
	SelectNext()
	SelectPrev()
	ToggleExpand()
	Content() string
	View() string
}

// foldList tracks the selected block and which blocks are expanded.
type foldList struct {
	selected int
	expanded []bool
}

func (f *foldList) reset(n int) {
	f.selected = 0
	f.expanded = make([]bool, n)
}

func (f *foldList) len() int { return len(f.expanded) }

func (f *foldList) next() bool {
	if f.selected >= len(f.expanded)-1 {
		return false
	}
	f.selected++
	return true
}

func (f *foldList) prev() bool {
	if f.selected <= 0 {
		return false
	}
	f.selected--
	return true
}

func (f *foldList) toggle() bool {
	if f.selected < 0 || f.selected >= len(f.expanded) {
		return false
	}
	f.expanded[f.selected] = !f.expanded[f.selected]
	return true
}

func (f *foldList) isExpanded(i int) bool {
	return i >= 0 && i < len(f.expanded) && f.expanded[i]
}

func foldMarker(expanded bool) string {
	if expanded {
		return "▼"
	}
	return "▶"
}

// follow scrolls vp so that line is visible.
func follow(vp *viewport.Model, line int) {
	if line < vp.YOffset {
		vp.SetYOffset(line)
	} else if vp.Height > 0 && line >= vp.YOffset+vp.Height {
		vp.SetYOffset(line - vp.Height + 1)
	}
}

func indentLines(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// SplitView renders the chat column and, when a side pane is open, the
// pane to its right.
type SplitView struct {
	Styles     Styles
	Width      int
	Height     int
	SplitRatio float64
	FocusRight bool
}

// NewSplitView creates a split view; ratio is the chat column share.
func NewSplitView(styles Styles, ratio float64) SplitView {
	return SplitView{Styles: styles, SplitRatio: clampRatio(ratio)}
}

func clampRatio(r float64) float64 {
	if r == 0 {
		return DefaultSplitRatio
	}
	if r < MinSplitRatio {
		return MinSplitRatio
	}
	if r > MaxSplitRatio {
		return MaxSplitRatio
	}
	return r
}

// SetSize updates dimensions
func (s *SplitView) SetSize(width, height int) {
	s.Width = width
	s.Height = height
}

// Widths returns the chat and pane widths for an open side pane.
func (s SplitView) Widths() (left, right int) {
	left = int(float64(s.Width) * s.SplitRatio)
	right = s.Width - left - 1
	if right < 0 {
		right = 0
	}
	return left, right
}

// PaneSize returns the inner size available to the side pane.
func (s SplitView) PaneSize() (width, height int) {
	_, right := s.Widths()
	width, height = right-4, s.Height-2
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return width, height
}

// Render joins left and pane. A nil pane returns left unchanged.
func (s SplitView) Render(left string, pane SidePane) string {
	if pane == nil || s.Width <= 0 {
		return left
	}
	leftWidth, rightWidth := s.Widths()

	leftStyle := lipgloss.NewStyle().
		Width(leftWidth).
		MaxHeight(s.Height)

	border := lipgloss.NormalBorder()
	borderColor := s.Styles.Theme.Border
	if s.FocusRight {
		border = lipgloss.ThickBorder()
		borderColor = s.Styles.Theme.Accent
	}
	rightStyle := lipgloss.NewStyle().
		Width(max(rightWidth-2, 1)).
		MaxHeight(s.Height).
		Border(border).
		BorderForeground(borderColor).
		Padding(0, 1)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		leftStyle.Render(left),
		" ",
		rightStyle.Render(pane.View()),
	)
}
