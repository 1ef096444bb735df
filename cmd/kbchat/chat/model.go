// Package chat provides the interactive TUI chat interface for kbchat.
package chat

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"kbchat/cmd/kbchat/ui"
	"kbchat/internal/citation"
	"kbchat/internal/logging"
	"kbchat/internal/session"
	"kbchat/internal/trace"
	"kbchat/internal/types"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds what the chat needs to run a conversation.
type Config struct {
	Title      string
	Icon       string
	Theme      string // auto, dark, light
	SplitRatio float64

	// Timeout bounds a single agent call.
	Timeout time.Duration

	Conversation *session.Conversation
	Resolver     *citation.Resolver
}

const (
	defaultTimeout   = 2 * time.Minute
	inputPlaceholder = "Ask the knowledge base... (Enter to send, Alt+Enter for newline, Esc to exit)"

	headerHeight = 3
	footerHeight = 2
	inputHeight  = 5
	errorHeight  = 4
)

// =============================================================================
// MODEL
// =============================================================================

type role string

const (
	roleUser      role = "user"
	roleAssistant role = "assistant"
	roleSystem    role = "system"
)

// message is one entry of the rendered history.
type message struct {
	Role        role
	Content     string
	Diagnostics []types.Diagnostic
	Time        time.Time
}

// Model is the bubbletea model of the chat window.
type Model struct {
	cfg    Config
	styles ui.Styles

	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	split        ui.SplitView
	tracePane    *ui.TracePane
	citationPane *ui.CitationPane
	pane         ui.PaneKind
	focusPane    bool

	history   []message
	isLoading bool
	err       error

	width  int
	height int
	ready  bool
}

// New builds the chat model. A session restored from the store is shown
// with its history and the panes of its last response.
func New(cfg Config) Model {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	styles := ui.NewStyles(ui.ThemeFor(cfg.Theme))

	ta := textarea.New()
	ta.Placeholder = inputPlaceholder
	ta.ShowLineNumbers = false
	ta.CharLimit = 8192
	ta.SetWidth(80)
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter", "ctrl+j"))
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	m := Model{
		cfg:          cfg,
		styles:       styles,
		textarea:     ta,
		viewport:     viewport.New(80, 20),
		spinner:      sp,
		split:        ui.NewSplitView(styles, cfg.SplitRatio),
		tracePane:    ui.NewTracePane(styles, 40, 20),
		citationPane: ui.NewCitationPane(styles, 40, 20),
	}
	m.renderer = newRenderer(styles, 76)
	m.restore()
	m.refreshHistory()
	return m
}

func newRenderer(styles ui.Styles, wrap int) *glamour.TermRenderer {
	if wrap < 20 {
		wrap = 20
	}
	style := "light"
	if styles.Theme.IsDark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		logging.Get(logging.CategoryUI).Warn("markdown renderer unavailable: %v", err)
		return nil
	}
	return r
}

func (m *Model) restore() {
	if m.cfg.Conversation == nil {
		return
	}
	st := m.cfg.Conversation.Session().Snapshot()
	for _, t := range st.Turns {
		r := roleUser
		if t.Role == session.RoleAssistant {
			r = roleAssistant
		}
		m.history = append(m.history, message{Role: r, Content: t.Content, Diagnostics: t.Diagnostics, Time: t.Time})
	}
	if len(st.Turns) > 0 {
		m.showResponse(trace.Reconstruct(st.LastTrace), m.panelEntries(st.LastResponse()))
		logging.UI("restored %d turns of session %s", len(st.Turns), st.ID)
	}
}

func (m *Model) panelEntries(resp types.RawResponse) []citation.PanelEntry {
	if m.cfg.Resolver == nil {
		return nil
	}
	return m.cfg.Resolver.PanelEntries(resp)
}

func (m *Model) showResponse(phases []trace.Phase, entries []citation.PanelEntry) {
	m.tracePane.SetPhases(phases)
	m.citationPane.SetEntries(entries)
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// activePane returns the open side pane, or nil.
func (m Model) activePane() ui.SidePane {
	switch m.pane {
	case ui.PaneTrace:
		return m.tracePane
	case ui.PaneCitations:
		return m.citationPane
	default:
		return nil
	}
}

// Run starts the interactive chat and blocks until it exits.
func Run(cfg Config) error {
	p := tea.NewProgram(New(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
