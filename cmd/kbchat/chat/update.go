package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"kbchat/cmd/kbchat/ui"
	"kbchat/internal/citation"
	"kbchat/internal/logging"
	"kbchat/internal/session"
)

// turnResultMsg carries the outcome of one agent call back to Update.
type turnResultMsg struct {
	sessionID string
	prompt    string
	display   session.Display
	entries   []citation.PanelEntry
	err       error
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.resize()
		return m, nil

	case tea.KeyMsg:
		next, cmd, handled := m.handleKey(msg)
		if handled {
			return next, cmd
		}
		m = next

	case turnResultMsg:
		return m.handleTurnResult(msg), nil

	case spinner.TickMsg:
		if !m.isLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

// handleKey processes keyboard input. handled=false lets the key reach
// the textarea.
func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit, true

	case "alt+t":
		m.togglePane(ui.PaneTrace)
		return m, nil, true

	case "alt+c":
		m.togglePane(ui.PaneCitations)
		return m, nil, true

	case "tab":
		if m.pane != ui.PaneNone {
			m.setFocus(!m.focusPane)
			return m, nil, true
		}

	case "ctrl+r":
		m.resetSession()
		return m, nil, true

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd, true
	}

	if m.focusPane {
		if pane := m.activePane(); pane != nil {
			switch msg.String() {
			case "up", "k":
				pane.SelectPrev()
			case "down", "j":
				pane.SelectNext()
			case " ", "enter":
				pane.ToggleExpand()
			}
		}
		// keys never leak into the input while a pane has focus
		return m, nil, true
	}

	if msg.Type == tea.KeyEnter && !msg.Alt {
		return m.submit()
	}
	return m, nil, false
}

func (m Model) submit() (Model, tea.Cmd, bool) {
	if m.isLoading {
		return m, nil, true
	}
	input := strings.TrimSpace(m.textarea.Value())
	if input == "" {
		return m, nil, true
	}
	m.textarea.Reset()

	if strings.HasPrefix(input, "/") {
		next, cmd := m.handleCommand(input)
		return next, cmd, true
	}

	if m.cfg.Conversation == nil {
		m.setError(errors.New("no agent configured"))
		return m, nil, true
	}

	m.clearError()
	m.isLoading = true
	m.textarea.Blur()
	m.history = append(m.history, message{Role: roleUser, Content: input, Time: time.Now()})
	m.refreshHistory()
	logging.UIDebug("submitting prompt (%d chars)", len(input))
	return m, tea.Batch(m.submitCmd(input), m.spinner.Tick), true
}

// submitCmd runs the turn off the UI goroutine.
func (m Model) submitCmd(prompt string) tea.Cmd {
	conv := m.cfg.Conversation
	resolver := m.cfg.Resolver
	timeout := m.cfg.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		sessionID := conv.Session().ID()
		d, err := conv.Submit(ctx, prompt)
		res := turnResultMsg{sessionID: sessionID, prompt: prompt, display: d, err: err}
		if err == nil && resolver != nil {
			res.entries = resolver.PanelEntries(conv.Session().Snapshot().LastResponse())
		}
		return res
	}
}

func (m Model) handleTurnResult(msg turnResultMsg) Model {
	m.isLoading = false
	m.textarea.Focus()

	if errors.Is(msg.err, session.ErrStaleSession) {
		logging.UIDebug("discarding result of reset session %s", msg.sessionID)
		return m
	}

	if msg.err != nil {
		// The turn was not recorded; give the prompt back for a retry.
		if n := len(m.history); n > 0 && m.history[n-1].Role == roleUser && m.history[n-1].Content == msg.prompt {
			m.history = m.history[:n-1]
		}
		m.textarea.SetValue(msg.prompt)
		m.setError(msg.err)
		m.refreshHistory()
		return m
	}

	m.history = append(m.history, message{
		Role:        roleAssistant,
		Content:     msg.display.Text,
		Diagnostics: msg.display.Diagnostics,
		Time:        time.Now(),
	})
	m.showResponse(msg.display.Phases, msg.entries)
	m.refreshHistory()
	return m
}

func (m *Model) togglePane(kind ui.PaneKind) {
	if m.pane == kind {
		m.pane = ui.PaneNone
		m.setFocus(false)
	} else {
		m.pane = kind
	}
	m.resize()
}

func (m *Model) setFocus(focus bool) {
	m.focusPane = focus && m.pane != ui.PaneNone
	m.split.FocusRight = m.focusPane
	if m.focusPane {
		m.textarea.Blur()
	} else if !m.isLoading {
		m.textarea.Focus()
	}
}

func (m *Model) resetSession() {
	if m.cfg.Conversation == nil {
		return
	}
	id := m.cfg.Conversation.Reset(context.Background())
	m.history = []message{{Role: roleSystem, Content: fmt.Sprintf("Started new session %s", id), Time: time.Now()}}
	m.clearError()
	m.tracePane.SetPhases(nil)
	m.citationPane.Clear()
	// A pending turn keeps the input disabled; its stale result re-enables it.
	m.setFocus(false)
	m.refreshHistory()
}

func (m *Model) setError(err error) {
	m.err = err
	logging.Get(logging.CategoryUI).Warn("turn failed: %v", err)
	m.fitViewport()
}

func (m *Model) clearError() {
	if m.err != nil {
		m.err = nil
		m.fitViewport()
	}
}

// resize lays out the chat column and side pane for the current window.
func (m *Model) resize() {
	if !m.ready {
		return
	}
	bodyHeight := m.height - headerHeight - footerHeight - inputHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	m.split.SetSize(m.width, bodyHeight)

	chatWidth := m.width - 4
	if m.pane != ui.PaneNone {
		left, _ := m.split.Widths()
		chatWidth = left - 4
		pw, ph := m.split.PaneSize()
		m.tracePane.SetSize(pw, ph)
		m.citationPane.SetSize(pw, ph)
	}
	if chatWidth < 1 {
		chatWidth = 1
	}

	m.viewport.Width = chatWidth
	m.textarea.SetWidth(max(m.width-4, 1))
	m.fitViewport()

	m.renderer = newRenderer(m.styles, chatWidth-4)
	m.refreshHistory()
}

// fitViewport leaves room for the error panel when one is shown.
func (m *Model) fitViewport() {
	if !m.ready {
		return
	}
	h := m.split.Height
	if m.err != nil {
		h -= errorHeight
	}
	m.viewport.Height = max(h, 1)
}

func (m *Model) refreshHistory() {
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}
