package chat

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"kbchat/cmd/kbchat/ui"
)

const helpText = `Commands:
  /reset       start a new session (Ctrl+R)
  /trace       toggle the trace pane (Alt+T)
  /citations   toggle the citations pane (Alt+C)
  /session     show the current session
  /help        show this help
  /quit        exit (Esc, Ctrl+C)

In a side pane (Tab to focus): ↑/↓ select, Space expand or collapse.`

// handleCommand runs a slash command typed into the input.
func (m Model) handleCommand(input string) (Model, tea.Cmd) {
	cmd := strings.Fields(input)[0]

	switch cmd {
	case "/quit", "/exit", "/q":
		return m, tea.Quit

	case "/reset", "/new":
		m.resetSession()

	case "/trace":
		m.togglePane(ui.PaneTrace)

	case "/citations":
		m.togglePane(ui.PaneCitations)

	case "/session":
		m.pushSystem(m.sessionSummary())

	case "/help":
		m.pushSystem(helpText)

	default:
		m.pushSystem(fmt.Sprintf("Unknown command %s. Type /help for the list.", cmd))
	}
	return m, nil
}

func (m *Model) pushSystem(text string) {
	m.history = append(m.history, message{Role: roleSystem, Content: text, Time: time.Now()})
	m.refreshHistory()
}

func (m Model) sessionSummary() string {
	if m.cfg.Conversation == nil {
		return "No agent configured."
	}
	st := m.cfg.Conversation.Session().Snapshot()
	return fmt.Sprintf("Session %s\n  turns: %d\n  citations in last response: %d\n  trace fragments in last response: %d",
		st.ID, len(st.Turns)/2, len(st.LastCitations), st.LastTrace.Len())
}
