package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"kbchat/cmd/kbchat/ui"
)

// =============================================================================
// VIEW RENDERING
// =============================================================================

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	content := m.viewport.View()
	if m.err != nil {
		content = lipgloss.JoinVertical(lipgloss.Left, content, m.renderErrorPanel())
	}
	body := m.split.Render(m.styles.Content.Render(content), m.activePane())

	inputStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.styles.Theme.Accent).
		Padding(0, 1)
	if m.isLoading || m.focusPane {
		inputStyle = inputStyle.BorderForeground(m.styles.Theme.Border)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderHeader(),
		body,
		inputStyle.Render(m.textarea.View()),
		m.renderFooter(),
	)
}

func (m Model) renderHistory() string {
	var sb strings.Builder

	for _, msg := range m.history {
		switch msg.Role {
		case roleUser:
			sb.WriteString(m.styles.UserName.Render("You") + "\n")
			sb.WriteString(m.styles.UserInput.Render(msg.Content))
			sb.WriteString("\n\n")

		case roleSystem:
			sb.WriteString(m.styles.Muted.Render(msg.Content))
			sb.WriteString("\n\n")

		default:
			sb.WriteString(m.styles.BotName.Render(m.agentName()) + "\n")
			sb.WriteString(m.safeRenderMarkdown(msg.Content))
			for _, d := range msg.Diagnostics {
				sb.WriteString(m.styles.Diagnostic.Render("⚠ " + d.String()))
				sb.WriteString("\n")
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func (m Model) agentName() string {
	if m.cfg.Icon != "" {
		return m.cfg.Icon + " Agent"
	}
	return "Agent"
}

// safeRenderMarkdown renders markdown with panic recovery
func (m Model) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = content + "\n"
		}
	}()

	if m.renderer != nil && content != "" {
		if rendered, err := m.renderer.Render(content); err == nil {
			return rendered
		}
	}
	return content + "\n"
}

func (m Model) renderErrorPanel() string {
	if m.err == nil {
		return ""
	}
	header := lipgloss.NewStyle().Bold(true).Foreground(ui.Destructive).Render("Error")

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ui.Destructive).
		Padding(0, 1).
		Width(max(m.viewport.Width, 1)).
		MaxHeight(errorHeight).
		Render(lipgloss.JoinVertical(lipgloss.Left, header, m.err.Error()))
}

func (m Model) renderHeader() string {
	title := m.cfg.Title
	if m.cfg.Icon != "" {
		title = m.cfg.Icon + " " + title
	}

	status := m.styles.Success.Render("Ready")
	if m.isLoading {
		status = lipgloss.JoinHorizontal(lipgloss.Center, m.spinner.View(), " ", m.styles.Badge.Render("Waiting for agent..."))
	}

	sessionID := ""
	if m.cfg.Conversation != nil {
		sessionID = m.styles.Muted.Render(" session " + m.cfg.Conversation.Session().ID())
	}

	line := lipgloss.JoinHorizontal(lipgloss.Center, m.styles.Header.Render(" "+title+" "), "  ", status, sessionID)
	return lipgloss.JoinVertical(lipgloss.Left, line, m.styles.RenderDivider(m.width))
}

func (m Model) renderFooter() string {
	focus := "input"
	if m.focusPane {
		focus = strings.ToLower(m.pane.String())
	}
	hotkeys := "Alt+T: trace | Alt+C: citations | Tab: focus | Ctrl+R: reset | /help"
	return m.styles.Footer.Render(fmt.Sprintf("%s | focus: %s | %s", m.pane, focus, hotkeys))
}
