// Package ui holds the lipgloss styling and the side panes of the kbchat
// terminal client.
package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	LightBackground = lipgloss.Color("#fafafa")
	LightForeground = lipgloss.Color("#232f3e")
	LightPrimary    = lipgloss.Color("#232f3e")
	LightAccent     = lipgloss.Color("#ff9900")
	LightSecondary  = lipgloss.Color("#eaeded")
	LightMuted      = lipgloss.Color("#879596")
	LightBorder     = lipgloss.Color("#d5dbdb")

	DarkBackground = lipgloss.Color("#0f1b2a")
	DarkForeground = lipgloss.Color("#f2f3f3")
	DarkPrimary    = lipgloss.Color("#ff9900")
	DarkAccent     = lipgloss.Color("#44b9d6")
	DarkSecondary  = lipgloss.Color("#1f2f44")
	DarkMuted      = lipgloss.Color("#687078")
	DarkBorder     = lipgloss.Color("#414d5c")

	Destructive = lipgloss.Color("#d13212")
	Success     = lipgloss.Color("#1d8102")
	Warning     = lipgloss.Color("#ff9900")
	Info        = lipgloss.Color("#0073bb")
)

// Theme holds the current color scheme
type Theme struct {
	Background lipgloss.Color
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Accent     lipgloss.Color
	Secondary  lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	IsDark     bool
}

// LightTheme returns the light mode theme
func LightTheme() Theme {
	return Theme{
		Background: LightBackground,
		Foreground: LightForeground,
		Primary:    LightPrimary,
		Accent:     LightAccent,
		Secondary:  LightSecondary,
		Muted:      LightMuted,
		Border:     LightBorder,
	}
}

// DarkTheme returns the dark mode theme
func DarkTheme() Theme {
	return Theme{
		Background: DarkBackground,
		Foreground: DarkForeground,
		Primary:    DarkPrimary,
		Accent:     DarkAccent,
		Secondary:  DarkSecondary,
		Muted:      DarkMuted,
		Border:     DarkBorder,
		IsDark:     true,
	}
}

// DetectTheme guesses the terminal background from COLORFGBG, with
// KBCHAT_DARK_MODE=1 forcing dark mode. Light is the fallback.
func DetectTheme() Theme {
	if os.Getenv("KBCHAT_DARK_MODE") == "1" {
		return DarkTheme()
	}

	// "foreground;background", background 0-6 or 8 is a dark ANSI color
	if parts := strings.Split(os.Getenv("COLORFGBG"), ";"); len(parts) == 2 {
		if bg, err := strconv.Atoi(parts[1]); err == nil && ((bg >= 0 && bg <= 6) || bg == 8) {
			return DarkTheme()
		}
	}

	return LightTheme()
}

// ThemeFor maps the ui.theme config value to a theme.
func ThemeFor(name string) Theme {
	switch strings.ToLower(name) {
	case "dark":
		return DarkTheme()
	case "light":
		return LightTheme()
	default:
		return DetectTheme()
	}
}

// Styles holds all the styled components
type Styles struct {
	Theme Theme

	Header  lipgloss.Style
	Footer  lipgloss.Style
	Content lipgloss.Style

	Title    lipgloss.Style
	Muted    lipgloss.Style
	Bold     lipgloss.Style
	UserName lipgloss.Style
	BotName  lipgloss.Style

	UserInput  lipgloss.Style
	Diagnostic lipgloss.Style

	Success lipgloss.Style
	Error   lipgloss.Style

	PaneHeader lipgloss.Style
	Selected   lipgloss.Style
	Spinner    lipgloss.Style
	Divider    lipgloss.Style
	Badge      lipgloss.Style
}

// NewStyles creates a new Styles instance with the given theme
func NewStyles(theme Theme) Styles {
	return Styles{
		Theme: theme,

		Header: lipgloss.NewStyle().
			Background(theme.Primary).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 2).
			Bold(true),

		Footer: lipgloss.NewStyle().
			Foreground(theme.Muted).
			MarginTop(1),

		Content: lipgloss.NewStyle().
			Padding(0, 2),

		Title: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Bold: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Bold(true),

		UserName: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true).
			MarginTop(1),

		BotName: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Bold(true).
			MarginTop(1),

		UserInput: lipgloss.NewStyle().
			Foreground(theme.Foreground),

		Diagnostic: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Italic(true).
			PaddingLeft(2),

		Success: lipgloss.NewStyle().
			Foreground(Success).
			Bold(true),

		Error: lipgloss.NewStyle().
			Foreground(Destructive).
			Bold(true),

		PaneHeader: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Primary).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(theme.Border),

		Selected: lipgloss.NewStyle().
			Background(theme.Secondary).
			Bold(true),

		Spinner: lipgloss.NewStyle().
			Foreground(theme.Accent),

		Divider: lipgloss.NewStyle().
			Foreground(theme.Border),

		Badge: lipgloss.NewStyle().
			Background(theme.Accent).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 1).
			Bold(true),
	}
}

// DefaultStyles returns styles for the detected theme
func DefaultStyles() Styles {
	return NewStyles(DetectTheme())
}

// RenderDivider returns a horizontal divider
func (s Styles) RenderDivider(width int) string {
	if width < 0 {
		width = 0
	}
	return s.Divider.Render(strings.Repeat("─", width))
}
