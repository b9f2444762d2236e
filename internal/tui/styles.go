package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/existflow/sitegate/internal/idle"
)

// Color palette
var (
	StateActive  = lipgloss.Color("#95E1A3") // Green
	StateWarning = lipgloss.Color("#FFB347") // Orange
	StateExpired = lipgloss.Color("#FF6B6B") // Red

	Primary   = lipgloss.Color("#4ECDC4")
	TextMuted = lipgloss.Color("#888888")
	Border    = lipgloss.Color("#333333")
)

// Styles
var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary).
			Padding(0, 1)

	BodyStyle = lipgloss.NewStyle().
			Padding(1, 2)

	// Shown while the warning countdown runs
	WarningBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(StateWarning).
			Padding(1, 2)

	StatusBarStyle = lipgloss.NewStyle().
			Foreground(TextMuted).
			Padding(0, 1).
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(Border)

	MessageStyle = lipgloss.NewStyle().
			Foreground(TextMuted).
			Italic(true)
)

// StateBadge renders the monitor state in its color
func StateBadge(s idle.State) string {
	color := StateActive
	switch s {
	case idle.Warning:
		color = StateWarning
	case idle.Expired:
		color = StateExpired
	}
	return lipgloss.NewStyle().Foreground(color).Bold(true).Render(s.String())
}
