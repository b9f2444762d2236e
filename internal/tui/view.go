package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/existflow/sitegate/internal/idle"
)

// View renders the monitor
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.header())
	b.WriteString("\n")

	var body strings.Builder
	fmt.Fprintf(&body, "State: %s\n\n", StateBadge(m.state))

	switch m.state {
	case idle.Active:
		fmt.Fprintf(&body, "Session idles out in %s\n", formatCountdown(m.countdown))
		body.WriteString(m.progress.ViewAs(m.percent()))
		body.WriteString("\n\n")
		body.WriteString(MessageStyle.Render("Press any key to stay active."))
	case idle.Warning:
		body.WriteString(m.warningBox())
	case idle.Expired:
		body.WriteString("Session expired.")
	}

	b.WriteString(BodyStyle.Render(body.String()))
	b.WriteString("\n")

	status := m.help.View(keys)
	if m.message != "" {
		status = lipgloss.JoinHorizontal(lipgloss.Top, status, "  ", MessageStyle.Render(m.message))
	}
	b.WriteString(StatusBarStyle.Render(status))
	b.WriteString("\n")

	return b.String()
}

func (m Model) header() string {
	title := "sitegate watch"
	if m.server != "" {
		title += "  " + m.server
	}
	return HeaderStyle.Render(title)
}

func (m Model) warningBox() string {
	warning := fmt.Sprintf("You will be logged out in %s due to inactivity.\n\n%s\n\nPress s to stay logged in.",
		formatCountdown(m.countdown), m.progress.ViewAs(m.percent()))
	return WarningBoxStyle.Render(warning)
}

// inWarningBox reports whether the cell at x, y is part of the warning
// dialog. The box sits below the header and the state line, inside the
// body padding.
func (m Model) inWarningBox(x, y int) bool {
	if m.state != idle.Warning {
		return false
	}
	top := lipgloss.Height(m.header()) + BodyStyle.GetPaddingTop() + 2
	left := BodyStyle.GetPaddingLeft()

	box := m.warningBox()
	return x >= left && x < left+lipgloss.Width(box) &&
		y >= top && y < top+lipgloss.Height(box)
}

// formatCountdown renders whole seconds as m:ss
func formatCountdown(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
