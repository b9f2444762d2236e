package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/existflow/sitegate/internal/idle"
	"github.com/existflow/sitegate/internal/logger"
)

// Run launches the monitor and blocks until the user quits or the session
// expires. It reports whether the session expired.
func Run(session Session, opts Options) (bool, error) {
	p := tea.NewProgram(NewModel(session, opts), tea.WithAltScreen(), tea.WithMouseAllMotion())

	final, err := p.Run()
	if err != nil {
		logger.Error("Session monitor failed", logger.F("error", err))
		return false, err
	}

	m, ok := final.(Model)
	if !ok {
		return false, nil
	}
	m.monitor.Stop()
	return m.state == idle.Expired, nil
}
