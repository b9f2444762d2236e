// Package tui is the terminal session monitor behind `sitegate watch`.
// Keypresses and mouse movement count as activity; when the inactivity
// warning shows, the user can stay logged in or let the session lapse.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/progress"

	"github.com/existflow/sitegate/internal/idle"
	"github.com/existflow/sitegate/internal/logger"
)

// Session is the server side of the monitored session
type Session interface {
	Refresh(ctx context.Context) (time.Time, error)
	Logout(ctx context.Context) error
}

// Options configures the monitor driven by the model
type Options struct {
	Server  string
	Timeout time.Duration
	Warning time.Duration

	// Scheduler and Now are overridable for tests
	Scheduler idle.Scheduler
	Now       func() time.Time
}

// Model is the main TUI model
type Model struct {
	monitor *idle.Monitor
	states  chan idle.State
	server  string

	state     idle.State
	countdown int
	expiresAt time.Time

	progress progress.Model
	help     help.Model
	width    int

	message string
}

// NewModel creates a model and starts its monitor
func NewModel(session Session, opts Options) Model {
	logger.Info("Initializing session monitor",
		logger.F("timeout", opts.Timeout.String()),
		logger.F("warning", opts.Warning.String()))

	states := make(chan idle.State, 8)

	monitor := idle.NewMonitor(idle.Config{
		Timeout:   opts.Timeout,
		Warning:   opts.Warning,
		Scheduler: opts.Scheduler,
		Now:       opts.Now,
		Refresh: func(ctx context.Context) error {
			_, err := session.Refresh(ctx)
			return err
		},
		Logout: session.Logout,
		OnStateChange: func(s idle.State) {
			// Never block the monitor on a slow UI; the tick resyncs
			select {
			case states <- s:
			default:
			}
		},
	})
	monitor.Start()

	m := Model{
		monitor:  monitor,
		states:   states,
		server:   opts.Server,
		state:    idle.Active,
		progress: progress.New(progress.WithGradient(string(StateExpired), string(StateActive)), progress.WithoutPercentage()),
		help:     help.New(),
	}
	m.countdown = monitor.CountdownSeconds()
	return m
}

// percent is the share of the current window still left
func (m Model) percent() float64 {
	window := m.monitor.Timeout()
	if m.state == idle.Warning {
		window = m.monitor.WarningLead()
	}
	if window <= 0 || m.state == idle.Expired {
		return 0
	}
	p := float64(m.monitor.Remaining()) / float64(window)
	if p > 1 {
		return 1
	}
	return p
}
