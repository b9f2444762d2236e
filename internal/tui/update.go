package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/existflow/sitegate/internal/idle"
)

const tickInterval = 250 * time.Millisecond

// tickMsg redraws the countdown
type tickMsg time.Time

// stateMsg carries a monitor state change
type stateMsg idle.State

// stayResultMsg is the outcome of "stay logged in"
type stayResultMsg struct {
	err error
}

// Init starts the countdown ticker and the state listener
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.waitForState())
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForState listens for monitor state changes
func (m Model) waitForState() tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-m.states)
	}
}

func (m Model) stayLoggedIn() tea.Cmd {
	monitor := m.monitor
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return stayResultMsg{err: monitor.StayLoggedIn(ctx)}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = max(10, msg.Width-8)
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		// Resync in case the state channel dropped an update
		if s := m.monitor.State(); s != m.state {
			m.state = s
			if s == idle.Expired {
				return m.expired()
			}
		}
		m.countdown = m.monitor.CountdownSeconds()
		return m, tickCmd()

	case stateMsg:
		m.state = idle.State(msg)
		m.countdown = m.monitor.CountdownSeconds()
		if m.state == idle.Expired {
			return m.expired()
		}
		return m, m.waitForState()

	case stayResultMsg:
		if msg.err != nil {
			m.message = "Could not extend session: " + msg.err.Error()
			return m, nil
		}
		m.message = "Session extended"
		m.state = m.monitor.State()
		m.countdown = m.monitor.CountdownSeconds()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.monitor.Stop()
			return m, tea.Quit
		case key.Matches(msg, keys.Stay) && m.state == idle.Warning:
			m.message = "Extending session..."
			return m, m.stayLoggedIn()
		}
		m.activity("keydown", false)
		return m, nil

	case tea.MouseMsg:
		kind := "mousedown"
		switch {
		case msg.Action == tea.MouseActionMotion:
			kind = "mousemove"
		case tea.MouseEvent(msg).IsWheel():
			kind = "wheel"
		}
		m.activity(kind, m.inWarningBox(msg.X, msg.Y))
		return m, nil
	}

	return m, nil
}

func (m Model) expired() (tea.Model, tea.Cmd) {
	m.state = idle.Expired
	m.countdown = 0
	m.message = "Session expired. Run `sitegate login` to sign in again."
	return m, tea.Quit
}

func (m *Model) activity(kind string, fromWarning bool) {
	if m.monitor.Activity(idle.Activity{Kind: kind, FromWarningUI: fromWarning}) {
		m.state = m.monitor.State()
		m.countdown = m.monitor.CountdownSeconds()
	}
}
