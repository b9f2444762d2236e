package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/existflow/sitegate/internal/idle"
)

type fakeSession struct {
	mu         sync.Mutex
	refreshErr error
	refreshes  int
	logouts    int
}

func (f *fakeSession) Refresh(context.Context) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return time.Time{}, f.refreshErr
}

func (f *fakeSession) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts++
	return nil
}

// stepScheduler records timers and fires them on demand.
type stepScheduler struct {
	mu     sync.Mutex
	now    time.Time
	timers []*stepTimer
}

type stepTimer struct {
	at      time.Time
	f       func()
	stopped bool
}

func (t *stepTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (s *stepScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *stepScheduler) AfterFunc(d time.Duration, f func()) idle.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &stepTimer{at: s.now.Add(d), f: f}
	s.timers = append(s.timers, t)
	return t
}

// fireUntil advances to target and fires every live timer due by then.
func (s *stepScheduler) fireUntil(target time.Time) {
	for {
		s.mu.Lock()
		var next *stepTimer
		for _, t := range s.timers {
			if !t.stopped && !t.at.After(target) && (next == nil || t.at.Before(next.at)) {
				next = t
			}
		}
		if next == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		next.stopped = true
		s.now = next.at
		s.mu.Unlock()
		next.f()
	}
}

func newTestModel(t *testing.T, sess *fakeSession) (Model, *stepScheduler) {
	t.Helper()
	s := &stepScheduler{now: time.Date(2025, 9, 20, 12, 0, 0, 0, time.UTC)}
	m := NewModel(sess, Options{
		Timeout:   time.Minute,
		Warning:   30 * time.Second,
		Scheduler: s,
		Now:       s.Now,
	})
	return m, s
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func TestModel_KeypressIsActivity(t *testing.T) {
	m, s := newTestModel(t, &fakeSession{})

	s.fireUntil(s.Now().Add(20 * time.Second))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})

	assert.Equal(t, idle.Active, m.state)
	assert.Equal(t, 60, m.countdown)
}

func TestModel_WarningAndStayLoggedIn(t *testing.T) {
	sess := &fakeSession{}
	m, s := newTestModel(t, sess)

	s.fireUntil(s.Now().Add(30 * time.Second))
	m, cmd := update(t, m, stateMsg(<-m.states))
	require.Equal(t, idle.Warning, m.state)
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "Press s to stay logged in")

	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	require.NotNil(t, cmd)

	m, _ = update(t, m, cmd())
	assert.Equal(t, "Session extended", m.message)
	assert.Equal(t, idle.Active, m.state)
	assert.Equal(t, 1, sess.refreshes)
}

func TestModel_RefreshFailureExpires(t *testing.T) {
	sess := &fakeSession{refreshErr: errors.New("unauthorized")}
	m, s := newTestModel(t, sess)

	s.fireUntil(s.Now().Add(30 * time.Second))
	m, _ = update(t, m, stateMsg(<-m.states))

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())

	assert.Equal(t, idle.Expired, m.monitor.State())
	assert.Equal(t, 1, sess.logouts)
	assert.Contains(t, m.message, "unauthorized")
}

func TestModel_ExpiryQuits(t *testing.T) {
	sess := &fakeSession{}
	m, s := newTestModel(t, sess)

	s.fireUntil(s.Now().Add(time.Minute))
	m, _ = update(t, m, stateMsg(<-m.states))
	m, cmd := update(t, m, stateMsg(<-m.states))

	assert.Equal(t, idle.Expired, m.state)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Equal(t, 1, sess.logouts)
}

func TestModel_ClickOnWarningKeepsItOpen(t *testing.T) {
	m, s := newTestModel(t, &fakeSession{})

	s.fireUntil(s.Now().Add(30 * time.Second))
	m, _ = update(t, m, stateMsg(<-m.states))
	require.Equal(t, idle.Warning, m.state)

	require.True(t, m.inWarningBox(4, 4))
	m, _ = update(t, m, tea.MouseMsg{X: 4, Y: 4, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	assert.Equal(t, idle.Warning, m.state)
	assert.Equal(t, idle.Warning, m.monitor.State())

	require.False(t, m.inWarningBox(0, 0))
	m, _ = update(t, m, tea.MouseMsg{X: 0, Y: 0, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	assert.Equal(t, idle.Active, m.state)
}

func TestModel_TickNoticesExpiry(t *testing.T) {
	sess := &fakeSession{}
	m, s := newTestModel(t, sess)

	// State updates are left unread on the channel
	s.fireUntil(s.Now().Add(time.Minute))
	require.Equal(t, idle.Expired, m.monitor.State())

	m, cmd := update(t, m, tickMsg(s.Now()))
	assert.Equal(t, idle.Expired, m.state)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestFormatCountdown(t *testing.T) {
	assert.Equal(t, "0:30", formatCountdown(30))
	assert.Equal(t, "1:05", formatCountdown(65))
	assert.Equal(t, "0:00", formatCountdown(-3))
}
