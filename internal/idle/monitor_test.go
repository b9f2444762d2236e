package idle

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualScheduler fires callbacks only when Advance moves its clock.
type manualScheduler struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{now: time.Date(2025, 9, 20, 12, 0, 0, 0, time.UTC)}
}

func (s *manualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{at: s.now.Add(d), f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *manualScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Advance moves the clock, firing due timers in order.
func (s *manualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		var due []*manualTimer
		for _, t := range s.timers {
			if !t.stopped && !t.fired && !t.at.After(target) {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			s.now = target
			s.mu.Unlock()
			return
		}
		sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
		next := due[0]
		next.fired = true
		s.now = next.at
		s.mu.Unlock()

		next.f()
	}
}

type recorder struct {
	mu       sync.Mutex
	states   []State
	logouts  int
	expired  int
	refreshes int
}

func (r *recorder) config(s *manualScheduler, refreshErr error) Config {
	return Config{
		Timeout:   time.Minute,
		Warning:   30 * time.Second,
		Scheduler: s,
		Now:       s.Now,
		Refresh: func(context.Context) error {
			r.mu.Lock()
			r.refreshes++
			r.mu.Unlock()
			return refreshErr
		},
		Logout: func(context.Context) error {
			r.mu.Lock()
			r.logouts++
			r.mu.Unlock()
			return nil
		},
		OnExpired: func() {
			r.mu.Lock()
			r.expired++
			r.mu.Unlock()
		},
		OnStateChange: func(st State) {
			r.mu.Lock()
			r.states = append(r.states, st)
			r.mu.Unlock()
		},
	}
}

func TestTransition(t *testing.T) {
	tests := []struct {
		from State
		in   Input
		want State
	}{
		{Active, InputActivity, Active},
		{Active, InputWarningElapsed, Warning},
		{Active, InputExpiryElapsed, Expired},
		{Warning, InputActivity, Active},
		{Warning, InputRefreshOK, Active},
		{Warning, InputRefreshFailed, Expired},
		{Warning, InputExpiryElapsed, Expired},
		{Expired, InputActivity, Expired},
		{Expired, InputRefreshOK, Expired},
		{Expired, InputWarningElapsed, Expired},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"/"+tt.in.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Transition(tt.from, tt.in))
		})
	}
}

func TestNewMonitor_Defaults(t *testing.T) {
	m := NewMonitor(Config{})
	assert.Equal(t, time.Minute, m.Timeout())
	assert.Equal(t, 30*time.Second, m.WarningLead())

	m = NewMonitor(Config{Timeout: 4 * time.Minute, Warning: 4 * time.Minute})
	assert.Equal(t, 2*time.Minute, m.WarningLead())
}

func TestMonitor_WarningThenExpiry(t *testing.T) {
	s := newManualScheduler()
	r := &recorder{}
	m := NewMonitor(r.config(s, nil))
	m.Start()

	s.Advance(29 * time.Second)
	assert.Equal(t, Active, m.State())

	s.Advance(time.Second)
	assert.Equal(t, Warning, m.State())
	assert.Equal(t, 30, m.CountdownSeconds())

	s.Advance(10*time.Second + 500*time.Millisecond)
	assert.Equal(t, 20, m.CountdownSeconds())

	s.Advance(20 * time.Second)
	assert.Equal(t, Expired, m.State())
	assert.Equal(t, 0, m.CountdownSeconds())
	assert.Equal(t, 1, r.logouts)
	assert.Equal(t, 1, r.expired)
	assert.Equal(t, []State{Warning, Expired}, r.states)
	assert.Zero(t, s.pending())
}

func TestMonitor_ActivityRearms(t *testing.T) {
	s := newManualScheduler()
	r := &recorder{}
	m := NewMonitor(r.config(s, nil))
	m.Start()

	s.Advance(25 * time.Second)
	assert.True(t, m.Activity(Activity{Kind: "keydown"}))

	s.Advance(29 * time.Second)
	assert.Equal(t, Active, m.State())
	assert.Equal(t, 2, s.pending())

	s.Advance(time.Second)
	assert.Equal(t, Warning, m.State())
}

func TestMonitor_ActivityDuringWarning(t *testing.T) {
	s := newManualScheduler()
	r := &recorder{}
	m := NewMonitor(r.config(s, nil))
	m.Start()

	s.Advance(35 * time.Second)
	require.Equal(t, Warning, m.State())

	assert.True(t, m.Activity(Activity{Kind: "click"}))
	assert.Equal(t, Active, m.State())
	assert.Equal(t, 60, m.CountdownSeconds())

	s.Advance(59 * time.Second)
	assert.NotEqual(t, Expired, m.State())
	assert.Zero(t, r.logouts)
}

func TestMonitor_WarningUIIsNotActivity(t *testing.T) {
	s := newManualScheduler()
	r := &recorder{}
	m := NewMonitor(r.config(s, nil))
	m.Start()

	s.Advance(31 * time.Second)
	assert.False(t, m.Activity(Activity{Kind: "click", FromWarningUI: true}))
	assert.Equal(t, Warning, m.State())

	s.Advance(29 * time.Second)
	assert.Equal(t, Expired, m.State())
}

func TestMonitor_Throttle(t *testing.T) {
	s := newManualScheduler()
	m := NewMonitor((&recorder{}).config(s, nil))
	m.Start()

	assert.True(t, m.Activity(Activity{Kind: "mousemove"}))
	s.Advance(50 * time.Millisecond)
	assert.False(t, m.Activity(Activity{Kind: "scroll"}))
	assert.True(t, m.Activity(Activity{Kind: "keydown"}), "discrete events are never throttled")

	s.Advance(50 * time.Millisecond)
	assert.True(t, m.Activity(Activity{Kind: "wheel"}))
}

func TestMonitor_StayLoggedIn(t *testing.T) {
	s := newManualScheduler()
	r := &recorder{}
	m := NewMonitor(r.config(s, nil))
	m.Start()

	s.Advance(40 * time.Second)
	require.Equal(t, Warning, m.State())

	require.NoError(t, m.StayLoggedIn(context.Background()))
	assert.Equal(t, Active, m.State())
	assert.Equal(t, 1, r.refreshes)

	s.Advance(59 * time.Second)
	assert.NotEqual(t, Expired, m.State())
	assert.Zero(t, r.logouts)
}

func TestMonitor_StayLoggedInFailureExpires(t *testing.T) {
	s := newManualScheduler()
	r := &recorder{}
	boom := errors.New("401")
	m := NewMonitor(r.config(s, boom))
	m.Start()

	s.Advance(40 * time.Second)
	assert.ErrorIs(t, m.StayLoggedIn(context.Background()), boom)
	assert.Equal(t, Expired, m.State())
	assert.Equal(t, 1, r.logouts)
	assert.Equal(t, 1, r.expired)

	assert.ErrorIs(t, m.StayLoggedIn(context.Background()), ErrExpired)
	assert.Equal(t, 1, r.refreshes)
}

func TestMonitor_ExpiredIsTerminal(t *testing.T) {
	s := newManualScheduler()
	r := &recorder{}
	m := NewMonitor(r.config(s, nil))
	m.Start()

	s.Advance(time.Minute)
	require.Equal(t, Expired, m.State())

	assert.False(t, m.Activity(Activity{Kind: "keydown"}))
	s.Advance(time.Hour)
	assert.Equal(t, Expired, m.State())
	assert.Equal(t, 1, r.logouts)
}

func TestMonitor_Stop(t *testing.T) {
	s := newManualScheduler()
	r := &recorder{}
	m := NewMonitor(r.config(s, nil))
	m.Start()
	m.Stop()

	s.Advance(2 * time.Minute)
	assert.Equal(t, Active, m.State())
	assert.Zero(t, r.logouts)
}
