package idle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/existflow/sitegate/internal/logger"
)

const (
	DefaultTimeout = time.Minute
	DefaultWarning = 30 * time.Second

	// ThrottleInterval bounds how often high-frequency activity counts
	ThrottleInterval = 100 * time.Millisecond
)

// ErrExpired is returned by StayLoggedIn once the session is gone
var ErrExpired = errors.New("session expired")

var highFrequencyKinds = map[string]bool{
	"mousemove":   true,
	"scroll":      true,
	"touchmove":   true,
	"pointermove": true,
	"wheel":       true,
}

// Activity is one user interaction
type Activity struct {
	Kind string
	// FromWarningUI marks interaction with the warning itself, which never
	// counts as activity.
	FromWarningUI bool
}

// Config wires a Monitor to its environment
type Config struct {
	Timeout time.Duration // T
	Warning time.Duration // W, must be below T

	// Refresh extends the server session ("stay logged in")
	Refresh func(ctx context.Context) error
	// Logout ends the server session; called once on expiry
	Logout func(ctx context.Context) error
	// OnExpired runs after Logout, e.g. to send the user to the login page
	OnExpired func()
	// OnStateChange observes every state change
	OnStateChange func(State)

	Scheduler Scheduler
	Now       func() time.Time
}

// Monitor owns the inactivity state and its two timers
type Monitor struct {
	mu  sync.Mutex
	cfg Config

	state        State
	lastActivity time.Time
	lastThrottle time.Time
	deadline     time.Time

	warningTimer Timer
	expireTimer  Timer
	generation   uint64
	started      bool
}

// NewMonitor applies defaults to cfg. Call Start to arm the timers.
func NewMonitor(cfg Config) *Monitor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Warning <= 0 {
		cfg.Warning = DefaultWarning
	}
	if cfg.Warning >= cfg.Timeout {
		cfg.Warning = cfg.Timeout / 2
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = RealScheduler
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Monitor{cfg: cfg, state: Active}
}

// Timeout returns the effective T
func (m *Monitor) Timeout() time.Duration {
	return m.cfg.Timeout
}

// WarningLead returns the effective W
func (m *Monitor) WarningLead() time.Duration {
	return m.cfg.Warning
}

// Start arms the timers as if activity happened now
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.started || m.state == Expired {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.lastActivity = m.cfg.Now()
	m.armLocked()
	m.mu.Unlock()
}

// Stop cancels the timers without logging out
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimersLocked()
	m.generation++
}

// State returns the current state
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Remaining is the time left before expiry, zero once expired
func (m *Monitor) Remaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Expired || m.deadline.IsZero() {
		return 0
	}
	if d := m.deadline.Sub(m.cfg.Now()); d > 0 {
		return d
	}
	return 0
}

// CountdownSeconds is Remaining in whole seconds, rounded up
func (m *Monitor) CountdownSeconds() int {
	d := m.Remaining()
	return int((d + time.Second - 1) / time.Second)
}

// Activity reports user interaction. It returns true when it counted.
func (m *Monitor) Activity(a Activity) bool {
	if a.FromWarningUI {
		return false
	}

	m.mu.Lock()
	if m.state == Expired {
		m.mu.Unlock()
		return false
	}

	now := m.cfg.Now()
	if highFrequencyKinds[a.Kind] {
		if !m.lastThrottle.IsZero() && now.Sub(m.lastThrottle) < ThrottleInterval {
			m.mu.Unlock()
			return false
		}
		m.lastThrottle = now
	}

	changed := m.applyLocked(InputActivity)
	m.lastActivity = now
	m.armLocked()
	m.mu.Unlock()

	m.notify(changed)
	return true
}

// StayLoggedIn refreshes the server session. On failure the monitor
// expires and logs out.
func (m *Monitor) StayLoggedIn(ctx context.Context) error {
	m.mu.Lock()
	if m.state == Expired {
		m.mu.Unlock()
		return ErrExpired
	}
	m.mu.Unlock()

	var err error
	if m.cfg.Refresh != nil {
		err = m.cfg.Refresh(ctx)
	}

	if err != nil {
		logger.Warn("Session refresh failed", logger.F("error", err))
		m.expire(InputRefreshFailed)
		return err
	}

	m.mu.Lock()
	if m.state == Expired {
		m.mu.Unlock()
		return ErrExpired
	}
	changed := m.applyLocked(InputRefreshOK)
	m.lastActivity = m.cfg.Now()
	m.armLocked()
	m.mu.Unlock()

	m.notify(changed)
	return nil
}

func (m *Monitor) armLocked() {
	m.stopTimersLocked()
	m.generation++
	gen := m.generation

	m.deadline = m.lastActivity.Add(m.cfg.Timeout)

	m.warningTimer = m.cfg.Scheduler.AfterFunc(m.cfg.Timeout-m.cfg.Warning, func() {
		m.onWarning(gen)
	})
	m.expireTimer = m.cfg.Scheduler.AfterFunc(m.cfg.Timeout, func() {
		m.onExpiry(gen)
	})
}

func (m *Monitor) stopTimersLocked() {
	if m.warningTimer != nil {
		m.warningTimer.Stop()
		m.warningTimer = nil
	}
	if m.expireTimer != nil {
		m.expireTimer.Stop()
		m.expireTimer = nil
	}
}

// applyLocked runs Transition and reports whether the state changed
func (m *Monitor) applyLocked(in Input) bool {
	next := Transition(m.state, in)
	if next == m.state {
		return false
	}
	logger.Debug("Inactivity state change",
		logger.F("from", m.state.String()),
		logger.F("to", next.String()),
		logger.F("input", in.String()))
	m.state = next
	return true
}

func (m *Monitor) onWarning(gen uint64) {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}
	changed := m.applyLocked(InputWarningElapsed)
	m.mu.Unlock()

	m.notify(changed)
}

func (m *Monitor) onExpiry(gen uint64) {
	m.mu.Lock()
	stale := gen != m.generation
	m.mu.Unlock()
	if stale {
		return
	}
	m.expire(InputExpiryElapsed)
}

// expire moves to Expired once, then logs out and runs the hook
func (m *Monitor) expire(in Input) {
	m.mu.Lock()
	if m.state == Expired {
		m.mu.Unlock()
		return
	}
	m.applyLocked(in)
	m.stopTimersLocked()
	m.generation++
	m.mu.Unlock()

	m.notify(true)

	if m.cfg.Logout != nil {
		if err := m.cfg.Logout(context.Background()); err != nil {
			logger.Warn("Logout after inactivity failed", logger.F("error", err))
		}
	}
	if m.cfg.OnExpired != nil {
		m.cfg.OnExpired()
	}
}

func (m *Monitor) notify(changed bool) {
	if changed && m.cfg.OnStateChange != nil {
		m.cfg.OnStateChange(m.State())
	}
}
