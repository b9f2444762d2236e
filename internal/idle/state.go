// Package idle tracks user inactivity for a gated session: it warns before
// the session lapses, offers a refresh, and logs out when time runs out.
package idle

// State of the inactivity monitor
type State int

const (
	Active State = iota
	Warning
	Expired
)

func (s State) String() string {
	switch s {
	case Active:
		return "ACTIVE"
	case Warning:
		return "WARNING"
	case Expired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// Input drives a state transition
type Input int

const (
	// InputActivity is qualifying user activity (already filtered and throttled)
	InputActivity Input = iota
	// InputWarningElapsed fires at T-W without activity
	InputWarningElapsed
	// InputExpiryElapsed fires at T without activity
	InputExpiryElapsed
	// InputRefreshOK is a successful "stay logged in"
	InputRefreshOK
	// InputRefreshFailed is a failed "stay logged in"
	InputRefreshFailed
)

func (i Input) String() string {
	switch i {
	case InputActivity:
		return "activity"
	case InputWarningElapsed:
		return "warning_elapsed"
	case InputExpiryElapsed:
		return "expiry_elapsed"
	case InputRefreshOK:
		return "refresh_ok"
	case InputRefreshFailed:
		return "refresh_failed"
	default:
		return "unknown"
	}
}

// Transition is the pure state machine. Expired is terminal.
func Transition(s State, in Input) State {
	if s == Expired {
		return Expired
	}

	switch in {
	case InputActivity, InputRefreshOK:
		return Active
	case InputWarningElapsed:
		return Warning
	case InputExpiryElapsed, InputRefreshFailed:
		return Expired
	default:
		return s
	}
}
