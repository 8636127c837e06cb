package lifecycle

// State is the phase of the current generation.
type State string

const (
	StateIdle            State = "idle"
	StateServiceStarting State = "service_starting"
	StateServiceReady    State = "service_ready"
	StateClientStarting  State = "client_starting"
	StateClientReady     State = "client_ready"
	StateRestarting      State = "restarting"
	StateFailed          State = "failed"
)

// AllStates returns every state in lifecycle order.
func AllStates() []State {
	return []State{
		StateIdle,
		StateServiceStarting,
		StateServiceReady,
		StateClientStarting,
		StateClientReady,
		StateRestarting,
		StateFailed,
	}
}

// stateNames is AllStates as strings, for metrics.
func stateNames() []string {
	states := AllStates()
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = string(s)
	}
	return names
}

// IsValid reports whether s is a known state.
func (s State) IsValid() bool {
	for _, known := range AllStates() {
		if s == known {
			return true
		}
	}
	return false
}

// Settled reports whether a generation in state s has finished starting,
// successfully or not.
func (s State) Settled() bool {
	return s == StateIdle || s == StateClientReady || s == StateFailed
}

// Label is a short human-readable description of s.
func (s State) Label() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateServiceStarting:
		return "Starting language service"
	case StateServiceReady:
		return "Language service ready"
	case StateClientStarting:
		return "Starting language client"
	case StateClientReady:
		return "Ready"
	case StateRestarting:
		return "Restarting"
	case StateFailed:
		return "Failed"
	default:
		return string(s)
	}
}

func (s State) String() string { return string(s) }
