package session

// State tracks a call session through its lifecycle. The happy path is
// Created → Handshaking → Active → Terminating → Closed; a failure sends
// any non-terminal state to Failed, which still drains to Closed so every
// session ends in exactly one terminal state.
type State int32

const (
	StateCreated State = iota
	StateHandshaking
	StateActive
	StateTerminating
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateHandshaking:
		return "handshaking"
	case StateActive:
		return "active"
	case StateTerminating:
		return "terminating"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// validTransition reports whether from → to is a legal lifecycle step.
func validTransition(from, to State) bool {
	if from == to {
		return false
	}
	switch to {
	case StateHandshaking:
		return from == StateCreated
	case StateActive:
		return from == StateHandshaking
	case StateTerminating:
		return from == StateCreated || from == StateHandshaking || from == StateActive
	case StateFailed:
		return from != StateClosed && from != StateFailed
	case StateClosed:
		return from == StateTerminating || from == StateFailed
	default:
		return false
	}
}
