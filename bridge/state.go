package bridge

import "fmt"

// State is a session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateActive
	StateEnding
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateEnding:
		return "ending"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// canTransition encodes the lifecycle: idle -> connecting -> active -> ending -> closed,
// with connecting allowed to jump straight to ending.
func canTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateConnecting
	case StateConnecting:
		return to == StateActive || to == StateEnding
	case StateActive:
		return to == StateEnding
	case StateEnding:
		return to == StateClosed
	default:
		return false
	}
}
