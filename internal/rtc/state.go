package rtc

import "fmt"

// State is the explicit per-peer connection state:
// new -> negotiating -> connected -> {disconnected, failed}.
type State int

const (
	StateNew State = iota
	StateNegotiating
	StateConnected
	StateDisconnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the state ends the connection's lifecycle.
func (s State) Terminal() bool {
	return s == StateDisconnected || s == StateFailed
}

// Transition returns the next state or an error when the move is not a legal
// lifecycle step. Invalid transitions are rejected instead of silently
// overwriting state.
func (s State) Transition(to State) (State, error) {
	ok := false
	switch s {
	case StateNew:
		ok = to == StateNegotiating
	case StateNegotiating:
		ok = to == StateConnected || to == StateDisconnected || to == StateFailed
	case StateConnected:
		ok = to == StateDisconnected || to == StateFailed
	}
	if !ok {
		return s, fmt.Errorf("invalid peer state transition %s -> %s", s, to)
	}
	return to, nil
}
