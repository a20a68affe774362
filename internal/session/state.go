package session

import "fmt"

// State is the lifecycle state of the broker session.
type State int

// Session states.
//
// Transitions:
//
//	Disconnected → Connecting   Start
//	Connecting   → Connected    broker ack, after subscription replay
//	Connecting   → Failed       dial error or connect timeout
//	Failed       → Connecting   retry per RetryPolicy
//	Connected    → Disconnected Stop, or connection lost (then → Connecting)
const (
	Disconnected State = iota
	Connecting
	Connected
	Failed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name, so JSON documents carry "connected"
// rather than a number.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{Disconnected, Connecting, Connected, Failed} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("session: unknown state %q", text)
}
