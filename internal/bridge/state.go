package bridge

// State is the connection state exposed to consumers.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// StateEvent describes one state transition. Host is set only when New is
// StateConnected; Err only when New is StateError. Generation identifies
// the connection attempt the transition belongs to.
type StateEvent struct {
	Old        State
	New        State
	Err        error
	Host       *HostClient
	Generation uint64
}
