package session

// State is a step in the connection lifecycle.
type State int

const (
	StateIdle State = iota
	StateAwaitingLocalOpen
	StateWaitingForPeer
	StateDialing
	StateKeyExchange
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingLocalOpen:
		return "awaiting-local-open"
	case StateWaitingForPeer:
		return "waiting-for-peer"
	case StateDialing:
		return "dialing"
	case StateKeyExchange:
		return "key-exchange"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// connected reports whether a channel is expected to exist in s.
func (s State) connected() bool {
	return s == StateDialing || s == StateKeyExchange || s == StateActive
}
