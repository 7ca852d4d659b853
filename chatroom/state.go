package chatroom

// ConnectionState represents the current state of the WebSocket connection.
type ConnectionState int

const (
	// StateIdle means Connect has not been called yet.
	StateIdle ConnectionState = iota

	// StateConnecting means a dial is in flight.
	StateConnecting

	// StateOpen means frames can be sent.
	StateOpen

	// StateClosed means the connection ended; see Session.CloseStatus.
	StateClosed

	// StateReconnecting means a reconnection attempt is scheduled.
	StateReconnecting
)

// String returns the string representation of a ConnectionState.
func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// StateEvent represents a state change event.
type StateEvent struct {
	OldState ConnectionState
	NewState ConnectionState
	Error    error // Optional error that caused the state change
}

// RoomState is the lifecycle of a Room controller.
type RoomState int

const (
	RoomUninitialized RoomState = iota
	RoomJoining
	RoomActive
	RoomDisconnected
	// RoomLeft is terminal. Nothing is processed after it.
	RoomLeft
)

func (s RoomState) String() string {
	switch s {
	case RoomUninitialized:
		return "uninitialized"
	case RoomJoining:
		return "joining"
	case RoomActive:
		return "active"
	case RoomDisconnected:
		return "disconnected"
	case RoomLeft:
		return "left"
	default:
		return "unknown"
	}
}

// RoomStateEvent reports a controller transition.
type RoomStateEvent struct {
	OldState RoomState
	NewState RoomState
}
