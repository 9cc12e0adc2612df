package connection

// State is the lifecycle state of the connection.
type State int32

const (
	// StateUninitialized is the state before the pre-flight check.
	StateUninitialized State = iota
	// StateChecked means the toolchain exists and a start is allowed.
	StateChecked
	// StateUnavailable means the toolchain is missing. It is absorbing.
	StateUnavailable
	// StateStarting means a connection attempt is in progress.
	StateStarting
	// StateRunning means the connection is established.
	StateRunning
	// StateStopping means the connection is being closed.
	StateStopping
	// StateStopped means the connection was closed on request.
	StateStopped
	// StateFailed means the connection could not be established or was lost.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateChecked:
		return "checked"
	case StateUnavailable:
		return "unavailable"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// canStart reports whether Start may begin a new attempt from s.
func (s State) canStart() bool {
	return s == StateChecked || s == StateStopped || s == StateFailed
}
