package controller

// State is the lifecycle state of the indexing controller.
type State int

const (
	// StateIdle means no session is active and a start request is accepted.
	StateIdle State = iota
	// StateScanning means traversal is enumerating candidates; the
	// discovered count is not yet authoritative.
	StateScanning
	// StateRunning means discovery finished and candidates are being
	// extracted and written.
	StateRunning
	// StatePaused means workers stopped pulling new work; in-flight items
	// finish cleanly.
	StatePaused
	// StateCancelled means the session was cancelled after draining
	// in-flight work. Terminal.
	StateCancelled
	// StateComplete means all discovered candidates were processed and the
	// final commit was issued. Terminal.
	StateComplete
	// StateError means an unrecoverable condition ended the session.
	// Committed documents are retained. Terminal.
	StateError
)

// String returns the state name used in progress payloads and the catalog.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateCancelled:
		return "cancelled"
	case StateComplete:
		return "complete"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state ends a session.
func (s State) Terminal() bool {
	return s == StateCancelled || s == StateComplete || s == StateError
}

// active reports whether a session is in progress.
func (s State) active() bool {
	return s == StateScanning || s == StateRunning || s == StatePaused
}
