package models

import "time"

// ChangeOp classifies a file-system change notification.
type ChangeOp int

const (
	OpCreated ChangeOp = iota
	OpModified
	OpRemoved
	OpRenamed
)

// String returns the operation name.
func (op ChangeOp) String() string {
	switch op {
	case OpCreated:
		return "created"
	case OpModified:
		return "modified"
	case OpRemoved:
		return "removed"
	case OpRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// ChangeEvent is a normalized file-system change. OldPath is set only for
// renames the watcher managed to correlate; an uncorrelated rename arrives
// as a Removed+Created pair instead, which yields the same end state.
type ChangeEvent struct {
	Op      ChangeOp
	Path    string
	OldPath string
	At      time.Time
}
