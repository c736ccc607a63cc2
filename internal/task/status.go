package task

// Status is the lifecycle state of a task. Transitions move forward
// (pending -> completed -> verified) with one explicit exception: a parent
// may return a completed task to pending with feedback attached.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusVerified  Status = "verified"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusVerified:
		return true
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool { return s == StatusVerified }

// CanTransition reports whether a task may move from s to next.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusCompleted
	case StatusCompleted:
		// Forward to verified, or the reject path back to pending.
		return next == StatusVerified || next == StatusPending
	}
	return false
}
