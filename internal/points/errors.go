package points

import "errors"

var (
	// ErrTaskNotFound is returned when the task does not exist or is not
	// visible to the caller.
	ErrTaskNotFound = errors.New("task not found")

	// ErrRewardNotFound is returned when the reward does not exist or belongs
	// to a different family.
	ErrRewardNotFound = errors.New("reward not found")

	// ErrChildNotFound is returned when an assignee's profile or roster
	// mirror cannot be located. The whole operation is rolled back; no
	// assignee is silently skipped.
	ErrChildNotFound = errors.New("child profile not found")

	// ErrStateConflict is returned when the task is not in the status the
	// operation requires. First writer wins; the loser sees this error and
	// nothing is changed.
	ErrStateConflict = errors.New("task state changed")

	// ErrNotAssignee is returned when a child submits a task they are not
	// assigned to.
	ErrNotAssignee = errors.New("caller is not an assignee of this task")

	// ErrNotOwner is returned when a parent operates on a task they do not own.
	ErrNotOwner = errors.New("caller does not own this task")

	// ErrInsufficientPoints is returned when a redemption costs more than the
	// child's current balance. Nothing is written.
	ErrInsufficientPoints = errors.New("insufficient points")
)
