package taskflow

import "errors"

var (
	// ErrNotFound indicates the task id did not resolve.
	ErrNotFound = errors.New("task does not exist")
	// ErrNotAssigned indicates the user is not a recipient of the task.
	ErrNotAssigned = errors.New("user is not assigned to this task")
	// ErrInvalidTransition indicates the recipient's current status does not
	// allow the requested move.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidAction indicates an unknown review action.
	ErrInvalidAction = errors.New("unknown status action")
	// ErrInvalidPage indicates a non-positive page size or negative index.
	ErrInvalidPage = errors.New("invalid pagination size or index")
	// ErrPageOutOfBounds indicates a page index beyond the final page.
	ErrPageOutOfBounds = errors.New("pagination index out of bounds")
)
