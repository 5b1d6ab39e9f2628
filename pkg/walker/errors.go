package walker

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRun is returned when Run is called more than once on a Walker.
	ErrAlreadyRun = errors.New("walker: already run")

	// ErrCursorNotAdvancing is returned when a listing returns the same
	// cursor it was given, which would otherwise loop forever.
	ErrCursorNotAdvancing = errors.New("walker: listing cursor did not advance")
)

// SinkError reports that the result sink rejected objects. It aborts the walk.
type SinkError struct {
	Prefix string
	Err    error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("walker: sink rejected objects from %q: %v", e.Prefix, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}
