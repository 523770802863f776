package diarize

import "fmt"

// Error is a per-job reconstruction failure. It never aborts a batch.
type Error struct {
	Path    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("reconstruct %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("reconstruct %s: %s", e.Path, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
