package poller

import (
	"errors"
	"fmt"
)

// ErrEmptyStatus is recorded when the status client returns neither a status nor an error.
var ErrEmptyStatus = errors.New("empty status response")

// RemoteFailureError is returned when the remote service reports the job as failed.
type RemoteFailureError struct {
	JobID  string
	Detail string
}

func (e *RemoteFailureError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("remote failure for job %s", e.JobID)
	}
	return fmt.Sprintf("remote failure for job %s: %s", e.JobID, e.Detail)
}

// TimeoutError is returned when the maximum number of polls was reached without a terminal status.
type TimeoutError struct {
	JobID     string
	Attempts  int
	LastState RemoteState
	LastErr   error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("poll timeout for job %s after %d poll(s)", e.JobID, e.Attempts)
	if e.LastState != "" {
		msg += fmt.Sprintf(" (last status %s)", e.LastState)
	}
	if e.LastErr != nil {
		msg += fmt.Sprintf(": %v", e.LastErr)
	}
	return msg
}

func (e *TimeoutError) Unwrap() error {
	return e.LastErr
}
