package media

import (
	"errors"
	"fmt"
)

// ErrOutputNotFound is returned when the downloader exits without leaving an audio file behind.
var ErrOutputNotFound = errors.New("downloaded audio not found")

// CommandError represents a failed external command.
type CommandError struct {
	Message   string
	LogOutput string
	Cause     error
}

func (e *CommandError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CommandError) Unwrap() error {
	return e.Cause
}
