package pipeline

import (
	"errors"
	"fmt"
)

// ErrNoSources is returned when a run is started without any source.
var ErrNoSources = errors.New("no sources to process")

// StageError records which stage of which job failed.
type StageError struct {
	Stage Stage
	Key   string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Key, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// PersistError wraps a failure to save the index. It aborts the run.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("failed to persist index: %v", e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
