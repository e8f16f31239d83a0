package scheduler

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotRunning      = errors.New("scheduler not running")
	ErrWorkerPanic     = errors.New("task panicked")
	ErrStopTimeout     = errors.New("scheduler stop timed out")
)

// PanicError is the error recorded for a run whose work panicked.
// It matches ErrWorkerPanic with errors.Is.
type PanicError struct {
	Task  TaskID
	Name  string
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task %s (%s) panicked: %v", e.Task, e.Name, e.Value)
}

func (e *PanicError) Unwrap() error { return ErrWorkerPanic }
