package bridge

import (
	"errors"

	"github.com/ezrec/nesbridge/translate"
)

var f = translate.From

var (
	// Submission errors
	ErrQueueFull = errors.New(f("command queue full"))
	ErrCancelled = errors.New(f("command cancelled before execution"))
	ErrTimeout   = errors.New(f("command result timeout"))

	// Execution errors
	ErrEngineUnavailable = errors.New(f("no rom loaded"))
	ErrInvalidArgument   = errors.New(f("invalid argument"))
	ErrUnsafe            = errors.New(f("target region not writable"))
)

// ErrExecution wraps an unexpected failure inside a command's Execute,
// recording which command failed.
type ErrExecution struct {
	Command string
	Err     error
}

func (err *ErrExecution) Error() string {
	return f("command %v failed: %v", err.Command, err.Err)
}

func (err *ErrExecution) Unwrap() error {
	return err.Err
}
