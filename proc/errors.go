package proc

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyStarted is returned by Start when the supervisor already
	// owns a running process or connection.
	ErrAlreadyStarted = errors.New("proc: already started")

	// ErrNoTarget is returned by New when neither a CLI path nor a URL is
	// configured.
	ErrNoTarget = errors.New("proc: no CLI path or URL configured")

	// ErrConflictingTarget is returned by New when a URL is combined with
	// spawn options it makes meaningless.
	ErrConflictingTarget = errors.New("proc: CLI URL cannot be combined with a CLI path or stdio transport")
)

// ProcessError wraps a failure to spawn, connect to, or tear down the CLI
// server process.
type ProcessError struct {
	Cause   error
	Message string
}

func (e *ProcessError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ProcessError) Unwrap() error {
	return e.Cause
}
