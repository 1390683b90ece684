package agentlink

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyStarted is returned when Start is called on a started client.
	ErrAlreadyStarted = errors.New("client already started")

	// ErrNotStarted is returned when an operation requires a started client
	// with a verified protocol version.
	ErrNotStarted = errors.New("client not started")

	// ErrSessionDestroyed is returned by session operations after Destroy
	// has confirmed.
	ErrSessionDestroyed = errors.New("session destroyed")

	// ErrConflictingTarget is returned by NewClient when a CLI URL is
	// combined with spawn options.
	ErrConflictingTarget = errors.New("CLI URL cannot be combined with a CLI path, port or stdio transport")
)

// errNoUserInputHandler is surfaced to the server when it asks for user
// input and no handler is registered.
var errNoUserInputHandler = errors.New("no user input handler registered")

// panicError carries a recovered panic value as an error.
type panicError struct {
	value interface{}
}

func (e *panicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", e.value)
}
