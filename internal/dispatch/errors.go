package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrNilHandler is returned when a listener is registered without a handler.
	ErrNilHandler = errors.New("listener handler is nil")

	// ErrRegistryFrozen is returned when the registry is mutated after Freeze.
	ErrRegistryFrozen = errors.New("registry is frozen")

	// ErrHandlerPanic marks failures recovered from a panicking handler.
	ErrHandlerPanic = errors.New("listener handler panicked")
)

// RegistryStateError reports an operation that is invalid in the registry's
// current state.
type RegistryStateError struct {
	Op  string
	Err error
}

func (e *RegistryStateError) Error() string {
	return fmt.Sprintf("registry %s: %v", e.Op, e.Err)
}

func (e *RegistryStateError) Unwrap() error {
	return e.Err
}

// HandlerError wraps an error returned (or panic raised) by a listener handler.
type HandlerError struct {
	Listener string
	Handle   ListenerHandle
	Err      error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("listener %s (#%d): %v", e.Listener, e.Handle, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
