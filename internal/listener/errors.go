package listener

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownAction = errors.New("unknown action type")
	ErrNotReplier    = errors.New("event does not support replies")
)

// DeclarationError reports a declaration that could not be loaded or compiled.
type DeclarationError struct {
	Source   string
	Listener string
	Err      error
}

func (e *DeclarationError) Error() string {
	if e.Listener == "" {
		return fmt.Sprintf("%s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("%s: listener %q: %v", e.Source, e.Listener, e.Err)
}

func (e *DeclarationError) Unwrap() error {
	return e.Err
}
