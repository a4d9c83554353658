package keyword

import (
	"errors"
	"fmt"
)

// Sentinel errors for pattern compilation.
var (
	// ErrUnterminatedParam is returned when a "{{" block is never closed.
	ErrUnterminatedParam = errors.New("unterminated dynamic parameter")

	// ErrInvalidParamName is returned for empty or non-identifier parameter names.
	ErrInvalidParamName = errors.New("invalid parameter name")

	// ErrDuplicateParam is returned when a parameter name occurs twice in one pattern.
	ErrDuplicateParam = errors.New("duplicate parameter name")

	// ErrInvalidPattern is returned when the generated expression does not compile.
	ErrInvalidPattern = errors.New("invalid pattern")
)

// CompileError describes why a keyword pattern could not be compiled.
type CompileError struct {
	// Pattern is the source pattern.
	Pattern string

	// Offset is the byte offset of the offending token, or -1 if unknown.
	Offset int

	// Err is one of the sentinel errors above, possibly wrapping a regexp error.
	Err error
}

func (e *CompileError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("compile keyword %q at offset %d: %v", e.Pattern, e.Offset, e.Err)
	}
	return fmt.Sprintf("compile keyword %q: %v", e.Pattern, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}
