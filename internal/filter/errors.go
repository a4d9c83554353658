package filter

import (
	"errors"
	"fmt"
)

// ErrFilterPanic marks faults recovered from a panicking accessor or selector.
var ErrFilterPanic = errors.New("filter evaluation panicked")

// EvaluationFault reports that an event accessor or content selector failed
// while a filter was being evaluated. Dispatchers treat it as a non-match.
type EvaluationFault struct {
	// Stage is the evaluation step that failed: "author", "group", "channel",
	// "guild", "mentions", "content" or "filter" for recovered panics.
	Stage string

	// EventID identifies the event being evaluated.
	EventID string

	Err error
}

func (f *EvaluationFault) Error() string {
	return fmt.Sprintf("filter %s evaluation failed for event %s: %v", f.Stage, f.EventID, f.Err)
}

func (f *EvaluationFault) Unwrap() error {
	return f.Err
}
