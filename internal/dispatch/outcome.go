package dispatch

import (
	"context"
	"fmt"
	"time"

	"chatrouter/internal/domain"
)

// Status is the result of offering an event to one listener.
type Status int

const (
	// StatusSkipped means the listener's filters did not match.
	StatusSkipped Status = iota
	// StatusFaulted means filter evaluation failed; the listener was treated as not matching.
	StatusFaulted
	// StatusSucceeded means the handler ran and returned nil.
	StatusSucceeded
	// StatusFailed means the handler returned an error, panicked, or was not
	// started because the context was done.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSkipped:
		return "skipped"
	case StatusFaulted:
		return "faulted"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Matched reports whether the listener's filters accepted the event.
func (s Status) Matched() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Outcome records what happened to one listener during a dispatch cycle.
type Outcome struct {
	Listener *Listener
	Status   Status
	// Err is the *filter.EvaluationFault for StatusFaulted, the *HandlerError
	// or context error for StatusFailed, and nil otherwise.
	Err error
	// Duration is the handler run time; zero when the handler did not run.
	Duration time.Duration
}

// Cycle summarizes one dispatch of an event to every listener.
type Cycle struct {
	ID       string
	Event    domain.Event
	Started  time.Time
	Duration time.Duration
	Outcomes []Outcome
}

// Counts tallies outcomes by status.
func (c Cycle) Counts() map[Status]int {
	counts := make(map[Status]int, 4)
	for _, o := range c.Outcomes {
		counts[o.Status]++
	}
	return counts
}

// Observer is notified after every dispatch cycle. Observers run on the
// dispatching goroutine and must not retain the outcomes slice.
type Observer interface {
	ObserveCycle(ctx context.Context, c Cycle)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, c Cycle)

func (f ObserverFunc) ObserveCycle(ctx context.Context, c Cycle) {
	f(ctx, c)
}
