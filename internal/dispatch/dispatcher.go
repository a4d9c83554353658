// Package dispatch offers events to registered listeners in priority order.
//
// A Registry is filled while building and frozen before the first dispatch;
// the Dispatcher then evaluates each listener's filters against the event and
// runs the handlers of those that match. A failing or panicking handler only
// affects its own Outcome.
//
// Cancellation is cooperative: once the context is done, handlers that have
// not started are reported as failed with the context error, while handlers
// already running are not interrupted.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"chatrouter/internal/domain"
)

// Dispatcher routes events through a Registry. It is safe for concurrent use;
// independent cycles share no mutable state.
type Dispatcher struct {
	registry    *Registry
	logger      *slog.Logger
	parallelism int
	observers   []Observer
}

// New creates a dispatcher over registry.
func New(registry *Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry:    registry,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		parallelism: 1,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch offers ev to every listener and returns one Outcome per listener
// in dispatch order. The registry is frozen on first use.
func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.Event) []Outcome {
	listeners := d.registry.ordered()
	cycle := Cycle{
		ID:       uuid.NewString(),
		Event:    ev,
		Started:  time.Now(),
		Outcomes: make([]Outcome, len(listeners)),
	}
	ctx = context.WithValue(ctx, cycleCtxKey{}, cycle.ID)

	matched := make([]int, 0, len(listeners))
	for i, l := range listeners {
		view := l.clone()
		cycle.Outcomes[i].Listener = view
		ok, err := l.Filters.Evaluate(ctx, ev)
		switch {
		case err != nil:
			cycle.Outcomes[i].Status = StatusFaulted
			cycle.Outcomes[i].Err = err
			d.logger.Warn("filter evaluation fault",
				"listener", l.Name, "event", ev.ID(), "cycle", cycle.ID, "err", err)
		case !ok:
			cycle.Outcomes[i].Status = StatusSkipped
		default:
			if d.parallelism <= 1 {
				cycle.Outcomes[i] = d.run(ctx, l, view, ev)
			} else {
				matched = append(matched, i)
			}
		}
	}

	if len(matched) > 0 {
		var g errgroup.Group
		g.SetLimit(d.parallelism)
		for _, i := range matched {
			i := i
			view := cycle.Outcomes[i].Listener
			g.Go(func() error {
				cycle.Outcomes[i] = d.run(ctx, listeners[i], view, ev)
				return nil
			})
		}
		_ = g.Wait()
	}

	cycle.Duration = time.Since(cycle.Started)
	d.notify(ctx, cycle)
	return cycle.Outcomes
}

// run invokes one matched listener, isolating its failure. view is the
// snapshot exposed to the handler and the outcome.
func (d *Dispatcher) run(ctx context.Context, l, view *Listener, ev domain.Event) (out Outcome) {
	out.Listener = view
	if err := ctx.Err(); err != nil {
		out.Status = StatusFailed
		out.Err = err
		return out
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out.Status = StatusFailed
			out.Err = &HandlerError{Listener: l.Name, Handle: l.Handle, Err: fmt.Errorf("%w: %v", ErrHandlerPanic, r)}
		}
		out.Duration = time.Since(start)
		if out.Status == StatusFailed {
			d.logger.Warn("listener failed",
				"listener", l.Name, "event", ev.ID(), "cycle", CycleID(ctx), "err", out.Err)
		}
	}()

	if err := l.Handler.Handle(context.WithValue(ctx, listenerCtxKey{}, view), ev); err != nil {
		out.Status = StatusFailed
		out.Err = &HandlerError{Listener: l.Name, Handle: l.Handle, Err: err}
		return out
	}
	out.Status = StatusSucceeded
	return out
}

func (d *Dispatcher) notify(ctx context.Context, c Cycle) {
	for _, o := range d.observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					d.logger.Error("dispatch observer panicked", "cycle", c.ID, "panic", r)
				}
			}()
			o.ObserveCycle(ctx, c)
		}()
	}
}
