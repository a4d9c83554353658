// Package router feeds events from the message bus into the dispatcher.
package router

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"chatrouter/internal/dispatch"
	"chatrouter/internal/domain"
)

const defaultMaxConcurrentEvents = 16

// Source delivers inbound events. The channel is closed on shutdown.
type Source interface {
	Subscribe() <-chan domain.Event
}

// Dispatcher runs one dispatch cycle.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev domain.Event) []dispatch.Outcome
}

// Config holds the router dependencies and tuning parameters.
type Config struct {
	Source     Source
	Dispatcher Dispatcher
	Logger     *slog.Logger
	// MaxConcurrentEvents bounds the number of cycles in flight (default 16).
	MaxConcurrentEvents int
	// EventTimeout limits each cycle; zero disables it.
	EventTimeout time.Duration
}

// Router consumes events and dispatches each in its own goroutine.
type Router struct {
	source        Source
	dispatcher    Dispatcher
	logger        *slog.Logger
	maxConcurrent int
	timeout       time.Duration
}

func New(cfg Config) *Router {
	if cfg.MaxConcurrentEvents <= 0 {
		cfg.MaxConcurrentEvents = defaultMaxConcurrentEvents
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Router{
		source:        cfg.Source,
		dispatcher:    cfg.Dispatcher,
		logger:        cfg.Logger,
		maxConcurrent: cfg.MaxConcurrentEvents,
		timeout:       cfg.EventTimeout,
	}
}

// Run consumes events until ctx is done or the source closes, then waits for
// in-flight cycles to finish.
func (r *Router) Run(ctx context.Context) {
	r.logger.Info("router started", "max_concurrent_events", r.maxConcurrent, "event_timeout", r.timeout)

	var wg sync.WaitGroup
	defer wg.Wait()

	sem := make(chan struct{}, r.maxConcurrent)
	inbound := r.source.Subscribe()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("router stopping")
			return
		case ev, ok := <-inbound:
			if !ok {
				r.logger.Info("event source closed, router stopping")
				return
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				r.logger.Info("router stopping")
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				r.Handle(ctx, ev)
			}()
		}
	}
}

// Handle dispatches a single event under the configured timeout and logs a
// summary of the cycle.
func (r *Router) Handle(ctx context.Context, ev domain.Event) []dispatch.Outcome {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	outcomes := r.dispatcher.Dispatch(ctx, ev)

	var matched, failed, faulted int
	for _, o := range outcomes {
		switch o.Status {
		case dispatch.StatusSucceeded:
			matched++
		case dispatch.StatusFailed:
			matched++
			failed++
		case dispatch.StatusFaulted:
			faulted++
		}
	}

	level := slog.LevelDebug
	if matched > 0 {
		level = slog.LevelInfo
	}
	if failed > 0 || faulted > 0 {
		level = slog.LevelWarn
	}
	r.logger.Log(ctx, level, "event dispatched",
		"component", ev.Component(),
		"event", ev.ID(),
		"listeners", len(outcomes),
		"matched", matched,
		"failed", failed,
		"faulted", faulted,
		"duration", time.Since(start),
	)
	return outcomes
}
