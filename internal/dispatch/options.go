package dispatch

import "log/slog"

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithParallelism runs matched handlers concurrently, at most n at a time.
// Filters are still evaluated in dispatch order and outcomes are still
// reported in dispatch order; only handler execution overlaps. n <= 1 keeps
// handlers sequential.
func WithParallelism(n int) Option {
	return func(d *Dispatcher) {
		if n < 1 {
			n = 1
		}
		d.parallelism = n
	}
}

// WithObserver adds cycle observers.
func WithObserver(obs ...Observer) Option {
	return func(d *Dispatcher) {
		for _, o := range obs {
			if o != nil {
				d.observers = append(d.observers, o)
			}
		}
	}
}
