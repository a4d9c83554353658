package dispatch

import (
	"io"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"

	"chatrouter/internal/filter"
)

// Registry collects listeners while building and serves a fixed dispatch
// order once frozen. Registration is safe for concurrent use; after Freeze
// reads take no lock.
type Registry struct {
	mu       sync.Mutex
	building []*Listener
	seq      int

	frozen atomic.Pointer[[]*Listener]
	logger *slog.Logger
}

// NewRegistry creates an empty registry in the building state.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{logger: logger}
}

// Register adds a listener. Lower priorities dispatch first; equal priorities
// keep registration order. A nil filters value matches every event.
func (r *Registry) Register(priority int, filters *filter.Filters, h Handler, opts ...ListenerOption) (ListenerHandle, error) {
	if h == nil {
		return 0, ErrNilHandler
	}
	if filters == nil {
		filters = filter.MatchAll()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() != nil {
		return 0, &RegistryStateError{Op: "register", Err: ErrRegistryFrozen}
	}

	r.seq++
	l := &Listener{
		Handle:   ListenerHandle(r.seq),
		Priority: priority,
		Order:    r.seq,
		Filters:  filters,
		Handler:  h,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.Name == "" {
		l.Name = "listener-" + strconv.Itoa(r.seq)
	}
	if l.Keywords == nil {
		l.Keywords = keywordsOf(filters)
	}

	r.building = append(r.building, l)
	r.logger.Debug("listener registered", "listener", l.Name, "priority", priority, "order", l.Order)
	return l.Handle, nil
}

// Freeze fixes the dispatch order. It is idempotent.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.freezeLocked()
}

func (r *Registry) freezeLocked() []*Listener {
	if p := r.frozen.Load(); p != nil {
		return *p
	}
	ordered := slices.Clone(r.building)
	slices.SortStableFunc(ordered, func(a, b *Listener) int {
		if a.Priority != b.Priority {
			if a.Priority < b.Priority {
				return -1
			}
			return 1
		}
		return a.Order - b.Order
	})
	r.frozen.Store(&ordered)
	r.building = nil
	r.logger.Info("listener registry frozen", "listeners", len(ordered))
	return ordered
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	return r.frozen.Load() != nil
}

// Listeners returns snapshots of the listeners in dispatch order when frozen,
// or in registration order while building.
func (r *Registry) Listeners() []*Listener {
	var src []*Listener
	if p := r.frozen.Load(); p != nil {
		src = *p
	} else {
		r.mu.Lock()
		if p := r.frozen.Load(); p != nil {
			src = *p
		} else {
			src = r.building
		}
		r.mu.Unlock()
	}
	out := make([]*Listener, len(src))
	for i, l := range src {
		out[i] = l.clone()
	}
	return out
}

// Len returns the number of registered listeners.
func (r *Registry) Len() int {
	if p := r.frozen.Load(); p != nil {
		return len(*p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p := r.frozen.Load(); p != nil {
		return len(*p)
	}
	return len(r.building)
}

// ordered returns the frozen order, freezing on first use.
func (r *Registry) ordered() []*Listener {
	if p := r.frozen.Load(); p != nil {
		return *p
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.freezeLocked()
}
