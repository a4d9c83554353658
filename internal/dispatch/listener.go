package dispatch

import (
	"context"
	"fmt"
	"slices"

	"chatrouter/internal/domain"
	"chatrouter/internal/filter"
	"chatrouter/internal/keyword"
)

// Handler reacts to an event that passed a listener's filters.
type Handler interface {
	Handle(ctx context.Context, ev domain.Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev domain.Event) error

func (f HandlerFunc) Handle(ctx context.Context, ev domain.Event) error {
	return f(ctx, ev)
}

// ListenerHandle identifies a registered listener. Handles are assigned in
// registration order starting at 1.
type ListenerHandle uint64

// Listener is a registered (filters, handler) pair. The registry keeps its
// own copy; every *Listener handed out by Listeners, Outcome or
// ListenerFromContext is a snapshot, so changing it never affects dispatch.
type Listener struct {
	Handle   ListenerHandle
	Priority int
	// Order is the registration sequence number, used to break priority ties.
	Order    int
	Name     string
	Filters  *filter.Filters
	Handler  Handler
	Keywords []*keyword.Keyword

	attributes map[*attributeID]any
}

// ListenerOption customizes a listener at registration.
type ListenerOption func(*Listener)

// WithName sets the listener name used in logs and outcomes.
func WithName(name string) ListenerOption {
	return func(l *Listener) { l.Name = name }
}

// WithKeywords overrides the keywords reported for introspection. By default
// they are collected from the listener's filters.
func WithKeywords(keywords ...*keyword.Keyword) ListenerOption {
	return func(l *Listener) {
		l.Keywords = append([]*keyword.Keyword(nil), keywords...)
	}
}

// clone returns a snapshot of l. Attributes are shared; they are never
// written after registration.
func (l *Listener) clone() *Listener {
	c := *l
	c.Keywords = slices.Clone(l.Keywords)
	return &c
}

func (l *Listener) String() string {
	return fmt.Sprintf("%s(priority=%d, order=%d)", l.Name, l.Priority, l.Order)
}

// keywordsOf returns the non-empty keywords of fs in declaration order.
func keywordsOf(fs *filter.Filters) []*keyword.Keyword {
	var out []*keyword.Keyword
	for _, f := range fs.Items() {
		if k := f.Keyword(); !k.IsEmpty() {
			out = append(out, k)
		}
	}
	return out
}

type listenerCtxKey struct{}
type cycleCtxKey struct{}

// ListenerFromContext returns the listener whose handler is running.
func ListenerFromContext(ctx context.Context) (*Listener, bool) {
	l, ok := ctx.Value(listenerCtxKey{}).(*Listener)
	return l, ok
}

// CycleID returns the id of the dispatch cycle ctx belongs to, or "".
func CycleID(ctx context.Context) string {
	id, _ := ctx.Value(cycleCtxKey{}).(string)
	return id
}
