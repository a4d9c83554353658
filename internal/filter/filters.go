package filter

import (
	"context"
	"fmt"
	"strings"

	"chatrouter/internal/domain"
)

// MultiMatchType selects how a list of filters is reduced.
type MultiMatchType int

const (
	// Any passes when at least one filter passes. An empty list fails.
	Any MultiMatchType = iota
	// All passes when every filter passes. An empty list passes.
	All
	// None passes when no filter passes. An empty list passes.
	None

	multiMatchCount
)

// reduction describes a combinator: evaluation stops at the first item whose
// result equals stopOn and yields onStop; otherwise the list is exhausted
// and yields exhausted.
type reduction struct {
	stopOn    bool
	onStop    bool
	exhausted bool
}

var reductions = [multiMatchCount]reduction{
	Any:  {stopOn: true, onStop: true, exhausted: false},
	All:  {stopOn: false, onStop: false, exhausted: true},
	None: {stopOn: true, onStop: false, exhausted: true},
}

var multiMatchNames = [multiMatchCount]string{
	Any:  "any",
	All:  "all",
	None: "none",
}

func (m MultiMatchType) Valid() bool {
	return m >= 0 && m < multiMatchCount
}

func (m MultiMatchType) String() string {
	if !m.Valid() {
		return fmt.Sprintf("MultiMatchType(%d)", int(m))
	}
	return multiMatchNames[m]
}

// ParseMultiMatchType resolves a combinator by name. The empty string selects Any.
func ParseMultiMatchType(name string) (MultiMatchType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Any, nil
	}
	for i, n := range multiMatchNames {
		if n == name {
			return MultiMatchType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown multi-match type %q", name)
}

func (m *MultiMatchType) UnmarshalText(text []byte) error {
	parsed, err := ParseMultiMatchType(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m MultiMatchType) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid multi-match type %d", int(m))
	}
	return []byte(multiMatchNames[m]), nil
}

// Filters combines filters under a MultiMatchType. A nil *Filters matches
// every event.
type Filters struct {
	items []*Filter
	mode  MultiMatchType
}

// NewFilters combines items under mode. Nil items are dropped.
func NewFilters(mode MultiMatchType, items ...*Filter) (*Filters, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("invalid multi-match type %d", int(mode))
	}
	fs := &Filters{mode: mode, items: make([]*Filter, 0, len(items))}
	for _, f := range items {
		if f != nil {
			fs.items = append(fs.items, f)
		}
	}
	return fs, nil
}

// MatchAll returns a combinator that accepts every event.
func MatchAll() *Filters {
	return &Filters{mode: All}
}

func (fs *Filters) Mode() MultiMatchType {
	if fs == nil {
		return All
	}
	return fs.mode
}

// Items returns a copy of the combined filters in declaration order.
func (fs *Filters) Items() []*Filter {
	if fs == nil {
		return nil
	}
	out := make([]*Filter, len(fs.items))
	copy(out, fs.items)
	return out
}

// Evaluate reduces the filters in declaration order, stopping as soon as the
// outcome is decided. A single filter is evaluated directly regardless of
// mode. The first evaluation fault aborts the reduction.
func (fs *Filters) Evaluate(ctx context.Context, ev domain.Event) (bool, error) {
	if fs == nil {
		return true, nil
	}
	if len(fs.items) == 1 {
		return fs.items[0].Evaluate(ctx, ev)
	}

	r := reductions[fs.mode]
	for _, f := range fs.items {
		ok, err := f.Evaluate(ctx, ev)
		if err != nil {
			return false, err
		}
		if ok == r.stopOn {
			return r.onStop, nil
		}
	}
	return r.exhausted, nil
}

// Test is Evaluate with faults reported as a non-match.
func (fs *Filters) Test(ctx context.Context, ev domain.Event) bool {
	ok, err := fs.Evaluate(ctx, ev)
	return ok && err == nil
}
