// Package filter evaluates compiled filters against chat events: a structural
// target predicate, a keyword test under a match strategy, and ANY/ALL/NONE
// combinators over lists of filters.
package filter

import (
	"context"
	"fmt"

	"chatrouter/internal/domain"
	"chatrouter/internal/keyword"
)

// ContentSelector extracts the text a filter tests from an event. ok is false
// when the event carries no text.
type ContentSelector func(ctx context.Context, ev domain.Event) (text string, ok bool, err error)

// PlainText is the default selector. Events that are not messages have no text.
func PlainText(ctx context.Context, ev domain.Event) (string, bool, error) {
	msg, ok := ev.(domain.MessageEvent)
	if !ok {
		return "", false, nil
	}
	return msg.PlainText(ctx)
}

// Config describes a filter before compilation into a *Filter.
type Config struct {
	Target     *TargetFilter
	Keyword    *keyword.Keyword
	Strategy   keyword.MatchStrategy
	IfNullPass bool
	Content    ContentSelector
}

// Filter is an immutable predicate over events.
type Filter struct {
	target     *TargetFilter
	keyword    *keyword.Keyword
	strategy   keyword.MatchStrategy
	ifNullPass bool
	content    ContentSelector
}

// New builds a filter. A nil keyword is treated as keyword.Empty and a nil
// content selector as PlainText.
func New(cfg Config) *Filter {
	f := &Filter{
		target:     cfg.Target,
		keyword:    cfg.Keyword,
		strategy:   cfg.Strategy,
		ifNullPass: cfg.IfNullPass,
		content:    cfg.Content,
	}
	if f.keyword == nil {
		f.keyword = keyword.Empty
	}
	if f.content == nil {
		f.content = PlainText
	}
	return f
}

// Target returns the structural predicate, nil when unconstrained.
func (f *Filter) Target() *TargetFilter { return f.target }

// Keyword returns the compiled keyword, keyword.Empty when content is not tested.
func (f *Filter) Keyword() *keyword.Keyword { return f.keyword }

// Strategy returns how text is compared with the keyword.
func (f *Filter) Strategy() keyword.MatchStrategy { return f.strategy }

// IfNullPass reports the result used when the event carries no text.
func (f *Filter) IfNullPass() bool { return f.ifNullPass }

// Evaluate tests ev. The target is checked first; content is extracted only
// after it passes. An Empty keyword accepts any content. When the event has
// no text the result is IfNullPass. Accessor errors and panics are returned
// as *EvaluationFault with a false result.
func (f *Filter) Evaluate(ctx context.Context, ev domain.Event) (matched bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			matched = false
			err = &EvaluationFault{Stage: "filter", EventID: eventID(ev), Err: fmt.Errorf("%w: %v", ErrFilterPanic, r)}
		}
	}()

	if ok, err := f.target.Evaluate(ctx, ev); !ok || err != nil {
		return false, err
	}

	text, ok, err := f.content(ctx, ev)
	if err != nil {
		return false, &EvaluationFault{Stage: "content", EventID: ev.ID(), Err: err}
	}
	if f.keyword.IsEmpty() {
		return true, nil
	}
	if ok {
		return f.strategy.Match(text, f.keyword), nil
	}
	return f.ifNullPass, nil
}

// Test is Evaluate with faults reported as a non-match.
func (f *Filter) Test(ctx context.Context, ev domain.Event) bool {
	ok, err := f.Evaluate(ctx, ev)
	return ok && err == nil
}

func eventID(ev domain.Event) (id string) {
	defer func() {
		if recover() != nil {
			id = ""
		}
	}()
	if ev == nil {
		return ""
	}
	return ev.ID()
}
