package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"chatrouter/internal/domain"
	"chatrouter/internal/filter"
	"chatrouter/internal/keyword"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type message struct {
	domain.Base
	text    string
	textErr error
}

func (m *message) PlainText(context.Context) (string, bool, error) {
	return m.text, m.text != "", m.textErr
}

func msg(text string) *message {
	return &message{Base: domain.Base{EventID: "m1", ComponentName: "cli", Bot: "bot"}, text: text}
}

// recorder collects the names of listeners whose handlers ran.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) handler(name string, err error) Handler {
	return HandlerFunc(func(context.Context, domain.Event) error {
		r.mu.Lock()
		r.calls = append(r.calls, name)
		r.mu.Unlock()
		return err
	})
}

func keywordFilters(t *testing.T, text string) *filter.Filters {
	t.Helper()
	fs, err := filter.NewFilters(filter.All, filter.New(filter.Config{
		Keyword:  keyword.MustCompile(text, true),
		Strategy: keyword.Contains,
	}))
	require.NoError(t, err)
	return fs
}

func statuses(outs []Outcome) []Status {
	s := make([]Status, len(outs))
	for i, o := range outs {
		s[i] = o.Status
	}
	return s
}

func TestDispatch_PriorityOrder(t *testing.T) {
	rec := &recorder{}
	r := NewRegistry(nil)
	_, _ = r.Register(10, nil, rec.handler("ten", nil), WithName("ten"))
	_, _ = r.Register(5, nil, rec.handler("five-a", nil), WithName("five-a"))
	_, _ = r.Register(5, nil, rec.handler("five-b", nil), WithName("five-b"))
	_, _ = r.Register(20, nil, rec.handler("twenty", nil), WithName("twenty"))

	outs := New(r).Dispatch(context.Background(), msg("hi"))

	assert.Equal(t, []string{"five-a", "five-b", "ten", "twenty"}, rec.calls)
	require.Len(t, outs, 4)
	assert.Equal(t, "five-a", outs[0].Listener.Name)
	assert.True(t, r.Frozen(), "first dispatch freezes the registry")
}

func TestDispatch_HandlerFailureIsIsolated(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("boom")
	r := NewRegistry(nil)
	_, _ = r.Register(1, nil, rec.handler("one", nil))
	_, _ = r.Register(2, nil, rec.handler("two", boom), WithName("two"))
	_, _ = r.Register(3, nil, rec.handler("three", nil))

	outs := New(r).Dispatch(context.Background(), msg("hi"))

	assert.Equal(t, []string{"one", "two", "three"}, rec.calls)
	assert.Equal(t, []Status{StatusSucceeded, StatusFailed, StatusSucceeded}, statuses(outs))
	var herr *HandlerError
	require.ErrorAs(t, outs[1].Err, &herr)
	assert.Equal(t, "two", herr.Listener)
	assert.ErrorIs(t, outs[1].Err, boom)
}

func TestDispatch_HandlerPanicIsIsolated(t *testing.T) {
	rec := &recorder{}
	r := NewRegistry(nil)
	_, _ = r.Register(1, nil, HandlerFunc(func(context.Context, domain.Event) error { panic("kaboom") }))
	_, _ = r.Register(2, nil, rec.handler("after", nil))

	outs := New(r).Dispatch(context.Background(), msg("hi"))

	assert.Equal(t, StatusFailed, outs[0].Status)
	assert.ErrorIs(t, outs[0].Err, ErrHandlerPanic)
	assert.Equal(t, StatusSucceeded, outs[1].Status)
	assert.Equal(t, []string{"after"}, rec.calls)
}

func TestDispatch_NonMatchingIsSkipped(t *testing.T) {
	rec := &recorder{}
	r := NewRegistry(nil)
	_, _ = r.Register(0, keywordFilters(t, "deploy"), rec.handler("deploy", nil))
	_, _ = r.Register(0, keywordFilters(t, "status"), rec.handler("status", nil))

	outs := New(r).Dispatch(context.Background(), msg("what is the status"))

	assert.Equal(t, []Status{StatusSkipped, StatusSucceeded}, statuses(outs))
	assert.Equal(t, []string{"status"}, rec.calls)
	assert.Zero(t, outs[0].Duration)
}

func TestDispatch_FilterFaultIsNonMatch(t *testing.T) {
	rec := &recorder{}
	r := NewRegistry(nil)
	_, _ = r.Register(0, keywordFilters(t, "x"), rec.handler("keyword", nil))
	_, _ = r.Register(1, nil, rec.handler("catch-all", nil))

	ev := msg("x")
	ev.textErr = errors.New("decode")
	outs := New(r).Dispatch(context.Background(), ev)

	assert.Equal(t, []Status{StatusFaulted, StatusSucceeded}, statuses(outs))
	var fault *filter.EvaluationFault
	assert.ErrorAs(t, outs[0].Err, &fault)
	assert.Equal(t, []string{"catch-all"}, rec.calls)
}

func TestDispatch_EmptyRegistry(t *testing.T) {
	outs := New(NewRegistry(nil)).Dispatch(context.Background(), msg("hi"))
	assert.Empty(t, outs)
}

func TestDispatch_CancelledContextSkipsUnstartedHandlers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	r := NewRegistry(nil)
	_, _ = r.Register(1, nil, HandlerFunc(func(context.Context, domain.Event) error {
		rec.calls = append(rec.calls, "first")
		cancel()
		return nil
	}))
	_, _ = r.Register(2, nil, rec.handler("second", nil))

	outs := New(r).Dispatch(ctx, msg("hi"))

	assert.Equal(t, StatusSucceeded, outs[0].Status)
	assert.Equal(t, StatusFailed, outs[1].Status)
	assert.ErrorIs(t, outs[1].Err, context.Canceled)
	assert.Equal(t, []string{"first"}, rec.calls)
}

func TestDispatch_HandlerContextCarriesListenerAndCycle(t *testing.T) {
	r := NewRegistry(nil)
	var gotName, gotCycle string
	_, _ = r.Register(0, nil, HandlerFunc(func(ctx context.Context, _ domain.Event) error {
		l, ok := ListenerFromContext(ctx)
		if ok {
			gotName = l.Name
		}
		gotCycle = CycleID(ctx)
		return nil
	}), WithName("introspect"))

	var observed Cycle
	d := New(r, WithObserver(ObserverFunc(func(_ context.Context, c Cycle) { observed = c })))
	d.Dispatch(context.Background(), msg("hi"))

	assert.Equal(t, "introspect", gotName)
	assert.NotEmpty(t, gotCycle)
	assert.Equal(t, gotCycle, observed.ID)
	assert.Equal(t, 1, observed.Counts()[StatusSucceeded])
}

func TestDispatch_ObserverPanicDoesNotEscape(t *testing.T) {
	r := NewRegistry(nil)
	_, _ = r.Register(0, nil, noop())
	var second atomic.Bool
	d := New(r, WithObserver(
		ObserverFunc(func(context.Context, Cycle) { panic("observer") }),
		ObserverFunc(func(context.Context, Cycle) { second.Store(true) }),
	))

	assert.NotPanics(t, func() { d.Dispatch(context.Background(), msg("hi")) })
	assert.True(t, second.Load())
}

func TestDispatch_ParallelKeepsOutcomeOrder(t *testing.T) {
	r := NewRegistry(nil)
	var running, peak atomic.Int32
	slow := HandlerFunc(func(context.Context, domain.Event) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return nil
	})
	for i := 0; i < 6; i++ {
		_, _ = r.Register(i, nil, slow)
	}
	_, _ = r.Register(99, keywordFilters(t, "never"), noop(), WithName("skipped"))

	outs := New(r, WithParallelism(2)).Dispatch(context.Background(), msg("hi"))

	require.Len(t, outs, 7)
	for i := 0; i < 6; i++ {
		assert.Equal(t, StatusSucceeded, outs[i].Status)
		assert.Equal(t, i, outs[i].Listener.Priority)
	}
	assert.Equal(t, StatusSkipped, outs[6].Status)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestDispatch_ConcurrentCycles(t *testing.T) {
	r := NewRegistry(nil)
	var hits atomic.Int64
	_, _ = r.Register(0, keywordFilters(t, "go"), HandlerFunc(func(context.Context, domain.Event) error {
		hits.Add(1)
		return nil
	}))
	d := New(r)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Dispatch(context.Background(), msg("go go"))
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(20), hits.Load())
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "skipped", StatusSkipped.String())
	assert.Equal(t, "faulted", StatusFaulted.String())
	assert.Equal(t, "succeeded", StatusSucceeded.String())
	assert.Equal(t, "failed", StatusFailed.String())
	assert.Equal(t, "Status(9)", Status(9).String())
	assert.True(t, StatusFailed.Matched())
	assert.False(t, StatusFaulted.Matched())
}
