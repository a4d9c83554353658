package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"chatrouter/internal/domain"
	"chatrouter/internal/filter"
	"chatrouter/internal/keyword"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop() Handler {
	return HandlerFunc(func(context.Context, domain.Event) error { return nil })
}

func names(ls []*Listener) []string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = l.Name
	}
	return out
}

func TestRegistry_FreezeOrdersByPriorityThenRegistration(t *testing.T) {
	r := NewRegistry(nil)
	for _, reg := range []struct {
		name     string
		priority int
	}{{"ten", 10}, {"five-a", 5}, {"five-b", 5}, {"twenty", 20}} {
		_, err := r.Register(reg.priority, nil, noop(), WithName(reg.name))
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"ten", "five-a", "five-b", "twenty"}, names(r.Listeners()))
	r.Freeze()
	assert.Equal(t, []string{"five-a", "five-b", "ten", "twenty"}, names(r.Listeners()))
	assert.True(t, r.Frozen())
}

func TestRegistry_NegativePrioritiesFirst(t *testing.T) {
	r := NewRegistry(nil)
	_, _ = r.Register(0, nil, noop(), WithName("zero"))
	_, _ = r.Register(-5, nil, noop(), WithName("minus"))
	r.Freeze()
	assert.Equal(t, []string{"minus", "zero"}, names(r.Listeners()))
}

func TestRegistry_RegisterAfterFreeze(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Register(1, nil, noop())
	require.NoError(t, err)
	r.Freeze()
	r.Freeze()

	_, err = r.Register(2, nil, noop())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRegistryFrozen)
	var stateErr *RegistryStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, "register", stateErr.Op)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_NilHandler(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Register(1, nil, nil)
	assert.True(t, errors.Is(err, ErrNilHandler))
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_HandlesAndDefaults(t *testing.T) {
	r := NewRegistry(nil)
	k := keyword.MustCompile("hello", true)
	fs, err := filter.NewFilters(filter.Any, filter.New(filter.Config{Keyword: k}), filter.New(filter.Config{}))
	require.NoError(t, err)

	h1, err := r.Register(0, fs, noop())
	require.NoError(t, err)
	h2, err := r.Register(0, nil, noop())
	require.NoError(t, err)
	assert.Equal(t, ListenerHandle(1), h1)
	assert.Equal(t, ListenerHandle(2), h2)

	ls := r.Listeners()
	assert.Equal(t, "listener-1", ls[0].Name)
	assert.Equal(t, []*keyword.Keyword{k}, ls[0].Keywords, "empty keywords are not reported")
	assert.Empty(t, ls[1].Keywords)
	assert.NotNil(t, ls[1].Filters)
}

func TestRegistry_ExplicitKeywords(t *testing.T) {
	r := NewRegistry(nil)
	k := keyword.MustCompile("x", true)
	_, err := r.Register(0, nil, noop(), WithKeywords(k))
	require.NoError(t, err)
	assert.Equal(t, []*keyword.Keyword{k}, r.Listeners()[0].Keywords)
}

func TestRegistry_Attributes(t *testing.T) {
	owner := NewAttributeKey[string]("owner")
	limit := NewAttributeKey[int]("limit")
	other := NewAttributeKey[string]("owner")

	r := NewRegistry(nil)
	_, err := r.Register(0, nil, noop(), WithAttribute(owner, "ops"), WithAttribute(limit, 3))
	require.NoError(t, err)
	l := r.Listeners()[0]

	v, ok := Attribute(l, owner)
	assert.True(t, ok)
	assert.Equal(t, "ops", v)
	n, ok := Attribute(l, limit)
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok = Attribute(l, other)
	assert.False(t, ok, "keys compare by identity")
	assert.Equal(t, "owner", owner.String())
}

func TestRegistry_ConcurrentRegistration(t *testing.T) {
	r := NewRegistry(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			_, _ = r.Register(p%3, nil, noop())
		}(i)
	}
	wg.Wait()
	r.Freeze()

	ls := r.Listeners()
	require.Len(t, ls, 50)
	for i := 1; i < len(ls); i++ {
		prev, cur := ls[i-1], ls[i]
		assert.True(t, prev.Priority < cur.Priority || (prev.Priority == cur.Priority && prev.Order < cur.Order))
	}
}

func TestRegistry_ListenersAreSnapshots(t *testing.T) {
	r := NewRegistry(nil)
	k := keyword.MustCompile("x", true)
	var calls []string
	record := func(name string) Handler {
		return HandlerFunc(func(context.Context, domain.Event) error {
			calls = append(calls, name)
			return nil
		})
	}
	_, err := r.Register(1, nil, record("a"), WithName("a"), WithKeywords(k))
	require.NoError(t, err)
	_, err = r.Register(2, nil, record("b"), WithName("b"))
	require.NoError(t, err)
	r.Freeze()

	ls := r.Listeners()
	ls[0].Priority = 99
	ls[0].Name = "renamed"
	ls[0].Handler = record("hijacked")
	ls[0].Filters, err = filter.NewFilters(filter.Any)
	require.NoError(t, err)
	ls[0].Keywords[0] = keyword.Empty

	assert.Equal(t, []string{"a", "b"}, names(r.Listeners()))
	assert.Equal(t, []*keyword.Keyword{k}, r.Listeners()[0].Keywords)

	outs := New(r).Dispatch(context.Background(), msg("hi"))
	assert.Equal(t, []string{"a", "b"}, calls)

	outs[0].Listener.Handler = record("hijacked")
	New(r).Dispatch(context.Background(), msg("hi"))
	assert.Equal(t, []string{"a", "b", "a", "b"}, calls)
}
