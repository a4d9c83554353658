package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"chatrouter/internal/dispatch"
	"chatrouter/internal/domain"
	"chatrouter/internal/filter"
	"chatrouter/internal/keyword"
)

var placeholderPattern = regexp.MustCompile(`\{\{([A-Za-z_][A-Za-z0-9_]*)\}\}`)

// Render substitutes {{name}} placeholders in tmpl from vars. Unknown
// placeholders are kept verbatim.
func Render(tmpl string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := placeholderPattern.FindStringSubmatch(m)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})
}

// action is the handler built from an ActionSpec.
type action struct {
	def      ActionSpec
	keywords []*keyword.Keyword
	limiter  *RateLimiter
	limit    RateLimitSpec
	logger   *slog.Logger
}

func newAction(decl Declaration, keywords []*keyword.Keyword, logger *slog.Logger) (*action, error) {
	switch decl.Action.Type {
	case ActionReply:
		if decl.Action.Text == "" {
			return nil, errors.New("reply action needs text")
		}
	case ActionLog:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, decl.Action.Type)
	}

	a := &action{def: decl.Action, keywords: keywords, logger: logger}
	if rl := decl.RateLimit; rl != nil {
		a.limiter = NewRateLimiter(rl.Burst, rl.PerMinute)
		a.limit = *rl
	}
	return a, nil
}

func (a *action) Handle(ctx context.Context, ev domain.Event) error {
	name := ""
	if l, ok := dispatch.ListenerFromContext(ctx); ok {
		name = l.Name
	}

	if a.limiter != nil {
		ok, err := a.throttle(ctx, ev)
		if err != nil {
			return err
		}
		if !ok {
			a.logger.Debug("listener rate limited, dropping event", "listener", name, "event", ev.ID())
			return nil
		}
	}

	vars, err := a.variables(ctx, ev, name)
	if err != nil {
		return err
	}
	text := Render(a.def.Text, vars)

	switch a.def.Type {
	case ActionReply:
		r, ok := ev.(domain.Replier)
		if !ok {
			return fmt.Errorf("%w: %s event %s", ErrNotReplier, ev.Component(), ev.ID())
		}
		return r.Reply(ctx, text)
	default:
		a.logger.Info("listener matched", "listener", name, "component", ev.Component(), "event", ev.ID(), "text", text)
		return nil
	}
}

// throttle takes a token for ev. It reports false when the event should be
// dropped.
func (a *action) throttle(ctx context.Context, ev domain.Event) (bool, error) {
	key := ""
	if a.limit.PerAuthor {
		id, _, err := domain.AuthorID(ctx, ev)
		if err != nil {
			return false, err
		}
		key = id
	}
	if a.limit.Wait {
		return true, a.limiter.Wait(ctx, key)
	}
	return a.limiter.Allow(key), nil
}

// variables collects template values. Parameters of the first keyword that
// matches the message text take precedence over the built-in names.
func (a *action) variables(ctx context.Context, ev domain.Event, listener string) (map[string]string, error) {
	vars := map[string]string{
		"listener":  listener,
		"component": ev.Component(),
		"event":     ev.ID(),
		"bot":       ev.BotID(),
	}
	if id, ok, err := domain.AuthorID(ctx, ev); err != nil {
		return nil, err
	} else if ok {
		vars["author"] = id
	}

	text, ok, err := filter.PlainText(ctx, ev)
	if err != nil {
		return nil, err
	}
	if !ok {
		return vars, nil
	}
	vars["text"] = text
	for _, k := range a.keywords {
		if !k.Matches(text) {
			continue
		}
		for n, v := range k.Parameters(text).Map() {
			vars[n] = v
		}
		break
	}
	return vars, nil
}
