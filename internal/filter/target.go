package filter

import (
	"context"

	"chatrouter/internal/domain"
)

// Target declares which event provenance a filter accepts. Empty lists leave
// a dimension unconstrained.
type Target struct {
	Components []string `yaml:"components,omitempty" json:"components,omitempty"`
	Bots       []string `yaml:"bots,omitempty" json:"bots,omitempty"`
	Authors    []string `yaml:"authors,omitempty" json:"authors,omitempty"`
	Groups     []string `yaml:"groups,omitempty" json:"groups,omitempty"`
	Channels   []string `yaml:"channels,omitempty" json:"channels,omitempty"`
	Guilds     []string `yaml:"guilds,omitempty" json:"guilds,omitempty"`
	MentionBot bool     `yaml:"mentionBot,omitempty" json:"mentionBot,omitempty"`
}

type idSet map[string]struct{}

func newIDSet(ids []string) idSet {
	if len(ids) == 0 {
		return nil
	}
	s := make(idSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// allows reports whether id passes; an empty set is unconstrained.
func (s idSet) allows(id string) bool {
	if len(s) == 0 {
		return true
	}
	_, ok := s[id]
	return ok
}

// TargetFilter is the compiled structural predicate over event provenance.
// A nil *TargetFilter accepts every event.
type TargetFilter struct {
	components idSet
	bots       idSet
	authors    idSet
	groups     idSet
	channels   idSet
	guilds     idSet
	mentionBot bool
}

// NewTarget compiles t. It returns nil when t constrains nothing, so callers
// can skip structural checks entirely.
func NewTarget(t Target) *TargetFilter {
	tf := &TargetFilter{
		components: newIDSet(t.Components),
		bots:       newIDSet(t.Bots),
		authors:    newIDSet(t.Authors),
		groups:     newIDSet(t.Groups),
		channels:   newIDSet(t.Channels),
		guilds:     newIDSet(t.Guilds),
		mentionBot: t.MentionBot,
	}
	if tf.IsEmpty() {
		return nil
	}
	return tf
}

// IsEmpty reports whether the filter constrains nothing.
func (tf *TargetFilter) IsEmpty() bool {
	return tf == nil || (len(tf.components) == 0 && len(tf.bots) == 0 && len(tf.authors) == 0 &&
		len(tf.groups) == 0 && len(tf.channels) == 0 && len(tf.guilds) == 0 && !tf.mentionBot)
}

// Evaluate checks ev dimension by dimension and stops at the first failure.
// An event lacking a required capability fails that dimension; an accessor
// error is returned as an *EvaluationFault.
func (tf *TargetFilter) Evaluate(ctx context.Context, ev domain.Event) (bool, error) {
	if tf == nil {
		return true, nil
	}
	if !tf.components.allows(ev.Component()) {
		return false, nil
	}
	if !tf.bots.allows(ev.BotID()) {
		return false, nil
	}

	if len(tf.authors) > 0 {
		id, ok, err := domain.AuthorID(ctx, ev)
		if err != nil {
			return false, &EvaluationFault{Stage: "author", EventID: ev.ID(), Err: err}
		}
		if !ok || !tf.authors.allows(id) {
			return false, nil
		}
	}

	if ok, err := checkID(ctx, ev, tf.groups, "group", domain.GroupEvent.GroupID); !ok || err != nil {
		return false, err
	}
	if ok, err := checkID(ctx, ev, tf.channels, "channel", domain.ChannelEvent.ChannelID); !ok || err != nil {
		return false, err
	}
	if ok, err := checkID(ctx, ev, tf.guilds, "guild", domain.GuildEvent.GuildID); !ok || err != nil {
		return false, err
	}

	if tf.mentionBot {
		return mentionsBot(ctx, ev)
	}
	return true, nil
}

// checkID tests one capability-backed id dimension.
func checkID[E domain.Event](ctx context.Context, ev domain.Event, set idSet, stage string, get func(E, context.Context) (string, error)) (bool, error) {
	if len(set) == 0 {
		return true, nil
	}
	capable, ok := ev.(E)
	if !ok {
		return false, nil
	}
	id, err := get(capable, ctx)
	if err != nil {
		return false, &EvaluationFault{Stage: stage, EventID: ev.ID(), Err: err}
	}
	return set.allows(id), nil
}

func mentionsBot(ctx context.Context, ev domain.Event) (bool, error) {
	me, ok := ev.(domain.MentionEvent)
	if !ok {
		return false, nil
	}
	mentions, err := me.Mentions(ctx)
	if err != nil {
		return false, &EvaluationFault{Stage: "mentions", EventID: ev.ID(), Err: err}
	}
	bot := ev.BotID()
	for _, m := range mentions {
		if m.TargetID == bot {
			return true, nil
		}
	}
	return false, nil
}
