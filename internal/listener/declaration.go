// Package listener loads listener declarations from YAML files and registers
// them with a dispatch.Registry.
package listener

import (
	"chatrouter/internal/filter"
)

// File is the top-level document of a listener declaration file.
type File struct {
	Listeners []Declaration `yaml:"listeners"`
}

// Declaration describes one listener.
type Declaration struct {
	Name     string       `yaml:"name"`
	Priority int          `yaml:"priority"`
	Mode     string       `yaml:"mode,omitempty"`
	Filters  []FilterSpec `yaml:"filters,omitempty"`
	Action   ActionSpec   `yaml:"action"`
	// RateLimit throttles the action; nil disables throttling.
	RateLimit *RateLimitSpec `yaml:"rateLimit,omitempty"`

	// Source is the file the declaration was read from.
	Source string `yaml:"-"`
}

// FilterSpec is the declarative form of a filter.Filter.
type FilterSpec struct {
	Keyword    string        `yaml:"keyword,omitempty"`
	PlainText  bool          `yaml:"plainText,omitempty"`
	Strategy   string        `yaml:"strategy,omitempty"`
	IfNullPass bool          `yaml:"ifNullPass,omitempty"`
	Target     filter.Target `yaml:"target,omitempty"`
}

// Action kinds.
const (
	ActionReply = "reply"
	ActionLog   = "log"
)

// ActionSpec is what a listener does when it matches. Text may reference
// keyword parameters as {{name}}.
type ActionSpec struct {
	Type string `yaml:"type"`
	Text string `yaml:"text"`
}

// RateLimitSpec configures a token bucket. With Wait set the action blocks
// for a token; otherwise events over the limit are dropped. PerAuthor gives
// every author a bucket of their own.
type RateLimitSpec struct {
	Burst     int     `yaml:"burst"`
	PerMinute float64 `yaml:"perMinute"`
	Wait      bool    `yaml:"wait,omitempty"`
	PerAuthor bool    `yaml:"perAuthor,omitempty"`
}
