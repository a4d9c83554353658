package keyword

import (
	"fmt"
	"strings"
)

// MatchStrategy selects how candidate text is compared with a keyword.
type MatchStrategy int

const (
	// Equals compares text with the keyword source exactly.
	Equals MatchStrategy = iota
	// EqualsIgnoreCase compares text with the keyword source under Unicode case folding.
	EqualsIgnoreCase
	// StartsWith reports whether text begins with the keyword source.
	StartsWith
	// EndsWith reports whether text ends with the keyword source.
	EndsWith
	// Contains reports whether text contains the keyword source.
	Contains
	// RegexMatches requires the compiled pattern to match the whole text.
	RegexMatches
	// RegexContains requires the compiled pattern to match somewhere in the text.
	RegexContains

	strategyCount
)

type strategyFunc func(text string, k *Keyword) bool

var strategies = [strategyCount]strategyFunc{
	Equals:           func(text string, k *Keyword) bool { return text == k.Text() },
	EqualsIgnoreCase: func(text string, k *Keyword) bool { return strings.EqualFold(text, k.Text()) },
	StartsWith:       func(text string, k *Keyword) bool { return strings.HasPrefix(text, k.Text()) },
	EndsWith:         func(text string, k *Keyword) bool { return strings.HasSuffix(text, k.Text()) },
	Contains:         func(text string, k *Keyword) bool { return strings.Contains(text, k.Text()) },
	RegexMatches:     func(text string, k *Keyword) bool { return k.Matches(text) },
	RegexContains: func(text string, k *Keyword) bool {
		re := k.Regexp()
		return re != nil && re.MatchString(text)
	},
}

var strategyNames = [strategyCount]string{
	Equals:           "equals",
	EqualsIgnoreCase: "equals-ignore-case",
	StartsWith:       "starts-with",
	EndsWith:         "ends-with",
	Contains:         "contains",
	RegexMatches:     "regex-matches",
	RegexContains:    "regex-contains",
}

// Match applies the strategy. Unknown strategies never match.
func (s MatchStrategy) Match(text string, k *Keyword) bool {
	if !s.Valid() {
		return false
	}
	return strategies[s](text, k)
}

// Valid reports whether s is one of the declared strategies.
func (s MatchStrategy) Valid() bool {
	return s >= 0 && s < strategyCount
}

func (s MatchStrategy) String() string {
	if !s.Valid() {
		return fmt.Sprintf("MatchStrategy(%d)", int(s))
	}
	return strategyNames[s]
}

// ParseStrategy resolves a strategy by its configuration name. The empty
// string selects RegexMatches.
func ParseStrategy(name string) (MatchStrategy, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return RegexMatches, nil
	}
	for i, n := range strategyNames {
		if n == name {
			return MatchStrategy(i), nil
		}
	}
	return 0, fmt.Errorf("unknown match strategy %q", name)
}

// Strategies returns every strategy in declaration order.
func Strategies() []MatchStrategy {
	out := make([]MatchStrategy, strategyCount)
	for i := range out {
		out[i] = MatchStrategy(i)
	}
	return out
}

// UnmarshalText lets strategies be declared by name in configuration files.
func (s *MatchStrategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s MatchStrategy) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid match strategy %d", int(s))
	}
	return []byte(strategyNames[s]), nil
}
