// Package keyword compiles keyword patterns with named dynamic parameters and
// matches candidate text against them.
//
// A pattern such as "user:{{id,\d+}}" matches "user:42" and exposes id=42.
// Compiled keywords are immutable and safe for concurrent use.
package keyword

import "regexp"

// Keyword is a compiled keyword pattern.
type Keyword struct {
	text      string
	plainText bool
	regex     *regexp.Regexp // unanchored, for contains-style matching
	matcher   ValueMatcher
}

// Empty means "no keyword constraint". It is never matched against; filters
// holding it skip the keyword test entirely.
var Empty = &Keyword{}

// IsEmpty reports whether k is the Empty sentinel (or nil).
func (k *Keyword) IsEmpty() bool {
	return k == nil || k == Empty
}

// Text returns the source pattern.
func (k *Keyword) Text() string {
	if k.IsEmpty() {
		return ""
	}
	return k.text
}

// PlainText reports whether the pattern was compiled literally.
func (k *Keyword) PlainText() bool {
	return !k.IsEmpty() && k.plainText
}

// Regexp returns the unanchored expression. Nil for Empty.
func (k *Keyword) Regexp() *regexp.Regexp {
	if k.IsEmpty() {
		return nil
	}
	return k.regex
}

// Matcher returns the value matcher for whole-text matching and extraction.
func (k *Keyword) Matcher() ValueMatcher {
	if k.IsEmpty() {
		return ValueMatcher{}
	}
	return k.matcher
}

// Matches reports whether text matches the whole pattern.
func (k *Keyword) Matches(text string) bool {
	return k.Matcher().Matches(text)
}

// Param returns the named parameter extracted from text.
func (k *Keyword) Param(name, text string) (string, bool) {
	return k.Matcher().Param(name, text)
}

// Parameters returns every parameter extracted from text.
func (k *Keyword) Parameters(text string) Parameters {
	return k.Matcher().Parameters(text)
}

// ParamNames returns the declared parameter names in pattern order.
func (k *Keyword) ParamNames() []string {
	return k.Matcher().Names()
}

func (k *Keyword) String() string {
	if k.IsEmpty() {
		return "<empty>"
	}
	return k.text
}
