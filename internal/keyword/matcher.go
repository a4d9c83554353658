package keyword

import "regexp"

// ValueMatcher tests whole-text matches and extracts named parameters.
// The zero value matches nothing.
type ValueMatcher struct {
	full  *regexp.Regexp // anchored ^(?:...)$
	names []string
}

func newValueMatcher(full *regexp.Regexp, names []string) ValueMatcher {
	return ValueMatcher{full: full, names: names}
}

// Matches reports whether the entire text matches.
func (m ValueMatcher) Matches(text string) bool {
	return m.full != nil && m.full.MatchString(text)
}

// Param returns the value captured by the named parameter. It returns false
// when the text does not match or the name is unknown.
func (m ValueMatcher) Param(name, text string) (string, bool) {
	return m.Parameters(text).Get(name)
}

// Parameters extracts all named parameters from text. Non-matching text
// yields an empty Parameters whose lookups always fail.
func (m ValueMatcher) Parameters(text string) Parameters {
	if m.full == nil {
		return Parameters{}
	}
	sub := m.full.FindStringSubmatch(text)
	if sub == nil {
		return Parameters{}
	}
	values := make(map[string]string, len(m.names))
	for i, name := range m.full.SubexpNames() {
		if name == "" || i >= len(sub) {
			continue
		}
		values[name] = sub[i]
	}
	return Parameters{names: m.names, values: values}
}

// Names returns the parameter names declared by the pattern.
func (m ValueMatcher) Names() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// Parameters is the extraction view over one successful match.
type Parameters struct {
	names  []string
	values map[string]string
}

// Get returns the value of the named parameter.
func (p Parameters) Get(name string) (string, bool) {
	v, ok := p.values[name]
	return v, ok
}

// Value returns the named parameter or "" when absent.
func (p Parameters) Value(name string) string {
	return p.values[name]
}

// Len returns the number of extracted values.
func (p Parameters) Len() int {
	return len(p.values)
}

// Names returns the parameter names in pattern order.
func (p Parameters) Names() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// Map returns a copy of the extracted values.
func (p Parameters) Map() map[string]string {
	out := make(map[string]string, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}
