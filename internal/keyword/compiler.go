package keyword

import (
	"fmt"
	"regexp"
	"strings"
)

// defaultParamPattern is used when a parameter block carries no sub-pattern.
const defaultParamPattern = ".+"

var paramNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// compiled is the output of the pattern scanner.
type compiled struct {
	expr   string
	params []string
}

// Compile turns a keyword pattern into a Keyword.
//
// With plainText set, the pattern matches itself literally. Otherwise the
// pattern is a regular expression in which "{{name}}" and
// "{{name,subpattern}}" blocks become named capture groups. Outside blocks a
// single brace is a literal character. A parameter without a sub-pattern
// captures one or more characters.
func Compile(pattern string, plainText bool) (*Keyword, error) {
	var c compiled
	if plainText {
		c.expr = regexp.QuoteMeta(pattern)
	} else {
		var err error
		c, err = scan(pattern)
		if err != nil {
			return nil, err
		}
	}

	regex, err := regexp.Compile(c.expr)
	if err != nil {
		return nil, &CompileError{Pattern: pattern, Offset: -1, Err: fmt.Errorf("%w: %v", ErrInvalidPattern, err)}
	}
	full, err := regexp.Compile(`^(?:` + c.expr + `)$`)
	if err != nil {
		return nil, &CompileError{Pattern: pattern, Offset: -1, Err: fmt.Errorf("%w: %v", ErrInvalidPattern, err)}
	}

	// Sub-patterns may declare their own named groups; those must not collide either.
	seen := make(map[string]bool, len(regex.SubexpNames()))
	for _, name := range regex.SubexpNames() {
		if name == "" {
			continue
		}
		if seen[name] {
			return nil, &CompileError{Pattern: pattern, Offset: -1, Err: fmt.Errorf("%w: %q", ErrDuplicateParam, name)}
		}
		seen[name] = true
	}

	return &Keyword{
		text:      pattern,
		plainText: plainText,
		regex:     regex,
		matcher:   newValueMatcher(full, c.params),
	}, nil
}

// MustCompile is like Compile but panics on error. Intended for static patterns.
func MustCompile(pattern string, plainText bool) *Keyword {
	k, err := Compile(pattern, plainText)
	if err != nil {
		panic(err)
	}
	return k
}

// scan walks the pattern left to right, copying regex text through and
// turning parameter blocks into named groups.
func scan(pattern string) (compiled, error) {
	var (
		expr   strings.Builder
		params []string
		seen   = make(map[string]bool)
	)

	for i := 0; i < len(pattern); {
		if !strings.HasPrefix(pattern[i:], "{{") {
			switch c := pattern[i]; {
			case c == '\\' && i+1 < len(pattern):
				expr.WriteString(pattern[i : i+2])
				i += 2
			case c == '{' || c == '}':
				expr.WriteByte('\\')
				expr.WriteByte(c)
				i++
			default:
				expr.WriteByte(c)
				i++
			}
			continue
		}

		start := i
		end, ok := closeParam(pattern, i+2)
		if !ok {
			return compiled{}, &CompileError{Pattern: pattern, Offset: start, Err: ErrUnterminatedParam}
		}

		name, sub, _ := strings.Cut(pattern[i+2:end], ",")
		name = strings.TrimSpace(name)
		if !paramNamePattern.MatchString(name) {
			return compiled{}, &CompileError{Pattern: pattern, Offset: start, Err: fmt.Errorf("%w: %q", ErrInvalidParamName, name)}
		}
		if seen[name] {
			return compiled{}, &CompileError{Pattern: pattern, Offset: start, Err: fmt.Errorf("%w: %q", ErrDuplicateParam, name)}
		}
		seen[name] = true
		if sub == "" {
			sub = defaultParamPattern
		}
		if _, err := regexp.Compile(sub); err != nil {
			return compiled{}, &CompileError{Pattern: pattern, Offset: start, Err: fmt.Errorf("%w: parameter %q: %v", ErrInvalidPattern, name, err)}
		}

		expr.WriteString("(?P<")
		expr.WriteString(name)
		expr.WriteString(">")
		expr.WriteString(sub)
		expr.WriteString(")")
		params = append(params, name)
		i = end + 2
	}

	return compiled{expr: expr.String(), params: params}, nil
}

// closeParam returns the index of the "}}" that closes a block whose content
// starts at from. Single braces inside the block nest, so quantifiers such as
// \d{2,4} are kept intact; backslash escapes are skipped.
func closeParam(pattern string, from int) (int, bool) {
	depth := 0
	for j := from; j < len(pattern); j++ {
		switch pattern[j] {
		case '\\':
			j++
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
				continue
			}
			if j+1 < len(pattern) && pattern[j+1] == '}' {
				return j, true
			}
		}
	}
	return 0, false
}
