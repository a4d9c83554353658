package keyword

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_PlainTextMatchesItselfOnly(t *testing.T) {
	for _, text := range []string{"hello", "a.b*c", "(x|y)", "{{id}}", "[ping]", `\d+`, "$100 ^up?"} {
		k, err := Compile(text, true)
		require.NoError(t, err, text)
		assert.True(t, k.Matches(text), text)
		assert.False(t, k.Matches(text+"x"), text)
		assert.Empty(t, k.ParamNames(), text)
	}
}

func TestCompile_PlainTextNoInjection(t *testing.T) {
	k := MustCompile("a.c", true)
	assert.False(t, k.Matches("abc"))
	assert.True(t, k.Matches("a.c"))
}

func TestCompile_TypedParameter(t *testing.T) {
	k, err := Compile(`user:{{id,\d+}}`, false)
	require.NoError(t, err)

	assert.True(t, k.Matches("user:42"))
	v, ok := k.Param("id", "user:42")
	assert.True(t, ok)
	assert.Equal(t, "42", v)
	assert.False(t, k.Matches("user:abc"))
	assert.Equal(t, []string{"id"}, k.ParamNames())
}

func TestCompile_DefaultParameter(t *testing.T) {
	k := MustCompile("ping {{name}}", false)

	assert.True(t, k.Matches("ping world"))
	assert.Equal(t, "world", k.Parameters("ping world").Value("name"))
	assert.False(t, k.Matches("pingworld"))
	assert.False(t, k.Matches("ping "))
}

func TestCompile_MultipleParameters(t *testing.T) {
	k := MustCompile(`roll {{count,\d+}}d{{sides,\d+}}`, false)

	params := k.Parameters("roll 3d20")
	assert.Equal(t, 2, params.Len())
	assert.Equal(t, "3", params.Value("count"))
	assert.Equal(t, "20", params.Value("sides"))
	assert.Equal(t, []string{"count", "sides"}, params.Names())
	assert.Equal(t, map[string]string{"count": "3", "sides": "20"}, params.Map())
}

func TestCompile_BracesInsideSubPattern(t *testing.T) {
	k, err := Compile(`year {{y,\d{4}}}`, false)
	require.NoError(t, err)

	assert.True(t, k.Matches("year 2024"))
	assert.False(t, k.Matches("year 24"))
	assert.Equal(t, "2024", k.Parameters("year 2024").Value("y"))
}

func TestCompile_QuantifierRangeWithComma(t *testing.T) {
	k := MustCompile(`pin {{code,\d{2,4}}}`, false)

	assert.True(t, k.Matches("pin 12"))
	assert.True(t, k.Matches("pin 1234"))
	assert.False(t, k.Matches("pin 12345"))
}

func TestCompile_SingleBraceIsLiteral(t *testing.T) {
	k := MustCompile("set {x} to {{v}}", false)

	assert.True(t, k.Matches("set {x} to 1"))
	assert.False(t, k.Matches("set x to 1"))
	assert.Equal(t, "1", k.Parameters("set {x} to 1").Value("v"))
}

func TestCompile_RegexSyntaxOutsideParameters(t *testing.T) {
	k := MustCompile("hello.*", false)

	assert.True(t, RegexMatches.Match("hello world", k))
	assert.True(t, RegexContains.Match("say hello there", k))
	assert.False(t, RegexMatches.Match("say hello", k))
	assert.Equal(t, "hello.*", k.Regexp().String())
}

func TestCompile_RegexAroundParameters(t *testing.T) {
	k := MustCompile(`ping\s+{{name}}`, false)

	assert.True(t, k.Matches("ping   bob"))
	assert.Equal(t, "bob", k.Parameters("ping   bob").Value("name"))
	assert.False(t, k.Matches("pingbob"))

	alt := MustCompile(`(hi|hello) {{who,\w+}}!?`, false)
	assert.True(t, alt.Matches("hello ann!"))
	assert.True(t, alt.Matches("hi ann"))
	assert.Equal(t, "ann", alt.Parameters("hi ann").Value("who"))
}

func TestCompile_EscapedMetacharacters(t *testing.T) {
	k := MustCompile(`price\? \${{amount,\d+}}\.`, false)

	assert.True(t, k.Matches("price? $10."))
	assert.False(t, k.Matches("price $10."))
	assert.False(t, k.Matches("price? $10x"))
}

func TestCompile_InvalidRegexOutsideParameters(t *testing.T) {
	_, err := Compile("a(b", false)
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestCompile_UnterminatedBlock(t *testing.T) {
	for _, p := range []string{"ping {{name", "ping {{name}", `x {{n,\d{2}}`} {
		_, err := Compile(p, false)
		require.Error(t, err, p)
		assert.True(t, errors.Is(err, ErrUnterminatedParam), p)

		var ce *CompileError
		require.True(t, errors.As(err, &ce), p)
		assert.Equal(t, p, ce.Pattern)
		assert.GreaterOrEqual(t, ce.Offset, 0)
	}
}

func TestCompile_DuplicateParameter(t *testing.T) {
	_, err := Compile("{{a}} and {{a}}", false)
	assert.ErrorIs(t, err, ErrDuplicateParam)
}

func TestCompile_DuplicateNestedGroup(t *testing.T) {
	_, err := Compile(`{{a,(?P<b>x)}}{{b}}`, false)
	assert.ErrorIs(t, err, ErrDuplicateParam)
}

func TestCompile_InvalidParameterName(t *testing.T) {
	for _, p := range []string{"{{}}", "{{,x}}", "{{1abc}}", "{{a-b}}"} {
		_, err := Compile(p, false)
		assert.ErrorIs(t, err, ErrInvalidParamName, p)
	}
}

func TestCompile_InvalidSubPattern(t *testing.T) {
	_, err := Compile("{{a,(unclosed}}", false)
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestCompile_PlainTextIgnoresBlocks(t *testing.T) {
	k, err := Compile("{{unterminated", true)
	require.NoError(t, err)
	assert.True(t, k.Matches("{{unterminated"))
}

func TestCompile_TwiceIsBehaviorallyEqual(t *testing.T) {
	pattern := `cmd {{verb,[a-z]+}} {{arg}}`
	a := MustCompile(pattern, false)
	b := MustCompile(pattern, false)
	assert.NotSame(t, a, b)

	for _, in := range []string{"cmd go home", "cmd GO home", "cmd go", "", "cmd run fast now"} {
		assert.Equal(t, a.Matches(in), b.Matches(in), in)
		assert.Equal(t, a.Parameters(in).Map(), b.Parameters(in).Map(), in)
	}
}

func TestMustCompile_Panics(t *testing.T) {
	assert.Panics(t, func() { MustCompile("{{x", false) })
}
