package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestEmpty_NeverMatches(t *testing.T) {
	assert.True(t, Empty.IsEmpty())
	assert.False(t, Empty.Matches(""))
	assert.False(t, Empty.Matches("anything"))
	assert.Nil(t, Empty.Regexp())
	assert.Equal(t, "<empty>", Empty.String())

	var nilKeyword *Keyword
	assert.True(t, nilKeyword.IsEmpty())
	assert.False(t, nilKeyword.Matches("x"))
}

func TestParameters_NonMatchingIsEmpty(t *testing.T) {
	k := MustCompile(`id {{n,\d+}}`, false)

	params := k.Parameters("id x")
	assert.Equal(t, 0, params.Len())
	v, ok := params.Get("n")
	assert.False(t, ok)
	assert.Equal(t, "", v)

	_, ok = k.Param("missing", "id 1")
	assert.False(t, ok)

	var zero Parameters
	_, ok = zero.Get("n")
	assert.False(t, ok)
	assert.Empty(t, zero.Map())
}

func TestStrategies_TextBased(t *testing.T) {
	k := MustCompile("Hello", true)

	cases := []struct {
		strategy MatchStrategy
		text     string
		want     bool
	}{
		{Equals, "Hello", true},
		{Equals, "hello", false},
		{EqualsIgnoreCase, "hELLO", true},
		{EqualsIgnoreCase, "hello!", false},
		{StartsWith, "Hello world", true},
		{StartsWith, "Say Hello", false},
		{EndsWith, "Say Hello", true},
		{EndsWith, "Hello there", false},
		{Contains, "well Hello there", true},
		{Contains, "hello", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.strategy.Match(c.text, k), "%s %q", c.strategy, c.text)
	}
}

func TestStrategies_TextBasedUseSourceNotRegex(t *testing.T) {
	k := MustCompile("hi {{name}}", false)
	assert.True(t, Equals.Match("hi {{name}}", k))
	assert.False(t, Equals.Match("hi bob", k))
	assert.True(t, RegexMatches.Match("hi bob", k))
}

func TestStrategies_Regex(t *testing.T) {
	k := MustCompile(`ping {{n,\d+}}`, false)

	assert.True(t, RegexMatches.Match("ping 1", k))
	assert.False(t, RegexMatches.Match("say ping 1 now", k))
	assert.True(t, RegexContains.Match("say ping 1 now", k))
	assert.False(t, RegexContains.Match("pong 1", k))
}

func TestStrategies_InvalidNeverMatches(t *testing.T) {
	k := MustCompile("x", true)
	assert.False(t, MatchStrategy(-1).Match("x", k))
	assert.False(t, MatchStrategy(99).Match("x", k))
	assert.Equal(t, "MatchStrategy(99)", MatchStrategy(99).String())
}

func TestParseStrategy(t *testing.T) {
	for _, s := range Strategies() {
		parsed, err := ParseStrategy(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, RegexMatches, s)

	s, err = ParseStrategy("  Starts-With ")
	require.NoError(t, err)
	assert.Equal(t, StartsWith, s)

	_, err = ParseStrategy("fuzzy")
	assert.Error(t, err)
}

func TestStrategy_YAML(t *testing.T) {
	var doc struct {
		Strategy MatchStrategy `yaml:"strategy"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("strategy: ends-with\n"), &doc))
	assert.Equal(t, EndsWith, doc.Strategy)

	assert.Error(t, yaml.Unmarshal([]byte("strategy: nope\n"), &doc))
}
