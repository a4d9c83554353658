package listener

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pingFile = `
listeners:
  - name: ping
    priority: 10
    mode: any
    filters:
      - keyword: "ping {{n,\\d+}}"
        target:
          components: [discord]
    action:
      type: reply
      text: "pong {{n}}"
  - priority: 20
    action:
      type: log
      text: "saw {{text}}"
    rateLimit:
      burst: 2
      perMinute: 30
`

func TestLoadFile_ParsesDeclarations(t *testing.T) {
	path := writeFile(t, t.TempDir(), "basic.yaml", pingFile)

	decls, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, decls, 2)

	ping := decls[0]
	assert.Equal(t, "ping", ping.Name)
	assert.Equal(t, 10, ping.Priority)
	assert.Equal(t, "any", ping.Mode)
	assert.Equal(t, path, ping.Source)
	require.Len(t, ping.Filters, 1)
	assert.Equal(t, `ping {{n,\d+}}`, ping.Filters[0].Keyword)
	assert.Equal(t, []string{"discord"}, ping.Filters[0].Target.Components)
	assert.Equal(t, ActionSpec{Type: ActionReply, Text: "pong {{n}}"}, ping.Action)
	assert.Nil(t, ping.RateLimit)

	unnamed := decls[1]
	assert.Equal(t, "basic-2", unnamed.Name)
	require.NotNil(t, unnamed.RateLimit)
	assert.Equal(t, 2, unnamed.RateLimit.Burst)
	assert.Equal(t, 30.0, unnamed.RateLimit.PerMinute)
}

func TestLoadFile_RejectsUnknownFields(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.yaml", "listeners:\n  - name: x\n    priorty: 1\n")

	_, err := LoadFile(path)
	require.Error(t, err)
	var de *DeclarationError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, path, de.Source)
}

func TestLoadFile_EmptyFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty.yaml", "")

	decls, err := LoadFile(path)
	require.NoError(t, err)
	assert.Empty(t, decls)
}

func TestLoad_DirectoryAndFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yml", "listeners:\n  - name: second\n    action: {type: log}\n")
	writeFile(t, dir, "a.yaml", "listeners:\n  - name: first\n    action: {type: log}\n")
	writeFile(t, dir, "notes.txt", "not yaml")
	single := writeFile(t, t.TempDir(), "single.yaml", "listeners:\n  - name: third\n    action: {type: log}\n")

	decls, err := Load([]string{dir, single, filepath.Join(dir, "missing")}, testLogger())
	require.NoError(t, err)

	var names []string
	for _, d := range decls {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"first", "second", "third"}, names)
}

func TestLoad_BadFileDoesNotHideOthers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.yaml", "listeners:\n  - name: ok\n    action: {type: log}\n")
	bad := writeFile(t, dir, "oops.yaml", "listeners: [\n")

	decls, err := Load([]string{dir}, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), bad)
	require.Len(t, decls, 1)
	assert.Equal(t, "ok", decls[0].Name)
}
