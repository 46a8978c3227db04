package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAllTemplates(t *testing.T) {
	lib, err := Load()
	require.NoError(t, err)

	for _, name := range []string{
		"strategist", "librarian", "outliner",
		"writer_profound", "writer_rhetorical", "writer_steady",
		"grader", "reviser", "reviewer",
	} {
		tmpl, err := lib.Get(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, tmpl.System, name)
		assert.NotEmpty(t, tmpl.User, name)
	}
}

func TestGetUnknownTemplate(t *testing.T) {
	lib, err := Load()
	require.NoError(t, err)

	_, err = lib.Get("editorial")
	assert.Error(t, err)
}

func TestReviserFragments(t *testing.T) {
	lib, err := Load()
	require.NoError(t, err)

	assert.Contains(t, lib.Fragment("reviser", "expand", ""), "扩展")
	assert.Contains(t, lib.Fragment("reviser", "reduce", ""), "删减")
	assert.Equal(t, "fallback", lib.Fragment("reviser", "missing", "fallback"))
	assert.Equal(t, "fallback", lib.Fragment("nope", "expand", "fallback"))
}

func TestFormat(t *testing.T) {
	out := Format("题目：{topic}，论点：{thesis}", map[string]string{
		"topic":  "坚持",
		"thesis": "贵在坚持",
	})
	assert.Equal(t, "题目：坚持，论点：贵在坚持", out)
}

func TestFormatLeavesUnknownPlaceholders(t *testing.T) {
	out := Format("题目：{topic}", map[string]string{"other": "x"})
	assert.Equal(t, "题目：{topic}", out)
}
