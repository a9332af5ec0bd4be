package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombine(t *testing.T) {
	dir := t.TempDir()
	promptPath := filepath.Join(dir, "task.md")
	require.NoError(t, os.WriteFile(promptPath, []byte("Fix the auth bug."), 0o644))

	combined, cleanup, err := Combine(promptPath, "System preamble.")
	require.NoError(t, err)
	defer cleanup()

	data, err := os.ReadFile(combined)
	require.NoError(t, err)
	assert.Equal(t, "System preamble.\n\nFix the auth bug.", string(data))
}

func TestCombineDefaultPreamble(t *testing.T) {
	dir := t.TempDir()
	promptPath := filepath.Join(dir, "task.md")
	require.NoError(t, os.WriteFile(promptPath, []byte("Do it."), 0o644))

	combined, cleanup, err := Combine(promptPath, "")
	require.NoError(t, err)
	defer cleanup()

	data, err := os.ReadFile(combined)
	require.NoError(t, err)
	assert.Contains(t, string(data), "## COMPLETE")
	assert.Contains(t, string(data), "Do it.")
}

func TestCombineCleanupIdempotent(t *testing.T) {
	dir := t.TempDir()
	promptPath := filepath.Join(dir, "task.md")
	require.NoError(t, os.WriteFile(promptPath, []byte("x"), 0o644))

	combined, cleanup, err := Combine(promptPath, "p")
	require.NoError(t, err)

	cleanup()
	cleanup()

	_, err = os.Stat(combined)
	assert.True(t, os.IsNotExist(err))
}

func TestCombineMissingPrompt(t *testing.T) {
	_, _, err := Combine(filepath.Join(t.TempDir(), "missing.md"), "")
	assert.Error(t, err)
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "prompts", "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prompts", "sub", "task.md"), []byte("x"), 0o644))

	found, err := Discover(dir, []string{"PROMPT.md", "prompts/**/*.md"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "prompts", "sub", "task.md"), found)
}

func TestDiscoverFirstGlobWins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "PROMPT.md"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "prompts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prompts", "other.md"), []byte("y"), 0o644))

	found, err := Discover(dir, []string{"PROMPT.md", "prompts/**/*.md"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "PROMPT.md"), found)
}

func TestDiscoverNoMatch(t *testing.T) {
	_, err := Discover(t.TempDir(), []string{"PROMPT.md"})
	assert.Error(t, err)
}

func TestChecklistSkeleton(t *testing.T) {
	s := ChecklistSkeleton("fix-auth")
	assert.Contains(t, s, "# Checklist — fix-auth")
	assert.Contains(t, s, "- [ ]")
}
