package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePrompt(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDeriveName(t *testing.T) {
	name, err := DeriveName("/tmp/Fix Auth Bug.md")
	require.NoError(t, err)
	assert.Equal(t, "fix-auth-bug", name)
}

func TestDeriveNameGenericStems(t *testing.T) {
	for _, f := range []string{"prompt.md", "plan.md", "task.md", "TODO.md"} {
		_, err := DeriveName(f)
		assert.True(t, errors.Is(err, ErrNameRequired), f)
	}
}

func TestResolveCreatesSession(t *testing.T) {
	dir := t.TempDir()
	promptFile := writePrompt(t, dir, "fix-auth.md", "Fix the auth bug.")
	root := filepath.Join(dir, ".looper")

	s, err := Resolve(root, promptFile, "")
	require.NoError(t, err)

	assert.Equal(t, "fix-auth", s.Name)
	assert.False(t, s.Resumed)
	assert.NotEmpty(t, s.RunID)

	data, err := os.ReadFile(s.PromptPath)
	require.NoError(t, err)
	assert.Equal(t, "Fix the auth bug.", string(data))

	checklist, err := os.ReadFile(s.ChecklistPath)
	require.NoError(t, err)
	assert.Contains(t, string(checklist), "fix-auth")
}

func TestResolveResumesExistingSession(t *testing.T) {
	dir := t.TempDir()
	promptFile := writePrompt(t, dir, "fix-auth.md", "original")
	root := filepath.Join(dir, ".looper")

	first, err := Resolve(root, promptFile, "")
	require.NoError(t, err)

	// Second resolve with a changed prompt file must not re-copy.
	require.NoError(t, os.WriteFile(promptFile, []byte("changed"), 0o644))
	second, err := Resolve(root, promptFile, "")
	require.NoError(t, err)

	assert.True(t, second.Resumed)
	assert.Equal(t, first.Dir, second.Dir)
	assert.NotEqual(t, first.RunID, second.RunID)

	data, err := os.ReadFile(second.PromptPath)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestResolveExplicitName(t *testing.T) {
	dir := t.TempDir()
	promptFile := writePrompt(t, dir, "prompt.md", "x")

	s, err := Resolve(filepath.Join(dir, ".looper"), promptFile, "my-session")
	require.NoError(t, err)
	assert.Equal(t, "my-session", s.Name)
}

func TestResolveGenericNameWithoutExplicit(t *testing.T) {
	dir := t.TempDir()
	promptFile := writePrompt(t, dir, "prompt.md", "x")

	_, err := Resolve(filepath.Join(dir, ".looper"), promptFile, "")
	assert.True(t, errors.Is(err, ErrNameRequired))
}

func TestResolveMissingPromptFailsFast(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, ".looper")

	_, err := Resolve(root, filepath.Join(dir, "absent.md"), "name")
	assert.Error(t, err)

	// No session directory was created.
	_, statErr := os.Stat(root)
	assert.True(t, os.IsNotExist(statErr))
}
