package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/looper/internal/usage"
)

func newTestLedger(t *testing.T) (*Ledger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "progress.md")
	return &Ledger{path: path}, path
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestWriteHeaderNewSession(t *testing.T) {
	l, path := newTestLedger(t)

	require.NoError(t, l.WriteHeader(Header{
		SessionName:   "fix-auth",
		Tool:          "claude",
		Model:         "claude-opus-4",
		MaxIterations: 5,
		StartedAt:     time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC),
	}))

	content := read(t, path)
	assert.Contains(t, content, "# Session: fix-auth")
	assert.Contains(t, content, "Started: 2026-08-29T10:00:00Z")
	assert.Contains(t, content, "Tool: claude")
	assert.Contains(t, content, "Model: claude-opus-4")
	assert.Contains(t, content, "Max iterations: 5")
}

func TestWriteHeaderResumedPreservesContent(t *testing.T) {
	l, path := newTestLedger(t)

	require.NoError(t, l.WriteHeader(Header{SessionName: "s", Tool: "claude", MaxIterations: 5, StartedAt: time.Now()}))
	require.NoError(t, l.AppendIteration(IterationRecord{Iteration: 1, Timestamp: time.Now(), Status: StatusCompleted}))
	before := read(t, path)

	require.NoError(t, l.WriteHeader(Header{
		SessionName: "s", Tool: "claude", MaxIterations: 5,
		StartedAt: time.Now(), Resumed: true,
	}))

	content := read(t, path)
	assert.True(t, strings.HasPrefix(content, before), "prior content must be preserved")
	assert.Contains(t, content, "## Resumed ")
}

func TestAppendIterationOmitsAbsentFields(t *testing.T) {
	l, path := newTestLedger(t)

	require.NoError(t, l.AppendIteration(IterationRecord{
		Iteration: 1,
		Timestamp: time.Now(),
		Status:    StatusCompleted,
		Duration:  1500 * time.Millisecond,
		ExitCode:  0,
	}))

	content := read(t, path)
	assert.Contains(t, content, "### Iteration 1 — completed")
	assert.Contains(t, content, "- Duration: 1.5s")
	assert.Contains(t, content, "- Exit code: 0")
	assert.NotContains(t, content, "Tokens:")
	assert.NotContains(t, content, "Files changed:")
	assert.NotContains(t, content, "Diff:")
	assert.NotContains(t, content, "Commit:")
}

func TestAppendIterationFullRecord(t *testing.T) {
	l, path := newTestLedger(t)
	files := 3

	require.NoError(t, l.AppendIteration(IterationRecord{
		Iteration:     2,
		Timestamp:     time.Now(),
		Status:        StatusRetried,
		Duration:      65 * time.Second,
		ExitCode:      0,
		FilesChanged:  &files,
		DiffSummary:   "3 files changed, 10 insertions(+)",
		Usage:         usage.TokenUsage{InputTokens: usage.Int(100)},
		CommitMessage: "fix tests",
		CommitHash:    "abc1234",
	}))

	content := read(t, path)
	assert.Contains(t, content, "### Iteration 2 — retried")
	assert.Contains(t, content, "- Duration: 1m5s")
	assert.Contains(t, content, "- Tokens: in=100")
	assert.Contains(t, content, "- Files changed: 3")
	assert.Contains(t, content, "- Diff: 3 files changed")
	assert.Contains(t, content, `- Commit: abc1234 "fix tests"`)
}

func TestLedgerAppendOnly(t *testing.T) {
	l, path := newTestLedger(t)
	require.NoError(t, l.WriteHeader(Header{SessionName: "s", Tool: "claude", MaxIterations: 3, StartedAt: time.Now()}))

	var snapshots []string
	for i := 1; i <= 3; i++ {
		require.NoError(t, l.AppendIteration(IterationRecord{Iteration: i, Timestamp: time.Now(), Status: StatusCompleted}))
		snapshots = append(snapshots, read(t, path))
	}

	final := snapshots[len(snapshots)-1]
	for _, snap := range snapshots {
		assert.True(t, strings.HasPrefix(final, snap), "earlier content is never rewritten")
	}
	assert.Equal(t, 3, strings.Count(final, "### Iteration "))
}

func TestWriteSummary(t *testing.T) {
	l, path := newTestLedger(t)

	require.NoError(t, l.WriteSummary(Summary{
		TotalIterations: 4,
		StopReason:      "Reached max iterations (4)",
		Elapsed:         2 * time.Minute,
		Usage:           usage.TokenUsage{CostUSD: usage.Float(1.5)},
	}))

	content := read(t, path)
	assert.Contains(t, content, "## Summary")
	assert.Contains(t, content, "- Iterations: 4")
	assert.Contains(t, content, "- Stop reason: Reached max iterations (4)")
	assert.Contains(t, content, "- Tokens: cost=$1.50")
}

func TestWriteSummaryNoUsage(t *testing.T) {
	l, path := newTestLedger(t)

	require.NoError(t, l.WriteSummary(Summary{TotalIterations: 1, StopReason: "done"}))
	assert.Contains(t, read(t, path), "- Tokens: no usage data")
}
