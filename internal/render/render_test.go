package render

import (
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/joss/looper/internal/session"
	"github.com/joss/looper/internal/usage"
)

func init() {
	color.NoColor = true
}

func TestRunBannerPlain(t *testing.T) {
	out := New(false).RunBanner("fix-auth", "claude", "opus", 10, false)
	assert.Equal(t, "session=fix-auth tool=claude model=opus max_iterations=10 resumed=false\n", out)
}

func TestRunBannerPrettyResumed(t *testing.T) {
	out := New(true).RunBanner("fix-auth", "claude", "", 5, true)
	assert.Contains(t, out, "Session fix-auth (resumed)")
	assert.Contains(t, out, "Max iterations: 5")
	assert.NotContains(t, out, "Model:")
}

func TestIterationEndPlainOmitsAbsentFields(t *testing.T) {
	rec := session.IterationRecord{
		Iteration: 3,
		Status:    session.StatusCompleted,
		Duration:  1500 * time.Millisecond,
		ExitCode:  0,
	}
	out := New(false).IterationEnd(rec)
	assert.Equal(t, "iteration=3 status=completed exit=0 duration=1.5s\n", out)
}

func TestIterationEndIncludesUsageAndCommit(t *testing.T) {
	files := 4
	rec := session.IterationRecord{
		Iteration:    1,
		Status:       session.StatusRetried,
		Duration:     2 * time.Second,
		ExitCode:     0,
		FilesChanged: &files,
		Usage:        usage.TokenUsage{InputTokens: usage.Int(1200)},
		CommitHash:   "abcdef0123456789",
	}
	out := New(true).IterationEnd(rec)
	assert.Contains(t, out, "in=1.2k")
	assert.Contains(t, out, "4 files")
	assert.Contains(t, out, "commit abcdef01")
	assert.Contains(t, out, "↻")
}

func TestSummaryNoUsageData(t *testing.T) {
	out := New(false).Summary(3, "Reached max iterations (3)", 90*time.Second, usage.TokenUsage{})
	assert.Contains(t, out, `tokens="no usage data"`)
	assert.Contains(t, out, "elapsed=1m30s")
}

func TestSummaryWithUsage(t *testing.T) {
	total := usage.TokenUsage{InputTokens: usage.Int(500), CostUSD: usage.Float(0.25)}
	out := New(true).Summary(2, "Stop hook signaled completion", 5*time.Second, total)
	assert.Contains(t, out, "in=500")
	assert.Contains(t, out, "cost=$0.25")
	assert.Contains(t, out, "Stop reason: Stop hook signaled completion")
}

func TestRunsEmpty(t *testing.T) {
	assert.Equal(t, "No runs recorded\n", New(true).Runs(nil))
}

func TestRunsPlain(t *testing.T) {
	runs := []session.RunRow{{
		Session:         "fix-auth",
		Tool:            "claude",
		TotalIterations: 4,
		StartedAt:       time.Date(2026, 3, 1, 9, 30, 0, 0, time.Local),
		StopReason:      "Reached max iterations (4)",
	}}
	out := New(false).Runs(runs)
	assert.Contains(t, out, "session=fix-auth")
	assert.Contains(t, out, "iterations=4")
}

func TestRunsInProgress(t *testing.T) {
	out := New(false).Runs([]session.RunRow{{Session: "s", Tool: "codex"}})
	assert.Contains(t, out, `stop_reason="in progress"`)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", FormatDuration(250*time.Millisecond))
	assert.Equal(t, "2.5s", FormatDuration(2500*time.Millisecond))
	assert.Equal(t, "2m5s", FormatDuration(125*time.Second))
}
