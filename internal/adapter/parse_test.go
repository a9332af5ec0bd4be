package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUsageClaude(t *testing.T) {
	out := `
Some agent output here.

Input tokens: 1,234
Output tokens: 567
Cache read: 8000
Total cost: $0.42
`
	u := parseUsage(out, claudeUsagePatterns)

	require.NotNil(t, u.InputTokens)
	assert.Equal(t, 1234, *u.InputTokens)
	require.NotNil(t, u.OutputTokens)
	assert.Equal(t, 567, *u.OutputTokens)
	require.NotNil(t, u.CacheReadTokens)
	assert.Equal(t, 8000, *u.CacheReadTokens)
	require.NotNil(t, u.CostUSD)
	assert.InDelta(t, 0.42, *u.CostUSD, 1e-9)
	assert.Nil(t, u.TotalTokens)
	assert.Nil(t, u.CacheWriteTokens)
}

func TestParseUsageClaudeJSON(t *testing.T) {
	out := `{"input_tokens": 100, "output_tokens": 20, "total_cost_usd": 0.01}`
	u := parseUsage(out, claudeUsagePatterns)

	require.NotNil(t, u.InputTokens)
	assert.Equal(t, 100, *u.InputTokens)
	require.NotNil(t, u.OutputTokens)
	assert.Equal(t, 20, *u.OutputTokens)
	require.NotNil(t, u.CostUSD)
}

func TestParseUsageFirstPatternWins(t *testing.T) {
	// Both the text and JSON forms are present; the text form is listed
	// first so it wins.
	out := "Input tokens: 50\n\"input_tokens\": 999"
	u := parseUsage(out, claudeUsagePatterns)

	require.NotNil(t, u.InputTokens)
	assert.Equal(t, 50, *u.InputTokens)
}

func TestParseUsageNothingReported(t *testing.T) {
	u := parseUsage("no usage info at all", claudeUsagePatterns)
	assert.True(t, u.IsEmpty())
}

func TestParseUsageCodex(t *testing.T) {
	u := parseUsage("tokens used: 4,200\ntokens in: 4000\ntokens out: 200", codexUsagePatterns)

	require.NotNil(t, u.TotalTokens)
	assert.Equal(t, 4200, *u.TotalTokens)
	require.NotNil(t, u.InputTokens)
	assert.Equal(t, 4000, *u.InputTokens)
	require.NotNil(t, u.OutputTokens)
	assert.Equal(t, 200, *u.OutputTokens)
}

func TestParseCommitMessageLine(t *testing.T) {
	msg, ok := parseCommitMessage("work done\nCOMMIT_MSG: fix flaky auth test\nbye")
	require.True(t, ok)
	assert.Equal(t, "fix flaky auth test", msg)
}

func TestParseCommitMessageBlock(t *testing.T) {
	msg, ok := parseCommitMessage("<commit-message>\nrefactor session ledger\n</commit-message>")
	require.True(t, ok)
	assert.Equal(t, "refactor session ledger", msg)
}

func TestParseCommitMessageLineWinsOverBlock(t *testing.T) {
	out := "COMMIT_MSG: line form\n<commit-message>block form</commit-message>"
	msg, ok := parseCommitMessage(out)
	require.True(t, ok)
	assert.Equal(t, "line form", msg)
}

func TestParseCommitMessageAbsent(t *testing.T) {
	_, ok := parseCommitMessage("nothing structured here")
	assert.False(t, ok)
}
