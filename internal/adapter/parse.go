package adapter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/joss/looper/internal/usage"
)

// Usage extraction is heuristic by nature: agent tools print usage as
// free text and change formats between releases. Each tool carries an
// ordered pattern list; for every usage field the first matching
// pattern wins and later ones are not tried.

type usageField int

const (
	fieldInput usageField = iota
	fieldOutput
	fieldTotal
	fieldCacheRead
	fieldCacheWrite
	fieldCost
)

type usagePattern struct {
	field usageField
	re    *regexp.Regexp
}

var claudeUsagePatterns = []usagePattern{
	{fieldInput, regexp.MustCompile(`(?i)input tokens:?\s*([\d,]+)`)},
	{fieldInput, regexp.MustCompile(`(?i)"input_tokens"\s*:\s*(\d+)`)},
	{fieldOutput, regexp.MustCompile(`(?i)output tokens:?\s*([\d,]+)`)},
	{fieldOutput, regexp.MustCompile(`(?i)"output_tokens"\s*:\s*(\d+)`)},
	{fieldCacheRead, regexp.MustCompile(`(?i)cache read(?: tokens)?:?\s*([\d,]+)`)},
	{fieldCacheRead, regexp.MustCompile(`(?i)"cache_read_input_tokens"\s*:\s*(\d+)`)},
	{fieldCacheWrite, regexp.MustCompile(`(?i)cache (?:write|creation)(?: tokens)?:?\s*([\d,]+)`)},
	{fieldCacheWrite, regexp.MustCompile(`(?i)"cache_creation_input_tokens"\s*:\s*(\d+)`)},
	{fieldTotal, regexp.MustCompile(`(?i)total tokens:?\s*([\d,]+)`)},
	{fieldCost, regexp.MustCompile(`(?i)(?:total )?cost:?\s*\$([\d.]+)`)},
	{fieldCost, regexp.MustCompile(`(?i)"total_cost_usd"\s*:\s*([\d.]+)`)},
}

var codexUsagePatterns = []usagePattern{
	{fieldInput, regexp.MustCompile(`(?i)tokens in:?\s*([\d,]+)`)},
	{fieldInput, regexp.MustCompile(`(?i)input(?: tokens)?:?\s*([\d,]+)`)},
	{fieldOutput, regexp.MustCompile(`(?i)tokens out:?\s*([\d,]+)`)},
	{fieldOutput, regexp.MustCompile(`(?i)output(?: tokens)?:?\s*([\d,]+)`)},
	{fieldTotal, regexp.MustCompile(`(?i)tokens used:?\s*([\d,]+)`)},
	{fieldCost, regexp.MustCompile(`(?i)cost:?\s*\$([\d.]+)`)},
}

var genericUsagePatterns = []usagePattern{
	{fieldInput, regexp.MustCompile(`(?i)input tokens:?\s*([\d,]+)`)},
	{fieldOutput, regexp.MustCompile(`(?i)output tokens:?\s*([\d,]+)`)},
	{fieldTotal, regexp.MustCompile(`(?i)total tokens:?\s*([\d,]+)`)},
	{fieldCost, regexp.MustCompile(`(?i)cost:?\s*\$([\d.]+)`)},
}

func parseUsage(output string, patterns []usagePattern) usage.TokenUsage {
	var u usage.TokenUsage
	seen := map[usageField]bool{}

	for _, p := range patterns {
		if seen[p.field] {
			continue
		}
		m := p.re.FindStringSubmatch(output)
		if m == nil {
			continue
		}
		seen[p.field] = true

		if p.field == fieldCost {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				u.CostUSD = &v
			}
			continue
		}
		raw := strings.ReplaceAll(m[1], ",", "")
		v, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		switch p.field {
		case fieldInput:
			u.InputTokens = &v
		case fieldOutput:
			u.OutputTokens = &v
		case fieldTotal:
			u.TotalTokens = &v
		case fieldCacheRead:
			u.CacheReadTokens = &v
		case fieldCacheWrite:
			u.CacheWriteTokens = &v
		}
	}
	return u
}

// Commit-message extraction: agents are instructed to emit a marker
// line when they want to name their own commit. Two forms are accepted,
// a single line and a fenced block; the single line wins when both are
// present.
var (
	commitLineRe  = regexp.MustCompile(`(?m)^COMMIT_MSG:\s*(.+)$`)
	commitBlockRe = regexp.MustCompile(`(?s)<commit-message>\s*(.*?)\s*</commit-message>`)
)

func parseCommitMessage(output string) (string, bool) {
	if m := commitLineRe.FindStringSubmatch(output); m != nil {
		msg := strings.TrimSpace(m[1])
		if msg != "" {
			return msg, true
		}
	}
	if m := commitBlockRe.FindStringSubmatch(output); m != nil {
		msg := strings.TrimSpace(m[1])
		if msg != "" {
			return msg, true
		}
	}
	return "", false
}
