// Package usage tracks token usage and cost across loop iterations.
//
// All fields are optional: an agent tool that never reports cost must
// produce "no cost data" in the summary, not "$0.00". Accumulation is
// therefore field-wise and a field stays nil until some iteration
// reports it.
package usage

import (
	"fmt"
	"strings"
)

// TokenUsage is a partial per-iteration usage snapshot.
type TokenUsage struct {
	InputTokens      *int     `json:"inputTokens,omitempty"`
	OutputTokens     *int     `json:"outputTokens,omitempty"`
	TotalTokens      *int     `json:"totalTokens,omitempty"`
	CacheReadTokens  *int     `json:"cacheReadTokens,omitempty"`
	CacheWriteTokens *int     `json:"cacheWriteTokens,omitempty"`
	CostUSD          *float64 `json:"costUSD,omitempty"`
}

// IsEmpty reports whether no field is populated.
func (u TokenUsage) IsEmpty() bool {
	return u.InputTokens == nil && u.OutputTokens == nil && u.TotalTokens == nil &&
		u.CacheReadTokens == nil && u.CacheWriteTokens == nil && u.CostUSD == nil
}

// Accumulate merges delta into total field-wise. A field present in delta
// is added to total's value for that field; fields absent from both stay
// absent in the result.
func Accumulate(total, delta TokenUsage) TokenUsage {
	total.InputTokens = addInt(total.InputTokens, delta.InputTokens)
	total.OutputTokens = addInt(total.OutputTokens, delta.OutputTokens)
	total.TotalTokens = addInt(total.TotalTokens, delta.TotalTokens)
	total.CacheReadTokens = addInt(total.CacheReadTokens, delta.CacheReadTokens)
	total.CacheWriteTokens = addInt(total.CacheWriteTokens, delta.CacheWriteTokens)
	total.CostUSD = addFloat(total.CostUSD, delta.CostUSD)
	return total
}

func addInt(total, delta *int) *int {
	if delta == nil {
		return total
	}
	sum := *delta
	if total != nil {
		sum += *total
	}
	return &sum
}

func addFloat(total, delta *float64) *float64 {
	if delta == nil {
		return total
	}
	sum := *delta
	if total != nil {
		sum += *total
	}
	return &sum
}

// Int returns a pointer to n. Convenience for building literals.
func Int(n int) *int { return &n }

// Float returns a pointer to f.
func Float(f float64) *float64 { return &f }

// String renders the populated fields in a compact single line,
// e.g. "in=1.2k out=340 cost=$0.04". Empty usage renders as "".
func (u TokenUsage) String() string {
	var parts []string
	if u.InputTokens != nil {
		parts = append(parts, "in="+FormatTokens(*u.InputTokens))
	}
	if u.OutputTokens != nil {
		parts = append(parts, "out="+FormatTokens(*u.OutputTokens))
	}
	if u.TotalTokens != nil {
		parts = append(parts, "total="+FormatTokens(*u.TotalTokens))
	}
	if u.CacheReadTokens != nil {
		parts = append(parts, "cache_read="+FormatTokens(*u.CacheReadTokens))
	}
	if u.CacheWriteTokens != nil {
		parts = append(parts, "cache_write="+FormatTokens(*u.CacheWriteTokens))
	}
	if u.CostUSD != nil {
		parts = append(parts, "cost="+FormatCost(*u.CostUSD))
	}
	return strings.Join(parts, " ")
}

// FormatCost returns a human-readable cost string
func FormatCost(cost float64) string {
	if cost < 0.01 {
		return "<$0.01"
	}
	return fmt.Sprintf("$%.2f", cost)
}

// FormatTokens returns a human-readable token count
func FormatTokens(tokens int) string {
	if tokens < 1000 {
		return fmt.Sprintf("%d", tokens)
	}
	return fmt.Sprintf("%.1fk", float64(tokens)/1000)
}
