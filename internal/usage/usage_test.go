package usage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulateFieldWise(t *testing.T) {
	var total TokenUsage

	total = Accumulate(total, TokenUsage{InputTokens: Int(10)})
	total = Accumulate(total, TokenUsage{OutputTokens: Int(5)})

	require.NotNil(t, total.InputTokens)
	require.NotNil(t, total.OutputTokens)
	assert.Equal(t, 10, *total.InputTokens)
	assert.Equal(t, 5, *total.OutputTokens)

	// Neither iteration reported total tokens, so it stays absent.
	assert.Nil(t, total.TotalTokens)
	assert.Nil(t, total.CostUSD)
}

func TestAccumulateAddsPresentFields(t *testing.T) {
	var total TokenUsage

	total = Accumulate(total, TokenUsage{InputTokens: Int(10), CostUSD: Float(0.02)})
	total = Accumulate(total, TokenUsage{InputTokens: Int(7), CostUSD: Float(0.03)})

	assert.Equal(t, 17, *total.InputTokens)
	assert.InDelta(t, 0.05, *total.CostUSD, 1e-9)
}

func TestAccumulateEmptyDelta(t *testing.T) {
	total := TokenUsage{InputTokens: Int(3)}

	total = Accumulate(total, TokenUsage{})

	assert.Equal(t, 3, *total.InputTokens)
	assert.True(t, TokenUsage{}.IsEmpty())
	assert.False(t, total.IsEmpty())
}

func TestString(t *testing.T) {
	assert.Equal(t, "", TokenUsage{}.String())

	u := TokenUsage{InputTokens: Int(1200), OutputTokens: Int(340), CostUSD: Float(0.04)}
	assert.Equal(t, "in=1.2k out=340 cost=$0.04", u.String())
}

func TestFormatCost(t *testing.T) {
	assert.Equal(t, "<$0.01", FormatCost(0.004))
	assert.Equal(t, "$1.50", FormatCost(1.5))
}

func TestFormatTokens(t *testing.T) {
	assert.Equal(t, "999", FormatTokens(999))
	assert.Equal(t, "12.5k", FormatTokens(12500))
}
