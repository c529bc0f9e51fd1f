// Package budget prices model usage and tracks per-sub-session spend.
package budget

import (
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/shopspring/decimal"
)

// ModelPricing holds per-model token prices in USD per million tokens.
type ModelPricing struct {
	InputPerMTok         decimal.Decimal
	OutputPerMTok        decimal.Decimal
	LongInputPerMTok     decimal.Decimal // Premium rate when total input > LongContextThreshold
	LongOutputPerMTok    decimal.Decimal
	CacheWritePerMTok    decimal.Decimal
	CacheReadPerMTok     decimal.Decimal
	LongContextThreshold int // 0 = no long context pricing
}

var million = decimal.NewFromInt(1_000_000)

// CostForInput calculates the input cost considering long context threshold
// and cache tokens. totalInputTokens decides whether long context pricing
// applies.
func (p ModelPricing) CostForInput(inputTokens, cacheReadTokens, cacheWriteTokens, totalInputTokens int) decimal.Decimal {
	rate := p.InputPerMTok
	if p.LongContextThreshold > 0 && totalInputTokens > p.LongContextThreshold {
		rate = p.LongInputPerMTok
	}

	cost := decimal.NewFromInt(int64(inputTokens)).Mul(rate).Div(million)
	cost = cost.Add(decimal.NewFromInt(int64(cacheReadTokens)).Mul(p.CacheReadPerMTok).Div(million))
	cost = cost.Add(decimal.NewFromInt(int64(cacheWriteTokens)).Mul(p.CacheWritePerMTok).Div(million))

	return cost
}

// CostForOutput calculates the output cost considering long context threshold.
func (p ModelPricing) CostForOutput(outputTokens, totalInputTokens int) decimal.Decimal {
	rate := p.OutputPerMTok
	if p.LongContextThreshold > 0 && totalInputTokens > p.LongContextThreshold {
		rate = p.LongOutputPerMTok
	}

	return decimal.NewFromInt(int64(outputTokens)).Mul(rate).Div(million)
}

// Table maps model names or glob patterns to pricing.
type Table map[string]ModelPricing

// Lookup finds pricing for model. An exact key wins; otherwise the longest
// matching glob pattern is used so "claude-haiku-4*" beats "claude-*".
func (t Table) Lookup(model string) (ModelPricing, bool) {
	if p, ok := t[model]; ok {
		return p, true
	}
	var patterns []string
	for k := range t {
		if ok, err := doublestar.Match(k, model); err == nil && ok {
			patterns = append(patterns, k)
		}
	}
	if len(patterns) == 0 {
		return ModelPricing{}, false
	}
	slices.SortFunc(patterns, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a, b)
	})
	return t[patterns[0]], true
}

// DefaultPricing contains built-in pricing (USD per million tokens).
var DefaultPricing = Table{
	"claude-opus-4*": {
		InputPerMTok:         decimal.NewFromFloat(5),
		OutputPerMTok:        decimal.NewFromFloat(25),
		LongInputPerMTok:     decimal.NewFromFloat(10),
		LongOutputPerMTok:    decimal.NewFromFloat(37.5),
		CacheWritePerMTok:    decimal.NewFromFloat(6.25),
		CacheReadPerMTok:     decimal.NewFromFloat(0.5),
		LongContextThreshold: 200_000,
	},
	"claude-sonnet-4*": {
		InputPerMTok:         decimal.NewFromFloat(3),
		OutputPerMTok:        decimal.NewFromFloat(15),
		LongInputPerMTok:     decimal.NewFromFloat(6),
		LongOutputPerMTok:    decimal.NewFromFloat(22.5),
		CacheWritePerMTok:    decimal.NewFromFloat(3.75),
		CacheReadPerMTok:     decimal.NewFromFloat(0.3),
		LongContextThreshold: 200_000,
	},
	"claude-haiku-4*": {
		InputPerMTok:      decimal.NewFromFloat(1),
		OutputPerMTok:     decimal.NewFromFloat(5),
		CacheWritePerMTok: decimal.NewFromFloat(1.25),
		CacheReadPerMTok:  decimal.NewFromFloat(0.1),
	},
	"gpt-5*": {
		InputPerMTok:     decimal.NewFromFloat(1.25),
		OutputPerMTok:    decimal.NewFromFloat(10),
		CacheReadPerMTok: decimal.NewFromFloat(0.125),
	},
	"gpt-5-mini*": {
		InputPerMTok:     decimal.NewFromFloat(0.25),
		OutputPerMTok:    decimal.NewFromFloat(2),
		CacheReadPerMTok: decimal.NewFromFloat(0.025),
	},
}
