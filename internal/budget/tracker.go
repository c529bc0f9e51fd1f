package budget

import (
	"sync"

	"github.com/shopspring/decimal"
)

// MaxDecimal is a sentinel value representing an effectively unlimited remaining budget.
var MaxDecimal = decimal.New(1, 18) // 1e18

// Usage holds token counts for a single API call.
type Usage struct {
	InputTokens              int
	OutputTokens             int
	CacheReadInputTokens     int
	CacheCreationInputTokens int
}

// Add returns the sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		InputTokens:              u.InputTokens + o.InputTokens,
		OutputTokens:             u.OutputTokens + o.OutputTokens,
		CacheReadInputTokens:     u.CacheReadInputTokens + o.CacheReadInputTokens,
		CacheCreationInputTokens: u.CacheCreationInputTokens + o.CacheCreationInputTokens,
	}
}

// Cost prices one call's usage. Unknown models cost zero.
func (t Table) Cost(model string, usage Usage) decimal.Decimal {
	pricing, ok := t.Lookup(model)
	if !ok {
		return decimal.Zero
	}
	totalInput := usage.InputTokens + usage.CacheReadInputTokens + usage.CacheCreationInputTokens
	return pricing.CostForInput(usage.InputTokens, usage.CacheReadInputTokens, usage.CacheCreationInputTokens, totalInput).
		Add(pricing.CostForOutput(usage.OutputTokens, totalInput))
}

// Tracker tracks cumulative token usage and cost across API calls.
// It is safe for concurrent use.
type Tracker struct {
	maxBudget  decimal.Decimal // 0 = unlimited
	totalCost  decimal.Decimal
	totalUsage Usage
	pricing    Table
	mu         sync.Mutex
}

// NewTracker creates a new tracker. maxBudget of 0 means unlimited. A nil
// pricing table uses DefaultPricing.
func NewTracker(maxBudget decimal.Decimal, pricing Table) *Tracker {
	if pricing == nil {
		pricing = DefaultPricing
	}
	return &Tracker{
		maxBudget: maxBudget,
		totalCost: decimal.Zero,
		pricing:   pricing,
	}
}

// RecordUsage records token usage for a single API call and returns its cost.
func (b *Tracker) RecordUsage(model string, usage Usage) decimal.Decimal {
	cost := b.pricing.Cost(model, usage)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalUsage = b.totalUsage.Add(usage)
	b.totalCost = b.totalCost.Add(cost)
	return cost
}

// TotalCost returns the cumulative cost across all recorded usage.
func (b *Tracker) TotalCost() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalCost
}

// TotalUsage returns the cumulative token usage across all recorded calls.
func (b *Tracker) TotalUsage() Usage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalUsage
}

// Remaining returns the remaining budget, or MaxDecimal when unlimited.
func (b *Tracker) Remaining() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.maxBudget.IsZero() {
		return MaxDecimal
	}
	return b.maxBudget.Sub(b.totalCost)
}

// Exhausted reports whether total cost has reached maxBudget. Always false
// when unlimited.
func (b *Tracker) Exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.maxBudget.IsZero() {
		return false
	}
	return b.totalCost.GreaterThanOrEqual(b.maxBudget)
}
