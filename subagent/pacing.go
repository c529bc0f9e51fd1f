package subagent

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MinCallDelayKey is the inherited orchestrator setting that spaces out
// provider calls, in milliseconds.
const MinCallDelayKey = "min_delay_between_calls_ms"

// minCallDelay reads the call spacing from an orchestrator config.
func minCallDelay(cfg map[string]any) time.Duration {
	var ms float64
	switch v := cfg[MinCallDelayKey].(type) {
	case int:
		ms = float64(v)
	case int64:
		ms = float64(v)
	case float64:
		ms = v
	case json.Number:
		ms, _ = v.Float64()
	case string:
		ms, _ = strconv.ParseFloat(v, 64)
	}
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms * float64(time.Millisecond))
}

// pacer holds one limiter per call spacing so that every sub-session
// inheriting the same setting shares its budget.
type pacer struct {
	mu       sync.Mutex
	limiters map[time.Duration]*rate.Limiter
}

func (p *pacer) wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	p.mu.Lock()
	if p.limiters == nil {
		p.limiters = make(map[time.Duration]*rate.Limiter)
	}
	l, ok := p.limiters[delay]
	if !ok {
		l = rate.NewLimiter(rate.Every(delay), 1)
		p.limiters[delay] = l
	}
	p.mu.Unlock()
	return l.Wait(ctx)
}
