package subagent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"

	delegate "github.com/armatrix/delegate-go"
	"github.com/armatrix/delegate-go/internal/budget"
)

// ErrNoProvider is returned when no preference in the chain could be served.
var ErrNoProvider = errors.New("subagent: no provider available")

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// Completion is a provider's answer to one turn.
type Completion struct {
	Text  string
	Usage budget.Usage
}

// Provider is a model vendor a ProviderBackend can route turns to.
type Provider interface {
	Name() string
	// Models lists the model names the provider serves. It is consulted only
	// to resolve glob preferences.
	Models(ctx context.Context) ([]string, error)
	Complete(ctx context.Context, model string, task *Task) (*Completion, error)
}

// ProviderBackend runs turns against an ordered provider/model preference
// chain. Each provider sits behind its own circuit breaker; a failed or
// open provider falls through to the next preference. Calls are spaced by
// the task's inherited MinCallDelayKey setting.
type ProviderBackend struct {
	providers map[string]*breakerProvider
	order     []string
	defaults  []delegate.ProviderPreference
	pricing   budget.Table
	maxSpend  decimal.Decimal
	tracker   *budget.Tracker
	pacer     pacer
	logger    *slog.Logger
}

type breakerProvider struct {
	Provider
	breaker *gobreaker.CircuitBreaker[*Completion]
}

// BackendOption configures a ProviderBackend.
type BackendOption func(*ProviderBackend)

// WithDefaultPreferences sets the chain used when a task carries none.
func WithDefaultPreferences(prefs ...delegate.ProviderPreference) BackendOption {
	return func(b *ProviderBackend) { b.defaults = prefs }
}

// WithPricing sets the pricing table used to cost turns.
func WithPricing(t budget.Table) BackendOption {
	return func(b *ProviderBackend) { b.pricing = t }
}

// WithSpendLimit caps the total cost of all turns served by the backend.
// Zero means unlimited.
func WithSpendLimit(max decimal.Decimal) BackendOption {
	return func(b *ProviderBackend) { b.maxSpend = max }
}

// WithBackendLogger sets the structured logger.
func WithBackendLogger(l *slog.Logger) BackendOption {
	return func(b *ProviderBackend) { b.logger = l }
}

// NewProviderBackend creates a backend over providers. Without default
// preferences, a task with no preferences tries each provider in the given
// order with its greatest listed model.
func NewProviderBackend(providers []Provider, opts ...BackendOption) *ProviderBackend {
	b := &ProviderBackend{
		providers: make(map[string]*breakerProvider, len(providers)),
		pricing:   budget.DefaultPricing,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, fn := range opts {
		fn(b)
	}
	b.tracker = budget.NewTracker(b.maxSpend, b.pricing)
	for _, p := range providers {
		name := p.Name()
		b.providers[name] = &breakerProvider{Provider: p, breaker: b.newBreaker(name)}
		b.order = append(b.order, name)
	}
	return b
}

func (b *ProviderBackend) newBreaker(name string) *gobreaker.CircuitBreaker[*Completion] {
	logger := b.logger
	return gobreaker.NewCircuitBreaker[*Completion](gobreaker.Settings{
		Name:        "provider:" + name,
		MaxRequests: 1,
		Interval:    defaultCBInterval,
		Timeout:     defaultCBTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= defaultCBMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		// A caller giving up says nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}

// Spent returns the cumulative cost and token usage across all turns.
func (b *ProviderBackend) Spent() (decimal.Decimal, budget.Usage) {
	return b.tracker.TotalCost(), b.tracker.TotalUsage()
}

// Run implements Backend.
func (b *ProviderBackend) Run(ctx context.Context, task *Task) (*Output, error) {
	if b.tracker.Exhausted() {
		return nil, fmt.Errorf("%w: spent %s", ErrBudgetExceeded, b.tracker.TotalCost().StringFixed(4))
	}
	delay := minCallDelay(task.OrchestratorConfig)
	var errs []error
	for _, pref := range b.chain(task) {
		p, ok := b.providers[pref.Provider]
		if !ok {
			errs = append(errs, fmt.Errorf("%s: unknown provider", pref))
			continue
		}
		model, err := b.resolve(ctx, p, pref)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if err := b.pacer.wait(ctx, delay); err != nil {
			return nil, err
		}
		comp, err := p.breaker.Execute(func() (*Completion, error) {
			return p.Complete(ctx, model, task)
		})
		if err == nil {
			return &Output{
				Text:  comp.Text,
				Model: pref.Provider + "/" + model,
				Usage: comp.Usage,
				Cost:  b.tracker.RecordUsage(model, comp.Usage),
			}, nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("provider %q circuit open: %w", pref.Provider, err)
		}
		if ctx.Err() != nil {
			return nil, err
		}
		b.logger.Warn("provider failed, trying next preference",
			"provider", pref.Provider, "model", model, "session_id", task.SessionID, "error", err)
		errs = append(errs, fmt.Errorf("%s/%s: %w", pref.Provider, model, err))
	}
	return nil, fmt.Errorf("%w: %w", ErrNoProvider, errors.Join(errs...))
}

func (b *ProviderBackend) chain(task *Task) []delegate.ProviderPreference {
	if len(task.Preferences) > 0 {
		return task.Preferences
	}
	if len(b.defaults) > 0 {
		return b.defaults
	}
	prefs := make([]delegate.ProviderPreference, 0, len(b.order))
	for _, name := range b.order {
		prefs = append(prefs, delegate.ProviderPreference{Provider: name, Model: "*"})
	}
	return prefs
}

func (b *ProviderBackend) resolve(ctx context.Context, p Provider, pref delegate.ProviderPreference) (string, error) {
	if !pref.IsPattern() {
		return pref.Model, nil
	}
	models, err := p.Models(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: list models: %w", pref, err)
	}
	model, ok := pref.Resolve(models)
	if !ok {
		return "", fmt.Errorf("%s: no matching model", pref)
	}
	return model, nil
}
