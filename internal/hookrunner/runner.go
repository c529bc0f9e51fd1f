// Package hookrunner provides the internal runner that executes hook matchers.
package hookrunner

import (
	"context"
	"fmt"
	"regexp"
	"time"

	pubhook "github.com/armatrix/delegate-go/hook"
)

const defaultTimeout = 30 * time.Second

// Runner executes hooks matched by event and agent name.
type Runner struct {
	matchers []matcherEntry
}

type matcherEntry struct {
	event   pubhook.Event
	pattern *regexp.Regexp // nil = match all agents
	hooks   []pubhook.Func
	timeout time.Duration
}

// New creates a Runner from public Matcher definitions.
// Returns an error if any regex pattern is invalid.
func New(matchers []pubhook.Matcher) (*Runner, error) {
	entries := make([]matcherEntry, 0, len(matchers))
	for i, m := range matchers {
		entry := matcherEntry{
			event:   m.Event,
			hooks:   m.Hooks,
			timeout: m.Timeout,
		}
		if entry.timeout == 0 {
			entry.timeout = defaultTimeout
		}
		if m.Pattern != "" {
			re, err := regexp.Compile(m.Pattern)
			if err != nil {
				return nil, fmt.Errorf("matcher[%d]: invalid pattern %q: %w", i, m.Pattern, err)
			}
			entry.pattern = re
		}
		entries = append(entries, entry)
	}
	return &Runner{matchers: entries}, nil
}

// Len returns the number of matchers.
func (r *Runner) Len() int { return len(r.matchers) }

// Dispatch runs every matcher registered for event whose pattern matches the
// input's agent name. The first hook error stops dispatch and is returned.
func (r *Runner) Dispatch(ctx context.Context, event pubhook.Event, input *pubhook.Input) error {
	for _, entry := range r.matchers {
		if entry.event != event {
			continue
		}
		if entry.pattern != nil && !entry.pattern.MatchString(input.AgentName) {
			continue
		}

		tctx, cancel := context.WithTimeout(ctx, entry.timeout)
		err := runHooks(tctx, entry.hooks, input)
		cancel()
		if err != nil {
			return fmt.Errorf("hook %s: %w", event, err)
		}
	}
	return nil
}

// runHooks executes a slice of hook functions in order.
// It stops early on error or when the context is cancelled.
func runHooks(ctx context.Context, hooks []pubhook.Func, input *pubhook.Input) error {
	for _, fn := range hooks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, input); err != nil {
			return err
		}
	}
	return nil
}
