// Package subagent runs delegated sub-sessions.
//
// A [Runner] implements both [delegate.Spawner] and [delegate.Resumer]. Each
// turn runs on its own goroutine through a [Backend] and the transcript is
// persisted to a [session.Store] so it can be resumed later.
package subagent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	delegate "github.com/armatrix/delegate-go"
	"github.com/armatrix/delegate-go/internal/budget"
	"github.com/armatrix/delegate-go/session"
)

// Sentinel errors for the subagent package.
var (
	ErrNoBackend      = errors.New("subagent: no backend configured")
	ErrRunNotFound    = errors.New("subagent: run not found")
	ErrRunCancelled   = errors.New("subagent: run cancelled")
	ErrBudgetExceeded = errors.New("subagent: budget exceeded")
)

// Result holds the outcome of one completed turn.
type Result struct {
	Output    string
	SessionID string
	Model     string
	Usage     budget.Usage
	// Cost is the cost of this turn; the record carries the running total.
	Cost decimal.Decimal
	Err  error
}

// runHandle tracks an active turn.
type runHandle struct {
	id        string
	sessionID string
	cancel    context.CancelFunc
	result    chan *Result
}

// Runner manages sub-session lifecycle: spawn, resume, track and collect
// results.
type Runner struct {
	backend     Backend
	store       session.Store
	registry    delegate.AgentRegistry
	parentTools *delegate.ToolRegistry
	parentHooks []string
	toolPolicy  delegate.InheritancePolicy
	hookPolicy  delegate.InheritancePolicy
	maxBudget   decimal.Decimal
	logger      *slog.Logger

	mu     sync.RWMutex
	active map[string]*runHandle
	locks  map[string]*sessionLock
}

var (
	_ delegate.Spawner = (*Runner)(nil)
	_ delegate.Resumer = (*Runner)(nil)
)

// NewRunner creates a Runner that executes turns with backend.
func NewRunner(backend Backend, opts ...Option) *Runner {
	o := resolveOptions(opts)
	return &Runner{
		backend:     backend,
		store:       o.store,
		registry:    o.registry,
		parentTools: o.parentTools,
		parentHooks: o.parentHooks,
		toolPolicy:  o.toolPolicy,
		hookPolicy:  o.hookPolicy,
		maxBudget:   o.maxBudget,
		logger:      o.logger,
		active:      make(map[string]*runHandle),
		locks:       make(map[string]*sessionLock),
	}
}

// Store returns the runner's session store.
func (r *Runner) Store() session.Store { return r.store }

// Spawn implements delegate.Spawner. It creates a record for the generated
// sub-session id, runs the first turn and waits for it.
func (r *Runner) Spawn(ctx context.Context, req delegate.SpawnRequest) (delegate.SpawnResult, error) {
	reg := req.Registry
	if reg == nil {
		reg = r.registry
	}
	var def delegate.AgentDefinition
	if reg != nil {
		d, ok := reg.Lookup(req.AgentName)
		if !ok {
			return delegate.SpawnResult{}, fmt.Errorf("%w: %s", delegate.ErrAgentNotFound, req.AgentName)
		}
		def = d
	} else {
		def = delegate.AgentDefinition{Name: req.AgentName}
	}

	parentID := ""
	if req.Parent != nil {
		parentID = req.Parent.ID()
	}
	rec := session.NewRecord(req.SubSessionID, parentID, req.AgentName)
	task := &Task{
		SessionID:          req.SubSessionID,
		Agent:              def,
		Instruction:        req.Instruction,
		Tools:              ChildTools(r.parentTools, def, req.ToolPolicy),
		Hooks:              ChildHooks(r.parentHooks, def, req.HookPolicy),
		Preferences:        req.ProviderPreferences,
		OrchestratorConfig: req.OrchestratorConfig,
		Depth:              req.Depth,
	}
	r.logger.Debug("spawning sub-session",
		"session_id", task.SessionID, "agent", def.Name, "tools", task.Tools.Len(), "hooks", len(task.Hooks))

	unlock := r.lockSession(rec.ID)
	defer unlock()
	return r.run(ctx, rec, task)
}

// Resume implements delegate.Resumer. It reloads the transcript and runs one
// more turn. A missing record yields an error wrapping
// delegate.ErrSessionNotFound.
func (r *Runner) Resume(ctx context.Context, sessionID, instruction string) (delegate.SpawnResult, error) {
	if r.store == nil {
		return delegate.SpawnResult{}, fmt.Errorf("%w: %s (no session store)", delegate.ErrSessionNotFound, sessionID)
	}

	unlock := r.lockSession(sessionID)
	defer unlock()

	rec, err := r.store.Load(ctx, sessionID)
	if err != nil {
		return delegate.SpawnResult{}, err
	}

	def := delegate.AgentDefinition{Name: rec.AgentName}
	if r.registry != nil {
		if d, ok := r.registry.Lookup(rec.AgentName); ok {
			def = d
		}
	}
	task := &Task{
		SessionID:   rec.ID,
		Agent:       def,
		Instruction: instruction,
		History:     rec.Messages,
		Tools:       ChildTools(r.parentTools, def, r.toolPolicy),
		Hooks:       ChildHooks(r.parentHooks, def, r.hookPolicy),
		Depth:       delegate.DepthFromContext(ctx) + 1,
	}
	return r.run(ctx, rec, task)
}

func (r *Runner) run(ctx context.Context, rec *session.Record, task *Task) (delegate.SpawnResult, error) {
	if !r.maxBudget.IsZero() && rec.TotalCost.GreaterThanOrEqual(r.maxBudget) {
		return delegate.SpawnResult{}, fmt.Errorf("%w: spent %s of %s", ErrBudgetExceeded, rec.TotalCost, r.maxBudget)
	}

	runID, err := r.Start(ctx, task)
	if err != nil {
		return delegate.SpawnResult{}, err
	}
	res, err := r.Wait(ctx, runID)
	if err != nil {
		return delegate.SpawnResult{}, err
	}
	if res.Err != nil {
		return delegate.SpawnResult{}, res.Err
	}

	rec.Append(
		delegate.Message{Role: delegate.RoleUser, Content: task.Instruction},
		delegate.Message{Role: delegate.RoleAssistant, Content: res.Output},
	)
	rec.NumTurns++
	rec.TotalCost = rec.TotalCost.Add(res.Cost)
	if res.Model != "" {
		rec.Model = res.Model
	}
	if r.store != nil {
		if err := r.store.Save(ctx, rec); err != nil {
			return delegate.SpawnResult{}, fmt.Errorf("save sub-session %s: %w", rec.ID, err)
		}
	}
	return delegate.SpawnResult{Output: res.Output, SessionID: rec.ID}, nil
}

// Start runs one turn in a background goroutine and returns its run ID.
func (r *Runner) Start(ctx context.Context, task *Task) (string, error) {
	if r.backend == nil {
		return "", ErrNoBackend
	}

	runID := "run_" + uuid.NewString()
	childCtx, cancel := context.WithCancel(delegate.WithDepth(ctx, task.Depth))
	handle := &runHandle{
		id:        runID,
		sessionID: task.SessionID,
		cancel:    cancel,
		result:    make(chan *Result, 1),
	}

	r.mu.Lock()
	r.active[runID] = handle
	r.mu.Unlock()

	go func() {
		defer cancel()
		handle.result <- r.execute(childCtx, task)
	}()

	return runID, nil
}

func (r *Runner) execute(ctx context.Context, task *Task) (res *Result) {
	res = &Result{SessionID: task.SessionID}
	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("backend panic: %v", p)
		}
	}()

	out, err := r.backend.Run(ctx, task)
	if err != nil {
		res.Err = err
		return res
	}
	if out == nil {
		return res
	}
	res.Output = out.Text
	res.Model = out.Model
	res.Usage = out.Usage
	res.Cost = out.Cost
	return res
}

// Wait blocks until the given run completes and returns its result.
func (r *Runner) Wait(ctx context.Context, runID string) (*Result, error) {
	r.mu.RLock()
	handle, ok := r.active[runID]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	select {
	case <-ctx.Done():
		handle.cancel()
		r.removeHandle(runID)
		return nil, fmt.Errorf("%w: %w", ErrRunCancelled, ctx.Err())
	case result := <-handle.result:
		r.removeHandle(runID)
		return result, nil
	}
}

// Cancel stops a running turn by run ID.
func (r *Runner) Cancel(runID string) {
	r.mu.RLock()
	h, ok := r.active[runID]
	r.mu.RUnlock()
	if ok {
		h.cancel()
	}
}

// Active returns the number of currently running turns.
func (r *Runner) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}

func (r *Runner) removeHandle(runID string) {
	r.mu.Lock()
	delete(r.active, runID)
	r.mu.Unlock()
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// lockSession serializes turns of the same sub-session. The entry is
// dropped once its last holder or waiter unlocks.
func (r *Runner) lockSession(id string) func() {
	r.mu.Lock()
	l, ok := r.locks[id]
	if !ok {
		l = &sessionLock{}
		r.locks[id] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, id)
		}
		r.mu.Unlock()
	}
}
