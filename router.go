package delegate

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/armatrix/delegate-go/hook"
	"github.com/armatrix/delegate-go/internal/hookrunner"
)

const tracerName = "github.com/armatrix/delegate-go"

// Router handles delegation requests. It holds no per-request state; the
// same Router may serve many concurrent Delegate calls.
type Router struct {
	registry        AgentRegistry
	spawner         Spawner
	resumer         Resumer
	contextProvider ContextProvider
	sink            EventSink
	parent          ParentSession
	toolPolicy      InheritancePolicy
	hookPolicy      InheritancePolicy
	maxDepth        int
	logger          *slog.Logger
	tracer          trace.Tracer
}

// New creates a Router. Inheritance policies are resolved once here.
func New(opts ...Option) *Router {
	o := resolveOptions(opts)

	sinks := slices.Clone(o.sinks)
	if len(o.hookMatchers) > 0 {
		runner, err := hookrunner.New(o.hookMatchers)
		if err != nil {
			o.logger.Warn("hooks disabled", "error", err)
		} else {
			sinks = append(sinks, &hookSink{runner: runner})
		}
	}
	var sink EventSink
	switch len(sinks) {
	case 0:
	case 1:
		sink = sinks[0]
	default:
		sink = multiSink(sinks)
	}

	tp := o.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	return &Router{
		registry:        o.registry,
		spawner:         o.spawner,
		resumer:         o.resumer,
		contextProvider: o.contextProvider,
		sink:            sink,
		parent:          o.parent,
		toolPolicy:      o.config.ToolPolicy(),
		hookPolicy:      o.config.HookPolicy(),
		maxDepth:        o.config.maxDepth(),
		logger:          o.logger,
		tracer:          tp.Tracer(tracerName),
	}
}

// Registry returns the agent registry, or nil.
func (r *Router) Registry() AgentRegistry { return r.registry }

// Policies returns the resolved tool and hook inheritance policies.
func (r *Router) Policies() (tools, hooks InheritancePolicy) { return r.toolPolicy, r.hookPolicy }

// Delegate handles one request and always returns a Result; failures are
// reported in Result.Err and never as panics or Go errors.
func (r *Router) Delegate(ctx context.Context, req Request) Result {
	req = req.normalized()

	if req.Instruction == "" {
		return r.reject(ctx, req, newError(KindEmptyInstruction, nil, "Instruction cannot be empty"))
	}
	if req.Mode() == ModeResume {
		return r.resume(ctx, req)
	}
	return r.spawn(ctx, req)
}

func (r *Router) spawn(ctx context.Context, req Request) Result {
	// inheritance and provider fields only apply to new sub-sessions
	if err := req.Validate(); err != nil {
		return r.reject(ctx, req, newError(KindInvalidRequest, err, "%s", err.Error()))
	}
	if req.Agent == "" {
		return r.reject(ctx, req, newError(KindMissingAgent, nil,
			"Agent name required for new delegation (or provide session_id to resume)"))
	}
	if r.registry == nil {
		return r.reject(ctx, req, newError(KindAgentNotFound, ErrAgentNotFound, "Agent '%s' not found", req.Agent))
	}
	if _, ok := r.registry.Lookup(req.Agent); !ok {
		return r.reject(ctx, req, newError(KindAgentNotFound, ErrAgentNotFound, "Agent '%s' not found", req.Agent))
	}

	var prefs []ProviderPreference
	if len(req.ProviderPreferences) > 0 {
		prefs = slices.Clone(req.ProviderPreferences)
	}

	parentID := r.parent.ID()
	subID := GenerateSubSessionID(parentID, req.Agent)
	depth := DepthFromContext(ctx) + 1

	ctx, span := r.tracer.Start(ctx, "delegate.spawn", trace.WithAttributes(
		attribute.String("delegate.agent", req.Agent),
		attribute.String("delegate.sub_session_id", subID),
		attribute.String("delegate.parent_session_id", parentID),
		attribute.Int("delegate.depth", depth),
	))
	defer span.End()

	ids := map[string]any{
		"agent":             req.Agent,
		"sub_session_id":    subID,
		"parent_session_id": parentID,
	}
	r.emit(ctx, EventAgentSpawned, ids)
	r.logger.Info("delegation spawned", "agent", req.Agent, "sub_session_id", subID, "parent_session_id", parentID)

	instruction := req.Instruction
	if msgs, ok := r.parentContext(ctx, req.ContextPolicy()); ok && len(msgs) > 0 {
		r.logger.Debug("inheriting parent context", "messages", len(msgs), "sub_session_id", subID)
		instruction = ComposeInstruction(FormatParentContext(msgs), req.Instruction)
	}

	orchCfg := orchestratorConfig(r.parent)
	if orchCfg != nil {
		r.logger.Debug("inheriting orchestrator config", "sub_session_id", subID)
	}

	r.checkRecursionDepth(depth, subID)

	if r.spawner == nil {
		return r.fail(ctx, span, ids, newError(KindSpawnUnavailable, nil,
			"Session spawning not available. The host must provide a Spawner."))
	}

	res, err := r.spawner.Spawn(WithDepth(ctx, depth), SpawnRequest{
		AgentName:           req.Agent,
		Instruction:         instruction,
		Parent:              r.parent,
		Registry:            r.registry,
		SubSessionID:        subID,
		ToolPolicy:          r.toolPolicy,
		HookPolicy:          r.hookPolicy,
		OrchestratorConfig:  orchCfg,
		ProviderPreferences: prefs,
		Depth:               depth,
	})
	if err != nil {
		if isCancellation(ctx, err) {
			return r.fail(ctx, span, ids, newError(KindCancelled, err, "Delegation cancelled: %s", err.Error()))
		}
		return r.fail(ctx, span, ids, newError(KindDelegationFailed, err, "Delegation failed: %s", err.Error()))
	}

	sessionID := res.SessionID
	if sessionID == "" {
		sessionID = subID
	}
	r.emit(ctx, EventAgentCompleted, with(ids, "success", true))
	r.logger.Info("delegation completed", "agent", req.Agent, "sub_session_id", sessionID)
	span.SetStatus(codes.Ok, "")

	return Result{Response: res.Output, SessionID: sessionID}
}

func (r *Router) resume(ctx context.Context, req Request) Result {
	parentID := r.parent.ID()

	ctx, span := r.tracer.Start(ctx, "delegate.resume", trace.WithAttributes(
		attribute.String("delegate.session_id", req.SessionID),
		attribute.String("delegate.parent_session_id", parentID),
	))
	defer span.End()

	ids := map[string]any{
		"session_id":        req.SessionID,
		"parent_session_id": parentID,
	}
	r.emit(ctx, EventAgentResumed, ids)
	r.logger.Info("delegation resumed", "session_id", req.SessionID, "parent_session_id", parentID)

	if r.resumer == nil {
		return r.fail(ctx, span, ids, newError(KindResumeUnavailable, nil,
			"Session resumption not available. The host must provide a Resumer."))
	}

	res, err := r.resumer.Resume(ctx, req.SessionID, req.Instruction)
	if err != nil {
		switch {
		case errors.Is(err, ErrSessionNotFound):
			return r.fail(ctx, span, ids, newError(KindSessionNotFound, err,
				"Session '%s' not found. May have expired or never existed.", req.SessionID))
		case isCancellation(ctx, err):
			return r.fail(ctx, span, ids, newError(KindCancelled, err, "Resume cancelled: %s", err.Error()))
		}
		return r.fail(ctx, span, ids, newError(KindResumeFailed, err, "Resume failed: %s", err.Error()))
	}

	sessionID := res.SessionID
	if sessionID == "" {
		sessionID = req.SessionID
	}
	r.emit(ctx, EventAgentCompleted, map[string]any{
		"sub_session_id":    sessionID,
		"parent_session_id": parentID,
		"success":           true,
	})
	r.logger.Info("delegation completed", "sub_session_id", sessionID)
	span.SetStatus(codes.Ok, "")

	return Result{Response: res.Output, SessionID: sessionID}
}

// reject reports a request that failed validation before any sub-session
// work started.
func (r *Router) reject(ctx context.Context, req Request, derr *Error) Result {
	payload := map[string]any{
		"tool":              ToolName,
		"parent_session_id": r.parent.ID(),
		"error":             derr.Message,
		"kind":              string(derr.Kind),
	}
	if req.Agent != "" {
		payload["agent"] = req.Agent
	}
	if req.SessionID != "" {
		payload["session_id"] = req.SessionID
	}
	r.emit(ctx, EventToolError, payload)
	r.logger.Warn("delegation rejected", "kind", derr.Kind, "error", derr.Message)
	return Result{Err: derr}
}

// fail reports a failure after the sub-session id is known. Events already
// emitted for the sub-session stay valid.
func (r *Router) fail(ctx context.Context, span trace.Span, ids map[string]any, derr *Error) Result {
	payload := with(ids, "tool", ToolName)
	payload["error"] = derr.Message
	payload["kind"] = string(derr.Kind)
	r.emit(ctx, EventToolError, payload)

	span.RecordError(derr)
	span.SetStatus(codes.Error, derr.Message)
	r.logger.Error("delegation failed", "kind", derr.Kind, "error", derr.Message)
	return Result{Err: derr}
}

func (r *Router) emit(ctx context.Context, name string, payload map[string]any) {
	if r.sink == nil {
		return
	}
	payload = with(payload, "event_id", uuid.NewString())
	if err := r.sink.Emit(ctx, name, payload); err != nil {
		r.logger.Debug("event sink error", "event", name, "error", err)
	}
}

// parentContext fetches and filters parent history. Any retrieval failure
// yields no context; inheritance never fails a delegation.
func (r *Router) parentContext(ctx context.Context, policy ContextPolicy) ([]Message, bool) {
	if policy.Mode == InheritNone {
		return nil, false
	}
	if r.contextProvider == nil {
		r.logger.Debug("no parent context available for inheritance")
		return nil, false
	}
	logged := ContextProviderFunc(func(ctx context.Context) ([]RawMessage, error) {
		history, err := r.contextProvider.Messages(ctx)
		if err != nil {
			r.logger.Warn("failed to extract parent messages", "error", err)
		}
		return history, err
	})
	return ExtractContext(ctx, logged, policy)
}

// checkRecursionDepth logs when depth exceeds the declared limit.
// TODO: enforce MaxRecursionDepth once hosts agree on what a refused nested
// spawn returns to the model.
func (r *Router) checkRecursionDepth(depth int, subID string) {
	if depth > r.maxDepth {
		r.logger.Debug("delegation depth exceeds declared limit", "depth", depth, "max", r.maxDepth, "sub_session_id", subID)
	}
}

// orchestratorConfig reads session.orchestrator.config from the parent's
// configuration tree so children keep the parent's throttling settings.
func orchestratorConfig(parent ParentSession) map[string]any {
	cfg := parent.Config()
	if cfg == nil {
		return nil
	}
	sess, _ := cfg["session"].(map[string]any)
	orch, _ := sess["orchestrator"].(map[string]any)
	oc, _ := orch["config"].(map[string]any)
	if len(oc) == 0 {
		return nil
	}
	return maps.Clone(oc)
}

func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}

// with returns a copy of m with key set to v.
func with(m map[string]any, key string, v any) map[string]any {
	out := make(map[string]any, len(m)+1)
	maps.Copy(out, m)
	out[key] = v
	return out
}

// hookSink dispatches lifecycle events to registered hook matchers.
type hookSink struct {
	runner *hookrunner.Runner
}

func (h *hookSink) Emit(ctx context.Context, name string, payload map[string]any) error {
	ev := hook.Event(name)
	return h.runner.Dispatch(ctx, ev, hook.InputFromPayload(ev, payload))
}
