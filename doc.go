// Package delegate routes task delegation requests from an orchestrating agent
// to named sub-agents running as isolated sub-sessions.
//
// A [Router] classifies every [Request] as either a spawn (start a new
// sub-session for an agent) or a resume (send a follow-up turn to an existing
// sub-session), derives what the child inherits from its parent, and reports
// the outcome as a [Result] instead of returning Go errors.
//
// # Quick Start
//
//	r := delegate.New(
//	    delegate.WithRegistry(delegate.NewMapRegistry(
//	        delegate.AgentDefinition{Name: "researcher", Description: "Finds things"},
//	    )),
//	    delegate.WithSpawner(runner),
//	    delegate.WithResumer(runner),
//	    delegate.WithParentSession(delegate.StaticParent("sess-root", nil)),
//	)
//	res := r.Delegate(ctx, delegate.Request{Agent: "researcher", Instruction: "Find X"})
//	if res.Err != nil {
//	    log.Println(res.Err.Kind, res.Err.Message)
//	}
//
// # Sub-packages
//
//   - [hook] provides lifecycle hook types consumed by the built-in event bus.
//   - [session] provides sub-session stores (MemoryStore, FileStore, SQLiteStore).
//   - [subagent] provides a Runner implementing Spawner and Resumer, plus model backends.
package delegate
