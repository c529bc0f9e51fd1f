package delegate

import "context"

type contextKey int

const (
	ctxKeyDepth contextKey = iota
)

// WithDepth returns a context recording the delegation nesting level.
// The router passes depth+1 to every Spawner call so nested routers running
// inside the child observe it.
func WithDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, ctxKeyDepth, depth)
}

// DepthFromContext returns the delegation nesting level, 0 at the top.
func DepthFromContext(ctx context.Context) int {
	if v, ok := ctx.Value(ctxKeyDepth).(int); ok {
		return v
	}
	return 0
}
