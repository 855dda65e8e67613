// Package groutine starts named goroutines. The name is attached as a pprof
// label so long-lived loops (event collectors, signal watchers) show up
// identifiable in goroutine profiles.
package groutine

import (
	"context"
	"runtime/pprof"
)

// Go starts a named goroutine. If parentCtx is nil, context.Background()
// is used.
func Go(parentCtx context.Context, name string, fn func(ctx context.Context)) {
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	labels := pprof.Labels("goroutine_name", name)

	go pprof.Do(parentCtx, labels, fn)
}
