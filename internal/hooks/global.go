package hooks

import (
	"context"
	"log/slog"
	"sync"
)

var (
	globalChain *Chain
	globalOnce  sync.Once
)

// Global returns the process-wide hook chain, created lazily on first use.
// Most callers should prefer an explicitly constructed Chain; Global exists
// for wiring third-party hook plugins that have no reference to a manager.
func Global() *Chain {
	globalOnce.Do(func() {
		globalChain = NewChain(nil)
	})
	return globalChain
}

// SetGlobalChain replaces the global chain. Only call during initialization.
func SetGlobalChain(c *Chain) {
	globalChain = c
}

// SetGlobalLogger sets the logger used by the global chain.
func SetGlobalLogger(logger *slog.Logger) {
	Global().logger = logger.With("component", "hooks")
}

// On registers a hook on the global chain.
func On(event EventType, hook Hook, opts ...RegisterOption) string {
	return Global().Register(event, hook, opts...)
}

// Fire dispatches through the global chain.
func Fire(ctx context.Context, input *Input) (*Output, error) {
	return Global().Fire(ctx, input)
}
