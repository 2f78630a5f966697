package process

import (
	"context"

	"github.com/kbukum/meetscribe/provider"
)

// Runner executes subprocesses through a persistent resilience chain, so a
// bulkhead can cap concurrent ffmpeg processes across all jobs.
type Runner struct {
	state *provider.ResilienceState
}

// NewRunner creates a Runner with the given resilience config.
// An empty config makes Run call process.Run directly.
func NewRunner(cfg provider.ResilienceConfig) *Runner {
	return &Runner{state: provider.BuildResilience(cfg)}
}

// Run executes a subprocess through the resilience chain.
func (r *Runner) Run(ctx context.Context, cmd Command) (*Result, error) {
	if r == nil || r.state == nil {
		return Run(ctx, cmd)
	}
	return provider.ExecuteWithResilience(ctx, r.state, func() (*Result, error) {
		return Run(ctx, cmd)
	})
}
