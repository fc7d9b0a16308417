package bisect

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/recollect/recollect/internal/metrics"
)

// Reaper periodically evicts idle searches so the session store does not grow
// without bound in long-running processes.
type Reaper struct {
	engine *Engine
	ttl    time.Duration
	log    zerolog.Logger
}

func NewReaper(engine *Engine, ttl time.Duration, log zerolog.Logger) *Reaper {
	return &Reaper{engine: engine, ttl: ttl, log: log}
}

// Sweep runs one eviction pass.
func (r *Reaper) Sweep(ctx context.Context) int {
	n, err := r.engine.EvictIdle(ctx, r.engine.now().Add(-r.ttl))
	if err != nil {
		r.log.Error().Err(err).Msg("search reaper sweep failed")
		return 0
	}
	if n > 0 {
		metrics.SearchesEvicted(n)
		r.log.Info().Int("evicted", n).Dur("ttl", r.ttl).Msg("idle searches evicted")
	}
	return n
}

// Start sweeps every interval until ctx is done.
func (r *Reaper) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}
