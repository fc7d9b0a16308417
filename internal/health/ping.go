package health

import (
	"context"
	"fmt"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// HealthPinger can be implemented by components to expose a specialized
// health check. HealthPing must return nil when the component is healthy.
type HealthPinger interface {
	HealthPing(ctx context.Context) error
}

// PingChecker caches the result of periodic HealthPing calls.
type PingChecker struct {
	name         string
	target       HealthPinger
	healthy      atomic.Int32
	log          zerolog.Logger
	probeTimeout time.Duration
}

// NewPingChecker starts unhealthy until the first successful probe.
func NewPingChecker(name string, target HealthPinger, log zerolog.Logger, probeTimeout time.Duration) *PingChecker {
	if probeTimeout <= 0 {
		probeTimeout = 2 * time.Second
	}
	return &PingChecker{name: name, target: target, log: log, probeTimeout: probeTimeout}
}

func (c *PingChecker) Name() string { return c.name }

// IsHealthy returns the cached health status (non-blocking).
func (c *PingChecker) IsHealthy() bool { return c.healthy.Load() == 1 }

// Start begins periodic health checking.
func (c *PingChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Check runs one probe and updates the cached flag.
func (c *PingChecker) Check(ctx context.Context) bool {
	checkCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	if err := c.target.HealthPing(checkCtx); err != nil {
		c.log.Error().Stack().
			Str("checker", c.name).
			Err(err).
			Msg("health check failed")
		c.healthy.Store(0)
		return false
	}
	c.healthy.Store(1)
	return true
}

// BinaryPinger reports healthy when an executable can be found on PATH.
type BinaryPinger struct {
	Path string
}

func (b BinaryPinger) HealthPing(context.Context) error {
	if _, err := exec.LookPath(b.Path); err != nil {
		return fmt.Errorf("%s not available: %w", b.Path, err)
	}
	return nil
}
