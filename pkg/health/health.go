// Package health runs liveness and readiness probes for the executor daemon.
package health

import (
	"context"
	"time"
)

// DefaultCheckTimeout bounds every probe
const DefaultCheckTimeout = 5 * time.Second

// NewChecker creates a checker with no probes registered
func NewChecker() *Checker {
	return &Checker{
		started:     time.Now(),
		timeout:     DefaultCheckTimeout,
		readyChecks: make(map[string]CheckFunc),
		liveChecks:  make(map[string]CheckFunc),
	}
}

// SetTimeout changes the per-probe deadline. Non-positive values are ignored.
func (c *Checker) SetTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = d
}

// RegisterReadinessCheck registers a probe that gates /health/ready
func (c *Checker) RegisterReadinessCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readyChecks[name] = check
}

// RegisterLivenessCheck registers a probe that gates /health/live
func (c *Checker) RegisterLivenessCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.liveChecks[name] = check
}

// CheckReadiness runs the readiness probes
func (c *Checker) CheckReadiness(ctx context.Context) Response {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.run(ctx, c.readyChecks)
}

// CheckLiveness runs the liveness probes
func (c *Checker) CheckLiveness(ctx context.Context) Response {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.run(ctx, c.liveChecks)
}

// Check runs every probe, readiness and liveness alike
func (c *Checker) Check(ctx context.Context) Response {
	c.mu.RLock()
	defer c.mu.RUnlock()

	all := make(map[string]CheckFunc, len(c.readyChecks)+len(c.liveChecks))
	for name, fn := range c.liveChecks {
		all[name] = fn
	}
	for name, fn := range c.readyChecks {
		all[name] = fn
	}
	return c.run(ctx, all)
}

func (c *Checker) run(ctx context.Context, checks map[string]CheckFunc) Response {
	resp := Response{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Checks:    make(map[string]Check, len(checks)),
		Uptime:    time.Since(c.started).Seconds(),
	}

	for name, fn := range checks {
		cctx, cancel := context.WithTimeout(ctx, c.timeout)
		start := time.Now()
		check := fn(cctx)
		cancel()

		if check.Name == "" {
			check.Name = name
		}
		check.Duration = time.Since(start)
		check.LastChecked = start
		resp.Checks[name] = check

		// Worst status wins
		switch {
		case check.Status == StatusUnhealthy:
			resp.Status = StatusUnhealthy
		case check.Status == StatusDegraded && resp.Status != StatusUnhealthy:
			resp.Status = StatusDegraded
		}
	}
	return resp
}
