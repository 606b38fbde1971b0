// Package health runs the readiness checks behind /readyz.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Status represents the health status of a dependency.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// CheckFunc is a function that checks a dependency's health.
type CheckFunc func(ctx context.Context) Status

type check struct {
	fn       CheckFunc
	critical bool
}

// Report is the outcome of one round of checks.
type Report struct {
	Ready  bool              `json:"ready"`
	Checks map[string]Status `json:"checks"`
}

// Checker manages health checks for all dependencies.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]check
	timeout time.Duration
	logger  zerolog.Logger
}

// NewChecker creates a health checker whose checks each get timeout.
func NewChecker(timeout time.Duration, logger zerolog.Logger) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		checks:  make(map[string]check),
		timeout: timeout,
		logger:  logger.With().Str("component", "health").Logger(),
	}
}

// Register adds a named check. Only a critical check that is down makes the
// service not ready; the others are reported.
func (c *Checker) Register(name string, critical bool, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check{fn: fn, critical: critical}
}

// Run executes all checks concurrently.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]check, len(c.checks))
	for k, v := range c.checks {
		checks[k] = v
	}
	c.mu.RUnlock()

	report := Report{Ready: true, Checks: make(map[string]Status, len(checks))}
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, chk := range checks {
		wg.Add(1)
		go func(name string, chk check) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			s := chk.fn(checkCtx)
			mu.Lock()
			report.Checks[name] = s
			if s == StatusDown && chk.critical {
				report.Ready = false
			}
			mu.Unlock()
		}(name, chk)
	}
	wg.Wait()

	if !report.Ready {
		c.logger.Warn().Interface("checks", report.Checks).Msg("service not ready")
	}
	return report
}

// Ping adapts an error-returning probe: nil is ok, anything else is down.
func Ping(fn func(ctx context.Context) error) CheckFunc {
	return func(ctx context.Context) Status {
		if err := fn(ctx); err != nil {
			return StatusDown
		}
		return StatusOK
	}
}

// Enabled reports an optional integration: ok when configured, degraded
// otherwise.
func Enabled(configured bool) CheckFunc {
	return func(context.Context) Status {
		if configured {
			return StatusOK
		}
		return StatusDegraded
	}
}
