// Package llm guards outbound language-model calls. Extraction, translation
// and scoring are the only operations in the engine that block on network
// I/O, so every one of them runs through a Guard: a concurrency cap, a rate
// limiter, a per-call timeout and a circuit breaker.
package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ErrCircuitOpen is returned when the circuit breaker is open and rejects
// requests to prevent cascading failures.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// GuardConfig holds the configuration for a Guard.
type GuardConfig struct {
	// MaxInFlight caps simultaneous outbound calls. Default: 4
	MaxInFlight int

	// Timeout bounds a single call. A timed-out call counts as a failure for
	// the caller and the breaker. Default: 30 seconds
	Timeout time.Duration

	// RatePerSecond limits outbound call rate. Zero disables rate limiting.
	RatePerSecond float64

	// MaxFailures is the number of consecutive failures required to trip the
	// circuit. Default: 5
	MaxFailures uint32

	// CooldownPeriod is how long the circuit stays open before allowing a
	// probe request. Default: 30 seconds
	CooldownPeriod time.Duration
}

func (c GuardConfig) withDefaults() GuardConfig {
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = 4
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxFailures == 0 {
		c.MaxFailures = 5
	}
	if c.CooldownPeriod <= 0 {
		c.CooldownPeriod = 30 * time.Second
	}
	return c
}

// Guard serializes access to an external language-model service.
type Guard struct {
	sem     chan struct{}
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
}

// NewGuard creates a Guard with the given configuration.
func NewGuard(cfg GuardConfig) *Guard {
	cfg = cfg.withDefaults()

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.MaxInFlight)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm",
		MaxRequests: 1,
		Timeout:     cfg.CooldownPeriod,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
	})

	return &Guard{
		sem:     make(chan struct{}, cfg.MaxInFlight),
		limiter: limiter,
		breaker: breaker,
		timeout: cfg.Timeout,
	}
}

// Do runs fn under the guard. The context handed to fn carries the call
// timeout; cancellation is timeout-driven only.
func (g *Guard) Do(ctx context.Context, fn func(context.Context) error) error {
	select {
	case g.sem <- struct{}{}:
		defer func() { <-g.sem }()
	case <-ctx.Done():
		return ctx.Err()
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, fn(callCtx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// State returns the breaker state: "closed", "open" or "half-open".
func (g *Guard) State() string {
	switch g.breaker.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}
