package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"relaychat/internal/infra/config"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// GuardedCaller wraps a Caller with a rate limiter and a circuit breaker.
// When the relay fails repeatedly the circuit opens and calls fail fast
// without reaching the network.
type GuardedCaller struct {
	inner   Caller
	breaker *gobreaker.CircuitBreaker[Response]
	limiter *rate.Limiter // nil = unlimited
	logger  *slog.Logger
}

// NewGuardedCaller wraps inner. Zero-valued settings fall back to defaults;
// a zero RequestsPerMinute disables rate limiting.
func NewGuardedCaller(inner Caller, cfg config.RelayConfig, logger *slog.Logger) *GuardedCaller {
	maxFailures := cfg.Breaker.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Breaker.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Breaker.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	cb := gobreaker.NewCircuitBreaker[Response](gobreaker.Settings{
		Name:        "relay",
		MaxRequests: 1, // allow 1 trial request in half-open state
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: countsAsSuccess,
	})

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), burst)
	}

	return &GuardedCaller{inner: inner, breaker: cb, limiter: limiter, logger: logger}
}

// Call implements Caller.
func (g *GuardedCaller) Call(ctx context.Context, token string, req Request) (Response, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return Response{}, ctx.Err()
			}
			return Response{}, &CallError{Code: CodeResourceExhausted, Message: fmt.Sprintf("rate limit: %v", err)}
		}
	}

	resp, err := g.breaker.Execute(func() (Response, error) {
		return g.inner.Call(ctx, token, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Response{}, fmt.Errorf("relay circuit open: %w", err)
		}
		return Response{}, err
	}
	return resp, nil
}

// State returns the current circuit breaker state for monitoring.
func (g *GuardedCaller) State() gobreaker.State {
	return g.breaker.State()
}

// countsAsSuccess keeps caller-side problems from tripping the breaker: only
// server-side and transport failures count against the relay.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var ce *CallError
	if errors.As(err, &ce) {
		switch ce.Code {
		case CodeUnauthenticated, CodePermissionDenied, CodeInvalidArgument:
			return true
		}
	}
	return false
}

var _ Caller = (*GuardedCaller)(nil)
