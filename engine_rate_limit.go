package auth

import (
	"context"

	"go.uber.org/zap"

	"github.com/Tadeu17/authentication-template/internal/iphash"
	"github.com/Tadeu17/authentication-template/internal/limiters"
)

// Allow counts one request from the context's client against endpoint.
// Denials return the result together with a [*RateLimitError].
func (e *Engine) Allow(ctx context.Context, endpoint Endpoint) (RateLimitResult, error) {
	if e == nil {
		return RateLimitResult{}, ErrEngineNotReady
	}
	return e.allow(ctx, limiters.Endpoint(endpoint))
}

// LimiterStats reports the size and sweep activity of the rate-limit table.
func (e *Engine) LimiterStats() LimiterStats {
	if e == nil {
		return LimiterStats{}
	}
	s := e.limits.Stats()
	return LimiterStats{
		Entries:      s.Entries,
		Sweeps:       s.Sweeps,
		EntriesSwept: s.EntriesSwept,
		LastSweep:    s.LastSweep,
	}
}

func (e *Engine) checkLimit(ctx context.Context, endpoint limiters.Endpoint) error {
	_, err := e.allow(ctx, endpoint)
	return err
}

func (e *Engine) allow(ctx context.Context, endpoint limiters.Endpoint) (RateLimitResult, error) {
	res, err := e.limits.Check(endpoint, e.clientKey(ctx))
	out := RateLimitResult{Allowed: res.Allowed, Remaining: res.Remaining, ResetAt: res.ResetAt}
	if err == nil {
		return out, nil
	}

	e.metricInc(MetricRateLimitHit)
	e.log.Debug("rate limited", zap.String("endpoint", string(endpoint)), zap.Time("reset_at", res.ResetAt))
	return out, &RateLimitError{
		Endpoint:   Endpoint(endpoint),
		ResetAt:    res.ResetAt,
		RetryAfter: res.RetryAfter(e.now()),
	}
}

// clientKey is the salted hash of the caller's address, so raw IPs never
// reach the limiter table.
func (e *Engine) clientKey(ctx context.Context) string {
	ip := clientIPFromContext(ctx)
	if ip == "" {
		ip = iphash.Unknown
	}
	return iphash.Hash(ip, e.config.Security.IPHashSalt)
}
