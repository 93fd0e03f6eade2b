package middleware

import (
	"golang.org/x/time/rate"

	"github.com/jsxtech/exchange"
)

// RateLimitConfig defines client-side rate limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// NewLimiter returns a limiter for cfg. A non-positive rate means unlimited.
func (cfg RateLimitConfig) NewLimiter() *rate.Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = max(1, int(cfg.RequestsPerSecond))
	}
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
}

// RateLimit creates a filter that waits for limiter before each exchange.
//
// Waiting honors the request's context: a call canceled while waiting fails
// with a canceled or deadline exceeded error and never reaches the network.
func RateLimit(limiter *rate.Limiter) exchange.Filter {
	return func(req *exchange.Request, next exchange.ExchangeFunc) (*exchange.Response, error) {
		if err := limiter.Wait(req.Context()); err != nil {
			if ctxErr := req.Context().Err(); ctxErr != nil {
				return nil, exchange.AsError(ctxErr)
			}
			return nil, exchange.Errorf(exchange.CodeResourceExhausted, "rate limit: %w", err)
		}
		return next(req)
	}
}
