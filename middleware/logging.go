// Package middleware provides exchange filters for logging, request IDs,
// client-side rate limiting and metrics.
package middleware

import (
	"log/slog"
	"time"

	"github.com/jsxtech/exchange"
)

// Logging creates a filter that logs each exchange using slog.
// It logs the start and end of each exchange, including duration, status and
// error.
func Logging(logger *slog.Logger) exchange.Filter {
	if logger == nil {
		logger = slog.Default()
	}

	return func(req *exchange.Request, next exchange.ExchangeFunc) (*exchange.Response, error) {
		ctx := req.Context()
		start := time.Now()

		logger.InfoContext(ctx, "request started",
			slog.String("declaration", req.Name()),
			slog.String("method", req.Method),
			slog.String("url", req.URL.String()),
		)

		resp, err := next(req)
		duration := time.Since(start)

		if err != nil {
			logger.ErrorContext(ctx, "request failed",
				slog.String("declaration", req.Name()),
				slog.Duration("duration", duration),
				slog.Any("error", err),
			)
		} else {
			logger.InfoContext(ctx, "request completed",
				slog.String("declaration", req.Name()),
				slog.Int("status", resp.StatusCode),
				slog.Duration("duration", duration),
			)
		}

		return resp, err
	}
}
