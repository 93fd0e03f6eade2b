package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/time/rate"

	"github.com/jsxtech/exchange"
)

func TestRequestID_Generated(t *testing.T) {
	var seen string
	next := func(req *exchange.Request) (*exchange.Response, error) {
		seen = req.Header.Get(RequestIDHeader)
		return okExchange(req)
	}

	if _, err := RequestID()(newTestRequest(t, nil), next); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := uuid.Parse(seen); err != nil {
		t.Errorf("expected a UUID request ID, got %q", seen)
	}
}

func TestRequestID_FromAttribute(t *testing.T) {
	var seen string
	next := func(req *exchange.Request) (*exchange.Response, error) {
		seen = req.Header.Get(RequestIDHeader)
		return okExchange(req)
	}

	req := newTestRequest(t, map[string]any{RequestIDAttribute: "req-42"})
	if _, err := RequestID()(req, next); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen != "req-42" {
		t.Errorf("expected request ID from attribute, got %q", seen)
	}
}

func TestRequestID_KeepsExistingHeader(t *testing.T) {
	req := newTestRequest(t, nil)
	req.Header.Set(RequestIDHeader, "preset")

	var seen string
	next := func(req *exchange.Request) (*exchange.Response, error) {
		seen = req.Header.Get(RequestIDHeader)
		return okExchange(req)
	}
	RequestID()(req, next)
	if seen != "preset" {
		t.Errorf("expected preset request ID to be kept, got %q", seen)
	}
}

func TestRateLimit_Allows(t *testing.T) {
	limiter := RateLimitConfig{RequestsPerSecond: 1000, Burst: 2}.NewLimiter()
	filter := RateLimit(limiter)

	calls := 0
	next := func(req *exchange.Request) (*exchange.Response, error) {
		calls++
		return okExchange(req)
	}
	for range 2 {
		if _, err := filter(newTestRequest(t, nil), next); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestRateLimit_CanceledWhileWaiting(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	limiter.Allow() // drain the bucket

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := newTestRequest(t, nil).WithContext(ctx)

	called := false
	next := func(req *exchange.Request) (*exchange.Response, error) {
		called = true
		return okExchange(req)
	}
	_, err := RateLimit(limiter)(req, next)
	if called {
		t.Error("expected next not to be called")
	}
	if got := exchange.AsError(err); got == nil || got.Code != exchange.CodeCanceled {
		t.Errorf("expected canceled error, got %v", err)
	}
}

func TestRateLimitConfig_Unlimited(t *testing.T) {
	if l := (RateLimitConfig{}).NewLimiter(); l.Limit() != rate.Inf {
		t.Errorf("expected unlimited limiter, got %v", l.Limit())
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		t.Fatal(err)
	}
	filter := m.Filter()

	if _, err := filter(newTestRequest(t, nil), okExchange); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	failing := func(req *exchange.Request) (*exchange.Response, error) {
		return nil, errors.New("connection refused")
	}
	if _, err := filter(newTestRequest(t, nil), failing); err == nil {
		t.Fatal("expected error")
	}

	if got := testutil.ToFloat64(m.requests.WithLabelValues("", "200")); got != 1 {
		t.Errorf("expected one 200 exchange, got %v", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("", "unknown")); got != 1 {
		t.Errorf("expected one failed exchange, got %v", got)
	}
	if got := testutil.ToFloat64(m.inflight); got != 0 {
		t.Errorf("expected no exchanges in flight, got %v", got)
	}
	if n := testutil.CollectAndCount(m.duration); n != 1 {
		t.Errorf("expected one duration series, got %d", n)
	}
}

func TestMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewMetrics(reg); err != nil {
		t.Fatal(err)
	}
	if _, err := NewMetrics(reg); err == nil {
		t.Error("expected error registering metrics twice")
	}
}
