package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/jsxtech/exchange"
)

func newTestRequest(t *testing.T, attrs map[string]any) *exchange.Request {
	t.Helper()
	u, err := url.Parse("http://example.test/greeting")
	if err != nil {
		t.Fatal(err)
	}
	return exchange.NewRequest(context.Background(), http.MethodGet, u, attrs)
}

func okExchange(req *exchange.Request) (*exchange.Response, error) {
	return &exchange.Response{StatusCode: http.StatusOK, Header: make(http.Header), Request: req}, nil
}

func TestLogging_Success(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	filter := Logging(logger)

	resp, err := filter(newTestRequest(t, nil), okExchange)

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if resp == nil || resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 response, got %+v", resp)
	}

	logOutput := buf.String()
	if !strings.Contains(logOutput, "request started") {
		t.Error("expected 'request started' in log output")
	}
	if !strings.Contains(logOutput, "request completed") {
		t.Error("expected 'request completed' in log output")
	}
	if !strings.Contains(logOutput, "http://example.test/greeting") {
		t.Error("expected URL in log output")
	}
}

func TestLogging_Error(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	filter := Logging(logger)

	testErr := errors.New("test error")
	next := func(req *exchange.Request) (*exchange.Response, error) {
		return nil, testErr
	}

	resp, err := filter(newTestRequest(t, nil), next)

	if err != testErr {
		t.Errorf("expected test error, got %v", err)
	}

	if resp != nil {
		t.Errorf("expected nil response, got %v", resp)
	}

	logOutput := buf.String()
	if !strings.Contains(logOutput, "request started") {
		t.Error("expected 'request started' in log output")
	}
	if !strings.Contains(logOutput, "request failed") {
		t.Error("expected 'request failed' in log output")
	}
	if !strings.Contains(logOutput, "test error") {
		t.Error("expected error message in log output")
	}
}

func TestLogging_NilLogger(t *testing.T) {
	filter := Logging(nil)
	if _, err := filter(newTestRequest(t, nil), okExchange); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
