package exchange

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jsxtech/exchange/testutil"
)

func TestNewHTTPTransport(t *testing.T) {
	tr, err := NewHTTPTransport("")
	if err != nil {
		t.Fatal(err)
	}
	if tr.BaseURL() != nil {
		t.Errorf("expected no base URL, got %v", tr.BaseURL())
	}
	if !strings.Contains(tr.String(), "no base") {
		t.Errorf("unexpected String %q", tr.String())
	}

	if _, err := NewHTTPTransport("not a url"); err == nil {
		t.Error("expected error for relative base URL")
	}

	tr, err = NewHTTPTransport("http://localhost:8080/api")
	if err != nil {
		t.Fatal(err)
	}
	if got := tr.BaseURL().String(); got != "http://localhost:8080/api" {
		t.Errorf("unexpected base URL %s", got)
	}
}

func TestHTTPTransport_Exchange(t *testing.T) {
	server := testutil.NewMockServer(t)
	server.Enqueue(testutil.NewMockResponse().Status(http.StatusAccepted).Header("X-Reply", "1").Text("ok"))

	tr, err := NewHTTPTransport(server.URL("/api"))
	if err != nil {
		t.Fatal(err)
	}
	tr.WithDefaultHeader("User-Agent", "exchange-test").
		WithDefaultHeader("X-Default", "default").
		WithHTTPClient(&http.Client{Timeout: 5 * time.Second})

	u, _ := url.Parse("/greeting?param=test")
	req := NewRequest(context.Background(), http.MethodPut, u, nil)
	req.Header.Set("X-Default", "override")
	req.Body = []byte("payload")

	resp, err := tr.Exchange(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("expected 202, got %d", resp.StatusCode)
	}
	if string(resp.Body) != "ok" || resp.Header.Get("X-Reply") != "1" {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Request != req {
		t.Error("expected response to reference its request")
	}

	r := testutil.AssertRequest(t, server, http.MethodPut, "/api/greeting?param=test")
	testutil.AssertHeader(t, r, "User-Agent", "exchange-test")
	testutil.AssertHeader(t, r, "X-Default", "override")
	if string(r.Body) != "payload" {
		t.Errorf("expected body to be sent, got %q", r.Body)
	}
}

func TestHTTPTransport_NonSuccessIsNotAnError(t *testing.T) {
	server := testutil.NewMockServer(t)
	tr, err := NewHTTPTransport(server.URL("/"))
	if err != nil {
		t.Fatal(err)
	}
	u, _ := url.Parse("/missing")
	resp, err := tr.Exchange(NewRequest(context.Background(), http.MethodGet, u, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestHTTPTransport_Filters(t *testing.T) {
	server := testutil.NewMockServer(t)
	server.Enqueue(testutil.NewMockResponse())

	var seen any
	tr, err := NewHTTPTransport(server.URL("/"))
	if err != nil {
		t.Fatal(err)
	}
	tr.WithFilter(func(req *Request, next ExchangeFunc) (*Response, error) {
		seen, _ = req.Attribute("myAttribute")
		req.Header.Set("X-Filtered", "yes")
		return next(req)
	})

	u, _ := url.Parse("/greeting")
	req := NewRequest(context.Background(), http.MethodGet, u, map[string]any{"myAttribute": "myAttributeValue"})
	if _, err := tr.Exchange(req); err != nil {
		t.Fatal(err)
	}
	if seen != "myAttributeValue" {
		t.Errorf("expected filter to see the attribute, got %v", seen)
	}
	r := testutil.AssertRequest(t, server, http.MethodGet, "/greeting")
	testutil.AssertHeader(t, r, "X-Filtered", "yes")
}

func TestHTTPTransport_Errors(t *testing.T) {
	tr, err := NewHTTPTransport("")
	if err != nil {
		t.Fatal(err)
	}

	u, _ := url.Parse("/greeting")
	_, err = tr.Exchange(NewRequest(context.Background(), http.MethodGet, u, nil))
	if code := AsError(err).Code; code != CodeInvalidArgument {
		t.Errorf("expected invalid argument for relative URL without base, got %v", err)
	}

	_, err = tr.Exchange(NewRequest(context.Background(), http.MethodGet, nil, nil))
	if code := AsError(err).Code; code != CodeInvalidArgument {
		t.Errorf("expected invalid argument for missing URL, got %v", err)
	}
}

func TestHTTPTransport_Cancel(t *testing.T) {
	server := testutil.NewMockServer(t)
	server.Enqueue(testutil.NewMockResponse().Delay(5 * time.Second))

	tr, err := NewHTTPTransport(server.URL("/"))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	u, _ := url.Parse("/slow")
	_, err = tr.Exchange(NewRequest(ctx, http.MethodGet, u, nil))
	if code := transportError(err).Code; code != CodeDeadlineExceeded {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
