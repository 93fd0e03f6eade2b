// Package testutil provides an HTTP fixture server for testing exchange clients.
// This package is designed to be import-cycle safe and can be used from any package.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// MockResponse is a canned response served by MockServer.
type MockResponse struct {
	status  int
	headers http.Header
	body    []byte
	delay   time.Duration
}

// NewMockResponse creates a 200 response with no headers and no body.
func NewMockResponse() *MockResponse {
	return &MockResponse{
		status:  http.StatusOK,
		headers: make(http.Header),
	}
}

// Status sets the status code.
func (r *MockResponse) Status(code int) *MockResponse {
	r.status = code
	return r
}

// Header sets a response header.
func (r *MockResponse) Header(key, value string) *MockResponse {
	r.headers.Set(key, value)
	return r
}

// Body sets the raw response body.
func (r *MockResponse) Body(body string) *MockResponse {
	r.body = []byte(body)
	return r
}

// Text sets a text/plain body.
func (r *MockResponse) Text(body string) *MockResponse {
	r.headers.Set("Content-Type", "text/plain")
	r.body = []byte(body)
	return r
}

// JSON sets the body to v encoded as JSON. It panics if v cannot be encoded.
func (r *MockResponse) JSON(v any) *MockResponse {
	data, err := json.Marshal(v)
	if err != nil {
		panic("testutil: encode JSON body: " + err.Error())
	}
	r.headers.Set("Content-Type", "application/json")
	r.body = data
	return r
}

// Delay holds the response back for d, or until the client goes away.
func (r *MockResponse) Delay(d time.Duration) *MockResponse {
	r.delay = d
	return r
}

// RecordedRequest is a request received by MockServer.
type RecordedRequest struct {
	Method string
	// Target is the request target as sent on the wire: path and query.
	Target string
	Header http.Header
	Body   []byte
}

// MockServer is an HTTP server that replies with enqueued responses in order
// and records every request it receives.
//
// When the queue is empty it replies 404 with an empty body.
type MockServer struct {
	srv *httptest.Server

	mu       sync.Mutex
	queue    []*MockResponse
	count    int
	requests chan *RecordedRequest
}

// NewMockServer starts a server and registers its shutdown with t.Cleanup.
func NewMockServer(t testing.TB) *MockServer {
	t.Helper()
	s := &MockServer{
		requests: make(chan *RecordedRequest, 128),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *MockServer) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	rec := &RecordedRequest{
		Method: r.Method,
		Target: r.RequestURI,
		Header: r.Header.Clone(),
		Body:   body,
	}

	s.mu.Lock()
	s.count++
	var resp *MockResponse
	if len(s.queue) > 0 {
		resp = s.queue[0]
		s.queue = s.queue[1:]
	}
	s.mu.Unlock()

	select {
	case s.requests <- rec:
	default:
	}

	if resp == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if resp.delay > 0 {
		select {
		case <-time.After(resp.delay):
		case <-r.Context().Done():
			return
		}
	}
	for k, vs := range resp.headers {
		w.Header()[k] = append([]string(nil), vs...)
	}
	w.WriteHeader(resp.status)
	w.Write(resp.body)
}

// Enqueue adds a response to the queue.
func (s *MockServer) Enqueue(r *MockResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, r)
}

// URL returns the absolute URL of path on this server.
func (s *MockServer) URL(path string) string {
	if path == "" || path == "/" {
		return s.srv.URL + "/"
	}
	return s.srv.URL + "/" + strings.TrimPrefix(path, "/")
}

// RequestCount returns how many requests the server has received.
func (s *MockServer) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// TakeRequest returns the next recorded request, waiting up to timeout.
// It returns nil if no request arrives in time.
func (s *MockServer) TakeRequest(timeout time.Duration) *RecordedRequest {
	select {
	case r := <-s.requests:
		return r
	case <-time.After(timeout):
		return nil
	}
}

// Close shuts the server down. It is safe to call more than once.
func (s *MockServer) Close() {
	s.srv.CloseClientConnections()
	s.srv.Close()
}

// AssertRequest takes the next request and checks its method and target.
func AssertRequest(t *testing.T, s *MockServer, method, target string) *RecordedRequest {
	t.Helper()
	r := s.TakeRequest(5 * time.Second)
	if r == nil {
		t.Fatalf("expected %s %s, got no request", method, target)
	}
	if r.Method != method {
		t.Errorf("expected method %s, got %s", method, r.Method)
	}
	if r.Target != target {
		t.Errorf("expected target %s, got %s", target, r.Target)
	}
	return r
}

// AssertHeader checks that a recorded request header has the expected value.
func AssertHeader(t *testing.T, r *RecordedRequest, key, expectedValue string) {
	t.Helper()
	actual := r.Header.Get(key)
	if actual != expectedValue {
		t.Errorf("expected header %s=%s, got %s", key, expectedValue, actual)
	}
}

// AssertNoRequests checks that the server has not received any request.
func AssertNoRequests(t *testing.T, s *MockServer) {
	t.Helper()
	if n := s.RequestCount(); n != 0 {
		t.Errorf("expected no requests, got %d", n)
	}
}
