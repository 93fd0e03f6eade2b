package exchange

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"sync"

	"github.com/hashicorp/go-cleanhttp"
)

// Request is a fully resolved HTTP request produced by a proxy call.
//
// URL is absolute when the call supplied a literal URI or a URIBuilderFactory.
// Otherwise it is relative and the Transport resolves it against its base URL.
//
// Attributes are attached when the request is created and cannot be changed
// afterwards. Filters read them with Attribute and Attributes.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte

	name  string
	attrs map[string]any
	ctx   context.Context
}

// NewRequest creates a request outside of a proxy call, mostly for tests and
// custom transports. attrs is copied.
func NewRequest(ctx context.Context, method string, u *url.URL, attrs map[string]any) *Request {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Request{
		Method: method,
		URL:    u,
		Header: make(http.Header),
		attrs:  maps.Clone(attrs),
		ctx:    ctx,
	}
}

// Context returns the request's context. It is canceled when the call is.
func (r *Request) Context() context.Context {
	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// Name returns the name of the declaration that produced the request.
func (r *Request) Name() string {
	return r.name
}

// Attribute returns the value of a request attribute.
func (r *Request) Attribute(name string) (any, bool) {
	v, ok := r.attrs[name]
	return v, ok
}

// Attributes returns a copy of the request attributes.
func (r *Request) Attributes() map[string]any {
	out := make(map[string]any, len(r.attrs))
	maps.Copy(out, r.attrs)
	return out
}

// WithContext returns a shallow copy of r with its context changed to ctx.
func (r *Request) WithContext(ctx context.Context) *Request {
	r2 := *r
	r2.ctx = ctx
	return &r2
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// Request is the request that produced this response.
	Request *Request
}

func (r *Response) target() string {
	if r.Request == nil || r.Request.URL == nil {
		return "unknown target"
	}
	return r.Request.Method + " " + r.Request.URL.String()
}

// Transport sends a Request and returns the response.
//
// Exchange must return a nil error whenever a response was obtained, whatever
// its status. Implementations must be safe for concurrent use and must abort
// the exchange when the request's context is canceled.
type Transport interface {
	Exchange(req *Request) (*Response, error)
}

// ExchangeFunc adapts a function to the Transport interface.
type ExchangeFunc func(req *Request) (*Response, error)

// Exchange calls f(req).
func (f ExchangeFunc) Exchange(req *Request) (*Response, error) {
	return f(req)
}

// HTTPTransport is a Transport backed by net/http.
//
// Relative request URLs are joined onto the base URL with the same rules as
// NewURIBuilderFactory.
type HTTPTransport struct {
	mu      sync.RWMutex
	client  *http.Client
	base    *DefaultURIBuilderFactory
	header  http.Header
	filters []Filter
}

// NewHTTPTransport creates a transport for baseURL. An empty baseURL is
// allowed, in which case every call must supply an absolute target.
// The default client is a pooled client from go-cleanhttp.
func NewHTTPTransport(baseURL string) (*HTTPTransport, error) {
	t := &HTTPTransport{
		client: cleanhttp.DefaultPooledClient(),
		header: make(http.Header),
	}
	if baseURL != "" {
		base, err := NewURIBuilderFactory(baseURL)
		if err != nil {
			return nil, err
		}
		t.base = base
	}
	return t, nil
}

// WithHTTPClient sets the underlying http.Client.
func (t *HTTPTransport) WithHTTPClient(c *http.Client) *HTTPTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.client = c
	return t
}

// WithFilter adds a request filter. Filters run in the order they were added,
// the first one outermost.
func (t *HTTPTransport) WithFilter(f Filter) *HTTPTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.filters = append(t.filters, f)
	return t
}

// WithDefaultHeader sets a header sent with every request unless the request
// already carries it.
func (t *HTTPTransport) WithDefaultHeader(key, value string) *HTTPTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.header.Set(key, value)
	return t
}

// BaseURL returns the base URL, or nil if none was configured.
func (t *HTTPTransport) BaseURL() *url.URL {
	if t.base == nil {
		return nil
	}
	return t.base.Base()
}

// Exchange runs the filter chain and sends the request.
func (t *HTTPTransport) Exchange(req *Request) (*Response, error) {
	t.mu.RLock()
	filters := t.filters
	t.mu.RUnlock()
	return chainFilters(filters, t.send)(req)
}

func (t *HTTPTransport) send(req *Request) (*Response, error) {
	target, err := t.resolve(req.URL)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(req.Context(), req.Method, target.String(), body)
	if err != nil {
		return nil, Errorf(CodeTransport, "build request: %w", err)
	}

	t.mu.RLock()
	for k, vs := range t.header {
		if _, ok := req.Header[k]; !ok {
			httpReq.Header[k] = append([]string(nil), vs...)
		}
	}
	client := t.client
	t.mu.RUnlock()
	for k, vs := range req.Header {
		httpReq.Header[k] = append([]string(nil), vs...)
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, Errorf(CodeTransport, "read response body: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
		Request:    req,
	}, nil
}

func (t *HTTPTransport) resolve(u *url.URL) (*url.URL, error) {
	if u == nil {
		return nil, NewError(CodeInvalidArgument, "request has no URL")
	}
	if u.IsAbs() {
		return u, nil
	}
	if t.base == nil {
		return nil, Errorf(CodeInvalidArgument, "relative URL %q and no base URL configured", u.String())
	}
	return t.base.Resolve(u), nil
}

// String implements fmt.Stringer for logging.
func (t *HTTPTransport) String() string {
	if t.base == nil {
		return "HTTPTransport(no base)"
	}
	return fmt.Sprintf("HTTPTransport(%s)", t.base.Base())
}
