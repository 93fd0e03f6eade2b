// Package restyclient provides an exchange.Transport built on go-resty.
package restyclient

import (
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/jsxtech/exchange"
)

// Transport sends exchange requests through a resty client.
//
// Relative request URLs are resolved against the base URL the same way
// exchange.HTTPTransport resolves them. Retries are left to resty's
// configuration and are off by default, so each call sends one request.
type Transport struct {
	client  *resty.Client
	base    *exchange.DefaultURIBuilderFactory
	filters []exchange.Filter
}

// Option configures a Transport.
type Option func(*Transport)

// WithClient replaces the resty client.
func WithClient(c *resty.Client) Option {
	return func(t *Transport) { t.client = c }
}

// WithTimeout sets the per-request timeout of the resty client.
func WithTimeout(d time.Duration) Option {
	return func(t *Transport) { t.client.SetTimeout(d) }
}

// WithHeader sets a header sent with every request.
func WithHeader(key, value string) Option {
	return func(t *Transport) { t.client.SetHeader(key, value) }
}

// WithFilter adds a filter. Filters run in the order they were added.
func WithFilter(f exchange.Filter) Option {
	return func(t *Transport) { t.filters = append(t.filters, f) }
}

// New creates a transport for baseURL. An empty baseURL is allowed, in which
// case every call must supply an absolute target.
func New(baseURL string, opts ...Option) (*Transport, error) {
	t := &Transport{client: resty.New()}
	if baseURL != "" {
		base, err := exchange.NewURIBuilderFactory(baseURL)
		if err != nil {
			return nil, err
		}
		t.base = base
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Client returns the underlying resty client.
func (t *Transport) Client() *resty.Client {
	return t.client
}

// Exchange runs the filters and sends the request.
func (t *Transport) Exchange(req *exchange.Request) (*exchange.Response, error) {
	return exchange.WithFilters(exchange.ExchangeFunc(t.send), t.filters...).Exchange(req)
}

func (t *Transport) send(req *exchange.Request) (*exchange.Response, error) {
	target, err := t.resolve(req.URL)
	if err != nil {
		return nil, err
	}

	r := t.client.R().
		SetContext(req.Context()).
		SetHeaderMultiValues(req.Header)
	if len(req.Body) > 0 {
		r.SetBody(req.Body)
	}

	resp, err := r.Execute(req.Method, target.String())
	if err != nil {
		return nil, err
	}

	return &exchange.Response{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Body:       resp.Body(),
		Request:    req,
	}, nil
}

func (t *Transport) resolve(u *url.URL) (*url.URL, error) {
	if u == nil {
		return nil, exchange.NewError(exchange.CodeInvalidArgument, "request has no URL")
	}
	if u.IsAbs() {
		return u, nil
	}
	if t.base == nil {
		return nil, exchange.Errorf(exchange.CodeInvalidArgument, "relative URL %q and no base URL configured", u.String())
	}
	return t.base.Resolve(u), nil
}
