package exchange

import (
	"errors"
	"log/slog"
	"time"

	"github.com/jsxtech/exchange/internal/uritemplate"
)

// ProxyFactory builds proxies that send their calls through a Transport.
//
// A factory is configured with the With* methods before proxies are built
// from it; it must not be reconfigured afterwards.
type ProxyFactory struct {
	transport    Transport
	blockTimeout time.Duration
	log          *slog.Logger
}

// NewProxyFactory returns a factory for t.
func NewProxyFactory(t Transport) *ProxyFactory {
	return &ProxyFactory{transport: t}
}

// WithBlockTimeout bounds how long scalar and entity calls block waiting for
// their result. Zero, the default, means no bound beyond the caller's context.
func (f *ProxyFactory) WithBlockTimeout(d time.Duration) *ProxyFactory {
	f.blockTimeout = d
	return f
}

// WithLogger sets the logger used for dispatch logging.
// If not set, slog.Default() will be used.
func (f *ProxyFactory) WithLogger(logger *slog.Logger) *ProxyFactory {
	f.log = logger
	return f
}

func (f *ProxyFactory) logger() *slog.Logger {
	if f.log == nil {
		return slog.Default()
	}
	return f.log
}

// NewProxy validates decls and returns a proxy with one Method per declaration.
// All binding errors are reported together.
func (f *ProxyFactory) NewProxy(decls ...*Declaration) (*Proxy, error) {
	if f.transport == nil {
		return nil, NewError(CodeBinding, "proxy factory has no transport")
	}

	p := &Proxy{methods: make(map[string]*Method, len(decls))}
	var errs []error
	for _, d := range decls {
		if d == nil {
			errs = append(errs, NewError(CodeBinding, "nil declaration"))
			continue
		}
		m, err := f.newMethod(d)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, exists := p.methods[m.decl.Name]; exists {
			errs = append(errs, Errorf(CodeBinding, "duplicate declaration %q", m.decl.Name))
			continue
		}
		p.methods[m.decl.Name] = m
		p.order = append(p.order, m)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	f.logger().Debug("proxy built", slog.Int("methods", len(p.order)))
	return p, nil
}

func (f *ProxyFactory) newMethod(d *Declaration) (*Method, error) {
	decl := d.clone()
	tmpl, err := decl.compile()
	if err != nil {
		return nil, err
	}
	return &Method{decl: decl, tmpl: tmpl, factory: f}, nil
}

// Proxy exposes one callable Method per declaration.
// It is immutable and safe for concurrent use.
type Proxy struct {
	methods map[string]*Method
	order   []*Method
}

// Method returns the method for the named declaration, or nil.
func (p *Proxy) Method(name string) *Method {
	return p.methods[name]
}

// Methods returns all methods in declaration order.
func (p *Proxy) Methods() []*Method {
	return append([]*Method(nil), p.order...)
}

// Method is the callable form of one declaration.
//
// Use Exchange for the raw pending result, or the typed entry points
// Invoke, InvokeVoid, InvokeAsync, InvokeStream and InvokeEntity, which
// decode the result according to the declared shape.
type Method struct {
	decl    *Declaration
	tmpl    *uritemplate.Template
	factory *ProxyFactory
}

// Name returns the declaration name.
func (m *Method) Name() string {
	return m.decl.Name
}

// Declaration returns a copy of the method's declaration.
func (m *Method) Declaration() Declaration {
	return *m.decl.clone()
}

func (m *Method) expect(s Shape) error {
	if m.decl.Shape != s {
		return Errorf(CodeInvalidArgument, "%s: declared with shape %s, called as %s", m.decl.Name, m.decl.Shape, s)
	}
	return nil
}
