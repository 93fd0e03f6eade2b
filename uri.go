package exchange

import (
	"net/url"

	"github.com/jsxtech/exchange/internal/uritemplate"
)

// URIBuilderFactory produces the target URL for a call from the declaration's
// path template. Passing one as a call argument overrides the transport's base
// URL for that call only.
type URIBuilderFactory interface {
	Expand(template string, vars map[string]string) (*url.URL, error)
}

// DefaultURIBuilderFactory expands templates relative to a base URL.
// The expanded path is appended to the base path, so a base of
// "http://host/api" and a template of "/greeting" give "http://host/api/greeting".
type DefaultURIBuilderFactory struct {
	base *url.URL
}

// NewURIBuilderFactory parses base and returns a factory for it.
// base must be an absolute URL.
func NewURIBuilderFactory(base string) (*DefaultURIBuilderFactory, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, Errorf(CodeInvalidArgument, "base URL %q: %w", base, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, Errorf(CodeInvalidArgument, "base URL %q is not absolute", base)
	}
	return &DefaultURIBuilderFactory{base: u}, nil
}

// Base returns a copy of the base URL.
func (f *DefaultURIBuilderFactory) Base() *url.URL {
	u := *f.base
	return &u
}

// Expand parses template, substitutes vars, and joins the result onto the base.
// A query string in the template is kept.
func (f *DefaultURIBuilderFactory) Expand(template string, vars map[string]string) (*url.URL, error) {
	tmpl, err := uritemplate.Parse(template)
	if err != nil {
		return nil, Errorf(CodeBinding, "%w", err)
	}
	expanded, err := tmpl.Expand(vars)
	if err != nil {
		return nil, Errorf(CodeInvalidArgument, "%w", err)
	}
	rel, err := url.Parse(expanded)
	if err != nil {
		return nil, Errorf(CodeInvalidArgument, "expanded path %q: %w", expanded, err)
	}
	return f.Resolve(rel), nil
}

// Resolve joins a relative reference onto the base URL.
func (f *DefaultURIBuilderFactory) Resolve(rel *url.URL) *url.URL {
	out := *f.base
	out.Path = uritemplate.JoinPath(f.base.Path, rel.Path)
	out.RawPath = ""
	if rel.RawPath != "" {
		out.RawPath = uritemplate.JoinPath(f.base.EscapedPath(), rel.RawPath)
	}
	out.RawQuery = mergeQuery(f.base.RawQuery, rel.RawQuery)
	out.Fragment = rel.Fragment
	return &out
}

func mergeQuery(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + "&" + b
}
