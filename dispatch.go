package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"time"

	"github.com/gorilla/schema"
)

var queryEncoder = schema.NewEncoder()

func init() {
	// Struct-valued query arguments use the same tag as top-level query fields.
	queryEncoder.SetAliasTag("query")
}

// Args holds the argument values of one call, keyed by parameter name.
//
// Accepted values depend on the parameter kind:
//   - path, query, header: strings, numbers, bools, time.Time, fmt.Stringer,
//     slices of those, or pointers to them; query also accepts structs,
//     encoded field by field
//   - attribute: any value, attached as is
//   - uri: *url.URL or string
//   - factory: URIBuilderFactory
//   - body: any value, see the body encoding rules
//
// A nil value, or a nil pointer, means the argument is absent.
type Args map[string]any

// Exchange builds the request for args, sends it, and returns the pending
// result. Exactly one request is sent per call.
func (m *Method) Exchange(ctx context.Context, args Args) *Pending {
	p := m.prepare(ctx, args)
	p.Start()
	return p
}

// prepare builds the request and returns a Pending that has not started.
func (m *Method) prepare(ctx context.Context, args Args) *Pending {
	req, err := m.newRequest(args)
	if err != nil {
		return failedPending(err)
	}
	logger := m.factory.logger()
	return newPending(ctx, func(ctx context.Context) (*Response, error) {
		logger.DebugContext(ctx, "dispatching call",
			slog.String("declaration", m.decl.Name),
			slog.String("method", req.Method),
			slog.String("url", req.URL.String()))
		resp, err := m.factory.transport.Exchange(req.WithContext(ctx))
		if err != nil {
			return nil, transportError(err)
		}
		if resp == nil {
			return nil, Errorf(CodeTransport, "%s: transport returned no response", m.decl.Name)
		}
		if resp.Request == nil {
			resp.Request = req
		}
		return resp, nil
	})
}

// newRequest resolves args against the declaration.
func (m *Method) newRequest(args Args) (*Request, error) {
	d := m.decl
	argErr := func(format string, a ...any) error {
		return Errorf(CodeInvalidArgument, "%s: "+format, append([]any{d.Name}, a...)...)
	}

	for name := range args {
		if _, ok := d.param(name); !ok {
			return nil, argErr("unknown argument %q", name)
		}
	}

	var (
		pathVars = make(map[string]string)
		query    = make(url.Values)
		header   = make(http.Header)
		attrs    = make(map[string]any)
		literal  *url.URL
		factory  URIBuilderFactory
		body     []byte
		bodyType string
	)

	for _, p := range d.Params {
		v := args[p.Name]
		if isAbsent(v) || (p.OmitEmpty && isZero(v)) {
			if p.Required || p.Kind == ParamPath {
				return nil, argErr("missing required %s argument %q", p.Kind, p.Name)
			}
			continue
		}

		switch p.Kind {
		case ParamPath:
			vals, err := formatValues(v)
			if err != nil {
				return nil, argErr("path variable %q: %v", p.Name, err)
			}
			if len(vals) != 1 {
				return nil, argErr("path variable %q needs exactly one value, got %d", p.Name, len(vals))
			}
			pathVars[p.Name] = vals[0]

		case ParamQuery:
			if isStruct(v) {
				if err := queryEncoder.Encode(v, query); err != nil {
					return nil, argErr("query %q: %v", p.Name, err)
				}
				continue
			}
			vals, err := formatValues(v)
			if err != nil {
				return nil, argErr("query %q: %v", p.Name, err)
			}
			query[p.Name] = append(query[p.Name], vals...)

		case ParamHeader:
			vals, err := formatValues(v)
			if err != nil {
				return nil, argErr("header %q: %v", p.Name, err)
			}
			for _, s := range vals {
				header.Add(p.Name, s)
			}

		case ParamAttribute:
			attrs[p.Name] = v

		case ParamURI:
			u, err := toURL(v)
			if err != nil {
				return nil, argErr("uri %q: %v", p.Name, err)
			}
			literal = u

		case ParamURIBuilderFactory:
			f, ok := v.(URIBuilderFactory)
			if !ok {
				return nil, argErr("factory %q: %T is not a URIBuilderFactory", p.Name, v)
			}
			factory = f

		case ParamBody:
			data, ct, err := encodeBody(v, d.ContentType)
			if err != nil {
				return nil, argErr("body %q: %v", p.Name, err)
			}
			body, bodyType = data, ct
		}
	}

	target, err := m.target(literal, factory, pathVars, query)
	if err != nil {
		return nil, err
	}

	if d.Accept != "" {
		header.Set("Accept", d.Accept)
	}
	if bodyType != "" && header.Get("Content-Type") == "" {
		header.Set("Content-Type", bodyType)
	}

	return &Request{
		Method: d.Method,
		URL:    target,
		Header: header,
		Body:   body,
		name:   d.Name,
		attrs:  attrs,
		ctx:    context.Background(),
	}, nil
}

// target selects the request URL: literal URI, then the call's factory, then
// a relative URL the transport resolves against its own base.
func (m *Method) target(literal *url.URL, factory URIBuilderFactory, pathVars map[string]string, query url.Values) (*url.URL, error) {
	var u *url.URL
	switch {
	case literal != nil:
		c := *literal
		u = &c
	case factory != nil:
		expanded, err := factory.Expand(m.decl.Path, pathVars)
		if err != nil {
			return nil, AsError(err).WithDetail("declaration", m.decl.Name)
		}
		if expanded == nil {
			return nil, Errorf(CodeInvalidArgument, "%s: URI builder factory returned no URL", m.decl.Name)
		}
		u = expanded
	default:
		expanded, err := m.tmpl.Expand(pathVars)
		if err != nil {
			return nil, Errorf(CodeInvalidArgument, "%s: %w", m.decl.Name, err)
		}
		rel, err := url.Parse(expanded)
		if err != nil {
			return nil, Errorf(CodeInvalidArgument, "%s: expanded path %q: %w", m.decl.Name, expanded, err)
		}
		u = rel
	}

	if len(query) > 0 {
		u.RawQuery = mergeQuery(u.RawQuery, query.Encode())
	}
	return u, nil
}

func isAbsent(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func isZero(v any) bool {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return true
		}
		rv = rv.Elem()
	}
	return rv.IsZero()
}

var timeType = reflect.TypeOf(time.Time{})

func isStruct(v any) bool {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct && t != timeType
}

func toURL(v any) (*url.URL, error) {
	switch u := v.(type) {
	case *url.URL:
		return u, nil
	case url.URL:
		return &u, nil
	case string:
		parsed, err := url.Parse(u)
		if err != nil {
			return nil, err
		}
		return parsed, nil
	}
	return nil, fmt.Errorf("unsupported type %T", v)
}

// formatValues converts an argument into one or more strings.
func formatValues(v any) ([]string, error) {
	switch x := v.(type) {
	case string:
		return []string{x}, nil
	case []string:
		return append([]string(nil), x...), nil
	case time.Time:
		return []string{x.Format(time.RFC3339)}, nil
	case fmt.Stringer:
		return []string{x.String()}, nil
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}

	if rv.Type() == timeType {
		return []string{rv.Interface().(time.Time).Format(time.RFC3339)}, nil
	}

	switch rv.Kind() {
	case reflect.String:
		return []string{rv.String()}, nil
	case reflect.Bool:
		return []string{strconv.FormatBool(rv.Bool())}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return []string{strconv.FormatInt(rv.Int(), 10)}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return []string{strconv.FormatUint(rv.Uint(), 10)}, nil
	case reflect.Float32:
		return []string{strconv.FormatFloat(rv.Float(), 'f', -1, 32)}, nil
	case reflect.Float64:
		return []string{strconv.FormatFloat(rv.Float(), 'f', -1, 64)}, nil
	case reflect.Slice, reflect.Array:
		out := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			vals, err := formatValues(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out = append(out, vals...)
		}
		return out, nil
	}
	if s, ok := rv.Interface().(fmt.Stringer); ok {
		return []string{s.String()}, nil
	}
	return nil, fmt.Errorf("unsupported value type %T", v)
}
