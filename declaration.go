package exchange

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jsxtech/exchange/internal/uritemplate"
)

// Shape is the calling convention a declaration's result is delivered in.
type Shape int

const (
	// ShapeScalar blocks the caller until the decoded body is available: func(ctx, A) (R, error).
	ShapeScalar Shape = iota
	// ShapeFuture returns an awaitable handle: func(ctx, A) *Future[R].
	ShapeFuture
	// ShapeStream returns a cold single-value sequence: func(ctx, A) iter.Seq2[R, error].
	ShapeStream
	// ShapeEntity returns the body with status and headers: func(ctx, A) (*Entity[R], error).
	ShapeEntity
)

var shapeNames = map[Shape]string{
	ShapeScalar: "scalar",
	ShapeFuture: "future",
	ShapeStream: "stream",
	ShapeEntity: "entity",
}

func (s Shape) String() string {
	if n, ok := shapeNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Shape(%d)", int(s))
}

// ParseShape parses the String form of a Shape. The empty string is ShapeScalar.
func ParseShape(s string) (Shape, error) {
	if s == "" {
		return ShapeScalar, nil
	}
	for shape, name := range shapeNames {
		if strings.EqualFold(name, s) {
			return shape, nil
		}
	}
	return 0, fmt.Errorf("unknown shape %q", s)
}

// ParamKind says where a call argument goes in the request.
type ParamKind int

const (
	ParamPath ParamKind = iota
	ParamQuery
	ParamHeader
	ParamAttribute
	ParamURI
	ParamURIBuilderFactory
	ParamBody
)

var paramKindNames = map[ParamKind]string{
	ParamPath:              "path",
	ParamQuery:             "query",
	ParamHeader:            "header",
	ParamAttribute:         "attribute",
	ParamURI:               "uri",
	ParamURIBuilderFactory: "factory",
	ParamBody:              "body",
}

func (k ParamKind) String() string {
	if n, ok := paramKindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("ParamKind(%d)", int(k))
}

// ParseParamKind parses the String form of a ParamKind.
func ParseParamKind(s string) (ParamKind, error) {
	for kind, name := range paramKindNames {
		if strings.EqualFold(name, s) {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown parameter kind %q", s)
}

// Param binds a named call argument to a part of the request.
type Param struct {
	Name     string
	Kind     ParamKind
	Required bool

	// OmitEmpty drops zero values instead of sending them.
	OmitEmpty bool
}

// Declaration describes one HTTP operation of a declarative client.
//
// Declarations are built with the fluent methods below and validated when a
// proxy is created from them. The proxy keeps its own copy, so changing a
// Declaration afterwards does not affect proxies already built.
//
//	greeting := exchange.GET("getGreeting", "/greeting/{id}").
//	    PathVariable("id").
//	    QueryParam("param").
//	    Returning(exchange.ShapeEntity)
type Declaration struct {
	Name        string
	Method      string
	Path        string
	Shape       Shape
	Params      []Param
	ContentType string
	Accept      string
}

// NewDeclaration creates a declaration with the scalar shape.
func NewDeclaration(name, method, path string) *Declaration {
	return &Declaration{
		Name:   name,
		Method: strings.ToUpper(method),
		Path:   path,
	}
}

// GET declares a GET operation.
func GET(name, path string) *Declaration { return NewDeclaration(name, http.MethodGet, path) }

// POST declares a POST operation.
func POST(name, path string) *Declaration { return NewDeclaration(name, http.MethodPost, path) }

// PUT declares a PUT operation.
func PUT(name, path string) *Declaration { return NewDeclaration(name, http.MethodPut, path) }

// PATCH declares a PATCH operation.
func PATCH(name, path string) *Declaration { return NewDeclaration(name, http.MethodPatch, path) }

// DELETE declares a DELETE operation.
func DELETE(name, path string) *Declaration { return NewDeclaration(name, http.MethodDelete, path) }

// Returning sets the result shape.
func (d *Declaration) Returning(s Shape) *Declaration {
	d.Shape = s
	return d
}

// WithParam adds a parameter binding.
func (d *Declaration) WithParam(p Param) *Declaration {
	d.Params = append(d.Params, p)
	return d
}

// PathVariable binds an argument to the {name} placeholder of the path template.
// Path variables are always required.
func (d *Declaration) PathVariable(name string) *Declaration {
	return d.WithParam(Param{Name: name, Kind: ParamPath, Required: true})
}

// QueryParam binds an argument to a query parameter.
func (d *Declaration) QueryParam(name string) *Declaration {
	return d.WithParam(Param{Name: name, Kind: ParamQuery})
}

// Header binds an argument to a request header.
func (d *Declaration) Header(name string) *Declaration {
	return d.WithParam(Param{Name: name, Kind: ParamHeader})
}

// Attribute binds an argument to a request attribute, visible to filters only.
func (d *Declaration) Attribute(name string) *Declaration {
	return d.WithParam(Param{Name: name, Kind: ParamAttribute})
}

// URI binds an argument that, when non-nil, replaces the whole target URL.
func (d *Declaration) URI(name string) *Declaration {
	return d.WithParam(Param{Name: name, Kind: ParamURI})
}

// URIBuilderFactory binds an argument that, when non-nil, replaces the
// transport's base URL for the call.
func (d *Declaration) URIBuilderFactory(name string) *Declaration {
	return d.WithParam(Param{Name: name, Kind: ParamURIBuilderFactory})
}

// Body binds an argument to the request body.
func (d *Declaration) Body(name string) *Declaration {
	return d.WithParam(Param{Name: name, Kind: ParamBody})
}

// Require marks the named parameters as required.
func (d *Declaration) Require(names ...string) *Declaration {
	for _, n := range names {
		for i := range d.Params {
			if d.Params[i].Name == n {
				d.Params[i].Required = true
			}
		}
	}
	return d
}

// Produces sets the Content-Type of the request body.
func (d *Declaration) Produces(contentType string) *Declaration {
	d.ContentType = contentType
	return d
}

// Consumes sets the Accept header.
func (d *Declaration) Consumes(accept string) *Declaration {
	d.Accept = accept
	return d
}

func (d *Declaration) clone() *Declaration {
	c := *d
	c.Params = append([]Param(nil), d.Params...)
	return &c
}

// param returns the binding for name.
func (d *Declaration) param(name string) (Param, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// compile validates the declaration and parses its template.
// Every problem is reported as a CodeBinding error.
func (d *Declaration) compile() (*uritemplate.Template, error) {
	bindErr := func(format string, args ...any) error {
		return Errorf(CodeBinding, "%s: "+format, append([]any{d.Name}, args...)...).
			WithDetail("declaration", d.Name)
	}

	if d.Name == "" {
		return nil, Errorf(CodeBinding, "declaration for %s %q has no name", d.Method, d.Path)
	}
	if d.Method == "" {
		return nil, bindErr("no HTTP method")
	}
	if _, ok := shapeNames[d.Shape]; !ok {
		return nil, bindErr("unknown shape %d", int(d.Shape))
	}

	tmpl, err := uritemplate.Parse(d.Path)
	if err != nil {
		return nil, bindErr("%v", err)
	}

	seen := make(map[string]bool, len(d.Params))
	pathBound := make(map[string]bool)
	bodies := 0
	for _, p := range d.Params {
		if p.Name == "" {
			return nil, bindErr("%s parameter has no name", p.Kind)
		}
		if seen[p.Name] {
			return nil, bindErr("duplicate parameter %q", p.Name)
		}
		seen[p.Name] = true
		switch p.Kind {
		case ParamPath:
			pathBound[p.Name] = true
		case ParamBody:
			bodies++
		case ParamQuery, ParamHeader, ParamAttribute, ParamURI, ParamURIBuilderFactory:
		default:
			return nil, bindErr("parameter %q has unknown kind %d", p.Name, int(p.Kind))
		}
	}
	if bodies > 1 {
		return nil, bindErr("%d body parameters, at most one allowed", bodies)
	}

	placeholders := make(map[string]bool)
	for _, name := range tmpl.Names() {
		placeholders[name] = true
		if !pathBound[name] {
			return nil, bindErr("path placeholder {%s} has no path variable binding", name)
		}
	}
	for name := range pathBound {
		if !placeholders[name] {
			return nil, bindErr("path variable %q does not appear in %q", name, d.Path)
		}
	}

	return tmpl, nil
}
