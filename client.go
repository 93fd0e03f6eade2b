package exchange

import (
	"context"
	"errors"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

var (
	contextType    = reflect.TypeFor[context.Context]()
	urlPtrType     = reflect.TypeFor[*url.URL]()
	uriFactoryType = reflect.TypeFor[URIBuilderFactory]()
)

// argTags are the struct tags that bind an argument field, in lookup order.
var argTags = []struct {
	tag  string
	kind ParamKind
}{
	{"path", ParamPath},
	{"query", ParamQuery},
	{"header", ParamHeader},
	{"attr", ParamAttribute},
	{"body", ParamBody},
}

// CreateClient returns a new T whose tagged func fields call out over HTTP.
// See ProxyFactory.Bind for how T is declared.
func CreateClient[T any](f *ProxyFactory) (*T, error) {
	svc := new(T)
	if err := f.Bind(svc); err != nil {
		return nil, err
	}
	return svc, nil
}

// Bind implements every func field of the struct svc points to that carries an
// http tag:
//
//	type GreetingService struct {
//	    GetGreeting      func(ctx context.Context) (string, error)                      `http:"GET /greeting"`
//	    GetGreetingAsync func(ctx context.Context) *exchange.Future[string]              `http:"GET /greeting"`
//	    GetGreetingSeq   func(ctx context.Context) iter.Seq2[string, error]             `http:"GET /greeting"`
//	    GetGreetingByID  func(ctx context.Context, a ByID) (*exchange.Entity[string], error) `http:"GET /greeting/{id}"`
//	}
//
// The result type selects the shape: (R, error) or (error) is scalar,
// *Future[R] is future, iter.Seq2[R, error] is stream, (*Entity[R], error) is
// entity. Optional accept and content-type tags set the Accept and
// Content-Type headers.
//
// The optional second parameter is a struct (or pointer to one) whose fields
// are the call arguments:
//
//	type ByID struct {
//	    ID      string                     `path:"id"`
//	    Param   string                     `query:"param,omitempty"`
//	    Trace   string                     `header:"X-Trace"`
//	    User    string                     `attr:"user" validate:"required"`
//	    URI     *url.URL                   // replaces the target when non-nil
//	    Factory exchange.URIBuilderFactory // replaces the base URL when non-nil
//	}
//
// An empty tag name defaults to the field name. Struct-valued query fields are
// encoded field by field using their own query tags. Argument structs are
// checked with validator before each call.
//
// Fields are only assigned if every tagged field binds, so a failed Bind
// leaves svc untouched.
func (f *ProxyFactory) Bind(svc any) error {
	rv := reflect.ValueOf(svc)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return Errorf(CodeBinding, "Bind needs a non-nil pointer to a struct, got %T", svc)
	}
	sv := rv.Elem()
	st := sv.Type()

	type bound struct {
		index int
		fn    reflect.Value
	}
	var (
		fields []bound
		errs   []error
	)
	for i := 0; i < st.NumField(); i++ {
		sf := st.Field(i)
		tag, ok := sf.Tag.Lookup("http")
		if !ok {
			continue
		}
		if !sf.IsExported() {
			errs = append(errs, Errorf(CodeBinding, "%s.%s: field is not exported", st.Name(), sf.Name))
			continue
		}
		fn, err := f.bindFunc(sf, tag)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fields = append(fields, bound{index: i, fn: fn})
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	for _, b := range fields {
		sv.Field(b.index).Set(b.fn)
	}
	return nil
}

// bindFunc builds the implementation of one func field.
func (f *ProxyFactory) bindFunc(sf reflect.StructField, tag string) (reflect.Value, error) {
	bindErr := func(format string, args ...any) error {
		return Errorf(CodeBinding, "%s: "+format, append([]any{sf.Name}, args...)...)
	}

	ft := sf.Type
	if ft.Kind() != reflect.Func {
		return reflect.Value{}, bindErr("http tag on non-func field of type %s", ft)
	}
	if ft.IsVariadic() {
		return reflect.Value{}, bindErr("variadic functions are not supported")
	}

	verb, path, ok := strings.Cut(strings.TrimSpace(tag), " ")
	path = strings.TrimSpace(path)
	if !ok || verb == "" || path == "" {
		return reflect.Value{}, bindErr(`http tag %q must look like "GET /path"`, tag)
	}

	if ft.NumIn() < 1 || ft.NumIn() > 2 || ft.In(0) != contextType {
		return reflect.Value{}, bindErr("signature must be func(context.Context[, Args]), got %s", ft)
	}

	shape, out, err := resultShape(ft)
	if err != nil {
		return reflect.Value{}, bindErr("%v", err)
	}

	decl := NewDeclaration(sf.Name, verb, path).Returning(shape)
	decl.Accept = sf.Tag.Get("accept")
	decl.ContentType = sf.Tag.Get("content-type")

	var plan *argPlan
	if ft.NumIn() == 2 {
		plan, err = newArgPlan(ft.In(1))
		if err != nil {
			return reflect.Value{}, bindErr("%v", err)
		}
		decl.Params = plan.params
	}

	m, err := f.newMethod(decl)
	if err != nil {
		return reflect.Value{}, err
	}

	fn := reflect.MakeFunc(ft, func(in []reflect.Value) []reflect.Value {
		ctx, _ := in[0].Interface().(context.Context)
		if ctx == nil {
			ctx = context.Background()
		}
		var args Args
		if plan != nil {
			a, err := plan.extract(in[1])
			if err != nil {
				return m.adapt(ctx, failedPending(AsError(err)), out)
			}
			args = a
		}
		return m.call(ctx, args, out)
	})
	return fn, nil
}

// resultShape maps a func type's results to a shape and the adapter's out type.
func resultShape(ft reflect.Type) (Shape, reflect.Type, error) {
	switch ft.NumOut() {
	case 1:
		out := ft.Out(0)
		if out == errorType {
			return ShapeScalar, nil, nil
		}
		shape, ok := shapeOf(out)
		if ok && (shape == ShapeFuture || shape == ShapeStream) {
			return shape, out, nil
		}
		return 0, nil, errors.New("single result must be error, *Future[R] or iter.Seq2[R, error]")
	case 2:
		out := ft.Out(0)
		if ft.Out(1) != errorType {
			return 0, nil, errors.New("second result must be error")
		}
		shape, ok := shapeOf(out)
		if !ok || shape == ShapeFuture || shape == ShapeStream {
			return 0, nil, errors.New("(R, error) results need a plain R or *Entity[R]")
		}
		return shape, out, nil
	}
	return 0, nil, errors.New("must return (R, error), (error), *Future[R] or iter.Seq2[R, error]")
}

// argPlan maps the fields of an argument struct to parameters.
// It is computed once per func field.
type argPlan struct {
	typ      reflect.Type
	ptr      bool
	params   []Param
	indexes  [][]int
	validate bool
}

func newArgPlan(t reflect.Type) (*argPlan, error) {
	plan := &argPlan{typ: t}
	st := t
	if st.Kind() == reflect.Pointer {
		plan.ptr = true
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		return nil, errors.New("arguments must be a struct or a pointer to a struct, got " + t.String())
	}

	for _, sf := range reflect.VisibleFields(st) {
		if !sf.IsExported() || sf.Anonymous {
			continue
		}
		if _, ok := sf.Tag.Lookup("validate"); ok {
			plan.validate = true
		}

		p, ok, err := paramFor(sf)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		plan.params = append(plan.params, p)
		plan.indexes = append(plan.indexes, sf.Index)
	}
	return plan, nil
}

func paramFor(sf reflect.StructField) (Param, bool, error) {
	for _, at := range argTags {
		tag, ok := sf.Tag.Lookup(at.tag)
		if !ok {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if name == "-" {
			return Param{}, false, nil
		}
		if name == "" {
			name = sf.Name
		}
		p := Param{Name: name, Kind: at.kind, Required: at.kind == ParamPath}
		for _, opt := range strings.Split(opts, ",") {
			switch strings.TrimSpace(opt) {
			case "omitempty":
				p.OmitEmpty = true
			case "required":
				p.Required = true
			}
		}
		return p, true, nil
	}

	switch {
	case sf.Type == urlPtrType:
		return Param{Name: sf.Name, Kind: ParamURI}, true, nil
	case sf.Type == uriFactoryType || (sf.Type.Kind() == reflect.Pointer && sf.Type.Implements(uriFactoryType)):
		return Param{Name: sf.Name, Kind: ParamURIBuilderFactory}, true, nil
	}
	return Param{}, false, nil
}

// extract validates the argument struct and collects its bound fields.
func (p *argPlan) extract(v reflect.Value) (Args, error) {
	if p.ptr {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}
	if p.validate {
		if err := validate.Struct(v.Interface()); err != nil {
			return nil, err
		}
	}

	args := make(Args, len(p.params))
	for i, param := range p.params {
		args[param.Name] = v.FieldByIndex(p.indexes[i]).Interface()
	}
	return args, nil
}
