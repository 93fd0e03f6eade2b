package exchange

import (
	"context"
	"iter"
	"reflect"
	"sync"
)

var errorType = reflect.TypeFor[error]()

// adapter turns a call into the values handed back to the caller.
//
// out is the caller's result type: R for scalar, *Future[R], a
// func(yield func(R, error) bool) such as iter.Seq2[R, error] for stream,
// and *Entity[R] for entity. It is nil for scalar calls with no result.
//
// The returned values match the caller's results: (out, error) for scalar
// and entity, (error) for scalar calls with no result, (out) for future and
// stream.
//
// p has not been started; each adapter decides when the request goes out.
type adapter func(ctx context.Context, m *Method, p *Pending, out reflect.Type) []reflect.Value

var adapters = map[Shape]adapter{
	ShapeScalar: adaptScalar,
	ShapeFuture: adaptFuture,
	ShapeStream: adaptStream,
	ShapeEntity: adaptEntity,
}

// call dispatches through the adapter of the declared shape.
func (m *Method) call(ctx context.Context, args Args, out reflect.Type) []reflect.Value {
	return m.adapt(ctx, m.prepare(ctx, args), out)
}

func (m *Method) adapt(ctx context.Context, p *Pending, out reflect.Type) []reflect.Value {
	return adapters[m.decl.Shape](ctx, m, p, out)
}

// block waits for p, bounded by the factory's block timeout.
func (m *Method) block(ctx context.Context, p *Pending) (*Response, error) {
	if d := m.factory.blockTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	return p.Wait(ctx)
}

// settle turns a finished exchange into a decoded value.
// Non-2xx responses and empty bodies are errors.
func settle(resp *Response, err error, t reflect.Type) (reflect.Value, error) {
	if err != nil {
		return zeroOf(t), err
	}
	if !isSuccess(resp.StatusCode) {
		return zeroOf(t), statusError(resp)
	}
	if t == nil {
		return reflect.Value{}, nil
	}
	return decodeBody(resp, t, false)
}

func adaptScalar(ctx context.Context, m *Method, p *Pending, out reflect.Type) []reflect.Value {
	resp, err := m.block(ctx, p)
	v, err := settle(resp, err, out)
	if out == nil {
		return []reflect.Value{errValue(err)}
	}
	return []reflect.Value{v, errValue(err)}
}

func adaptEntity(ctx context.Context, m *Method, p *Pending, out reflect.Type) []reflect.Value {
	resp, err := m.block(ctx, p)
	if err != nil {
		return []reflect.Value{reflect.Zero(out), errValue(err)}
	}

	ev := reflect.New(out.Elem())
	bodyField := ev.Elem().FieldByName("Body")
	body, derr := decodeBody(resp, bodyField.Type(), true)
	if derr != nil {
		// Error bodies often do not match the success type; keep the status.
		if isSuccess(resp.StatusCode) {
			return []reflect.Value{reflect.Zero(out), errValue(derr)}
		}
		body = reflect.Zero(bodyField.Type())
	}
	bodyField.Set(body)
	ev.Elem().FieldByName("StatusCode").SetInt(int64(resp.StatusCode))
	ev.Elem().FieldByName("Header").Set(reflect.ValueOf(resp.Header.Clone()))
	return []reflect.Value{ev, errValue(nil)}
}

func adaptFuture(_ context.Context, _ *Method, p *Pending, out reflect.Type) []reflect.Value {
	p.Start()
	fv := reflect.New(out.Elem())
	fv.Interface().(futureBinder).bind(p)
	return []reflect.Value{fv}
}

func adaptStream(ctx context.Context, _ *Method, p *Pending, out reflect.Type) []reflect.Value {
	elem := out.In(0).In(0)

	var (
		once sync.Once
		val  reflect.Value
		err  error
	)
	seq := reflect.MakeFunc(out, func(in []reflect.Value) []reflect.Value {
		once.Do(func() {
			resp, werr := p.Wait(ctx)
			val, err = settle(resp, werr, elem)
		})
		in[0].Call([]reflect.Value{val, errValue(err)})
		return nil
	})
	return []reflect.Value{seq}
}

// Invoke calls a scalar method and returns its decoded result.
func Invoke[R any](ctx context.Context, m *Method, args Args) (R, error) {
	var zero R
	if err := m.expect(ShapeScalar); err != nil {
		return zero, err
	}
	out := m.call(ctx, args, reflect.TypeFor[R]())
	r, _ := out[0].Interface().(R)
	return r, asError(out[1])
}

// InvokeVoid calls a scalar method and discards its body.
func InvokeVoid(ctx context.Context, m *Method, args Args) error {
	if err := m.expect(ShapeScalar); err != nil {
		return err
	}
	return asError(m.call(ctx, args, nil)[0])
}

// InvokeAsync calls a future method. The request is sent immediately.
func InvokeAsync[R any](ctx context.Context, m *Method, args Args) *Future[R] {
	if err := m.expect(ShapeFuture); err != nil {
		f := &Future[R]{}
		f.bind(failedPending(err))
		return f
	}
	return m.call(ctx, args, reflect.TypeFor[*Future[R]]())[0].Interface().(*Future[R])
}

// InvokeStream calls a stream method. The request is sent when the sequence
// is first iterated; later iterations replay the same outcome.
func InvokeStream[R any](ctx context.Context, m *Method, args Args) iter.Seq2[R, error] {
	if err := m.expect(ShapeStream); err != nil {
		return func(yield func(R, error) bool) {
			var zero R
			yield(zero, err)
		}
	}
	return m.call(ctx, args, reflect.TypeFor[iter.Seq2[R, error]]())[0].Interface().(iter.Seq2[R, error])
}

// InvokeEntity calls an entity method.
func InvokeEntity[R any](ctx context.Context, m *Method, args Args) (*Entity[R], error) {
	if err := m.expect(ShapeEntity); err != nil {
		return nil, err
	}
	out := m.call(ctx, args, reflect.TypeFor[*Entity[R]]())
	e, _ := out[0].Interface().(*Entity[R])
	return e, asError(out[1])
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func zeroOf(t reflect.Type) reflect.Value {
	if t == nil {
		return reflect.Value{}
	}
	return reflect.Zero(t)
}

func errValue(err error) reflect.Value {
	if err == nil {
		return reflect.Zero(errorType)
	}
	return reflect.ValueOf(&err).Elem()
}

func asError(v reflect.Value) error {
	err, _ := v.Interface().(error)
	return err
}
