package exchange

import (
	"context"
	"reflect"
	"sync"
)

// futureBinder is implemented by every *Future[R] so the proxy can build one
// for a result type only known at run time.
type futureBinder interface {
	bind(p *Pending)
}

var futureBinderType = reflect.TypeFor[futureBinder]()

// Future is the awaitable result of a call with the future shape.
//
// The request is already in flight when the Future is returned. Await
// suspends the calling goroutine until the result is available without
// tying up any other goroutine.
//
//	f := svc.GetGreetingAsync(ctx)
//	// ... other work ...
//	greeting, err := f.Await(ctx)
type Future[R any] struct {
	p    *Pending
	once sync.Once
	val  R
	err  error
}

func (f *Future[R]) bind(p *Pending) {
	f.p = p
}

// Await waits for the result. If ctx is done first, the call is canceled and
// the context's error is returned. Once the call has completed, every Await
// returns the same value and error.
func (f *Future[R]) Await(ctx context.Context) (R, error) {
	select {
	case <-f.p.Done():
	default:
		select {
		case <-f.p.Done():
		case <-ctx.Done():
			f.p.Cancel()
			var zero R
			return zero, AsError(ctx.Err())
		}
	}

	f.once.Do(func() {
		resp, err := f.p.Result()
		v, err := settle(resp, err, reflect.TypeFor[R]())
		if err != nil {
			f.err = err
			return
		}
		f.val, _ = v.Interface().(R)
	})
	return f.val, f.err
}

// Done returns a channel closed when the call completes.
func (f *Future[R]) Done() <-chan struct{} {
	return f.p.Done()
}

// Cancel aborts the call. Await then returns a canceled error unless the
// call had already completed.
func (f *Future[R]) Cancel() {
	f.p.Cancel()
}
