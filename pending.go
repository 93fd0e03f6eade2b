package exchange

import (
	"context"
	"sync"
)

// Pending is the in-flight result of one call. Every return shape is an
// adapter over a Pending.
//
// The exchange runs on its own goroutine once started and its outcome is
// published by closing Done. Cancel aborts the exchange and releases its
// connection; it is safe to call at any time and more than once.
type Pending struct {
	once   sync.Once
	run    func(ctx context.Context) (*Response, error)
	parent context.Context
	done   chan struct{}
	resp   *Response
	err    error

	mu       sync.Mutex
	cancel   context.CancelFunc
	canceled bool
}

// newPending creates a Pending that calls run when started.
// run receives a context derived from ctx that Cancel cancels. The derived
// context is only created by Start.
func newPending(ctx context.Context, run func(ctx context.Context) (*Response, error)) *Pending {
	return &Pending{
		run:    run,
		parent: ctx,
		done:   make(chan struct{}),
	}
}

// failedPending returns a Pending that is already complete with err.
func failedPending(err error) *Pending {
	p := &Pending{
		done: make(chan struct{}),
		err:  err,
	}
	p.once.Do(func() { close(p.done) })
	return p
}

// Start starts the exchange if it has not started yet.
func (p *Pending) Start() {
	p.once.Do(func() {
		ctx, cancel := context.WithCancel(p.parent)
		p.mu.Lock()
		p.cancel = cancel
		if p.canceled {
			cancel()
		}
		p.mu.Unlock()

		go func() {
			resp, err := p.run(ctx)
			p.resp, p.err = resp, err
			// The exchange is over; release the context's resources.
			cancel()
			close(p.done)
		}()
	})
}

// Done returns a channel closed when the result is available.
// It does not start the exchange.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Cancel aborts the exchange. A Pending canceled before Start runs with an
// already canceled context.
func (p *Pending) Cancel() {
	p.mu.Lock()
	p.canceled = true
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait starts the exchange if needed and waits for its result or for ctx to
// be done. If ctx is done first, the exchange is canceled and ctx's error is
// returned.
func (p *Pending) Wait(ctx context.Context) (*Response, error) {
	p.Start()
	select {
	case <-p.done:
		return p.resp, p.err
	default:
	}
	select {
	case <-p.done:
		return p.resp, p.err
	case <-ctx.Done():
		p.Cancel()
		return nil, AsError(ctx.Err())
	}
}

// Result returns the result of a completed exchange.
// It must only be called after Done is closed.
func (p *Pending) Result() (*Response, error) {
	return p.resp, p.err
}
