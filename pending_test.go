package exchange

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestPending_RunsOnce(t *testing.T) {
	var runs atomic.Int32
	p := newPending(context.Background(), func(ctx context.Context) (*Response, error) {
		runs.Add(1)
		return &Response{StatusCode: 200}, nil
	})

	select {
	case <-p.Done():
		t.Fatal("expected Done to stay open before Start")
	case <-time.After(10 * time.Millisecond):
	}

	p.Start()
	p.Start()
	for range 3 {
		resp, err := p.Wait(context.Background())
		if err != nil || resp.StatusCode != 200 {
			t.Errorf("got %+v, %v", resp, err)
		}
	}
	if n := runs.Load(); n != 1 {
		t.Errorf("expected one run, got %d", n)
	}
}

func TestPending_WaitCancels(t *testing.T) {
	p := newPending(context.Background(), func(ctx context.Context) (*Response, error) {
		<-ctx.Done()
		return nil, transportError(ctx.Err())
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Wait(ctx); AsError(err).Code != CodeCanceled {
		t.Errorf("expected canceled, got %v", err)
	}

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("expected the exchange to stop after Wait gave up")
	}
	if _, err := p.Result(); AsError(err).Code != CodeCanceled {
		t.Errorf("expected canceled result, got %v", err)
	}
}

func TestFailedPending(t *testing.T) {
	testErr := errors.New("bad argument")
	p := failedPending(testErr)
	p.Start()
	p.Cancel()
	<-p.Done()
	if _, err := p.Wait(context.Background()); err != testErr {
		t.Errorf("expected the original error, got %v", err)
	}
}

func TestPending_CancelBeforeStart(t *testing.T) {
	var runs atomic.Int32
	p := newPending(context.Background(), func(ctx context.Context) (*Response, error) {
		runs.Add(1)
		return nil, transportError(ctx.Err())
	})
	p.Cancel()
	if _, err := p.Wait(context.Background()); AsError(err).Code != CodeCanceled {
		t.Errorf("expected canceled, got %v", err)
	}
	if n := runs.Load(); n != 1 {
		t.Errorf("expected one run, got %d", n)
	}
}

func TestPending_NoContextBeforeStart(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := newPending(parent, func(ctx context.Context) (*Response, error) {
		return &Response{StatusCode: 200}, nil
	})
	p.mu.Lock()
	started := p.cancel != nil
	p.mu.Unlock()
	if started {
		t.Error("expected no derived context before Start")
	}
}
