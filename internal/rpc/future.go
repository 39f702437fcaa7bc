package rpc

import (
	"context"
	"sync"

	"github.com/danhigham/tgcore/internal/domain"
)

// Future is the handle for one in-flight request. It is resolved at most once.
type Future struct {
	engine *Engine
	id     int64
	kind   string

	once   sync.Once
	done   chan struct{}
	result domain.Result
	err    error
}

func newFuture(e *Engine, id int64, kind string) *Future {
	return &Future{engine: e, id: id, kind: kind, done: make(chan struct{})}
}

// ID returns the correlation id assigned to the request.
func (f *Future) ID() int64 { return f.id }

// Done is closed once the future is resolved.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the response arrives or ctx ends. When ctx ends first the
// request is abandoned and a late response for it is dropped.
func (f *Future) Wait(ctx context.Context) (domain.Result, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		f.engine.forget(f.id)
		return nil, ctx.Err()
	}
}

func (f *Future) resolve(result domain.Result, err error) {
	f.once.Do(func() {
		f.result = result
		f.err = err
		close(f.done)
	})
}
