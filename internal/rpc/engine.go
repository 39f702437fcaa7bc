// Package rpc correlates requests sent to the backend with the responses it
// pushes back later, out of order, on the same channel.
package rpc

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/danhigham/tgcore/internal/domain"
)

// Transport hands tagged requests to the backend. The backend answers each
// request exactly once through the update dispatcher, unless the transport is
// torn down first.
type Transport interface {
	Send(ctx context.Context, id int64, req domain.Request) error
	Close() error
}

// Caller issues a request and waits for its result.
type Caller interface {
	Call(ctx context.Context, req domain.Request) (domain.Result, error)
}

// Engine allocates correlation ids and resolves one-shot waiters.
type Engine struct {
	logger *zap.Logger

	mu        sync.Mutex
	transport Transport
	pending   map[int64]*Future
	lastID    int64
	closed    bool
}

func New(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		logger:  logger.Named("rpc"),
		pending: make(map[int64]*Future),
	}
}

// Attach sets the transport used by Submit.
func (e *Engine) Attach(t Transport) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transport = t
}

// Submit registers a waiter for req and sends it. The waiter is registered
// before the transport sees the request, so a response can never arrive for
// an id nobody is waiting on.
func (e *Engine) Submit(ctx context.Context, req domain.Request) (*Future, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", domain.ErrInvalidInput)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, domain.ErrCancelled
	}
	t := e.transport
	if t == nil {
		e.mu.Unlock()
		return nil, domain.ErrNotInitialized
	}
	e.lastID++
	f := newFuture(e, e.lastID, req.Kind())
	e.pending[f.id] = f
	e.mu.Unlock()

	e.logger.Debug("send request", zap.Int64("id", f.id), zap.String("kind", f.kind))

	if err := t.Send(ctx, f.id, req); err != nil {
		e.forget(f.id)
		return nil, fmt.Errorf("send %s: %w", f.kind, err)
	}
	return f, nil
}

// Call submits req and waits for the result.
func (e *Engine) Call(ctx context.Context, req domain.Request) (domain.Result, error) {
	f, err := e.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return f.Wait(ctx)
}

// Resolve completes the waiter registered for resp.ID. Responses for unknown
// ids are dropped: the waiter may have given up or the backend may repeat
// itself. It reports whether a waiter was completed.
func (e *Engine) Resolve(resp domain.Response) bool {
	e.mu.Lock()
	f, ok := e.pending[resp.ID]
	if ok {
		delete(e.pending, resp.ID)
	}
	e.mu.Unlock()

	if !ok {
		e.logger.Debug("drop response for unknown request", zap.Int64("id", resp.ID))
		return false
	}

	if resp.Err != nil {
		e.logger.Debug("request rejected",
			zap.Int64("id", f.id),
			zap.String("kind", f.kind),
			zap.Int("code", resp.Err.Code),
			zap.String("message", resp.Err.Message),
		)
		f.resolve(nil, resp.Err)
		return true
	}
	result := resp.Result
	if result == nil {
		result = domain.OK{}
	}
	f.resolve(result, nil)
	return true
}

// Shutdown fails every pending waiter with ErrCancelled and rejects further
// submissions. It is safe to call more than once.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	pending := e.pending
	e.pending = make(map[int64]*Future)
	e.mu.Unlock()

	if len(pending) > 0 {
		e.logger.Info("cancelling pending requests", zap.Int("count", len(pending)))
	}
	for _, f := range pending {
		f.resolve(nil, domain.ErrCancelled)
	}
}

// Pending returns the number of requests awaiting a response.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

func (e *Engine) forget(id int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.pending, id)
}
