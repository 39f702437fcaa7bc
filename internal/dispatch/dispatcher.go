// Package dispatch is the single entry point for everything the backend
// pushes to the client.
package dispatch

import (
	"context"
	"fmt"
	"iter"

	"go.uber.org/zap"

	"github.com/danhigham/tgcore/internal/domain"
	"github.com/danhigham/tgcore/internal/queue"
)

// Resolver completes the waiter of a correlated response.
type Resolver interface {
	Resolve(resp domain.Response) bool
}

// AuthHandler reacts to authorization notifications. It is called on the
// delivering goroutine and must not block on backend responses.
type AuthHandler interface {
	OnAuthorizationUpdate(phase domain.AuthPhase)
}

// Dispatcher classifies inbound messages. Responses go to the resolver,
// authorization notifications to the auth handler, and generic updates to an
// unbounded FIFO queue.
type Dispatcher struct {
	resolver Resolver
	auth     AuthHandler
	logger   *zap.Logger
	updates  *queue.Queue[domain.Update]
}

func New(resolver Resolver, auth AuthHandler, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		resolver: resolver,
		auth:     auth,
		logger:   logger.Named("dispatch"),
		updates:  queue.New[domain.Update](),
	}
}

// OnMessage routes one inbound message. Malformed messages are logged and
// dropped.
func (d *Dispatcher) OnMessage(msg domain.Incoming) {
	switch m := msg.(type) {
	case domain.Response:
		if m.ID < 1 {
			d.logger.Warn("drop response without correlation id", zap.Int64("id", m.ID))
			return
		}
		d.resolver.Resolve(m)
	case domain.AuthorizationUpdate:
		d.logger.Debug("authorization update", zap.Stringer("phase", m.Phase))
		d.auth.OnAuthorizationUpdate(m.Phase)
	case domain.Update:
		if !d.updates.Push(m) {
			d.logger.Debug("drop update after close", zap.String("type", fmt.Sprintf("%T", m)))
		}
	case nil:
		d.logger.Warn("drop nil message")
	default:
		d.logger.Warn("drop unclassifiable message", zap.String("type", fmt.Sprintf("%T", m)))
	}
}

// Next removes the oldest generic update, blocking until one arrives. It
// returns io.EOF after Close once the queue is drained.
func (d *Dispatcher) Next(ctx context.Context) (domain.Update, error) {
	return d.updates.Next(ctx)
}

// Updates returns a sequence that drains generic updates in arrival order.
func (d *Dispatcher) Updates(ctx context.Context) iter.Seq[domain.Update] {
	return d.updates.All(ctx)
}

// Backlog returns the number of queued generic updates.
func (d *Dispatcher) Backlog() int {
	return d.updates.Len()
}

// Close ends the update sequence. Updates arriving afterwards are dropped.
func (d *Dispatcher) Close() {
	d.updates.Close()
}
