// Package rpctest provides an in-memory rpc.Transport for tests.
package rpctest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/danhigham/tgcore/internal/domain"
)

// Sent is one request handed to the transport.
type Sent struct {
	ID      int64
	Request domain.Request
}

// Transport records every request it is given. It never answers on its own;
// install a handler with OnSend to play the backend.
type Transport struct {
	mu      sync.Mutex
	sent    []Sent
	sendErr error
	onSend  func(id int64, req domain.Request)
	closed  int

	ch chan Sent
}

func New() *Transport {
	return &Transport{ch: make(chan Sent, 1024)}
}

// Send implements rpc.Transport.
func (t *Transport) Send(ctx context.Context, id int64, req domain.Request) error {
	t.mu.Lock()
	if t.sendErr != nil {
		err := t.sendErr
		t.mu.Unlock()
		return err
	}
	s := Sent{ID: id, Request: req}
	t.sent = append(t.sent, s)
	handler := t.onSend
	t.mu.Unlock()

	t.ch <- s
	if handler != nil {
		handler(id, req)
	}
	return nil
}

// Close implements rpc.Transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed++
	return nil
}

// OnSend installs a handler called synchronously after each recorded send.
func (t *Transport) OnSend(fn func(id int64, req domain.Request)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSend = fn
}

// SetSendError makes every following Send fail with err.
func (t *Transport) SetSendError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sendErr = err
}

// Sent returns a copy of every recorded request in send order.
func (t *Transport) Sent() []Sent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Sent, len(t.sent))
	copy(out, t.sent)
	return out
}

// Count returns how many requests of the given kind were sent.
func (t *Transport) Count(kind string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, s := range t.sent {
		if s.Request.Kind() == kind {
			n++
		}
	}
	return n
}

// Closed returns how many times Close was called.
func (t *Transport) Closed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Next waits for the next recorded request, failing the test after a second.
func (t *Transport) Next(tb testing.TB) Sent {
	tb.Helper()
	select {
	case s := <-t.ch:
		return s
	case <-time.After(time.Second):
		tb.Fatal("timed out waiting for a request")
		return Sent{}
	}
}

// Drain discards recorded requests that were not consumed with Next.
func (t *Transport) Drain() {
	for {
		select {
		case <-t.ch:
		default:
			return
		}
	}
}
