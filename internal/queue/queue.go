// Package queue provides an unbounded FIFO queue with blocking consumption.
//
// Producers never block: the queue grows until memory runs out. It is used
// where the producer cannot be slowed down, such as the single goroutine
// delivering backend updates.
package queue

import (
	"context"
	"io"
	"iter"
	"sync"
)

// Queue is an unbounded, order-preserving queue. The zero value is not
// usable; call New.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	wait   chan struct{} // closed and replaced on every push
	closed bool
}

func New[T any]() *Queue[T] {
	return &Queue[T]{wait: make(chan struct{})}
}

// Push appends v. It returns false if the queue is closed.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, v)
	close(q.wait)
	q.wait = make(chan struct{})
	return true
}

// Next removes and returns the oldest item, blocking until one is available.
// It returns io.EOF once the queue is closed and drained, or ctx.Err() if ctx
// ends first.
func (q *Queue[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v := q.items[0]
			q.items[0] = zero
			q.items = q.items[1:]
			q.mu.Unlock()
			return v, nil
		}
		if q.closed {
			q.mu.Unlock()
			return zero, io.EOF
		}
		wait := q.wait
		q.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// All returns a sequence that drains the queue until it is closed or ctx
// ends. Items consumed by one sequence are not seen by others.
func (q *Queue[T]) All(ctx context.Context) iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			v, err := q.Next(ctx)
			if err != nil {
				return
			}
			if !yield(v) {
				return
			}
		}
	}
}

// Close stops accepting items. Items already queued can still be consumed.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.wait)
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
