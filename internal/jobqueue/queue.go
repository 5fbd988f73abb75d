// Package jobqueue provides the unbounded FIFO that hands work from the
// watcher to the transcode worker.
//
// Push never blocks. Pop blocks until an item is available, the queue is
// closed, or the caller's context ends. The receiving end sits behind its own
// mutex so only one consumer pops at a time; running several workers over one
// queue needs no other change.
package jobqueue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Push and Pop once the queue has been closed.
var ErrClosed = errors.New("job queue closed")

// Queue is an unbounded FIFO with a single guarded receiver.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool

	// ready holds at most one pending wake-up for the receiver.
	ready chan struct{}
	done  chan struct{}

	recvMu sync.Mutex
}

// New returns an empty open queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Push appends item to the tail.
func (q *Queue[T]) Push(item T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return nil
}

// Pop removes and returns the head, waiting while the queue is empty. Pending
// items are not handed out after Close or once ctx is done.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	q.recvMu.Lock()
	defer q.recvMu.Unlock()

	var zero T
	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return zero, ErrClosed
		}
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = zero
			q.items = q.items[1:]
			q.mu.Unlock()
			return item, nil
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-q.done:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Len reports the number of pending items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close disconnects producer and consumer and returns the number of pending
// items that were dropped. Calling it again returns zero.
func (q *Queue[T]) Close() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return 0
	}
	q.closed = true
	dropped := len(q.items)
	q.items = nil
	close(q.done)
	return dropped
}
