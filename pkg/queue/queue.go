// Package queue buffers player commands between the transport and the
// simulation loop, which is the only goroutine that touches an engine.
package queue

import (
	"context"
	"errors"
)

// ErrFull is returned when a session sends faster than the loop drains
var ErrFull = errors.New("request queue full")

// DefaultSize is the buffer used when New gets a non-positive size
const DefaultSize = 64

// Queue is a bounded FIFO of requests
type Queue struct {
	ch chan *Request
}

// New creates a queue holding up to size requests
func New(size int) *Queue {
	if size <= 0 {
		size = DefaultSize
	}
	return &Queue{ch: make(chan *Request, size)}
}

// Enqueue adds req without blocking
func (q *Queue) Enqueue(req *Request) error {
	select {
	case q.ch <- req:
		return nil
	default:
		return ErrFull
	}
}

// EnqueueWait adds req, waiting for room until ctx is done
func (q *Queue) EnqueueWait(ctx context.Context, req *Request) error {
	select {
	case q.ch <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain returns every queued request in arrival order without blocking
func (q *Queue) Drain() []*Request {
	var out []*Request
	for {
		select {
		case req := <-q.ch:
			out = append(out, req)
		default:
			return out
		}
	}
}

// Len returns the number of queued requests
func (q *Queue) Len() int {
	return len(q.ch)
}
