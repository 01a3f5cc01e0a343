package relay

import (
	"sync"
)

// Queue is an unbounded FIFO between one set of producers and one
// consumer. Pushes never block; the consumer ranges over Out, which is
// closed once Close has been called and the buffer drained.
type Queue[T any] struct {
	mu     sync.Mutex
	closed bool
	in     chan T
	out    chan T
}

func NewQueue[T any]() *Queue[T] {
	q := &Queue[T]{
		in:  make(chan T),
		out: make(chan T),
	}
	go q.pump()
	return q
}

func (q *Queue[T]) pump() {
	var buf []T
	in := q.in
	for in != nil || len(buf) > 0 {
		var out chan T
		var next T
		if len(buf) > 0 {
			out = q.out
			next = buf[0]
		}
		select {
		case v, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			buf = append(buf, v)
		case out <- next:
			buf = buf[1:]
		}
	}
	close(q.out)
}

// Push enqueues v. It reports false once the queue has been closed.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.in <- v
	return true
}

// Out is the consumer side of the queue.
func (q *Queue[T]) Out() <-chan T {
	return q.out
}

// Close stops accepting pushes. Buffered items remain readable from
// Out, which closes after the drain. Idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.in)
}
