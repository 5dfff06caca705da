package signal

import "context"

// Queue buffers signals between the strategy producer and the execution loop.
// FIFO, single consumer.
type Queue struct {
	ch chan Signal
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 100
	}
	return &Queue{ch: make(chan Signal, size)}
}

// Push enqueues a signal, blocking while the queue is full.
func (q *Queue) Push(s Signal) {
	q.ch <- s
}

// TryPush enqueues without blocking and reports whether the signal was
// accepted. Producers that must never stall use this and drop on backlog.
func (q *Queue) TryPush(s Signal) bool {
	select {
	case q.ch <- s:
		return true
	default:
		return false
	}
}

func (q *Queue) Chan() <-chan Signal {
	return q.ch
}

func (q *Queue) Len() int {
	return len(q.ch)
}

func (q *Queue) Close() {
	close(q.ch)
}

// Drain consumes signals with a handler until the context is cancelled or
// the queue is closed.
func (q *Queue) Drain(ctx context.Context, handler func(Signal)) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-q.ch:
			if !ok {
				return
			}
			handler(s)
		}
	}
}
