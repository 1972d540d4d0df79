// Package eventqueue provides a three-priority multi-producer/multi-consumer
// queue for game events generated during the simulation's game-logic stage.
package eventqueue

import "sync"

// Priority orders draining: High before Normal before Low.
type Priority uint8

const (
	Low Priority = iota
	Normal
	High
)

// Event is an opaque payload; callers define their own concrete event types
// and pass them through as any.
type Event = any

// Queue is a 3-priority MPMC queue. Push/Pop are safe for concurrent use
// from any number of goroutines. No genuine lock-free queue implementation
// appears anywhere in the retrieved corpus, so this is backed by a mutex and
// three slices rather than a CAS-based ring buffer — correct and simple, at
// the cost of brief contention under heavy concurrent push/pop, which the
// per-tick event volumes here never approach.
type Queue struct {
	mu              sync.Mutex
	high, mid, low  []Event
}

// New constructs an empty Queue.
func New() *Queue {
	return &Queue{}
}

// Push enqueues event at the given priority.
func (q *Queue) Push(event Event, p Priority) {
	q.mu.Lock()
	switch p {
	case High:
		q.high = append(q.high, event)
	case Normal:
		q.mid = append(q.mid, event)
	default:
		q.low = append(q.low, event)
	}
	q.mu.Unlock()
}

// Pop removes and returns the next event, draining High before Normal before
// Low. The second return value is false if the queue is empty.
func (q *Queue) Pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.high) > 0 {
		e := q.high[0]
		q.high = q.high[1:]
		return e, true
	}
	if len(q.mid) > 0 {
		e := q.mid[0]
		q.mid = q.mid[1:]
		return e, true
	}
	if len(q.low) > 0 {
		e := q.low[0]
		q.low = q.low[1:]
		return e, true
	}
	return nil, false
}

// PopBatch removes and returns up to n events, same priority discipline as Pop.
func (q *Queue) PopBatch(n int) []Event {
	if n <= 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Event, 0, n)
	out = drainInto(out, &q.high, n)
	if len(out) < n {
		out = drainInto(out, &q.mid, n)
	}
	if len(out) < n {
		out = drainInto(out, &q.low, n)
	}
	return out
}

func drainInto(out []Event, from *[]Event, limit int) []Event {
	take := limit - len(out)
	if take <= 0 {
		return out
	}
	if take > len(*from) {
		take = len(*from)
	}
	out = append(out, (*from)[:take]...)
	*from = (*from)[take:]
	return out
}

// Len returns the total number of queued events across all priorities.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.high) + len(q.mid) + len(q.low)
}
