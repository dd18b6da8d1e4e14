// Package spsc is a bounded single-producer single-consumer queue. The one
// Sender and the one Receiver are handed out as tokens; whoever holds a token
// owns that end's cursor, so no cursor is ever contended.
package spsc

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/aradilov/lockfree/state"
)

type slot[T any] struct {
	seq atomic.Uint64 // position this slot is ready for
	val T
}

type Spsc[T any] struct {
	_        cpu.CacheLinePad
	capacity uint64
	slots    []slot[T]
	sender   atomic.Bool
	receiver atomic.Bool
	_        cpu.CacheLinePad
	enqueue  atomic.Uint64 // logical tail, written by the Sender only
	_        cpu.CacheLinePad
	dequeue  atomic.Uint64 // logical head, written by the Receiver only
	_        cpu.CacheLinePad
}

// New creates a queue holding up to capacity elements. Any capacity >= 1 is
// accepted.
func New[T any](capacity int) *Spsc[T] {
	if capacity < 1 {
		panic("spsc: capacity must be > 0")
	}

	slots := make([]slot[T], capacity)
	for i := range slots {
		// initial sequence value per slot
		slots[i].seq.Store(uint64(i))
	}

	return &Spsc[T]{
		capacity: uint64(capacity),
		slots:    slots,
	}
}

// TakeSender hands out the producing end. It returns false if the Sender is
// already held.
func (q *Spsc[T]) TakeSender() (*Sender[T], bool) {
	if !q.sender.CompareAndSwap(false, true) {
		return nil, false
	}
	return &Sender[T]{q: q}, true
}

// TakeReceiver hands out the consuming end. It returns false if the Receiver
// is already held.
func (q *Spsc[T]) TakeReceiver() (*Receiver[T], bool) {
	if !q.receiver.CompareAndSwap(false, true) {
		return nil, false
	}
	return &Receiver[T]{q: q}, true
}

func (q *Spsc[T]) Capacity() int {
	return int(q.capacity)
}

// Len returns the number of queued elements. It is a snapshot.
func (q *Spsc[T]) Len() int {
	head := q.dequeue.Load()
	tail := q.enqueue.Load()
	if tail < head {
		return 0
	}
	return int(tail - head)
}

// Clear drops every queued element, handing each to fn if fn is not nil, and
// resets the queue. The caller must hold both tokens or otherwise exclude
// the Sender and the Receiver.
func (q *Spsc[T]) Clear(fn func(T)) {
	var zero T
	head, tail := q.dequeue.Load(), q.enqueue.Load()
	for pos := head; pos < tail; pos++ {
		s := &q.slots[pos%q.capacity]
		if fn != nil {
			fn(s.val)
		}
	}
	for i := range q.slots {
		q.slots[i].val = zero
		q.slots[i].seq.Store(uint64(i))
	}
	q.enqueue.Store(0)
	q.dequeue.Store(0)
}

// Sender is the producing end of a Spsc.
type Sender[T any] struct {
	q *Spsc[T]
}

// Send pushes v. It fails with state.ErrFull if the Receiver has not freed
// the next slot yet.
func (s *Sender[T]) Send(v T) error {
	q := s.q
	pos := q.enqueue.Load()
	sl := &q.slots[pos%q.capacity]

	if sl.seq.Load() != pos {
		// the consumer has not released this slot from the previous cycle
		return state.Failure(state.Initialized, v, false, state.ErrFull)
	}
	sl.val = v
	// publish the value: seq = pos+1
	sl.seq.Store(pos + 1)
	q.enqueue.Store(pos + 1)
	return nil
}

// Close gives the token back so that TakeSender succeeds again. The Sender
// must not be used afterwards.
func (s *Sender[T]) Close() {
	if q := s.q; q != nil {
		s.q = nil
		q.sender.Store(false)
	}
}

// Receiver is the consuming end of a Spsc.
type Receiver[T any] struct {
	q *Spsc[T]
}

// Recv pops the oldest element. It fails with state.ErrEmpty if the Sender
// has not published one yet.
func (r *Receiver[T]) Recv() (T, error) {
	var zero T
	q := r.q
	pos := q.dequeue.Load()
	sl := &q.slots[pos%q.capacity]

	if sl.seq.Load() != pos+1 {
		return zero, state.Failure(state.Uninitialized, struct{}{}, false, state.ErrEmpty)
	}
	v := sl.val
	sl.val = zero
	// free the slot for the next cycle:
	// next time this physical slot will be used at pos+capacity
	sl.seq.Store(pos + q.capacity)
	q.dequeue.Store(pos + 1)
	return v, nil
}

// Close gives the token back so that TakeReceiver succeeds again. The
// Receiver must not be used afterwards.
func (r *Receiver[T]) Close() {
	if q := r.q; q != nil {
		r.q = nil
		q.receiver.Store(false)
	}
}
