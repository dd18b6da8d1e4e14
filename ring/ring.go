// Package ring implements a bounded lock-free FIFO queue for any number of
// producers and consumers.
//
// Every slot carries a state.Lap word. A producer owns a slot by moving it
// from (cycle, Uninitialized) to (cycle, Initializing), a consumer by moving
// it from (cycle, Initialized) to (cycle, Erasing). The start and end cursors
// only hint where to look; they are advanced after the slot CAS, and anyone
// who finds a slot already claimed helps the lagging cursor forward.
package ring

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/aradilov/lockfree/interrupt"
	"github.com/aradilov/lockfree/spin"
	"github.com/aradilov/lockfree/state"
)

type slot[T any] struct {
	lap state.AtomicLap
	val T
}

type Ring[T any] struct {
	_        cpu.CacheLinePad
	capacity int
	wrap     uint64
	slots    []slot[T]
	spin     spin.Strategy
	release  func(T)
	hopLimit int
	stats    *counters
	_        cpu.CacheLinePad
	end      atomic.Uint64 // logical tail (producers)
	_        cpu.CacheLinePad
	start    atomic.Uint64 // logical head (consumers)
	_        cpu.CacheLinePad
}

// New creates a bounded ring holding up to capacity elements.
// Any capacity >= 1 is accepted.
func New[T any](capacity int, opts ...Option) *Ring[T] {
	if capacity < 1 {
		panic("ring: capacity must be > 0")
	}
	cfg, release := resolveRingOptions[T](opts)

	r := &Ring[T]{
		capacity: capacity,
		wrap:     state.WrapDomain(capacity),
		slots:    make([]slot[T], capacity),
		spin:     spin.Or(cfg.spin),
		release:  release,
		hopLimit: cfg.hopLimit,
	}
	if cfg.stats {
		r.stats = new(counters)
	}
	return r
}

// Capacity returns the fixed ring capacity.
func (r *Ring[T]) Capacity() int {
	return r.capacity
}

// Len returns the number of elements between the cursors. Under concurrent
// use it is a snapshot that may already be stale.
func (r *Ring[T]) Len() int {
	start := r.start.Load()
	end := r.end.Load()
	var n uint64
	if end >= start {
		n = end - start
	} else {
		n = r.wrap - start + end
	}
	// a consumer can move start past a lagging end
	if n > r.wrap/2 {
		return 0
	}
	if n > uint64(r.capacity) {
		return r.capacity
	}
	return int(n)
}

func (r *Ring[T]) IsEmpty() bool {
	return r.Len() == 0
}

func (r *Ring[T]) IsFull() bool {
	return r.Len() == r.capacity
}

func (r *Ring[T]) next(cursor uint64) uint64 {
	if cursor+1 == r.wrap {
		return 0
	}
	return cursor + 1
}

// advance moves cursor c from pos to its successor unless someone else
// already did, and returns the position to look at next.
func (r *Ring[T]) advance(c *atomic.Uint64, pos uint64) uint64 {
	n := r.next(pos)
	if c.CompareAndSwap(pos, n) {
		return n
	}
	return c.Load()
}

// TryPush appends v once. It fails with state.ErrFull (permanent) when the
// ring holds capacity elements, and with state.ErrBusy or state.ErrContended
// (both transient) when it lost to concurrent callers.
func (r *Ring[T]) TryPush(v T) error {
	cs := interrupt.Guard()
	defer cs.Exit()

	r.count(pushAttempts)
	end := r.end.Load()
	for hops := 0; ; {
		cycle := state.CycleOf(end, r.capacity)
		s := &r.slots[state.IndexOf(end, r.capacity)]
		expect := state.NewLap(cycle, state.Uninitialized)

		cur := s.lap.Load()
		if cur == expect {
			if !s.lap.CompareAndSwap(expect, state.NewLap(cycle, state.Initializing)) {
				// another producer took this position; look at it again
				continue
			}
			s.val = v
			s.lap.Store(state.NewLap(cycle, state.Initialized))
			r.end.CompareAndSwap(end, r.next(end))
			return nil
		}

		if cur.Compare(expect) > 0 {
			// claimed in this lap already
			hops++
			r.count(pushHops)
			if r.hopLimit > 0 && hops > r.hopLimit {
				r.count(pushContended)
				return state.Failure(cur.State(), v, true, state.ErrContended)
			}
			end = r.advance(&r.end, end)
			continue
		}

		// behind: the previous lap still occupies the slot
		if cur == state.NewLap(cycle-1, state.Erasing) {
			r.count(pushBusy)
			return state.Failure(state.Erasing, v, true, state.ErrBusy)
		}
		r.count(pushFull)
		return state.Failure(cur.State(), v, false, state.ErrFull)
	}
}

// Push is TryPush retried through the ring's spin strategy until it succeeds
// or fails permanently.
func (r *Ring[T]) Push(v T) error {
	return spin.Do(r.spin, func() error {
		return r.TryPush(v)
	})
}

// TryPop removes the oldest element. It fails with state.ErrEmpty
// (permanent) when there is nothing to pop, and with state.ErrBusy or
// state.ErrContended (both transient) when it lost to concurrent callers.
func (r *Ring[T]) TryPop() (T, error) {
	var zero T
	cs := interrupt.Guard()
	defer cs.Exit()

	r.count(popAttempts)
	start := r.start.Load()
	for hops := 0; ; {
		cycle := state.CycleOf(start, r.capacity)
		s := &r.slots[state.IndexOf(start, r.capacity)]
		expect := state.NewLap(cycle, state.Initialized)

		cur := s.lap.Load()
		if cur == expect {
			if !s.lap.CompareAndSwap(expect, state.NewLap(cycle, state.Erasing)) {
				continue
			}
			v := s.val
			s.val = zero
			s.lap.Store(state.NewLap(cycle+1, state.Uninitialized))
			r.start.CompareAndSwap(start, r.next(start))
			return v, nil
		}

		if cur.Compare(expect) > 0 {
			hops++
			r.count(popHops)
			if r.hopLimit > 0 && hops > r.hopLimit {
				r.count(popContended)
				return zero, state.Failure(cur.State(), struct{}{}, true, state.ErrContended)
			}
			start = r.advance(&r.start, start)
			continue
		}

		// a producer has claimed the slot but not published yet
		if cur == state.NewLap(cycle, state.Initializing) {
			r.count(popBusy)
			return zero, state.Failure(state.Initializing, struct{}{}, true, state.ErrBusy)
		}
		r.count(popEmpty)
		return zero, state.Failure(cur.State(), struct{}{}, false, state.ErrEmpty)
	}
}

// Pop is TryPop retried through the ring's spin strategy.
func (r *Ring[T]) Pop() (T, error) {
	return spin.Retry(r.spin, r.TryPop)
}

// Drain pops until the ring is empty, handing every element to fn, and
// returns how many were popped.
func (r *Ring[T]) Drain(fn func(T)) int {
	n := 0
	for {
		v, err := r.Pop()
		if err != nil {
			return n
		}
		n++
		if fn != nil {
			fn(v)
		}
	}
}

// Clear drops every queued element through the release hook and resets the
// ring to its initial state. The caller must have exclusive access.
func (r *Ring[T]) Clear() {
	var zero T
	for i := range r.slots {
		s := &r.slots[i]
		if s.lap.Load().State() == state.Initialized && r.release != nil {
			r.release(s.val)
		}
		s.val = zero
		s.lap.Store(state.InitLap)
	}
	r.start.Store(0)
	r.end.Store(0)
}

// Slots returns a snapshot of every slot's lap word, in index order.
func (r *Ring[T]) Slots() []state.Lap {
	laps := make([]state.Lap, len(r.slots))
	for i := range r.slots {
		laps[i] = r.slots[i].lap.Load()
	}
	return laps
}

func (r *Ring[T]) String() string {
	return fmt.Sprintf("Ring(len=%d, cap=%d)", r.Len(), r.capacity)
}
