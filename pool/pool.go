// Package pool hands out stable integer handles to values. Every handle
// addresses a once.Option; Insert claims the first empty one, so handles are
// reused lowest first and nothing is kept in FIFO order.
package pool

import (
	"errors"
	"fmt"

	"github.com/aradilov/lockfree/once"
	"github.com/aradilov/lockfree/spin"
	"github.com/aradilov/lockfree/state"
)

type Pool[T any] struct {
	slots []once.Option[T]
	spin  spin.Strategy
}

// New creates a pool of capacity handles.
func New[T any](capacity int) *Pool[T] {
	return NewWithSpin[T](capacity, nil)
}

// NewWithSpin creates a pool whose waits use s, or spin.Default if s is nil.
func NewWithSpin[T any](capacity int, s spin.Strategy) *Pool[T] {
	if capacity < 1 {
		panic("pool: capacity must be > 0")
	}
	return &Pool[T]{
		slots: make([]once.Option[T], capacity),
		spin:  spin.Or(s),
	}
}

// Insert stores v under the lowest free handle and returns it. It fails with
// state.ErrFull when every handle is in use.
// May be called concurrently from many goroutines.
func (p *Pool[T]) Insert(v T) (int, error) {
	for i := range p.slots {
		o := &p.slots[i]
		err := spin.Do(p.spin, func() error { return o.TrySet(v) })
		if err == nil {
			return i, nil
		}
		if !errors.Is(err, state.ErrInitialized) {
			return -1, err
		}
	}
	return -1, state.Failure(state.Initialized, v, false, state.ErrFull)
}

// Pop removes the value under the lowest occupied handle.
func (p *Pool[T]) Pop() (T, bool) {
	for i := range p.slots {
		if v, ok, err := p.Remove(i); err == nil && ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Remove empties handle i and makes it available to Insert again. ok is
// false if the handle was already free.
func (p *Pool[T]) Remove(i int) (v T, ok bool, err error) {
	o := &p.slots[i]
	err = spin.Do(p.spin, func() error {
		v, ok, err = o.TryTake()
		return err
	})
	return v, ok, err
}

// Replace stores v under handle i, whether or not it was in use, and returns
// the value it displaced.
func (p *Pool[T]) Replace(i int, v T) (T, bool, error) {
	o := &p.slots[i]
	var (
		prev T
		ok   bool
	)
	err := spin.Do(p.spin, func() (err error) {
		prev, ok, err = o.TryReplace(v)
		return err
	})
	return prev, ok, err
}

// Slot returns the Option behind handle i.
func (p *Pool[T]) Slot(i int) *once.Option[T] {
	return &p.slots[i]
}

func (p *Pool[T]) Capacity() int {
	return len(p.slots)
}

// Len returns the number of handles in use. It is a snapshot.
func (p *Pool[T]) Len() int {
	n := 0
	for i := range p.slots {
		if p.slots[i].IsSome() {
			n++
		}
	}
	return n
}

func (p *Pool[T]) IsEmpty() bool {
	return p.Len() == 0
}

func (p *Pool[T]) IsFull() bool {
	return p.Len() == len(p.slots)
}

// Clear frees every handle, passing each value it removes to fn if fn is
// not nil.
func (p *Pool[T]) Clear(fn func(T)) {
	for i := range p.slots {
		if v, ok, err := p.Remove(i); err == nil && ok && fn != nil {
			fn(v)
		}
	}
}

func (p *Pool[T]) String() string {
	return fmt.Sprintf("Pool(len=%d, cap=%d)", p.Len(), len(p.slots))
}
