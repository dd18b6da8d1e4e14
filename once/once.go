// Package once provides cells that track no borrows, unlike cell.Cell.
// A Once is written at most once per Take, so readers copy the published
// value freely. An Option is never read in place at all: values only move
// in and out of it, which lets every operation run concurrently.
package once

import (
	"github.com/aradilov/lockfree/interrupt"
	"github.com/aradilov/lockfree/spin"
	"github.com/aradilov/lockfree/state"
)

// Once holds a value that is written at most once. The zero value is empty
// and ready to use.
type Once[T any] struct {
	state state.AtomicRefer
	val   T
	spin  spin.Strategy
}

func New[T any]() *Once[T] {
	return &Once[T]{}
}

// NewWithSpin creates an empty Once whose spinning forms use s.
func NewWithSpin[T any](s spin.Strategy) *Once[T] {
	return &Once[T]{spin: s}
}

func (o *Once[T]) IsInitialized() bool {
	return o.state.Load().State() == state.Initialized
}

// TrySet publishes v. Only the first call succeeds; later ones, including
// those racing with the winner, fail permanently with state.ErrInitialized.
func (o *Once[T]) TrySet(v T) error {
	cs := interrupt.Guard()
	defer cs.Exit()

	if !o.state.TrySetState(state.Uninitialized, state.Initializing) {
		s := o.state.Load().State()
		if s == state.Erasing {
			return state.Failure(s, v, true, state.ErrBusy)
		}
		return state.Failure(s, v, false, state.ErrInitialized)
	}
	o.val = v
	o.state.Store(state.ReferOf(state.Initialized))
	return nil
}

// Set is TrySet, spinning while a Take is in flight.
func (o *Once[T]) Set(v T) error {
	return spin.Do(o.spin, func() error { return o.TrySet(v) })
}

// TryGet returns the published value. It fails transiently while the value
// is being written and permanently with state.ErrUninitialized before that.
func (o *Once[T]) TryGet() (T, error) {
	var zero T
	switch s := o.state.Load().State(); s {
	case state.Initialized:
		return o.val, nil
	case state.Initializing, state.Erasing:
		return zero, state.Failure(s, struct{}{}, true, state.ErrBusy)
	default:
		return zero, state.Failure(s, struct{}{}, false, state.ErrUninitialized)
	}
}

// Get is TryGet, spinning while the value is being written.
func (o *Once[T]) Get() (T, error) {
	return spin.Retry(o.spin, o.TryGet)
}

// GetOrTryInit publishes v if nothing was published yet and returns the
// value in the cell, which is v only for the winning caller.
func (o *Once[T]) GetOrTryInit(v T) (T, error) {
	err := o.TrySet(v)
	if err == nil {
		return v, nil
	}
	if state.IsTransient(err) {
		return v, err
	}
	got, err := o.TryGet()
	if err != nil {
		return v, state.Failure(state.Initializing, v, true, state.ErrBusy)
	}
	return got, nil
}

// GetOrInit is GetOrTryInit, spinning until a value is published.
func (o *Once[T]) GetOrInit(v T) (T, error) {
	return spin.Retry(o.spin, func() (T, error) { return o.GetOrTryInit(v) })
}

// Take moves the value out and leaves the Once empty, so that it can be set
// again. Take may run concurrently with TrySet and other Takes, but not with
// TryGet, Get or GetOrInit: readers copy the value without a borrow, so the
// caller must keep them away until Take returns. Use cell.Cell when values
// have to be removed under live readers.
func (o *Once[T]) Take() (T, bool) {
	cs := interrupt.Guard()
	defer cs.Exit()

	var zero T
	if !o.state.TrySetState(state.Initialized, state.Erasing) {
		return zero, false
	}
	v := o.val
	o.val = zero
	o.state.Store(state.ReferOf(state.Uninitialized))
	return v, true
}
