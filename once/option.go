package once

import (
	"fmt"

	"github.com/aradilov/lockfree/interrupt"
	"github.com/aradilov/lockfree/spin"
	"github.com/aradilov/lockfree/state"
)

// Option is a slot that is either empty or holds one value, with atomic set,
// take and replace. It tracks no borrows, so the value is only ever observed
// by moving it out; that makes every operation safe to run concurrently with
// every other. The zero value is empty and ready to use.
type Option[T any] struct {
	state state.AtomicRefer
	val   T
	spin  spin.Strategy
}

func NewOption[T any]() *Option[T] {
	return &Option[T]{}
}

// NewOptionWith returns an Option already holding v.
func NewOptionWith[T any](v T) *Option[T] {
	o := &Option[T]{val: v}
	o.state.Store(state.ReferOf(state.Initialized))
	return o
}

// NewOptionWithSpin creates an empty Option whose spinning forms use s.
func NewOptionWithSpin[T any](s spin.Strategy) *Option[T] {
	return &Option[T]{spin: s}
}

// IsSome reports whether a value is published.
func (o *Option[T]) IsSome() bool {
	return o.state.Load().State() == state.Initialized
}

// IsNone reports whether the Option is empty and not being written.
func (o *Option[T]) IsNone() bool {
	return o.state.Load().State() == state.Uninitialized
}

// TrySet stores v if the Option is empty. It fails transiently with
// state.ErrBusy while a take is in flight and permanently with
// state.ErrInitialized otherwise.
func (o *Option[T]) TrySet(v T) error {
	cs := interrupt.Guard()
	defer cs.Exit()

	if !o.state.TrySetState(state.Uninitialized, state.Initializing) {
		s := o.state.Load().State()
		if s == state.Erasing || s == state.Uninitialized {
			return state.Failure(s, v, true, state.ErrBusy)
		}
		return state.Failure(s, v, false, state.ErrInitialized)
	}
	o.val = v
	o.state.Store(state.ReferOf(state.Initialized))
	return nil
}

// Set is TrySet, spinning while a take is in flight.
func (o *Option[T]) Set(v T) error {
	return spin.Do(o.spin, func() error { return o.TrySet(v) })
}

// TryTake moves the value out. ok is false and err nil on an empty Option;
// err is a transient state.ErrBusy while another caller is writing or
// taking.
func (o *Option[T]) TryTake() (v T, ok bool, err error) {
	cs := interrupt.Guard()
	defer cs.Exit()

	if !o.state.TrySetState(state.Initialized, state.Erasing) {
		s := o.state.Load().State()
		if s == state.Uninitialized {
			return v, false, nil
		}
		// Initialized here means another take and set completed in between
		return v, false, state.Failure(s, struct{}{}, true, state.ErrBusy)
	}
	v = o.val
	var zero T
	o.val = zero
	o.state.Store(state.ReferOf(state.Uninitialized))
	return v, true, nil
}

// Take is TryTake, spinning while the failure is transient.
func (o *Option[T]) Take() (T, bool, error) {
	got, err := spin.Retry(o.spin, func() (taken[T], error) {
		v, ok, err := o.TryTake()
		return taken[T]{v, ok}, err
	})
	return got.v, got.ok, err
}

// TryReplace stores v whether or not the Option was empty and returns the
// value it displaced, if any. It fails transiently with state.ErrBusy while
// another caller is writing or taking, handing v back in the error.
func (o *Option[T]) TryReplace(v T) (prev T, ok bool, err error) {
	cs := interrupt.Guard()
	defer cs.Exit()

	old, claimed := o.state.Update(func(r state.Refer) (state.Refer, bool) {
		switch r.State() {
		case state.Uninitialized, state.Initialized:
			return state.ReferOf(state.Initializing), true
		default:
			return r, false
		}
	})
	if !claimed {
		return prev, false, state.Failure(old.State(), v, true, state.ErrBusy)
	}
	if old.State() == state.Initialized {
		prev, ok = o.val, true
	}
	o.val = v
	o.state.Store(state.ReferOf(state.Initialized))
	return prev, ok, nil
}

// Replace is TryReplace, spinning while the failure is transient.
func (o *Option[T]) Replace(v T) (T, bool, error) {
	got, err := spin.Retry(o.spin, func() (taken[T], error) {
		prev, ok, err := o.TryReplace(v)
		return taken[T]{prev, ok}, err
	})
	return got.v, got.ok, err
}

type taken[T any] struct {
	v  T
	ok bool
}

func (o *Option[T]) String() string {
	if o.IsSome() {
		return "Option(Some)"
	}
	return fmt.Sprintf("Option(%v)", o.state.Load().State())
}
