// Package cell implements an atomic single-slot container that multiplexes
// initialization, shared borrowing and exclusive removal of one value
// without a mutex.
//
// All bookkeeping lives in one packed word (state.Refer): below a threshold
// it is a plain state tag, at or above it the cell is initialized with that
// many live borrows, and the top bit announces a pending removal. One CAS on
// that word therefore decides both "may I mutate" and "how many readers are
// there".
//
// # Removal while borrowed
//
// Take and Replace never wait for readers. If borrows are outstanding they
// flag the removal and return a transient error; the value is then
// destroyed by whichever Ref is released last. New borrows are refused once
// removal has been announced, so that last release always comes.
//
// Every mutating or borrowing operation has a single-attempt Try form and a
// spinning form that retries while the failure is transient.
package cell

import (
	"fmt"

	"github.com/aradilov/lockfree/interrupt"
	"github.com/aradilov/lockfree/spin"
	"github.com/aradilov/lockfree/state"
)

// Cell holds at most one value of type T. The zero value is an empty cell
// using spin.Default. A Cell must not be copied after first use.
type Cell[T any] struct {
	state   state.AtomicRefer
	val     T
	spin    spin.Strategy
	release func(T)
}

// New returns an empty cell.
func New[T any](opts ...Option) *Cell[T] {
	c := &Cell[T]{}
	c.apply(opts)
	return c
}

// NewWith returns a cell already holding v.
func NewWith[T any](v T, opts ...Option) *Cell[T] {
	c := New[T](opts...)
	c.val = v
	c.state.Store(state.ReferOf(state.Initialized))
	return c
}

// IsInitialized reports whether the cell holds a published value, borrowed
// or not.
func (c *Cell[T]) IsInitialized() bool {
	s := c.state.Load().State()
	return s == state.Initialized || s == state.Referred
}

// RemovalPending reports whether a removal is waiting for the last Ref.
func (c *Cell[T]) RemovalPending() bool {
	return c.state.Load().Pending()
}

// RefNum returns the number of live borrows, or an error carrying the state
// that made the cell unborrowable.
func (c *Cell[T]) RefNum() (int, error) {
	r := c.state.Load()
	if n, ok := r.RefNum(); ok {
		return n, nil
	}
	s := r.State()
	if s.IsTransient() {
		return 0, state.Failure(s, struct{}{}, true, state.ErrBusy)
	}
	return 0, state.Failure(s, struct{}{}, false, state.ErrUninitialized)
}

// TrySet stores v if the cell is empty.
//
// It fails permanently with state.ErrInitialized if the cell holds a value
// (or another writer is already storing one), and transiently while a
// removal is in flight.
func (c *Cell[T]) TrySet(v T) error {
	cs := interrupt.Guard()
	defer cs.Exit()

	if !c.state.TrySetState(state.Uninitialized, state.Initializing) {
		return c.setFailure(v)
	}
	c.val = v
	c.state.Store(state.ReferOf(state.Initialized))
	return nil
}

func (c *Cell[T]) setFailure(v T) error {
	r := c.state.Load()
	switch s := r.State(); {
	case r.Pending():
		return state.Failure(s, v, true, state.ErrRemovalPending)
	case s == state.Erasing, s == state.Uninitialized:
		return state.Failure(s, v, true, state.ErrBusy)
	default:
		return state.Failure(s, v, false, state.ErrInitialized)
	}
}

// TrySetRef is TrySet that also borrows the value it stored. No other
// writer can get between the store and the borrow.
func (c *Cell[T]) TrySetRef(v T) (Ref[T], error) {
	if !c.tryInitBorrowed(v) {
		return Ref[T]{}, c.setFailure(v)
	}
	return Ref[T]{c: c}, nil
}

// Set is TrySet, spinning while the failure is transient.
func (c *Cell[T]) Set(v T) error {
	return spin.Do(c.spin, func() error { return c.TrySet(v) })
}

// TryGet borrows the value. The returned Ref must be released.
//
// It fails permanently with state.ErrUninitialized on an empty cell, and
// transiently while the value is being written or erased, once removal has
// been announced, or when the borrow count is exhausted.
func (c *Cell[T]) TryGet() (Ref[T], error) {
	old, ok := c.state.TryAddRef()
	if ok {
		return Ref[T]{c: c}, nil
	}
	retry, cause := borrowFailure(old)
	return Ref[T]{}, state.Failure(old.State(), struct{}{}, retry, cause)
}

// Get is TryGet, spinning while the failure is transient.
func (c *Cell[T]) Get() (Ref[T], error) {
	return spin.Retry(c.spin, c.TryGet)
}

func borrowFailure(r state.Refer) (retry bool, cause error) {
	if r.Pending() {
		return true, state.ErrRemovalPending
	}
	if n, ok := r.RefNum(); ok && n == state.RefMax {
		return true, state.ErrRefOverflow
	}
	if r.State().IsTransient() {
		return true, state.ErrBusy
	}
	return false, state.ErrUninitialized
}

// TryTake moves the value out, leaving the cell empty. ok is false if the
// cell was already empty.
//
// If the value is borrowed, TryTake announces the removal and fails
// transiently with state.ErrRemovalPending; the last Ref released destroys
// the value. The value is never read or overwritten while a Ref is alive.
func (c *Cell[T]) TryTake() (v T, ok bool, err error) {
	cs := interrupt.Guard()
	defer cs.Exit()

	old, claimed := c.state.Update(func(r state.Refer) (state.Refer, bool) {
		n, borrowable := r.RefNum()
		switch {
		case !borrowable || r.Pending():
			return r, false
		case n == 0:
			return state.ReferOf(state.Erasing), true
		default:
			return r.WithPending()
		}
	})

	switch s := old.State(); {
	case claimed && s == state.Initialized:
		v = c.val
		var zero T
		c.val = zero
		c.state.Store(state.ReferOf(state.Uninitialized))
		return v, true, nil
	case claimed, old.Pending():
		return v, false, state.Failure(s, struct{}{}, true, state.ErrRemovalPending)
	case s == state.Uninitialized:
		return v, false, nil
	default:
		return v, false, state.Failure(s, struct{}{}, true, state.ErrBusy)
	}
}

// Take is TryTake, spinning while the failure is transient. If the value was
// borrowed, it ends up destroyed by the last Ref and Take reports an empty
// cell.
func (c *Cell[T]) Take() (T, bool, error) {
	t, err := spin.Retry(c.spin, func() (maybe[T], error) {
		v, ok, err := c.TryTake()
		return maybe[T]{v, ok}, err
	})
	return t.v, t.ok, err
}

// TryReplace stores v and returns the previous value, if any.
//
// If the value is borrowed, TryReplace announces the removal and fails
// transiently with state.ErrRemovalPending, handing v back in the error.
func (c *Cell[T]) TryReplace(v T) (prev T, ok bool, err error) {
	cs := interrupt.Guard()
	defer cs.Exit()

	old, claimed := c.state.Update(func(r state.Refer) (state.Refer, bool) {
		if r.State() == state.Uninitialized {
			return state.ReferOf(state.Initializing), true
		}
		n, borrowable := r.RefNum()
		switch {
		case !borrowable || r.Pending():
			return r, false
		case n == 0:
			return state.ReferOf(state.Initializing), true
		default:
			return r.WithPending()
		}
	})

	switch s := old.State(); {
	case claimed && s == state.Uninitialized:
		c.val = v
		c.state.Store(state.ReferOf(state.Initialized))
		return prev, false, nil
	case claimed && s == state.Initialized:
		prev = c.val
		c.val = v
		c.state.Store(state.ReferOf(state.Initialized))
		return prev, true, nil
	case claimed, old.Pending():
		return prev, false, state.Failure(s, v, true, state.ErrRemovalPending)
	default:
		return prev, false, state.Failure(s, v, true, state.ErrBusy)
	}
}

// Replace is TryReplace, spinning while the failure is transient.
func (c *Cell[T]) Replace(v T) (T, bool, error) {
	r, err := spin.Retry(c.spin, func() (maybe[T], error) {
		prev, ok, err := c.TryReplace(v)
		return maybe[T]{prev, ok}, err
	})
	return r.v, r.ok, err
}

// GetOrTryInit borrows the value, storing v first if the cell is empty. The
// store and the first borrow are published together, so the returned Ref
// always sees v or an earlier value.
func (c *Cell[T]) GetOrTryInit(v T) (Ref[T], error) {
	if c.tryInitBorrowed(v) {
		return Ref[T]{c: c}, nil
	}
	old, ok := c.state.TryAddRef()
	if ok {
		return Ref[T]{c: c}, nil
	}
	retry, cause := borrowFailure(old)
	if cause == state.ErrUninitialized {
		// emptied between the two attempts
		retry, cause = true, state.ErrBusy
	}
	return Ref[T]{}, state.Failure(old.State(), v, retry, cause)
}

func (c *Cell[T]) tryInitBorrowed(v T) bool {
	cs := interrupt.Guard()
	defer cs.Exit()

	if !c.state.TrySetState(state.Uninitialized, state.Initializing) {
		return false
	}
	c.val = v
	c.state.Store(state.Refer(state.RefOne))
	return true
}

// GetOrInit is GetOrTryInit, spinning while the failure is transient.
func (c *Cell[T]) GetOrInit(v T) (Ref[T], error) {
	return spin.Retry(c.spin, func() (Ref[T], error) { return c.GetOrTryInit(v) })
}

// Peek returns the value without borrowing it. It is only meaningful when the
// caller otherwise excludes concurrent writers, e.g. during teardown.
func (c *Cell[T]) Peek() (T, bool) {
	if !c.IsInitialized() {
		var zero T
		return zero, false
	}
	return c.val, true
}

// Clear destroys the value, if any, through the release hook. If borrows are
// outstanding it waits for the last of them to finish the removal.
func (c *Cell[T]) Clear() {
	v, ok, err := c.Take()
	if err == nil && ok {
		c.dispose(v)
	}
}

type maybe[T any] struct {
	v  T
	ok bool
}

// erase destroys the value after the caller has claimed Erasing.
func (c *Cell[T]) erase() {
	v := c.val
	var zero T
	c.val = zero
	c.state.Store(state.ReferOf(state.Uninitialized))
	c.dispose(v)
}

func (c *Cell[T]) dispose(v T) {
	if c.release != nil {
		c.release(v)
	}
}

func (c *Cell[T]) String() string {
	r, err := c.TryGet()
	if err != nil {
		s, _ := state.StateOf(err)
		return fmt.Sprintf("Cell(%v)", s)
	}
	defer r.Release()
	return fmt.Sprintf("Cell(%v)", r.Value())
}
