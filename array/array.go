// Package array provides a fixed-size array of atomic cells. Insertion picks
// the first empty cell, so unlike a ring it makes no ordering promise.
package array

import (
	"errors"
	"fmt"

	"github.com/aradilov/lockfree/cell"
	"github.com/aradilov/lockfree/spin"
	"github.com/aradilov/lockfree/state"
)

type Array[T any] struct {
	cells []*cell.Cell[T]
}

// New creates an array of n empty cells, each configured with opts.
func New[T any](n int, opts ...cell.Option) *Array[T] {
	if n < 1 {
		panic("array: capacity must be > 0")
	}
	a := &Array[T]{cells: make([]*cell.Cell[T], n)}
	for i := range a.cells {
		a.cells[i] = cell.New[T](opts...)
	}
	return a
}

func (a *Array[T]) Capacity() int {
	return len(a.cells)
}

// Len counts the cells holding a value. It is a snapshot.
func (a *Array[T]) Len() int {
	n := 0
	for i := range a.cells {
		if a.cells[i].IsInitialized() {
			n++
		}
	}
	return n
}

func (a *Array[T]) IsEmpty() bool {
	return a.Len() == 0
}

func (a *Array[T]) IsFull() bool {
	return a.Len() == len(a.cells)
}

// Cell returns the i-th cell.
func (a *Array[T]) Cell(i int) *cell.Cell[T] {
	return a.cells[i]
}

// Push stores v in the first empty cell and returns its index. Cells caught
// mid-write or mid-erase are waited for; cells holding a value, including
// one whose removal waits on borrowers, are skipped. It fails with
// state.ErrFull when no cell could take v.
func (a *Array[T]) Push(v T) (int, error) {
	i, _, err := a.place(v, func(c *cell.Cell[T]) (cell.Ref[T], error) {
		return cell.Ref[T]{}, c.TrySet(v)
	})
	return i, err
}

// PushRef is Push that also returns a borrow of the stored value, taken
// atomically with the store.
func (a *Array[T]) PushRef(v T) (int, cell.Ref[T], error) {
	return a.place(v, func(c *cell.Cell[T]) (cell.Ref[T], error) { return c.TrySetRef(v) })
}

func (a *Array[T]) place(v T, set func(c *cell.Cell[T]) (cell.Ref[T], error)) (int, cell.Ref[T], error) {
	for i := range a.cells {
		c := a.cells[i]
		r, err := settle(func() (cell.Ref[T], error) { return set(c) })
		switch {
		case err == nil:
			return i, r, nil
		case errors.Is(err, state.ErrInitialized), errors.Is(err, state.ErrRemovalPending):
			continue
		default:
			return -1, cell.Ref[T]{}, err
		}
	}
	return -1, cell.Ref[T]{}, state.Failure(state.Initialized, v, false, state.ErrFull)
}

// settle repeats op on one cell while it fails with state.ErrBusy, the short
// window in which another caller is writing or erasing the cell.
func settle[R any](op func() (R, error)) (R, error) {
	for attempt := 1; ; attempt++ {
		r, err := op()
		if !errors.Is(err, state.ErrBusy) {
			return r, err
		}
		spin.Default.Spin(attempt)
	}
}

// Pop takes the value out of the first occupied cell. A value whose removal
// is already pending belongs to its last borrower and is skipped.
func (a *Array[T]) Pop() (T, bool) {
	for i := range a.cells {
		c := a.cells[i]
		got, err := settle(func() (popped[T], error) {
			v, ok, err := c.TryTake()
			return popped[T]{v, ok}, err
		})
		if err == nil && got.ok {
			return got.v, true
		}
	}
	var zero T
	return zero, false
}

type popped[T any] struct {
	v  T
	ok bool
}

// Get borrows the value at index i. Like every single-index operation it
// waits out a concurrent write or erase but not borrowers: a value whose
// removal is pending fails with state.ErrRemovalPending.
func (a *Array[T]) Get(i int) (cell.Ref[T], error) {
	return settle(a.cells[i].TryGet)
}

// Swap stores v at index i and returns the value it replaced, if any. If
// the old value is borrowed its removal is announced and Swap fails with
// state.ErrRemovalPending; v is not stored.
func (a *Array[T]) Swap(i int, v T) (T, bool, error) {
	c := a.cells[i]
	got, err := settle(func() (popped[T], error) {
		prev, ok, err := c.TryReplace(v)
		return popped[T]{prev, ok}, err
	})
	return got.v, got.ok, err
}

// Take empties index i. A borrowed value is left to its last borrower, and
// Take fails with state.ErrRemovalPending.
func (a *Array[T]) Take(i int) (T, bool, error) {
	c := a.cells[i]
	got, err := settle(func() (popped[T], error) {
		v, ok, err := c.TryTake()
		return popped[T]{v, ok}, err
	})
	return got.v, got.ok, err
}

// Each borrows every occupied cell in index order and passes it to fn until
// fn returns false. The Ref is released when fn returns. Cells whose removal
// is pending are always skipped. Cells caught mid-write or mid-erase are
// skipped too, unless strict is set, in which case Each waits for them to
// settle.
func (a *Array[T]) Each(strict bool, fn func(i int, r *cell.Ref[T]) bool) {
	for i := range a.cells {
		c := a.cells[i]
		var (
			r   cell.Ref[T]
			err error
		)
		if strict {
			r, err = settle(c.TryGet)
		} else {
			r, err = c.TryGet()
		}
		if err != nil {
			continue
		}
		more := fn(i, &r)
		r.Release()
		if !more {
			return
		}
	}
}

// Clear destroys every value through the cells' release hook, waiting for
// any outstanding borrows to be released.
func (a *Array[T]) Clear() {
	for i := range a.cells {
		a.cells[i].Clear()
	}
}

func (a *Array[T]) String() string {
	return fmt.Sprintf("Array(len=%d, cap=%d)", a.Len(), len(a.cells))
}
