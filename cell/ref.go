package cell

import (
	"github.com/aradilov/lockfree/interrupt"
	"github.com/aradilov/lockfree/state"
)

// Ref is a borrowed view of a Cell's value. It holds one unit of the cell's
// borrow count until Release. A Ref must not be copied; release the one you
// were given.
//
// Value, Pointer and RefNum need the borrow and panic on a released or zero
// Ref. Remove, WillRemove and Release are no-ops on one.
type Ref[T any] struct {
	c *Cell[T]
}

// Valid reports whether r still holds its borrow.
func (r *Ref[T]) Valid() bool {
	return r.c != nil
}

// Value returns a copy of the borrowed value.
func (r *Ref[T]) Value() T {
	return r.cell().val
}

// Pointer returns the borrowed value in place. The pointee must be treated
// as read-only and not retained past Release.
func (r *Ref[T]) Pointer() *T {
	return &r.cell().val
}

// RefNum returns the cell's current borrow count.
func (r *Ref[T]) RefNum() (int, error) {
	return r.cell().RefNum()
}

func (r *Ref[T]) cell() *Cell[T] {
	if r.c == nil {
		panic("cell: use of released Ref")
	}
	return r.c
}

// Remove announces that the value should be destroyed once every Ref has
// been released. It does not block.
func (r *Ref[T]) Remove() {
	if r.c == nil {
		return
	}
	r.c.state.Update(state.Refer.WithPending)
}

// WillRemove reports whether removal has been announced. A released Ref
// reports false.
func (r *Ref[T]) WillRemove() bool {
	return r.c != nil && r.c.state.Load().Pending()
}

// Release gives the borrow back. If it was the last borrow and removal is
// pending, Release destroys the value and leaves the cell empty. Calling
// Release again on the same Ref does nothing.
func (r *Ref[T]) Release() {
	c := r.c
	if c == nil {
		return
	}
	r.c = nil

	cs := interrupt.Guard()
	defer cs.Exit()

	old, ok := c.state.Update(func(w state.Refer) (state.Refer, bool) {
		if n, _ := w.RefNum(); n == 1 && w.Pending() {
			return state.ReferOf(state.Erasing), true
		}
		return w.SubRef()
	})
	if n, _ := old.RefNum(); ok && n == 1 && old.Pending() {
		c.erase()
	}
}
