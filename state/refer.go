package state

import "sync/atomic"

const (
	// RefOne is the raw value of a word holding exactly one borrow. Every
	// raw value below it is a plain MemoryState tag.
	RefOne uint32 = 1 << 8

	// PendingBit flags a borrowed word whose value has been scheduled for
	// removal. It is only ever set while the borrow count is at least one.
	PendingBit uint32 = 1 << 31

	lowMask = PendingBit - 1

	// RefMax is the largest borrow count a Refer can carry.
	RefMax = int(lowMask - RefOne + 1)
)

// Refer packs a MemoryState and a borrow count into one word, so that a
// single CAS both checks "is it safe to mutate" and "how many borrows exist".
//
// Layout:
//
//	bit 31      pending-removal flag
//	bits 0..30  raw < RefOne: MemoryState tag, count 0
//	            raw ≥ RefOne: Referred, count = raw - RefOne + 1
type Refer uint32

// ReferOf returns the word for a plain state with no borrows.
func ReferOf(s MemoryState) Refer {
	return Refer(s)
}

func (r Refer) low() uint32 {
	return uint32(r) & lowMask
}

// State decodes the logical state.
func (r Refer) State() MemoryState {
	if r.low() < RefOne {
		return stateOf(uint8(r.low()))
	}
	return Referred
}

// Pending reports whether removal has been announced.
func (r Refer) Pending() bool {
	return uint32(r)&PendingBit != 0
}

// CanRefer reports whether a new borrow may be taken: the value must be
// published and removal must not have been announced.
func (r Refer) CanRefer() bool {
	s := r.State()
	return (s == Initialized || s == Referred) && !r.Pending()
}

// RefNum returns the borrow count. ok is false when the word is not in a
// borrowable state, in which case the count is meaningless.
func (r Refer) RefNum() (n int, ok bool) {
	if low := r.low(); low >= RefOne {
		return int(low-RefOne) + 1, true
	}
	if r.State() == Initialized {
		return 0, true
	}
	return 0, false
}

// AddRef returns r with one more borrow.
// It fails when r is not borrowable or the count is already RefMax.
func (r Refer) AddRef() (Refer, bool) {
	n, ok := r.RefNum()
	if !ok || n == RefMax {
		return r, false
	}
	if n == 0 {
		return Refer(RefOne | uint32(r)&PendingBit), true
	}
	return r + 1, true
}

// SubRef returns r with one borrow fewer. Dropping the last borrow yields a
// plain Initialized word; callers that honour the pending flag must check it
// before calling SubRef on a single-borrow word.
func (r Refer) SubRef() (Refer, bool) {
	n, ok := r.RefNum()
	if !ok || n == 0 {
		return r, false
	}
	if n == 1 {
		return ReferOf(Initialized), true
	}
	return r - 1, true
}

// WithState replaces the state tag. It fails on a borrowed word.
func (r Refer) WithState(s MemoryState) (Refer, bool) {
	if r.low() >= RefOne {
		return r, false
	}
	return ReferOf(s), true
}

// WithPending sets the pending-removal flag. It fails unless r is borrowed.
func (r Refer) WithPending() (Refer, bool) {
	if r.low() < RefOne {
		return r, false
	}
	return Refer(uint32(r) | PendingBit), true
}

// AtomicRefer is a Refer that can be updated atomically.
// The zero value is Uninitialized.
type AtomicRefer struct {
	v atomic.Uint32
}

// NewAtomicRefer returns a word initialised to r.
func NewAtomicRefer(r Refer) *AtomicRefer {
	a := &AtomicRefer{}
	a.v.Store(uint32(r))
	return a
}

// Load atomically reads the word.
func (a *AtomicRefer) Load() Refer {
	return Refer(a.v.Load())
}

// Store atomically writes r. Only the holder of a claim (Initializing or
// Erasing) may publish with Store.
func (a *AtomicRefer) Store(r Refer) {
	a.v.Store(uint32(r))
}

// CompareAndSwap replaces old with next and reports whether it did.
func (a *AtomicRefer) CompareAndSwap(old, next Refer) bool {
	return a.v.CompareAndSwap(uint32(old), uint32(next))
}

// Update applies fn in a CAS loop until it either commits or fn declines.
// It returns the word fn was last applied to and whether fn's result was
// stored.
func (a *AtomicRefer) Update(fn func(Refer) (Refer, bool)) (Refer, bool) {
	for {
		old := a.Load()
		next, ok := fn(old)
		if !ok {
			return old, false
		}
		if a.CompareAndSwap(old, next) {
			return old, true
		}
	}
}

// TryAddRef atomically adds one borrow.
func (a *AtomicRefer) TryAddRef() (Refer, bool) {
	return a.Update(func(r Refer) (Refer, bool) {
		if r.Pending() {
			return r, false
		}
		return r.AddRef()
	})
}

// TrySubRef atomically drops one borrow.
func (a *AtomicRefer) TrySubRef() (Refer, bool) {
	return a.Update(Refer.SubRef)
}

// TrySetState moves a plain (unborrowed) word from one state to another.
func (a *AtomicRefer) TrySetState(from, to MemoryState) bool {
	return a.CompareAndSwap(ReferOf(from), ReferOf(to))
}
