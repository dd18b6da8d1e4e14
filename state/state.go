// Package state holds the vocabulary shared by every structure in this
// module: the MemoryState tag, the two packed state words (Refer for cells,
// Lap for ring slots) and the Error type returned by fallible operations.
//
// State machine (per cell, and per ring slot within one lap):
//
//	Uninitialized → Initializing   [claim write, CAS]
//	Initializing  → Initialized    [publish, Store]
//	Initialized   → Erasing        [claim read, CAS]
//	Erasing       → Uninitialized  [publish, Store; ring slots also bump the cycle]
//
// A cell additionally overlays a borrow count on Initialized, see Refer.
package state

// MemoryState is the logical state of a single storage slot.
type MemoryState uint8

const (
	// Uninitialized indicates the slot holds no value.
	Uninitialized MemoryState = 0
	// Initializing indicates a writer has claimed the slot and is storing a value.
	Initializing MemoryState = 1
	// Initialized indicates the slot holds a published value.
	Initialized MemoryState = 2
	// Erasing indicates a reader has claimed the slot and is moving the value out.
	Erasing MemoryState = 3
	// Referred indicates the slot holds a published value with at least one
	// live borrow. It is never stored as a raw tag, see Refer.
	Referred MemoryState = 4
)

// String returns a human-readable representation of the state.
func (s MemoryState) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Initializing:
		return "Initializing"
	case Initialized:
		return "Initialized"
	case Erasing:
		return "Erasing"
	case Referred:
		return "Referred"
	default:
		return "Unknown"
	}
}

// IsUninitialized reports whether the slot is empty.
func (s MemoryState) IsUninitialized() bool { return s == Uninitialized }

// IsInitializing reports whether a writer is mid-store.
func (s MemoryState) IsInitializing() bool { return s == Initializing }

// IsInitialized reports whether the slot holds an unborrowed value.
func (s MemoryState) IsInitialized() bool { return s == Initialized }

// IsErasing reports whether a reader is moving the value out.
func (s MemoryState) IsErasing() bool { return s == Erasing }

// IsReferred reports whether the value has live borrows.
func (s MemoryState) IsReferred() bool { return s == Referred }

// IsTransient reports whether s is a mid-transition state that a concurrent
// peer will leave on its own.
func (s MemoryState) IsTransient() bool {
	return s == Initializing || s == Erasing
}

// stateOf decodes a raw tag. Unknown tags decode to Uninitialized, which keeps
// the decoding total.
func stateOf(tag uint8) MemoryState {
	switch MemoryState(tag) {
	case Initializing, Initialized, Erasing, Referred:
		return MemoryState(tag)
	default:
		return Uninitialized
	}
}
