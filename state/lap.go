package state

import (
	"math"
	"sync/atomic"
)

const (
	cycleBits = 24
	cycleMask = 1<<cycleBits - 1

	// MaxCycle is the number of distinct cycles a Lap can carry before the
	// cycle counter wraps to zero.
	MaxCycle = 1 << cycleBits
)

// Lap packs a ring slot's reuse cycle and its MemoryState into one word.
// The cycle grows by one every time the slot completes a full
// Initialized → Erasing → Uninitialized round, which tells the current lap
// apart from stale state left by a previous one.
//
// Layout: state << 24 | cycle.
type Lap uint32

// InitLap is the state every slot starts in.
const InitLap Lap = 0

// NewLap packs cycle (taken modulo MaxCycle) and s.
func NewLap(cycle uint64, s MemoryState) Lap {
	return Lap(uint32(s)<<cycleBits | uint32(cycle&cycleMask))
}

// Cycle returns the reuse cycle, in [0, MaxCycle).
func (l Lap) Cycle() uint64 {
	return uint64(l) & cycleMask
}

// State decodes the slot state.
func (l Lap) State() MemoryState {
	return stateOf(uint8(l >> cycleBits))
}

// Next returns the word that follows l in the slot state machine.
func (l Lap) Next() Lap {
	switch l.State() {
	case Uninitialized:
		return NewLap(l.Cycle(), Initializing)
	case Initializing:
		return NewLap(l.Cycle(), Initialized)
	case Initialized:
		return NewLap(l.Cycle(), Erasing)
	default:
		return NewLap(l.Cycle()+1, Uninitialized)
	}
}

// Compare orders two laps, returning -1, 0 or +1. Cycles are compared with
// wraparound: a cycle in the lowest quarter of the cycle space is newer than
// one in the highest quarter. Equal cycles are ordered by state.
func (l Lap) Compare(o Lap) int {
	a, b := l.Cycle(), o.Cycle()
	if a == b {
		switch sa, sb := l.State(), o.State(); {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		default:
			return 0
		}
	}
	const quarter = MaxCycle / 4
	switch {
	case a < quarter && b > 3*quarter:
		return 1
	case a > 3*quarter && b < quarter:
		return -1
	case a < b:
		return -1
	default:
		return 1
	}
}

// WrapDomain returns the cursor range used by a ring of capacity n: the
// largest multiple of n*MaxCycle that fits in a uint64. Cursors count from
// zero to WrapDomain(n)-1 and then wrap, so that the slot index and the
// cycle can always be recovered from a cursor by division.
func WrapDomain(n int) uint64 {
	lap := uint64(n) * MaxCycle
	return math.MaxUint64 / lap * lap
}

// IndexOf returns the slot index of cursor in a ring of capacity n.
func IndexOf(cursor uint64, n int) int {
	return int(cursor % uint64(n))
}

// CycleOf returns the cycle of cursor in a ring of capacity n.
func CycleOf(cursor uint64, n int) uint64 {
	return cursor / uint64(n) & cycleMask
}

// AtomicLap is a Lap that can be updated atomically. The zero value is InitLap.
type AtomicLap struct {
	v atomic.Uint32
}

// Load atomically reads the lap.
func (a *AtomicLap) Load() Lap {
	return Lap(a.v.Load())
}

// Store atomically writes l.
func (a *AtomicLap) Store(l Lap) {
	a.v.Store(uint32(l))
}

// CompareAndSwap replaces old with next and reports whether it did.
func (a *AtomicLap) CompareAndSwap(old, next Lap) bool {
	return a.v.CompareAndSwap(uint32(old), uint32(next))
}
