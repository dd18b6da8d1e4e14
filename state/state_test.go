package state

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryState_RoundTrip(t *testing.T) {
	for _, s := range []MemoryState{Uninitialized, Initializing, Initialized, Erasing, Referred} {
		assert.Equal(t, s, stateOf(uint8(s)), s.String())
	}
	assert.Equal(t, Uninitialized, stateOf(200))
	assert.Equal(t, "Unknown", MemoryState(9).String())

	assert.True(t, Initializing.IsTransient())
	assert.True(t, Erasing.IsTransient())
	assert.False(t, Initialized.IsTransient())
	assert.False(t, Uninitialized.IsTransient())

	preds := map[MemoryState]func(MemoryState) bool{
		Uninitialized: MemoryState.IsUninitialized,
		Initializing:  MemoryState.IsInitializing,
		Initialized:   MemoryState.IsInitialized,
		Erasing:       MemoryState.IsErasing,
		Referred:      MemoryState.IsReferred,
	}
	for want, is := range preds {
		for s := range preds {
			assert.Equal(t, s == want, is(s), "%v is %v", s, want)
		}
	}
}

func TestRefer_Borrows(t *testing.T) {
	r := ReferOf(Uninitialized)
	_, ok := r.RefNum()
	assert.False(t, ok)
	assert.False(t, r.CanRefer())
	_, ok = r.AddRef()
	assert.False(t, ok)

	r, ok = r.WithState(Initialized)
	require.True(t, ok)
	n, ok := r.RefNum()
	require.True(t, ok)
	assert.Equal(t, 0, n)

	r, ok = r.AddRef()
	require.True(t, ok)
	assert.Equal(t, Refer(RefOne), r)
	assert.Equal(t, Referred, r.State())
	_, ok = r.WithState(Initialized)
	assert.False(t, ok, "state of a borrowed word must not be overwritten")

	r, _ = r.AddRef()
	n, _ = r.RefNum()
	assert.Equal(t, 2, n)

	r, _ = r.SubRef()
	r, _ = r.SubRef()
	assert.Equal(t, ReferOf(Initialized), r)
	_, ok = r.SubRef()
	assert.False(t, ok)
}

func TestRefer_Pending(t *testing.T) {
	_, ok := ReferOf(Initialized).WithPending()
	assert.False(t, ok, "an unborrowed word cannot carry the pending flag")

	r, _ := ReferOf(Initialized).AddRef()
	r, ok = r.WithPending()
	require.True(t, ok)
	assert.True(t, r.Pending())
	assert.False(t, r.CanRefer())
	assert.Equal(t, Referred, r.State())
	n, ok := r.RefNum()
	require.True(t, ok)
	assert.Equal(t, 1, n)

	r, _ = r.AddRef()
	assert.True(t, r.Pending(), "pending survives count changes")
	n, _ = r.RefNum()
	assert.Equal(t, 2, n)
}

func TestRefer_Max(t *testing.T) {
	r := Refer(lowMask)
	n, ok := r.RefNum()
	require.True(t, ok)
	assert.Equal(t, RefMax, n)
	_, ok = r.AddRef()
	assert.False(t, ok)
	r, ok = r.SubRef()
	require.True(t, ok)
	n, _ = r.RefNum()
	assert.Equal(t, RefMax-1, n)
}

func TestAtomicRefer(t *testing.T) {
	var a AtomicRefer
	assert.Equal(t, Uninitialized, a.Load().State())
	assert.True(t, a.TrySetState(Uninitialized, Initializing))
	assert.False(t, a.TrySetState(Uninitialized, Initializing))
	a.Store(ReferOf(Initialized))

	_, ok := a.TryAddRef()
	require.True(t, ok)
	old, ok := a.Update(Refer.WithPending)
	require.True(t, ok)
	assert.False(t, old.Pending())
	_, ok = a.TryAddRef()
	assert.False(t, ok, "pending removal refuses new borrows")

	_, ok = a.TrySubRef()
	require.True(t, ok)
	assert.Equal(t, ReferOf(Initialized), a.Load())
}

func TestLap(t *testing.T) {
	l := InitLap
	assert.Equal(t, uint64(0), l.Cycle())
	assert.Equal(t, Uninitialized, l.State())

	l = l.Next()
	assert.Equal(t, NewLap(0, Initializing), l)
	l = l.Next().Next()
	assert.Equal(t, NewLap(0, Erasing), l)
	l = l.Next()
	assert.Equal(t, NewLap(1, Uninitialized), l)

	last := NewLap(MaxCycle-1, Erasing)
	next := last.Next()
	assert.Equal(t, uint64(0), next.Cycle())
	assert.Equal(t, Uninitialized, next.State())
	assert.Equal(t, 1, next.Compare(last), "wrapped cycle must compare newer")
	assert.Equal(t, -1, last.Compare(next))

	assert.Equal(t, -1, NewLap(0, Uninitialized).Compare(NewLap(0, Initializing)))
	assert.Equal(t, -1, NewLap(0, Initializing).Compare(NewLap(0, Initialized)))
	assert.Equal(t, -1, NewLap(0, Initialized).Compare(NewLap(0, Erasing)))
	assert.Equal(t, -1, NewLap(0, Erasing).Compare(NewLap(1, Uninitialized)))
	assert.Equal(t, 0, NewLap(7, Initialized).Compare(NewLap(7, Initialized)))
}

func TestAtomicLap(t *testing.T) {
	var a AtomicLap
	assert.Equal(t, InitLap, a.Load())
	assert.True(t, a.CompareAndSwap(InitLap, InitLap.Next()))
	assert.False(t, a.CompareAndSwap(InitLap, InitLap.Next()))
	a.Store(NewLap(3, Initialized))
	assert.Equal(t, uint64(3), a.Load().Cycle())
	assert.Equal(t, Initialized, a.Load().State())
}

func TestWrapDomain(t *testing.T) {
	for _, n := range []int{1, 3, 100, 1024} {
		w := WrapDomain(n)
		require.Zero(t, w%(uint64(n)*MaxCycle))
		assert.Equal(t, n-1, IndexOf(w-1, n))
		assert.Equal(t, uint64(MaxCycle-1), CycleOf(w-1, n))
	}
	assert.Equal(t, 2, IndexOf(5, 3))
	assert.Equal(t, uint64(1), CycleOf(5, 3))
}

func TestError(t *testing.T) {
	err := error(Failure(Erasing, 42, true, ErrBusy))
	assert.True(t, errors.Is(err, ErrBusy))
	assert.True(t, IsTransient(err))
	assert.Contains(t, err.Error(), "transient")

	v, ok := InputOf[int](err)
	require.True(t, ok)
	assert.Equal(t, 42, v)
	_, ok = InputOf[string](err)
	assert.False(t, ok)

	s, ok := StateOf(err)
	require.True(t, ok)
	assert.Equal(t, Erasing, s)

	perm := Failure(Initialized, struct{}{}, false, ErrInitialized)
	assert.False(t, IsTransient(perm))
	assert.False(t, IsTransient(ErrBusy))
	assert.False(t, IsTransient(nil))
}
