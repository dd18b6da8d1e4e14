package array

import (
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/aradilov/lockfree/cell"
	"github.com/aradilov/lockfree/state"
)

func TestArray_PushPop(t *testing.T) {
	a := New[string](3)
	assert.Equal(t, 3, a.Capacity())
	assert.True(t, a.IsEmpty())

	for i, s := range []string{"a", "b", "c"} {
		idx, err := a.Push(s)
		require.NoError(t, err)
		assert.Equal(t, i, idx)
	}
	assert.True(t, a.IsFull())

	_, err := a.Push("d")
	assert.ErrorIs(t, err, state.ErrFull)
	in, ok := state.InputOf[string](err)
	require.True(t, ok)
	assert.Equal(t, "d", in)

	v, ok, err := a.Take(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", v)

	idx, err := a.Push("e")
	require.NoError(t, err)
	assert.Equal(t, 1, idx, "the first free cell is reused")

	var got []string
	for {
		v, ok := a.Pop()
		if !ok {
			break
		}
		got = append(got, v)
	}
	assert.Equal(t, []string{"a", "e", "c"}, got)
	assert.Equal(t, 0, a.Len())
}

func TestArray_GetSwap(t *testing.T) {
	a := New[int](2)
	_, err := a.Get(0)
	assert.ErrorIs(t, err, state.ErrUninitialized)

	_, err = a.Push(10)
	require.NoError(t, err)
	r, err := a.Get(0)
	require.NoError(t, err)
	assert.Equal(t, 10, r.Value())
	r.Release()

	prev, ok, err := a.Swap(0, 20)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 10, prev)

	prev, ok, err = a.Swap(1, 30)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, prev)

	v, ok := a.Cell(1).Peek()
	assert.True(t, ok)
	assert.Equal(t, 30, v)
	assert.Equal(t, "Array(len=2, cap=2)", a.String())
}

func TestArray_Each(t *testing.T) {
	a := New[int](5)
	for _, v := range []int{1, 2, 3} {
		_, err := a.Push(v)
		require.NoError(t, err)
	}
	_, _, err := a.Take(1)
	require.NoError(t, err)

	var idx, vals []int
	a.Each(false, func(i int, r *cell.Ref[int]) bool {
		idx = append(idx, i)
		vals = append(vals, r.Value())
		return true
	})
	assert.Equal(t, []int{0, 2}, idx)
	assert.Equal(t, []int{1, 3}, vals)

	calls := 0
	a.Each(true, func(int, *cell.Ref[int]) bool {
		calls++
		return false
	})
	assert.Equal(t, 1, calls)

	// every borrow taken by Each was given back
	for i := 0; i < a.Capacity(); i++ {
		n, err := a.Cell(i).RefNum()
		if err == nil {
			assert.Equal(t, 0, n, "cell %d", i)
		}
	}
}

// A value whose removal waits on a borrower is skipped by every scan, and
// single-index operations report it instead of waiting for the borrower.
func TestArray_PendingRemoval(t *testing.T) {
	var released atomic.Int32
	a := New[int](2, cell.WithRelease(func(int) { released.Add(1) }))
	_, err := a.Push(1)
	require.NoError(t, err)

	r, err := a.Get(0)
	require.NoError(t, err)
	_, _, err = a.Take(0)
	assert.ErrorIs(t, err, state.ErrRemovalPending)
	assert.True(t, state.IsTransient(err))

	_, err = a.Get(0)
	assert.ErrorIs(t, err, state.ErrRemovalPending)
	_, _, err = a.Swap(0, 5)
	assert.ErrorIs(t, err, state.ErrRemovalPending)

	for _, strict := range []bool{false, true} {
		calls := 0
		a.Each(strict, func(int, *cell.Ref[int]) bool {
			calls++
			return true
		})
		assert.Equal(t, 0, calls, "strict=%v", strict)
	}

	idx, err := a.Push(2)
	require.NoError(t, err)
	assert.Equal(t, 1, idx, "the pending cell is passed over")
	_, err = a.Push(3)
	assert.ErrorIs(t, err, state.ErrFull)

	v, ok := a.Pop()
	require.True(t, ok)
	assert.Equal(t, 2, v)
	_, ok = a.Pop()
	assert.False(t, ok)

	assert.Equal(t, 1, r.Value())
	r.Release()
	assert.Equal(t, int32(1), released.Load())

	idx, err = a.Push(4)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
}

func TestArray_PushRef(t *testing.T) {
	a := New[string](2)
	i, r, err := a.PushRef("x")
	require.NoError(t, err)
	assert.Equal(t, 0, i)
	assert.Equal(t, "x", r.Value())
	n, err := a.Cell(0).RefNum()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	r.Release()

	_, _, err = a.PushRef("y")
	require.NoError(t, err)
	_, r, err = a.PushRef("z")
	assert.ErrorIs(t, err, state.ErrFull)
	assert.False(t, r.Valid())
}

func TestArray_Clear(t *testing.T) {
	var released atomic.Int32
	a := New[int](4, cell.WithRelease(func(int) { released.Add(1) }))
	for i := 0; i < 3; i++ {
		_, err := a.Push(i)
		require.NoError(t, err)
	}
	a.Clear()
	assert.Equal(t, int32(3), released.Load())
	assert.True(t, a.IsEmpty())
}

func TestArray_Concurrent(t *testing.T) {
	const (
		capacity = 16
		N        = 2000
		workers  = 8
	)
	a := New[int](capacity)

	var (
		mu  sync.Mutex
		got []int
		g   errgroup.Group
	)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := w; i < N; i += workers {
				for {
					_, err := a.Push(i)
					if err == nil {
						break
					}
					if !assert.ErrorIs(t, err, state.ErrFull) {
						return err
					}
					if v, ok := a.Pop(); ok {
						mu.Lock()
						got = append(got, v)
						mu.Unlock()
					}
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	for {
		v, ok := a.Pop()
		if !ok {
			break
		}
		got = append(got, v)
	}

	want := make([]int, N)
	for i := range want {
		want[i] = i
	}
	sort.Ints(got)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}
