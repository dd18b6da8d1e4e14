package once

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/aradilov/lockfree/spin"
	"github.com/aradilov/lockfree/state"
)

func TestOnce_Base(t *testing.T) {
	o := New[int]()
	_, err := o.TryGet()
	assert.ErrorIs(t, err, state.ErrUninitialized)
	assert.False(t, state.IsTransient(err))

	require.NoError(t, o.Set(1))
	assert.True(t, o.IsInitialized())
	err = o.TrySet(2)
	assert.ErrorIs(t, err, state.ErrInitialized)
	assert.False(t, state.IsTransient(err))

	v, err := o.Get()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = o.GetOrInit(3)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, ok := o.Take()
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	_, ok = o.Take()
	assert.False(t, ok)

	v, err = o.GetOrInit(4)
	require.NoError(t, err)
	assert.Equal(t, 4, v)
}

func TestOnce_Busy(t *testing.T) {
	var o Once[string]
	o.state.Store(state.ReferOf(state.Initializing))
	_, err := o.TryGet()
	assert.ErrorIs(t, err, state.ErrBusy)
	assert.True(t, state.IsTransient(err))

	_, err = o.GetOrTryInit("x")
	assert.True(t, state.IsTransient(err))
	in, _ := state.InputOf[string](err)
	assert.Equal(t, "x", in)
}

func TestOnce_SingleWinner(t *testing.T) {
	const writers = 64
	o := NewWithSpin[int](spin.Yield{})

	var (
		start sync.WaitGroup
		wins  atomic.Int32
		g     errgroup.Group
	)
	start.Add(1)
	results := make([]int, writers)
	for i := 0; i < writers; i++ {
		g.Go(func() error {
			start.Wait()
			if o.TrySet(i) == nil {
				wins.Add(1)
			}
			v, err := o.GetOrInit(-1)
			results[i] = v
			return err
		})
	}
	start.Done()
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), wins.Load())
	for _, v := range results {
		assert.Equal(t, results[0], v, "every caller observes the winner's value")
	}
	assert.NotEqual(t, -1, results[0])
}

// Setters and takers may race: every value set is taken exactly once.
func TestOnce_TakeWhileSetting(t *testing.T) {
	const (
		N       = 2000
		workers = 4
	)
	o := NewWithSpin[int](spin.Yield{})
	seen := make([]atomic.Int32, N)
	var (
		taken atomic.Int32
		g     errgroup.Group
	)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := w; i < N; i += workers {
				for o.Set(i) != nil {
					runtime.Gosched()
				}
			}
			return nil
		})
		g.Go(func() error {
			for taken.Load() < N {
				if v, ok := o.Take(); ok {
					seen[v].Add(1)
					taken.Add(1)
				} else {
					runtime.Gosched()
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	for i := range seen {
		assert.Equal(t, int32(1), seen[i].Load(), "value %d", i)
	}
	assert.False(t, o.IsInitialized())
}

func TestLazy_InitOnce(t *testing.T) {
	var calls atomic.Int32
	l := NewLazy(func() string {
		calls.Add(1)
		return "value"
	})
	_, ok := l.Get()
	assert.False(t, ok)

	var g errgroup.Group
	for i := 0; i < 32; i++ {
		g.Go(func() error {
			if v := l.Force(); v != "value" {
				t.Errorf("Force returned %q", v)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), calls.Load())
	v, ok := l.Get()
	assert.True(t, ok)
	assert.Equal(t, "value", v)
	assert.False(t, l.Poisoned())
}

func TestLazy_Poisoned(t *testing.T) {
	l := NewLazy(func() int { panic("boom") })

	assert.PanicsWithValue(t, "boom", func() { l.Force() })
	assert.True(t, l.Poisoned())
	assert.PanicsWithValue(t, ErrPoisoned, func() { l.Force() })

	_, ok := l.Get()
	assert.False(t, ok)
}
