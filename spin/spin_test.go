package spin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aradilov/lockfree/state"
)

func TestDo_RetriesTransientOnly(t *testing.T) {
	var spins []int
	s := StrategyFunc(func(attempt int) { spins = append(spins, attempt) })

	calls := 0
	err := Do(s, func() error {
		calls++
		if calls < 4 {
			return state.Failure(state.Erasing, struct{}{}, true, state.ErrBusy)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []int{1, 2, 3}, spins)

	calls = 0
	err = Do(s, func() error {
		calls++
		return state.Failure(state.Initialized, struct{}{}, false, state.ErrInitialized)
	})
	assert.ErrorIs(t, err, state.ErrInitialized)
	assert.Equal(t, 1, calls)
}

func TestRetry(t *testing.T) {
	calls := 0
	v, err := Retry(Hint{}, func() (int, error) {
		calls++
		if calls == 1 {
			return 0, state.Failure(state.Initializing, struct{}{}, true, state.ErrBusy)
		}
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	plain := errors.New("boom")
	_, err = Retry(nil, func() (int, error) { return 0, plain })
	assert.ErrorIs(t, err, plain)
}

func TestDoContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := DoContext(ctx, Yield{}, func() error {
		calls++
		if calls == 3 {
			cancel()
		}
		return state.Failure(state.Erasing, struct{}{}, true, state.ErrBusy)
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, calls)
}

func TestStrategies(t *testing.T) {
	assert.Equal(t, Default, Or(nil))
	assert.Equal(t, Strategy(Yield{}), Or(Yield{}))

	// smoke: none of the strategies may block
	for _, s := range []Strategy{Yield{}, Hint{}, Every(3), Every(0), Backoff{}, Backoff{Base: 2, Max: 8}} {
		for attempt := 1; attempt < 10; attempt++ {
			s.Spin(attempt)
		}
	}
}
