package once

import (
	"fmt"
	"sync/atomic"

	"github.com/aradilov/lockfree/spin"
	"github.com/aradilov/lockfree/state"
)

var ErrPoisoned = fmt.Errorf("lazy initializer panicked")

// Lazy computes its value on first use. Concurrent callers spin until the
// first one has published the result. If the initializer panics, the Lazy is
// poisoned and every later Force panics with ErrPoisoned.
type Lazy[T any] struct {
	once     Once[T]
	init     func() T
	poisoned atomic.Bool
}

func NewLazy[T any](fn func() T) *Lazy[T] {
	return &Lazy[T]{init: fn}
}

// Force returns the value, computing it if needed.
func (l *Lazy[T]) Force() T {
	for attempt := 1; ; attempt++ {
		if v, err := l.once.TryGet(); err == nil {
			return v
		}
		if l.poisoned.Load() {
			panic(ErrPoisoned)
		}
		if l.once.state.TrySetState(state.Uninitialized, state.Initializing) {
			l.publish()
			continue
		}
		spin.Or(l.once.spin).Spin(attempt)
	}
}

func (l *Lazy[T]) publish() {
	defer func() {
		if r := recover(); r != nil {
			l.poisoned.Store(true)
			panic(r)
		}
	}()
	l.once.val = l.init()
	l.once.state.Store(state.ReferOf(state.Initialized))
}

// Get returns the value if it has been computed, without computing it.
func (l *Lazy[T]) Get() (T, bool) {
	v, err := l.once.TryGet()
	return v, err == nil
}

// Poisoned reports whether the initializer panicked.
func (l *Lazy[T]) Poisoned() bool {
	return l.poisoned.Load()
}
