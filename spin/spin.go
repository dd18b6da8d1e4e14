// Package spin provides the busy-wait strategies used by the retrying forms
// of every operation in this module. A strategy is consulted once per failed
// attempt; it never parks the goroutine on a scheduler primitive.
package spin

import (
	"context"
	"runtime"

	"github.com/valyala/fastrand"

	"github.com/aradilov/lockfree/state"
)

const goschedEvery = 64 // reduce runtime.Gosched() frequency in hot loops

// Strategy decides what to do between two attempts of a spinning operation.
// attempt counts failed attempts so far, starting at 1.
type Strategy interface {
	Spin(attempt int)
}

// StrategyFunc adapts a plain function to Strategy.
type StrategyFunc func(attempt int)

func (f StrategyFunc) Spin(attempt int) { f(attempt) }

// Yield hands the processor back to the scheduler after every attempt.
type Yield struct{}

func (Yield) Spin(int) { runtime.Gosched() }

// Hint spins without yielding. It suits contexts where the peer is known to
// be running on another core and will finish within a few instructions.
type Hint struct{}

func (Hint) Spin(int) {}

// Every yields once every n attempts and spins otherwise.
type Every int

func (e Every) Spin(attempt int) {
	if e <= 1 || attempt%int(e) == 0 {
		runtime.Gosched()
	}
}

// Backoff yields an exponentially growing, randomly jittered number of times
// per attempt, capped at Max yields.
type Backoff struct {
	Base int
	Max  int
}

func (b Backoff) Spin(attempt int) {
	base, ceiling := b.Base, b.Max
	if base <= 0 {
		base = 1
	}
	if ceiling <= 0 {
		ceiling = goschedEvery
	}
	n := base
	for i := 1; i < attempt && n < ceiling; i++ {
		n <<= 1
	}
	if n > ceiling {
		n = ceiling
	}
	for yields := fastrand.Uint32n(uint32(n)) + 1; yields > 0; yields-- {
		runtime.Gosched()
	}
}

// Default is used wherever no strategy has been configured.
var Default Strategy = Every(goschedEvery)

// Or returns s, or Default when s is nil.
func Or(s Strategy) Strategy {
	if s == nil {
		return Default
	}
	return s
}

// Do calls op until it succeeds or fails with an error that is not
// transient (see state.IsTransient).
func Do(s Strategy, op func() error) error {
	s = Or(s)
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil || !state.IsTransient(err) {
			return err
		}
		s.Spin(attempt)
	}
}

// Retry is Do for operations that produce a result.
func Retry[R any](s Strategy, op func() (R, error)) (R, error) {
	s = Or(s)
	for attempt := 1; ; attempt++ {
		r, err := op()
		if err == nil || !state.IsTransient(err) {
			return r, err
		}
		s.Spin(attempt)
	}
}

// DoContext is Do with an upper bound: once ctx is done it returns ctx.Err()
// instead of spinning further.
func DoContext(ctx context.Context, s Strategy, op func() error) error {
	s = Or(s)
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil || !state.IsTransient(err) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.Spin(attempt)
	}
}
