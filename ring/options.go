package ring

import (
	"fmt"

	"github.com/aradilov/lockfree/spin"
)

// ringOptions holds configuration for Ring creation.
type ringOptions struct {
	spin     spin.Strategy
	release  any
	hopLimit int
	stats    bool
}

// Option configures a Ring.
type Option interface {
	applyRing(*ringOptions)
}

// optionImpl implements Option.
type optionImpl struct {
	applyRingFunc func(*ringOptions)
}

func (o *optionImpl) applyRing(opts *ringOptions) {
	o.applyRingFunc(opts)
}

// WithSpin sets the strategy used by Push and Pop between attempts.
// Defaults to spin.Default.
func WithSpin(s spin.Strategy) Option {
	return &optionImpl{func(opts *ringOptions) {
		opts.spin = s
	}}
}

// WithRelease registers fn as the element destructor, run for every element
// still queued when the ring is cleared.
func WithRelease[T any](fn func(T)) Option {
	return &optionImpl{func(opts *ringOptions) {
		opts.release = fn
	}}
}

// WithHopLimit bounds the number of slots a single TryPush or TryPop may skip
// past while chasing a cursor that concurrent callers keep advancing. When
// the bound is hit the attempt fails with state.ErrContended, marked
// transient, even though capacity may be available. Zero (the default) means
// unbounded.
func WithHopLimit(n int) Option {
	return &optionImpl{func(opts *ringOptions) {
		opts.hopLimit = n
	}}
}

// WithStats enables the attempt/failure counters reported by Ring.Stats.
// Counting adds shared atomic increments to every operation.
func WithStats(enabled bool) Option {
	return &optionImpl{func(opts *ringOptions) {
		opts.stats = enabled
	}}
}

func resolveRingOptions[T any](opts []Option) (ringOptions, func(T)) {
	var cfg ringOptions
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyRing(&cfg)
	}
	var release func(T)
	if cfg.release != nil {
		fn, ok := cfg.release.(func(T))
		if !ok {
			panic(fmt.Sprintf("ring: release hook %T does not accept %T", cfg.release, *new(T)))
		}
		release = fn
	}
	if cfg.hopLimit < 0 {
		panic("ring: hop limit must be >= 0")
	}
	return cfg, release
}
