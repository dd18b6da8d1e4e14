package cell

import (
	"fmt"

	"github.com/aradilov/lockfree/spin"
)

// cellOptions holds configuration for Cell creation.
type cellOptions struct {
	spin    spin.Strategy
	release any
}

// Option configures a Cell.
type Option interface {
	applyCell(*cellOptions)
}

// optionImpl implements Option.
type optionImpl struct {
	applyCellFunc func(*cellOptions)
}

func (o *optionImpl) applyCell(opts *cellOptions) {
	o.applyCellFunc(opts)
}

// WithSpin sets the strategy used by the spinning forms (Set, Get, Take,
// Replace, GetOrInit) between attempts. Defaults to spin.Default.
func WithSpin(s spin.Strategy) Option {
	return &optionImpl{func(opts *cellOptions) {
		opts.spin = s
	}}
}

// WithRelease registers fn as the value's destructor. It runs exactly once
// for every value the cell destroys itself: a removal completed by the last
// Ref, or Clear. Values handed back to a caller by Take or Replace are the
// caller's to release.
//
// fn's parameter type must match the cell's element type, otherwise New
// panics.
func WithRelease[T any](fn func(T)) Option {
	return &optionImpl{func(opts *cellOptions) {
		opts.release = fn
	}}
}

// apply resolves opts onto c.
func (c *Cell[T]) apply(opts []Option) {
	var cfg cellOptions
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyCell(&cfg)
	}
	c.spin = cfg.spin
	if cfg.release != nil {
		fn, ok := cfg.release.(func(T))
		if !ok {
			panic(fmt.Sprintf("cell: release hook %T does not accept %T", cfg.release, *new(T)))
		}
		c.release = fn
	}
}
