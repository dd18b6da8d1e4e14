// Package mpmc is a bounded multi-producer multi-consumer channel built on
// ring.Ring. Any number of Sender and Receiver handles may be taken.
package mpmc

import (
	"context"
	"errors"

	"github.com/aradilov/lockfree/ring"
	"github.com/aradilov/lockfree/spin"
	"github.com/aradilov/lockfree/state"
)

type Mpmc[T any] struct {
	ring *ring.Ring[T]
	spin spin.Strategy
}

// New creates a channel buffering up to capacity elements. opts configure
// the underlying ring.
func New[T any](capacity int, opts ...ring.Option) *Mpmc[T] {
	return &Mpmc[T]{
		ring: ring.New[T](capacity, opts...),
		spin: spin.Default,
	}
}

func (m *Mpmc[T]) Sender() Sender[T] {
	return Sender[T]{m: m}
}

func (m *Mpmc[T]) Receiver() Receiver[T] {
	return Receiver[T]{m: m}
}

func (m *Mpmc[T]) Len() int {
	return m.ring.Len()
}

func (m *Mpmc[T]) Capacity() int {
	return m.ring.Capacity()
}

// Stats reports the counters of the underlying ring.
func (m *Mpmc[T]) Stats() ring.Stats {
	return m.ring.Stats()
}

// Clear drops every buffered element. The caller must have exclusive access.
func (m *Mpmc[T]) Clear() {
	m.ring.Clear()
}

// Sender is the producing side of a channel.
type Sender[T any] struct {
	m *Mpmc[T]
}

// TrySend enqueues v once; see ring.Ring.TryPush for the failure modes.
func (s Sender[T]) TrySend(v T) error {
	return s.m.ring.TryPush(v)
}

// Send enqueues v, spinning over transient failures. It still fails with
// state.ErrFull when the channel is full.
func (s Sender[T]) Send(v T) error {
	return s.m.ring.Push(v)
}

// SendContext enqueues v, waiting for room until ctx is done.
func (s Sender[T]) SendContext(ctx context.Context, v T) error {
	return waitContext(ctx, s.m.spin, state.ErrFull, func() error {
		return s.m.ring.TryPush(v)
	})
}

// Receiver is the consuming side of a channel.
type Receiver[T any] struct {
	m *Mpmc[T]
}

// TryRecv dequeues once; see ring.Ring.TryPop for the failure modes.
func (r Receiver[T]) TryRecv() (T, error) {
	return r.m.ring.TryPop()
}

// Recv dequeues, spinning over transient failures. It still fails with
// state.ErrEmpty when nothing is buffered.
func (r Receiver[T]) Recv() (T, error) {
	return r.m.ring.Pop()
}

// RecvContext dequeues, waiting for an element until ctx is done.
func (r Receiver[T]) RecvContext(ctx context.Context) (T, error) {
	var v T
	err := waitContext(ctx, r.m.spin, state.ErrEmpty, func() error {
		var err error
		v, err = r.m.ring.TryPop()
		return err
	})
	return v, err
}

// waitContext repeats op while it fails transiently or with wait, until ctx
// is done.
func waitContext(ctx context.Context, s spin.Strategy, wait error, op func() error) error {
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil || !(state.IsTransient(err) || errors.Is(err, wait)) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.Spin(attempt)
	}
}
