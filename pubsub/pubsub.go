// Package pubsub fans every published value out to a bounded set of
// subscribers. Each subscriber owns a ring.Ring stored in an array.Array
// cell; the publisher borrows the cell while pushing, so a subscriber that
// closes mid-send keeps its ring alive until that send is done.
package pubsub

import (
	"errors"
	"fmt"

	"github.com/aradilov/lockfree/array"
	"github.com/aradilov/lockfree/cell"
	"github.com/aradilov/lockfree/ring"
	"github.com/aradilov/lockfree/state"
)

var ErrNoRoom = fmt.Errorf("no room for another subscriber")

type Publisher[T any] struct {
	subs   *array.Array[*ring.Ring[T]]
	depth  int
	strict bool
	opts   []ring.Option
}

// New creates a publisher accepting up to subscribers subscribers, each
// buffering up to depth values. In strict mode Send waits out subscribers
// that are mid-subscription instead of skipping them. opts configure every
// subscriber's ring; a ring.WithRelease hook also sees values dropped when a
// subscriber goes away.
func New[T any](subscribers, depth int, strict bool, opts ...ring.Option) *Publisher[T] {
	if depth < 1 {
		panic("pubsub: depth must be > 0")
	}
	return &Publisher[T]{
		subs:   array.New[*ring.Ring[T]](subscribers, cell.WithRelease(func(r *ring.Ring[T]) { r.Clear() })),
		depth:  depth,
		strict: strict,
		opts:   opts,
	}
}

// Subscribe registers a new subscriber. It fails with ErrNoRoom when every
// slot is taken. A slot ended by CloseAll stays taken until its Subscriber
// closes.
func (p *Publisher[T]) Subscribe() (*Subscriber[T], error) {
	q := ring.New[T](p.depth, p.opts...)
	i, ref, err := p.subs.PushRef(q)
	if err != nil {
		if errors.Is(err, state.ErrFull) {
			return nil, ErrNoRoom
		}
		return nil, err
	}
	return &Subscriber[T]{ref: ref, slot: i}, nil
}

// Send pushes v to every live subscriber and returns how many accepted it.
// Subscribers whose ring is full miss v.
func (p *Publisher[T]) Send(v T) int {
	n := 0
	p.subs.Each(p.strict, func(_ int, r *cell.Ref[*ring.Ring[T]]) bool {
		if r.WillRemove() {
			return true
		}
		if r.Value().Push(v) == nil {
			n++
		}
		return true
	})
	return n
}

// Subscribers returns the number of registered subscribers, including any
// that are closing.
func (p *Publisher[T]) Subscribers() int {
	return p.subs.Len()
}

// CloseAll unsubscribes everyone. Subscribers can still drain what is
// queued for them; each ring is dropped when its Subscriber closes.
func (p *Publisher[T]) CloseAll() {
	p.subs.Each(true, func(_ int, r *cell.Ref[*ring.Ring[T]]) bool {
		r.Remove()
		return true
	})
}

type Subscriber[T any] struct {
	ref  cell.Ref[*ring.Ring[T]]
	slot int
}

// Slot returns the subscriber's index in the publisher.
func (s *Subscriber[T]) Slot() int {
	return s.slot
}

// TryRecv pops the oldest value sent to this subscriber.
func (s *Subscriber[T]) TryRecv() (T, error) {
	return s.ref.Value().TryPop()
}

// Recv is TryRecv, spinning over transient failures.
func (s *Subscriber[T]) Recv() (T, error) {
	return s.ref.Value().Pop()
}

// Closed reports whether the publisher or the subscriber itself has ended
// the subscription.
func (s *Subscriber[T]) Closed() bool {
	return !s.ref.Valid() || s.ref.WillRemove()
}

func (s *Subscriber[T]) Len() int {
	return s.ref.Value().Len()
}

// Close unsubscribes. The ring and any values still in it are dropped once
// no Send is using it anymore. The Subscriber must not be used afterwards.
func (s *Subscriber[T]) Close() {
	if !s.ref.Valid() {
		return
	}
	s.ref.Remove()
	s.ref.Release()
}
