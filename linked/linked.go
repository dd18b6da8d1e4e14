// Package linked implements an intrusive singly linked list of caller-owned
// nodes. Each node carries its payload in a cell.Cell, so the value can be
// borrowed, replaced or taken whether or not the node is linked.
//
// Push is a CAS on the head. Unlinking rewrites the predecessor's next
// pointer, which is only safe while nobody else rewrites the predecessor or
// the node itself, so an unlink first claims both. The claim lives in each
// node's link word, which also records whether the node is in a list:
//
//	detached → claimed   [Push: prepare]
//	claimed  → linked    [Push: published at the head]
//	linked   → claimed   [unlink: as target or predecessor]
//	claimed  → linked    [unlink lost a race, or finished with a predecessor]
//	claimed  → detached  [unlink: target removed]
//
// A claim is never held while waiting for another, so claims cannot
// deadlock; a loser releases what it holds and starts over.
package linked

import (
	"fmt"
	"sync/atomic"

	"github.com/aradilov/lockfree/cell"
	"github.com/aradilov/lockfree/spin"
)

const (
	detached uint32 = iota
	linked
	claimed
)

// Node is one list element. Create nodes with NewNode or NewNodeWith; a
// Node must not be copied and belongs to at most one list at a time.
type Node[T any] struct {
	payload *cell.Cell[T]
	next    atomic.Pointer[Node[T]]
	link    atomic.Uint32
	owner   atomic.Pointer[List[T]]
}

// NewNode returns a detached node with an empty payload cell configured
// with opts.
func NewNode[T any](opts ...cell.Option) *Node[T] {
	return &Node[T]{payload: cell.New[T](opts...)}
}

// NewNodeWith returns a detached node whose payload already holds v.
func NewNodeWith[T any](v T, opts ...cell.Option) *Node[T] {
	return &Node[T]{payload: cell.NewWith(v, opts...)}
}

// Cell returns the node's payload.
func (n *Node[T]) Cell() *cell.Cell[T] {
	return n.payload
}

// Linked reports whether the node is in a list or on its way in or out.
func (n *Node[T]) Linked() bool {
	return n.link.Load() != detached
}

// List is the list head. The zero value is an empty list using spin.Default.
type List[T any] struct {
	head atomic.Pointer[Node[T]]
	spin spin.Strategy
}

func New[T any]() *List[T] {
	return &List[T]{}
}

// NewWithSpin creates an empty list that waits out claimed nodes with s.
func NewWithSpin[T any](s spin.Strategy) *List[T] {
	return &List[T]{spin: s}
}

func (l *List[T]) strategy() spin.Strategy {
	return spin.Or(l.spin)
}

// at returns the pointer that leads to the node after pred, or the head
// when pred is nil.
func (l *List[T]) at(pred *Node[T]) *atomic.Pointer[Node[T]] {
	if pred == nil {
		return &l.head
	}
	return &pred.next
}

// Push links n at the front of the list. It returns false, leaving both
// lists untouched, when n is already linked somewhere.
func (l *List[T]) Push(n *Node[T]) bool {
	if !n.link.CompareAndSwap(detached, claimed) {
		return false
	}
	n.owner.Store(l)
	s := l.strategy()
	for attempt := 1; ; attempt++ {
		h := l.head.Load()
		n.next.Store(h)
		if l.head.CompareAndSwap(h, n) {
			break
		}
		s.Spin(attempt)
	}
	n.link.Store(linked)
	return true
}

type outcome int

const (
	unlinked outcome = iota
	absent           // not a member of this list
	lost             // a concurrent push or unlink got in the way
)

// Remove unlinks n and reports whether this call did so. It returns false if
// n is not in l, including when a concurrent Remove or Pop took it first.
// The payload is left in the node.
func (l *List[T]) Remove(n *Node[T]) bool {
	return l.remove(n, false) == unlinked
}

func (l *List[T]) remove(n *Node[T], tail bool) outcome {
	s := l.strategy()
	for attempt := 1; ; attempt++ {
		if !n.link.CompareAndSwap(linked, claimed) {
			if n.link.Load() == detached {
				return absent
			}
			if tail {
				return lost
			}
			s.Spin(attempt)
			continue
		}
		if n.owner.Load() != l {
			n.link.Store(linked)
			return absent
		}
		res := l.unlink(n, tail)
		if res != lost || tail {
			return res
		}
		s.Spin(attempt)
	}
}

// unlink removes n, which the caller has claimed. Unless it returns
// unlinked, n is released again.
func (l *List[T]) unlink(n *Node[T], tail bool) outcome {
	if tail && n.next.Load() != nil {
		n.link.Store(linked)
		return lost
	}

	var pred *Node[T]
	for cur := l.head.Load(); cur != n; cur = cur.next.Load() {
		if cur == nil {
			// walked off a node that was unlinked under us
			n.link.Store(linked)
			return lost
		}
		pred = cur
	}
	if pred != nil && !pred.link.CompareAndSwap(linked, claimed) {
		n.link.Store(linked)
		return lost
	}

	ok := l.at(pred).CompareAndSwap(n, n.next.Load())
	if pred != nil {
		pred.link.Store(linked)
	}
	if !ok {
		n.link.Store(linked)
		return lost
	}
	n.next.Store(nil)
	n.owner.Store(nil)
	n.link.Store(detached)
	return unlinked
}

// Pop unlinks the oldest node, the one at the back of the list, and returns
// it, or nil when the list is empty.
func (l *List[T]) Pop() *Node[T] {
	s := l.strategy()
	for attempt := 1; ; attempt++ {
		var last *Node[T]
		for cur := l.head.Load(); cur != nil; cur = cur.next.Load() {
			last = cur
		}
		if last == nil {
			return nil
		}
		if l.remove(last, true) == unlinked {
			return last
		}
		s.Spin(attempt)
	}
}

// Front returns the newest node without unlinking it, or nil.
func (l *List[T]) Front() *Node[T] {
	return l.head.Load()
}

// Each visits the nodes from newest to oldest until fn returns false. Nodes
// pushed or removed concurrently may or may not be visited.
func (l *List[T]) Each(fn func(n *Node[T]) bool) {
	for cur := l.head.Load(); cur != nil; cur = cur.next.Load() {
		if !fn(cur) {
			return
		}
	}
}

// Retain unlinks every node for which keep returns false.
func (l *List[T]) Retain(keep func(n *Node[T]) bool) {
	for cur := l.head.Load(); cur != nil; {
		next := cur.next.Load()
		if !keep(cur) {
			l.Remove(cur)
		}
		cur = next
	}
}

// Clear unlinks every node. Payloads stay in their nodes.
func (l *List[T]) Clear() {
	for l.Pop() != nil {
	}
}

func (l *List[T]) IsEmpty() bool {
	return l.head.Load() == nil
}

// Len counts the nodes. It is a snapshot.
func (l *List[T]) Len() int {
	n := 0
	l.Each(func(*Node[T]) bool {
		n++
		return true
	})
	return n
}

func (l *List[T]) String() string {
	return fmt.Sprintf("List(len=%d)", l.Len())
}
