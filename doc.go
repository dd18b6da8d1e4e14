// Package lockfree is the root of a set of lock-free building blocks for
// sharing values between goroutines without mutexes.
//
// The two core structures are:
//
//   - cell.Cell, a slot holding at most one value, with borrowed references
//     and removal deferred until the last borrow is released;
//   - ring.Ring, a bounded FIFO queue for many producers and consumers whose
//     slots carry a reuse cycle next to their state.
//
// Both encode their state in a single atomic word (see package state), fail
// with errors that say whether retrying makes sense, and offer a spinning
// variant of every operation driven by a spin.Strategy.
//
// The remaining packages are built from these: array, pool, once, linked,
// mpmc, spsc and pubsub. cmd/lfstress stress-tests all of them.
package lockfree
