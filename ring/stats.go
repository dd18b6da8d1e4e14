package ring

import "sync/atomic"

type counter int

const (
	pushAttempts counter = iota
	pushFull
	pushBusy
	pushContended
	pushHops

	popAttempts
	popEmpty
	popBusy
	popContended
	popHops

	numCounters
)

type counters [numCounters]atomic.Uint64

// Stats is a snapshot of a ring's counters. All fields stay zero unless the
// ring was built WithStats(true).
type Stats struct {
	PushAttempts  uint64
	PushFailFull  uint64
	PushFailBusy  uint64
	PushContended uint64
	PushHops      uint64

	PopAttempts  uint64
	PopFailEmpty uint64
	PopFailBusy  uint64
	PopContended uint64
	PopHops      uint64
}

// Stats retrieves the current statistics of the Ring.
func (r *Ring[T]) Stats() Stats {
	c := r.stats
	if c == nil {
		return Stats{}
	}
	return Stats{
		PushAttempts:  c[pushAttempts].Load(),
		PushFailFull:  c[pushFull].Load(),
		PushFailBusy:  c[pushBusy].Load(),
		PushContended: c[pushContended].Load(),
		PushHops:      c[pushHops].Load(),
		PopAttempts:   c[popAttempts].Load(),
		PopFailEmpty:  c[popEmpty].Load(),
		PopFailBusy:   c[popBusy].Load(),
		PopContended:  c[popContended].Load(),
		PopHops:       c[popHops].Load(),
	}
}

func (r *Ring[T]) count(c counter) {
	if r.stats != nil {
		r.stats[c].Add(1)
	}
}
