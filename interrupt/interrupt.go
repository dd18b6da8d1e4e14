// Package interrupt masks interrupts around the short window between winning
// a CAS and finishing the raw read or write it guards.
//
// On bare-metal targets an interrupt handler may re-enter a cell or ring that
// the foreground code is halfway through updating on the same core. The
// CriticalSection type disables interrupts for that window and restores the
// previous mask on every exit path. Hosted builds run on preemptible threads,
// where true concurrency (handled by the atomics) is the hazard, so Guard is
// inert there.
//
// The mask register itself is reached through a Provider. Hosted programs get
// a Mock; bare-metal programs Register one per architecture, or a custom
// get/set pair through ProviderFuncs.
package interrupt

import "sync/atomic"

// MaskAll selects every interrupt line.
const MaskAll = ^uint32(0)

// Provider reads and writes the interrupt mask of the current core.
type Provider interface {
	Mask() uint32
	SetMask(mask uint32)
}

// ProviderFuncs adapts a get/set function pair to Provider.
type ProviderFuncs struct {
	Get func() uint32
	Set func(mask uint32)
}

func (p ProviderFuncs) Mask() uint32        { return p.Get() }
func (p ProviderFuncs) SetMask(mask uint32) { p.Set(mask) }

// Mock is the hosted stand-in for a mask register. It has no effect other
// than remembering the last mask written.
type Mock struct {
	v atomic.Uint32
}

func (m *Mock) Mask() uint32        { return m.v.Load() }
func (m *Mock) SetMask(mask uint32) { m.v.Store(mask) }

type holder struct {
	p Provider
}

var (
	mock    Mock
	current atomic.Pointer[holder]
)

// Register installs p as the process-wide provider. A nil p restores the
// hosted Mock.
func Register(p Provider) {
	if p == nil {
		current.Store(nil)
		return
	}
	current.Store(&holder{p: p})
}

// Current returns the installed provider.
func Current() Provider {
	if h := current.Load(); h != nil {
		return h.p
	}
	return &mock
}

// Mask returns the current interrupt mask.
func Mask() uint32 {
	return Current().Mask()
}

// SetMask writes the interrupt mask.
func SetMask(mask uint32) {
	Current().SetMask(mask)
}

// DisableMask disables the interrupts in mask and returns the previous mask.
func DisableMask(mask uint32) uint32 {
	p := Current()
	prev := p.Mask()
	p.SetMask(prev &^ mask)
	return prev
}

// EnableMask enables the interrupts in mask and returns the previous mask.
func EnableMask(mask uint32) uint32 {
	p := Current()
	prev := p.Mask()
	p.SetMask(prev | mask)
	return prev
}

// Disable disables every interrupt and returns the previous mask.
func Disable() uint32 {
	return DisableMask(MaskAll)
}

// Enable enables every interrupt and returns the previous mask.
func Enable() uint32 {
	return EnableMask(MaskAll)
}
