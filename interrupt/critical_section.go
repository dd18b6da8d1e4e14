package interrupt

// CriticalSection records the mask that was in force when the section was
// entered. The zero value is an inert section whose Exit does nothing.
type CriticalSection struct {
	p      Provider
	mask   uint32
	active bool
}

// Enter disables every interrupt on the current core and returns the section
// that restores the previous mask.
//
//	cs := interrupt.Enter()
//	defer cs.Exit()
func Enter() CriticalSection {
	p := Current()
	prev := p.Mask()
	p.SetMask(prev &^ MaskAll)
	return CriticalSection{p: p, mask: prev, active: true}
}

// Exit restores the mask saved by Enter. It is safe to call more than once.
func (cs *CriticalSection) Exit() {
	if !cs.active {
		return
	}
	cs.active = false
	cs.p.SetMask(cs.mask)
}

// Active reports whether the section still holds interrupts masked.
func (cs *CriticalSection) Active() bool {
	return cs.active
}

// Free runs fn with interrupts disabled. The previous mask is restored even
// if fn panics.
func Free[R any](fn func() R) R {
	cs := Enter()
	defer cs.Exit()
	return fn()
}
