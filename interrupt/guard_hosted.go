//go:build !baremetal

package interrupt

// Enabled reports whether Guard masks interrupts in this build.
const Enabled = false

// Guard returns the section used around a claim→publish window. Hosted
// builds have no same-core reentrancy to protect against, so the section is
// inert.
func Guard() CriticalSection {
	return CriticalSection{}
}
