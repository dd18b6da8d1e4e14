//go:build baremetal

package cell

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aradilov/lockfree/interrupt"
)

// recordMasks installs a provider that logs every mask write.
func recordMasks(t *testing.T) (reg *uint32, writes *[]uint32) {
	t.Helper()
	reg, writes = new(uint32), new([]uint32)
	*reg = interrupt.MaskAll
	interrupt.Register(interrupt.ProviderFuncs{
		Get: func() uint32 { return *reg },
		Set: func(mask uint32) {
			*reg = mask
			*writes = append(*writes, mask)
		},
	})
	t.Cleanup(func() { interrupt.Register(nil) })
	return reg, writes
}

func TestCell_GuardedMutations(t *testing.T) {
	reg, writes := recordMasks(t)
	masked := []uint32{0, interrupt.MaskAll}

	var inHook []uint32
	c := New[int](WithRelease(func(int) { inHook = append(inHook, *reg) }))

	for _, tc := range []struct {
		name string
		op   func()
	}{
		{"set", func() { require.NoError(t, c.TrySet(1)) }},
		{"replace", func() { _, _, err := c.TryReplace(2); require.NoError(t, err) }},
		{"take", func() { _, _, err := c.TryTake(); require.NoError(t, err) }},
	} {
		*writes = nil
		tc.op()
		assert.Equal(t, masked, *writes, tc.name)
		assert.Equal(t, interrupt.MaskAll, *reg, tc.name)
	}

	require.NoError(t, c.Set(3))
	r, err := c.Get()
	require.NoError(t, err)
	r.Remove()
	*writes = nil
	r.Release()
	assert.Equal(t, masked, *writes)
	assert.Equal(t, []uint32{0}, inHook, "the last release erases with interrupts masked")
	assert.Equal(t, interrupt.MaskAll, *reg)
}
