package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryCounting(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.RegisterFunction("selftest", "cov_counted"))

	e, ok := tr.FindEntry("selftest", "cov_counted")
	require.True(t, ok)
	assert.Equal(t, 0, e.Count)

	// Calls before enable are not counted.
	tr.RecordEntry("selftest", "cov_counted")
	assert.Equal(t, 0, e.Count)

	tr.Enable("selftest", 0)
	old := e.Count
	tr.RecordEntry("selftest", "cov_counted")
	assert.Equal(t, old+1, e.Count)

	tr.Disable("selftest")
	tr.RecordEntry("selftest", "cov_counted")
	assert.Equal(t, old+1, e.Count, "disabled scope stops counting")
}

func TestFindEntryUnknown(t *testing.T) {
	tr := NewTracker()
	_, ok := tr.FindEntry("selftest", "missing")
	assert.False(t, ok)
}

func TestAllocationTracking(t *testing.T) {
	tr := NewTracker()
	tr.Enable("selftest", OptMem)

	p1 := tr.Alloc("selftest", 8)
	p2 := tr.Alloc("selftest", 16)
	p3 := tr.Alloc("selftest", 32)
	p4 := tr.Alloc("selftest", 32)
	assert.Equal(t, 4, tr.LiveAllocations())

	found := map[uint64]bool{}
	tr.ForEachAllocation(func(a Allocation) bool {
		found[a.Address] = true
		return true
	})
	assert.True(t, found[p1.Address])
	assert.True(t, found[p2.Address])
	assert.True(t, found[p3.Address])
	assert.True(t, found[p4.Address])

	tr.Free(p1)
	tr.Free(p4)

	found = map[uint64]bool{}
	tr.ForEachAllocation(func(a Allocation) bool {
		found[a.Address] = true
		return true
	})
	assert.False(t, found[p1.Address])
	assert.True(t, found[p2.Address], "unfreed allocation stays live")
	assert.True(t, found[p3.Address])
	assert.False(t, found[p4.Address])

	tr.Free(p2)
	tr.Free(p3)
	assert.Equal(t, 0, tr.LiveAllocations())
}

func TestAllocOutsideScopeUntracked(t *testing.T) {
	tr := NewTracker()
	tr.Enable("selftest", 0) // no OptMem

	a := tr.Alloc("selftest", 8)
	assert.Equal(t, 0, tr.LiveAllocations())
	tr.Free(a) // freeing an untracked allocation is harmless

	b := tr.Alloc("other", 8) // scope never enabled
	assert.Equal(t, 0, tr.LiveAllocations())
	tr.Free(b)
}

func TestAllocationOrdering(t *testing.T) {
	tr := NewTracker()
	tr.Enable("s", OptMem)

	for i := 0; i < 5; i++ {
		tr.Alloc("s", 8)
	}

	var prev Allocation
	tr.ForEachAllocation(func(a Allocation) bool {
		assert.Greater(t, a.Address, prev.Address, "traversal ascends by address")
		prev = a
		return true
	})
}
