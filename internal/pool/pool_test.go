package pool_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/finnstutzenstein/adcpd/internal/pool"
)

func TestAllocateFreeBasics(t *testing.T) {
	p := pool.New[int](4)
	require.Equal(t, 4, p.Capacity())
	require.Equal(t, 0, p.Used())

	idx, ok := p.Allocate()
	require.True(t, ok)
	require.Equal(t, 1, p.Used())
	require.Equal(t, 1, p.HighWaterMark())

	require.NoError(t, p.Free(idx))
	require.Equal(t, 0, p.Used())
	require.Equal(t, 1, p.HighWaterMark(), "high-water mark never decreases")
}

func TestAllocateFullReturnsNotOK(t *testing.T) {
	p := pool.New[int](2)
	_, ok1 := p.Allocate()
	_, ok2 := p.Allocate()
	_, ok3 := p.Allocate()
	require.True(t, ok1)
	require.True(t, ok2)
	require.False(t, ok3)
}

func TestFreeUnallocatedIsError(t *testing.T) {
	p := pool.New[int](2)
	idx, _ := p.Allocate()
	require.NoError(t, p.Free(idx))
	require.ErrorIs(t, p.Free(idx), pool.ErrNotAllocated)
	require.ErrorIs(t, p.Free(99), pool.ErrOutOfRange)
}

func TestEntriesMatchesUsed(t *testing.T) {
	p := pool.New[int](8)
	for i := 0; i < 5; i++ {
		idx, ok := p.Allocate()
		require.True(t, ok)
		*p.Get(idx) = i * 10
	}
	seen := 0
	p.Entries(func(idx int, v *int) { seen++ })
	require.Equal(t, 5, seen)
	require.Equal(t, p.Used(), seen)
}

// TestPoolConservation is the property from spec §8: for any sequence of
// allocate/free respecting returned handles, used+free==capacity always,
// and used equals the number of live entries.
func TestPoolConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		const capacity = 6
		p := pool.New[int](capacity)
		var live []int

		steps := rapid.IntRange(1, 200).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			if rapid.Boolean().Draw(t, "doAllocate") || len(live) == 0 {
				before := p.Used()
				idx, ok := p.Allocate()
				if before < capacity {
					require.True(t, ok)
					live = append(live, idx)
				} else {
					require.False(t, ok)
				}
			} else {
				pick := rapid.IntRange(0, len(live)-1).Draw(t, "pick")
				idx := live[pick]
				require.NoError(t, p.Free(idx))
				live = append(live[:pick], live[pick+1:]...)
			}

			require.Equal(t, capacity, p.Used()+p.Available())
			entries := 0
			p.Entries(func(int, *int) { entries++ })
			require.Equal(t, p.Used(), entries)
			require.Equal(t, len(live), p.Used())
		}
	})
}
