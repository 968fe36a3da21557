// Copyright 2026 The coreval Authors
// This file is part of coreval.
//
// coreval is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// coreval is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with coreval. If not, see <http://www.gnu.org/licenses/>.

package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocatorSizeClasses(t *testing.T) {
	a := NewAllocator()
	defer a.Close()

	small := a.Allocate(8)
	medium := a.Allocate(200)
	big := a.Allocate(1 << 20)

	require.NotZero(t, small)
	require.NotZero(t, medium)
	require.NotZero(t, big)

	stats := a.Stats()
	require.Equal(t, uint64(1), stats.SmallHits)
	require.Equal(t, uint64(1), stats.MediumHits)
	require.Equal(t, uint64(1), stats.HeapAllocs)

	a.Deallocate(small, 8)
	a.Deallocate(medium, 200)
	a.Deallocate(big, 1<<20)
}

func TestAllocatorHeapFallbackRoundTrip(t *testing.T) {
	a := NewAllocator()
	defer a.Close()

	addr := a.Allocate(MediumClassMax + 1)
	a.Deallocate(addr, MediumClassMax+1)
	// A second allocation of the same size should succeed without reusing
	// bookkeeping for the freed entry.
	addr2 := a.Allocate(MediumClassMax + 1)
	a.Deallocate(addr2, MediumClassMax+1)
}

func TestAllocatorPoolingDisabledRecordsMisses(t *testing.T) {
	a := NewAllocator(WithPoolingDisabled())
	defer a.Close()

	small := a.Allocate(8)
	medium := a.Allocate(200)
	big := a.Allocate(1 << 20)

	stats := a.Stats()
	require.Equal(t, uint64(0), stats.SmallHits)
	require.Equal(t, uint64(1), stats.SmallMisses)
	require.Equal(t, uint64(0), stats.MediumHits)
	require.Equal(t, uint64(1), stats.MediumMisses)
	require.Equal(t, uint64(3), stats.HeapAllocs, "every request, including the size-classed ones, takes the heap path")

	smallPool, mediumPool := a.PoolStatistics()
	require.Equal(t, 0, smallPool.InUse, "no block pool allocation should have happened")
	require.Equal(t, 0, mediumPool.InUse)

	a.Deallocate(small, 8)
	a.Deallocate(medium, 200)
	a.Deallocate(big, 1<<20)
}

func TestAllocatorPoolStatistics(t *testing.T) {
	a := NewAllocator()
	defer a.Close()

	a.Allocate(4)
	small, medium := a.PoolStatistics()
	require.Equal(t, 1, small.InUse)
	require.Equal(t, 0, medium.InUse)
}
