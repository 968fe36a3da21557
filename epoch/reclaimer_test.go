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

package epoch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTryCollectFreesOnceUnpinned(t *testing.T) {
	r := New()
	freed := false

	guard := r.Enter()
	r.Retire(func() { freed = true })

	// A reader pinned exactly at the current epoch is caught up, not
	// stale, so it must not block the epoch from advancing.
	require.True(t, r.TryCollect(), "a reader pinned at the current epoch must not block advancing")
	require.False(t, freed, "the retired item is not yet two epochs stale")

	// The guard never re-entered, so it's now pinned one epoch behind
	// current; that genuinely blocks further collection.
	require.False(t, r.TryCollect(), "a reader that fell behind a prior advance must block collection")
	guard.Exit()

	require.True(t, r.TryCollect())
	require.True(t, freed)
}

// TestTryCollectAdvancesPastReaderPinnedAtCurrentEpoch exercises the
// realistic steady-state case: a reader's critical section is open and
// pinned at whatever epoch was current when it entered. That must never
// permanently stall collection, or the reclaimer stops working under any
// continuous load.
func TestTryCollectAdvancesPastReaderPinnedAtCurrentEpoch(t *testing.T) {
	r := New()
	guard := r.Enter()
	defer guard.Exit()

	require.True(t, r.TryCollect(), "a reader caught up to the current epoch must not block collection")
}

func TestRetireAcrossMultipleEpochs(t *testing.T) {
	r := New()
	var order []int

	for i := 0; i < 3; i++ {
		i := i
		g := r.Enter()
		r.Retire(func() { order = append(order, i) })
		g.Exit()
		r.TryCollect()
	}
	for i := 0; i < 3; i++ {
		r.TryCollect()
	}
	require.ElementsMatch(t, []int{0, 1, 2}, order)
}

func TestForceCollectPanicsWhilePinned(t *testing.T) {
	r := New()
	guard := r.Enter()
	defer guard.Exit()
	require.Panics(t, func() { r.ForceCollect() })
}

func TestForceCollectDrainsEverything(t *testing.T) {
	r := New()
	n := 0
	r.Retire(func() { n++ })
	r.Retire(func() { n++ })
	r.ForceCollect()
	require.Equal(t, 2, n)
}
