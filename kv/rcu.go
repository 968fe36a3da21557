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

package kv

import (
	"sync"
	"sync/atomic"

	"github.com/coreval/coreval/epoch"
)

// Snapshot is an immutable, point-in-time view of a Store's contents.
// Readers obtained via Cell.Load never see a Snapshot mutate underneath
// them; writers publish a brand new Snapshot rather than editing one in
// place.
type Snapshot struct {
	store *Store
}

// SnapshotOf wraps an already-built Store as a Snapshot, for callers
// (package container's binary decoder) that construct a Store directly
// from decoded bytes rather than via Cell.PublishMutation.
func SnapshotOf(s *Store) *Snapshot { return &Snapshot{store: s} }

// Store returns the read-only Store backing this snapshot. Callers must
// not call any mutating method on it (Insert, Set, Remove, Clear) -
// Snapshot's whole contract rests on nobody doing that.
func (s *Snapshot) Store() *Store { return s.store }

// Cell is a read-copy-update cell holding the current Snapshot. Publish
// swaps in a new snapshot atomically; Load is wait-free for readers. Go's
// garbage collector stands in for the reference counting a non-GC'd RCU
// implementation needs: once the last epoch.Guard referencing an old
// snapshot exits and the epoch reclaimer retires it, the Snapshot simply
// becomes unreachable and the GC reclaims it. No manual refcounting is
// needed, but the reclaimer still has a role here: Publish and
// CompareAndUpdate retire the replaced snapshot through it.
type Cell struct {
	current atomic.Pointer[Snapshot]
	reclaim *epoch.Reclaimer
	mu      sync.Mutex // serializes Publish against itself; Load never blocks on it

	updates atomic.Uint64
}

// NewCell returns a Cell initialized with an empty Snapshot, using r for
// epoch-guarded reads. If r is nil, epoch.Default is used.
func NewCell(r *epoch.Reclaimer) *Cell {
	if r == nil {
		r = epoch.Default
	}
	c := &Cell{reclaim: r}
	c.current.Store(&Snapshot{store: NewStore()})
	return c
}

// Load returns the currently published snapshot. The returned Snapshot
// is safe to read from indefinitely; it will never change out from under
// the caller.
func (c *Cell) Load() *Snapshot {
	return c.current.Load()
}

// Publish atomically replaces the current snapshot with next and retires
// the old one through the epoch reclaimer, so any reader still mid-read
// against it (already past Load, not yet done) is unaffected.
func (c *Cell) Publish(next *Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.current.Swap(next)
	// The retired closure only needs to drop coreval's own reference; Go's
	// GC does the actual freeing once every other reference - including
	// ones still held by in-flight readers - goes away.
	c.reclaim.Retire(func() { _ = old })
	c.updates.Add(1)
}

// CompareAndUpdate atomically replaces the current snapshot with next,
// but only if the currently published snapshot is still expected. It
// reports whether the swap happened. On success the old snapshot is
// retired through the epoch reclaimer and the update counter advances,
// exactly as Publish does; on failure the cell is left untouched and the
// caller should reload and retry.
func (c *Cell) CompareAndUpdate(expected, next *Snapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.current.CompareAndSwap(expected, next) {
		return false
	}
	c.reclaim.Retire(func() { _ = expected })
	c.updates.Add(1)
	return true
}

// UpdateCount returns the number of snapshots successfully published
// through this cell so far, via either Publish or CompareAndUpdate.
func (c *Cell) UpdateCount() uint64 {
	return c.updates.Load()
}

// PublishMutation is a convenience that builds the next snapshot from a
// deep copy of the current one, hands it to fn for mutation, and
// publishes the result. fn must not retain the Store it's given beyond
// its own call.
func (c *Cell) PublishMutation(fn func(s *Store)) {
	next := c.Load().store.CloneContents()
	fn(next)
	c.Publish(&Snapshot{store: next})
}

// Read pins the calling goroutine's epoch, loads the current snapshot,
// calls fn with it, and releases the pin - the pattern every reader
// should use rather than calling Load directly, so concurrent Publish
// calls never retire a snapshot a reader is still inside of.
func (c *Cell) Read(fn func(s *Snapshot)) {
	guard := c.reclaim.Enter()
	defer guard.Exit()
	fn(c.Load())
}
