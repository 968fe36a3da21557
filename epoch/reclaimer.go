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

// Package epoch implements the three-epoch reclamation scheme the store
// (package kv) uses to free retired snapshot generations only once no
// reader can still observe them.
package epoch

import (
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
	"go.uber.org/zap"

	cverrors "github.com/coreval/coreval/errors"
)

const numEpochs = 3

// Deleter is invoked, exactly once, once a retired object is provably
// unreachable by any pinned reader.
type Deleter func()

type retired struct {
	del Deleter
}

// Guard marks one goroutine's participation in the current epoch. Every
// read that touches epoch-protected state must be bracketed by Enter and
// Exit (or, more idiomatically, Reclaimer.Enter followed by a deferred
// Guard.Exit).
type Guard struct {
	r   *Reclaimer
	gid int64
}

// Exit releases the calling goroutine's pin on the epoch it entered.
func (g *Guard) Exit() {
	g.r.pinned.Delete(g.gid)
}

// Reclaimer tracks a global epoch counter, per-goroutine pins, and three
// retire lists indexed by epoch mod 3. Advancing the epoch is safe only
// once every goroutine with a pin older than the current epoch has exited;
// TryCollect performs that check and frees whatever it can.
type Reclaimer struct {
	logger *zap.Logger

	epoch atomic.Uint64

	pinned sync.Map // goroutine id (int64) -> pinned epoch (uint64)

	mu    sync.Mutex
	lists [numEpochs][]retired
}

// New constructs a Reclaimer starting at epoch 0.
func New(opts ...Option) *Reclaimer {
	r := &Reclaimer{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Option configures a Reclaimer at construction time.
type Option func(*Reclaimer)

// WithLogger attaches a logger used only for collection-cycle events.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reclaimer) {
		if l != nil {
			r.logger = l
		}
	}
}

// Default is the package-level reclaimer used by callers that don't need
// isolated epoch domains (most of the kv package).
var Default = New()

// Enter pins the calling goroutine to the current epoch and returns a
// Guard that must be released with Exit once the critical section ends.
func (r *Reclaimer) Enter() *Guard {
	gid := goid.Get()
	e := r.epoch.Load()
	r.pinned.Store(gid, e)
	return &Guard{r: r, gid: gid}
}

// Retire schedules del to run once every goroutine currently pinned has
// exited the epoch active at the time of the call. del must not block and
// must not itself call into the reclaimer.
func (r *Reclaimer) Retire(del Deleter) {
	e := r.epoch.Load()
	r.mu.Lock()
	r.lists[e%numEpochs] = append(r.lists[e%numEpochs], retired{del: del})
	r.mu.Unlock()
}

// TryCollect attempts to advance the global epoch and reclaim the retire
// list that is now two epochs stale. It is non-blocking: if any goroutine
// is still pinned to an epoch older than the current one, TryCollect
// advances nothing and returns false. A pin at the current epoch does not
// block it.
func (r *Reclaimer) TryCollect() bool {
	current := r.epoch.Load()

	stale := false
	r.pinned.Range(func(_, v any) bool {
		if v.(uint64) < current {
			stale = true
			return false
		}
		return true
	})
	if stale {
		return false
	}

	newEpoch := current + 1
	if !r.epoch.CompareAndSwap(current, newEpoch) {
		return false
	}

	// The list two epochs behind the one we just entered is now safe to
	// free: no reader can still be pinned to it. A reader pinned exactly
	// at `current` is caught up and harmless to advance past - it entered
	// after every retirement made in an earlier epoch already completed.
	// It is a reader pinned *below* current, one that fell behind a prior
	// advance and never re-entered, that must block collection; that's
	// what the check above guards against. (newEpoch-2) mod 3, computed
	// without risking a negative operand, is (newEpoch+1) mod 3.
	staleIdx := (newEpoch + 1) % numEpochs
	r.mu.Lock()
	toFree := r.lists[staleIdx]
	r.lists[staleIdx] = nil
	r.mu.Unlock()

	for _, item := range toFree {
		item.del()
	}
	r.logger.Debug("epoch: collected", zap.Uint64("new_epoch", newEpoch), zap.Int("freed", len(toFree)))
	return true
}

// ForceCollect drains every retire list unconditionally, ignoring whether
// any goroutine is still pinned. It exists only for orderly shutdown:
// calling it while readers are still active is undefined and panics via
// errors.Panic in anything but a fresh or fully-drained Reclaimer.
func (r *Reclaimer) ForceCollect() {
	active := false
	r.pinned.Range(func(_, _ any) bool {
		active = true
		return false
	})
	if active {
		cverrors.Panic("epoch: ForceCollect called while goroutines are still pinned")
	}

	r.mu.Lock()
	all := make([]retired, 0)
	for i := range r.lists {
		all = append(all, r.lists[i]...)
		r.lists[i] = nil
	}
	r.mu.Unlock()

	for _, item := range all {
		item.del()
	}
	r.logger.Debug("epoch: force collected", zap.Int("freed", len(all)))
}
