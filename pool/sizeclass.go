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
	"sync"
	"unsafe"

	"github.com/google/btree"
	"github.com/pbnjay/memory"
	"github.com/petermattis/goid"
)

// unsafeAddr returns the address of buf's backing array. buf must be
// non-empty; callers only ever pass freshly-allocated heap-fallback
// slices, never a zero-length one.
func unsafeAddr(buf []byte) uintptr {
	return uintptr(unsafe.Pointer(&buf[0]))
}

// Size classes: small allocations (<=64B) and medium allocations
// (<=256B) come from dedicated block pools; anything larger falls back
// to the platform heap. These mirror the pool_small_threshold and
// pool_medium_threshold configuration defaults (package config).
const (
	SmallClassMax  = 64
	MediumClassMax = 256

	defaultBlocksPerChunk = 1024
)

// heapAlloc records one heap-fallback allocation. Holding the live slice
// here (rather than just its address) is what keeps the Go garbage
// collector from reclaiming it: a bare uintptr is not a reference the GC
// can see, so this btree entry is the allocation's only anchor between
// Allocate and Deallocate.
type heapAlloc struct {
	addr uintptr
	buf  []byte
}

func heapAllocLess(a, b heapAlloc) bool { return a.addr < b.addr }

// Context is the per-goroutine allocation context, analogous to the
// thread-local allocator state of the reference design. Go has no
// equivalent of a TLS destructor, so contexts are retained in the parent
// Allocator's registry for the lifetime of the process; this is a
// deliberate, documented tradeoff rather than a leak introduced by
// accident.
type Context struct {
	goroutineID int64

	smallHits, smallMisses uint64
	mediumHits, mediumMisses uint64
	heapAllocs uint64

	mu   sync.Mutex
	heap *btree.BTreeG[heapAlloc]
}

// Stats summarizes one Context's allocation activity.
type Stats struct {
	GoroutineID   int64
	SmallHits     uint64
	SmallMisses   uint64
	MediumHits    uint64
	MediumMisses  uint64
	HeapAllocs    uint64
}

// Allocator is the size-classed front end that hands out backing memory
// without going through the Go heap for small, high-churn allocations.
type Allocator struct {
	small  *BlockPool
	medium *BlockPool

	// disabled puts the allocator in pooling-disabled mode: every
	// request falls through to the platform heap and is recorded as a
	// miss against the size class it would otherwise have used.
	disabled bool

	registryMu sync.Mutex
	registry   map[int64]*Context
}

// AllocatorOption configures an Allocator at construction time.
type AllocatorOption func(*allocatorSettings)

type allocatorSettings struct {
	disabled      bool
	blockPoolOpts []Option
}

// WithPoolingDisabled puts the allocator in pooling-disabled mode: every
// allocation, regardless of size, is served from the platform heap and
// counted as a miss against the small or medium size class it would
// otherwise have used. Thread_safe=false in the loaded configuration
// selects this mode, trading pool throughput for a flat, GC-tracked
// allocation path.
func WithPoolingDisabled() AllocatorOption {
	return func(s *allocatorSettings) { s.disabled = true }
}

// WithBlockPoolOptions forwards opts (WithDebug, WithLogger) to both the
// small and medium block pools backing this allocator.
func WithBlockPoolOptions(opts ...Option) AllocatorOption {
	return func(s *allocatorSettings) { s.blockPoolOpts = opts }
}

// NewAllocator constructs an Allocator. Chunk sizing for the small and
// medium pools defaults to a fraction of host memory reported by
// github.com/pbnjay/memory, clamped to a sane minimum, so a constrained
// container doesn't eagerly reserve chunks sized for a developer laptop.
func NewAllocator(opts ...AllocatorOption) *Allocator {
	var s allocatorSettings
	for _, opt := range opts {
		opt(&s)
	}
	blocksPerChunk := blocksPerChunkForHost()
	return &Allocator{
		small:    NewBlockPool(SmallClassMax, blocksPerChunk, s.blockPoolOpts...),
		medium:   NewBlockPool(MediumClassMax, blocksPerChunk, s.blockPoolOpts...),
		disabled: s.disabled,
		registry: make(map[int64]*Context),
	}
}

func blocksPerChunkForHost() int {
	total := memory.TotalMemory()
	if total == 0 {
		return defaultBlocksPerChunk
	}
	// Reserve chunks sized around 1/16384th of total host memory, floored
	// at the default so small hosts still get a usable batch size.
	n := int(total / (16384 * MediumClassMax))
	if n < defaultBlocksPerChunk {
		return defaultBlocksPerChunk
	}
	return n
}

// contextFor returns (creating if necessary) the Context for the calling
// goroutine.
func (a *Allocator) contextFor() *Context {
	id := goid.Get()
	a.registryMu.Lock()
	defer a.registryMu.Unlock()
	ctx, ok := a.registry[id]
	if !ok {
		ctx = &Context{
			goroutineID: id,
			heap:        btree.NewG[heapAlloc](32, heapAllocLess),
		}
		a.registry[id] = ctx
	}
	return ctx
}

// Allocate returns n bytes of memory. Allocations up to MediumClassMax
// come from the small/medium block pools; larger requests fall back to a
// heap-allocated slice pinned in the calling goroutine's Context until
// Deallocate is called. In pooling-disabled mode (WithPoolingDisabled)
// every request takes the heap path instead, and the size class it would
// have used is charged a miss rather than a hit.
func (a *Allocator) Allocate(n int) uintptr {
	ctx := a.contextFor()
	switch {
	case n <= SmallClassMax:
		if a.disabled {
			ctx.smallMisses++
			return a.heapAllocate(ctx, n)
		}
		ctx.smallHits++
		return a.small.Allocate()
	case n <= MediumClassMax:
		if a.disabled {
			ctx.mediumMisses++
			return a.heapAllocate(ctx, n)
		}
		ctx.mediumHits++
		return a.medium.Allocate()
	default:
		return a.heapAllocate(ctx, n)
	}
}

// heapAllocate services one request directly from the Go heap, tracking
// the live slice in ctx so the garbage collector can't reclaim it out
// from under a bare uintptr before Deallocate runs.
func (a *Allocator) heapAllocate(ctx *Context, n int) uintptr {
	ctx.heapAllocs++
	buf := make([]byte, n)
	addr := unsafeAddr(buf)
	ctx.mu.Lock()
	ctx.heap.ReplaceOrInsert(heapAlloc{addr: addr, buf: buf})
	ctx.mu.Unlock()
	return addr
}

// Deallocate releases an allocation of size n previously returned by
// Allocate, on behalf of the calling goroutine's Context. The size
// comparison must mirror Allocate's routing, including the disabled-mode
// heap fallback, or a pool-backed allocation would be freed through the
// wrong path.
func (a *Allocator) Deallocate(addr uintptr, n int) {
	ctx := a.contextFor()
	switch {
	case n <= SmallClassMax && !a.disabled:
		a.small.Deallocate(addr)
	case n <= MediumClassMax && !a.disabled:
		a.medium.Deallocate(addr)
	default:
		ctx.mu.Lock()
		ctx.heap.Delete(heapAlloc{addr: addr})
		ctx.mu.Unlock()
	}
}

// Stats returns allocation counters for the calling goroutine's Context.
func (a *Allocator) Stats() Stats {
	ctx := a.contextFor()
	return Stats{
		GoroutineID:  ctx.goroutineID,
		SmallHits:    ctx.smallHits,
		SmallMisses:  ctx.smallMisses,
		MediumHits:   ctx.mediumHits,
		MediumMisses: ctx.mediumMisses,
		HeapAllocs:   ctx.heapAllocs,
	}
}

// PoolStatistics exposes the underlying small/medium block pool
// statistics, for diagnostics callers that want chunk/free/in-use counts
// in addition to per-goroutine hit counters.
func (a *Allocator) PoolStatistics() (small, medium Statistics) {
	return a.small.Statistics(), a.medium.Statistics()
}

// Close releases every chunk held by the allocator's block pools. Heap
// fallback allocations still tracked in per-goroutine contexts are left
// for the Go garbage collector once their Context is dropped.
func (a *Allocator) Close() error {
	errSmall := a.small.Close()
	errMedium := a.medium.Close()
	if errSmall != nil {
		return errSmall
	}
	return errMedium
}
