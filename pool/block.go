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

// Package pool implements the L0 memory-reclamation substrate: a
// fixed-block free-list allocator (BlockPool) and, in sizeclass.go, the
// per-goroutine size-classed allocator built on top of it.
package pool

import (
	"sync"
	"unsafe"

	"github.com/RoaringBitmap/roaring/v2"
	mmap "github.com/edsrzf/mmap-go"
	"github.com/shirou/gopsutil/v4/mem"
	"go.uber.org/zap"

	cvmath "github.com/coreval/coreval/common/math"
	cverrors "github.com/coreval/coreval/errors"
)

const pointerSize = int(unsafe.Sizeof(uintptr(0)))

// freeNode is the intrusive free-list node embedded in the first
// pointer-width bytes of every free block.
type freeNode struct {
	next *freeNode
}

// chunkRegion is one contiguous, page-aligned mmap'd region backing
// BlocksPerChunk blocks. Regions are never unmapped until the pool itself
// is destroyed.
type chunkRegion struct {
	region mmap.MMap
	base   uintptr
	size   int
}

// Statistics is a consistent snapshot of a BlockPool's bookkeeping.
type Statistics struct {
	Chunks             int
	InUse              int
	Capacity           int
	Free               int
	HostAvailableBytes uint64 // best-effort, via gopsutil; 0 if unavailable
}

// BlockPool is an O(1) allocate/free arena for a single block size. Block
// size is clamped up to a pointer width so a free slot can carry the
// intrusive next-pointer, chunks grow monotonically, and mutation is
// serialized by a single mutex (there is no read-mostly path worth an
// RWMutex here).
type BlockPool struct {
	mu sync.Mutex

	blockSize      int
	blocksPerChunk int
	debug          bool
	logger         *zap.Logger

	freeHead *freeNode
	chunks   []*chunkRegion
	used     *roaring.Bitmap // debug-only: globally-numbered in-use block indices

	inUse    int
	capacity int
}

// Option configures a BlockPool at construction time.
type Option func(*BlockPool)

// WithDebug enables the owned-chunk validation path on Deallocate, backed
// by a roaring bitmap of in-use block indices. Debug mode trades allocate
// throughput for a caught-early panic on foreign-address frees.
func WithDebug(enabled bool) Option {
	return func(p *BlockPool) { p.debug = enabled }
}

// WithLogger attaches a logger used only for chunk-growth events. The
// default is a no-op logger; the hot allocate/deallocate path never logs.
func WithLogger(l *zap.Logger) Option {
	return func(p *BlockPool) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewBlockPool constructs a pool for blocks of blockSize bytes, growing by
// blocksPerChunk blocks at a time. blockSize is clamped up to the native
// pointer width.
func NewBlockPool(blockSize, blocksPerChunk int, opts ...Option) *BlockPool {
	if blockSize < pointerSize {
		blockSize = pointerSize
	}
	if blocksPerChunk <= 0 {
		blocksPerChunk = 1024
	}
	p := &BlockPool{
		blockSize:      blockSize,
		blocksPerChunk: blocksPerChunk,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.debug {
		p.used = roaring.New()
	}
	return p
}

// Allocate returns the address of a free block, growing the pool by one
// chunk first if the free list is empty.
func (p *BlockPool) Allocate() uintptr {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.freeHead == nil {
		p.growLocked()
	}
	node := p.freeHead
	p.freeHead = node.next
	addr := uintptr(unsafe.Pointer(node))
	p.inUse++
	if p.debug {
		p.used.Add(p.blockIndexLocked(addr))
	}
	return addr
}

// Deallocate returns addr to the head of the free list. In debug mode the
// address is validated against the set of owned chunks first; outside
// debug mode the caller is trusted.
func (p *BlockPool) Deallocate(addr uintptr) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debug {
		idx, ok := p.ownedBlockIndexLocked(addr)
		if !ok {
			cverrors.Panic("pool: deallocate of address not owned by any chunk of this pool")
		}
		if !p.used.Contains(idx) {
			cverrors.Panic("pool: double free detected")
		}
		p.used.Remove(idx)
	}
	node := (*freeNode)(unsafe.Pointer(addr))
	node.next = p.freeHead
	p.freeHead = node
	p.inUse--
}

// Statistics returns a consistent snapshot of pool bookkeeping
// ({chunks, in_use, capacity, free}), enriched with a best-effort
// host-memory reading.
func (p *BlockPool) Statistics() Statistics {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := Statistics{
		Chunks:   len(p.chunks),
		InUse:    p.inUse,
		Capacity: p.capacity,
		Free:     p.capacity - p.inUse,
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		stats.HostAvailableBytes = vm.Available
	}
	return stats
}

// Close unmaps every chunk this pool owns. It must not be called while any
// block from the pool is still referenced by a caller.
func (p *BlockPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, c := range p.chunks {
		if err := c.region.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.chunks = nil
	p.freeHead = nil
	p.inUse = 0
	p.capacity = 0
	return firstErr
}

func (p *BlockPool) growLocked() {
	size := cvmath.AlignUp(p.blockSize*p.blocksPerChunk, hostPageSize())
	region, err := mmap.MapRegion(nil, size, mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		cverrors.Panic("pool: chunk allocation failed: " + err.Error())
	}
	c := &chunkRegion{
		region: region,
		base:   uintptr(unsafe.Pointer(&region[0])),
		size:   size,
	}
	p.chunks = append(p.chunks, c)
	p.capacity += p.blocksPerChunk

	// Thread the chunk's cells onto the free list in LIFO order: walk the
	// chunk back to front so the first cell ends up at the list head.
	for i := p.blocksPerChunk - 1; i >= 0; i-- {
		cellAddr := c.base + uintptr(i*p.blockSize)
		node := (*freeNode)(unsafe.Pointer(cellAddr))
		node.next = p.freeHead
		p.freeHead = node
	}
	p.logger.Debug("pool: grew by one chunk",
		zap.Int("block_size", p.blockSize),
		zap.Int("blocks_per_chunk", p.blocksPerChunk),
		zap.Int("chunks", len(p.chunks)),
	)
}

// blockIndexLocked computes a globally unique block index for addr,
// assuming addr is known to be owned. Used only under debug mode.
func (p *BlockPool) blockIndexLocked(addr uintptr) uint32 {
	idx, _ := p.ownedBlockIndexLocked(addr)
	return idx
}

func (p *BlockPool) ownedBlockIndexLocked(addr uintptr) (uint32, bool) {
	base := uint32(0)
	for _, c := range p.chunks {
		if addr >= c.base && addr < c.base+uintptr(c.size) {
			offset := addr - c.base
			if int(offset)%p.blockSize != 0 {
				return 0, false
			}
			return base + uint32(int(offset)/p.blockSize), true
		}
		base += uint32(p.blocksPerChunk)
	}
	return 0, false
}
