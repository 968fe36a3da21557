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

// Package coreval assembles the allocator, payload store, and optional
// background refresher from a single loaded config.Config, so a caller
// building a real deployment doesn't hand-thread allocator pooling mode,
// store concurrency mode, and decode depth limits through each package's
// constructor separately.
package coreval

import (
	"github.com/coreval/coreval/config"
	"github.com/coreval/coreval/kv"
	"github.com/coreval/coreval/pool"
	"github.com/coreval/coreval/value"
)

// System is one configured instance of the allocator, store, and
// (optionally) auto-refresher, all built from the same config.Config.
type System struct {
	Allocator     *pool.Allocator
	Store         *kv.Store
	MaxValueDepth int

	// Refresher is non-nil only when cfg.Store.AutoRefresh is set;
	// callers own starting and stopping it.
	Refresher *kv.AutoRefresher
}

// New builds a System from cfg. source may be nil; it is only consulted
// when cfg.Store.AutoRefresh is set, in which case a nil source is a
// configuration error a caller must have otherwise ruled out before
// calling New.
//
// Allocator.ThreadSafe = false selects pooling-disabled mode
// (pool.WithPoolingDisabled): every allocation takes the heap path
// instead of the shared block-pool free lists, which is the safer
// default for a caller profile that isn't coordinating pool access
// across goroutines. Store.Debug = true selects kv.WithExclusiveOwner:
// a debug/inspection session is assumed single-goroutine and skips the
// store's RWMutex entirely.
func New(cfg config.Config, source kv.Source) *System {
	var allocOpts []pool.AllocatorOption
	if !cfg.Allocator.ThreadSafe {
		allocOpts = append(allocOpts, pool.WithPoolingDisabled())
	}

	var storeOpts []kv.Option
	if cfg.Store.Debug {
		storeOpts = append(storeOpts, kv.WithExclusiveOwner())
	}

	sys := &System{
		Allocator:     pool.NewAllocator(allocOpts...),
		Store:         kv.NewStore(storeOpts...),
		MaxValueDepth: cfg.Decode.MaxDepth,
	}

	if cfg.Store.AutoRefresh {
		cell := kv.NewCell(nil)
		sys.Refresher = kv.NewAutoRefresher(cell, source, cfg.Store.RefreshInterval,
			kv.WithMaxValueDepth(cfg.Decode.MaxDepth))
	}

	return sys
}

// DecodeValue decodes data as a single value.Value, bounding recursion at
// the depth cfg.Decode.MaxDepth configured this System with rather than
// value.DefaultMaxDepth.
func (s *System) DecodeValue(data []byte) (value.Value, int, error) {
	return value.DecodeBinary(data, s.MaxValueDepth)
}

// Close releases the allocator's block pools and, if running, stops the
// auto-refresher.
func (s *System) Close() error {
	if s.Refresher != nil {
		if err := s.Refresher.Stop(); err != nil {
			return err
		}
	}
	return s.Allocator.Close()
}
