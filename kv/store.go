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

// Package kv implements the concurrent, ordered, multi-value keyed store
// that sits between the raw value codecs (package value) and the message
// container facade (package container).
package kv

import (
	"sync"

	"github.com/tidwall/btree"

	"github.com/coreval/coreval/value"
)

// entry is one stored (name, value) pair. Entries are append-only until
// Clear, except for the tombstone bit Remove and Set set and the
// in-place value replacement Set makes; this keeps every index in the
// name index valid until Clear discards both.
type entry struct {
	name      string
	val       value.Value
	tombstone bool
}

// Store is a concurrent, insertion-ordered, multi-value map from name to
// value.Value. Multiple values may share a name; Get(name, 0) returns the
// first live one, GetAll returns every live one in insertion order.
//
// Locking is a single-writer/many-reader RWMutex by default. An optional
// exclusive-owner mode, chosen once at construction via
// WithExclusiveOwner, disables the mutex entirely for callers that
// already guarantee single-threaded access - bulk construction or
// decoding a Store before it is ever published to another reader.
type Store struct {
	mu sync.RWMutex

	entries []entry
	index   *btree.Map[string, []int] // name -> live indices into entries, insertion order

	exclusiveOwner bool
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithExclusiveOwner marks the store as owned by a single goroutine for
// its entire lifetime: every operation bypasses the RWMutex. Passing a
// Store built with this option to more than one goroutine is a data
// race the caller is responsible for avoiding.
func WithExclusiveOwner() Option {
	return func(s *Store) { s.exclusiveOwner = true }
}

// NewStore returns an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{index: &btree.Map[string, []int]{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) rlock() func() {
	if s.exclusiveOwner {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *Store) lock() func() {
	if s.exclusiveOwner {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// Insert appends v as a new entry, keyed by v.Name(), in insertion
// order, alongside any existing values already stored under that name.
func (s *Store) Insert(v value.Value) {
	defer s.lock()()
	s.insertLocked(v)
}

func (s *Store) insertLocked(v value.Value) {
	idx := len(s.entries)
	s.entries = append(s.entries, entry{name: v.Name(), val: v})
	positions, _ := s.index.Get(v.Name())
	positions = append(positions, idx)
	s.index.Set(v.Name(), positions)
}

// Set replaces every live value stored under v.Name() with v alone,
// preserving the position of the first live occurrence (or appending, if
// none existed). Later occurrences, if any, are removed.
func (s *Store) Set(v value.Value) {
	defer s.lock()()
	name := v.Name()
	positions, ok := s.index.Get(name)
	first := -1
	for i, idx := range positions {
		if s.entries[idx].tombstone {
			continue
		}
		if first == -1 {
			first = idx
		} else {
			s.entries[idx].tombstone = true
		}
		_ = i
	}
	if !ok || first == -1 {
		s.insertLocked(v)
		return
	}
	s.entries[first].val = v
}

// Get returns the index'th live value stored under name (0-based, in
// insertion order) and whether one exists at that index.
func (s *Store) Get(name string, index int) (value.Value, bool) {
	defer s.rlock()()
	if index < 0 {
		return value.Value{}, false
	}
	positions, ok := s.index.Get(name)
	if !ok {
		return value.Value{}, false
	}
	seen := 0
	for _, idx := range positions {
		if s.entries[idx].tombstone {
			continue
		}
		if seen == index {
			return s.entries[idx].val, true
		}
		seen++
	}
	return value.Value{}, false
}

// GetAll returns every live value stored under name, in insertion order.
func (s *Store) GetAll(name string) []value.Value {
	defer s.rlock()()
	positions, ok := s.index.Get(name)
	if !ok {
		return nil
	}
	out := make([]value.Value, 0, len(positions))
	for _, idx := range positions {
		if !s.entries[idx].tombstone {
			out = append(out, s.entries[idx].val)
		}
	}
	return out
}

// Contains reports whether name has at least one live value.
func (s *Store) Contains(name string) bool {
	defer s.rlock()()
	positions, ok := s.index.Get(name)
	if !ok {
		return false
	}
	for _, idx := range positions {
		if !s.entries[idx].tombstone {
			return true
		}
	}
	return false
}

// Remove tombstones entries stored under name. If all is false, only the
// first live occurrence is removed; if true, every live occurrence is.
// It reports how many entries were removed.
func (s *Store) Remove(name string, all bool) uint32 {
	defer s.lock()()
	positions, ok := s.index.Get(name)
	if !ok {
		return 0
	}
	var n uint32
	for _, idx := range positions {
		if s.entries[idx].tombstone {
			continue
		}
		s.entries[idx].tombstone = true
		n++
		if !all {
			break
		}
	}
	return n
}

// Clear removes every entry from the store.
func (s *Store) Clear() {
	defer s.lock()()
	s.entries = nil
	s.index = &btree.Map[string, []int]{}
}

// Names returns every distinct name with at least one live value, in
// ascending order (the order the underlying btree index maintains).
func (s *Store) Names() []string {
	defer s.rlock()()
	names := make([]string, 0, s.index.Len())
	s.index.Scan(func(name string, positions []int) bool {
		for _, idx := range positions {
			if !s.entries[idx].tombstone {
				names = append(names, name)
				break
			}
		}
		return true
	})
	return names
}

// Len returns the number of live entries across all names.
func (s *Store) Len() int {
	defer s.rlock()()
	n := 0
	for _, e := range s.entries {
		if !e.tombstone {
			n++
		}
	}
	return n
}

// IsEmpty reports whether the store holds no live entries.
func (s *Store) IsEmpty() bool { return s.Len() == 0 }

// CloneContents returns an independent Store holding a deep copy of every
// live entry, preserving insertion order. The RCU snapshot cell (rcu.go)
// uses this to build the next snapshot from the current one without
// holding the original store's lock across the mutation.
func (s *Store) CloneContents() *Store {
	defer s.rlock()()
	out := NewStore()
	for _, e := range s.entries {
		if e.tombstone {
			continue
		}
		out.insertLocked(e.val.Clone())
	}
	return out
}

// ForEach calls fn for every live entry in insertion order. Iteration
// stops early if fn returns false.
func (s *Store) ForEach(fn func(name string, v value.Value) bool) {
	defer s.rlock()()
	for _, e := range s.entries {
		if e.tombstone {
			continue
		}
		if !fn(e.name, e.val) {
			return
		}
	}
}
