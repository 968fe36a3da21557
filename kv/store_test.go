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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreval/coreval/value"
)

func TestStoreInsertGet(t *testing.T) {
	s := NewStore()
	s.Insert(value.String("name", "alice"))

	got, ok := s.Get("name", 0)
	require.True(t, ok)
	gotStr, _ := got.AsString()
	require.Equal(t, "alice", gotStr)

	_, ok = s.Get("missing", 0)
	require.False(t, ok)
}

func TestStoreMultiValuePreservesOrderAndIndex(t *testing.T) {
	s := NewStore()
	s.Insert(value.String("tag", "a"))
	s.Insert(value.String("tag", "b"))
	s.Insert(value.String("tag", "c"))

	all := s.GetAll("tag")
	require.Len(t, all, 3)
	for i, want := range []string{"a", "b", "c"} {
		got, _ := all[i].AsString()
		require.Equal(t, want, got)

		indexed, ok := s.Get("tag", i)
		require.True(t, ok)
		indexedStr, _ := indexed.AsString()
		require.Equal(t, want, indexedStr)
	}

	_, ok := s.Get("tag", 3)
	require.False(t, ok)
}

func TestStoreSetReplacesAllKeepingFirstPosition(t *testing.T) {
	s := NewStore()
	s.Insert(value.String("tag", "a"))
	s.Insert(value.String("tag", "b"))
	s.Insert(value.String("other", "x"))

	s.Set(value.String("tag", "only"))

	all := s.GetAll("tag")
	require.Len(t, all, 1)
	got, _ := all[0].AsString()
	require.Equal(t, "only", got)
	require.Equal(t, 2, s.Len())
}

func TestStoreSetInsertsWhenNameAbsent(t *testing.T) {
	s := NewStore()
	s.Set(value.Int32("fresh", 1))
	got, ok := s.Get("fresh", 0)
	require.True(t, ok)
	n, _ := got.AsInt64()
	require.Equal(t, int64(1), n)
}

func TestStoreRemoveFirstOnly(t *testing.T) {
	s := NewStore()
	s.Insert(value.Int32("k", 1))
	s.Insert(value.Int32("k", 2))
	require.Equal(t, uint32(1), s.Remove("k", false))

	remaining := s.GetAll("k")
	require.Len(t, remaining, 1)
	n, _ := remaining[0].AsInt64()
	require.Equal(t, int64(2), n)
}

func TestStoreRemoveAll(t *testing.T) {
	s := NewStore()
	s.Insert(value.Int32("k", 1))
	s.Insert(value.Int32("k", 2))
	require.Equal(t, uint32(2), s.Remove("k", true))
	require.False(t, s.Contains("k"))
	require.Equal(t, uint32(0), s.Remove("k", true))
}

func TestStoreLenAndNames(t *testing.T) {
	s := NewStore()
	s.Insert(value.Int32("b", 1))
	s.Insert(value.Int32("a", 2))
	s.Insert(value.Int32("b", 3))
	require.Equal(t, 3, s.Len())
	require.ElementsMatch(t, []string{"a", "b"}, s.Names())
}

func TestStoreClear(t *testing.T) {
	s := NewStore()
	s.Insert(value.Int32("a", 1))
	s.Clear()
	require.True(t, s.IsEmpty())
	require.Equal(t, 0, s.Len())
}

func TestStoreCloneContentsIsIndependent(t *testing.T) {
	s := NewStore()
	s.Insert(value.Bytes("buf", []byte{1, 2, 3}))
	clone := s.CloneContents()

	cv, _ := clone.Get("buf", 0)
	cb, _ := cv.AsBytes()
	cb[0] = 0xFF

	ov, _ := s.Get("buf", 0)
	ob, _ := ov.AsBytes()
	require.Equal(t, byte(1), ob[0])
}

func TestStoreExclusiveOwnerBypassesLock(t *testing.T) {
	s := NewStore(WithExclusiveOwner())
	s.Insert(value.Int32("k", 1))
	v, ok := s.Get("k", 0)
	require.True(t, ok)
	n, _ := v.AsInt64()
	require.Equal(t, int64(1), n)
}

func TestStoreConcurrentInsertGet(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Insert(value.Int32("concurrent", int32(i)))
		}(i)
	}
	wg.Wait()
	require.Equal(t, 16, len(s.GetAll("concurrent")))
}

func TestStoreForEachStopsEarly(t *testing.T) {
	s := NewStore()
	s.Insert(value.Int32("a", 1))
	s.Insert(value.Int32("b", 2))
	s.Insert(value.Int32("c", 3))

	var seen []string
	s.ForEach(func(name string, v value.Value) bool {
		seen = append(seen, name)
		return len(seen) < 2
	})
	require.Len(t, seen, 2)
}
