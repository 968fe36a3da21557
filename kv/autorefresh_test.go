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
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/coreval/coreval/value"
)

func TestAutoRefresherPublishesFetchedSnapshot(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := NewMockSource(ctrl)

	fresh := NewStore()
	fresh.Insert(value.Int32("k", 9))
	encoded, err := EncodeBinary(fresh)
	require.NoError(t, err)

	refreshed := make(chan struct{})
	var refreshedOnce sync.Once
	src.EXPECT().Fetch(gomock.Any()).DoAndReturn(func(context.Context) ([]byte, error) {
		defer refreshedOnce.Do(func() { close(refreshed) })
		return encoded, nil
	}).MinTimes(1)

	cell := NewCell(nil)
	ar := NewAutoRefresher(cell, src, 5*time.Millisecond, WithMaxValueDepth(value.DefaultMaxDepth))
	ar.Start(context.Background())
	defer ar.Stop()

	select {
	case <-refreshed:
	case <-time.After(time.Second):
		t.Fatal("auto-refresher never called Fetch")
	}

	require.Eventually(t, func() bool {
		v, ok := cell.Load().Store().Get("k", 0)
		if !ok {
			return false
		}
		n, _ := v.AsInt64()
		return n == 9
	}, time.Second, 5*time.Millisecond)
}

func TestAutoRefresherStopWaitsForLoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := NewMockSource(ctrl)
	src.EXPECT().Fetch(gomock.Any()).Return(nil, context.Canceled).AnyTimes()

	cell := NewCell(nil)
	ar := NewAutoRefresher(cell, src, 2*time.Millisecond)
	ar.Start(context.Background())
	require.NoError(t, ar.Stop())
}

func TestAutoRefresherDoubleStartPanics(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := NewMockSource(ctrl)
	src.EXPECT().Fetch(gomock.Any()).Return(nil, context.Canceled).AnyTimes()

	cell := NewCell(nil)
	ar := NewAutoRefresher(cell, src, time.Second)
	ar.Start(context.Background())
	defer ar.Stop()
	require.Panics(t, func() { ar.Start(context.Background()) })
}
