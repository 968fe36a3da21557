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

package container

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreval/coreval/kv"
	"github.com/coreval/coreval/value"
)

func TestFacadeRoundTrip(t *testing.T) {
	c := New()
	c.SetHeader(Header{
		Source: "node-a", SourceSub: "worker-1",
		Target: "node-b", TargetSub: "worker-2",
		MessageType: "ping", Version: 1,
	})
	c.Cell().PublishMutation(func(s *kv.Store) {
		s.Insert(value.Uint32("seq", 42))
	})

	encoded, err := c.EncodeBinary()
	require.NoError(t, err)
	require.Contains(t, string(encoded),
		"@header={source=node-a;source_sub=worker-1;target=node-b;target_sub=worker-2;message_type=ping;version=1;};@data=")

	decoded, err := DecodeBinary(encoded, value.DefaultMaxDepth)
	require.NoError(t, err)
	require.Equal(t, c.Header(), decoded.Header())

	var seq int64
	decoded.Cell().Read(func(s *kv.Snapshot) {
		v, ok := s.Store().Get("seq", 0)
		require.True(t, ok)
		n, _ := v.AsUint64()
		seq = int64(n)
	})
	require.Equal(t, int64(42), seq)
}

func TestFacadeSetHeaderLeavesPayloadAlone(t *testing.T) {
	c := New()
	c.Cell().PublishMutation(func(s *kv.Store) {
		s.Insert(value.Bool("x", true))
	})
	old := c.SetHeader(Header{Source: "a"})
	require.Equal(t, Header{}, old)
	require.Equal(t, 1, c.Cell().Load().Store().Len())
}

func TestFacadeSwapHeaderExchangesSourceAndTarget(t *testing.T) {
	c := New()
	c.SetHeader(Header{
		Source: "node-a", SourceSub: "a-sub",
		Target: "node-b", TargetSub: "b-sub",
		MessageType: "ping", Version: 1,
	})

	swapped := c.SwapHeader()
	require.Equal(t, "node-b", swapped.Source)
	require.Equal(t, "b-sub", swapped.SourceSub)
	require.Equal(t, "node-a", swapped.Target)
	require.Equal(t, "a-sub", swapped.TargetSub)
	require.Equal(t, "ping", swapped.MessageType)
	require.Equal(t, uint32(1), swapped.Version)
	require.Equal(t, swapped, c.Header())
}

func TestFacadeDecodeRejectsMissingPrefix(t *testing.T) {
	_, err := DecodeBinary([]byte("not a container frame"), value.DefaultMaxDepth)
	require.Error(t, err)
}

func TestFacadeDecodeRejectsTrailingData(t *testing.T) {
	c := New()
	encoded, err := c.EncodeBinary()
	require.NoError(t, err)
	encoded = append(encoded, '!')
	_, err = DecodeBinary(encoded, value.DefaultMaxDepth)
	require.Error(t, err)
}
