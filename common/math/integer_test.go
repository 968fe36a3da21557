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

package math

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSafeMul(t *testing.T) {
	sum, overflow := SafeMul(2, 3)
	require.False(t, overflow)
	require.Equal(t, uint64(6), sum)

	_, overflow = SafeMul(MaxUint64, 2)
	require.True(t, overflow)
}

func TestSafeAdd(t *testing.T) {
	sum, overflow := SafeAdd(40, 2)
	require.False(t, overflow)
	require.Equal(t, uint64(42), sum)

	_, overflow = SafeAdd(MaxUint64, 1)
	require.True(t, overflow)
}

func TestCeilDiv(t *testing.T) {
	require.Equal(t, 3, CeilDiv(7, 3))
	require.Equal(t, 0, CeilDiv(7, 0))
	require.Equal(t, 0, CeilDiv(0, 3))
}

func TestFitsUint32(t *testing.T) {
	require.True(t, FitsUint32(0))
	require.True(t, FitsUint32(MaxUint32))
	require.False(t, FitsUint32(-1))
}

func TestAlignUp(t *testing.T) {
	require.Equal(t, 4096, AlignUp(1, 4096))
	require.Equal(t, 4096, AlignUp(4096, 4096))
	require.Equal(t, 8192, AlignUp(4097, 4096))
}
