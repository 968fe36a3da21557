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

package value

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScalarAccessors(t *testing.T) {
	n, ok := Int32("n", -7).AsInt64()
	require.True(t, ok)
	require.Equal(t, int64(-7), n)

	_, ok = Int32("n", -7).AsUint64()
	require.False(t, ok)

	s, ok := String("s", "hi").AsString()
	require.True(t, ok)
	require.Equal(t, "hi", s)

	_, ok = Bool("b", true).AsString()
	require.False(t, ok)
}

func TestInt64AliasSharesAccessorButNotKind(t *testing.T) {
	canonical := Int64("n", 7)
	alias := Int64Alias("n", 7)
	require.Equal(t, KindInt64, canonical.Kind())
	require.Equal(t, KindInt64Alias, alias.Kind())

	cn, ok := canonical.AsInt64()
	require.True(t, ok)
	an, ok := alias.AsInt64()
	require.True(t, ok)
	require.Equal(t, cn, an)

	require.False(t, canonical.Equal(alias), "alias and canonical tags must not compare equal")
}

func TestUint64AliasSharesAccessorButNotKind(t *testing.T) {
	canonical := Uint64("n", 7)
	alias := Uint64Alias("n", 7)
	require.Equal(t, KindUint64, canonical.Kind())
	require.Equal(t, KindUint64Alias, alias.Kind())
	require.False(t, canonical.Equal(alias))
}

func TestNameIsIntrinsic(t *testing.T) {
	v := Int32("count", 42)
	require.Equal(t, "count", v.Name())
	require.Equal(t, uint8(KindInt32), v.Tag())
}

func TestCloneIsIndependent(t *testing.T) {
	original := Container("x", []Value{Bytes("b", []byte{1, 2, 3})})
	clone := original.Clone()

	clonedChildren, _ := clone.AsChildren()
	clonedBytes, _ := clonedChildren[0].AsBytes()
	clonedBytes[0] = 0xFF

	origChildren, _ := original.AsChildren()
	origBytes, _ := origChildren[0].AsBytes()
	require.Equal(t, byte(1), origBytes[0], "mutating the clone must not affect the original")
}

func TestEqualNaNBitPattern(t *testing.T) {
	nan := Float64("f", nanValue())
	require.True(t, nan.Equal(nan))
}

func nanValue() float64 {
	var zero float64
	return zero / zero
}

func TestEqualDetectsKindMismatch(t *testing.T) {
	require.False(t, Int32("n", 1).Equal(Int64("n", 1)))
}

func TestEqualDetectsNameMismatch(t *testing.T) {
	require.False(t, Int32("a", 1).Equal(Int32("b", 1)))
}

func TestEqualArraysAndContainers(t *testing.T) {
	a := Array("arr", []Value{Int32("0", 1), String("1", "x")})
	b := Array("arr", []Value{Int32("0", 1), String("1", "x")})
	require.True(t, a.Equal(b))

	c1 := Container("c", []Value{Int32("n", 1)})
	c2 := Container("c", []Value{Int32("n", 2)})
	require.False(t, c1.Equal(c2))
}

func TestKindStringAndValid(t *testing.T) {
	require.Equal(t, "container", KindContainer.String())
	require.True(t, KindContainer.Valid())
	require.False(t, Kind(200).Valid())
}

func TestKindIsAlias(t *testing.T) {
	require.True(t, KindInt64Alias.IsAlias())
	require.True(t, KindUint64Alias.IsAlias())
	require.False(t, KindInt64.IsAlias())
}

// buildCycle constructs a container whose children slice comes to alias
// a container nested inside itself: it builds `a` with one child slot,
// embeds a snapshot of `a` inside `b`, then mutates a's own backing array
// so a.children[0] now holds b. Walking into the nested, stale copy of a
// inside b re-encounters the very backing array already on the encoder's
// visiting stack.
func buildCycle() Value {
	children := make([]Value, 1)
	a := Value{name: "self", kind: KindContainer, children: children}
	b := Value{name: "child", kind: KindContainer, children: []Value{a}}
	children[0] = b
	return a
}

func TestBuildCycleIsSelfReferential(t *testing.T) {
	a := buildCycle()
	nested, ok := a.AsChildren()
	require.True(t, ok)
	require.Len(t, nested, 1)

	inner, ok := nested[0].AsChildren()
	require.True(t, ok)
	require.Len(t, inner, 1)
	require.Equal(t, a.identity(), inner[0].identity(), "the grandchild must alias a's own children")
}
