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

// Package value implements the closed, tagged-union payload that every
// higher layer of coreval (kv, container) stores, moves, and serializes.
// A Value is always one of sixteen Kinds; the Kind is also the value's
// wire tag, so the binary codec never needs a side lookup table.
package value

import (
	"math"
	"unsafe"
)

// Kind is the discriminant of a Value and, simultaneously, its wire tag
// (0-15). The ordering below is a load-bearing contract: it is the exact
// tag assignment the binary codec promises callers on the wire.
type Kind uint8

const (
	KindNull Kind = iota // 0
	KindBool             // 1
	KindInt16            // 2
	KindUint16           // 3
	KindInt32            // 4
	KindUint32           // 5
	KindInt64            // 6
	KindUint64           // 7
	// KindInt64Alias is wire tag 8: a legacy platform alias that shares
	// int64's in-memory representation but must round-trip under its own
	// tag rather than collapsing into KindInt64.
	KindInt64Alias // 8
	// KindUint64Alias is wire tag 9, the uint64 counterpart of tag 8.
	KindUint64Alias // 9
	KindFloat32     // 10
	KindFloat64     // 11
	KindBytes       // 12
	KindString      // 13
	KindContainer   // 14
	KindArray       // 15

	numKinds = 16
)

// kindNames is used for both the Kind.String() display name and the JSON
// "type"/"_type" field. Tags 8/9 intentionally share their canonical
// counterpart's name: JSON is lossy with respect to the alias
// distinction, so encoding an alias value reports the same textual type
// as its canonical sibling.
var kindNames = [numKinds]string{
	KindNull:        "null",
	KindBool:        "bool",
	KindInt16:       "int16",
	KindUint16:      "uint16",
	KindInt32:       "int32",
	KindUint32:      "uint32",
	KindInt64:       "int64",
	KindUint64:      "uint64",
	KindInt64Alias:  "int64",
	KindUint64Alias: "uint64",
	KindFloat32:     "float32",
	KindFloat64:     "float64",
	KindBytes:       "bytes",
	KindString:      "string",
	KindContainer:   "container",
	KindArray:       "array",
}

// String returns the canonical lower-case name of k, or "kind(N)" if k is
// outside the valid range.
func (k Kind) String() string {
	if int(k) < numKinds {
		return kindNames[k]
	}
	return "kind(" + itoa(int(k)) + ")"
}

// Valid reports whether k is one of the sixteen defined tags.
func (k Kind) Valid() bool { return int(k) < numKinds }

// IsComposite reports whether values of kind k may hold nested children
// (Container and Array), and therefore participate in cycle detection.
func (k Kind) IsComposite() bool { return k == KindContainer || k == KindArray }

// IsAlias reports whether k is one of the legacy wire-only aliases (tags
// 8 and 9) that share their canonical sibling's in-memory representation.
func (k Kind) IsAlias() bool { return k == KindInt64Alias || k == KindUint64Alias }

// Value is a single tagged-union payload: a name, a kind tag, and a
// kind-specific payload. Name is not unique within a store - multiple
// values may share a name.
type Value struct {
	name string
	kind Kind

	b   bool
	i64 int64 // int16/32/64 and the int64 alias (sign-extended)
	u64 uint64
	f32 float32
	f64 float64
	str string
	buf []byte

	children []Value
}

// Name returns v's name.
func (v Value) Name() string { return v.name }

// Kind reports v's discriminant.
func (v Value) Kind() Kind { return v.kind }

// Tag returns v's wire tag, numerically identical to its Kind.
func (v Value) Tag() uint8 { return uint8(v.kind) }

// --- Constructors -----------------------------------------------------

// Null returns the named null value.
func Null(name string) Value { return Value{name: name, kind: KindNull} }

// Bool returns a named bool value.
func Bool(name string, b bool) Value { return Value{name: name, kind: KindBool, b: b} }

// Int16 returns a named int16 value.
func Int16(name string, n int16) Value { return Value{name: name, kind: KindInt16, i64: int64(n)} }

// Uint16 returns a named uint16 value.
func Uint16(name string, n uint16) Value {
	return Value{name: name, kind: KindUint16, u64: uint64(n)}
}

// Int32 returns a named int32 value.
func Int32(name string, n int32) Value { return Value{name: name, kind: KindInt32, i64: int64(n)} }

// Uint32 returns a named uint32 value.
func Uint32(name string, n uint32) Value {
	return Value{name: name, kind: KindUint32, u64: uint64(n)}
}

// Int64 returns a named int64 value under the canonical tag (6).
func Int64(name string, n int64) Value { return Value{name: name, kind: KindInt64, i64: n} }

// Uint64 returns a named uint64 value under the canonical tag (7).
func Uint64(name string, n uint64) Value { return Value{name: name, kind: KindUint64, u64: n} }

// Int64Alias returns a named int64 value under the legacy alias tag (8).
// It holds exactly the same in-memory representation as Int64 and every
// accessor treats the two identically; only the wire tag differs.
func Int64Alias(name string, n int64) Value {
	return Value{name: name, kind: KindInt64Alias, i64: n}
}

// Uint64Alias returns a named uint64 value under the legacy alias tag (9).
func Uint64Alias(name string, n uint64) Value {
	return Value{name: name, kind: KindUint64Alias, u64: n}
}

// Float32 returns a named float32 value.
func Float32(name string, f float32) Value { return Value{name: name, kind: KindFloat32, f32: f} }

// Float64 returns a named float64 value.
func Float64(name string, f float64) Value { return Value{name: name, kind: KindFloat64, f64: f} }

// String returns a named string value. s may be any UTF-8 text,
// including the empty string; the codec validates it on encode.
func String(name, s string) Value { return Value{name: name, kind: KindString, str: s} }

// Bytes returns a named bytes value. The slice is retained, not copied;
// callers that mutate buf afterward must Clone first.
func Bytes(name string, buf []byte) Value { return Value{name: name, kind: KindBytes, buf: buf} }

// Container returns a named Container value wrapping children, in order.
// The slice is retained, not copied. Each child carries its own name -
// there is no separate name list, since every Value already has one.
func Container(name string, children []Value) Value {
	return Value{name: name, kind: KindContainer, children: children}
}

// Array returns a named Array value wrapping children, in order, treated
// as a heterogeneous ordered sequence rather than a keyed collection.
func Array(name string, children []Value) Value {
	return Value{name: name, kind: KindArray, children: children}
}

// --- Typed accessors ---------------------------------------------------
//
// Each scalar kind gets an ok-bool accessor rather than a panicking cast:
// a kind mismatch is the expected outcome during discovery, not an error.

// AsBool returns v's bool and whether v.Kind() == KindBool.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt64 returns the value widened to int64 and whether v holds int16,
// int32, int64, or the int64 alias.
func (v Value) AsInt64() (int64, bool) {
	switch v.kind {
	case KindInt16, KindInt32, KindInt64, KindInt64Alias:
		return v.i64, true
	}
	return 0, false
}

// AsUint64 returns the value widened to uint64 and whether v holds
// uint16, uint32, uint64, or the uint64 alias.
func (v Value) AsUint64() (uint64, bool) {
	switch v.kind {
	case KindUint16, KindUint32, KindUint64, KindUint64Alias:
		return v.u64, true
	}
	return 0, false
}

// AsFloat32 returns v's float32 and whether v.Kind() == KindFloat32.
func (v Value) AsFloat32() (float32, bool) { return v.f32, v.kind == KindFloat32 }

// AsFloat64 returns v's float64 and whether v.Kind() == KindFloat64.
func (v Value) AsFloat64() (float64, bool) { return v.f64, v.kind == KindFloat64 }

// AsString returns v's string and whether v.Kind() == KindString.
func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

// AsBytes returns v's byte slice and whether v.Kind() == KindBytes. The
// returned slice aliases v's storage; callers must not mutate it.
func (v Value) AsBytes() ([]byte, bool) { return v.buf, v.kind == KindBytes }

// AsChildren returns v's children and whether v.Kind().IsComposite(). The
// returned slice aliases v's storage.
func (v Value) AsChildren() ([]Value, bool) {
	return v.children, v.kind.IsComposite()
}

// Len returns the number of children for Container/Array kinds, 0
// otherwise.
func (v Value) Len() int { return len(v.children) }

// --- Clone / Equal -------------------------------------------------------

// Clone returns a deep copy of v: byte slices and child slices are
// duplicated so the result shares no mutable storage with v.
func (v Value) Clone() Value {
	out := v
	if v.buf != nil {
		out.buf = append([]byte(nil), v.buf...)
	}
	if v.children != nil {
		out.children = make([]Value, len(v.children))
		for i, c := range v.children {
			out.children[i] = c.Clone()
		}
	}
	return out
}

// Equal reports deep structural equality between v and other, including
// name and exact kind (tag 6 and tag 8 are NOT equal even though they
// hold the same number - names and tags must round-trip exactly). NaN
// float payloads compare equal to themselves here (bit-pattern
// equality), unlike Go's == on float64.
func (v Value) Equal(other Value) bool {
	if v.name != other.name || v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindInt16, KindInt32, KindInt64, KindInt64Alias:
		return v.i64 == other.i64
	case KindUint16, KindUint32, KindUint64, KindUint64Alias:
		return v.u64 == other.u64
	case KindFloat32:
		return math.Float32bits(v.f32) == math.Float32bits(other.f32)
	case KindFloat64:
		return math.Float64bits(v.f64) == math.Float64bits(other.f64)
	case KindString:
		return v.str == other.str
	case KindBytes:
		return bytesEqual(v.buf, other.buf)
	case KindContainer, KindArray:
		return childrenEqual(v.children, other.children)
	}
	return false
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func childrenEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// --- Cycle identity ------------------------------------------------------

// identity returns a pointer that uniquely identifies v's children
// backing array, or nil if v has no children. Two composite Values built
// from the same backing array - including one nested, stale copy that
// still aliases it - report the same identity; this is the property the
// binary/JSON/XML encoders use to detect a value that recursively
// contains itself without requiring pointer-based children.
func (v Value) identity() unsafe.Pointer {
	if len(v.children) == 0 {
		return nil
	}
	return unsafe.Pointer(unsafe.SliceData(v.children))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
