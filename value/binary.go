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
	"encoding/binary"
	"unicode/utf8"
	"unsafe"

	cvmath "github.com/coreval/coreval/common/math"
	cverrors "github.com/coreval/coreval/errors"
)

// DefaultMaxDepth bounds recursive decoding absent an explicit
// option (errors.DepthExceeded past this point); encoding has no depth
// bound. 64 matches the
// configured default for max_decode_depth; callers needing deeper
// nesting pass their own limit to DecodeBinary.
const DefaultMaxDepth = 64

// EncodeBinary renders v in the canonical little-endian binary wire
// format: a u32 name length, the name bytes, a one-byte tag (identical
// to v's Kind, preserving the tag-6/tag-8 and tag-7/tag-9 aliasing
// distinction), followed by a kind-specific payload. Fixed-width
// scalars have no length prefix; string/bytes payloads and
// container/array payloads are u32 length/count prefixed.
// EncodeBinary returns errors.CycleDetected if v recursively contains
// itself.
func EncodeBinary(v Value) ([]byte, error) {
	e := &binaryEncoder{visiting: make([]unsafe.Pointer, 0, 8)}
	if err := e.encode(v); err != nil {
		return nil, err
	}
	return e.buf, nil
}

type binaryEncoder struct {
	buf      []byte
	visiting []unsafe.Pointer
}

func (e *binaryEncoder) encode(v Value) error {
	if !v.kind.Valid() {
		return cverrors.New(cverrors.UnknownKind, "encode: invalid kind")
	}

	if v.kind.IsComposite() {
		id := v.identity()
		if id != nil {
			for _, seen := range e.visiting {
				if seen == id {
					return cverrors.New(cverrors.CycleDetected, "encode: value contains itself")
				}
			}
			e.visiting = append(e.visiting, id)
			defer func() { e.visiting = e.visiting[:len(e.visiting)-1] }()
		}
	}

	if !utf8.ValidString(v.name) {
		return cverrors.New(cverrors.BadString, "encode: name is not valid utf-8")
	}
	if !cvmath.FitsUint32(len(v.name)) {
		return cverrors.New(cverrors.OutOfMemory, "encode: name exceeds u32 length prefix")
	}
	e.putU32(uint32(len(v.name)))
	e.buf = append(e.buf, v.name...)
	e.buf = append(e.buf, byte(v.kind))

	switch v.kind {
	case KindNull:
	case KindBool:
		if v.b {
			e.buf = append(e.buf, 1)
		} else {
			e.buf = append(e.buf, 0)
		}
	case KindInt16:
		e.putU16(uint16(int16(v.i64)))
	case KindUint16:
		e.putU16(uint16(v.u64))
	case KindInt32:
		e.putU32(uint32(int32(v.i64)))
	case KindUint32:
		e.putU32(uint32(v.u64))
	case KindInt64, KindInt64Alias:
		e.putU64(uint64(v.i64))
	case KindUint64, KindUint64Alias:
		e.putU64(v.u64)
	case KindFloat32:
		e.putU32(float32bits(v.f32))
	case KindFloat64:
		e.putU64(float64bits(v.f64))
	case KindString:
		if !utf8.ValidString(v.str) {
			return cverrors.New(cverrors.BadString, "encode: string payload is not valid utf-8")
		}
		if !cvmath.FitsUint32(len(v.str)) {
			return cverrors.New(cverrors.OutOfMemory, "encode: string payload exceeds u32 length prefix")
		}
		e.putU32(uint32(len(v.str)))
		e.buf = append(e.buf, v.str...)
	case KindBytes:
		if !cvmath.FitsUint32(len(v.buf)) {
			return cverrors.New(cverrors.OutOfMemory, "encode: bytes payload exceeds u32 length prefix")
		}
		e.putU32(uint32(len(v.buf)))
		e.buf = append(e.buf, v.buf...)
	case KindContainer, KindArray:
		if !cvmath.FitsUint32(len(v.children)) {
			return cverrors.New(cverrors.OutOfMemory, "encode: composite exceeds u32 count prefix")
		}
		e.putU32(uint32(len(v.children)))
		for _, child := range v.children {
			if err := e.encode(child); err != nil {
				return err
			}
		}
	default:
		return cverrors.New(cverrors.UnknownKind, "encode: unreachable kind")
	}
	return nil
}

func (e *binaryEncoder) putU16(x uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], x)
	e.buf = append(e.buf, b[:]...)
}

func (e *binaryEncoder) putU32(x uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], x)
	e.buf = append(e.buf, b[:]...)
}

func (e *binaryEncoder) putU64(x uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], x)
	e.buf = append(e.buf, b[:]...)
}

// DecodeBinary decodes a single value from the front of data and reports
// how many bytes it consumed. It does not require data to be fully
// consumed; callers that need that (a standalone payload rather than one
// embedded in a larger wire frame) should use DecodeBinaryExact.
func DecodeBinary(data []byte, maxDepth int) (Value, int, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	d := &binaryDecoder{data: data, maxDepth: maxDepth}
	v, err := d.decode(0)
	if err != nil {
		return Value{}, 0, err
	}
	return v, d.pos, nil
}

// DecodeBinaryExact decodes a single value and requires that it consume
// every byte of data, returning errors.TrailingData otherwise.
func DecodeBinaryExact(data []byte, maxDepth int) (Value, error) {
	v, n, err := DecodeBinary(data, maxDepth)
	if err != nil {
		return Value{}, err
	}
	if n != len(data) {
		return Value{}, cverrors.New(cverrors.TrailingData, "decode: unconsumed bytes after value")
	}
	return v, nil
}

type binaryDecoder struct {
	data     []byte
	pos      int
	maxDepth int
}

func (d *binaryDecoder) need(n int) error {
	if len(d.data)-d.pos < n {
		return cverrors.New(cverrors.Truncated, "decode: input exhausted before payload completed")
	}
	return nil
}

func (d *binaryDecoder) decode(depth int) (Value, error) {
	if depth > d.maxDepth {
		return Value{}, cverrors.New(cverrors.DepthExceeded, "decode: maximum nesting depth exceeded")
	}

	nameLen, err := d.getU32()
	if err != nil {
		return Value{}, err
	}
	if err := d.need(int(nameLen)); err != nil {
		return Value{}, err
	}
	name := string(d.data[d.pos : d.pos+int(nameLen)])
	d.pos += int(nameLen)

	if err := d.need(1); err != nil {
		return Value{}, err
	}
	kind := Kind(d.data[d.pos])
	d.pos++
	if !kind.Valid() {
		return Value{}, cverrors.New(cverrors.UnknownKind, "decode: tag byte outside 0..15")
	}

	switch kind {
	case KindNull:
		return Null(name), nil
	case KindBool:
		if err := d.need(1); err != nil {
			return Value{}, err
		}
		b := d.data[d.pos] != 0
		d.pos++
		return Bool(name, b), nil
	case KindInt16:
		u, err := d.getU16()
		if err != nil {
			return Value{}, err
		}
		return Int16(name, int16(u)), nil
	case KindUint16:
		u, err := d.getU16()
		if err != nil {
			return Value{}, err
		}
		return Uint16(name, u), nil
	case KindInt32:
		u, err := d.getU32()
		if err != nil {
			return Value{}, err
		}
		return Int32(name, int32(u)), nil
	case KindUint32:
		u, err := d.getU32()
		if err != nil {
			return Value{}, err
		}
		return Uint32(name, u), nil
	case KindInt64:
		u, err := d.getU64()
		if err != nil {
			return Value{}, err
		}
		return Int64(name, int64(u)), nil
	case KindInt64Alias:
		u, err := d.getU64()
		if err != nil {
			return Value{}, err
		}
		return Int64Alias(name, int64(u)), nil
	case KindUint64:
		u, err := d.getU64()
		if err != nil {
			return Value{}, err
		}
		return Uint64(name, u), nil
	case KindUint64Alias:
		u, err := d.getU64()
		if err != nil {
			return Value{}, err
		}
		return Uint64Alias(name, u), nil
	case KindFloat32:
		u, err := d.getU32()
		if err != nil {
			return Value{}, err
		}
		return Float32(name, bitsToFloat32(u)), nil
	case KindFloat64:
		u, err := d.getU64()
		if err != nil {
			return Value{}, err
		}
		return Float64(name, bitsToFloat64(u)), nil
	case KindString:
		n, err := d.getU32()
		if err != nil {
			return Value{}, err
		}
		if err := d.need(int(n)); err != nil {
			return Value{}, err
		}
		s := string(d.data[d.pos : d.pos+int(n)])
		d.pos += int(n)
		if !utf8.ValidString(s) {
			return Value{}, cverrors.New(cverrors.BadString, "decode: string payload is not valid utf-8")
		}
		return String(name, s), nil
	case KindBytes:
		n, err := d.getU32()
		if err != nil {
			return Value{}, err
		}
		if err := d.need(int(n)); err != nil {
			return Value{}, err
		}
		buf := append([]byte(nil), d.data[d.pos:d.pos+int(n)]...)
		d.pos += int(n)
		return Bytes(name, buf), nil
	case KindArray, KindContainer:
		n, err := d.getU32()
		if err != nil {
			return Value{}, err
		}
		// Each child needs at least 5 bytes on the wire (a u32 name
		// length plus a tag byte; a null child has no payload), so a
		// count claiming more children than the input could possibly
		// hold is malformed; reject it before trusting it as an
		// allocation size.
		const minChildSize = 5
		if uint64(n) > uint64(len(d.data)-d.pos)/minChildSize {
			return Value{}, cverrors.New(cverrors.Truncated, "decode: composite count exceeds remaining input")
		}
		children := make([]Value, 0, n)
		for i := uint32(0); i < n; i++ {
			child, err := d.decode(depth + 1)
			if err != nil {
				return Value{}, err
			}
			children = append(children, child)
		}
		if kind == KindArray {
			return Array(name, children), nil
		}
		return Container(name, children), nil
	}
	return Value{}, cverrors.New(cverrors.UnknownKind, "decode: unreachable kind")
}

func (d *binaryDecoder) getU16() (uint16, error) {
	if err := d.need(2); err != nil {
		return 0, err
	}
	u := binary.LittleEndian.Uint16(d.data[d.pos:])
	d.pos += 2
	return u, nil
}

func (d *binaryDecoder) getU32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	u := binary.LittleEndian.Uint32(d.data[d.pos:])
	d.pos += 4
	return u, nil
}

func (d *binaryDecoder) getU64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	u := binary.LittleEndian.Uint64(d.data[d.pos:])
	d.pos += 8
	return u, nil
}
