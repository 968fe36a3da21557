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
	"encoding/base64"
	"unsafe"

	"github.com/ugorji/go/codec"

	cverrors "github.com/coreval/coreval/errors"
)

var jsonHandle = &codec.JsonHandle{}

// kindByName maps the JSON "type"/"_type" string back to a Kind. Tags 8
// and 9 are intentionally absent: JSON is lossy with respect to the
// alias distinction, so a value decoded from JSON always reconstructs
// under its canonical tag (6 or 7), never an alias.
var kindByName = map[string]Kind{
	"null":      KindNull,
	"bool":      KindBool,
	"int16":     KindInt16,
	"uint16":    KindUint16,
	"int32":     KindInt32,
	"uint32":    KindUint32,
	"int64":     KindInt64,
	"uint64":    KindUint64,
	"float32":   KindFloat32,
	"float64":   KindFloat64,
	"bytes":     KindBytes,
	"string":    KindString,
	"container": KindContainer,
	"array":     KindArray,
}

// EncodeJSON renders v as a lossy-but-lossless-per-payload JSON document
// via ugorji/go/codec's JsonHandle.
//
// A leaf value encodes as {"name":N,"type":T,"value":V} (V omitted for
// null). A composite value (container or array) encodes as
// {"_type":T,"values":[...]}, where each element of "values" is itself
// the full JSON rendering of that child - leaf-shaped or composite-shaped,
// chosen by the child's own kind. Composite values do not carry their
// own name on the wire: JSON only preserves a name for leaves.
func EncodeJSON(v Value) ([]byte, error) {
	tree, err := jsonOf(v, make([]unsafe.Pointer, 0, 8))
	if err != nil {
		return nil, err
	}
	var out []byte
	enc := codec.NewEncoderBytes(&out, jsonHandle)
	if err := enc.Encode(tree); err != nil {
		return nil, cverrors.Wrap(cverrors.BadString, err, "encode json")
	}
	return out, nil
}

// jsonOf renders v as either the composite or the leaf JSON shape,
// chosen by v's own kind. visiting tracks the identity of composite
// values currently on the recursion stack, mirroring binaryEncoder's
// cycle check, so a value that recursively contains itself fails with
// CycleDetected instead of recursing forever.
func jsonOf(v Value, visiting []unsafe.Pointer) (any, error) {
	if v.kind.IsComposite() {
		id := v.identity()
		if id != nil {
			for _, seen := range visiting {
				if seen == id {
					return nil, cverrors.New(cverrors.CycleDetected, "encode json: value contains itself")
				}
			}
			visiting = append(visiting, id)
		}
		values := make([]any, len(v.children))
		for i, child := range v.children {
			rendered, err := jsonOf(child, visiting)
			if err != nil {
				return nil, err
			}
			values[i] = rendered
		}
		return map[string]any{
			"_type":  v.kind.String(),
			"values": values,
		}, nil
	}
	if v.kind == KindNull {
		return map[string]any{"name": v.name, "type": v.kind.String()}, nil
	}
	scalar, err := jsonScalar(v)
	if err != nil {
		return nil, err
	}
	return map[string]any{"name": v.name, "type": v.kind.String(), "value": scalar}, nil
}

func jsonScalar(v Value) (any, error) {
	switch v.kind {
	case KindBool:
		return v.b, nil
	case KindInt16, KindInt32, KindInt64, KindInt64Alias:
		return v.i64, nil
	case KindUint16, KindUint32, KindUint64, KindUint64Alias:
		return v.u64, nil
	case KindFloat32:
		return float64(v.f32), nil
	case KindFloat64:
		return v.f64, nil
	case KindString:
		return v.str, nil
	case KindBytes:
		return v.buf, nil // codec renders []byte as base64, matching its stdlib-compatible behavior
	}
	return nil, cverrors.New(cverrors.UnknownKind, "encode json: unreachable kind")
}

// DecodeJSON parses a document produced by EncodeJSON back into a Value.
// Nesting beyond DefaultMaxDepth fails with errors.DepthExceeded.
func DecodeJSON(data []byte) (Value, error) {
	var tree any
	dec := codec.NewDecoderBytes(data, jsonHandle)
	if err := dec.Decode(&tree); err != nil {
		return Value{}, cverrors.Wrap(cverrors.Truncated, err, "decode json")
	}
	return valueFromTree(tree, 0, DefaultMaxDepth)
}

// valueFromTree converts a generic decoded JSON node back into a Value.
// depth counts composite nesting seen so far; exceeding maxDepth fails
// with DepthExceeded rather than recursing without bound.
func valueFromTree(node any, depth, maxDepth int) (Value, error) {
	if depth > maxDepth {
		return Value{}, cverrors.New(cverrors.DepthExceeded, "decode json: maximum nesting depth exceeded")
	}

	m, ok := node.(map[string]any)
	if !ok {
		return Value{}, cverrors.New(cverrors.TypeMismatch, "decode json: expected object")
	}

	if typeName, ok := m["_type"].(string); ok {
		kind, ok := kindByName[typeName]
		if !ok || !kind.IsComposite() {
			return Value{}, cverrors.New(cverrors.UnknownKind, "decode json: unknown composite _type")
		}
		rawValues, _ := m["values"].([]any)
		children := make([]Value, len(rawValues))
		for i, rv := range rawValues {
			child, err := valueFromTree(rv, depth+1, maxDepth)
			if err != nil {
				return Value{}, err
			}
			children[i] = child
		}
		if kind == KindArray {
			return Array("", children), nil
		}
		return Container("", children), nil
	}

	typeName, ok := m["type"].(string)
	if !ok {
		return Value{}, cverrors.New(cverrors.UnknownKind, "decode json: object missing _type/type")
	}
	name, _ := m["name"].(string)
	return scalarFromRaw(name, typeName, m["value"])
}

func scalarFromRaw(name, typeName string, raw any) (Value, error) {
	kind, ok := kindByName[typeName]
	if !ok {
		return Value{}, cverrors.New(cverrors.UnknownKind, "decode json: unknown leaf type")
	}
	switch kind {
	case KindNull:
		return Null(name), nil
	case KindBool:
		b, _ := raw.(bool)
		return Bool(name, b), nil
	case KindInt16:
		n, err := toInt64(raw)
		return Int16(name, int16(n)), err
	case KindInt32:
		n, err := toInt64(raw)
		return Int32(name, int32(n)), err
	case KindInt64:
		n, err := toInt64(raw)
		return Int64(name, n), err
	case KindUint16:
		n, err := toUint64(raw)
		return Uint16(name, uint16(n)), err
	case KindUint32:
		n, err := toUint64(raw)
		return Uint32(name, uint32(n)), err
	case KindUint64:
		n, err := toUint64(raw)
		return Uint64(name, n), err
	case KindFloat32:
		f, err := toFloat64(raw)
		return Float32(name, float32(f)), err
	case KindFloat64:
		f, err := toFloat64(raw)
		return Float64(name, f), err
	case KindString:
		s, _ := raw.(string)
		return String(name, s), nil
	case KindBytes:
		switch b := raw.(type) {
		case []byte:
			return Bytes(name, append([]byte(nil), b...)), nil
		case string:
			buf, err := base64.StdEncoding.DecodeString(b)
			if err != nil {
				return Value{}, cverrors.Wrap(cverrors.BadString, err, "decode json: bytes payload")
			}
			return Bytes(name, buf), nil
		}
		return Value{}, cverrors.New(cverrors.TypeMismatch, "decode json: expected bytes payload")
	}
	return Value{}, cverrors.New(cverrors.UnknownKind, "decode json: unreachable scalar kind")
}

func toInt64(raw any) (int64, error) {
	switch n := raw.(type) {
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	}
	return 0, cverrors.New(cverrors.TypeMismatch, "decode json: expected integer")
}

func toUint64(raw any) (uint64, error) {
	switch n := raw.(type) {
	case uint64:
		return n, nil
	case int64:
		return uint64(n), nil
	case float64:
		return uint64(n), nil
	}
	return 0, cverrors.New(cverrors.TypeMismatch, "decode json: expected unsigned integer")
}

func toFloat64(raw any) (float64, error) {
	switch n := raw.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	}
	return 0, cverrors.New(cverrors.TypeMismatch, "decode json: expected number")
}
