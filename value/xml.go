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
	"encoding/xml"
	"strconv"
	"unsafe"

	cverrors "github.com/coreval/coreval/errors"
)

// xmlNode is the non-canonical interoperability shape:
//
//	<value name="..." type="...">...</value>
//
// A scalar value's text is its literal representation; a composite
// value's children are nested <value> elements, each self-describing.
// No third-party XML library in the retrieved examples offers anything
// encoding/xml doesn't (see DESIGN.md); this codec is the one place
// coreval uses the standard library for a wire format.
type xmlNode struct {
	XMLName  xml.Name  `xml:"value"`
	Name     string    `xml:"name,attr,omitempty"`
	Type     string    `xml:"type,attr"`
	Text     string    `xml:",chardata"`
	Children []xmlNode `xml:"value"`
}

// EncodeXML renders v as an XML document.
func EncodeXML(v Value) ([]byte, error) {
	node, err := xmlNodeFrom(v, make([]unsafe.Pointer, 0, 8))
	if err != nil {
		return nil, err
	}
	out, err := xml.MarshalIndent(node, "", "  ")
	if err != nil {
		return nil, cverrors.Wrap(cverrors.BadString, err, "encode xml")
	}
	return out, nil
}

// xmlNodeFrom renders v as an xmlNode. visiting tracks the identity of
// composite values currently on the recursion stack, mirroring
// binaryEncoder's cycle check, so a value that recursively contains
// itself fails with CycleDetected instead of recursing forever.
func xmlNodeFrom(v Value, visiting []unsafe.Pointer) (xmlNode, error) {
	node := xmlNode{Name: v.name, Type: v.kind.String()}
	if v.kind.IsComposite() {
		id := v.identity()
		if id != nil {
			for _, seen := range visiting {
				if seen == id {
					return xmlNode{}, cverrors.New(cverrors.CycleDetected, "encode xml: value contains itself")
				}
			}
			visiting = append(visiting, id)
		}
		node.Children = make([]xmlNode, len(v.children))
		for i, child := range v.children {
			childNode, err := xmlNodeFrom(child, visiting)
			if err != nil {
				return xmlNode{}, err
			}
			node.Children[i] = childNode
		}
		return node, nil
	}
	text, err := xmlScalarText(v)
	if err != nil {
		return xmlNode{}, err
	}
	node.Text = text
	return node, nil
}

func xmlScalarText(v Value) (string, error) {
	switch v.kind {
	case KindNull:
		return "", nil
	case KindBool:
		return strconv.FormatBool(v.b), nil
	case KindInt16, KindInt32, KindInt64, KindInt64Alias:
		return strconv.FormatInt(v.i64, 10), nil
	case KindUint16, KindUint32, KindUint64, KindUint64Alias:
		return strconv.FormatUint(v.u64, 10), nil
	case KindFloat32:
		return strconv.FormatFloat(float64(v.f32), 'g', -1, 32), nil
	case KindFloat64:
		return strconv.FormatFloat(v.f64, 'g', -1, 64), nil
	case KindString:
		return v.str, nil
	case KindBytes:
		return base64.StdEncoding.EncodeToString(v.buf), nil
	}
	return "", cverrors.New(cverrors.UnknownKind, "encode xml: unreachable kind")
}

// DecodeXML parses a document produced by EncodeXML back into a Value.
// Nesting beyond DefaultMaxDepth fails with errors.DepthExceeded.
func DecodeXML(data []byte) (Value, error) {
	var node xmlNode
	if err := xml.Unmarshal(data, &node); err != nil {
		return Value{}, cverrors.Wrap(cverrors.Truncated, err, "decode xml")
	}
	return valueFromXMLNode(node, 0, DefaultMaxDepth)
}

// valueFromXMLNode converts a parsed xmlNode back into a Value. depth
// counts composite nesting seen so far; exceeding maxDepth fails with
// DepthExceeded rather than recursing without bound.
func valueFromXMLNode(node xmlNode, depth, maxDepth int) (Value, error) {
	if depth > maxDepth {
		return Value{}, cverrors.New(cverrors.DepthExceeded, "decode xml: maximum nesting depth exceeded")
	}

	kind, ok := kindByName[node.Type]
	if !ok {
		return Value{}, cverrors.New(cverrors.UnknownKind, "decode xml: unknown type attribute")
	}
	if kind.IsComposite() {
		children := make([]Value, len(node.Children))
		for i, childNode := range node.Children {
			child, err := valueFromXMLNode(childNode, depth+1, maxDepth)
			if err != nil {
				return Value{}, err
			}
			children[i] = child
		}
		if kind == KindArray {
			return Array(node.Name, children), nil
		}
		return Container(node.Name, children), nil
	}
	return scalarFromXMLText(node.Name, kind, node.Text)
}

func scalarFromXMLText(name string, kind Kind, text string) (Value, error) {
	switch kind {
	case KindNull:
		return Null(name), nil
	case KindBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return Value{}, cverrors.Wrap(cverrors.TypeMismatch, err, "decode xml: bool")
		}
		return Bool(name, b), nil
	case KindInt16, KindInt32, KindInt64:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Value{}, cverrors.Wrap(cverrors.TypeMismatch, err, "decode xml: integer")
		}
		switch kind {
		case KindInt16:
			return Int16(name, int16(n)), nil
		case KindInt32:
			return Int32(name, int32(n)), nil
		default:
			return Int64(name, n), nil
		}
	case KindUint16, KindUint32, KindUint64:
		n, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return Value{}, cverrors.Wrap(cverrors.TypeMismatch, err, "decode xml: unsigned integer")
		}
		switch kind {
		case KindUint16:
			return Uint16(name, uint16(n)), nil
		case KindUint32:
			return Uint32(name, uint32(n)), nil
		default:
			return Uint64(name, n), nil
		}
	case KindFloat32:
		f, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return Value{}, cverrors.Wrap(cverrors.TypeMismatch, err, "decode xml: float32")
		}
		return Float32(name, float32(f)), nil
	case KindFloat64:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, cverrors.Wrap(cverrors.TypeMismatch, err, "decode xml: float64")
		}
		return Float64(name, f), nil
	case KindString:
		return String(name, text), nil
	case KindBytes:
		buf, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return Value{}, cverrors.Wrap(cverrors.BadString, err, "decode xml: bytes payload")
		}
		return Bytes(name, buf), nil
	}
	return Value{}, cverrors.New(cverrors.UnknownKind, "decode xml: unreachable scalar kind")
}
