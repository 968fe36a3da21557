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

// Package container implements the top-level message facade: a header of
// routing metadata plus a payload store, wrapped in a self-delimiting
// wire format.
package container

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	cverrors "github.com/coreval/coreval/errors"
	"github.com/coreval/coreval/kv"
)

// Header carries the routing metadata that travels alongside every
// payload: where a message came from (and which sub-destination there),
// where it's headed (and which sub-destination there), what kind of
// message it is, and the wire version of the header itself.
type Header struct {
	Source      string
	SourceSub   string
	Target      string
	TargetSub   string
	MessageType string
	Version     uint32
}

// Container pairs an atomically-swappable Header with a payload Cell.
// The header and payload are independent: swapping one never disturbs
// the other, which is what lets a relay rewrite Source/Target in place
// without touching (or even decoding) the payload.
type Container struct {
	header atomic.Pointer[Header]
	cell   *kv.Cell
}

// New returns an empty Container with the zero Header and an empty
// payload store.
func New() *Container {
	c := &Container{cell: kv.NewCell(nil)}
	c.header.Store(&Header{})
	return c
}

// Header returns the container's current header.
func (c *Container) Header() Header {
	return *c.header.Load()
}

// SetHeader atomically replaces the container's header wholesale and
// returns the previous one. Relays that need to exchange source and
// target in place should use SwapHeader instead.
func (c *Container) SetHeader(h Header) Header {
	old := c.header.Swap(&h)
	return *old
}

// SwapHeader atomically exchanges source and target (and their sub
// fields) within the container's own header, leaving MessageType and
// Version untouched, and returns the resulting header. This is what a
// relay bouncing a message back toward its sender uses, rather than
// constructing a whole new Header by hand.
func (c *Container) SwapHeader() Header {
	for {
		old := c.header.Load()
		next := *old
		next.Source, next.Target = old.Target, old.Source
		next.SourceSub, next.TargetSub = old.TargetSub, old.SourceSub
		if c.header.CompareAndSwap(old, &next) {
			return next
		}
	}
}

// Cell returns the container's payload cell for direct reads via
// Cell.Read or mutation via Cell.PublishMutation.
func (c *Container) Cell() *kv.Cell {
	return c.cell
}

// headerOpenToken and friends delimit the literal wire tokens: a header
// section, then a data section, each terminated with a semicolon.
const (
	headerOpenToken  = "@header={"
	headerCloseToken = "};"
	dataOpenToken    = "@data="
	dataCloseToken   = ";"
)

// EncodeBinary renders c as "@header={...};@data=<bytes>;" where the
// header section holds six ";"-terminated key=value segments (source,
// source_sub, target, target_sub, message_type, version, in that order)
// and the data section is the container's payload store in its canonical
// self-delimiting binary form (package kv's EncodeBinary). The data
// section is not itself length-prefixed in the wire token sense -
// DecodeBinary instead relies on kv.DecodeBinaryPrefix reporting exactly
// how many bytes it consumed, so the closing ";" can be found right after
// that point rather than by scanning the payload bytes for a literal
// match, which could collide with payload content that happens to
// contain "};".
func (c *Container) EncodeBinary() (out []byte, err error) {
	h := c.Header()
	headerField := encodeHeaderFields(h)

	var dataBytes []byte
	c.cell.Read(func(s *kv.Snapshot) {
		dataBytes, err = kv.EncodeBinary(s.Store())
	})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(headerOpenToken)
	buf.WriteString(headerField)
	buf.WriteString(headerCloseToken)
	buf.WriteString(dataOpenToken)
	buf.Write(dataBytes)
	buf.WriteString(dataCloseToken)
	return buf.Bytes(), nil
}

func encodeHeaderFields(h Header) string {
	var b strings.Builder
	for _, field := range [][2]string{
		{"source", h.Source},
		{"source_sub", h.SourceSub},
		{"target", h.Target},
		{"target_sub", h.TargetSub},
		{"message_type", h.MessageType},
		{"version", strconv.FormatUint(uint64(h.Version), 10)},
	} {
		b.WriteString(field[0])
		b.WriteByte('=')
		b.WriteString(field[1])
		b.WriteByte(';')
	}
	return b.String()
}

// DecodeBinary parses a document produced by EncodeBinary into a new
// Container.
func DecodeBinary(data []byte, maxValueDepth int) (c *Container, err error) {
	if !bytes.HasPrefix(data, []byte(headerOpenToken)) {
		return nil, cverrors.New(cverrors.Truncated, "container decode: missing @header={ prefix")
	}
	rest := data[len(headerOpenToken):]

	closeIdx := bytes.IndexByte(rest, '}')
	if closeIdx < 0 {
		return nil, cverrors.New(cverrors.Truncated, "container decode: unterminated header section")
	}
	headerField := string(rest[:closeIdx])
	rest = rest[closeIdx:]

	if !bytes.HasPrefix(rest, []byte(headerCloseToken)) {
		return nil, cverrors.New(cverrors.Truncated, "container decode: malformed header terminator")
	}
	rest = rest[len(headerCloseToken):]

	if !bytes.HasPrefix(rest, []byte(dataOpenToken)) {
		return nil, cverrors.New(cverrors.Truncated, "container decode: missing @data= prefix")
	}
	rest = rest[len(dataOpenToken):]

	store, consumed, err := kv.DecodeBinaryPrefix(rest, maxValueDepth)
	if err != nil {
		return nil, err
	}
	rest = rest[consumed:]

	if !bytes.HasPrefix(rest, []byte(dataCloseToken)) {
		return nil, cverrors.New(cverrors.Truncated, "container decode: malformed data terminator")
	}
	rest = rest[len(dataCloseToken):]
	if len(rest) != 0 {
		return nil, cverrors.New(cverrors.TrailingData, "container decode: unconsumed bytes after data section")
	}

	header, err := decodeHeaderFields(headerField)
	if err != nil {
		return nil, err
	}

	c = New()
	c.SetHeader(header)
	c.cell.Publish(kv.SnapshotOf(store))
	return c, nil
}

func decodeHeaderFields(s string) (Header, error) {
	var h Header
	for _, field := range strings.Split(s, ";") {
		if field == "" {
			continue
		}
		kvPair := strings.SplitN(field, "=", 2)
		if len(kvPair) != 2 {
			return Header{}, cverrors.New(cverrors.TypeMismatch, fmt.Sprintf("container decode: malformed header field %q", field))
		}
		key, val := kvPair[0], kvPair[1]
		switch key {
		case "source":
			h.Source = val
		case "source_sub":
			h.SourceSub = val
		case "target":
			h.Target = val
		case "target_sub":
			h.TargetSub = val
		case "message_type":
			h.MessageType = val
		case "version":
			n, err := strconv.ParseUint(val, 10, 32)
			if err != nil {
				return Header{}, cverrors.Wrap(cverrors.TypeMismatch, err, "container decode: header version")
			}
			h.Version = uint32(n)
		}
	}
	return h, nil
}
