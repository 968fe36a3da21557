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
	"encoding/binary"

	cvmath "github.com/coreval/coreval/common/math"
	cverrors "github.com/coreval/coreval/errors"
	"github.com/coreval/coreval/value"
)

// EncodeBinary renders every live entry of s, in insertion order, as a
// self-delimiting binary blob: a u32 entry count followed by each
// entry's value.EncodeBinary form (which already carries its own name).
// Self-delimiting means a caller that embeds this blob inside a larger
// frame (package container does, for the message payload section) never
// needs a separate length prefix around the whole thing -
// DecodeBinaryPrefix reports exactly how many bytes it consumed.
func EncodeBinary(s *Store) ([]byte, error) {
	var values []value.Value
	s.ForEach(func(_ string, v value.Value) bool {
		values = append(values, v)
		return true
	})

	if !cvmath.FitsUint32(len(values)) {
		return nil, cverrors.New(cverrors.OutOfMemory, "kv encode: entry count exceeds u32 prefix")
	}
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(len(values)))

	for _, v := range values {
		encoded, err := value.EncodeBinary(v)
		if err != nil {
			return nil, err
		}
		buf = append(buf, encoded...)
	}
	return buf, nil
}

// DecodeBinaryPrefix decodes a Store from the front of data, as produced
// by EncodeBinary, and reports how many bytes it consumed.
func DecodeBinaryPrefix(data []byte, maxValueDepth int) (*Store, int, error) {
	if len(data) < 4 {
		return nil, 0, cverrors.New(cverrors.Truncated, "kv decode: missing entry count prefix")
	}
	count := binary.LittleEndian.Uint32(data)
	pos := 4

	store := NewStore(WithExclusiveOwner())

	for i := uint32(0); i < count; i++ {
		v, n, err := value.DecodeBinary(data[pos:], maxValueDepth)
		if err != nil {
			return nil, 0, err
		}
		pos += n
		store.Insert(v)
	}
	return store, pos, nil
}
