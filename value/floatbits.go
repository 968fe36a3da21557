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

import "math"

func float32bits(f float32) uint32    { return math.Float32bits(f) }
func float64bits(f float64) uint64    { return math.Float64bits(f) }
func bitsToFloat32(u uint32) float32  { return math.Float32frombits(u) }
func bitsToFloat64(u uint64) float64  { return math.Float64frombits(u) }
