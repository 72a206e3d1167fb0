/*
 * Copyright 2025 The wtinylfu Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// The count-min sketch here carries the "freshness" mechanism described in
// the original TinyLFU paper [1]: the container periodically decays every
// counter so that ancient frequency does not dominate current frequency.
//
// [1]: https://arxiv.org/abs/1512.00727
package wtinylfu

import "math"

const (
	// cmDepth is the number of counter rows. Four hashes keep the
	// over-approximation within the configured error threshold.
	cmDepth = 4
)

// cmSeeds are the per-row hash seeds. They are fixed so that a sketch
// rebuilt after restoring a snapshot indexes counters identically; the
// serialized form never needs to carry them.
var cmSeeds = [cmDepth]uint64{
	0x9ae16a3b2f90404f,
	0xc3a5c85c97cb3127,
	0xb492b66fbe98f273,
	0x9ddfea08eb382d69,
}

// cmSketch is a count-min sketch with 32-bit saturating counters. The width
// is chosen by the container so that saturation is practically unreachable
// within one decay window.
type cmSketch struct {
	rows [cmDepth]cmRow
	mask uint64
}

// newCmSketch creates a sketch with numCounters counters per row, rounded up
// to the next power of two. Panics if numCounters is not positive; the
// container always sizes it from a non-zero window.
func newCmSketch(numCounters int64) *cmSketch {
	if numCounters <= 0 {
		panic("cmSketch: bad numCounters")
	}
	numCounters = next2Power(numCounters)
	s := &cmSketch{mask: uint64(numCounters - 1)}
	for i := 0; i < cmDepth; i++ {
		s.rows[i] = make(cmRow, numCounters)
	}
	return s
}

func circRightShift(x uint64, shift uint) uint64 {
	return (x << (64 - shift)) | (x >> shift)
}

// spread applies a supplemental hash function to a given hash, defending
// against poor quality incoming hashes.
func spread(x uint64) uint64 {
	x = (circRightShift(x, 16) ^ x) * 0x45d9f3b
	x = (circRightShift(x, 16) ^ x) * 0x45d9f3b
	return circRightShift(x, 16) ^ x
}

// index returns the counter position in the given row for the hashed key.
func (s *cmSketch) index(hashed uint64, row int) uint64 {
	return spread(hashed^cmSeeds[row]) & s.mask
}

// Increment bumps the counter for the hashed key in every row, saturating
// rather than wrapping.
func (s *cmSketch) Increment(hashed uint64) {
	for i := 0; i < cmDepth; i++ {
		s.rows[i].increment(s.index(hashed, i))
	}
}

// GetCount estimates the frequency of the hashed key as the minimum counter
// across the rows.
func (s *cmSketch) GetCount(hashed uint64) uint32 {
	min := s.rows[0].get(s.index(hashed, 0))
	for i := 1; i < cmDepth; i++ {
		if v := s.rows[i].get(s.index(hashed, i)); v < min {
			min = v
		}
	}
	return min
}

// DecayCountsBy scales every counter by factor. The container uses 0.5 to
// halve counts at the end of each window.
func (s *cmSketch) DecayCountsBy(factor float64) {
	for _, r := range s.rows {
		r.decayBy(factor)
	}
}

// ByteSize returns the memory footprint of the counters, for reporting.
func (s *cmSketch) ByteSize() uint64 {
	var n uint64
	for _, r := range s.rows {
		n += uint64(len(r)) * 4
	}
	return n
}

// width returns the number of counters per row.
func (s *cmSketch) width() int64 {
	return int64(s.mask + 1)
}

// cmRow is one row of counters.
type cmRow []uint32

func (r cmRow) get(n uint64) uint32 { return r[n] }

func (r cmRow) increment(n uint64) {
	if r[n] < math.MaxUint32 {
		r[n]++
	}
}

func (r cmRow) decayBy(factor float64) {
	for i, v := range r {
		if v != 0 {
			r[i] = uint32(float64(v) * factor)
		}
	}
}

// next2Power rounds x up to the next power of 2, if it's not already one.
func next2Power(x int64) int64 {
	x--
	x |= x >> 1
	x |= x >> 2
	x |= x >> 4
	x |= x >> 8
	x |= x >> 16
	x |= x >> 32
	x++
	return x
}
