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

package wtinylfu

import (
	"encoding/binary"
	"encoding/json"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// Snapshot is an opaque, serializable image of the container: the
// configuration, the order of each segment as a sequence of entry
// fingerprints (head to tail), and optionally the frequency counters.
//
// Serialization must happen without any reader or writer present; modifying
// the container afterwards leaves the snapshot describing a state that no
// longer exists.
type Snapshot struct {
	Config Config `json:"config"`

	// Lrus holds the per-segment entry fingerprints, indexed by LruType,
	// ordered head to tail.
	Lrus [numLruTypes][]uint64 `json:"lrus"`

	// SketchCounters is the snappy-compressed frequency counter payload, or
	// nil when the sketch was dropped. Restore tolerates its absence and
	// rebuilds the sketch empty.
	SketchCounters []byte `json:"sketchCounters,omitempty"`

	// SketchWidth is the per-row counter count the payload was taken at.
	SketchWidth int64 `json:"sketchWidth,omitempty"`
}

// A SaveOption adjusts what SaveState captures.
type SaveOption func(*saveOptions)

type saveOptions struct {
	withSketch bool
}

// WithSketchState includes the frequency counters in the snapshot. The
// counters are mostly zero, so they compress well.
func WithSketchState() SaveOption {
	return func(o *saveOptions) {
		o.withSketch = true
	}
}

// SaveState captures the container for persistence. The live refresh time is
// folded into the saved config so a restored container resumes with it.
func (c *Container) SaveState(opts ...SaveOption) Snapshot {
	var o saveOptions
	for _, opt := range opts {
		opt(&o)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{Config: c.config}
	snap.Config.DefaultLruRefreshTime = c.lruRefreshTime.Load()
	for t := Main; t < numLruTypes; t++ {
		l := c.lru.getList(t)
		ids := make([]uint64, 0, l.Len())
		for e := l.Head(); e != nil; e = l.Next(e) {
			ids = append(ids, fingerprintEntry(e))
		}
		snap.Lrus[t] = ids
	}
	if o.withSketch {
		snap.SketchCounters = snappy.Encode(nil, encodeCounters(c.accessFreq))
		snap.SketchWidth = c.accessFreq.width()
	}
	return snap
}

// RestoreContainer rebuilds a container from a snapshot. Entries are
// resolved by their snapshot fingerprint through resolve; every fingerprint
// must resolve to a distinct entry that is not in any container. The sketch
// payload is applied only when it still matches the width the restored
// container sizes its sketch to; otherwise the counters rebuild lazily.
func RestoreContainer(snap Snapshot, resolve func(id uint64) Entry, opts ...Option) (*Container, error) {
	c, err := NewContainer(snap.Config, opts...)
	if err != nil {
		return nil, err
	}

	for t := Main; t < numLruTypes; t++ {
		for _, id := range snap.Lrus[t] {
			e := resolve(id)
			if e == nil {
				return nil, errors.Errorf("snapshot references unknown entry %#x in %s", id, t)
			}
			if e.IsInMMContainer() {
				return nil, errors.Errorf("snapshot entry %#x already in a container", id)
			}
			c.lru.getList(t).LinkAtTail(e)
			switch t {
			case Tiny:
				markTiny(e)
			case Probation:
				markProbation(e)
			}
			e.MarkInMMContainer()
		}
	}
	c.maybeGrowCountersLocked()

	if snap.SketchCounters != nil && snap.SketchWidth == c.accessFreq.width() {
		raw, err := snappy.Decode(nil, snap.SketchCounters)
		if err != nil {
			return nil, errors.Wrap(err, "decompressing sketch counters")
		}
		if err := decodeCounters(c.accessFreq, raw); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MarshalBinary serializes the snapshot.
func (s Snapshot) MarshalBinary() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling snapshot")
	}
	return data, nil
}

// UnmarshalBinary deserializes a snapshot produced by MarshalBinary.
func (s *Snapshot) UnmarshalBinary(data []byte) error {
	if err := json.Unmarshal(data, s); err != nil {
		return errors.Wrap(err, "unmarshaling snapshot")
	}
	return nil
}

func encodeCounters(s *cmSketch) []byte {
	buf := make([]byte, 0, s.ByteSize())
	for _, r := range s.rows {
		for _, v := range r {
			buf = binary.LittleEndian.AppendUint32(buf, v)
		}
	}
	return buf
}

func decodeCounters(s *cmSketch, raw []byte) error {
	if uint64(len(raw)) != s.ByteSize() {
		return errors.Errorf("sketch payload is %d bytes, want %d", len(raw), s.ByteSize())
	}
	for _, r := range s.rows {
		for i := range r {
			r[i] = binary.LittleEndian.Uint32(raw)
			raw = raw[4:]
		}
	}
	return nil
}
