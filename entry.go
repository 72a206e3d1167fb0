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

// Package wtinylfu implements a W-TinyLFU memory-management container for an
// in-process cache allocator. The container decides which cached entries to
// retain and which to evict based on recency and an approximate frequency
// estimate, and exposes an eviction-order iterator the allocator drains when
// it needs to free space.
//
// The cache is split into three segments: a tiny admission window (typically
// 1% of the total), a probation segment and a protected main segment. An
// entry starts in the tiny window; the main cache uses a segmented LRU for
// long term retention, with entries accessed more than a configured
// threshold promoted into the protected segment (capped at 80% of the main
// cache). A full protected segment demotes into probation rather than
// evicting outright, so the hottest entries are retained and the coldest
// become eligible for eviction first.
package wtinylfu

// Flag identifies one of the container-reserved marker bits on an entry.
// The allocator owns the storage for these bits but must treat them as
// opaque; the container is the only writer.
type Flag uint8

const (
	// flagTiny records that the entry is in the tiny cache.
	flagTiny Flag = 1 << iota
	// flagAccessed records that the entry has been accessed since being
	// written into the cache. RecordAccess repositions an entry whose flag
	// is clear without waiting out the refresh time. The eviction-age
	// projection does not read this flag.
	flagAccessed
	// flagProbation records that the entry is in the probation segment.
	// An entry with neither flagTiny nor flagProbation set is in Main.
	flagProbation
)

// Entry is the collaborator contract the allocator's cached item must
// satisfy. Entries are created and destroyed by the allocator, never by the
// container; the container only threads them onto its segment lists through
// the embedded Hook and flips the reserved flag bits.
type Entry interface {
	// GetKey returns the stable key identifying this entry.
	GetKey() []byte

	// IsInMMContainer reports whether the entry is currently linked into a
	// memory-management container.
	IsInMMContainer() bool
	MarkInMMContainer()
	UnmarkInMMContainer()

	IsFlagSet(f Flag) bool
	SetFlag(f Flag)
	UnSetFlag(f Flag)

	// MMHook returns the intrusive list hook embedded in the entry.
	MMHook() *Hook
}

// Hook carries the intrusive linked-list state for an entry: its neighbors
// within whichever segment list it is on, and the time the container last
// repositioned it. Embed one per entry and return it from MMHook.
type Hook struct {
	next Entry
	prev Entry

	// updateTime is in seconds since a fixed epoch. 32 bits outlast the
	// process by a comfortable margin and keep the hook small.
	updateTime uint32
}

// UpdateTime returns the time the container last repositioned the entry.
func (h *Hook) UpdateTime() uint32 { return h.updateTime }

// SetUpdateTime stamps the hook. The container calls this; the allocator
// should not.
func (h *Hook) SetUpdateTime(t uint32) { h.updateTime = t }

// LruType identifies one of the container's segments.
type LruType int

const (
	// Main is the protected long-term segment.
	Main LruType = iota
	// Probation holds entries admitted from Tiny that have not yet earned
	// protection.
	Probation
	// Tiny is the small admission window new entries enter through.
	Tiny

	numLruTypes
)

func (t LruType) String() string {
	switch t {
	case Main:
		return "main"
	case Probation:
		return "probation"
	case Tiny:
		return "tiny"
	}
	return "unknown"
}

func isTiny(e Entry) bool { return e.IsFlagSet(flagTiny) }

func isAccessed(e Entry) bool { return e.IsFlagSet(flagAccessed) }

func isProbation(e Entry) bool { return e.IsFlagSet(flagProbation) }

func markTiny(e Entry) { e.SetFlag(flagTiny) }

func unmarkTiny(e Entry) { e.UnSetFlag(flagTiny) }

func markAccessed(e Entry) { e.SetFlag(flagAccessed) }

func unmarkAccessed(e Entry) { e.UnSetFlag(flagAccessed) }

func markProbation(e Entry) { e.SetFlag(flagProbation) }

func unmarkProbation(e Entry) { e.UnSetFlag(flagProbation) }

// SegmentOf classifies an entry by its flag bits alone. An entry with
// neither segment bit set is in Main.
func SegmentOf(e Entry) LruType {
	if isTiny(e) {
		return Tiny
	}
	if isProbation(e) {
		return Probation
	}
	return Main
}

func getUpdateTime(e Entry) uint32 { return e.MMHook().UpdateTime() }

func setUpdateTime(e Entry, t uint32) { e.MMHook().SetUpdateTime(t) }
