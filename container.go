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
	"math"
	"sync/atomic"
)

const (
	// defaultCapacity is the initial cache capacity estimate used to size
	// the count-min sketch before the container has grown past it.
	defaultCapacity = 100

	// errorThreshold bounds the frequency estimation error; each sketch row
	// gets e/errorThreshold counters per window slot (before rounding up to a
	// power of two).
	errorThreshold = 5

	// decayFactor scales the frequency counters at the end of each window.
	decayFactor = 0.5

	// lruRefreshTimeCap is the largest refresh time reconfiguration will
	// derive from the tail age.
	lruRefreshTimeCap = 900

	// neverReconfigure disables reconfiguration when the interval is 0.
	neverReconfigure = math.MaxUint32
)

// Container is the W-TinyLFU policy engine. It tracks externally owned
// entries across the Tiny, Probation and Main segments, consults the
// frequency sketch at segment boundaries to arbitrate admissions, and
// surfaces eviction candidates through EvictionIterator.
//
// All state mutations are serialized under one spin lock; operations that
// complete under the lock are linearizable with respect to each other.
type Container struct {
	mu  spinLock
	lru multiList

	// windowSize counts frequency-generating operations; when it reaches
	// maxWindowSize the counters decay and windowSize is halved rather than
	// reset, which smooths the decay cadence after a burst.
	windowSize    uint64
	maxWindowSize uint64

	// capacity is the container size the sketch was last sized for. It only
	// grows.
	capacity uint64

	nextReconfigureTime uint32

	// lruRefreshTime is read outside the lock on the access path. The value
	// is a heuristic, not a correctness invariant, so relaxed reads are
	// fine.
	lruRefreshTime atomic.Uint32

	config Config

	// accessFreq is the approximate streaming frequency counter. Counts are
	// halved every time maxWindowSize is hit.
	accessFreq *cmSketch

	clock func() uint32
}

// NewContainer creates an empty container. The configuration is validated;
// an invalid field is the only constructor-time failure.
func NewContainer(config Config, opts ...Option) (*Container, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	c := &Container{
		config: config,
		clock:  wallClock,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.maybeGrowCountersLocked()
	c.lruRefreshTime.Store(config.DefaultLruRefreshTime)
	if config.MMReconfigureIntervalSecs == 0 {
		c.nextReconfigureTime = neverReconfigure
	} else {
		c.nextReconfigureTime = c.clock() + config.MMReconfigureIntervalSecs
	}
	return c, nil
}

// RecordAccess records that the entry was accessed. Depending on how long
// ago the entry was last repositioned, this bumps it to the head of its
// segment and may promote it out of probation. Returns true if the entry was
// repositioned.
func (c *Container) RecordAccess(e Entry, mode AccessMode) bool {
	if !c.config.updatesForMode(mode) {
		return false
	}

	curr := c.clock()
	if !e.IsInMMContainer() {
		return false
	}
	if curr < getUpdateTime(e)+c.lruRefreshTime.Load() && isAccessed(e) {
		return false
	}
	if !isAccessed(e) {
		markAccessed(e)
	}

	if c.config.TryLockUpdate {
		if !c.mu.TryLock() {
			return false
		}
	} else {
		c.mu.Lock()
	}
	defer c.mu.Unlock()

	c.reconfigureLocked(curr)
	// Re-check under the lock; a concurrent remove may have won.
	if !e.IsInMMContainer() {
		return false
	}

	lruType := SegmentOf(e)
	c.lru.getList(lruType).MoveToHead(e)

	if lruType == Probation {
		if c.accessFreq.GetCount(hashEntry(e)) > c.config.ProtectionFreq {
			c.lru.getList(Probation).Remove(e)
			c.lru.getList(Main).LinkAtHead(e)
			unmarkProbation(e)
			c.enforceMainCapLocked()
		}
	}
	setUpdateTime(e, curr)
	c.updateFrequenciesLocked(e)
	return true
}

// enforceMainCapLocked demotes Main tails into Probation until the protected
// segment is back within its configured share of the main cache. Demoted
// entries go to Probation's tail: linking them at the head would push fresh
// probation entries toward eviction and shorten their average life cycle.
func (c *Container) enforceMainCapLocked() {
	mainList := c.lru.getList(Main)
	probList := c.lru.getList(Probation)
	for {
		totalMainSize := uint64(mainList.Len() + probList.Len())
		expectedMainSize := c.config.ProtectionSegmentSizePct * totalMainSize / 100
		if uint64(mainList.Len()) <= expectedMainSize {
			return
		}
		mainTail := mainList.Tail()
		if mainTail == nil {
			return
		}
		mainList.Remove(mainTail)
		probList.LinkAtTail(mainTail)
		markProbation(mainTail)
	}
}

// Add links the entry at the head of the tiny cache and marks it as present
// in the container. Returns false if the entry is already in a container; on
// failure the entry is unchanged.
func (c *Container) Add(e Entry) bool {
	currTime := c.clock()
	c.mu.Lock()
	defer c.mu.Unlock()
	if e.IsInMMContainer() {
		return false
	}

	tinyLru := c.lru.getList(Tiny)
	tinyLru.LinkAtHead(e)
	markTiny(e)
	// Initialize the frequency count for this entry.
	c.updateFrequenciesLocked(e)

	// If the tiny cache is full, unconditionally promote its tail to the
	// main cache.
	expectedSize := c.config.TinySizePercent * uint64(c.lru.size()) / 100
	if uint64(tinyLru.Len()) > expectedSize {
		tailNode := tinyLru.Tail()
		tinyLru.Remove(tailNode)
		c.lru.getList(Probation).LinkAtHead(tailNode)
		unmarkTiny(tailNode)
		markProbation(tailNode)
	} else {
		// In case the tiny and probation caches are full, swap the tails if
		// the tiny tail has a higher frequency than the probation tail.
		c.maybePromoteTailLocked()
	}
	// If the number of counters is too small for the cache size, grow them.
	c.maybeGrowCountersLocked()

	e.MarkInMMContainer()
	setUpdateTime(e, currTime)
	unmarkAccessed(e)
	return true
}

// Remove unlinks the entry from its segment and clears its container state.
// Returns false if the entry was not in the container; on failure the entry
// is unchanged.
func (c *Container) Remove(e Entry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !e.IsInMMContainer() {
		return false
	}
	c.removeLocked(e)
	return true
}

// RemoveIterator advances the iterator by one and removes the entry it
// previously pointed at. This is the eviction path: the caller already holds
// the container lock through the iterator.
func (c *Container) RemoveIterator(it *EvictionIterator) {
	e := it.Get()
	it.Next()
	c.removeLocked(e)
}

// removeLocked unlinks the entry from whichever segment its flags place it
// in and clears the container-reserved state.
func (c *Container) removeLocked(e Entry) {
	if isTiny(e) {
		c.lru.getList(Tiny).Remove(e)
		unmarkTiny(e)
	} else if isProbation(e) {
		c.lru.getList(Probation).Remove(e)
		unmarkProbation(e)
	} else {
		c.lru.getList(Main).Remove(e)
	}

	unmarkAccessed(e)
	e.UnmarkInMMContainer()
}

// Replace links newE into oldE's position in the same segment and carries
// over the segment flag, update time and accessed bit. Returns false if oldE
// is not in the container, newE already is, or newE carries stale segment
// flags.
func (c *Container) Replace(oldE, newE Entry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if isTiny(newE) || isProbation(newE) {
		return false
	}
	if !oldE.IsInMMContainer() || newE.IsInMMContainer() {
		return false
	}
	updateTime := getUpdateTime(oldE)

	if isTiny(oldE) {
		c.lru.getList(Tiny).Replace(oldE, newE)
		unmarkTiny(oldE)
		markTiny(newE)
	} else if isProbation(oldE) {
		c.lru.getList(Probation).Replace(oldE, newE)
		unmarkProbation(oldE)
		markProbation(newE)
	} else {
		c.lru.getList(Main).Replace(oldE, newE)
	}

	oldE.UnmarkInMMContainer()
	newE.MarkInMMContainer()
	setUpdateTime(newE, updateTime)
	if isAccessed(oldE) {
		markAccessed(newE)
	} else {
		unmarkAccessed(newE)
	}
	return true
}

// maybePromoteTailLocked arbitrates the tiny/probation boundary: if the tiny
// tail's frequency beats the probation tail's, the two swap segments.
// Otherwise the probation tail is rotated to its head; a stubborn
// high-frequency entry at the probation tail could otherwise block
// promotions from tiny indefinitely.
func (c *Container) maybePromoteTailLocked() {
	probationNode := c.lru.getList(Probation).Tail()
	if probationNode == nil {
		return
	}
	tinyNode := c.lru.getList(Tiny).Tail()
	if tinyNode == nil {
		return
	}

	if c.admitToProbation(tinyNode, probationNode) {
		c.lru.getList(Tiny).Remove(tinyNode)
		c.lru.getList(Probation).LinkAtHead(tinyNode)
		unmarkTiny(tinyNode)
		markProbation(tinyNode)
		c.lru.getList(Probation).Remove(probationNode)
		c.lru.getList(Tiny).LinkAtTail(probationNode)
		unmarkProbation(probationNode)
		markTiny(probationNode)
		return
	}

	c.lru.getList(Probation).MoveToHead(probationNode)
}

// admitToProbation returns true if the tiny entry deserves the probation
// entry's slot, i.e. its estimated frequency is higher (or ties, when
// newcomers win ties). The eviction iterator uses the same predicate as a
// tie-breaker between the Tiny and Probation tails.
func (c *Container) admitToProbation(tinyNode, mainNode Entry) bool {
	tinyFreq := c.accessFreq.GetCount(hashEntry(tinyNode))
	mainFreq := c.accessFreq.GetCount(hashEntry(mainNode))
	if c.config.NewcomerWinsOnTie {
		return tinyFreq >= mainFreq
	}
	return tinyFreq > mainFreq
}

// updateFrequenciesLocked bumps the entry's frequency count and decays all
// counts at the end of each window. The decay keeps items that were hot but
// have gone cold from staying in cache forever. windowSize is halved rather
// than zeroed so a burst does not cause back-to-back decays.
func (c *Container) updateFrequenciesLocked(e Entry) {
	c.accessFreq.Increment(hashEntry(e))
	c.windowSize++
	if c.windowSize == c.maxWindowSize {
		c.windowSize >>= 1
		c.accessFreq.DecayCountsBy(decayFactor)
	}
}

// maybeGrowCountersLocked re-sizes the frequency counters when the container
// has outgrown them. Counter history is discarded on growth; the sketch
// rebuilds within one window.
func (c *Container) maybeGrowCountersLocked() {
	size := uint64(c.lru.size())
	// Recreate the counters only once the container has doubled past the
	// capacity they were sized for.
	if 2*c.capacity > size {
		return
	}

	c.capacity = size
	if c.capacity < defaultCapacity {
		c.capacity = defaultCapacity
	}

	// The window counter is incremented on every fetch; when it reaches
	// maxWindowSize the frequency counts are halved and the counter drops to
	// maxWindowSize/2, so after the first decay the counts are halved every
	// maxWindowSize/2 fetches.
	c.windowSize = 0
	c.maxWindowSize = c.capacity * c.config.WindowToCacheSizeRatio

	// Number of frequency counters: e times the window size divided by the
	// error threshold; newCmSketch rounds it up to a power of two.
	numCounters := int64(math.E * float64(c.maxWindowSize) / errorThreshold)
	c.accessFreq = newCmSketch(numCounters)
}

// reconfigureLocked recomputes the refresh time from the protected segment's
// tail age, at most once per configured interval.
func (c *Container) reconfigureLocked(currTime uint32) {
	if currTime < c.nextReconfigureTime {
		return
	}
	c.nextReconfigureTime = currTime + c.config.MMReconfigureIntervalSecs

	stat := c.evictionAgeStatLocked(currTime, 0)
	lruRefreshTime := uint32(float64(stat.OldestElementAge) * c.config.LruRefreshRatio)
	if lruRefreshTime < c.config.DefaultLruRefreshTime {
		lruRefreshTime = c.config.DefaultLruRefreshTime
	}
	if lruRefreshTime > lruRefreshTimeCap {
		lruRefreshTime = lruRefreshTimeCap
	}
	c.lruRefreshTime.Store(lruRefreshTime)
}

// IsEmpty reports whether the container holds no entries.
func (c *Container) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.size() == 0
}

// Size returns the number of entries across all segments.
func (c *Container) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.size()
}

// CounterSize returns the memory footprint of the frequency counters in
// bytes.
func (c *Container) CounterSize() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessFreq.ByteSize()
}

// GetConfig returns a copy of the active configuration.
func (c *Container) GetConfig() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

// SetConfig swaps the configuration and re-derives the refresh schedule.
func (c *Container) SetConfig(config Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config = config
	c.lruRefreshTime.Store(config.DefaultLruRefreshTime)
	if config.MMReconfigureIntervalSecs == 0 {
		c.nextReconfigureTime = neverReconfigure
	} else {
		c.nextReconfigureTime = c.clock() + config.MMReconfigureIntervalSecs
	}
	return nil
}

// WithContainerLock runs f under the container lock.
func (c *Container) WithContainerLock(f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f()
}
