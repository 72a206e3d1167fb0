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
	"fmt"

	"github.com/dustin/go-humanize"
)

// ContainerStat is a point-in-time snapshot of the container's state.
type ContainerStat struct {
	// Size is the number of entries across all segments.
	Size uint64

	// OldestTimeSec is the update time of the coldest entry, or 0 when the
	// container is empty.
	OldestTimeSec uint32

	// LruRefreshTime is the refresh interval currently in force.
	LruRefreshTime uint32

	// Reserved per-segment access counters. Always zero for now.
	NumHotAccesses  uint64
	NumColdAccesses uint64
	NumWarmAccesses uint64
	NumTailAccesses uint64
}

// EvictionAgeStat describes how old the protected segment's eviction
// candidates are.
type EvictionAgeStat struct {
	// OldestElementAge is the age in seconds of Main's tail, or 0 when Main
	// is empty.
	OldestElementAge uint32

	// Size is the number of entries in Main.
	Size uint64

	// ProjectedAge is the age of the entry that would become Main's tail
	// after the projected number of evictions, or OldestElementAge if Main
	// is shorter than that.
	ProjectedAge uint32
}

// Stats returns the container stats.
func (c *Container) Stats() ContainerStat {
	c.mu.Lock()
	defer c.mu.Unlock()
	var oldest uint32
	if tail := c.oldestLocked(); tail != nil {
		oldest = getUpdateTime(tail)
	}
	return ContainerStat{
		Size:           uint64(c.lru.size()),
		OldestTimeSec:  oldest,
		LruRefreshTime: c.lruRefreshTime.Load(),
	}
}

// oldestLocked returns the coldest entry in the container: the tail of the
// first non-empty segment in Main, Probation, Tiny order.
func (c *Container) oldestLocked() Entry {
	for t := Main; t < numLruTypes; t++ {
		if tail := c.lru.getList(t).Tail(); tail != nil {
			return tail
		}
	}
	return nil
}

// GetEvictionAgeStat walks the reverse of Main to report the oldest and
// projected candidate ages given a projected number of future evictions.
func (c *Container) GetEvictionAgeStat(projectedLength uint64) EvictionAgeStat {
	curr := c.clock()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictionAgeStatLocked(curr, projectedLength)
}

func (c *Container) evictionAgeStatLocked(currTime uint32, projectedLength uint64) EvictionAgeStat {
	var stat EvictionAgeStat
	mainList := c.lru.getList(Main)
	it := mainList.rbegin()
	if it.valid() {
		stat.OldestElementAge = currTime - getUpdateTime(it.get())
	}
	stat.Size = uint64(mainList.Len())
	for numSeen := uint64(0); numSeen < projectedLength && it.valid(); numSeen++ {
		it.next()
	}
	if it.valid() {
		stat.ProjectedAge = currTime - getUpdateTime(it.get())
	} else {
		stat.ProjectedAge = stat.OldestElementAge
	}
	return stat
}

// String renders a one-line summary of the container for diagnostics.
func (c *Container) String() string {
	c.mu.Lock()
	size := c.lru.size()
	counterBytes := c.accessFreq.ByteSize()
	refresh := c.lruRefreshTime.Load()
	c.mu.Unlock()
	return fmt.Sprintf("wtinylfu: size=%d counters=%s refresh=%ds",
		size, humanize.IBytes(counterBytes), refresh)
}
