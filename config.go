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
	"time"

	"github.com/pkg/errors"
)

// AccessMode describes the kind of access being recorded.
type AccessMode int

const (
	AccessModeRead AccessMode = iota
	AccessModeWrite
)

// Config holds the tunables for a Container. Write access to a live
// container's config is serialized through SetConfig; reads of the derived
// refresh time may be racy by design.
type Config struct {
	// DefaultLruRefreshTime is the threshold in seconds compared with an
	// entry's update time to decide whether to reposition it on access. An
	// entry is promoted at most once per refresh interval regardless of how
	// many accesses it gets; the default of 60s keeps contention on the
	// container lock down.
	DefaultLruRefreshTime uint32 `json:"lruRefreshTime"`

	// LruRefreshRatio scales the refresh time with the tail age of the
	// protected segment. If the ratio times the oldest element's age exceeds
	// DefaultLruRefreshTime, the larger value is adopted (capped at
	// lruRefreshTimeCap).
	LruRefreshRatio float64 `json:"lruRefreshRatio"`

	// UpdateOnWrite promotes entries on write accesses.
	UpdateOnWrite bool `json:"updateOnWrite"`

	// UpdateOnRead promotes entries on read accesses.
	UpdateOnRead bool `json:"updateOnRead"`

	// TryLockUpdate makes RecordAccess use a try-lock; a failed acquisition
	// skips the promotion instead of waiting.
	TryLockUpdate bool `json:"tryLockUpdate"`

	// WindowToCacheSizeRatio is the multiplier for the decay window given
	// the cache size. With the default of 32, counters are first halved after
	// 32 x capacity frequency-generating operations; the window counter is
	// itself halved at that point, so later decays follow every 16 x capacity
	// operations.
	WindowToCacheSizeRatio uint64 `json:"windowToCacheSizeRatio"`

	// TinySizePercent is the size of the tiny cache as a percentage of the
	// total. This defaults to 1%; there is no need to tune it.
	TinySizePercent uint64 `json:"tinySizePercent"`

	// MMReconfigureIntervalSecs is the minimum interval between refresh-time
	// recalculations. If 0, reconfigure is never called.
	MMReconfigureIntervalSecs uint32 `json:"mmReconfigureIntervalSecs"`

	// NewcomerWinsOnTie admits the tiny-tail entry over the probation-tail
	// entry when their access frequencies tie. This is fine as a default,
	// but for strictly scan patterns (access a key exactly once and move on)
	// it guarantees a miss, so it can be disabled.
	NewcomerWinsOnTie bool `json:"newcomerWinsOnTie"`

	// ProtectionFreq is the minimum access frequency for promotion from
	// probation into the protected segment.
	ProtectionFreq uint32 `json:"protectionFreq"`

	// ProtectionSegmentSizePct is the size of the protected segment as a
	// percentage of the main cache (protected + probation).
	ProtectionSegmentSizePct uint64 `json:"protectionSegmentSizePct"`
}

// DefaultConfig returns the recommended starting configuration.
func DefaultConfig() Config {
	return Config{
		DefaultLruRefreshTime:     60,
		LruRefreshRatio:           0.0,
		UpdateOnWrite:             false,
		UpdateOnRead:              true,
		TryLockUpdate:             false,
		WindowToCacheSizeRatio:    32,
		TinySizePercent:           1,
		MMReconfigureIntervalSecs: 0,
		NewcomerWinsOnTie:         true,
		ProtectionFreq:            3,
		ProtectionSegmentSizePct:  80,
	}
}

// Validate checks the configured ranges. It is called at construction and on
// SetConfig; an invalid config never reaches a live container.
func (c Config) Validate() error {
	if c.TinySizePercent < 1 || c.TinySizePercent > 50 {
		return errors.Errorf(
			"invalid tiny cache size %d: tiny cache size must be between 1%% and 50%% of total cache size",
			c.TinySizePercent)
	}
	if c.WindowToCacheSizeRatio < 2 || c.WindowToCacheSizeRatio > 128 {
		return errors.Errorf(
			"invalid window to cache size ratio %d: the ratio must be between 2 and 128",
			c.WindowToCacheSizeRatio)
	}
	return nil
}

// updatesForMode reports whether accesses of the given mode reposition
// entries under this config.
func (c Config) updatesForMode(mode AccessMode) bool {
	switch mode {
	case AccessModeWrite:
		return c.UpdateOnWrite
	case AccessModeRead:
		return c.UpdateOnRead
	}
	return false
}

// An Option configures a Container at construction.
type Option func(c *Container)

// WithClock overrides the container's monotonic seconds source. Tests use
// this to drive time deterministically.
func WithClock(clock func() uint32) Option {
	return func(c *Container) {
		c.clock = clock
	}
}

func wallClock() uint32 {
	return uint32(time.Now().Unix())
}
