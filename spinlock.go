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
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// spinLock serializes all container mutations. Critical sections are short
// (pointer splices and a handful of counter bumps), so spinning beats
// parking. The lock word sits on its own cache line; neighbouring container
// fields would otherwise share it and bounce under contention.
type spinLock struct {
	_     cpu.CacheLinePad
	state uint32
	_     cpu.CacheLinePad
}

func (l *spinLock) Lock() {
	for !atomic.CompareAndSwapUint32(&l.state, 0, 1) {
		runtime.Gosched()
	}
}

// TryLock acquires the lock only if it is free. recordAccess uses this in
// tryLockUpdate mode as back-pressure on hot keys.
func (l *spinLock) TryLock() bool {
	return atomic.CompareAndSwapUint32(&l.state, 0, 1)
}

func (l *spinLock) Unlock() {
	atomic.StoreUint32(&l.state, 0)
}
