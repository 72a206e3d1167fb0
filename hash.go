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
	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-farm"
)

// hashEntry hashes an entry's key for the frequency sketch.
func hashEntry(e Entry) uint64 {
	return xxhash.Sum64(e.GetKey())
}

// fingerprintEntry returns a second, independent hash of the key. It is the
// stable identifier recorded for the entry in persisted snapshots, so it
// must not collide with the sketch hash on skewed key sets.
func fingerprintEntry(e Entry) uint64 {
	return farm.Fingerprint64(e.GetKey())
}
