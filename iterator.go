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

// EvictionIterator is a cursor over the container in eviction priority
// order. It merges reverse iterators over the three segments: candidates
// surface from Tiny and Probation first, with the admission predicate
// breaking the tie between their tails, and Main is only reached once both
// are drained.
//
// The iterator holds the container lock for its entire lifetime, so no other
// container operation can proceed while one is alive, and only one can exist
// per container at a time. Use Destroy (or the scoped
// Container.WithEvictionIterator) to release the lock.
type EvictionIterator struct {
	c *Container

	tIter reverseIter
	pIter reverseIter
	mIter reverseIter

	locked bool
}

// GetEvictionIterator acquires the container lock and returns an iterator
// positioned at the best eviction candidate.
func (c *Container) GetEvictionIterator() *EvictionIterator {
	c.mu.Lock()
	return &EvictionIterator{
		c:      c,
		tIter:  c.lru.getList(Tiny).rbegin(),
		pIter:  c.lru.getList(Probation).rbegin(),
		mIter:  c.lru.getList(Main).rbegin(),
		locked: true,
	}
}

// WithEvictionIterator runs f with an eviction iterator, releasing the
// container lock on every exit path.
func (c *Container) WithEvictionIterator(f func(it *EvictionIterator)) {
	it := c.GetEvictionIterator()
	defer it.Destroy()
	f(it)
}

// cursor picks the sub-iterator holding the current candidate. Tiny wins
// over Probation only when its tail is the weaker entry; Main is never
// preferred while either of the others has a candidate.
func (it *EvictionIterator) cursor() *reverseIter {
	switch {
	case !it.pIter.valid() && !it.mIter.valid():
		return &it.tIter
	case !it.pIter.valid() && !it.tIter.valid():
		return &it.mIter
	case !it.tIter.valid() && !it.mIter.valid():
		return &it.pIter
	case !it.pIter.valid():
		return &it.tIter
	case !it.tIter.valid():
		return &it.pIter
	}
	if !it.c.admitToProbation(it.tIter.get(), it.pIter.get()) {
		return &it.tIter
	}
	return &it.pIter
}

// Valid reports whether the iterator has a current candidate.
func (it *EvictionIterator) Valid() bool {
	return it.tIter.valid() || it.pIter.valid() || it.mIter.valid()
}

// Get returns the current eviction candidate, or nil when exhausted.
func (it *EvictionIterator) Get() Entry {
	return it.cursor().get()
}

// Next advances past the current candidate.
func (it *EvictionIterator) Next() {
	it.cursor().next()
}

// Prev is not supported: eviction order only moves forward.
func (it *EvictionIterator) Prev() {
	panic("wtinylfu: decrementing eviction iterator is not supported")
}

// Reset exhausts all three sub-iterators, invalidating the iterator without
// releasing the lock.
func (it *EvictionIterator) Reset() {
	it.tIter.reset()
	it.pIter.reset()
	it.mIter.reset()
}

// Destroy invalidates the iterator and releases the container lock.
func (it *EvictionIterator) Destroy() {
	it.Reset()
	if it.locked {
		it.locked = false
		it.c.mu.Unlock()
	}
}

// ResetToBegin re-acquires the container lock if Destroy released it and
// rewinds to the best eviction candidate.
func (it *EvictionIterator) ResetToBegin() {
	if !it.locked {
		it.c.mu.Lock()
		it.locked = true
	}
	it.tIter = it.c.lru.getList(Tiny).rbegin()
	it.pIter = it.c.lru.getList(Probation).rbegin()
	it.mIter = it.c.lru.getList(Main).rbegin()
}

// Equal reports whether two iterators belong to the same container and sit
// at the same position in all three segments.
func (it *EvictionIterator) Equal(other *EvictionIterator) bool {
	return it.c == other.c &&
		it.tIter.curr == other.tIter.curr &&
		it.pIter.curr == other.pIter.curr &&
		it.mIter.curr == other.mIter.curr
}
