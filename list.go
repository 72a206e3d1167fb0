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

// list is a doubly linked list threaded through the Hook embedded in each
// entry. It is based on Go's built-in list.List, but intrusive: the list
// never allocates nodes, which is what makes replace O(1) at the same
// position. An entry may be on at most one list at a time.
type list struct {
	head Entry
	tail Entry
	len  int
}

// Len returns the number of entries in the list.
func (l *list) Len() int { return l.len }

// Head returns the most recently promoted entry or nil if the list is empty.
func (l *list) Head() Entry { return l.head }

// Tail returns the eviction candidate end of the list or nil if the list is
// empty.
func (l *list) Tail() Entry { return l.tail }

// LinkAtHead inserts an unlinked entry at the head.
func (l *list) LinkAtHead(e Entry) {
	h := e.MMHook()
	h.prev = nil
	h.next = l.head
	if l.head != nil {
		l.head.MMHook().prev = e
	} else {
		l.tail = e
	}
	l.head = e
	l.len++
}

// LinkAtTail inserts an unlinked entry at the tail.
func (l *list) LinkAtTail(e Entry) {
	h := e.MMHook()
	h.next = nil
	h.prev = l.tail
	if l.tail != nil {
		l.tail.MMHook().next = e
	} else {
		l.head = e
	}
	l.tail = e
	l.len++
}

// Remove unlinks an entry and clears its hook pointers. The entry must be on
// this list.
func (l *list) Remove(e Entry) {
	h := e.MMHook()
	if h.prev != nil {
		h.prev.MMHook().next = h.next
	} else {
		l.head = h.next
	}
	if h.next != nil {
		h.next.MMHook().prev = h.prev
	} else {
		l.tail = h.prev
	}
	h.next = nil
	h.prev = nil
	l.len--
}

// MoveToHead relinks an entry already on this list at the head.
func (l *list) MoveToHead(e Entry) {
	if l.head == e {
		return
	}
	l.Remove(e)
	l.LinkAtHead(e)
}

// Replace links newE into oldE's position and unlinks oldE, clearing its
// hook. Neighbors on either side are unchanged.
func (l *list) Replace(oldE, newE Entry) {
	oh, nh := oldE.MMHook(), newE.MMHook()
	nh.prev = oh.prev
	nh.next = oh.next
	if oh.prev != nil {
		oh.prev.MMHook().next = newE
	} else {
		l.head = newE
	}
	if oh.next != nil {
		oh.next.MMHook().prev = newE
	} else {
		l.tail = newE
	}
	oh.next = nil
	oh.prev = nil
}

// Next returns the entry after e, toward the tail, or nil.
func (l *list) Next(e Entry) Entry { return e.MMHook().next }

// Prev returns the entry before e, toward the head, or nil.
func (l *list) Prev(e Entry) Entry { return e.MMHook().prev }

// rbegin returns a reverse iterator positioned at the tail.
func (l *list) rbegin() reverseIter { return reverseIter{curr: l.tail} }

// reverseIter walks a list from its tail toward its head. The zero value is
// exhausted.
type reverseIter struct {
	curr Entry
}

func (it *reverseIter) valid() bool { return it.curr != nil }

func (it *reverseIter) get() Entry { return it.curr }

// next advances toward the head. Advancing an exhausted iterator is a no-op.
func (it *reverseIter) next() {
	if it.curr != nil {
		it.curr = it.curr.MMHook().prev
	}
}

// reset exhausts the iterator.
func (it *reverseIter) reset() { it.curr = nil }

// multiList is a fixed-arity array of lists indexed by segment kind.
type multiList struct {
	lists [numLruTypes]list
}

func (m *multiList) getList(t LruType) *list { return &m.lists[t] }

// size returns the total number of entries across all segments.
func (m *multiList) size() int {
	n := 0
	for i := range m.lists {
		n += m.lists[i].Len()
	}
	return n
}
