// Copyright 2025 The Linkhash Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package linkhash

// Entry is a handle to a key/value pair stored in a Map. Entries are
// allocated individually and never move in memory: a rehash only
// relocates the pointer held in the slot array, so an Entry obtained
// from Find or Front stays valid across inserts of other keys and
// across growth, and is invalidated only when its key is deleted or
// the map is cleared or reassigned.
//
// Two handles refer to the same pair exactly when the pointers are
// equal, which makes pointer comparison the iterator equality of the
// map. A nil *Entry is the end marker.
type Entry[K comparable, V any] struct {
	// next and prev link the entry into the map's circular
	// insertion-order chain. The chain owns nothing; the map owns the
	// entries.
	next, prev *Entry[K, V]
	// m is the owning map, nil once the entry has been removed. The
	// sentinel root embedded in Map leaves it nil as well, which is
	// what stops Next at the end of the chain.
	m *Map[K, V]
	// slot is the entry's current index in the owning map's slot
	// array. Kept in lockstep by insert, backward-shift deletion, and
	// rehash.
	slot  int
	key   K
	value V
}

// Key returns the entry's key. Keys are immutable after insertion.
func (e *Entry[K, V]) Key() K {
	return e.key
}

// Value returns the entry's current value.
func (e *Entry[K, V]) Value() V {
	return e.value
}

// SetValue replaces the entry's value in place. The entry's key,
// insertion-order position, and slot placement are unaffected.
func (e *Entry[K, V]) SetValue(v V) {
	e.value = v
}

// Next returns the next entry in insertion order, or nil if e is the
// most recently inserted live entry or has been removed from its map.
func (e *Entry[K, V]) Next() *Entry[K, V] {
	if p := e.next; e.m != nil && p != &e.m.root {
		return p
	}
	return nil
}

// link splices e in immediately before at. Inserting before the root
// sentinel appends to the chain.
func (e *Entry[K, V]) link(at *Entry[K, V]) {
	e.prev = at.prev
	e.next = at
	e.prev.next = e
	at.prev = e
}

// unlink removes e from the chain and detaches it from the map.
// Because the chain is circular through the root sentinel, removing
// the first entry needs no special casing: the root's next pointer is
// fixed up like any other neighbor.
func (e *Entry[K, V]) unlink() {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.next = nil
	e.prev = nil
	e.m = nil
}
