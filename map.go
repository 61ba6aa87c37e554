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

// Package linkhash implements an insertion-ordered hash map: a mapping
// from unique keys to values that iterates in the order in which live
// keys were first inserted, independent of their hash placement.
//
// # Layout
//
// The table stores one entry pointer per slot in a flat array whose
// length (the capacity) is a power of two, starting at 1 and only ever
// doubling. A key's home position is hash(key) masked to the capacity,
// and collisions are resolved by linear cyclic probing: lookup scans
// forward from the home position until it finds the key or an empty
// slot. The table never fills completely (growth triggers at a load
// factor of 3/4), so every probe terminates.
//
// Deletion repairs the probe sequence with backward-shift compaction
// instead of tombstones: after a slot is freed, subsequent entries in
// the cluster whose home position does not pin them past the hole are
// pulled back into it. Lookups therefore never pay for prior
// deletions, and no cleanup rehash is ever needed. Capacity never
// shrinks; see the note on Delete.
//
// # Insertion order
//
// Entries are threaded on a doubly-linked chain rooted at a sentinel
// embedded in the Map. The chain is maintained in parallel with slot
// placement but is untouched by growth: a rehash re-places the slot
// pointers while walking the chain, so iteration order survives any
// number of resizes. Entries are allocated individually and never move
// in memory, which is what lets Ref hand out value pointers and Find
// hand out Entry handles that stay valid across rehashes.
//
// # No-overwrite insert
//
// Insert deliberately does not overwrite: the value bound by the first
// successful insert of a key wins until that key is deleted. This is a
// load-bearing contract (FromPairs, Collect, Clone, and CopyFrom all
// rely on first-write-wins for duplicate keys); use Ref or
// Entry.SetValue to update a value in place.
//
// A Map is NOT goroutine-safe.
package linkhash

import (
	"errors"
	"fmt"
	"hash/maphash"
	"iter"
	"strings"
)

// ErrKeyNotFound is returned by At when the requested key is not
// present. Use errors.Is to test for it.
var ErrKeyNotFound = errors.New("linkhash: key not found")

// Pair is a key/value pair, used by FromPairs and for assembling
// literal maps at call sites.
type Pair[K comparable, V any] struct {
	Key   K
	Value V
}

// Map is an insertion-ordered map from keys of type K to values of
// type V. By default a Map[K,V] hashes keys the same way Go's builtin
// map[K]V does; a different hash function can be specified with the
// WithHash option.
//
// The zero value for a Map is not usable; construct one with New,
// Collect, or FromPairs. A Map is NOT goroutine-safe.
type Map[K comparable, V any] struct {
	// The hash function applied to keys, seeded per map so that slot
	// placement is not predictable across processes.
	hash HashFn[K]
	seed maphash.Seed
	// slots holds one optional entry pointer per slot. len(slots) is
	// the capacity: always a power of two, so reduction of a hash to a
	// slot index is a mask rather than a modulo.
	slots []*Entry[K, V]
	// root is the sentinel of the circular insertion-order chain.
	// root.next is the least recently inserted live entry and
	// root.prev the most recent; both point at root when the map is
	// empty.
	root Entry[K, V]
	// The number of live entries. Always strictly less than
	// len(slots), which is what guarantees probe termination.
	used int
}

// New constructs a Map with capacity for at least initialCapacity
// entries before the first growth. An initialCapacity of 0 starts the
// map at capacity 1 and lets it double on demand.
func New[K comparable, V any](initialCapacity int, options ...option[K, V]) *Map[K, V] {
	m := &Map[K, V]{
		hash: defaultHasher[K](),
		seed: maphash.MakeSeed(),
	}
	for _, op := range options {
		op.apply(m)
	}
	m.init(initialCapacity)
	m.checkInvariants()
	return m
}

// Collect constructs a Map from the pairs produced by seq, inserted in
// sequence order. Per the no-overwrite contract of Insert, a duplicate
// key keeps the value from its first occurrence.
func Collect[K comparable, V any](seq iter.Seq2[K, V], options ...option[K, V]) *Map[K, V] {
	m := New[K, V](0, options...)
	for k, v := range seq {
		m.Insert(k, v)
	}
	return m
}

// FromPairs constructs a Map from a literal list of pairs, inserted in
// order. A duplicate key keeps the value from its first occurrence.
func FromPairs[K comparable, V any](pairs []Pair[K, V], options ...option[K, V]) *Map[K, V] {
	m := New[K, V](len(pairs), options...)
	for _, p := range pairs {
		m.Insert(p.Key, p.Value)
	}
	return m
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.used
}

// Empty reports whether the map contains no entries.
func (m *Map[K, V]) Empty() bool {
	return m.used == 0
}

// Hasher returns the hash function the map applies to keys.
func (m *Map[K, V]) Hasher() HashFn[K] {
	return m.hash
}

// Insert adds key with the given value. If key is already present the
// call is a no-op and the existing value is NOT overwritten: the first
// write wins. Use Ref or Entry.SetValue to update in place.
func (m *Map[K, V]) Insert(key K, value V) {
	pos := m.locate(key)
	if m.slots[pos] == nil {
		m.insertAt(pos, key, value)
	}
}

// Ref returns a pointer to the value stored for key, inserting the
// zero value first if key is absent. The pointer stays valid across
// growth and inserts of other keys, and is invalidated only when key
// is deleted or the map is cleared or reassigned.
func (m *Map[K, V]) Ref(key K) *V {
	pos := m.locate(key)
	e := m.slots[pos]
	if e == nil {
		var zero V
		e = m.insertAt(pos, key, zero)
	}
	return &e.value
}

// Get returns the value stored for key, with ok=false if key is not
// present. Get never mutates the map.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	if e := m.slots[m.locate(key)]; e != nil {
		return e.value, true
	}
	return value, false
}

// At returns the value stored for key, or an error wrapping
// ErrKeyNotFound if key is absent. Unlike Ref it never inserts.
func (m *Map[K, V]) At(key K) (V, error) {
	if e := m.slots[m.locate(key)]; e != nil {
		return e.value, nil
	}
	var zero V
	return zero, fmt.Errorf("%w: %v", ErrKeyNotFound, key)
}

// Find returns the entry for key, or nil if key is not present. Entry
// handles compare by pointer identity.
func (m *Map[K, V]) Find(key K) *Entry[K, V] {
	return m.slots[m.locate(key)]
}

// Front returns the least recently inserted live entry, or nil if the
// map is empty. Walk forward with Entry.Next.
func (m *Map[K, V]) Front() *Entry[K, V] {
	if e := m.root.next; e != &m.root {
		return e
	}
	return nil
}

// Delete removes key from the map. Deleting an absent key is a no-op.
//
// Removal frees the key's slot and then runs backward-shift
// compaction: entries following the hole in probe order are pulled
// back into it whenever their home position does not require them to
// stay past it, restoring the invariant that a probe from any live
// key's home position to its slot crosses no empty slot. Capacity is
// never reduced by deletion.
func (m *Map[K, V]) Delete(key K) {
	pos := m.locate(key)
	e := m.slots[pos]
	if e == nil {
		return
	}
	m.slots[pos] = nil
	e.unlink()
	m.used--

	next := m.nextDisplaceable(pos)
	for m.slots[next] != nil {
		m.slots[pos] = m.slots[next]
		m.slots[next] = nil
		m.slots[pos].slot = pos
		pos = next
		next = m.nextDisplaceable(pos)
	}

	// The trigger only ever grows the table; after a deletion it
	// cannot fire, but it is evaluated after every mutation.
	m.maybeGrow()
	m.checkInvariants()
}

// Clear removes every entry. Capacity is retained, matching the
// grow-only policy, and the map remains usable.
func (m *Map[K, V]) Clear() {
	for e := m.root.next; e != &m.root; {
		next := e.next
		m.slots[e.slot] = nil
		e.next = nil
		e.prev = nil
		e.m = nil
		e = next
	}
	m.root.next = &m.root
	m.root.prev = &m.root
	m.used = 0
	m.checkInvariants()
}

// Clone returns a copy of the map holding the same pairs in the same
// insertion order, using the same hash function and seed. The copy
// shares no entries with the original.
func (m *Map[K, V]) Clone() *Map[K, V] {
	c := New[K, V](m.used, WithHash[K, V](m.hash), WithSeed[K, V](m.seed))
	for e := m.root.next; e != &m.root; e = e.next {
		c.Insert(e.key, e.value)
	}
	return c
}

// CopyFrom replaces the map's contents with a copy of src's entries in
// src's insertion order. The destination keeps its own hash function
// and seed. Assigning a map to itself is detected and is a no-op.
func (m *Map[K, V]) CopyFrom(src *Map[K, V]) {
	if m == src {
		return
	}
	m.Clear()
	for e := src.root.next; e != &src.root; e = e.next {
		m.Insert(e.key, e.value)
	}
}

// All calls yield for each key and value in insertion order, stopping
// early if yield returns false. It can be used directly in a
// range-over-func loop:
//
//	for k, v := range m.All {
//		fmt.Println(k, v)
//	}
//
// The map must not be mutated during iteration; doing so leaves the
// traversal undefined. This precondition is documented rather than
// defended at runtime.
func (m *Map[K, V]) All(yield func(key K, value V) bool) {
	for e := m.root.next; e != &m.root; e = e.next {
		if !yield(e.key, e.value) {
			return
		}
	}
}

// Keys calls yield for each key in insertion order. The same
// no-mutation precondition as All applies.
func (m *Map[K, V]) Keys(yield func(key K) bool) {
	for e := m.root.next; e != &m.root; e = e.next {
		if !yield(e.key) {
			return
		}
	}
}

// Values calls yield for each value in insertion order. The same
// no-mutation precondition as All applies.
func (m *Map[K, V]) Values(yield func(value V) bool) {
	for e := m.root.next; e != &m.root; e = e.next {
		if !yield(e.value) {
			return
		}
	}
}

// capacity returns the size of the slot array. Exposed for testing.
func (m *Map[K, V]) capacity() int {
	return len(m.slots)
}

// init allocates the slot array at the smallest power-of-two capacity
// that keeps initialCapacity entries under the 3/4 load threshold, and
// closes the order chain on the root sentinel.
func (m *Map[K, V]) init(initialCapacity int) {
	capacity := 1
	for capacity*3 <= initialCapacity*4 {
		capacity *= 2
	}
	m.slots = make([]*Entry[K, V], capacity)
	m.root.next = &m.root
	m.root.prev = &m.root
}

// locate returns the slot index for key: scanning cyclically from the
// key's home position, the first slot that is either empty or holds an
// equal key. This is the single probe primitive shared by Get, Find,
// At, Insert, Ref, Delete, and rehash. It terminates because used <
// capacity always holds, so at least one slot is empty.
func (m *Map[K, V]) locate(key K) int {
	mask := len(m.slots) - 1
	i := int(m.hash(key, m.seed) & uint64(mask))
	for {
		e := m.slots[i]
		if e == nil || e.key == key {
			return i
		}
		i = (i + 1) & mask
	}
}

// nextDisplaceable scans forward from pos+1 for the next slot whose
// entry may be moved back into a hole at pos. An occupied slot i is
// displaceable when its home position does not lie in the cyclic range
// [pos+1, i]; if it does, moving it would strand it before its home.
// Reaching an empty slot means nothing further needs to move, and that
// empty index is returned.
func (m *Map[K, V]) nextDisplaceable(pos int) int {
	mask := len(m.slots) - 1
	from := (pos + 1) & mask
	for i := from; ; i = (i + 1) & mask {
		e := m.slots[i]
		if e == nil {
			return i
		}
		home := int(m.hash(e.key, m.seed) & uint64(mask))
		if !inCyclicRange(home, from, i) {
			return i
		}
	}
}

// inCyclicRange reports whether i lies in the cyclic index range
// [from, to]. The range wraps when from > to.
func inCyclicRange(i, from, to int) bool {
	if from <= to {
		return from <= i && i <= to
	}
	return i <= to || from <= i
}

// insertAt allocates an entry for a key known to be absent, links it
// at the tail of the order chain, places it at slot pos, and evaluates
// the growth trigger. The entry is fully constructed before any table
// state is touched, so an allocation failure leaves the map intact.
func (m *Map[K, V]) insertAt(pos int, key K, value V) *Entry[K, V] {
	e := &Entry[K, V]{m: m, slot: pos, key: key, value: value}
	e.link(&m.root)
	m.slots[pos] = e
	m.used++
	m.maybeGrow()
	m.checkInvariants()
	return e
}

// maybeGrow doubles the capacity once the load factor reaches 3/4. A
// single doubling is always enough to get back under the threshold.
// There is no shrink direction: capacity is monotone.
func (m *Map[K, V]) maybeGrow() {
	if m.used*4 >= len(m.slots)*3 {
		m.rehash(2 * len(m.slots))
	}
}

// rehash replaces the slot array with one of newCapacity slots and
// re-places every entry, in chain order, via the normal probe
// primitive. The entries themselves and the order chain are untouched;
// only the slot pointers and each entry's recorded index change, which
// is why value pointers and entry handles survive growth.
func (m *Map[K, V]) rehash(newCapacity int) {
	m.slots = make([]*Entry[K, V], newCapacity)
	for e := m.root.next; e != &m.root; e = e.next {
		pos := m.locate(e.key)
		m.slots[pos] = e
		e.slot = pos
	}
}

// checkInvariants verifies the structural invariants of the table:
// every entry records the slot that holds it, probing from an entry's
// home position to its slot crosses no empty slot, the order chain
// visits exactly the live entries, and the load factor is below the
// growth threshold. Compiled in with the invariants build tag.
func (m *Map[K, V]) checkInvariants() {
	if !invariantsEnabled {
		return
	}
	if m.used >= len(m.slots) || m.used*4 >= len(m.slots)*3 {
		panic(fmt.Sprintf("invariant failed: used=%d capacity=%d\n%s",
			m.used, len(m.slots), m.debugString()))
	}
	mask := len(m.slots) - 1
	for i, e := range m.slots {
		if e == nil {
			continue
		}
		if e.slot != i {
			panic(fmt.Sprintf("invariant failed: slot %d holds entry recording slot %d\n%s",
				i, e.slot, m.debugString()))
		}
		for j := int(m.hash(e.key, m.seed) & uint64(mask)); j != i; j = (j + 1) & mask {
			if m.slots[j] == nil {
				panic(fmt.Sprintf("invariant failed: empty slot %d inside the probe range of %v (slot %d)\n%s",
					j, e.key, i, m.debugString()))
			}
		}
	}
	n := 0
	for e := m.root.next; e != &m.root; e = e.next {
		if e.next.prev != e || e.prev.next != e {
			panic(fmt.Sprintf("invariant failed: broken chain links at %v\n%s",
				e.key, m.debugString()))
		}
		if m.slots[e.slot] != e {
			panic(fmt.Sprintf("invariant failed: chain entry %v not at its recorded slot %d\n%s",
				e.key, e.slot, m.debugString()))
		}
		n++
	}
	if n != m.used {
		panic(fmt.Sprintf("invariant failed: chain holds %d entries, used=%d\n%s",
			n, m.used, m.debugString()))
	}
}

func (m *Map[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  used=%d\n", len(m.slots), m.used)
	mask := len(m.slots) - 1
	for i, e := range m.slots {
		if e == nil {
			fmt.Fprintf(&buf, "  %4d: empty\n", i)
			continue
		}
		home := int(m.hash(e.key, m.seed) & uint64(mask))
		fmt.Fprintf(&buf, "  %4d: %v [home=%d recorded=%d]\n", i, e.key, home, e.slot)
	}
	return buf.String()
}
