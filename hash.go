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

import "hash/maphash"

// HashFn hashes a key of type K with the given seed. The default hash
// function for a Map is the runtime's hasher for K, exposed by
// maphash.Comparable. A custom function can be supplied with WithHash;
// it must be deterministic for the lifetime of the map.
type HashFn[K comparable] func(key K, seed maphash.Seed) uint64

func defaultHasher[K comparable]() HashFn[K] {
	return func(key K, seed maphash.Seed) uint64 {
		return maphash.Comparable(seed, key)
	}
}
