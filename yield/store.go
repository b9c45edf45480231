//  Copyright (c) 2023 Uber Technologies, Inc.
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

package yield

// Stats counts the lookups of a Store.
type Stats struct {
	// Hits are lookups answered by the store itself.
	Hits int
	// CacheHits are lookups answered by the shared cache.
	CacheHits int
	// Misses are lookups that found nothing.
	Misses int
	// Explorations are the callee explorations started with Begin.
	Explorations int
}

// Store holds the behaviors computed during the analysis of one top-level method, backed by a
// shared cache of finalized behaviors. Lookups read the seed; finalized behaviors are published to
// the cache. A Store is not safe for concurrent use.
type Store struct {
	seed       *Cache
	cache      *Cache
	local      map[string]*Behavior
	inProgress map[string]bool
	stats      Stats
}

// NewStore returns an empty store reading from and publishing to cache. The cache may be nil.
func NewStore(cache *Cache) *Store {
	return NewSeededStore(cache, cache)
}

// NewSeededStore returns an empty store whose lookups only see the behaviors of seed, while the
// behaviors it finalizes are published to cache. Either may be nil.
func NewSeededStore(seed, cache *Cache) *Store {
	return &Store{
		seed:       seed,
		cache:      cache,
		local:      make(map[string]*Behavior),
		inProgress: make(map[string]bool),
	}
}

// Lookup returns the behavior of method under sig, from the store or else from the shared cache.
func (s *Store) Lookup(method string, sig Signature) (*Behavior, bool) {
	key := Key(method, sig)
	if b, ok := s.local[key]; ok {
		s.stats.Hits++
		return b, true
	}
	if s.seed != nil {
		if b, ok := s.seed.Get(key); ok {
			s.stats.CacheHits++
			s.local[key] = b
			return b, true
		}
	}
	s.stats.Misses++
	return nil, false
}

// Store records the behavior of method under sig. Complete behaviors are also published to the
// shared cache.
func (s *Store) Store(method string, sig Signature, b *Behavior) {
	key := Key(method, sig)
	s.local[key] = b
	if b.Complete && s.cache != nil {
		s.cache.Publish(key, b)
	}
}

// Begin marks method as being explored. It returns false if it already is, i.e. the call is
// recursive.
func (s *Store) Begin(method string) bool {
	if s.inProgress[method] {
		return false
	}
	s.inProgress[method] = true
	s.stats.Explorations++
	return true
}

// End marks the exploration of method as finished.
func (s *Store) End(method string) {
	delete(s.inProgress, method)
}

// InProgress returns true if method is being explored.
func (s *Store) InProgress(method string) bool {
	return s.inProgress[method]
}

// Depth returns the number of explorations in progress.
func (s *Store) Depth() int {
	return len(s.inProgress)
}

// Stats returns the lookup counters.
func (s *Store) Stats() Stats {
	return s.stats
}
