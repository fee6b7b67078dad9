// Copyright (C) 2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package confstore

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMergeCacheSize bounds the number of cached merged views when no
// explicit capacity is configured.
const DefaultMergeCacheSize = 128

type mergeEntry struct {
	generation uint64
	view       map[string]any
}

// mergeCache holds computed global+tenant merged views, one per non-global
// tenant, stamped with the generation they were computed under. Capacity is
// fixed; the least-recently-used entry is evicted on overflow. An entry
// whose stamp is behind the live generation is stale and dropped on lookup.
type mergeCache struct {
	entries *lru.Cache[string, mergeEntry]
}

func newMergeCache(size int) *mergeCache {
	if size <= 0 {
		size = DefaultMergeCacheSize
	}
	entries, err := lru.New[string, mergeEntry](size)
	if err != nil {
		// lru.New only fails on a non-positive size.
		panic(err)
	}
	return &mergeCache{entries: entries}
}

// get returns the cached view for a tenant if it was computed under the
// given generation, refreshing its LRU position. Stale entries are removed.
func (mc *mergeCache) get(tenantID string, generation uint64) (map[string]any, bool) {
	entry, ok := mc.entries.Get(tenantID)
	if !ok {
		return nil, false
	}
	if entry.generation != generation {
		mc.entries.Remove(tenantID)
		return nil, false
	}
	return entry.view, true
}

// put stores a computed view stamped with the given generation, evicting
// the least-recently-used entry if the cache is at capacity.
func (mc *mergeCache) put(tenantID string, generation uint64, view map[string]any) {
	mc.entries.Add(tenantID, mergeEntry{generation: generation, view: view})
}

// invalidate removes one tenant's entry.
func (mc *mergeCache) invalidate(tenantID string) {
	mc.entries.Remove(tenantID)
}

// invalidateAll clears the cache. Called whenever global defaults change.
func (mc *mergeCache) invalidateAll() {
	mc.entries.Purge()
}

func (mc *mergeCache) len() int {
	return mc.entries.Len()
}
