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

// Package confstore implements a multi-tenant hierarchical configuration
// store: process-wide global defaults, overridable per tenant, optionally
// backed by Postgres through confdb, with an in-memory override cache, a
// generation-stamped LRU cache of merged views, and a path-addressed
// change-notification bus.
//
// Ownership contract: the store owns the canonical global tree. Get for the
// global tenant returns that tree live and callers must treat it as
// read-only; Get for any other tenant returns an isolated deep copy. Every
// value crossing between the global tree and a tenant's overrides is cloned
// at the crossing.
package confstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cardinalhq/tenantconf/confdb"
	"github.com/cardinalhq/tenantconf/internal/logctx"
)

// GlobalTenantID is the distinguished tenant holding process-wide defaults.
// Its tree is the full default configuration, never overrides.
const GlobalTenantID = "global"

// Options configures a Store.
type Options struct {
	// DB is the persistence layer. Nil selects memory-only operation:
	// writes succeed but are not durable.
	DB *confdb.Store

	// SeedPath is the baseline defaults document (YAML or JSON).
	SeedPath string

	// MergeCacheSize bounds the merged-view cache.
	// DefaultMergeCacheSize when zero.
	MergeCacheSize int
}

// Store is the configuration store. All in-memory state is guarded by one
// mutex; mutations touch the database first and update memory only after
// the transaction commits, so a failed write never leaves cache and store
// inconsistent.
type Store struct {
	db   *confdb.Store
	seed *seedLoader
	bus  *bus

	mu             sync.Mutex
	overrides      map[string]map[string]any // tenant id -> section name -> section tree
	generation     uint64
	merged         *mergeCache
	loaded         bool
	degradedLogged bool
}

// New creates a Store. Nothing is read until Load or the first operation.
func New(opts Options) *Store {
	return &Store{
		db:        opts.DB,
		seed:      newSeedLoader(opts.SeedPath),
		bus:       newBus(),
		overrides: map[string]map[string]any{},
		merged:    newMergeCache(opts.MergeCacheSize),
	}
}

// Open creates a Store and hydrates it immediately.
func Open(ctx context.Context, opts Options) (*Store, error) {
	s := New(opts)
	if _, err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Load (re)hydrates the store from the persistence layer, seeding the
// database from the seed document when the global tenant has no rows.
// Without a database the seed document alone is loaded. Load bumps the
// generation and clears all cached merged views. It returns the live global
// tree.
func (s *Store) Load(ctx context.Context) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(ctx); err != nil {
		return nil, err
	}
	return s.overrides[GlobalTenantID], nil
}

func (s *Store) loadLocked(ctx context.Context) error {
	ll := logctx.FromContext(ctx)
	overrides := map[string]map[string]any{}

	if s.db != nil {
		rows, err := s.db.FetchAllSections(ctx)
		if err != nil {
			return fmt.Errorf("hydrate from database: %w", err)
		}
		for _, row := range rows {
			tree, ok := overrides[row.TenantID]
			if !ok {
				tree = map[string]any{}
				overrides[row.TenantID] = tree
			}
			tree[row.SectionName] = row.Value
		}
		if len(overrides[GlobalTenantID]) == 0 {
			seedDoc, err := s.seed.Load()
			if err != nil {
				return fmt.Errorf("no persisted global defaults and no seed: %w", err)
			}
			if err := s.db.UpsertSections(ctx, GlobalTenantID, seedDoc); err != nil {
				return fmt.Errorf("seed database: %w", err)
			}
			overrides[GlobalTenantID] = sectionsToTree(seedDoc)
			ll.Info("seeded global defaults into database", "sections", len(seedDoc))
		}
	} else {
		if !s.degradedLogged {
			ll.Warn("no database configured, running memory-only; configuration writes will not be durable")
			s.degradedLogged = true
		}
		seedDoc, err := s.seed.Load()
		if err != nil {
			return err
		}
		overrides[GlobalTenantID] = sectionsToTree(seedDoc)
	}

	s.overrides = overrides
	s.generation++
	s.merged.invalidateAll()
	s.loaded = true
	return nil
}

// Get returns a tenant's effective configuration. The global tenant gets
// the live canonical tree; any other tenant gets an isolated deep copy of
// the global defaults overlaid with that tenant's overrides, served through
// the generation-checked merge cache. An empty tenant id means global.
func (s *Store) Get(ctx context.Context, tenantID string) (map[string]any, error) {
	if tenantID == "" {
		tenantID = GlobalTenantID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		if err := s.loadLocked(ctx); err != nil {
			return nil, err
		}
	}

	if tenantID == GlobalTenantID {
		return s.overrides[GlobalTenantID], nil
	}

	if view, ok := s.merged.get(tenantID, s.generation); ok {
		return cloneTree(view), nil
	}
	view := s.mergedViewLocked(tenantID)
	s.merged.put(tenantID, s.generation, view)
	return cloneTree(view), nil
}

// mergedViewLocked computes a fresh merged view for a tenant.
func (s *Store) mergedViewLocked(tenantID string) map[string]any {
	return deepMerge(cloneTree(s.overrides[GlobalTenantID]), s.overrides[tenantID])
}

// Set writes a value at a dot-separated path for a tenant (global when the
// tenant id is empty). The path needs at least a section and one key. When
// a database is configured the write happens first inside a locked
// read-modify-write transaction; the in-memory caches are updated only
// after it commits, the affected merged views are invalidated, and one
// change event is emitted before Set returns. The updated section tree is
// returned.
func (s *Store) Set(ctx context.Context, path string, value any, tenantID string) (map[string]any, error) {
	if tenantID == "" {
		tenantID = GlobalTenantID
	}
	segments, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	if len(segments) < 2 {
		return nil, fmt.Errorf("%w: need a section and at least one key, got %q", ErrInvalidPath, path)
	}
	sectionName, rest := segments[0], segments[1:]

	s.mu.Lock()
	if !s.loaded {
		if err := s.loadLocked(ctx); err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}

	if s.db != nil {
		_, err := s.db.UpdateSectionLocked(ctx, tenantID, sectionName, func(current map[string]any) (map[string]any, error) {
			if err := setAtPath(current, rest, value); err != nil {
				return nil, err
			}
			return current, nil
		})
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}

	tree, ok := s.overrides[tenantID]
	if !ok {
		tree = map[string]any{}
		s.overrides[tenantID] = tree
	}

	// Old value comes from the raw overrides, not the merged view: it is
	// nil when the previous effective value was inherited from global.
	oldValue, _ := valueAtPath(tree, segments)
	oldValue = deepClone(oldValue)

	if err := setAtPath(tree, segments, deepClone(value)); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	if tenantID == GlobalTenantID {
		s.generation++
		s.merged.invalidateAll()
	} else {
		s.merged.invalidate(tenantID)
	}

	section, _ := tree[sectionName].(map[string]any)
	result := section
	if tenantID != GlobalTenantID {
		result = cloneTree(section)
	}
	s.mu.Unlock()

	s.bus.emit(ctx, Event{
		Path:     path,
		NewValue: deepClone(value),
		OldValue: oldValue,
		TenantID: tenantID,
	})
	return result, nil
}

// Reset removes a tenant's override for one section, or all of them when
// sectionName is empty, and emits one change event per effective leaf that
// changed. For the global tenant it restores the seed baseline instead,
// removing global sections not present in the seed on a full reset. The
// resulting effective tree is returned.
func (s *Store) Reset(ctx context.Context, sectionName, tenantID string) (map[string]any, error) {
	if tenantID == "" {
		tenantID = GlobalTenantID
	}
	if sectionName != "" {
		if _, bad := reservedSegments[sectionName]; bad {
			return nil, fmt.Errorf("%w: reserved segment %q", ErrInvalidPath, sectionName)
		}
	}

	s.mu.Lock()
	if !s.loaded {
		if err := s.loadLocked(ctx); err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}

	var (
		result  map[string]any
		changes []leafChange
		err     error
	)
	if tenantID == GlobalTenantID {
		result, changes, err = s.resetGlobalLocked(ctx, sectionName)
	} else {
		result, changes, err = s.resetTenantLocked(ctx, sectionName, tenantID)
	}
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	for _, change := range changes {
		s.bus.emit(ctx, Event{
			Path:     change.path,
			NewValue: change.newValue,
			OldValue: change.oldValue,
			TenantID: tenantID,
		})
	}
	return result, nil
}

func (s *Store) resetTenantLocked(ctx context.Context, sectionName, tenantID string) (map[string]any, []leafChange, error) {
	before := s.mergedViewLocked(tenantID)

	if s.db != nil {
		var err error
		if sectionName == "" {
			err = s.db.DeleteTenant(ctx, tenantID)
		} else {
			err = s.db.DeleteSection(ctx, tenantID, sectionName)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("delete overrides for %s: %w", tenantID, err)
		}
	}

	if sectionName == "" {
		delete(s.overrides, tenantID)
	} else if tree, ok := s.overrides[tenantID]; ok {
		delete(tree, sectionName)
	}
	s.merged.invalidate(tenantID)

	after := s.mergedViewLocked(tenantID)
	return after, diffLeaves(before, after), nil
}

func (s *Store) resetGlobalLocked(ctx context.Context, sectionName string) (map[string]any, []leafChange, error) {
	seedDoc, err := s.seed.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoSeed, err)
	}

	global := s.overrides[GlobalTenantID]
	before := cloneTree(global)

	if sectionName != "" {
		section, ok := seedDoc[sectionName]
		if !ok {
			return nil, nil, fmt.Errorf("%w: seed has no section %q", ErrNoSeed, sectionName)
		}
		if s.db != nil {
			if err := s.db.UpsertSection(ctx, confdb.UpsertSectionParams{
				TenantID:    GlobalTenantID,
				SectionName: sectionName,
				Value:       section,
			}); err != nil {
				return nil, nil, fmt.Errorf("reset global section %q: %w", sectionName, err)
			}
		}
		global[sectionName] = cloneTree(section)
	} else {
		if s.db != nil {
			if err := s.db.ReplaceTenantSections(ctx, GlobalTenantID, seedDoc); err != nil {
				return nil, nil, fmt.Errorf("reset global defaults: %w", err)
			}
		}
		// Mutate the canonical tree in place so live references held by
		// callers observe the reset.
		for name := range global {
			delete(global, name)
		}
		for name, section := range seedDoc {
			global[name] = cloneTree(section)
		}
	}

	s.generation++
	s.merged.invalidateAll()
	return global, diffLeaves(before, global), nil
}

// Subscribe registers a listener for an exact path ("ai.model") or a prefix
// wildcard ("ai.*"). The returned function removes the listener.
func (s *Store) Subscribe(pathOrPrefix string, fn ListenerFunc) (func(), error) {
	if err := validatePattern(pathOrPrefix); err != nil {
		return nil, err
	}
	return s.bus.subscribe(pathOrPrefix, fn), nil
}

// ClearListeners removes every registered listener.
func (s *Store) ClearListeners() {
	s.bus.clear()
}

// Generation returns the current global-defaults generation. Cached merged
// views stamped with an older generation are stale.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Sections returns the sorted section names of a tenant's effective
// configuration.
func (s *Store) Sections(ctx context.Context, tenantID string) ([]string, error) {
	tree, err := s.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tree))
	for name := range tree {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// validatePattern checks a subscription pattern: a valid path, optionally
// with a trailing wildcard segment.
func validatePattern(pattern string) error {
	trimmed, wildcard := strings.CutSuffix(pattern, ".*")
	if wildcard && trimmed == "" {
		return fmt.Errorf("%w: bare wildcard %q", ErrInvalidPath, pattern)
	}
	_, err := splitPath(trimmed)
	return err
}

// sectionsToTree clones a seed document into a tenant tree.
func sectionsToTree(sections map[string]map[string]any) map[string]any {
	tree := make(map[string]any, len(sections))
	for name, section := range sections {
		tree[name] = cloneTree(section)
	}
	return tree
}
