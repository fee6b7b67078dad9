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
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSeed = `
ai:
  model: A
  temperature: 0.7
welcome:
  message: hi
`

// newMemoryStore builds a store in memory-only mode from a temp seed file.
func newMemoryStore(t *testing.T, seedYAML string, cacheSize int) *Store {
	t.Helper()
	path := writeSeedFile(t, "defaults.yaml", seedYAML)
	return New(Options{SeedPath: path, MergeCacheSize: cacheSize})
}

// collectEvents subscribes to a pattern and appends every event to the
// returned slice.
func collectEvents(t *testing.T, s *Store, pattern string) *[]Event {
	t.Helper()
	events := &[]Event{}
	_, err := s.Subscribe(pattern, func(ctx context.Context, ev Event) {
		*events = append(*events, ev)
	})
	require.NoError(t, err)
	return events
}

func TestLoadFromSeedMemoryOnly(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t, testSeed, 0)

	global, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A", global["ai"].(map[string]any)["model"])
	assert.Equal(t, uint64(1), s.Generation())
}

func TestLoadFailsWithoutSeedOrDatabase(t *testing.T) {
	s := New(Options{SeedPath: "/nonexistent/defaults.yaml"})
	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, ErrSeedNotFound)
}

func TestLoadBumpsGenerationAndClearsMergeCache(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t, testSeed, 0)

	_, err := s.Get(ctx, "g1")
	require.NoError(t, err)
	require.Equal(t, 1, s.merged.len())
	gen := s.Generation()

	_, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, gen+1, s.Generation())
	assert.Zero(t, s.merged.len())
}

func TestGetGlobalReturnsLiveReference(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t, testSeed, 0)

	first, err := s.Get(ctx, GlobalTenantID)
	require.NoError(t, err)
	second, err := s.Get(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, reflect.ValueOf(first).Pointer(), reflect.ValueOf(second).Pointer())
}

func TestGetTenantReturnsIsolatedCopy(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t, testSeed, 0)

	tree, err := s.Get(ctx, "g1")
	require.NoError(t, err)
	tree["ai"].(map[string]any)["model"] = "mutated"
	tree["injected"] = true

	again, err := s.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "A", again["ai"].(map[string]any)["model"])
	assert.NotContains(t, again, "injected")

	global, err := s.Get(ctx, GlobalTenantID)
	require.NoError(t, err)
	assert.Equal(t, "A", global["ai"].(map[string]any)["model"])
}

func TestScenarioABC(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t, testSeed, 0)

	// Scenario A: no override falls through to global.
	tree, err := s.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "A", tree["ai"].(map[string]any)["model"])

	_, err = s.Set(ctx, "ai.model", "B", "g1")
	require.NoError(t, err)

	tree, err = s.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "B", tree["ai"].(map[string]any)["model"])

	global, err := s.Get(ctx, GlobalTenantID)
	require.NoError(t, err)
	assert.Equal(t, "A", global["ai"].(map[string]any)["model"], "global must be unchanged")

	// Scenario B: a new global default does not displace the override.
	_, err = s.Set(ctx, "ai.model", "X", "")
	require.NoError(t, err)

	global, err = s.Get(ctx, GlobalTenantID)
	require.NoError(t, err)
	assert.Equal(t, "X", global["ai"].(map[string]any)["model"])

	tree, err = s.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "B", tree["ai"].(map[string]any)["model"], "tenant override still wins")

	// Scenario C: resetting the override falls through to current global.
	_, err = s.Reset(ctx, "ai", "g1")
	require.NoError(t, err)

	tree, err = s.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "X", tree["ai"].(map[string]any)["model"])
}

func TestGenerationInvalidation(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t, testSeed, 0)

	// Warm the merge cache for two tenants with no overrides of their own.
	for _, tenant := range []string{"g1", "g2"} {
		_, err := s.Get(ctx, tenant)
		require.NoError(t, err)
	}
	gen := s.Generation()

	_, err := s.Set(ctx, "ai.model", "Y", GlobalTenantID)
	require.NoError(t, err)
	assert.Equal(t, gen+1, s.Generation())
	assert.Zero(t, s.merged.len(), "global mutation clears all cached merged views")

	for _, tenant := range []string{"g1", "g2"} {
		tree, err := s.Get(ctx, tenant)
		require.NoError(t, err)
		assert.Equal(t, "Y", tree["ai"].(map[string]any)["model"])
	}
}

func TestTenantSetInvalidatesOnlyThatTenant(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t, testSeed, 0)

	for _, tenant := range []string{"g1", "g2"} {
		_, err := s.Get(ctx, tenant)
		require.NoError(t, err)
	}

	_, err := s.Set(ctx, "ai.model", "B", "g1")
	require.NoError(t, err)

	assert.False(t, s.merged.entries.Contains("g1"))
	assert.True(t, s.merged.entries.Contains("g2"))
}

func TestMergeCacheLRUBound(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t, testSeed, 2)

	for _, tenant := range []string{"g1", "g2", "g3"} {
		_, err := s.Get(ctx, tenant)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, s.merged.len())
	assert.False(t, s.merged.entries.Contains("g1"), "least recently used tenant evicted")
	assert.True(t, s.merged.entries.Contains("g2"))
	assert.True(t, s.merged.entries.Contains("g3"))

	// The evicted tenant still resolves correctly on the next access.
	tree, err := s.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "A", tree["ai"].(map[string]any)["model"])
}

func TestSetRejectsReservedAndMalformedPaths(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t, testSeed, 0)
	_, err := s.Load(ctx)
	require.NoError(t, err)
	gen := s.Generation()

	for _, path := range []string{
		"__proto__.x",
		"a.constructor",
		"a.prototype.b",
		"ai",
		"",
		"ai..model",
	} {
		t.Run(path, func(t *testing.T) {
			_, err := s.Set(ctx, path, 1, GlobalTenantID)
			assert.ErrorIs(t, err, ErrInvalidPath)
		})
	}

	// Rejected before any side effect.
	assert.Equal(t, gen, s.Generation())
	global, err := s.Get(ctx, GlobalTenantID)
	require.NoError(t, err)
	assert.NotContains(t, global, "a")
}

func TestSetEmitsEventWithRawOverrideOldValue(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t, testSeed, 0)

	events := collectEvents(t, s, "ai.*")

	// The tenant inherits ai.model from global, but its raw override has
	// no value there, so the event's old value is nil.
	_, err := s.Set(ctx, "ai.model", "B", "g1")
	require.NoError(t, err)
	require.Len(t, *events, 1)
	assert.Equal(t, "ai.model", (*events)[0].Path)
	assert.Equal(t, "B", (*events)[0].NewValue)
	assert.Nil(t, (*events)[0].OldValue)
	assert.Equal(t, "g1", (*events)[0].TenantID)

	_, err = s.Set(ctx, "ai.model", "C", "g1")
	require.NoError(t, err)
	require.Len(t, *events, 2)
	assert.Equal(t, "B", (*events)[1].OldValue)
}

func TestSetReturnsUpdatedSection(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t, testSeed, 0)

	section, err := s.Set(ctx, "ai.nested.temp", 0.2, "g1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"nested": map[string]any{"temp": 0.2},
	}, section)

	// The returned section is the tenant's raw override, not the merge.
	assert.NotContains(t, section, "model")
}

func TestSetDoesNotAliasCallerValue(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t, testSeed, 0)

	value := map[string]any{"inner": "v"}
	_, err := s.Set(ctx, "ai.custom", value, "g1")
	require.NoError(t, err)

	value["inner"] = "mutated"
	tree, err := s.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "v", tree["ai"].(map[string]any)["custom"].(map[string]any)["inner"])
}

func TestListenerObservesUpdatedStore(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t, testSeed, 0)

	var seen any
	_, err := s.Subscribe("ai.model", func(ctx context.Context, ev Event) {
		tree, err := s.Get(ctx, ev.TenantID)
		require.NoError(t, err)
		seen = tree["ai"].(map[string]any)["model"]
	})
	require.NoError(t, err)

	_, err = s.Set(ctx, "ai.model", "B", "g1")
	require.NoError(t, err)
	assert.Equal(t, "B", seen, "listener must observe the store post-mutation")
}

func TestResetTenantEmitsLeafDiffs(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t, testSeed, 0)

	_, err := s.Set(ctx, "ai.model", "B", "g1")
	require.NoError(t, err)
	_, err = s.Set(ctx, "ai.extra", true, "g1")
	require.NoError(t, err)

	events := collectEvents(t, s, "ai.*")

	tree, err := s.Reset(ctx, "ai", "g1")
	require.NoError(t, err)
	assert.Equal(t, "A", tree["ai"].(map[string]any)["model"])

	// Two effective leaves changed: ai.extra disappeared and ai.model
	// reverted to the global default.
	require.Len(t, *events, 2)
	assert.Equal(t, "ai.extra", (*events)[0].Path)
	assert.Equal(t, true, (*events)[0].OldValue)
	assert.Nil(t, (*events)[0].NewValue)
	assert.Equal(t, "ai.model", (*events)[1].Path)
	assert.Equal(t, "B", (*events)[1].OldValue)
	assert.Equal(t, "A", (*events)[1].NewValue)
}

func TestResetWholeTenant(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t, testSeed, 0)

	_, err := s.Set(ctx, "ai.model", "B", "g1")
	require.NoError(t, err)
	_, err = s.Set(ctx, "welcome.message", "yo", "g1")
	require.NoError(t, err)

	tree, err := s.Reset(ctx, "", "g1")
	require.NoError(t, err)
	assert.Equal(t, "A", tree["ai"].(map[string]any)["model"])
	assert.Equal(t, "hi", tree["welcome"].(map[string]any)["message"])
	assert.NotContains(t, s.overrides, "g1")
}

func TestResetGlobalRestoresSeedBaseline(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t, testSeed, 0)

	_, err := s.Set(ctx, "ai.model", "X", GlobalTenantID)
	require.NoError(t, err)
	_, err = s.Set(ctx, "extra.key", "v", GlobalTenantID)
	require.NoError(t, err)

	live, err := s.Get(ctx, GlobalTenantID)
	require.NoError(t, err)
	gen := s.Generation()

	events := collectEvents(t, s, "ai.*")

	tree, err := s.Reset(ctx, "", GlobalTenantID)
	require.NoError(t, err)
	assert.Equal(t, "A", tree["ai"].(map[string]any)["model"])
	assert.NotContains(t, tree, "extra", "stale global section removed on full reset")
	assert.Equal(t, gen+1, s.Generation())

	// The canonical tree is mutated in place, so live references observe
	// the reset.
	assert.Equal(t, reflect.ValueOf(live).Pointer(), reflect.ValueOf(tree).Pointer())

	require.Len(t, *events, 1)
	assert.Equal(t, "ai.model", (*events)[0].Path)
	assert.Equal(t, "X", (*events)[0].OldValue)
	assert.Equal(t, "A", (*events)[0].NewValue)
}

func TestResetGlobalSingleSection(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t, testSeed, 0)

	_, err := s.Set(ctx, "ai.model", "X", GlobalTenantID)
	require.NoError(t, err)
	_, err = s.Set(ctx, "welcome.message", "yo", GlobalTenantID)
	require.NoError(t, err)

	tree, err := s.Reset(ctx, "ai", GlobalTenantID)
	require.NoError(t, err)
	assert.Equal(t, "A", tree["ai"].(map[string]any)["model"])
	assert.Equal(t, "yo", tree["welcome"].(map[string]any)["message"], "other sections untouched")
}

func TestResetGlobalRequiresSeed(t *testing.T) {
	ctx := context.Background()
	s := New(Options{SeedPath: "/nonexistent/defaults.yaml"})

	// Simulate a store hydrated from persisted data with no seed file on
	// disk: global defaults exist in memory but no baseline to reset to.
	s.loaded = true
	s.overrides[GlobalTenantID] = map[string]any{"ai": map[string]any{"model": "A"}}

	_, err := s.Reset(ctx, "", GlobalTenantID)
	assert.ErrorIs(t, err, ErrNoSeed)
}

func TestResetGlobalUnknownSeedSection(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t, testSeed, 0)

	_, err := s.Set(ctx, "custom.key", "v", GlobalTenantID)
	require.NoError(t, err)

	_, err = s.Reset(ctx, "custom", GlobalTenantID)
	assert.ErrorIs(t, err, ErrNoSeed)
}

func TestOverlappingSetsBothTakeEffect(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t, testSeed, 0)

	_, err := s.Set(ctx, "ai.alpha", 1, "g1")
	require.NoError(t, err)
	_, err = s.Set(ctx, "ai.beta", 2, "g1")
	require.NoError(t, err)

	tree, err := s.Get(ctx, "g1")
	require.NoError(t, err)
	ai := tree["ai"].(map[string]any)
	assert.Equal(t, 1, ai["alpha"])
	assert.Equal(t, 2, ai["beta"])
	assert.Equal(t, "A", ai["model"], "inherited keys survive alongside overrides")
}

func TestLazyLoadOnFirstOperation(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t, testSeed, 0)

	tree, err := s.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "A", tree["ai"].(map[string]any)["model"])
	assert.Equal(t, uint64(1), s.Generation())
}

func TestSubscribeValidation(t *testing.T) {
	s := newMemoryStore(t, testSeed, 0)

	_, err := s.Subscribe("ai.*", func(ctx context.Context, ev Event) {})
	require.NoError(t, err)
	_, err = s.Subscribe("ai.model", func(ctx context.Context, ev Event) {})
	require.NoError(t, err)

	for _, pattern := range []string{".*", "ai.__proto__", ""} {
		t.Run(pattern, func(t *testing.T) {
			_, err := s.Subscribe(pattern, func(ctx context.Context, ev Event) {})
			assert.ErrorIs(t, err, ErrInvalidPath)
		})
	}
}

func TestSectionsSorted(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t, testSeed, 0)

	names, err := s.Sections(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, []string{"ai", "welcome"}, names)
}
