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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitPath(t *testing.T) {
	segs, err := splitPath("ai.model")
	require.NoError(t, err)
	assert.Equal(t, []string{"ai", "model"}, segs)

	segs, err = splitPath("ai")
	require.NoError(t, err)
	assert.Equal(t, []string{"ai"}, segs)
}

func TestSplitPathRejectsMalformed(t *testing.T) {
	for _, path := range []string{
		"",
		".",
		"ai.",
		".model",
		"ai..model",
	} {
		t.Run(path, func(t *testing.T) {
			_, err := splitPath(path)
			assert.ErrorIs(t, err, ErrInvalidPath)
		})
	}
}

func TestSplitPathRejectsReservedSegments(t *testing.T) {
	for _, path := range []string{
		"__proto__.x",
		"a.constructor",
		"a.prototype.b",
	} {
		t.Run(path, func(t *testing.T) {
			_, err := splitPath(path)
			assert.ErrorIs(t, err, ErrInvalidPath)
		})
	}
}

func TestSplitPathLimits(t *testing.T) {
	deep := strings.Repeat("a.", maxPathSegments) + "a"
	_, err := splitPath(deep)
	assert.ErrorIs(t, err, ErrInvalidPath)

	long := "a." + strings.Repeat("b", maxPathLength)
	_, err = splitPath(long)
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestSetAtPathCreatesIntermediates(t *testing.T) {
	tree := map[string]any{}
	require.NoError(t, setAtPath(tree, []string{"ai", "nested", "temp"}, 0.7))
	assert.Equal(t, map[string]any{
		"ai": map[string]any{
			"nested": map[string]any{"temp": 0.7},
		},
	}, tree)
}

func TestSetAtPathReplacesScalarIntermediate(t *testing.T) {
	tree := map[string]any{"ai": "scalar"}
	require.NoError(t, setAtPath(tree, []string{"ai", "model"}, "A"))
	assert.Equal(t, map[string]any{
		"ai": map[string]any{"model": "A"},
	}, tree)
}

func TestSetAtPathRejectsReserved(t *testing.T) {
	tree := map[string]any{}
	err := setAtPath(tree, []string{"ai", "__proto__"}, 1)
	assert.ErrorIs(t, err, ErrInvalidPath)
	assert.Empty(t, tree)
}

func TestValueAtPath(t *testing.T) {
	tree := map[string]any{
		"ai": map[string]any{"model": "A", "n": nil},
	}

	v, ok := valueAtPath(tree, []string{"ai", "model"})
	require.True(t, ok)
	assert.Equal(t, "A", v)

	v, ok = valueAtPath(tree, []string{"ai", "n"})
	require.True(t, ok)
	assert.Nil(t, v)

	_, ok = valueAtPath(tree, []string{"ai", "missing"})
	assert.False(t, ok)

	_, ok = valueAtPath(tree, []string{"ai", "model", "deeper"})
	assert.False(t, ok)
}

func TestDiffLeaves(t *testing.T) {
	before := map[string]any{
		"ai": map[string]any{"model": "A", "temp": 0.7},
		"welcome": map[string]any{
			"message": "hi",
		},
	}
	after := map[string]any{
		"ai": map[string]any{"model": "B", "temp": 0.7},
		"welcome": map[string]any{
			"message": "hi",
			"channel": "general",
		},
	}

	changes := diffLeaves(before, after)
	require.Len(t, changes, 2)
	assert.Equal(t, "ai.model", changes[0].path)
	assert.Equal(t, "A", changes[0].oldValue)
	assert.Equal(t, "B", changes[0].newValue)
	assert.Equal(t, "welcome.channel", changes[1].path)
	assert.Nil(t, changes[1].oldValue)
	assert.Equal(t, "general", changes[1].newValue)
}

func TestDiffLeavesSubtreeBecomesScalar(t *testing.T) {
	before := map[string]any{
		"ai": map[string]any{"nested": map[string]any{"a": 1, "b": 2}},
	}
	after := map[string]any{
		"ai": map[string]any{"nested": "flat"},
	}

	changes := diffLeaves(before, after)
	paths := make([]string, len(changes))
	for i, c := range changes {
		paths[i] = c.path
	}
	assert.Equal(t, []string{"ai.nested", "ai.nested.a", "ai.nested.b"}, paths)
}
