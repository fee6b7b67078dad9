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
	"fmt"
	"reflect"
	"sort"
	"strings"
)

const (
	maxPathSegments = 16
	maxPathLength   = 512
)

// reservedSegments are key names that must never appear in a path, at the
// external boundary and again inside the mutation helpers.
var reservedSegments = map[string]struct{}{
	"__proto__":   {},
	"constructor": {},
	"prototype":   {},
}

// splitPath validates a dot-separated path and returns its segments. The
// first segment names a section; the rest address nested keys.
func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	if len(path) > maxPathLength {
		return nil, fmt.Errorf("%w: path exceeds %d characters", ErrInvalidPath, maxPathLength)
	}

	segments := strings.Split(path, ".")
	if len(segments) > maxPathSegments {
		return nil, fmt.Errorf("%w: path exceeds %d segments", ErrInvalidPath, maxPathSegments)
	}
	for _, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, path)
		}
		if _, bad := reservedSegments[seg]; bad {
			return nil, fmt.Errorf("%w: reserved segment %q", ErrInvalidPath, seg)
		}
	}
	return segments, nil
}

// valueAtPath walks the tree along the segments and returns the value there,
// or false if any intermediate is absent or not an object.
func valueAtPath(tree map[string]any, segments []string) (any, bool) {
	var current any = tree
	for _, seg := range segments {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// setAtPath writes value into the tree at the given segments, creating
// intermediate objects as needed and replacing any non-object intermediate.
// Reserved segments are rejected again here as defense in depth against
// callers bypassing splitPath.
func setAtPath(tree map[string]any, segments []string, value any) error {
	if len(segments) == 0 {
		return fmt.Errorf("%w: no segments", ErrInvalidPath)
	}
	current := tree
	for i, seg := range segments {
		if _, bad := reservedSegments[seg]; bad {
			return fmt.Errorf("%w: reserved segment %q", ErrInvalidPath, seg)
		}
		if i == len(segments)-1 {
			current[seg] = value
			return nil
		}
		next, ok := current[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[seg] = next
		}
		current = next
	}
	return nil
}

// leafValues flattens a tree into path→value pairs for every leaf, where a
// leaf is any value that is not an object.
func leafValues(prefix string, node any, out map[string]any) {
	obj, ok := node.(map[string]any)
	if !ok {
		out[prefix] = node
		return
	}
	for key, child := range obj {
		childPath := key
		if prefix != "" {
			childPath = prefix + "." + key
		}
		leafValues(childPath, child, out)
	}
}

// leafChange is one differing leaf between two trees.
type leafChange struct {
	path     string
	oldValue any
	newValue any
}

// diffLeaves compares two trees leaf-by-leaf and returns the changes in
// stable path order. A leaf present on only one side appears with the other
// side nil.
func diffLeaves(before, after map[string]any) []leafChange {
	beforeLeaves := map[string]any{}
	afterLeaves := map[string]any{}
	leafValues("", before, beforeLeaves)
	leafValues("", after, afterLeaves)

	paths := make(map[string]struct{}, len(beforeLeaves)+len(afterLeaves))
	for p := range beforeLeaves {
		paths[p] = struct{}{}
	}
	for p := range afterLeaves {
		paths[p] = struct{}{}
	}

	ordered := make([]string, 0, len(paths))
	for p := range paths {
		ordered = append(ordered, p)
	}
	sort.Strings(ordered)

	var changes []leafChange
	for _, p := range ordered {
		oldV, hadOld := beforeLeaves[p]
		newV, hasNew := afterLeaves[p]
		if hadOld && hasNew && reflect.DeepEqual(oldV, newV) {
			continue
		}
		changes = append(changes, leafChange{path: p, oldValue: oldV, newValue: newV})
	}
	return changes
}
