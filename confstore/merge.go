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

// deepClone returns an independent copy of a configuration value. Objects
// and arrays are cloned recursively; scalars are returned as-is.
func deepClone(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, child := range v {
			out[key] = deepClone(child)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = deepClone(child)
		}
		return out
	default:
		return value
	}
}

// cloneTree is deepClone specialized to a tree root.
func cloneTree(tree map[string]any) map[string]any {
	if tree == nil {
		return map[string]any{}
	}
	return deepClone(tree).(map[string]any)
}

// deepMerge overlays the overlay tree onto base, in place, and returns base.
// Where both sides hold an object the merge recurses; in every other case
// the overlay side wins outright, including an explicit nil or an array
// replacing an object. Overlay values are cloned as they cross into base so
// the two trees never share nested structure.
func deepMerge(base, overlay map[string]any) map[string]any {
	for key, overlayVal := range overlay {
		baseObj, baseIsObj := base[key].(map[string]any)
		overlayObj, overlayIsObj := overlayVal.(map[string]any)
		if baseIsObj && overlayIsObj {
			deepMerge(baseObj, overlayObj)
			continue
		}
		base[key] = deepClone(overlayVal)
	}
	return base
}
