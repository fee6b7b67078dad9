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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	koanfjson "github.com/knadh/koanf/parsers/json"
	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// seedLoader reads the immutable baseline defaults document from disk. The
// parsed document is cached after the first successful read and is never
// handed out directly; callers clone what they take from it.
type seedLoader struct {
	path string

	mu     sync.Mutex
	cached map[string]map[string]any
}

func newSeedLoader(path string) *seedLoader {
	return &seedLoader{path: path}
}

// Load returns the seed document as a map of section name to section tree.
// The file is read at most once; later calls return the cached document. A
// missing file with no cache yields ErrSeedNotFound, a malformed file
// ErrSeedParse.
func (sl *seedLoader) Load() (map[string]map[string]any, error) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.cached != nil {
		return sl.cached, nil
	}
	if sl.path == "" {
		return nil, ErrSeedNotFound
	}

	data, err := os.ReadFile(sl.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSeedNotFound, sl.path)
		}
		return nil, fmt.Errorf("read seed document: %w", err)
	}

	doc, err := parseSeed(data, sl.path)
	if err != nil {
		return nil, err
	}
	sl.cached = doc
	return sl.cached, nil
}

// parseSeed parses the seed bytes as YAML or JSON depending on the file
// extension and normalizes values to their JSON shapes (string-keyed maps,
// float64 numbers) so they compare equal to values round-tripped through
// the persistence layer.
func parseSeed(data []byte, path string) (map[string]map[string]any, error) {
	var parser koanf.Parser = koanfyaml.Parser()
	if filepath.Ext(path) == ".json" {
		parser = koanfjson.Parser()
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSeedParse, err)
	}

	raw := k.Raw()
	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSeedParse, err)
	}
	var tree map[string]any
	if err := json.Unmarshal(normalized, &tree); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSeedParse, err)
	}

	doc := make(map[string]map[string]any, len(tree))
	for name, value := range tree {
		if _, bad := reservedSegments[name]; bad {
			return nil, fmt.Errorf("%w: reserved section name %q", ErrSeedParse, name)
		}
		section, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: top-level key %q is not a section object", ErrSeedParse, name)
		}
		doc[name] = section
	}
	return doc, nil
}
