package internal

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// SchemaSet holds the parsed JSON Schema corpus. Every document is indexed
// twice: by its declared $id and by its slash-normalized path relative to the
// root directory. Malformed files are logged and skipped, never fatal.
type SchemaSet struct {
	root string
	docs map[string]map[string]any
	keys []string
}

// LoadSchemas recursively reads every .json file under dir, skipping
// dot-directories.
func LoadSchemas(dir string, log *zap.SugaredLogger) (*SchemaSet, error) {
	if log == nil {
		log = zap.S()
	}

	set := &SchemaSet{
		root: dir,
		docs: make(map[string]map[string]any),
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() != filepath.Base(dir) && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			log.Warnw("failed to read schema file", "path", path, "error", err)
			return nil
		}

		var doc map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			log.Warnw("failed to parse schema file", "path", path, "error", err)
			return nil
		}

		id, _ := doc["$id"].(string)
		if id == "" {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		set.add(id, doc)
		set.add(rel, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk schema directory %s: %w", dir, err)
	}

	if len(set.docs) == 0 {
		return nil, fmt.Errorf("no schema files found in directory: %s", dir)
	}

	sort.Strings(set.keys)
	return set, nil
}

func (s *SchemaSet) add(key string, doc map[string]any) {
	if _, exists := s.docs[key]; !exists {
		s.keys = append(s.keys, key)
	}
	s.docs[key] = doc
}

// Get returns the document registered under key, or nil.
func (s *SchemaSet) Get(key string) map[string]any {
	return s.docs[key]
}

// Keys returns all index keys in sorted order.
func (s *SchemaSet) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Len returns the number of distinct index keys.
func (s *SchemaSet) Len() int {
	return len(s.keys)
}

// FindByKeySubstring returns the first document (in sorted key order) whose
// index key or $id contains sub, applying the given exclusions to the key.
func (s *SchemaSet) FindByKeySubstring(sub string, exclude ...string) map[string]any {
	for _, key := range s.keys {
		doc := s.docs[key]
		id, _ := doc["$id"].(string)
		if !strings.Contains(key, sub) && !strings.Contains(id, sub) {
			continue
		}
		skip := false
		for _, ex := range exclude {
			if strings.Contains(key, ex) {
				skip = true
				break
			}
		}
		if !skip {
			return doc
		}
	}
	return nil
}

// Common locates the shared definitions schema: the document whose key or $id
// contains "core/common", falling back to any document carrying a definitions
// block.
func (s *SchemaSet) Common() map[string]any {
	if doc := s.FindByKeySubstring("core/common"); doc != nil {
		return doc
	}
	for _, key := range s.keys {
		doc := s.docs[key]
		if _, ok := doc["definitions"].(map[string]any); ok {
			return doc
		}
	}
	return nil
}

// Definition returns a named definition from the common schema, or nil.
func (s *SchemaSet) Definition(name string) map[string]any {
	common := s.Common()
	if common == nil {
		return nil
	}
	defs, ok := common["definitions"].(map[string]any)
	if !ok {
		return nil
	}
	def, _ := defs[name].(map[string]any)
	return def
}

// sortedKeys returns the keys of m in sorted order. Schema documents are
// plain maps, so every walk over properties goes through this to keep
// generated output deterministic.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
