package config

import (
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Store is a dot-addressed view over the raw configuration document,
// backed by a private viper instance.
//
// Paths use "." as a separator ("main.interval.field") and are matched
// case-insensitively. The loaded document is merged into viper's config
// layer; Set writes to its override layer, so a value set at runtime wins
// over the file. Store is safe for concurrent use; the admin API reads it
// while the duty cycle runs.
type Store struct {
	mu sync.RWMutex
	v  *viper.Viper
}

// NewStore wraps a nested mapping. A nil mapping yields an empty store.
// root is copied; later changes to it do not reach the store.
func NewStore(root map[string]any) *Store {
	v := viper.New()
	if len(root) > 0 {
		doc, _ := copyValue(root).(map[string]any)
		_ = v.MergeConfigMap(doc) //nolint:errcheck // Merging an in-memory map cannot fail
	}
	return &Store{v: v}
}

// Get returns the value at path, or def when any path segment is missing.
// Mappings and slices are returned as copies.
func (s *Store) Get(path string, def any) any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if path == "" {
		return copyValue(s.v.AllSettings())
	}
	if !s.v.IsSet(path) {
		return def
	}

	value := s.v.Get(path)
	if _, ok := value.(map[string]any); !ok {
		return copyValue(value)
	}
	// viper.Get returns a mapping from the first layer holding path;
	// AllSettings merges the override layer over the file.
	if merged, ok := lookup(s.v.AllSettings(), path); ok {
		return copyValue(merged)
	}
	return copyValue(value)
}

// Set stores value at path, creating intermediate mappings as needed.
// A non-mapping value on the way is replaced by a mapping.
func (s *Store) Set(path string, value any) {
	if path == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Set(path, value)
}

// String returns the value at path as a string, or def.
func (s *Store) String(path, def string) string {
	if v, ok := s.Get(path, nil).(string); ok {
		return v
	}
	return def
}

// Int returns the value at path as an int, or def.
func (s *Store) Int(path string, def int) int {
	switch v := s.Get(path, nil).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// Bool returns the value at path as a bool, or def.
func (s *Store) Bool(path string, def bool) bool {
	if v, ok := s.Get(path, nil).(bool); ok {
		return v
	}
	return def
}

func lookup(root map[string]any, path string) (any, bool) {
	var cur any = root
	for _, part := range strings.Split(strings.ToLower(path), ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// copyValue returns a deep copy of mappings and slices so callers cannot
// mutate the store behind the lock.
func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = copyValue(val)
		}
		return out
	case map[any]any:
		// yaml.v3 decodes non-string keys this way.
		out := make(map[string]any, len(t))
		for k, val := range t {
			if ks, ok := k.(string); ok {
				out[ks] = copyValue(val)
			}
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = copyValue(val)
		}
		return out
	}
	return v
}
