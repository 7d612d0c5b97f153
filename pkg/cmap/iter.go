package cmap

import (
	"sort"
	"strings"
)

// Range calls fn for each item until fn returns false.
//
// Each shard is read-locked only while it is being visited, so Range does
// not observe a single consistent snapshot across shards. fn must not write
// to the map.
func (m *Map[V]) Range(fn func(key string, value V) bool) {
	for _, s := range m.shards {
		s.mu.RLock()
		for k, v := range s.items {
			if !fn(k, v) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}

// Keys returns the keys with the given prefix, sorted ascending.
// An empty prefix matches every key.
func (m *Map[V]) Keys(prefix string) []string {
	keys := make([]string, 0)
	m.Range(func(key string, _ V) bool {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return true
	})
	sort.Strings(keys)
	return keys
}

// Update atomically replaces the value for key with fn's result.
// fn receives the current value and whether it exists.
func (m *Map[V]) Update(key string, fn func(value V, exists bool) V) V {
	s := m.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.items[key]
	newVal := fn(val, ok)
	s.items[key] = newVal
	return newVal
}
