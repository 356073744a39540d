// Package catalog holds the fixed vocabulary of selectable satellite names.
package catalog

import (
	"sort"
	"strings"

	"github.com/fu-tracker/dashboard/internal/models"
)

// MaxOptions caps search results so a large catalog is never truncated
// by the picker's default limit.
const MaxOptions = 10000

// Store is the loaded catalog. It is immutable after Load and safe for
// concurrent reads.
type Store struct {
	entries []models.CatalogEntry
	index   map[string]struct{}
}

// Load builds a Store from the raw values returned by the catalog fetch.
// Non-string values and strings that are empty after trimming are dropped.
func Load(raw []any) *Store {
	s := &Store{
		index: make(map[string]struct{}, len(raw)),
	}
	for _, v := range raw {
		name, ok := v.(string)
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := s.index[name]; dup {
			continue
		}
		s.index[name] = struct{}{}
		s.entries = append(s.entries, models.CatalogEntry{Name: name})
	}

	sort.Slice(s.entries, func(i, j int) bool {
		return s.entries[i].Name < s.entries[j].Name
	})
	return s
}

// Empty returns a Store with no entries.
func Empty() *Store {
	return Load(nil)
}

// All returns every entry sorted ascending by name.
func (s *Store) All() []models.CatalogEntry {
	out := make([]models.CatalogEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	return len(s.entries)
}

// Contains reports whether name is an exact catalog entry.
func (s *Store) Contains(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Search returns the entries whose name contains query, ignoring case,
// in catalog order. An empty query matches everything. limit <= 0 means
// MaxOptions.
func (s *Store) Search(query string, limit int) []models.CatalogEntry {
	return Filter(s.entries, query, limit)
}

// Filter applies the catalog search rule to an already sorted slice.
func Filter(entries []models.CatalogEntry, query string, limit int) []models.CatalogEntry {
	if limit <= 0 || limit > MaxOptions {
		limit = MaxOptions
	}
	query = strings.ToLower(strings.TrimSpace(query))

	result := make([]models.CatalogEntry, 0, min(len(entries), limit))
	for _, e := range entries {
		if len(result) >= limit {
			break
		}
		if query == "" || strings.Contains(strings.ToLower(e.Name), query) {
			result = append(result, e)
		}
	}
	return result
}
