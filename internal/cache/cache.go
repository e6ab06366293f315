// Package cache persists per-category snapshots of raw bundle payloads.
package cache

import (
	"strings"

	"github.com/kotosync/kotosync/internal/model"
)

// Store defines the interface for snapshot caching. Load returns false for
// absent or unreadable snapshots; a corrupt snapshot is never fatal.
type Store interface {
	Load(key string) (*model.Snapshot, bool)
	Save(key string, snapshot *model.Snapshot) error
}

// writeOnly hides cached snapshots from readers while still recording new
// ones, which forces a refetch of every category.
type writeOnly struct {
	inner Store
}

// NewWriteOnly wraps a store so Load always reports absent.
func NewWriteOnly(inner Store) Store {
	return &writeOnly{inner: inner}
}

func (s *writeOnly) Load(key string) (*model.Snapshot, bool) { return nil, false }

func (s *writeOnly) Save(key string, snapshot *model.Snapshot) error {
	return s.inner.Save(key, snapshot)
}

// sanitizeKey maps a category key to a safe filename component. Manifest
// keys are slugs, but the cache must not trust them with path separators.
func sanitizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, key)
}
