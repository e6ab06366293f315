package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/kotosync/kotosync/internal/model"
)

// MemoryStore keeps decoded snapshots in memory with a TTL. It fronts the
// disk store so repeated passes skip the decode.
type MemoryStore struct {
	cache *gocache.Cache
}

// NewMemoryStore creates a new memory snapshot store
func NewMemoryStore(defaultTTL, cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Load retrieves the snapshot for key
func (s *MemoryStore) Load(key string) (*model.Snapshot, bool) {
	if val, found := s.cache.Get(key); found {
		return val.(*model.Snapshot), true
	}
	return nil, false
}

// Save stores the snapshot for key with the default TTL
func (s *MemoryStore) Save(key string, snapshot *model.Snapshot) error {
	s.cache.Set(key, snapshot, gocache.DefaultExpiration)
	return nil
}
