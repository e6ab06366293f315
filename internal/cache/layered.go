package cache

import (
	"time"

	"github.com/kotosync/kotosync/internal/model"
)

// LayeredStore combines a memory layer with the durable disk layer. Disk is
// the source of truth; memory only saves re-decoding within a process.
type LayeredStore struct {
	memory Store
	disk   Store
}

// NewLayeredStore creates a layered snapshot store
func NewLayeredStore(memoryTTL time.Duration, diskDir string) *LayeredStore {
	return &LayeredStore{
		memory: NewMemoryStore(memoryTTL, 10*time.Minute),
		disk:   NewDiskStore(diskDir),
	}
}

// Load checks memory first, then disk, promoting disk hits to memory.
func (s *LayeredStore) Load(key string) (*model.Snapshot, bool) {
	if snapshot, found := s.memory.Load(key); found {
		return snapshot, true
	}

	if snapshot, found := s.disk.Load(key); found {
		_ = s.memory.Save(key, snapshot)
		return snapshot, true
	}

	return nil, false
}

// Save writes to both layers; the disk write decides success.
func (s *LayeredStore) Save(key string, snapshot *model.Snapshot) error {
	if err := s.disk.Save(key, snapshot); err != nil {
		return err
	}
	_ = s.memory.Save(key, snapshot)
	return nil
}
