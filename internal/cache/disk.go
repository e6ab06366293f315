package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kotosync/kotosync/internal/model"
)

// DiskStore persists snapshots as one JSON file per category key.
type DiskStore struct {
	dir string
}

// NewDiskStore creates a disk snapshot store rooted at dir
func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{dir: dir}
}

// Load reads the snapshot for key. Missing or unparseable files are
// reported as absent.
func (s *DiskStore) Load(key string) (*model.Snapshot, bool) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, false
	}

	var snapshot model.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, false
	}

	return &snapshot, true
}

// Save writes the snapshot for key. The write goes to a temp file in the
// same directory and is renamed into place, so a crash mid-write leaves the
// previous snapshot intact and readers never observe a partial file.
func (s *DiskStore) Save(key string, snapshot *model.Snapshot) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, sanitizeKey(key)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close snapshot: %w", err)
	}

	if err := os.Rename(tmpName, s.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename snapshot: %w", err)
	}

	return nil
}

// path generates the file path for a category key
func (s *DiskStore) path(key string) string {
	return filepath.Join(s.dir, sanitizeKey(key)+".json")
}
