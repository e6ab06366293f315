package cache

import (
	"testing"
	"time"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := NewMemoryStore(time.Minute, time.Minute)

	if _, found := store.Load("a"); found {
		t.Fatal("expected absent before save")
	}
	if err := store.Save("a", sampleSnapshot(100)); err != nil {
		t.Fatal(err)
	}
	got, found := store.Load("a")
	if !found || got.Timestamp != 100 {
		t.Errorf("expected cached snapshot with timestamp 100, got %+v", got)
	}
}

func TestLayeredStore_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()

	// Seed disk out of band, as a previous process would have.
	if err := NewDiskStore(dir).Save("a", sampleSnapshot(100)); err != nil {
		t.Fatal(err)
	}

	layered := NewLayeredStore(time.Minute, dir)
	if _, found := layered.memory.Load("a"); found {
		t.Fatal("memory should start cold")
	}

	got, found := layered.Load("a")
	if !found || got.Timestamp != 100 {
		t.Fatalf("expected disk hit, got %+v found=%v", got, found)
	}
	if _, found := layered.memory.Load("a"); !found {
		t.Error("disk hit should be promoted to memory")
	}
}

func TestLayeredStore_SaveWritesBothLayers(t *testing.T) {
	dir := t.TempDir()
	layered := NewLayeredStore(time.Minute, dir)

	if err := layered.Save("a", sampleSnapshot(42)); err != nil {
		t.Fatal(err)
	}

	if got, found := layered.memory.Load("a"); !found || got.Timestamp != 42 {
		t.Error("save should populate memory layer")
	}
	if got, found := NewDiskStore(dir).Load("a"); !found || got.Timestamp != 42 {
		t.Error("save should populate disk layer")
	}
}

var _ Store = (*DiskStore)(nil)
var _ Store = (*MemoryStore)(nil)
var _ Store = (*LayeredStore)(nil)
