package syncer_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kotosync/kotosync/internal/cache"
	"github.com/kotosync/kotosync/internal/model"
	"github.com/kotosync/kotosync/internal/remote"
	"github.com/kotosync/kotosync/internal/store"
	"github.com/kotosync/kotosync/internal/syncer"
)

// bundleServer fakes the remote bundle: a manifest plus per-key category
// payloads, with per-path request counting.
type bundleServer struct {
	*httptest.Server

	mu         sync.Mutex
	manifest   model.Manifest
	categories map[string][]model.RawEntry
	failKeys   map[string]int // key -> status code to return
	hits       map[string]int
}

func newBundleServer(t *testing.T) *bundleServer {
	t.Helper()
	b := &bundleServer{
		categories: make(map[string][]model.RawEntry),
		failKeys:   make(map[string]int),
		hits:       make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/version.json", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.hits["manifest"]++
		_ = json.NewEncoder(w).Encode(b.manifest)
	})
	mux.HandleFunc("/sentences/", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSuffix(filepath.Base(r.URL.Path), ".json")

		b.mu.Lock()
		defer b.mu.Unlock()
		b.hits[key]++
		if code, ok := b.failKeys[key]; ok {
			w.WriteHeader(code)
			return
		}
		entries, ok := b.categories[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(entries)
	})

	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Server.Close)
	return b
}

func (b *bundleServer) hitCount(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[key]
}

func (b *bundleServer) source() *remote.Source {
	return remote.NewSource(model.RemoteConfig{
		ManifestURL:     b.URL + "/version.json",
		CategoryURL:     b.URL + "/sentences/%s.json",
		ManifestTimeout: 5 * time.Second,
		CategoryTimeout: 5 * time.Second,
		UserAgent:       "kotosync-test",
		MaxBodyBytes:    1 << 20,
		RatePerSecond:   1000,
		RateBurst:       100,
	})
}

func strptr(s string) *string { return &s }
func intptr(i int) *int       { return &i }

func entry(category string) model.RawEntry {
	return model.RawEntry{
		UUID:   strptr(uuid.NewString()),
		Text:   strptr("一期一会。"),
		Type:   strptr(category),
		From:   strptr("somewhere"),
		Length: intptr(5),
	}
}

type fixture struct {
	server *bundleServer
	cache  *cache.DiskStore
	store  *store.Store
}

func setup(t *testing.T) *fixture {
	t.Helper()
	server := newBundleServer(t)
	st, err := store.Open(filepath.Join(t.TempDir(), "sentences.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return &fixture{
		server: server,
		cache:  cache.NewDiskStore(t.TempDir()),
		store:  st,
	}
}

func (f *fixture) run(t *testing.T, opts syncer.Options) *syncer.Summary {
	t.Helper()
	opts.Out = io.Discard
	s := syncer.New(f.server.source(), f.cache, f.store, opts)
	summary, err := s.Run(context.Background())
	require.NoError(t, err)
	return summary
}

func TestRun_ExampleScenario(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// One entry is already stored; remote returns it plus a new one.
	existing := entry("a")
	fresh := entry("a")
	_, err := f.store.InsertBatch(ctx, []model.Sentence{{
		UUID: *existing.UUID, Text: *existing.Text, Category: "a", From: "somewhere", Length: 5,
	}})
	require.NoError(t, err)

	f.server.manifest = model.Manifest{Categories: []model.CategoryDescriptor{
		{Key: "a", Name: "Anime", Timestamp: 100},
	}}
	f.server.categories["a"] = []model.RawEntry{existing, fresh}

	summary := f.run(t, syncer.Options{})

	assert.Equal(t, int64(1), summary.Inserted)
	assert.Equal(t, 1, summary.CategoriesSynced)
	assert.Equal(t, 1, f.server.hitCount("a"), "exactly one network fetch")

	snapshot, found := f.cache.Load("a")
	require.True(t, found, "cache must hold the new snapshot")
	assert.Equal(t, int64(100), snapshot.Timestamp)
	assert.Len(t, snapshot.Sentences, 2, "cache holds both raw entries")
}

func TestRun_SecondRunIsIdempotent(t *testing.T) {
	f := setup(t)

	f.server.manifest = model.Manifest{Categories: []model.CategoryDescriptor{
		{Key: "a", Name: "Anime", Timestamp: 100},
		{Key: "b", Name: "Comic", Timestamp: 100},
	}}
	f.server.categories["a"] = []model.RawEntry{entry("a"), entry("a")}
	f.server.categories["b"] = []model.RawEntry{entry("b")}

	first := f.run(t, syncer.Options{})
	assert.Equal(t, int64(3), first.Inserted)
	assert.Equal(t, 2, first.CategoriesSynced)

	second := f.run(t, syncer.Options{})
	assert.Zero(t, second.Inserted, "unchanged manifest must insert nothing")
	assert.Equal(t, 2, second.CacheHits)
	assert.Equal(t, 1, f.server.hitCount("a"), "fresh cache must skip the network")
	assert.Equal(t, 1, f.server.hitCount("b"))
}

func TestRun_StaleCacheRefetched(t *testing.T) {
	f := setup(t)

	f.server.manifest = model.Manifest{Categories: []model.CategoryDescriptor{
		{Key: "a", Name: "Anime", Timestamp: 100},
	}}
	f.server.categories["a"] = []model.RawEntry{entry("a")}

	f.run(t, syncer.Options{})
	require.Equal(t, 1, f.server.hitCount("a"))

	// Bump the manifest timestamp: the cached snapshot is now stale.
	f.server.mu.Lock()
	f.server.manifest.Categories[0].Timestamp = 200
	f.server.categories["a"] = append(f.server.categories["a"], entry("a"))
	f.server.mu.Unlock()

	summary := f.run(t, syncer.Options{})
	assert.Equal(t, 2, f.server.hitCount("a"), "stale cache must refetch")
	assert.Equal(t, int64(1), summary.Inserted)

	snapshot, found := f.cache.Load("a")
	require.True(t, found)
	assert.Equal(t, int64(200), snapshot.Timestamp)
}

func TestRun_PartialFailureIsolation(t *testing.T) {
	f := setup(t)

	f.server.manifest = model.Manifest{Categories: []model.CategoryDescriptor{
		{Key: "a", Name: "Anime", Timestamp: 100},
		{Key: "b", Name: "Comic", Timestamp: 100},
		{Key: "c", Name: "Game", Timestamp: 100},
	}}
	f.server.categories["a"] = []model.RawEntry{entry("a")}
	f.server.categories["c"] = []model.RawEntry{entry("c")}
	f.server.failKeys["b"] = http.StatusNotFound

	summary := f.run(t, syncer.Options{})

	assert.Equal(t, int64(2), summary.Inserted, "a and c must land despite b failing")
	assert.Equal(t, 2, summary.CategoriesSynced)
	assert.Equal(t, 1, summary.CategoriesFailed)

	count, err := f.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	if _, found := f.cache.Load("b"); found {
		t.Error("failed category must not leave a snapshot behind")
	}
}

// faultyStore fails batch inserts for one category and delegates the rest.
type faultyStore struct {
	inner   syncer.Store
	failFor string
}

func (s *faultyStore) InsertBatch(ctx context.Context, sentences []model.Sentence) (int64, error) {
	if len(sentences) > 0 && sentences[0].Category == s.failFor {
		return 0, errors.New("database is locked")
	}
	return s.inner.InsertBatch(ctx, sentences)
}

func TestRun_StoreFailureSkipsCategoryOnly(t *testing.T) {
	f := setup(t)

	f.server.manifest = model.Manifest{Categories: []model.CategoryDescriptor{
		{Key: "a", Name: "Anime", Timestamp: 100},
		{Key: "b", Name: "Comic", Timestamp: 100},
		{Key: "c", Name: "Game", Timestamp: 100},
	}}
	f.server.categories["a"] = []model.RawEntry{entry("a")}
	f.server.categories["b"] = []model.RawEntry{entry("b")}
	f.server.categories["c"] = []model.RawEntry{entry("c")}

	s := syncer.New(f.server.source(), f.cache, &faultyStore{inner: f.store, failFor: "b"}, syncer.Options{Out: io.Discard})
	summary, err := s.Run(context.Background())
	require.NoError(t, err, "a store write failure must not abort the run")

	assert.Equal(t, 1, summary.CategoriesFailed)
	assert.Equal(t, 2, summary.CategoriesSynced)
	assert.Equal(t, int64(2), summary.Inserted, "sibling categories must still insert")

	count, err := f.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestRun_ManifestFailureIsFatal(t *testing.T) {
	f := setup(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	src := remote.NewSource(model.RemoteConfig{
		ManifestURL:     server.URL + "/version.json",
		CategoryURL:     server.URL + "/sentences/%s.json",
		ManifestTimeout: 2 * time.Second,
		CategoryTimeout: 2 * time.Second,
		MaxBodyBytes:    1 << 20,
		RatePerSecond:   1000,
		RateBurst:       100,
	})
	s := syncer.New(src, f.cache, f.store, syncer.Options{Out: io.Discard})
	_, err := s.Run(context.Background())
	require.Error(t, err)
}

func TestRun_IncompleteDescriptorsSkipped(t *testing.T) {
	f := setup(t)

	f.server.manifest = model.Manifest{Categories: []model.CategoryDescriptor{
		{Key: "", Name: "Nameless", Timestamp: 100},
		{Key: "k", Name: "", Timestamp: 100},
		{Key: "a", Name: "Anime", Timestamp: 100},
	}}
	f.server.categories["a"] = []model.RawEntry{entry("a")}

	summary := f.run(t, syncer.Options{})
	assert.Equal(t, 2, summary.CategoriesSkipped)
	assert.Equal(t, 1, summary.CategoriesSynced)
	assert.Zero(t, f.server.hitCount("k"), "incomplete descriptors are skipped, not fetched")
}

func TestRun_MappingFailuresCounted(t *testing.T) {
	f := setup(t)

	bad := entry("a")
	bad.Length = nil
	good := entry("a")

	f.server.manifest = model.Manifest{Categories: []model.CategoryDescriptor{
		{Key: "a", Name: "Anime", Timestamp: 100},
	}}
	f.server.categories["a"] = []model.RawEntry{bad, good}

	summary := f.run(t, syncer.Options{})
	assert.Equal(t, 1, summary.MappingFailures)
	assert.Equal(t, int64(1), summary.Inserted, "sibling entry must still be inserted")

	snapshot, found := f.cache.Load("a")
	require.True(t, found)
	assert.Len(t, snapshot.Sentences, 2, "cache keeps raw entries pre-mapping")
}

func TestRun_ConcurrentWorkers(t *testing.T) {
	f := setup(t)

	var descs []model.CategoryDescriptor
	want := int64(0)
	for _, key := range []string{"a", "b", "c", "d", "e"} {
		descs = append(descs, model.CategoryDescriptor{Key: key, Name: key, Timestamp: 100})
		f.server.categories[key] = []model.RawEntry{entry(key), entry(key)}
		want += 2
	}
	f.server.manifest = model.Manifest{Categories: descs}
	f.server.failKeys["c"] = http.StatusNotFound

	summary := f.run(t, syncer.Options{Workers: 3})

	assert.Equal(t, want-2, summary.Inserted)
	assert.Equal(t, 4, summary.CategoriesSynced)
	assert.Equal(t, 1, summary.CategoriesFailed)
}

func TestRun_CancelledContext(t *testing.T) {
	f := setup(t)

	f.server.manifest = model.Manifest{Categories: []model.CategoryDescriptor{
		{Key: "a", Name: "Anime", Timestamp: 100},
	}}
	f.server.categories["a"] = []model.RawEntry{entry("a")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := syncer.New(f.server.source(), f.cache, f.store, syncer.Options{Out: io.Discard})
	summary, err := s.Run(ctx)
	if err != nil {
		// Manifest fetch may already observe the cancellation; that is the
		// fatal-init path and equally acceptable.
		return
	}
	assert.True(t, summary.Cancelled)
	assert.Zero(t, summary.CategoriesSynced)
}
