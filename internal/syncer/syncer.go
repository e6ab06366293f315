// Package syncer drives the end-to-end synchronization pass.
package syncer

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/kotosync/kotosync/internal/cache"
	"github.com/kotosync/kotosync/internal/mapper"
	"github.com/kotosync/kotosync/internal/model"
)

// Source fetches the manifest and category payloads.
type Source interface {
	FetchManifest(ctx context.Context) (*model.Manifest, error)
	FetchCategory(ctx context.Context, key string) ([]model.RawEntry, error)
}

// Store persists mapped sentences.
type Store interface {
	InsertBatch(ctx context.Context, sentences []model.Sentence) (int64, error)
}

// Summary aggregates the outcome of one pass. Every recoverable failure is
// counted here; nothing is swallowed silently.
type Summary struct {
	Inserted          int64 // newly inserted rows across all categories
	CategoriesSynced  int
	CategoriesFailed  int // fetch or store failure, category skipped
	CategoriesSkipped int // descriptor missing key or name
	CacheHits         int // categories served from cache, no network call
	MappingFailures   int // individual entries dropped
	Cancelled         bool
}

// Options tunes a Syncer.
type Options struct {
	Workers int // >1 parallelizes remote fetches only
	Verbose bool
	Out     io.Writer // progress output; defaults to os.Stderr
}

// Syncer coordinates source, cache and store. It owns no durable state.
type Syncer struct {
	source  Source
	cache   cache.Store
	store   Store
	workers int
	verbose bool
	out     io.Writer
}

// New creates a Syncer
func New(source Source, cacheStore cache.Store, store Store, opts Options) *Syncer {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	return &Syncer{
		source:  source,
		cache:   cacheStore,
		store:   store,
		workers: workers,
		verbose: opts.Verbose,
		out:     out,
	}
}

// fetchResult is the outcome of one remote category fetch.
type fetchResult struct {
	entries []model.RawEntry
	err     error
}

// Run executes one synchronization pass. A manifest failure is fatal; every
// per-category and per-record failure is recovered, counted and reported.
func (s *Syncer) Run(ctx context.Context) (*Summary, error) {
	manifest, err := s.source.FetchManifest(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}

	summary := &Summary{}

	// Resolve cache state up front so the prefetch knows what is stale.
	var descriptors []model.CategoryDescriptor
	cached := make(map[string]*model.Snapshot)
	var stale []model.CategoryDescriptor
	for _, desc := range manifest.Categories {
		if desc.Key == "" || desc.Name == "" {
			summary.CategoriesSkipped++
			continue
		}
		descriptors = append(descriptors, desc)
		if snapshot, found := s.cache.Load(desc.Key); found && !NeedsRefresh(snapshot, desc.Timestamp) {
			cached[desc.Key] = snapshot
		} else {
			stale = append(stale, desc)
		}
	}

	var fetched map[string]fetchResult
	if s.workers > 1 {
		fetched = s.prefetch(ctx, stale)
	}

	for _, desc := range descriptors {
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}
		s.syncCategory(ctx, desc, cached[desc.Key], fetched, summary)
	}

	return summary, nil
}

// syncCategory processes one manifest entry: resolve records via cache or
// fetch, map them, and insert the batch. Failures mark the category failed
// and never abort the run.
func (s *Syncer) syncCategory(ctx context.Context, desc model.CategoryDescriptor, snapshot *model.Snapshot, fetched map[string]fetchResult, summary *Summary) {
	var raws []model.RawEntry

	switch {
	case snapshot != nil:
		raws = snapshot.Sentences
		summary.CacheHits++
		s.logf("category %s (%s): cache fresh, %d entries", desc.Key, desc.Name, len(raws))
	default:
		result, prefetched := fetched[desc.Key]
		if !prefetched {
			entries, err := s.source.FetchCategory(ctx, desc.Key)
			result = fetchResult{entries: entries, err: err}
		}
		if result.err != nil {
			summary.CategoriesFailed++
			fmt.Fprintf(s.out, "category %s (%s): fetch failed, skipping: %v\n", desc.Key, desc.Name, result.err)
			return
		}
		raws = result.entries
		s.logf("category %s (%s): fetched %d entries", desc.Key, desc.Name, len(raws))

		// Snapshot carries the descriptor's timestamp so the next pass can
		// compare freshness. A cache write failure costs a refetch later,
		// not the category.
		if err := s.cache.Save(desc.Key, &model.Snapshot{Timestamp: desc.Timestamp, Sentences: raws}); err != nil {
			fmt.Fprintf(s.out, "category %s: cache save failed: %v\n", desc.Key, err)
		}
	}

	sentences, dropped := mapper.MapAll(raws)
	summary.MappingFailures += dropped
	if dropped > 0 {
		fmt.Fprintf(s.out, "category %s: dropped %d unmappable entries\n", desc.Key, dropped)
	}

	inserted, err := s.store.InsertBatch(ctx, sentences)
	if err != nil {
		summary.CategoriesFailed++
		fmt.Fprintf(s.out, "category %s: batch insert failed, skipping: %v\n", desc.Key, err)
		return
	}

	summary.Inserted += inserted
	summary.CategoriesSynced++
	s.logf("category %s: %d new rows", desc.Key, inserted)
}

// prefetch fans category fetches out over the worker count. Only the
// network calls run concurrently; cache writes and store inserts stay on
// the caller's goroutine, in manifest order.
func (s *Syncer) prefetch(ctx context.Context, stale []model.CategoryDescriptor) map[string]fetchResult {
	jobs := make(chan model.CategoryDescriptor)
	results := make(map[string]fetchResult, len(stale))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for desc := range jobs {
				entries, err := s.source.FetchCategory(ctx, desc.Key)
				mu.Lock()
				results[desc.Key] = fetchResult{entries: entries, err: err}
				mu.Unlock()
			}
		}()
	}

	for _, desc := range stale {
		select {
		case <-ctx.Done():
			// Unfetched categories will be reported as failed.
		case jobs <- desc:
			continue
		}
		break
	}
	close(jobs)
	wg.Wait()

	for _, desc := range stale {
		if _, ok := results[desc.Key]; !ok {
			results[desc.Key] = fetchResult{err: ctx.Err()}
		}
	}
	return results
}

func (s *Syncer) logf(format string, args ...interface{}) {
	if s.verbose {
		fmt.Fprintf(s.out, format+"\n", args...)
	}
}
