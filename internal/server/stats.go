package server

import (
	"sync"
	"time"
)

// Stats tracks request counts over sliding one-minute, one-hour and
// one-day windows.
type Stats struct {
	perMinute *slidingWindow
	perHour   *slidingWindow
	perDay    *slidingWindow
}

// StatsSnapshot is the JSON shape served at /stats.
type StatsSnapshot struct {
	RequestsPerMinute int `json:"requests_per_minute"`
	RequestsPerHour   int `json:"requests_per_hour"`
	RequestsPerDay    int `json:"requests_per_day"`
}

// NewStats creates request statistics counters
func NewStats() *Stats {
	return &Stats{
		perMinute: newSlidingWindow(time.Minute),
		perHour:   newSlidingWindow(time.Hour),
		perDay:    newSlidingWindow(24 * time.Hour),
	}
}

// Increment records one request in every window.
func (s *Stats) Increment() {
	now := time.Now()
	s.perMinute.increment(now)
	s.perHour.increment(now)
	s.perDay.increment(now)
}

// Snapshot returns the current counts.
func (s *Stats) Snapshot() StatsSnapshot {
	now := time.Now()
	return StatsSnapshot{
		RequestsPerMinute: s.perMinute.count(now),
		RequestsPerHour:   s.perHour.count(now),
		RequestsPerDay:    s.perDay.count(now),
	}
}

// slidingWindow counts events inside a moving time window. Timestamps are
// kept in arrival order, so pruning pops from the front.
type slidingWindow struct {
	mu     sync.Mutex
	window time.Duration
	events []time.Time
}

func newSlidingWindow(window time.Duration) *slidingWindow {
	return &slidingWindow{window: window}
}

func (w *slidingWindow) increment(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(now)
	w.events = append(w.events, now)
}

func (w *slidingWindow) count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(now)
	return len(w.events)
}

func (w *slidingWindow) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.events) && !w.events[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.events = append(w.events[:0], w.events[i:]...)
	}
}
