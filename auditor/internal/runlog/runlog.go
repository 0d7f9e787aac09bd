package runlog

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/storefront/speedaudit/auditor/internal/audit"
)

// Entry is a run summary together with the time it was recorded.
type Entry struct {
	Summary    *audit.Summary
	RecordedAt time.Time
}

// Log is a thread-safe in-memory record of recent audit runs, keyed by run ID.
// A background goroutine (Run) evicts entries older than the TTL.
type Log struct {
	mu   sync.RWMutex
	data map[string]*Entry
	ttl  time.Duration
	now  func() time.Time // injectable for deterministic tests
}

// New creates a Log with the given TTL.
func New(ttl time.Duration) *Log {
	return &Log{
		data: make(map[string]*Entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Put records sum under sum.RunID, replacing any earlier entry with that ID.
// Callers must not modify sum after calling Put.
func (l *Log) Put(sum *audit.Summary) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.data[sum.RunID] = &Entry{Summary: sum, RecordedAt: l.now()}
}

// Get returns the entry for runID if it is still within the TTL.
func (l *Log) Get(runID string) (*Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.data[runID]
	if !ok || !e.RecordedAt.After(l.now().Add(-l.ttl)) {
		return nil, false
	}
	return e, true
}

// Last returns the most recently recorded entry within the TTL.
func (l *Log) Last() (*Entry, bool) {
	entries := l.List()
	if len(entries) == 0 {
		return nil, false
	}
	return entries[0], true
}

// List returns the entries within the TTL, newest first.
func (l *Log) List() []*Entry {
	l.mu.RLock()
	cutoff := l.now().Add(-l.ttl)
	out := make([]*Entry, 0, len(l.data))
	for _, e := range l.data {
		if e.RecordedAt.After(cutoff) {
			out = append(out, e)
		}
	}
	l.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Entry) int {
		if c := b.RecordedAt.Compare(a.RecordedAt); c != 0 {
			return c
		}
		return b.Summary.FinishedAt.Compare(a.Summary.FinishedAt)
	})
	return out
}

// Count returns the number of entries held, including stale ones.
func (l *Log) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.data)
}

// Evict removes entries recorded at or before now minus TTL and returns how
// many were removed.
func (l *Log) Evict(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := now.Add(-l.ttl)
	removed := 0
	for id, e := range l.data {
		if !e.RecordedAt.After(cutoff) {
			delete(l.data, id)
			removed++
		}
	}
	return removed
}

// Run evicts stale entries every half TTL (minimum one second) until ctx is
// cancelled.
func (l *Log) Run(ctx context.Context) {
	interval := l.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := l.Evict(now); n > 0 {
				slog.Debug("runlog: evicted expired runs", "count", n)
			}
		}
	}
}
