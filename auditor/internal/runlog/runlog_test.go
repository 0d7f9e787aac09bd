package runlog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/storefront/speedaudit/auditor/internal/audit"
)

func summary(id string) *audit.Summary {
	return &audit.Summary{RunID: id, NotLive: []string{}}
}

// fixedClock returns a func() time.Time that always returns t.
func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestPutAndGet(t *testing.T) {
	l := New(time.Hour)
	l.Put(summary("run-1"))

	e, ok := l.Get("run-1")
	if !ok {
		t.Fatal("Get: expected entry, got none")
	}
	if e.Summary.RunID != "run-1" {
		t.Errorf("RunID: got %q, want run-1", e.Summary.RunID)
	}
}

func TestGet_Missing(t *testing.T) {
	l := New(time.Hour)
	if _, ok := l.Get("unknown"); ok {
		t.Fatal("Get on empty log: expected false, got true")
	}
}

func TestGet_Expired(t *testing.T) {
	base := time.Now()
	l := New(time.Hour)
	l.now = fixedClock(base.Add(-2 * time.Hour))
	l.Put(summary("old"))

	l.now = fixedClock(base)
	if _, ok := l.Get("old"); ok {
		t.Error("Get: expired run should not be returned")
	}
}

func TestLast_Empty(t *testing.T) {
	l := New(time.Hour)
	if _, ok := l.Last(); ok {
		t.Fatal("Last on empty log: expected false, got true")
	}
}

func TestLast_ReturnsNewest(t *testing.T) {
	base := time.Now()
	l := New(time.Hour)

	l.now = fixedClock(base.Add(-20 * time.Minute))
	l.Put(summary("first"))
	l.now = fixedClock(base.Add(-10 * time.Minute))
	l.Put(summary("second"))
	l.now = fixedClock(base)

	e, ok := l.Last()
	if !ok {
		t.Fatal("Last: expected entry")
	}
	if e.Summary.RunID != "second" {
		t.Errorf("Last: got %q, want second", e.Summary.RunID)
	}
}

func TestList_NewestFirstExcludesStale(t *testing.T) {
	base := time.Now()
	l := New(time.Hour)

	l.now = fixedClock(base.Add(-3 * time.Hour))
	l.Put(summary("stale"))
	l.now = fixedClock(base.Add(-30 * time.Minute))
	l.Put(summary("a"))
	l.now = fixedClock(base.Add(-5 * time.Minute))
	l.Put(summary("b"))

	l.now = fixedClock(base)
	entries := l.List()
	if len(entries) != 2 {
		t.Fatalf("List: got %d entries, want 2", len(entries))
	}
	if entries[0].Summary.RunID != "b" || entries[1].Summary.RunID != "a" {
		t.Errorf("List order: got %q, %q; want b, a", entries[0].Summary.RunID, entries[1].Summary.RunID)
	}
	if l.Count() != 3 {
		t.Errorf("Count: got %d, want 3 (stale not yet evicted)", l.Count())
	}
}

func TestEvict_RemovesStale(t *testing.T) {
	base := time.Now()
	l := New(time.Hour)

	l.now = fixedClock(base.Add(-2 * time.Hour))
	l.Put(summary("old1"))
	l.Put(summary("old2"))
	l.now = fixedClock(base)
	l.Put(summary("live"))

	if removed := l.Evict(base); removed != 2 {
		t.Errorf("Evict: removed %d, want 2", removed)
	}
	if l.Count() != 1 {
		t.Errorf("Count after evict: got %d, want 1", l.Count())
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	l := New(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestConcurrentMixedOps(t *testing.T) {
	l := New(time.Hour)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			l.Put(summary("run"))
		}()
		go func() {
			defer wg.Done()
			l.List()
		}()
		go func() {
			defer wg.Done()
			l.Last()
		}()
	}
	wg.Wait()

	if l.Count() != 1 {
		t.Errorf("Count after concurrent puts: got %d, want 1", l.Count())
	}
}
