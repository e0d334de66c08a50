package session

import (
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRegistry() (*Registry, *fakeClock) {
	clock := &fakeClock{now: epoch}
	return NewRegistry(WithClock(clock.Now)), clock
}

// TestTouchIsIdempotent tests that a second touch never changes the first-seen time
func TestTouchIsIdempotent(t *testing.T) {
	r, clock := newTestRegistry()

	if !r.Touch("c1") {
		t.Error("First Touch should insert")
	}
	first, ok := r.LastSeen("c1")
	if !ok {
		t.Fatal("LastSeen should find c1")
	}

	clock.Advance(time.Hour)
	if r.Touch("c1") {
		t.Error("Second Touch should not insert")
	}

	second, _ := r.LastSeen("c1")
	if !second.Equal(first) {
		t.Errorf("LastSeen changed from %s to %s", first, second)
	}
}

// TestLifecycle tests has/forget and the sentinel for unknown ids
func TestLifecycle(t *testing.T) {
	r, _ := newTestRegistry()

	if r.Has("c1") {
		t.Error("Empty registry should not have c1")
	}
	if _, ok := r.LastSeen("c1"); ok {
		t.Error("LastSeen should report absent for unknown id")
	}

	r.Touch("c1")
	if !r.Has("c1") {
		t.Error("Registry should have c1 after Touch")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}

	if !r.Forget("c1") {
		t.Error("Forget should return true for known id")
	}
	if r.Has("c1") {
		t.Error("Registry should not have c1 after Forget")
	}
	if r.Forget("c1") {
		t.Error("Forget should return false for unknown id")
	}

	// a forgotten session may come back with a new first-seen time
	if !r.Touch("c1") {
		t.Error("Touch after Forget should insert again")
	}
}

// TestTouchEmptyID tests that empty ids are never registered
func TestTouchEmptyID(t *testing.T) {
	r, _ := newTestRegistry()
	if r.Touch("") {
		t.Error("Touch with empty id should not insert")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

// TestEvictBefore tests the explicit eviction sweep
func TestEvictBefore(t *testing.T) {
	r, clock := newTestRegistry()

	for i := 0; i < 5; i++ {
		r.Touch(fmt.Sprintf("c%d", i))
		clock.Advance(time.Minute)
	}
	r.Forget("c1")

	evicted := r.EvictBefore(epoch.Add(3 * time.Minute))
	sort.Strings(evicted)

	want := []string{"c0", "c2"}
	if fmt.Sprint(evicted) != fmt.Sprint(want) {
		t.Errorf("EvictBefore() = %v, want %v", evicted, want)
	}

	for _, id := range []string{"c3", "c4"} {
		if !r.Has(id) {
			t.Errorf("Session %s should not have been evicted", id)
		}
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}

	if evicted := r.EvictBefore(epoch); len(evicted) != 0 {
		t.Errorf("Nothing should be evicted, got %v", evicted)
	}
}

// TestRange tests iteration over all sessions
func TestRange(t *testing.T) {
	r, _ := newTestRegistry()
	r.Touch("a")
	r.Touch("b")

	seen := map[string]bool{}
	r.Range(func(id string, _ time.Time) bool {
		seen[id] = true
		return true
	})
	if len(seen) != 2 || !seen["a"] || !seen["b"] {
		t.Errorf("Range visited %v", seen)
	}
}

// TestConcurrentAccess tests concurrent touch/forget/evict without external locking
func TestConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := fmt.Sprintf("c%d", i%50)
				switch (w + i) % 3 {
				case 0:
					r.Touch(id)
				case 1:
					r.Forget(id)
				default:
					r.Has(id)
				}
			}
		}(w)
	}
	wg.Wait()

	// the age index must agree with the map
	r.EvictBefore(time.Now().Add(time.Hour))
	if r.Len() != 0 {
		t.Errorf("Len() = %d after evicting everything, want 0", r.Len())
	}
}
