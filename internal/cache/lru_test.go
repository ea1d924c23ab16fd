package cache

import (
	"testing"
	"time"
)

func TestLRUCache_DeleteByPrefix(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("report:1:a", 1)
	c.Set("report:1:b", 2)
	c.Set("report:2:a", 3)

	if removed := c.DeleteByPrefix("report:1:"); removed != 2 {
		t.Fatalf("DeleteByPrefix removed %d, want 2", removed)
	}
	if _, ok := c.Get("report:1:a"); ok {
		t.Error("report:1:a should be gone")
	}
	if _, ok := c.Get("report:2:a"); !ok {
		t.Error("report:2:a should survive")
	}
	if c.Size() != 1 {
		t.Errorf("Size = %d, want 1", c.Size())
	}
}

func TestLRUCache_DeleteByPrefix_NoMatch(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("report:1:a", 1)

	if removed := c.DeleteByPrefix("report:9:"); removed != 0 {
		t.Fatalf("DeleteByPrefix removed %d, want 0", removed)
	}
	if c.Size() != 1 {
		t.Errorf("Size = %d, want 1", c.Size())
	}
}

func TestLRUCache_EvictsOldest(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // a is now most recently used
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should survive")
	}
}

func TestLRUCache_CleanExpired(t *testing.T) {
	c := NewLRUCache[int](10, time.Nanosecond)
	c.Set("a", 1)
	c.Set("b", 2)
	time.Sleep(time.Millisecond)

	if removed := c.CleanExpired(); removed != 2 {
		t.Fatalf("CleanExpired removed %d, want 2", removed)
	}
	if c.Size() != 0 {
		t.Errorf("Size = %d, want 0", c.Size())
	}
}
