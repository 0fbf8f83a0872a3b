package lru

import (
	"testing"
	"time"

	"github.com/haukened/navguard/internal/guard/domain"
)

func TestDecisionCache_HitsMissesEvictions(t *testing.T) {
	c, err := New(2, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	legit := domain.SiteDecision{Category: domain.CategoryLegitimate, MatchedRule: "a.com"}

	if _, ok := c.Get("a.com"); ok {
		t.Fatal("unexpected hit on empty cache")
	}
	c.Put("a.com", legit)
	c.Put("b.com", domain.UnlistedDecision())
	if d, ok := c.Get("a.com"); !ok || d != legit {
		t.Fatalf("Get = %+v, %v", d, ok)
	}
	c.Put("c.com", domain.UnlistedDecision()) // evicts b.com (a.com was touched)

	if _, ok := c.Get("b.com"); ok {
		t.Fatal("expected b.com to be evicted")
	}
	st := c.Stats()
	if st.Capacity != 2 || st.Size != 2 || st.Hits != 1 || st.Misses != 2 || st.Evictions != 1 {
		t.Fatalf("stats = %+v", st)
	}

	c.Purge()
	if c.Len() != 0 || c.Stats().Evictions != 3 {
		t.Fatalf("after purge len=%d stats=%+v", c.Len(), c.Stats())
	}
}

func TestDisabledCache(t *testing.T) {
	c, err := New(0, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	c.Put("a.com", domain.UnlistedDecision())
	if _, ok := c.Get("a.com"); ok {
		t.Fatal("disabled cache must always miss")
	}
	c.Purge()
	if c.Len() != 0 || c.Stats().Capacity != 0 || c.Stats().Hits != 0 {
		t.Fatalf("disabled cache stats = %+v", c.Stats())
	}
}

func TestDecisionCache_TTL(t *testing.T) {
	c, err := New(8, 30*time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.Put("a.com", domain.UnlistedDecision())
	if _, ok := c.Get("a.com"); !ok {
		t.Fatal("expected fresh entry to hit")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := c.Get("a.com"); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("entry did not expire")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if st := c.Stats(); st.Hits < 1 || st.Misses < 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestDecisionCache_TTLBoundedBySize(t *testing.T) {
	c, err := New(2, time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, name := range []string{"a.com", "b.com", "c.com"} {
		c.Put(name, domain.UnlistedDecision())
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	if _, ok := c.Get("a.com"); ok {
		t.Fatal("expected oldest entry to be evicted")
	}
	if c.Stats().Evictions != 1 {
		t.Fatalf("evictions = %d, want 1", c.Stats().Evictions)
	}
}
