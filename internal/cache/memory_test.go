package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/filmpulse/filmpulse/internal/domain"
)

func entriesOf(ids ...string) []domain.RecommendationEntry {
	out := make([]domain.RecommendationEntry, len(ids))
	for i, id := range ids {
		out[i] = domain.RecommendationEntry{MovieID: id, PredictedScore: 4}
	}
	return out
}

func TestMemory_PutGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	token, err := m.Begin(ctx, "u1")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := m.Put(ctx, "u1", "", token, entriesOf("m1", "m2"), []string{"m1", "m2"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := m.Get(ctx, "u1", "")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if len(got) != 2 || got[0].MovieID != "m1" {
		t.Fatalf("unexpected entries: %+v", got)
	}

	// Variants are independent.
	if _, ok, _ := m.Get(ctx, "u1", "genre-x"); ok {
		t.Fatalf("unexpected hit for unfilled variant")
	}
	if _, ok, _ := m.Get(ctx, "u2", ""); ok {
		t.Fatalf("unexpected hit for other user")
	}
}

func TestMemory_StaleFillDropped(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	token, _ := m.Begin(ctx, "u1")

	// An invalidation between Begin and Put moves the epoch; the late
	// fill must not land.
	if err := m.Invalidate(ctx, "u1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if err := m.Put(ctx, "u1", "", token, entriesOf("m1"), []string{"m1"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	if _, ok, _ := m.Get(ctx, "u1", ""); ok {
		t.Fatalf("stale fill served after invalidation")
	}
}

func TestMemory_InvalidateDropsAllVariants(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	token, _ := m.Begin(ctx, "u1")
	_ = m.Put(ctx, "u1", "", token, entriesOf("m1"), []string{"m1"})
	_ = m.Put(ctx, "u1", "genre-x", token, entriesOf("m2"), []string{"m2"})

	if err := m.Invalidate(ctx, "u1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "u1", ""); ok {
		t.Fatalf("default variant survived invalidation")
	}
	if _, ok, _ := m.Get(ctx, "u1", "genre-x"); ok {
		t.Fatalf("genre variant survived invalidation")
	}
}

func TestMemory_InvalidateMovie(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	t1, _ := m.Begin(ctx, "u1")
	_ = m.Put(ctx, "u1", "", t1, entriesOf("m1"), []string{"m1", "m2"})
	t2, _ := m.Begin(ctx, "u2")
	_ = m.Put(ctx, "u2", "", t2, entriesOf("m3"), []string{"m3"})

	if err := m.InvalidateMovie(ctx, "m2"); err != nil {
		t.Fatalf("invalidate movie: %v", err)
	}

	if _, ok, _ := m.Get(ctx, "u1", ""); ok {
		t.Fatalf("list touching the movie survived invalidation")
	}
	if _, ok, _ := m.Get(ctx, "u2", ""); !ok {
		t.Fatalf("unrelated list was evicted")
	}

	// A movie no computation touched is a no-op.
	if err := m.InvalidateMovie(ctx, "unknown"); err != nil {
		t.Fatalf("invalidate unknown movie: %v", err)
	}
}

func TestMemory_ReusedTokenAfterEviction(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	t1, _ := m.Begin(ctx, "u1")
	_ = m.Put(ctx, "u1", "", t1, entriesOf("m1"), []string{"m1"})
	_ = m.Invalidate(ctx, "u1")

	// The epoch survives eviction, so the pre-invalidation token stays
	// dead even after the entry is gone.
	if err := m.Put(ctx, "u1", "", t1, entriesOf("m1"), []string{"m1"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "u1", ""); ok {
		t.Fatalf("dead token resurrected an entry")
	}

	t2, _ := m.Begin(ctx, "u1")
	if t2 == t1 {
		t.Fatalf("epoch did not advance across invalidation")
	}
	_ = m.Put(ctx, "u1", "", t2, entriesOf("m1"), []string{"m1"})
	if _, ok, _ := m.Get(ctx, "u1", ""); !ok {
		t.Fatalf("fresh fill rejected")
	}
}

func TestMemory_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10 * time.Millisecond)

	token, _ := m.Begin(ctx, "u1")
	_ = m.Put(ctx, "u1", "", token, entriesOf("m1"), []string{"m1"})

	if _, ok, _ := m.Get(ctx, "u1", ""); !ok {
		t.Fatalf("expected hit before expiry")
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok, _ := m.Get(ctx, "u1", ""); ok {
		t.Fatalf("expected miss after expiry")
	}
}

func TestMemory_PutCopiesEntries(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	entries := entriesOf("m1")
	token, _ := m.Begin(ctx, "u1")
	_ = m.Put(ctx, "u1", "", token, entries, []string{"m1"})

	entries[0].MovieID = "mutated"

	got, ok, _ := m.Get(ctx, "u1", "")
	if !ok || got[0].MovieID != "m1" {
		t.Fatalf("cached entries share caller's backing array: %+v", got)
	}
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := fmt.Sprintf("u%d", i%4)
			for j := 0; j < 100; j++ {
				token, _ := m.Begin(ctx, userID)
				_ = m.Put(ctx, userID, "", token, entriesOf("m1"), []string{"m1"})
				_, _, _ = m.Get(ctx, userID, "")
				if j%10 == 0 {
					_ = m.Invalidate(ctx, userID)
				}
				if j%25 == 0 {
					_ = m.InvalidateMovie(ctx, "m1")
				}
			}
		}(i)
	}
	wg.Wait()

	hits, misses := m.Stats()
	if hits+misses == 0 {
		t.Fatalf("expected recorded lookups")
	}
}
