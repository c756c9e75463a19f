package semantic

import (
	"testing"
	"time"
)

func TestCachePutGet(t *testing.T) {
	c, err := New(10, 0, time.Minute)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	key := Key("Find Foo", map[string]string{"lang": "go"})
	hits := []RankedHit{{EntityID: "a", FinalScore: 1.0}}
	c.Put(key, hits)

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("Get() miss, want hit")
	}
	if len(got) != 1 || got[0].EntityID != "a" {
		t.Fatalf("Get() = %+v, want the stored hits", got)
	}
}

func TestKeyNormalizesQueryCaseAndWhitespace(t *testing.T) {
	a := Key("Find   Foo", map[string]string{"lang": "go"})
	b := Key("find foo", map[string]string{"lang": "go"})
	if a != b {
		t.Fatalf("Key() = %q vs %q, want normalized queries to collide", a, b)
	}
}

func TestKeyDistinguishesFilters(t *testing.T) {
	a := Key("find foo", map[string]string{"lang": "go"})
	b := Key("find foo", map[string]string{"lang": "python"})
	if a == b {
		t.Fatal("Key() should differ when filters differ")
	}
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	c, err := New(10, 0, time.Millisecond)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	key := Key("q", nil)
	c.Put(key, []RankedHit{{EntityID: "a"}})

	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get(key); ok {
		t.Fatal("Get() should miss after TTL expiry")
	}
}

func TestCacheEvictsByEntryCount(t *testing.T) {
	c, err := New(2, 0, time.Minute)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.Put("a", []RankedHit{{EntityID: "a"}})
	c.Put("b", []RankedHit{{EntityID: "b"}})
	c.Put("c", []RankedHit{{EntityID: "c"}})

	if c.Len() > 2 {
		t.Fatalf("Len() = %d, want <= 2 (maxEntries)", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Fatal("oldest entry should have been evicted")
	}
}

func TestCacheEvictsByByteBudget(t *testing.T) {
	c, err := New(100, 1, time.Minute)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.Put("a", []RankedHit{{EntityID: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", Path: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}})
	c.Put("b", []RankedHit{{EntityID: "b"}})

	if c.Len() >= 2 {
		t.Fatalf("Len() = %d, want eviction once the tiny byte budget is exceeded", c.Len())
	}
}
