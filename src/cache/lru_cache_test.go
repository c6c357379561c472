package cache

import (
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func BenchmarkLRU_Set(b *testing.B) {
	cache := NewLRU[string](1000, 5*time.Minute)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Set(HashKey([]byte(strconv.Itoa(i))), "value")
	}
}

func BenchmarkLRU_ConcurrentAccess(b *testing.B) {
	cache := NewLRU[string](1000, 5*time.Minute)

	for i := 0; i < 100; i++ {
		cache.Set(HashKey([]byte(strconv.Itoa(i))), "value")
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			key := HashKey([]byte(strconv.Itoa(i % 100)))
			if i%2 == 0 {
				cache.Get(key)
			} else {
				cache.Set(key, "value")
			}
			i++
		}
	})
}

func TestLRU_Basic(t *testing.T) {
	cache := NewLRU[int](3, time.Hour)

	cache.Set("a", 1)
	cache.Set("b", 2)
	cache.Set("c", 3)

	if val, ok := cache.Get("a"); !ok || val != 1 {
		t.Errorf("expected 1, got %v", val)
	}

	// "b" is now least recently used
	cache.Set("d", 4)

	if _, ok := cache.Get("b"); ok {
		t.Error("expected 'b' to be evicted")
	}

	if cache.Len() != 3 {
		t.Errorf("expected cache length 3, got %d", cache.Len())
	}
}

func TestLRU_TTL(t *testing.T) {
	cache := NewLRU[string](10, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.Set("key", "value")
	if val, ok := cache.Get("key"); !ok || val != "value" {
		t.Fatal("expected value to be present")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := cache.Get("key"); ok {
		t.Fatal("expected value to be expired")
	}
}

func TestLRU_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	src := NewLRU[[]byte](4, time.Hour)
	src.Set("img", []byte{1, 2, 3})
	if err := src.Save(path); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	dst := NewLRU[[]byte](4, time.Hour)
	if err := dst.Load(path); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	got, ok := dst.Get("img")
	if !ok || len(got) != 3 || got[2] != 3 {
		t.Fatalf("unexpected restored value: %v (ok=%v)", got, ok)
	}
}

func TestLRU_LoadMissingFile(t *testing.T) {
	cache := NewLRU[string](4, time.Hour)
	if err := cache.Load(filepath.Join(t.TempDir(), "missing.json")); err != nil {
		t.Fatalf("expected nil error for missing file, got %v", err)
	}
}

func TestHashKeySeparatesParts(t *testing.T) {
	if HashKey([]byte("ab"), []byte("c")) == HashKey([]byte("a"), []byte("bc")) {
		t.Fatal("expected part boundaries to change the key")
	}
}
