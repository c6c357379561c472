package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"sync"
	"time"
)

// Entry holds a cached value with expiration
type Entry[V any] struct {
	Value     V         `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LRU is a thread-safe LRU cache with TTL support
type LRU[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	order    *list.List
	now      func() time.Time
}

type node[V any] struct {
	key   string
	entry Entry[V]
}

// NewLRU creates a new LRU cache with the given capacity and TTL
func NewLRU[V any](capacity int, ttl time.Duration) *LRU[V] {
	if capacity <= 0 {
		capacity = 1
	}
	return &LRU[V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
		now:      time.Now,
	}
}

// Get retrieves a value from the cache
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}

	n := elem.Value.(*node[V])
	if c.now().After(n.entry.ExpiresAt) {
		c.order.Remove(elem)
		delete(c.items, key)
		return zero, false
	}

	c.order.MoveToFront(elem)
	return n.entry.Value, true
}

// Set adds or updates a value in the cache
func (c *LRU[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := Entry[V]{Value: value, ExpiresAt: c.now().Add(c.ttl)}

	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*node[V]).entry = entry
		return
	}

	c.items[key] = c.order.PushFront(&node[V]{key: key, entry: entry})
	c.evict()
}

// Len returns the number of items in the cache
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Dump returns the live entries for persistence
func (c *LRU[V]) Dump() map[string]Entry[V] {
	c.mu.Lock()
	defer c.mu.Unlock()

	dump := make(map[string]Entry[V], len(c.items))
	for k, elem := range c.items {
		dump[k] = elem.Value.(*node[V]).entry
	}
	return dump
}

// Restore replaces the cache contents with the unexpired entries of dump
func (c *LRU[V]) Restore(dump map[string]Entry[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.items = make(map[string]*list.Element, c.capacity)

	now := c.now()
	for k, v := range dump {
		if now.After(v.ExpiresAt) {
			continue
		}
		c.items[k] = c.order.PushFront(&node[V]{key: k, entry: v})
	}
	c.evict()
}

// Load restores the cache from a JSON file written by Save. A missing file is not an error.
func (c *LRU[V]) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	var dump map[string]Entry[V]
	if err := json.NewDecoder(f).Decode(&dump); err != nil {
		return err
	}
	c.Restore(dump)
	return nil
}

// Save writes the cache to path atomically (temp file, then rename).
func (c *LRU[V]) Save(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(c.Dump()); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// caller holds c.mu
func (c *LRU[V]) evict() {
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			return
		}
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*node[V]).key)
	}
}

// HashKey creates a cache key from one or more byte slices
func HashKey(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
