package studio

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// KeyStore holds the API key the studio runs with.
type KeyStore interface {
	Key(ctx context.Context) (string, bool)
	Select(ctx context.Context, key string) error
	Reset(ctx context.Context)
}

// MemoryKeyStore keeps the key in process memory.
type MemoryKeyStore struct {
	mu  sync.RWMutex
	key string
}

func NewMemoryKeyStore(initial string) *MemoryKeyStore {
	return &MemoryKeyStore{key: strings.TrimSpace(initial)}
}

func (m *MemoryKeyStore) Key(context.Context) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.key, m.key != ""
}

func (m *MemoryKeyStore) Select(_ context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("api key is empty")
	}
	m.mu.Lock()
	m.key = key
	m.mu.Unlock()
	return nil
}

func (m *MemoryKeyStore) Reset(context.Context) {
	m.mu.Lock()
	m.key = ""
	m.mu.Unlock()
}

var _ KeyStore = (*MemoryKeyStore)(nil)
