package cache

import (
	"bytes"
	"context"
	"path"
	"sync"
	"time"
)

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// MemoryBackend is an in-process Backend for tests and single-node
// development. Expired entries are dropped lazily on access, which is enough
// for its intended lifetimes.
type MemoryBackend struct {
	mu    sync.Mutex
	items map[string]memoryItem
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{items: make(map[string]memoryItem)}
}

// Get retrieves the value stored under key, honoring expiry.
func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	item, ok := b.items[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	if time.Now().After(item.expiresAt) {
		delete(b.items, key)
		return nil, ErrKeyNotFound
	}
	return bytes.Clone(item.value), nil
}

// Set stores value under key with the given TTL, overwriting any existing
// value.
func (b *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[key] = memoryItem{
		value:     bytes.Clone(value),
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// DeletePattern removes all keys matching the glob pattern and returns how
// many were deleted. Pattern syntax follows path.Match, which covers the
// subset of Redis glob syntax the invalidation rules use.
func (b *MemoryBackend) DeletePattern(_ context.Context, pattern string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	deleted := 0
	for key := range b.items {
		matched, err := path.Match(pattern, key)
		if err != nil {
			return deleted, err
		}
		if matched {
			delete(b.items, key)
			deleted++
		}
	}
	return deleted, nil
}

// Ping always succeeds: the backend lives in process memory.
func (b *MemoryBackend) Ping(_ context.Context) error {
	return nil
}

// Len reports how many entries are stored, counting expired but not yet
// collected ones. Intended for tests.
func (b *MemoryBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Ensure MemoryBackend implements the Backend interface
var _ Backend = (*MemoryBackend)(nil)
