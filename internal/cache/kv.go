// Package cache provides the transient key-value layer behind inbound
// message deduplication and the pending-name side table. Redis is the
// named primary when configured; an in-process TTL map is the named
// fallback, chosen once at startup by Select.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// KV is the capability interface both backends implement. Values are
// small strings; every key carries a TTL.
type KV interface {
	// SetEx stores value under key with the given TTL.
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the value and whether the key exists and is unexpired.
	Get(ctx context.Context, key string) (string, bool, error)

	// Exists reports whether the key exists and is unexpired.
	Exists(ctx context.Context, key string) (bool, error)

	// Del removes the key.
	Del(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Select picks the KV backend: Redis when redisURL is set and reachable,
// the in-memory map otherwise. The single policy point for the
// primary/fallback choice.
func Select(ctx context.Context, redisURL string) KV {
	if redisURL != "" {
		kv, err := NewRedisKV(ctx, redisURL)
		if err == nil {
			slog.Info("cache.Select: using Redis backend")
			return kv
		}
		slog.Warn("cache.Select: Redis unavailable, falling back to in-memory cache", "error", err)
	}
	slog.Info("cache.Select: using in-memory backend")
	return NewMemoryKV()
}

// memoryEntry pairs a value with its expiry stamp.
type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryKV is the process-local fallback backend. Lost on restart and
// not shared across instances; deduplication is best-effort anyway.
type MemoryKV struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

var _ KV = (*MemoryKV)(nil)

// NewMemoryKV creates an empty in-memory KV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{entries: make(map[string]memoryEntry)}
}

// SetEx stores value under key with the given TTL.
func (m *MemoryKV) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

// Get returns the value and whether the key exists and is unexpired.
// Expired entries are evicted on access.
func (m *MemoryKV) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if time.Now().After(e.expiresAt) {
		delete(m.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

// Exists reports whether the key exists and is unexpired.
func (m *MemoryKV) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := m.Get(ctx, key)
	return ok, err
}

// Del removes the key.
func (m *MemoryKV) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Close is a no-op for the in-memory backend.
func (m *MemoryKV) Close() error { return nil }
