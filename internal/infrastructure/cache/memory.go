package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is the process-local layer. go-cache evicts expired entries on
// its janitor interval.
type Memory struct {
	cache *gocache.Cache
}

func NewMemory(defaultTTL, cleanupInterval time.Duration) *Memory {
	return &Memory{cache: gocache.New(defaultTTL, cleanupInterval)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	val, found := m.cache.Get(key)
	if !found {
		return "", false, nil
	}
	s, ok := val.(string)
	return s, ok, nil
}

func (m *Memory) Lookup(_ context.Context, key string) (string, time.Time, bool, error) {
	val, expiresAt, found := m.cache.GetWithExpiration(key)
	if !found {
		return "", time.Time{}, false, nil
	}
	s, ok := val.(string)
	return s, expiresAt, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.cache.Set(key, value, ttl)
	return nil
}

func (m *Memory) Clear(context.Context) (int, error) {
	n := m.cache.ItemCount()
	m.cache.Flush()
	return n, nil
}

func (m *Memory) Len(context.Context) (int, error) {
	return m.cache.ItemCount(), nil
}
