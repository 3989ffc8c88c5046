package repo

import (
	"context"
	"time"

	"github.com/dreamcity/orderflow-monitor/internal/cache"
)

// stubCache is a map-backed cache.Provider that ignores TTLs.
type stubCache map[string][]byte

func newStubCache() stubCache { return stubCache{} }

func (s stubCache) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return v, nil
}

func (s stubCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s[key] = value
	return nil
}

func (s stubCache) SetNX(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	if _, held := s[key]; held {
		return false, nil
	}
	s[key] = value
	return true, nil
}

func (s stubCache) Del(_ context.Context, key string) error {
	delete(s, key)
	return nil
}

func (s stubCache) Close() error { return nil }

func (s stubCache) has(key string) bool {
	_, ok := s[key]
	return ok
}
