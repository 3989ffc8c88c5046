package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCacheMiss is returned by Get when the key holds nothing.
	ErrCacheMiss = errors.New("cache miss")
	// ErrLockNotObtained is returned by Obtain while another holder owns the key.
	ErrLockNotObtained = errors.New("lock not obtained")
)

// Provider is the byte-level key/value cache in front of the rollup store.
// Values are JSON-encoded rollups or bulk loads; expiry is the caller's TTL.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
	Close() error
}

// Locker hands out expiring exclusive locks, used to serialise rollup imports.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

var (
	_ Provider = NoopProvider{}
	_ Locker   = NoopProvider{}
)

// NoopProvider caches nothing and grants every lock, so a store without a
// cache reads straight through and imports are never blocked.
type NoopProvider struct{}

func (NoopProvider) Get(context.Context, string) ([]byte, error) { return nil, ErrCacheMiss }

func (NoopProvider) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (NoopProvider) SetNX(context.Context, string, []byte, time.Duration) (bool, error) {
	return true, nil
}

func (NoopProvider) Del(context.Context, string) error { return nil }

func (NoopProvider) Obtain(context.Context, string, time.Duration) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

func (NoopProvider) Close() error { return nil }
