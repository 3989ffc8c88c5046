package query

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dreamcity/orderflow-monitor/internal/models"
)

// Loader is a single bulk read of the rollup set.
type Loader interface {
	LoadRollups(ctx context.Context, limit int) ([]models.Rollup, error)
}

// CacheOptions bounds each load.
type CacheOptions struct {
	Limit   int
	Timeout time.Duration
	Now     func() time.Time
}

// Cache owns the current snapshot. Refresh replaces it as a whole; readers never
// observe a partial load.
type Cache struct {
	loader  Loader
	opts    CacheOptions
	logger  *slog.Logger
	current atomic.Pointer[Snapshot]
	mu      sync.Mutex
}

// NewCache returns an empty cache. Call Refresh or Get to load.
func NewCache(loader Loader, opts CacheOptions, logger *slog.Logger) *Cache {
	if opts.Limit <= 0 {
		opts.Limit = 10000
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{loader: loader, opts: opts, logger: logger}
}

// Current returns the resident snapshot, or nil before the first successful load.
func (c *Cache) Current() *Snapshot {
	return c.current.Load()
}

// Get returns the resident snapshot, loading it if none is resident.
func (c *Cache) Get(ctx context.Context) (*Snapshot, error) {
	if s := c.current.Load(); s != nil {
		return s, nil
	}
	return c.Refresh(ctx)
}

// Refresh performs one bounded bulk read and swaps in the new snapshot. On error
// the previous snapshot stays resident.
func (c *Cache) Refresh(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	rollups, err := c.loader.LoadRollups(ctx, c.opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("load rollups: %w", err)
	}
	snap := NewSnapshot(rollups, c.opts.Now())
	prev := c.current.Swap(snap)

	attrs := []any{slog.String("snapshot", snap.ID), slog.Int("rollups", snap.Len())}
	if prev != nil {
		attrs = append(attrs, slog.String("replaced", prev.ID))
	}
	c.logger.Info("rollup snapshot loaded", attrs...)
	return snap, nil
}

// Invalidate drops the resident snapshot; the next Get reloads.
func (c *Cache) Invalidate() {
	c.current.Store(nil)
}
