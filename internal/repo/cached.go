package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/dreamcity/orderflow-monitor/internal/cache"
	"github.com/dreamcity/orderflow-monitor/internal/models"
)

// ErrImportInProgress is returned when another writer holds the import lock.
var ErrImportInProgress = errors.New("rollup import already in progress")

const (
	loadKeyPrefix   = "rollups:load:"
	rollupKeyPrefix = "rollups:cid:"
	importLockKey   = "rollups:import:lock"
	importLockTTL   = 5 * time.Minute
)

// CachedStore puts a cache.Provider in front of a RollupStore. Cache failures
// never fail a read; they fall through to the store.
type CachedStore struct {
	store  RollupStore
	cache  cache.Provider
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.Mutex
	limits map[int]struct{}
	cids   map[string]struct{}
}

var _ RollupStore = (*CachedStore)(nil)

// NewCachedStore wraps store. A nil provider disables caching.
func NewCachedStore(store RollupStore, provider cache.Provider, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	if ttl < 0 {
		ttl = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{store: store, cache: provider, ttl: ttl, logger: logger, limits: make(map[int]struct{}), cids: make(map[string]struct{})}
}

func (s *CachedStore) LoadRollups(ctx context.Context, limit int) ([]models.Rollup, error) {
	key := loadKeyPrefix + strconv.Itoa(limit)
	s.trackLimit(limit)

	if data, err := s.cache.Get(ctx, key); err == nil {
		var cached []models.Rollup
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("rollup cache read failed", slog.String("key", key), slog.Any("error", err))
	}

	rollups, err := s.store.LoadRollups(ctx, limit)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(rollups); err == nil {
		_ = s.cache.Set(ctx, key, payload, s.ttl)
	}
	return rollups, nil
}

func (s *CachedStore) FindRollup(ctx context.Context, correlationID string) (models.Rollup, error) {
	key := rollupKeyPrefix + correlationID
	if data, err := s.cache.Get(ctx, key); err == nil {
		if r, err := decodeRollup(data); err == nil {
			return r, nil
		}
	}

	r, err := s.store.FindRollup(ctx, correlationID)
	if err != nil {
		return models.Rollup{}, err
	}
	if payload, err := json.Marshal(r); err == nil {
		if s.cache.Set(ctx, key, payload, s.ttl) == nil {
			s.mu.Lock()
			s.cids[correlationID] = struct{}{}
			s.mu.Unlock()
		}
	}
	return r, nil
}

// InsertRollups serialises writers through an import lock and drops cached bulk loads afterwards.
func (s *CachedStore) InsertRollups(ctx context.Context, rollups []models.Rollup) (int, error) {
	release, err := s.lockImport(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = release(context.WithoutCancel(ctx)) }()

	n, err := s.store.InsertRollups(ctx, rollups)
	if err != nil {
		return n, err
	}
	s.Invalidate(ctx)
	return n, nil
}

func (s *CachedStore) lockImport(ctx context.Context) (func(context.Context) error, error) {
	if locker, ok := s.cache.(cache.Locker); ok {
		release, err := locker.Obtain(ctx, importLockKey, importLockTTL)
		if errors.Is(err, cache.ErrLockNotObtained) {
			return nil, ErrImportInProgress
		}
		if err != nil {
			return nil, fmt.Errorf("acquire import lock: %w", err)
		}
		return release, nil
	}

	acquired, err := s.cache.SetNX(ctx, importLockKey, []byte(time.Now().UTC().Format(time.RFC3339)), importLockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire import lock: %w", err)
	}
	if !acquired {
		return nil, ErrImportInProgress
	}
	return func(ctx context.Context) error { return s.cache.Del(ctx, importLockKey) }, nil
}

// Invalidate drops every cached bulk load and single rollup this store has served.
func (s *CachedStore) Invalidate(ctx context.Context) {
	s.mu.Lock()
	keys := make([]string, 0, len(s.limits)+len(s.cids))
	for limit := range s.limits {
		keys = append(keys, loadKeyPrefix+strconv.Itoa(limit))
	}
	for cid := range s.cids {
		keys = append(keys, rollupKeyPrefix+cid)
	}
	clear(s.cids)
	s.mu.Unlock()

	for _, key := range keys {
		_ = s.cache.Del(ctx, key)
	}
}

func (s *CachedStore) trackLimit(limit int) {
	s.mu.Lock()
	s.limits[limit] = struct{}{}
	s.mu.Unlock()
}

func (s *CachedStore) Close() error {
	cerr := s.cache.Close()
	if err := s.store.Close(); err != nil {
		return err
	}
	return cerr
}
