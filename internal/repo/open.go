package repo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dreamcity/orderflow-monitor/internal/cache"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
	DriverFile     = "file"
)

// DefaultLoadLimit caps a bulk load when none is configured.
const DefaultLoadLimit = 10000

// Options selects and configures a RollupStore.
type Options struct {
	Driver    string
	DSN       string
	Path      string
	Table     string
	Migrate   bool
	LoadLimit int
	Cache     cache.Provider
	CacheTTL  time.Duration
}

// Open constructs the configured store, running migrations first when asked.
// When a cache provider is supplied the store is wrapped in a CachedStore.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (RollupStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		store RollupStore
		err   error
	)
	switch opts.Driver {
	case DriverPostgres:
		if opts.Migrate {
			if err := Migrate(ctx, opts.DSN, logger); err != nil {
				return nil, err
			}
		}
		store, err = NewPostgresStore(ctx, opts.DSN, opts.Table)
	case DriverMySQL:
		store, err = NewMySQLStore(ctx, opts.DSN, opts.Table)
	case DriverSQLite:
		store, err = NewSQLiteStore(opts.Path, opts.Table)
	case DriverFile, "":
		store, err = NewFileStore(opts.Path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("rollup store opened", slog.String("driver", opts.Driver))

	if opts.Cache == nil {
		return store, nil
	}
	cached := NewCachedStore(store, opts.Cache, opts.CacheTTL, logger)
	limit := opts.LoadLimit
	if limit <= 0 {
		limit = DefaultLoadLimit
	}
	cached.trackLimit(limit)
	return cached, nil
}
