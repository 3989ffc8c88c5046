package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dreamcity/orderflow-monitor/internal/cache"
	"github.com/dreamcity/orderflow-monitor/internal/config"
	"github.com/dreamcity/orderflow-monitor/internal/metrics"
	"github.com/dreamcity/orderflow-monitor/internal/repo"
	"github.com/dreamcity/orderflow-monitor/internal/simulator"
	"github.com/dreamcity/orderflow-monitor/internal/utils"
)

func main() {
	var (
		configPath string
		outDir     string
		flows      int
		seed       int64
		load       bool
	)
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&outDir, "out", "", "Output directory (overrides simulator.outputDir)")
	flag.IntVar(&flows, "flows", -1, "Number of flows to generate (overrides simulator.flows)")
	flag.Int64Var(&seed, "seed", 0, "Random seed (overrides simulator.seed when non-zero)")
	flag.BoolVar(&load, "load", false, "Insert generated rollups into the configured store")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}
	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)

	sim := cfg.Simulator
	if outDir != "" {
		sim.OutputDir = outDir
	}
	if seed != 0 {
		sim.Seed = seed
	}
	if load {
		sim.LoadStore = true
	}

	params, err := simulator.LoadParams(sim.ParamsFile)
	if err != nil {
		logger.Error("failed to load simulator params", slog.Any("error", err))
		os.Exit(1)
	}
	params.Flows = sim.Flows
	if flows >= 0 {
		params.Flows = flows
	}
	if params.WindowStart, params.WindowEnd, err = sim.Window(); err != nil {
		logger.Error("invalid simulation window", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	gen := simulator.NewGenerator(params, sim.Seed, utils.Component(logger, "simulator"))
	batch, err := gen.Generate(ctx)
	if err != nil {
		logger.Error("simulation failed", slog.Any("error", err))
		os.Exit(1)
	}

	files, err := simulator.WriteBatch(sim.OutputDir, simulator.FilePrefix(params.City), batch)
	if err != nil {
		logger.Error("failed to write batch", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("batch written",
		slog.Int("flows", len(batch.Flows)),
		slog.Int("tech_events", len(batch.TechEvents)),
		slog.String("rollups", files.Rollups),
		slog.Duration("elapsed", time.Since(start)))

	if sim.LoadStore {
		if err := loadStore(ctx, cfg, batch, logger); err != nil {
			logger.Error("failed to load rollups into store", slog.Any("error", err))
			os.Exit(1)
		}
	}

	if sim.PushGateway != "" {
		if err := pushMetrics(ctx, sim.PushGateway, len(batch.Flows), time.Since(start)); err != nil {
			logger.Warn("failed to push run metrics", slog.String("gateway", sim.PushGateway), slog.Any("error", err))
		}
	}
}

func pushMetrics(ctx context.Context, gateway string, flows int, elapsed time.Duration) error {
	reg := prometheus.NewRegistry()
	if err := metrics.RegisterSimulator(reg); err != nil {
		return err
	}
	metrics.ObserveSimulation(flows, elapsed)
	return metrics.Push(ctx, gateway, "flowsim", reg)
}

func loadStore(ctx context.Context, cfg *config.Config, batch simulator.Batch, logger *slog.Logger) error {
	if cfg.Store.Driver == repo.DriverFile {
		// Appending dedupes by correlation id, so pointing at the file just written inserts nothing.
		f, err := os.OpenFile(cfg.Store.Path, os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("create rollup file: %w", err)
		}
		_ = f.Close()
	}

	// Imports must take the shared lock and drop the dashboard's cached loads,
	// so an unreachable cache is an error here rather than a fallback.
	var provider cache.Provider
	if cfg.Cache.Enabled {
		valkey, err := cache.NewValkeyProvider(cfg.Cache.Valkey())
		if err != nil {
			return fmt.Errorf("connect cache: %w", err)
		}
		provider = valkey
	}

	store, err := repo.Open(ctx, repo.Options{
		Driver:    cfg.Store.Driver,
		DSN:       cfg.Store.DSN,
		Path:      cfg.Store.Path,
		Table:     cfg.Store.Table,
		Migrate:   cfg.Store.Migrate,
		LoadLimit: cfg.Store.LoadLimit,
		Cache:     provider,
		CacheTTL:  cfg.Cache.RollupsTTL,
	}, utils.Component(logger, "repo"))
	if err != nil {
		if provider != nil {
			_ = provider.Close()
		}
		return err
	}
	defer store.Close()

	inserted, err := store.InsertRollups(ctx, batch.Rollups)
	if err != nil {
		return err
	}
	logger.Info("rollups loaded",
		slog.String("driver", cfg.Store.Driver),
		slog.Int("inserted", inserted),
		slog.Int("skipped", len(batch.Rollups)-inserted))
	return nil
}
