package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dreamcity/orderflow-monitor/internal/api"
	"github.com/dreamcity/orderflow-monitor/internal/cache"
	"github.com/dreamcity/orderflow-monitor/internal/config"
	"github.com/dreamcity/orderflow-monitor/internal/engine"
	"github.com/dreamcity/orderflow-monitor/internal/metrics"
	"github.com/dreamcity/orderflow-monitor/internal/query"
	"github.com/dreamcity/orderflow-monitor/internal/repo"
	"github.com/dreamcity/orderflow-monitor/internal/services"
	"github.com/dreamcity/orderflow-monitor/internal/stream"
	"github.com/dreamcity/orderflow-monitor/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting flowwatch",
		slog.String("http", cfg.Server.HTTPAddress),
		slog.String("grpc", cfg.Server.GRPCAddress),
		slog.String("store", cfg.Store.Driver))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cacheProvider cache.Provider
	if cfg.Cache.Enabled {
		provider, err := cache.NewValkeyProvider(cfg.Cache.Valkey())
		if err != nil {
			logger.Warn("valkey cache unavailable, reading the store directly", slog.Any("error", err))
		} else {
			cacheProvider = provider
		}
	}

	store, err := repo.Open(ctx, repo.Options{
		Driver:    cfg.Store.Driver,
		DSN:       cfg.Store.DSN,
		Path:      cfg.Store.Path,
		Table:     cfg.Store.Table,
		Migrate:   cfg.Store.Migrate,
		LoadLimit: cfg.Store.LoadLimit,
		Cache:     cacheProvider,
		CacheTTL:  cfg.Cache.RollupsTTL,
	}, utils.Component(logger, "repo"))
	if err != nil {
		logger.Error("failed to open rollup store", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	ruleEngine, err := engine.NewRuleEngine(cfg.Rules.Path, utils.Component(logger, "rules"))
	if err != nil {
		logger.Error("failed to load rule pack", slog.Any("error", err))
		os.Exit(1)
	}

	snapshots := query.NewCache(store, query.CacheOptions{
		Limit:   cfg.Store.LoadLimit,
		Timeout: cfg.Store.LoadTimeout,
	}, utils.Component(logger, "snapshot"))

	hub := stream.NewHub()
	defer hub.Close()

	grpcServer, err := api.NewHealthServer(cfg.Server.GRPCAddress)
	if err != nil {
		logger.Error("failed to create gRPC server", slog.Any("error", err))
		os.Exit(1)
	}

	opts := services.Options{
		RowCap: cfg.Dashboard.RowCap,
		Finder: store,
		OnRefresh: func(snap *query.Snapshot) {
			grpcServer.Track(snap)
			if err := hub.PublishSnapshot(snap); err != nil {
				logger.Warn("tile stream publish failed", slog.Any("error", err))
			}
		},
	}
	if cached, ok := store.(*repo.CachedStore); ok {
		opts.Invalidator = cached
	}
	dashboard := services.NewDashboardService(utils.Component(logger, "dashboard"), snapshots, ruleEngine, opts)

	// The dashboard is useless without data: a failed first load is fatal.
	snap, err := dashboard.Load(ctx)
	if err != nil {
		logger.Error("initial snapshot load failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("snapshot ready", slog.String("snapshot", snap.ID), slog.Int("rollups", snap.Len()))

	go dashboard.Run(ctx, cfg.Dashboard.RefreshInterval)

	router := api.NewRouter(dashboard, hub, utils.Component(logger, "http"))
	httpServer := &http.Server{
		Addr:         cfg.Server.HTTPAddress,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		logger.Info("http server listening", slog.String("address", cfg.Server.HTTPAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server exited", slog.Any("error", err))
			stop()
		}
	}()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		logger.Info("gRPC server listening", slog.String("address", grpcServer.Addr()))
		if serveErr := grpcServer.Serve(); serveErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("http server shutdown", slog.Any("error", err))
	}
	grpcServer.Stop(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	logger.Info("flowwatch stopped", slog.Duration("query_p95", dashboard.LatencyP95()))
}
