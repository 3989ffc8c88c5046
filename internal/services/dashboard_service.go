package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dreamcity/orderflow-monitor/internal/metrics"
	"github.com/dreamcity/orderflow-monitor/internal/models"
	"github.com/dreamcity/orderflow-monitor/internal/query"
	"github.com/dreamcity/orderflow-monitor/internal/repo"
	"github.com/dreamcity/orderflow-monitor/internal/utils"
)

// DefaultRowCap bounds the flows flattened into grid rows per request.
const DefaultRowCap = 600

var tracer = otel.Tracer("github.com/dreamcity/orderflow-monitor/internal/services")

// Invalidator drops cached store reads ahead of an explicit refresh.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// Finder reads one rollup from the store. It backs detail lookups for flows
// that are not in the resident snapshot.
type Finder interface {
	FindRollup(ctx context.Context, correlationID string) (models.Rollup, error)
}

// DashboardService answers dashboard queries from the resident rollup snapshot.
type DashboardService struct {
	logger      *slog.Logger
	snapshots   *query.Cache
	rules       query.Recommender
	invalidator Invalidator
	finder      Finder
	onRefresh   func(*query.Snapshot)
	rowCap      int
	latencies   *utils.LatencyTracker
}

// Options tunes a DashboardService. OnRefresh runs after every successful snapshot swap.
type Options struct {
	RowCap      int
	Invalidator Invalidator
	Finder      Finder
	OnRefresh   func(*query.Snapshot)
}

// NewDashboardService constructs the dashboard facade. rules may be nil.
func NewDashboardService(logger *slog.Logger, snapshots *query.Cache, rules query.Recommender, opts Options) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.RowCap <= 0 {
		opts.RowCap = DefaultRowCap
	}
	return &DashboardService{
		logger:      logger,
		snapshots:   snapshots,
		rules:       rules,
		invalidator: opts.Invalidator,
		finder:      opts.Finder,
		onRefresh:   opts.OnRefresh,
		rowCap:      opts.RowCap,
		latencies:   utils.NewLatencyTracker(1024),
	}
}

// Refresh drops cached store reads and reloads the snapshot from the store itself.
func (s *DashboardService) Refresh(ctx context.Context) (*query.Snapshot, error) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx)
	}
	return s.load(ctx, "dashboard.refresh")
}

// Load swaps in a snapshot read through the store cache. Cold starts and
// periodic reloads use it; imports invalidate the cache so new rollups show up.
func (s *DashboardService) Load(ctx context.Context) (*query.Snapshot, error) {
	return s.load(ctx, "dashboard.load")
}

func (s *DashboardService) load(ctx context.Context, op string) (*query.Snapshot, error) {
	ctx, span := tracer.Start(ctx, op)
	defer span.End()

	start := time.Now()
	snap, err := s.snapshots.Refresh(ctx)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveRefresh(duration, metrics.OutcomeError)
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot refresh failed")
		s.logger.Error("snapshot refresh failed", slog.Any("error", err))
		return nil, utils.E(op, utils.KindUnavailable, "rollup store unavailable", err)
	}
	metrics.ObserveRefresh(duration, metrics.OutcomeSuccess)
	metrics.SetSnapshot(snap.Len(), snap.Counts())
	span.SetAttributes(attribute.String("snapshot.id", snap.ID), attribute.Int("snapshot.rollups", snap.Len()))
	if s.onRefresh != nil {
		s.onRefresh(snap)
	}
	return snap, nil
}

// Run reloads the snapshot every interval until ctx is done. Failed loads keep
// the previous snapshot and are retried on the next tick.
func (s *DashboardService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Load(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("periodic refresh failed, keeping previous snapshot", slog.Duration("interval", interval))
			}
		}
	}
}

// Ready reports whether a snapshot is resident.
func (s *DashboardService) Ready() bool {
	return s.snapshots.Current() != nil
}

// Tiles returns the count of every tile id.
func (s *DashboardService) Tiles(ctx context.Context) (map[string]int, error) {
	ctx, span := tracer.Start(ctx, "dashboard.tiles")
	defer s.observe(span, "tiles", time.Now())
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Counts(), nil
}

// Flows returns the rollups selected by tile; limit <= 0 returns all of them.
func (s *DashboardService) Flows(ctx context.Context, tile string, limit int) ([]models.Rollup, error) {
	ctx, span := tracer.Start(ctx, "dashboard.flows", trace.WithAttributes(attribute.String("tile", tile)))
	defer s.observe(span, "flows", time.Now())
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	flows := snap.Filter(tile)
	if limit > 0 && len(flows) > limit {
		flows = flows[:limit]
	}
	return flows, nil
}

// Rows flattens at most the row cap of flows selected by tile.
func (s *DashboardService) Rows(ctx context.Context, tile string) ([]models.Row, error) {
	ctx, span := tracer.Start(ctx, "dashboard.rows", trace.WithAttributes(attribute.String("tile", tile)))
	defer s.observe(span, "rows", time.Now())
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	flows := snap.Filter(tile)
	if len(flows) > s.rowCap {
		flows = flows[:s.rowCap]
	}
	return query.ToRows(flows), nil
}

// Detail returns the drill-down view of one flow.
func (s *DashboardService) Detail(ctx context.Context, correlationID string) (models.FlowDetail, error) {
	ctx, span := tracer.Start(ctx, "dashboard.detail", trace.WithAttributes(attribute.String("correlation_id", correlationID)))
	defer s.observe(span, "detail", time.Now())
	if correlationID == "" {
		return models.FlowDetail{}, utils.E("dashboard.detail", utils.KindInvalid, "correlation id is required", nil)
	}
	snap, err := s.snapshot(ctx)
	if err != nil {
		return models.FlowDetail{}, err
	}
	if r, ok := snap.Lookup(correlationID); ok {
		return query.BuildDetail(r, s.rules), nil
	}
	notFound := utils.E("dashboard.detail", utils.KindNotFound, "flow "+correlationID+" not found", query.ErrNotFound)
	if s.finder == nil {
		return models.FlowDetail{}, notFound
	}
	r, err := s.finder.FindRollup(ctx, correlationID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return models.FlowDetail{}, notFound
	case err != nil:
		span.RecordError(err)
		return models.FlowDetail{}, utils.E("dashboard.detail", utils.KindUnavailable, "rollup store unavailable", err)
	}
	return query.BuildDetail(r, s.rules), nil
}

// LatencyP95 returns the current p95 query latency.
func (s *DashboardService) LatencyP95() time.Duration {
	return s.latencies.Percentile(95)
}

func (s *DashboardService) snapshot(ctx context.Context) (*query.Snapshot, error) {
	if snap := s.snapshots.Current(); snap != nil {
		return snap, nil
	}
	return s.Load(ctx)
}

func (s *DashboardService) observe(span trace.Span, name string, start time.Time) {
	span.End()
	duration := time.Since(start)
	s.latencies.Observe(duration)
	metrics.ObserveQuery(name, duration)
	if count := s.latencies.Count(); count >= 100 && count%100 == 0 {
		s.logger.Debug("query latency", slog.Duration("p95", s.latencies.Percentile(95)), slog.Int("samples", count))
	}
}
