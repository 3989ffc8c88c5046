package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	// OutcomeSuccess labels successful operations.
	OutcomeSuccess = "success"
	// OutcomeError labels failed operations (store or dependency issues).
	OutcomeError = "error"
)

var (
	snapshotRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flowwatch",
			Name:      "snapshot_refresh_total",
			Help:      "Total number of rollup snapshot loads, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	snapshotRefreshSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "flowwatch",
			Name:      "snapshot_refresh_seconds",
			Help:      "Rollup snapshot load latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
		},
	)

	snapshotRollups = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "flowwatch",
			Name:      "snapshot_rollups",
			Help:      "Number of rollups in the resident snapshot.",
		},
	)

	tileFlows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "flowwatch",
			Name:      "tile_flows",
			Help:      "Flows per dashboard tile in the resident snapshot.",
		},
		[]string{"tile"},
	)

	queryDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flowwatch",
			Name:      "query_seconds",
			Help:      "Dashboard query latency in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
		[]string{"query"},
	)

	simulatedFlowsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "flowwatch",
			Name:      "simulated_flows_total",
			Help:      "Total number of flows produced by the simulator.",
		},
	)

	simulationSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "flowwatch",
			Name:      "simulation_duration_seconds",
			Help:      "Wall time of the last simulation run.",
		},
	)
)

// Register attaches the dashboard collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	return register(reg, snapshotRefreshTotal, snapshotRefreshSeconds, snapshotRollups, tileFlows, queryDurationSeconds)
}

// RegisterSimulator attaches the batch collectors pushed by the simulator.
func RegisterSimulator(reg prometheus.Registerer) error {
	return register(reg, simulatedFlowsTotal, simulationSeconds)
}

func register(reg prometheus.Registerer, collectors ...prometheus.Collector) error {
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRefresh records a snapshot load duration and outcome label.
func ObserveRefresh(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	snapshotRefreshTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	snapshotRefreshSeconds.Observe(duration.Seconds())
}

// SetSnapshot publishes the size and tile counts of a freshly loaded snapshot.
func SetSnapshot(rollups int, counts map[string]int) {
	snapshotRollups.Set(float64(rollups))
	for tile, n := range counts {
		tileFlows.WithLabelValues(tile).Set(float64(n))
	}
}

// ObserveQuery records the latency of a named dashboard query.
func ObserveQuery(query string, duration time.Duration) {
	queryDurationSeconds.WithLabelValues(query).Observe(duration.Seconds())
}

// ObserveSimulation records the size and wall time of a simulation run.
func ObserveSimulation(flows int, duration time.Duration) {
	simulatedFlowsTotal.Add(float64(flows))
	simulationSeconds.Set(duration.Seconds())
}

// Push sends everything g gathers to a Pushgateway under job, replacing the
// job's previous group. Batch runs have no scrape endpoint of their own.
func Push(ctx context.Context, gateway, job string, g prometheus.Gatherer) error {
	return push.New(gateway, job).Gatherer(g).PushContext(ctx)
}
