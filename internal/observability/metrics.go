// Package observability exposes Prometheus metrics for the reconciliation
// engine and the command path.
package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DashboardCollector bundles the dashboard's Prometheus metrics.
// A nil collector is valid and records nothing.
type DashboardCollector struct {
	gatherer prometheus.Gatherer

	Snapshots         prometheus.Counter
	Mutations         *prometheus.CounterVec
	DuplicateIDs      prometheus.Counter
	DroppedRecords    prometheus.Counter
	RenderedUnits     prometheus.Gauge
	ReconcileDuration prometheus.Histogram
	Commands          *prometheus.CounterVec
	ChannelConnected  prometheus.Gauge
}

// NewDashboardCollector registers the metrics against reg, defaulting to
// the global registry when nil.
func NewDashboardCollector(reg prometheus.Registerer) (*DashboardCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	snapshots, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_snapshots_total",
		Help: "Snapshots reconciled.",
	}), "dashboard_snapshots_total")
	if err != nil {
		return nil, err
	}

	mutations, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_view_mutations_total",
		Help: "View mutations produced by reconciliation, labeled by op.",
	}, []string{"op"}), "dashboard_view_mutations_total")
	if err != nil {
		return nil, err
	}

	duplicates, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_snapshot_duplicate_ids_total",
		Help: "fu_id values listed more than once within a single snapshot.",
	}), "dashboard_snapshot_duplicate_ids_total")
	if err != nil {
		return nil, err
	}

	dropped, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_snapshot_dropped_records_total",
		Help: "Snapshot records skipped for lacking an fu_id.",
	}), "dashboard_snapshot_dropped_records_total")
	if err != nil {
		return nil, err
	}

	units, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dashboard_rendered_units",
		Help: "View units currently rendered.",
	}), "dashboard_rendered_units")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dashboard_reconcile_duration_seconds",
		Help:    "Time spent reconciling one snapshot.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	}), "dashboard_reconcile_duration_seconds")
	if err != nil {
		return nil, err
	}

	commands, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_selection_commands_total",
		Help: "select_satellite commands, labeled by result.",
	}, []string{"result"}), "dashboard_selection_commands_total")
	if err != nil {
		return nil, err
	}

	connected, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dashboard_channel_connected",
		Help: "1 while the upstream push channel is open.",
	}), "dashboard_channel_connected")
	if err != nil {
		return nil, err
	}

	return &DashboardCollector{
		gatherer:          gatherer,
		Snapshots:         snapshots,
		Mutations:         mutations,
		DuplicateIDs:      duplicates,
		DroppedRecords:    dropped,
		RenderedUnits:     units,
		ReconcileDuration: duration,
		Commands:          commands,
		ChannelConnected:  connected,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *DashboardCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SnapshotApplied records one reconciliation.
func (c *DashboardCollector) SnapshotApplied(elapsed time.Duration, units, duplicates, dropped int, ops map[string]int) {
	if c == nil {
		return
	}
	c.Snapshots.Inc()
	c.ReconcileDuration.Observe(elapsed.Seconds())
	c.RenderedUnits.Set(float64(units))
	c.DuplicateIDs.Add(float64(duplicates))
	c.DroppedRecords.Add(float64(dropped))
	for op, n := range ops {
		c.Mutations.WithLabelValues(op).Add(float64(n))
	}
}

// CommandEmitted satisfies command.Recorder.
func (c *DashboardCollector) CommandEmitted(err error) {
	if c == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	c.Commands.WithLabelValues(result).Inc()
}

// SetConnected tracks the push channel state.
func (c *DashboardCollector) SetConnected(connected bool) {
	if c == nil {
		return
	}
	if connected {
		c.ChannelConnected.Set(1)
	} else {
		c.ChannelConnected.Set(0)
	}
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}
