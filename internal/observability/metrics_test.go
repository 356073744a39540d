package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSnapshotAppliedRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewDashboardCollector(reg)
	if err != nil {
		t.Fatalf("NewDashboardCollector: %v", err)
	}

	collector.SnapshotApplied(2*time.Millisecond, 3, 1, 2, map[string]int{"create": 3, "patch": 1})

	if got := testutil.ToFloat64(collector.Snapshots); got != 1 {
		t.Fatalf("dashboard_snapshots_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.RenderedUnits); got != 3 {
		t.Fatalf("dashboard_rendered_units = %v, want 3", got)
	}
	if got := testutil.ToFloat64(collector.Mutations.WithLabelValues("create")); got != 3 {
		t.Fatalf("dashboard_view_mutations_total{op=create} = %v, want 3", got)
	}
	if got := testutil.ToFloat64(collector.DuplicateIDs); got != 1 {
		t.Fatalf("dashboard_snapshot_duplicate_ids_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.DroppedRecords); got != 2 {
		t.Fatalf("dashboard_snapshot_dropped_records_total = %v, want 2", got)
	}
}

func TestCommandEmittedLabelsResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewDashboardCollector(reg)
	if err != nil {
		t.Fatalf("NewDashboardCollector: %v", err)
	}

	collector.CommandEmitted(nil)
	collector.CommandEmitted(errors.New("closed"))
	collector.CommandEmitted(nil)

	if got := testutil.ToFloat64(collector.Commands.WithLabelValues("sent")); got != 2 {
		t.Fatalf("sent = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.Commands.WithLabelValues("failed")); got != 1 {
		t.Fatalf("failed = %v, want 1", got)
	}
}

func TestRegisterTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewDashboardCollector(reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := NewDashboardCollector(reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}

	first.SetConnected(true)
	if got := testutil.ToFloat64(second.ChannelConnected); got != 1 {
		t.Fatalf("dashboard_channel_connected via second = %v, want 1", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *DashboardCollector
	c.SnapshotApplied(time.Millisecond, 1, 0, 0, nil)
	c.CommandEmitted(nil)
	c.SetConnected(true)
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewDashboardCollector(reg)
	if err != nil {
		t.Fatalf("NewDashboardCollector: %v", err)
	}
	collector.SnapshotApplied(time.Millisecond, 2, 0, 0, map[string]int{"create": 2})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"dashboard_rendered_units 2", "dashboard_snapshots_total 1"} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
