// Package pushgateway pushes per-run gauges to a Prometheus Pushgateway.
package pushgateway

import (
	"context"
	"fmt"

	"github.com/carlaviz/startpositions/internal/viewer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// DefaultJob is the Pushgateway job name used when none is configured.
const DefaultJob = "view_start_positions"

// Pusher sends per-run gauges to a Prometheus Pushgateway. The run is too
// short-lived to be scraped, so every report replaces the group for its map.
type Pusher struct {
	url string
	job string
	reg *prometheus.Registry

	spawnCount    prometheus.Gauge
	markersDrawn  prometheus.Gauge
	attempts      prometheus.Gauge
	lastSuccess   prometheus.Gauge
	connectMillis prometheus.Histogram
	renderMillis  prometheus.Histogram
}

// NewPusher registers the run metrics on a private registry.
func NewPusher(url, job string) *Pusher {
	if job == "" {
		job = DefaultJob
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Pusher{
		url: url,
		job: job,
		reg: reg,
		spawnCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: "start_positions_spawn_count",
			Help: "Spawn spots reported by the simulator",
		}),
		markersDrawn: factory.NewGauge(prometheus.GaugeOpts{
			Name: "start_positions_markers_drawn",
			Help: "Markers drawn on the map image",
		}),
		attempts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "start_positions_attempts",
			Help: "Attempts needed to reach the simulator",
		}),
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "start_positions_last_success_timestamp_seconds",
			Help: "Unix time of the last rendered scene",
		}),
		connectMillis: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "start_positions_connect_latency_ms",
			Help:    "Time to connect and receive the scene in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}),
		renderMillis: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "start_positions_render_latency_ms",
			Help:    "Time to draw the markers in milliseconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100},
		}),
	}
}

// Name identifies the sink in logs.
func (p *Pusher) Name() string { return "pushgateway" }

// Record updates the metrics from r and pushes them.
func (p *Pusher) Record(ctx context.Context, r *viewer.Report) error {
	p.spawnCount.Set(float64(r.SpawnCount))
	p.markersDrawn.Set(float64(len(r.Markers)))
	p.attempts.Set(float64(r.Attempt))
	p.lastSuccess.Set(float64(r.StartedAt.Unix()))
	p.connectMillis.Observe(float64(r.ConnectDuration.Microseconds()) / 1000.0)
	p.renderMillis.Observe(float64(r.RenderDuration.Microseconds()) / 1000.0)

	err := push.New(p.url, p.job).
		Gatherer(p.reg).
		Grouping("map", r.MapName).
		Grouping("detection", string(r.Detection)).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push to %s: %w", p.url, err)
	}
	return nil
}
