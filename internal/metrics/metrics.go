package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/carlaviz/startpositions/internal/viewer"

// Viewer holds the counters recorded by the retry loop and renderer.
type Viewer struct {
	attempts metric.Int64Counter
	retries  metric.Int64Counter
	markers  metric.Int64Counter
}

// NewViewer registers the viewer counters on the global meter provider.
// The global provider is a no-op unless the binary installs one.
func NewViewer() (*Viewer, error) {
	return NewViewerWithMeter(otel.Meter(instrumentationName))
}

// NewViewerWithMeter registers the viewer counters on m.
func NewViewerWithMeter(m metric.Meter) (*Viewer, error) {
	v := &Viewer{}
	var err error

	v.attempts, err = m.Int64Counter(
		"viewer.attempts",
		metric.WithDescription("Connect-fetch-render attempts started"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating attempts counter: %w", err)
	}

	v.retries, err = m.Int64Counter(
		"viewer.retries",
		metric.WithDescription("Attempts retried after a connection failure"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating retries counter: %w", err)
	}

	v.markers, err = m.Int64Counter(
		"viewer.markers.drawn",
		metric.WithDescription("Spawn position markers drawn"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating markers counter: %w", err)
	}

	return v, nil
}

// Attempt records the start of one attempt.
func (v *Viewer) Attempt(ctx context.Context) {
	if v == nil {
		return
	}
	v.attempts.Add(ctx, 1)
}

// Retry records an attempt that will be retried.
func (v *Viewer) Retry(ctx context.Context) {
	if v == nil {
		return
	}
	v.retries.Add(ctx, 1)
}

// MarkersDrawn records n markers drawn on the given map.
func (v *Viewer) MarkersDrawn(ctx context.Context, mapName string, n int) {
	if v == nil || n == 0 {
		return
	}
	v.markers.Add(ctx, int64(n), metric.WithAttributes(attribute.String("map", mapName)))
}
