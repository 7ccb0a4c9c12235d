// Package viewer connects to the simulator, draws the selected spawn spots
// on the town image and shows the result, retrying while the server is
// unreachable.
package viewer

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/carlaviz/startpositions/internal/carla"
	"github.com/carlaviz/startpositions/internal/display"
	"github.com/carlaviz/startpositions/internal/maps"
	"github.com/carlaviz/startpositions/internal/metrics"
	"github.com/carlaviz/startpositions/internal/render"
	"github.com/carlaviz/startpositions/pkg/core"
	"github.com/google/uuid"
)

// DefaultBackoff is the pause after a failed attempt.
const DefaultBackoff = time.Second

// Session is an open connection to the simulator.
type Session interface {
	LoadSettings(ctx context.Context, settings carla.Settings) (*core.Scene, error)
	Close() error
}

// DialFunc opens a Session.
type DialFunc func(ctx context.Context) (Session, error)

// CarlaDialer dials the simulator with cfg.
func CarlaDialer(cfg carla.Config) DialFunc {
	return func(ctx context.Context) (Session, error) {
		c, err := carla.Dial(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Sink receives the report of every rendered scene before it is shown.
type Sink interface {
	Name() string
	Record(ctx context.Context, r *Report) error
}

// Report describes one attempt that got as far as the scene.
type Report struct {
	SessionID  uuid.UUID        `json:"sessionId"`
	Attempt    int              `json:"attempt"`
	Host       string           `json:"host"`
	Port       int              `json:"port"`
	MapName    string           `json:"mapName"`
	Detection  maps.Detection   `json:"detection"`
	SpawnCount int              `json:"spawnCount"`
	Selector   string           `json:"selector"`
	SpawnSpots []core.SpawnSpot `json:"spawnSpots"`
	Markers    []core.Marker    `json:"markers"`
	StartedAt  time.Time        `json:"startedAt"`
	// ConnectDuration covers dialing and fetching the scene.
	ConnectDuration time.Duration `json:"connectDuration"`
	RenderDuration  time.Duration `json:"renderDuration"`
	// Image is the composed map, set once every marker is drawn.
	Image image.Image `json:"-"`
}

// Options configures a Viewer. Dial and Display are required.
type Options struct {
	Host     string
	Port     int
	Dial     DialFunc
	Settings carla.Settings
	Maps     maps.Config
	Selector Selector
	Display  display.Display
	Sinks    []Sink
	Backoff  time.Duration
	Logger   *slog.Logger
	Metrics  *metrics.Viewer
	// Sleep waits between attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Viewer runs the connect, fetch, render and display sequence.
type Viewer struct {
	opts    Options
	logger  *slog.Logger
	attempt atomic.Int32
}

// New returns a viewer for opts.
func New(opts Options) *Viewer {
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Viewer{opts: opts, logger: logger}
}

// Attempt performs one pass. The returned report is nil if the scene was
// never received; otherwise it holds whatever was drawn, even on error.
func (v *Viewer) Attempt(ctx context.Context) (*Report, error) {
	attempt := int(v.attempt.Add(1))
	start := time.Now()

	session, err := v.opts.Dial(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := session.Close(); err != nil {
			v.logger.Debug("closing session", "error", err)
		}
	}()
	v.logger.Info("CarlaClient connected")

	scene, err := session.LoadSettings(ctx, v.opts.Settings)
	if err != nil {
		return nil, err
	}
	v.logger.Info("Received the start positions")

	report := &Report{
		SessionID:       uuid.New(),
		Attempt:         attempt,
		Host:            v.opts.Host,
		Port:            v.opts.Port,
		SpawnCount:      scene.SpawnCount(),
		Selector:        v.opts.Selector.String(),
		SpawnSpots:      scene.SpawnSpots,
		StartedAt:       start,
		ConnectDuration: time.Since(start),
	}

	variant, detection := maps.Detect(scene, v.logger)
	report.MapName = variant.Name()
	report.Detection = detection

	carlaMap, err := maps.New(variant, v.opts.Maps)
	if err != nil {
		return report, err
	}
	img, err := render.LoadImage(carlaMap.ImagePath)
	if err != nil {
		return report, err
	}

	renderStart := time.Now()
	canvas := render.NewCanvas(img)
	err = drawMarkers(canvas, carlaMap, scene, v.opts.Selector)
	report.Markers = canvas.Markers()
	report.RenderDuration = time.Since(renderStart)
	v.opts.Metrics.MarkersDrawn(ctx, report.MapName, len(report.Markers))
	if err != nil {
		return report, err
	}
	v.logger.Debug("markers drawn",
		"map", report.MapName,
		"detection", string(detection),
		"markers", len(report.Markers),
		"render_time", report.RenderDuration,
	)

	report.Image = canvas.Image()
	v.record(ctx, report)

	return report, v.opts.Display.Show(ctx, report.Image, carlaMap.Name())
}

// Attempts returns the number of attempts started so far.
func (v *Viewer) Attempts() int {
	return int(v.attempt.Load())
}

// drawMarkers draws the selected spots in order. It stops at the first
// index without a spot, leaving the earlier markers on the canvas.
// Negative indices count back from the last spot.
func drawMarkers(canvas *render.Canvas, m *maps.CarlaMap, scene *core.Scene, sel Selector) error {
	count := scene.SpawnCount()
	for _, requested := range sel.Resolve(count) {
		idx, ok := spotIndex(requested, count)
		if !ok {
			return fmt.Errorf("%w: index %d, %d spawn spots", ErrInvalidPosition, requested, count)
		}
		loc := scene.SpawnSpots[idx].Location
		px, py := m.WorldToPixel(loc)
		canvas.AddMarker(core.Marker{Index: idx, Location: loc, PixelX: px, PixelY: py})
	}
	return nil
}

// spotIndex maps a requested index onto [0, count). Anything at or past
// count, or before -count, has no spot.
func spotIndex(idx, count int) (int, bool) {
	if idx < 0 {
		idx += count
	}
	if idx < 0 || idx >= count {
		return 0, false
	}
	return idx, true
}

func (v *Viewer) record(ctx context.Context, r *Report) {
	for _, s := range v.opts.Sinks {
		if err := s.Record(ctx, r); err != nil {
			v.logger.Warn("failed to record report", "sink", s.Name(), "error", err)
			continue
		}
		v.logger.Debug("report recorded", "sink", s.Name(), "session", r.SessionID)
	}
}
