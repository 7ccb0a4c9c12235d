package viewer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/carlaviz/startpositions/internal/carla"
	"github.com/carlaviz/startpositions/internal/maps"
	"github.com/carlaviz/startpositions/internal/render"
	"github.com/carlaviz/startpositions/pkg/core"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	scene   *core.Scene
	err     error
	closed  int
	request carla.Settings
}

func (s *fakeSession) LoadSettings(ctx context.Context, settings carla.Settings) (*core.Scene, error) {
	s.request = settings
	return s.scene, s.err
}

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

// fakeDialer hands out results in order and repeats the last one.
type fakeDialer struct {
	results  []dialResult
	calls    int
	sessions []*fakeSession
}

type dialResult struct {
	session *fakeSession
	err     error
}

func (d *fakeDialer) Dial(ctx context.Context) (Session, error) {
	r := d.results[min(d.calls, len(d.results)-1)]
	d.calls++
	if r.err != nil {
		return nil, r.err
	}
	d.sessions = append(d.sessions, r.session)
	return r.session, nil
}

type fakeDisplay struct {
	shown  []image.Image
	titles []string
	err    error
}

func (d *fakeDisplay) Show(ctx context.Context, img image.Image, title string) error {
	d.shown = append(d.shown, img)
	d.titles = append(d.titles, title)
	return d.err
}

type fakeSink struct {
	name    string
	err     error
	reports []*Report
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) Record(ctx context.Context, r *Report) error {
	s.reports = append(s.reports, r)
	return s.err
}

func writeAssets(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 400, 400))
	for y := 0; y < 400; y++ {
		for x := 0; x < 400; x++ {
			img.Set(x, y, color.White)
		}
	}
	for _, name := range []string{"Town01.png", "Town02.png"} {
		f, err := os.Create(filepath.Join(dir, name))
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, img))
		require.NoError(t, f.Close())
	}
	return dir
}

func makeScene(count int) *core.Scene {
	spots := make([]core.SpawnSpot, count)
	for i := range spots {
		spots[i].Location = core.Position3D{X: float64(i) * 10, Y: float64(i) * 5, Z: 39}
	}
	return &core.Scene{SpawnSpots: spots}
}

type harness struct {
	viewer  *Viewer
	dialer  *fakeDialer
	display *fakeDisplay
	delays  []time.Duration
	logs    *bytes.Buffer
	assets  string
}

func newHarness(t *testing.T, selector string, results ...dialResult) *harness {
	t.Helper()
	sel, err := ParseSelector(selector)
	require.NoError(t, err)

	h := &harness{
		dialer:  &fakeDialer{results: results},
		display: &fakeDisplay{},
		logs:    &bytes.Buffer{},
		assets:  writeAssets(t),
	}
	h.viewer = New(Options{
		Host:     "localhost",
		Port:     2000,
		Dial:     h.dialer.Dial,
		Settings: carla.DefaultSettings(),
		Maps:     maps.Config{AssetsDir: h.assets},
		Selector: sel,
		Display:  h.display,
		Logger:   slog.New(slog.NewTextHandler(h.logs, nil)),
		Sleep: func(ctx context.Context, d time.Duration) error {
			h.delays = append(h.delays, d)
			return ctx.Err()
		},
	})
	return h
}

func expectedMarkers(t *testing.T, assets string, v maps.Variant, scene *core.Scene, indices ...int) []core.Marker {
	t.Helper()
	m, err := maps.New(v, maps.Config{AssetsDir: assets})
	require.NoError(t, err)
	out := make([]core.Marker, 0, len(indices))
	for _, i := range indices {
		loc := scene.SpawnSpots[i].Location
		px, py := m.WorldToPixel(loc)
		out = append(out, core.Marker{Index: i, Location: loc, PixelX: px, PixelY: py})
	}
	return out
}

func TestAttempt_ExplicitIndicesOnLargeTown(t *testing.T) {
	scene := makeScene(150)
	session := &fakeSession{scene: scene}
	h := newHarness(t, "0,5,149", dialResult{session: session})

	report, err := h.viewer.Attempt(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Town01", report.MapName)
	assert.Equal(t, maps.DetectedBySpawnCount, report.Detection)
	assert.Equal(t, expectedMarkers(t, h.assets, maps.Town01, scene, 0, 5, 149), report.Markers)
	assert.Equal(t, []string{"Town01"}, h.display.titles)
	assert.Equal(t, 1, session.closed)
	assert.Equal(t, carla.DefaultSettings(), session.request)

	logs := h.logs.String()
	assert.Contains(t, logs, "CarlaClient connected")
	assert.Contains(t, logs, "Received the start positions")
}

func TestAttempt_AllOnSmallTown(t *testing.T) {
	scene := makeScene(80)
	h := newHarness(t, "all", dialResult{session: &fakeSession{scene: scene}})

	report, err := h.viewer.Attempt(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Town02", report.MapName)
	require.Len(t, report.Markers, 80)
	for i, m := range report.Markers {
		assert.Equal(t, i, m.Index)
	}
	assert.Len(t, h.display.shown, 1)
}

func TestAttempt_AllMatchesExplicitList(t *testing.T) {
	scene := makeScene(7)

	all := newHarness(t, "all", dialResult{session: &fakeSession{scene: scene}})
	allReport, err := all.viewer.Attempt(context.Background())
	require.NoError(t, err)

	list := newHarness(t, "0,1,2,3,4,5,6", dialResult{session: &fakeSession{scene: scene}})
	listReport, err := list.viewer.Attempt(context.Background())
	require.NoError(t, err)

	assert.Equal(t, listReport.Markers, allReport.Markers)
}

func TestAttempt_IndexEqualToCountIsInvalid(t *testing.T) {
	session := &fakeSession{scene: makeScene(80)}
	h := newHarness(t, "80", dialResult{session: session})

	report, err := h.viewer.Attempt(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPosition)
	assert.Empty(t, report.Markers)
	assert.Empty(t, h.display.shown)
	assert.Equal(t, 1, session.closed)
}

func TestAttempt_LastValidIndex(t *testing.T) {
	h := newHarness(t, "79", dialResult{session: &fakeSession{scene: makeScene(80)}})

	report, err := h.viewer.Attempt(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Markers, 1)
	assert.Equal(t, 79, report.Markers[0].Index)
}

func TestAttempt_NegativeIndexCountsFromEnd(t *testing.T) {
	scene := makeScene(10)
	h := newHarness(t, "-1,-10,2", dialResult{session: &fakeSession{scene: scene}})

	report, err := h.viewer.Attempt(context.Background())
	require.NoError(t, err)
	assert.Equal(t, expectedMarkers(t, h.assets, maps.Town02, scene, 9, 0, 2), report.Markers)
	assert.Len(t, h.display.shown, 1)
}

func TestAttempt_NegativeIndexPastStartIsInvalid(t *testing.T) {
	scene := makeScene(10)
	h := newHarness(t, "-1,-11", dialResult{session: &fakeSession{scene: scene}})

	report, err := h.viewer.Attempt(context.Background())
	require.ErrorIs(t, err, ErrInvalidPosition)
	assert.Contains(t, err.Error(), "index -11")
	assert.Equal(t, expectedMarkers(t, h.assets, maps.Town02, scene, 9), report.Markers)
}

func TestSpotIndex(t *testing.T) {
	tests := []struct {
		in, count, want int
		ok              bool
	}{
		{0, 10, 0, true},
		{9, 10, 9, true},
		{10, 10, 0, false},
		{-1, 10, 9, true},
		{-10, 10, 0, true},
		{-11, 10, 0, false},
		{0, 0, 0, false},
		{-1, 0, 0, false},
	}
	for _, tt := range tests {
		got, ok := spotIndex(tt.in, tt.count)
		assert.Equal(t, tt.ok, ok, "index %d of %d", tt.in, tt.count)
		assert.Equal(t, tt.want, got, "index %d of %d", tt.in, tt.count)
	}
}

func TestAttempt_PartialRenderBeforeInvalidIndex(t *testing.T) {
	scene := makeScene(80)
	h := newHarness(t, "3,3,200,4", dialResult{session: &fakeSession{scene: scene}})

	report, err := h.viewer.Attempt(context.Background())
	require.ErrorIs(t, err, ErrInvalidPosition)
	assert.Contains(t, err.Error(), "index 200")
	assert.Equal(t, expectedMarkers(t, h.assets, maps.Town02, scene, 3, 3), report.Markers)
	assert.Empty(t, h.display.shown)
}

func TestAttempt_MapNameOverridesHeuristic(t *testing.T) {
	scene := makeScene(150)
	scene.MapName = "Town02"
	h := newHarness(t, "0", dialResult{session: &fakeSession{scene: scene}})

	report, err := h.viewer.Attempt(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Town02", report.MapName)
	assert.Equal(t, maps.DetectedByMapName, report.Detection)
	assert.NotContains(t, h.logs.String(), "level=WARN")
}

func TestAttempt_MissingAsset(t *testing.T) {
	session := &fakeSession{scene: makeScene(5)}
	h := newHarness(t, "all", dialResult{session: session})
	require.NoError(t, os.Remove(filepath.Join(h.assets, "Town02.png")))

	_, err := h.viewer.Attempt(context.Background())
	assert.ErrorIs(t, err, render.ErrAssetNotFound)
	assert.Equal(t, 1, session.closed)
}

func TestAttempt_LoadSettingsFailureClosesSession(t *testing.T) {
	session := &fakeSession{err: fmt.Errorf("%w: reset by peer", carla.ErrConnection)}
	h := newHarness(t, "all", dialResult{session: session})

	report, err := h.viewer.Attempt(context.Background())
	assert.ErrorIs(t, err, carla.ErrConnection)
	assert.Nil(t, report)
	assert.Equal(t, 1, session.closed)
}

func TestAttempt_Sinks(t *testing.T) {
	h := newHarness(t, "0,1", dialResult{session: &fakeSession{scene: makeScene(3)}})
	failing := &fakeSink{name: "catalog", err: errors.New("disk full")}
	ok := &fakeSink{name: "influx"}
	h.viewer.opts.Sinks = []Sink{failing, ok}

	_, err := h.viewer.Attempt(context.Background())
	require.NoError(t, err)

	require.Len(t, ok.reports, 1)
	r := ok.reports[0]
	assert.NotEqual(t, uuid.Nil, r.SessionID)
	assert.Equal(t, "localhost", r.Host)
	assert.Equal(t, 2000, r.Port)
	assert.Equal(t, 3, r.SpawnCount)
	assert.Equal(t, "0,1", r.Selector)
	assert.Len(t, r.Markers, 2)
	assert.NotNil(t, r.Image)
	assert.Len(t, failing.reports, 1)

	assert.Contains(t, h.logs.String(), "level=WARN msg=\"failed to record report\" sink=catalog")
	assert.Len(t, h.display.shown, 1)
}

func TestAttempt_ImageHasMarkers(t *testing.T) {
	scene := makeScene(1)
	h := newHarness(t, "0", dialResult{session: &fakeSession{scene: scene}})

	report, err := h.viewer.Attempt(context.Background())
	require.NoError(t, err)

	m := report.Markers[0]
	r, g, b, _ := h.display.shown[0].At(m.PixelX, m.PixelY).RGBA()
	assert.Equal(t, []uint32{0xffff, 0, 0}, []uint32{r, g, b})
}
