package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/carlaviz/startpositions/internal/config"
	"github.com/carlaviz/startpositions/internal/display"
	"github.com/carlaviz/startpositions/internal/maps"
	"github.com/carlaviz/startpositions/internal/viewer"
	"github.com/carlaviz/startpositions/pkg/core"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestNormalizeArgs(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{[]string{"-pos", "1,2"}, []string{"--positions", "1,2"}},
		{[]string{"-pos=3"}, []string{"--positions=3"}},
		{[]string{"-v", "--host", "sim", "-p", "2010"}, []string{"-v", "--host", "sim", "-p", "2010"}},
		{[]string{"--", "-pos"}, []string{"--", "-pos"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeArgs(tt.in))
	}
}

func TestParseFlags_Defaults(t *testing.T) {
	fs, err := parseFlags(nil, &bytes.Buffer{})
	require.NoError(t, err)

	host, _ := fs.GetString("host")
	port, _ := fs.GetInt("port")
	positions, _ := fs.GetString("positions")
	assert.Equal(t, "localhost", host)
	assert.Equal(t, 2000, port)
	assert.Equal(t, "all", positions)
}

func TestParseFlags_Errors(t *testing.T) {
	_, err := parseFlags([]string{"--port", "abc"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, err = parseFlags([]string{"stray"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "unexpected arguments")
}

func TestBindFlags_OverridesConfig(t *testing.T) {
	resetViper(t)
	dir := t.TempDir()
	cfg := `{"server": {"host": "from-file", "port": 2100}, "viewer": {"positions": "4"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte(cfg), 0644))

	fs, err := parseFlags([]string{"-pos", "1,2", "-v"}, &bytes.Buffer{})
	require.NoError(t, err)
	found, err := config.Load(dir)
	require.NoError(t, err)
	require.True(t, found)
	require.NoError(t, bindFlags(fs))

	server := config.GetServerConfig()
	assert.Equal(t, "from-file", server.Host)
	assert.Equal(t, 2100, server.Port)
	assert.Equal(t, "1,2", config.GetViewerConfig().Positions)
	assert.Equal(t, "debug", viper.GetString("logLevel"))
}

func TestRun_Help(t *testing.T) {
	resetViper(t)
	var stderr bytes.Buffer
	assert.Equal(t, exitOK, run([]string{"--help"}, &bytes.Buffer{}, &stderr))
	assert.Contains(t, stderr.String(), "--positions")
}

func TestRun_InvalidSelector(t *testing.T) {
	resetViper(t)
	var stdout bytes.Buffer
	code := run([]string{"--config", t.TempDir(), "-pos", "1,x"}, &stdout, &bytes.Buffer{})
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stdout.String(), "Invalid positions")
}

func TestRun_BadFlag(t *testing.T) {
	resetViper(t)
	assert.Equal(t, exitUsage, run([]string{"--nope"}, &bytes.Buffer{}, &bytes.Buffer{}))
}

func TestNewDisplay(t *testing.T) {
	d := newDisplay(config.DisplayConfig{Mode: "file", Output: "out.png"}, nil)
	f, ok := d.(*display.File)
	require.True(t, ok)
	assert.Equal(t, "out.png", f.Path)

	d = newDisplay(config.DisplayConfig{Mode: "file"}, nil)
	assert.Equal(t, "start_positions.png", d.(*display.File).Path)
}

func TestGeojsonSink(t *testing.T) {
	resetViper(t)
	config.SetDefaults()
	path := filepath.Join(t.TempDir(), "markers.geojson")
	viper.Set("export.geojson", path)

	set := createSinks(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)), zerolog.Nop())
	require.Len(t, set.sinks, 1)
	assert.Equal(t, "geojson", set.sinks[0].Name())

	report := &viewer.Report{
		SessionID: uuid.New(),
		MapName:   "Town02",
		Detection: maps.DetectedByMapName,
		Markers:   []core.Marker{{Index: 2, PixelX: 5, PixelY: 6}},
	}
	require.NoError(t, set.sinks[0].Record(context.Background(), report))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "FeatureCollection")
	assert.Contains(t, string(data), "Town02")
}
