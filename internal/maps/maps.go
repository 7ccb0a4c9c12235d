// Package maps knows the towns the viewer can draw on and how to recognise
// which one the server has loaded.
package maps

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/carlaviz/startpositions/internal/geo"
	"github.com/carlaviz/startpositions/pkg/core"
)

const (
	DefaultPixelDensity = 16.53
	DefaultNodeDensity  = 50.0

	// largeTownMinSpawns is the smallest spawn count treated as Town01.
	largeTownMinSpawns = 101
)

// Variant is one of the supported towns.
type Variant int

const (
	Town01 Variant = iota + 1
	Town02
)

// Name returns the town name used for assets and logs.
func (v Variant) Name() string {
	switch v {
	case Town01:
		return "Town01"
	case Town02:
		return "Town02"
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

func (v Variant) String() string { return v.Name() }

// ImagePath returns the background image location under assetsDir.
func (v Variant) ImagePath(assetsDir string) string {
	return filepath.Join(assetsDir, v.Name()+".png")
}

// CalibrationPath returns the calibration file location under assetsDir.
func (v Variant) CalibrationPath(assetsDir string) string {
	return filepath.Join(assetsDir, v.Name()+".txt")
}

// ParseVariant matches a server map name such as "Town01" or
// "/Game/Maps/Town01" against the known towns.
func ParseVariant(name string) (Variant, bool) {
	base := path.Base(strings.TrimSpace(name))
	for _, v := range []Variant{Town01, Town02} {
		if strings.EqualFold(base, v.Name()) {
			return v, true
		}
	}
	return 0, false
}

// FromSpawnCount guesses the town from the number of spawn spots: the
// larger town has more than 100.
func FromSpawnCount(n int) Variant {
	if n >= largeTownMinSpawns {
		return Town01
	}
	return Town02
}

// Detection records how a variant was chosen.
type Detection string

const (
	DetectedByMapName    Detection = "map_name"
	DetectedBySpawnCount Detection = "count_heuristic"
)

// Detect picks the variant for scene. A recognised map name wins; otherwise
// the spawn count heuristic is used and a warning is logged.
func Detect(scene *core.Scene, logger *slog.Logger) (Variant, Detection) {
	if logger == nil {
		logger = slog.Default()
	}
	if v, ok := ParseVariant(scene.MapName); ok {
		return v, DetectedByMapName
	}

	count := scene.SpawnCount()
	v := FromSpawnCount(count)
	logger.Warn("map not reported by server, guessing from spawn count",
		"map_name", scene.MapName,
		"spawn_spots", count,
		"guess", v.Name(),
	)
	return v, DetectedBySpawnCount
}

// Config holds the map scale parameters and asset location.
type Config struct {
	AssetsDir    string
	PixelDensity float64
	NodeDensity  float64
}

// CarlaMap is a town bound to its image asset and world to pixel converter.
type CarlaMap struct {
	Variant      Variant
	PixelDensity float64
	NodeDensity  float64
	ImagePath    string

	converter *geo.Converter
}

// New builds the map for v. The calibration file next to the image is
// optional; without it the stock offsets are used.
func New(v Variant, cfg Config) (*CarlaMap, error) {
	if cfg.PixelDensity <= 0 {
		cfg.PixelDensity = DefaultPixelDensity
	}
	if cfg.NodeDensity <= 0 {
		cfg.NodeDensity = DefaultNodeDensity
	}

	cal, err := loadCalibration(v.CalibrationPath(cfg.AssetsDir))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", v.Name(), err)
	}

	return &CarlaMap{
		Variant:      v,
		PixelDensity: cfg.PixelDensity,
		NodeDensity:  cfg.NodeDensity,
		ImagePath:    v.ImagePath(cfg.AssetsDir),
		converter:    geo.NewConverter(cal, cfg.PixelDensity),
	}, nil
}

// Name returns the town name.
func (m *CarlaMap) Name() string { return m.Variant.Name() }

// WorldToPixel converts a world location to image pixel coordinates.
func (m *CarlaMap) WorldToPixel(p core.Position3D) (int, int) {
	return m.converter.WorldToPixel(p)
}

func loadCalibration(p string) (geo.Calibration, error) {
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return geo.DefaultCalibration(), nil
	}
	if err != nil {
		return geo.Calibration{}, fmt.Errorf("open calibration: %w", err)
	}
	defer f.Close()
	return geo.ParseCalibration(f)
}
