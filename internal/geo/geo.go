package geo

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/carlaviz/startpositions/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Position3DFromString parses an "x,y" or "x,y,z" string into a core.Position3D.
func Position3DFromString(coords string) (core.Position3D, error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) < 2 {
		return core.Position3D{}, ErrInvalidCoordinates
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[0]), 64)
	if err != nil {
		return core.Position3D{}, ErrInvalidCoordinates
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[1]), 64)
	if err != nil {
		return core.Position3D{}, ErrInvalidCoordinates
	}
	var z float64
	if len(coordsSplit) > 2 {
		z, err = strconv.ParseFloat(strings.TrimSpace(coordsSplit[2]), 64)
		if err != nil {
			return core.Position3D{}, ErrInvalidCoordinates
		}
	}
	return core.Position3D{X: x, Y: y, Z: z}, nil
}

// PointFromPosition converts a world location to an XYZ point. NaN or
// infinite X/Y fail validation.
func PointFromPosition(p core.Position3D) (geom.Point, error) {
	pt, err := geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: p.X, Y: p.Y},
			Z:    p.Z,
			Type: geom.DimXYZ,
		},
	)
	if err != nil {
		return geom.Point{}, fmt.Errorf("%w: %v", ErrInvalidCoordinates, err)
	}
	return pt, nil
}

// PositionFromPoint is the inverse of PointFromPosition. An empty point
// yields the origin.
func PositionFromPoint(p geom.Point) core.Position3D {
	coord, ok := p.Coordinates()
	if !ok {
		return core.Position3D{}
	}
	return core.Position3D{X: coord.XY.X, Y: coord.XY.Y, Z: coord.Z}
}

// Calibration describes how a town's world frame maps onto its image.
type Calibration struct {
	WorldOffset core.Position3D
	// Angles are rotations in degrees; only the third one (about the
	// vertical axis) is applied.
	Angles    core.Position3D
	MapOffset core.Position3D
}

// DefaultCalibration is used when a town ships no calibration file. The
// values are those of Town01.txt from the CARLA 0.8 planner assets: no
// rotation, a world offset that only shifts Z, and the common map offset.
// Other towns need their own file next to the image.
func DefaultCalibration() Calibration {
	return Calibration{
		WorldOffset: core.Position3D{X: 0, Y: 0, Z: -0.3811},
		Angles:      core.Position3D{},
		MapOffset:   core.Position3D{X: -1643.022, Y: -1643.022, Z: 0},
	}
}

// ParseCalibration reads a calibration file. The first four lines are the
// world offset, the rotation angles, an unused scale line and the map
// offset, each as comma separated floats. Anything after them is ignored.
func ParseCalibration(r io.Reader) (Calibration, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() && len(lines) < 4 {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return Calibration{}, fmt.Errorf("read calibration: %w", err)
	}
	if len(lines) < 4 {
		return Calibration{}, fmt.Errorf("calibration needs 4 lines, got %d: %w", len(lines), ErrInvalidCoordinates)
	}

	var cal Calibration
	var err error
	if cal.WorldOffset, err = Position3DFromString(lines[0]); err != nil {
		return Calibration{}, fmt.Errorf("world offset %q: %w", lines[0], err)
	}
	if cal.Angles, err = Position3DFromString(lines[1]); err != nil {
		return Calibration{}, fmt.Errorf("rotation %q: %w", lines[1], err)
	}
	if cal.MapOffset, err = Position3DFromString(lines[3]); err != nil {
		return Calibration{}, fmt.Errorf("map offset %q: %w", lines[3], err)
	}
	return cal, nil
}
