package geo

import (
	"math"

	"github.com/carlaviz/startpositions/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
)

// Converter maps world locations to image pixels.
type Converter struct {
	cal          Calibration
	pixelDensity float64
	rot          mgl64.Mat2
}

// NewConverter builds a converter for a calibration and the number of world
// units per pixel.
func NewConverter(cal Calibration, pixelDensity float64) *Converter {
	return &Converter{
		cal:          cal,
		pixelDensity: pixelDensity,
		// world points are row vectors, so the map frame turns the other way
		rot: mgl64.Rotate2D(-mgl64.DegToRad(cal.Angles.Z)),
	}
}

// Calibration returns the calibration the converter was built with.
func (c *Converter) Calibration() Calibration {
	return c.cal
}

// PixelDensity returns world units per pixel.
func (c *Converter) PixelDensity() float64 {
	return c.pixelDensity
}

// WorldToPixel rotates p about the vertical axis, shifts it by the world and
// map offsets and scales it down to pixels, rounding towards negative
// infinity.
func (c *Converter) WorldToPixel(p core.Position3D) (int, int) {
	r := c.rot.Mul2x1(mgl64.Vec2{p.X, p.Y})

	relX := r.X() + c.cal.WorldOffset.X - c.cal.MapOffset.X
	relY := r.Y() + c.cal.WorldOffset.Y - c.cal.MapOffset.Y

	return int(math.Floor(relX / c.pixelDensity)), int(math.Floor(relY / c.pixelDensity))
}
