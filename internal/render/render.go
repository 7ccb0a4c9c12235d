// Package render composes spawn markers onto a town image.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"io/fs"

	"github.com/carlaviz/startpositions/pkg/core"
	"github.com/fogleman/gg"
)

// ErrAssetNotFound is returned when a town image is missing.
var ErrAssetNotFound = errors.New("image asset not found")

const MarkerRadius = 12

// MarkerColor is the fill of every spawn marker.
var MarkerColor color.Color = color.RGBA{R: 255, A: 255}

// LoadImage decodes the image at path.
func LoadImage(path string) (image.Image, error) {
	img, err := gg.LoadImage(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("load image %s: %w", path, err)
	}
	return img, nil
}

// Canvas is a drawable copy of a background image.
type Canvas struct {
	dc      *gg.Context
	markers []core.Marker
}

// NewCanvas copies img into a new canvas.
func NewCanvas(img image.Image) *Canvas {
	return &Canvas{dc: gg.NewContextForImage(img)}
}

// DrawCircle fills a circle of radius r centred on x, y.
func (c *Canvas) DrawCircle(x, y, r float64, col color.Color) {
	c.dc.SetColor(col)
	c.dc.DrawCircle(x, y, r)
	c.dc.Fill()
}

// AddMarker draws m at its pixel position and records it.
func (c *Canvas) AddMarker(m core.Marker) {
	c.DrawCircle(float64(m.PixelX), float64(m.PixelY), MarkerRadius, MarkerColor)
	c.markers = append(c.markers, m)
}

// Markers returns the markers drawn so far, in draw order.
func (c *Canvas) Markers() []core.Marker {
	return c.markers
}

// Image returns the composed image.
func (c *Canvas) Image() image.Image {
	return c.dc.Image()
}

// Size returns the canvas width and height in pixels.
func (c *Canvas) Size() (int, int) {
	return c.dc.Width(), c.dc.Height()
}

// EncodePNG writes the composed image to w.
func (c *Canvas) EncodePNG(w io.Writer) error {
	return c.dc.EncodePNG(w)
}
