package geo

import (
	"github.com/carlaviz/startpositions/pkg/core"
	"github.com/wroge/wgs84"
)

// Origin anchors the simulator's local frame on the globe.
type Origin struct {
	Lon float64
	Lat float64
}

type transformFunc func(a, b, c float64) (float64, float64, float64)

// Projector places world locations on WGS84 by treating them as metre
// offsets in web mercator around an origin.
type Projector struct {
	toMercator   transformFunc
	fromMercator transformFunc
	ox, oy       float64
}

// NewProjector returns a projector anchored at origin.
func NewProjector(origin Origin) *Projector {
	epsg := wgs84.EPSG()
	p := &Projector{
		toMercator:   transformFunc(epsg.Transform(4326, 3857)),
		fromMercator: transformFunc(epsg.Transform(3857, 4326)),
	}
	p.ox, p.oy, _ = p.toMercator(origin.Lon, origin.Lat, 0)
	return p
}

// LonLat converts a world location. The simulator's y axis points south.
func (p *Projector) LonLat(loc core.Position3D) (lon, lat float64) {
	lon, lat, _ = p.fromMercator(p.ox+loc.X, p.oy-loc.Y, 0)
	return lon, lat
}
