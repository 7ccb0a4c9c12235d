package geo

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/carlaviz/startpositions/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// MarkerCollection builds a FeatureCollection with one point per marker.
func MarkerCollection(mapName string, markers []core.Marker, proj *Projector) (geom.GeoJSONFeatureCollection, error) {
	fc := make(geom.GeoJSONFeatureCollection, 0, len(markers))
	for _, m := range markers {
		lon, lat := proj.LonLat(m.Location)
		pt, err := geom.NewPoint(geom.Coordinates{XY: geom.XY{X: lon, Y: lat}})
		if err != nil {
			return nil, fmt.Errorf("marker %d: %w: %v", m.Index, ErrInvalidCoordinates, err)
		}
		fc = append(fc, geom.GeoJSONFeature{
			Geometry: pt.AsGeometry(),
			ID:       m.Index,
			Properties: map[string]interface{}{
				"map":     mapName,
				"index":   m.Index,
				"pixel_x": m.PixelX,
				"pixel_y": m.PixelY,
				"world_x": m.Location.X,
				"world_y": m.Location.Y,
				"world_z": m.Location.Z,
			},
		})
	}
	return fc, nil
}

// WriteGeoJSON writes the markers to path as a GeoJSON FeatureCollection.
func WriteGeoJSON(path, mapName string, markers []core.Marker, proj *Projector) error {
	fc, err := MarkerCollection(mapName, markers, proj)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode geojson: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write geojson: %w", err)
	}
	return nil
}
