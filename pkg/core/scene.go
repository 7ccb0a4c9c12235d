// pkg/core/scene.go
package core

// Position3D is a location in simulator world units.
type Position3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Rotation3D holds Euler angles in degrees.
type Rotation3D struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
}

// SpawnSpot is a predefined start location for the player vehicle.
type SpawnSpot struct {
	Location    Position3D `json:"location"`
	Orientation Position3D `json:"orientation"`
	Rotation    Rotation3D `json:"rotation"`
}

// Scene is the scene description the server returns for a new episode.
// MapName is empty when the server predates the map_name field.
type Scene struct {
	MapName    string      `json:"mapName,omitempty"`
	SpawnSpots []SpawnSpot `json:"spawnSpots"`
}

// SpawnCount returns the number of player start spots.
func (s *Scene) SpawnCount() int {
	if s == nil {
		return 0
	}
	return len(s.SpawnSpots)
}

// Marker is one circle drawn over the map image.
type Marker struct {
	Index    int        `json:"index"`
	Location Position3D `json:"location"`
	PixelX   int        `json:"pixelX"`
	PixelY   int        `json:"pixelY"`
}
