package catalog

import (
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Session is one rendered scene.
type Session struct {
	gorm.Model
	UUID          string         `json:"uuid" gorm:"size:36;uniqueIndex"`
	Attempt       int            `json:"attempt"`
	Host          string         `json:"host" gorm:"size:255"`
	Port          int            `json:"port"`
	MapName       string         `json:"mapName" gorm:"size:32;index"`
	Detection     string         `json:"detection" gorm:"size:32"`
	SpawnCount    int            `json:"spawnCount"`
	Selector      string         `json:"selector"`
	ConnectMillis int64          `json:"connectMillis"`
	RenderMillis  int64          `json:"renderMillis"`
	Markers       datatypes.JSON `json:"markers"`
	SpawnSpots    []SpawnSpot    `json:"spawnSpots"`
}

func (*Session) TableName() string {
	return "sessions"
}

// SpawnSpot is one spawn position reported by the server during a session.
// Pixel coordinates are set only for drawn spots.
type SpawnSpot struct {
	ID        uint       `json:"id" gorm:"primarykey"`
	SessionID uint       `json:"sessionId" gorm:"index:idx_session_spot,unique"`
	SpotIndex int        `json:"index" gorm:"index:idx_session_spot,unique"`
	Location  geom.Point `json:"location"`
	Yaw       float64    `json:"yaw"`
	Drawn     bool       `json:"drawn"`
	PixelX    *int       `json:"pixelX"`
	PixelY    *int       `json:"pixelY"`
}

func (*SpawnSpot) TableName() string {
	return "spawn_spots"
}

// Models lists every table the catalog migrates.
var Models = []interface{}{
	&Session{},
	&SpawnSpot{},
}
