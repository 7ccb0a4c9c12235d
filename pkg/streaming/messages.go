package streaming

import (
	"encoding/json"

	"github.com/carlaviz/startpositions/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartPositions = "start_positions"
	TypeAck            = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartPositionsPayload describes one rendered scene.
type StartPositionsPayload struct {
	SessionID  string        `json:"sessionId"`
	Host       string        `json:"host"`
	Port       int           `json:"port"`
	MapName    string        `json:"mapName"`
	Detection  string        `json:"detection"`
	SpawnCount int           `json:"spawnCount"`
	Selector   string        `json:"selector"`
	Markers    []core.Marker `json:"markers"`
}
