// Package publish streams rendered scenes to a live WebSocket endpoint.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/carlaviz/startpositions/internal/viewer"
	"github.com/carlaviz/startpositions/pkg/streaming"
)

// Config holds WebSocket publisher configuration.
type Config struct {
	URL    string
	Secret string
}

// Publisher sends one start_positions envelope per report and waits for
// the server to acknowledge it. The connection is opened on first use.
type Publisher struct {
	cfg    Config
	logger *slog.Logger

	mu   sync.Mutex
	conn *connection
}

// New creates a publisher.
func New(cfg Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{cfg: cfg, logger: logger}
}

// Name identifies the sink in logs.
func (p *Publisher) Name() string { return "publish" }

// Record sends r and waits for the ack.
func (p *Publisher) Record(ctx context.Context, r *viewer.Report) error {
	conn, err := p.connect(ctx)
	if err != nil {
		return err
	}

	data, err := marshalEnvelope(streaming.TypeStartPositions, payloadFromReport(r))
	if err != nil {
		return err
	}
	if err := conn.sendAndWait(ctx, data, streaming.TypeStartPositions, ackTimeout); err != nil {
		return err
	}
	p.logger.Debug("Published start positions", "session", r.SessionID, "markers", len(r.Markers))
	return nil
}

// Close disconnects from the WebSocket server.
func (p *Publisher) Close() error {
	p.mu.Lock()
	conn := p.conn
	p.conn = nil
	p.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.close()
}

func (p *Publisher) connect(ctx context.Context) (*connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil {
		return p.conn, nil
	}
	conn := newConnection(p.logger)
	if err := conn.dial(ctx, p.cfg.URL, p.cfg.Secret); err != nil {
		return nil, err
	}
	p.conn = conn
	return conn, nil
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

func payloadFromReport(r *viewer.Report) streaming.StartPositionsPayload {
	return streaming.StartPositionsPayload{
		SessionID:  r.SessionID.String(),
		Host:       r.Host,
		Port:       r.Port,
		MapName:    r.MapName,
		Detection:  string(r.Detection),
		SpawnCount: r.SpawnCount,
		Selector:   r.Selector,
		Markers:    r.Markers,
	}
}
