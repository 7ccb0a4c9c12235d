// Package carla is a minimal client for the CARLA 0.8 simulator server: it
// opens the world port, requests a new episode and decodes the scene
// description the server answers with.
package carla

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/carlaviz/startpositions/pkg/core"
)

var (
	// ErrConnection marks any failure to reach or talk to the server.
	ErrConnection = errors.New("carla: connection error")
	// ErrMalformedMessage marks a server reply that could not be decoded.
	ErrMalformedMessage = errors.New("carla: malformed message")
)

const (
	DefaultConnectAttempts = 10
	DefaultRetryDelay      = time.Second
)

// Config configures Dial.
type Config struct {
	Host string
	Port int
	// ConnectAttempts is the number of TCP connects tried before giving up.
	ConnectAttempts int
	// RetryDelay is the pause between connect attempts.
	RetryDelay time.Duration
	// Timeout bounds each request/reply exchange. Zero disables it.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Address returns host:port.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Client is an open session with the world port.
type Client struct {
	conn    net.Conn
	timeout time.Duration
	logger  *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Dial connects to the server, retrying up to cfg.ConnectAttempts times.
// Failures are reported as ErrConnection; a cancelled ctx returns ctx.Err().
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = DefaultConnectAttempts
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	addr := cfg.Address()
	var dialer net.Dialer
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			logger.Debug("connected to server", "address", addr, "attempt", attempt)
			return &Client{conn: conn, timeout: cfg.Timeout, logger: logger}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		logger.Debug("failed to connect", "address", addr, "attempt", attempt, "attempts", attempts, "error", err)

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("%w: failed to connect to %s after %d attempts: %v", ErrConnection, addr, attempts, lastErr)
}

// LoadSettings starts a new episode with settings and returns the scene
// description. Cancelling ctx unblocks a pending read or write.
func (c *Client) LoadSettings(ctx context.Context, settings Settings) (*core.Scene, error) {
	iniFile, err := settings.INI()
	if err != nil {
		return nil, err
	}

	if c.timeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, c.ioError(ctx, "set deadline", err)
		}
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	c.logger.Debug("requesting new episode", "settings_bytes", len(iniFile))
	if err := writeMessage(c.conn, encodeRequestNewEpisode(iniFile)); err != nil {
		return nil, c.ioError(ctx, "send episode request", err)
	}

	data, err := readMessage(c.conn)
	if err != nil {
		return nil, c.ioError(ctx, "read scene description", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: server sent an empty scene description", ErrConnection)
	}

	scene, err := decodeSceneDescription(data)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("received scene description", "map_name", scene.MapName, "spawn_spots", scene.SpawnCount())
	return scene, nil
}

// Close closes the connection. Subsequent calls return the first result.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *Client) ioError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, ErrMalformedMessage) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrConnection, op, err)
}
