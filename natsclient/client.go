// Package natsclient manages the connection to the NATS message bus that
// backs the busMessages subscription. It wraps connection establishment with
// retry, reconnect handlers, and graceful drain on shutdown.
package natsclient

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/songlinshu/vector/errors"
	"github.com/songlinshu/vector/pkg/retry"
)

// Config holds connection settings for the message bus.
type Config struct {
	// URL is the NATS server address (default: nats.DefaultURL)
	URL string `json:"url" yaml:"url"`
	// Name identifies this client on the server (default: "vector-api")
	Name string `json:"name,omitempty" yaml:"name"`
	// MaxReconnects bounds automatic reconnection attempts, -1 for
	// unlimited (default: -1)
	MaxReconnects int `json:"maxReconnects,omitempty" yaml:"maxReconnects"`
	// ReconnectWaitStr is the pause between reconnection attempts
	// (default: "2s")
	ReconnectWaitStr string `json:"reconnectWait,omitempty" yaml:"reconnectWait"`

	reconnectWait time.Duration
}

// Validate fills defaults and parses durations.
func (c *Config) Validate() error {
	if c.URL == "" {
		c.URL = nats.DefaultURL
	}
	if c.Name == "" {
		c.Name = "vector-api"
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = -1
	}
	if c.ReconnectWaitStr == "" {
		c.reconnectWait = 2 * time.Second
	} else {
		wait, err := time.ParseDuration(c.ReconnectWaitStr)
		if err != nil {
			return errors.WrapInvalid(err, "NATSClient", "Validate",
				fmt.Sprintf("invalid reconnect wait: %s", c.ReconnectWaitStr))
		}
		c.reconnectWait = wait
	}
	return nil
}

// Client owns one bus connection for the process lifetime.
type Client struct {
	cfg    Config
	logger *slog.Logger

	mu   sync.RWMutex
	conn *nats.Conn
}

// NewClient creates an unconnected client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		logger: logger.With("component", "natsclient"),
	}, nil
}

// Connect establishes the connection, retrying transient dial failures with
// exponential backoff.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return errors.WrapFatal(errors.ErrAlreadyStarted, "NATSClient", "Connect",
			"client already connected")
	}

	opts := []nats.Option{
		nats.Name(c.cfg.Name),
		nats.MaxReconnects(c.cfg.MaxReconnects),
		nats.ReconnectWait(c.cfg.reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				c.logger.Warn("bus disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.logger.Info("bus reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			c.logger.Info("bus connection closed")
		}),
	}

	var conn *nats.Conn
	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
		var dialErr error
		conn, dialErr = nats.Connect(c.cfg.URL, opts...)
		if dialErr != nil {
			c.logger.Warn("bus connect attempt failed", "url", c.cfg.URL, "error", dialErr)
		}
		return dialErr
	})
	if err != nil {
		return errors.WrapTransient(err, "NATSClient", "Connect",
			fmt.Sprintf("connect to %s", c.cfg.URL))
	}

	c.conn = conn
	c.logger.Info("bus connected", "url", conn.ConnectedUrl())
	return nil
}

// Conn returns the live connection, or nil before Connect succeeds.
func (c *Client) Conn() *nats.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// IsConnected reports connection health.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && c.conn.IsConnected()
}

// WaitForConnection blocks until the connection is established or ctx
// expires.
func (c *Client) WaitForConnection(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if c.IsConnected() {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.WrapTransient(errors.ErrConnectionTimeout,
				"NATSClient", "WaitForConnection", "wait for bus")
		case <-ticker.C:
		}
	}
}

// Close drains in-flight messages and closes the connection. Drain is
// bounded by ctx; on expiry the connection is closed immediately.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	drained := make(chan error, 1)
	go func() { drained <- conn.Drain() }()

	select {
	case err := <-drained:
		if err != nil {
			c.logger.Warn("bus drain failed", "error", err)
			conn.Close()
		}
	case <-ctx.Done():
		c.logger.Warn("bus drain timed out, forcing close")
		conn.Close()
	}

	return nil
}
