package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fu-tracker/dashboard/internal/logging"
)

// ErrNotConnected is returned by Send while no connection is open.
var ErrNotConnected = errors.New("push channel not connected")

// Settings tunes the websocket client.
type Settings struct {
	HandshakeTimeout time.Duration
	ReconnectDelay   time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	ReadTimeout      time.Duration
	MaxMessageSize   int64
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		HandshakeTimeout: 5 * time.Second,
		ReconnectDelay:   5 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingInterval:     10 * time.Second,
		ReadTimeout:      30 * time.Second,
		MaxMessageSize:   4 << 20,
	}
}

// Handler receives inbound messages in arrival order.
type Handler func(Inbound)

// StateFunc is told whenever the connection opens or closes.
type StateFunc func(connected bool, err error)

// Client keeps a websocket connection to the upstream hub open.
type Client struct {
	url      string
	settings Settings
	dialer   *websocket.Dialer
	log      logging.Logger
	onState  StateFunc

	connMu  sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	connected atomic.Bool
}

// NewClient creates a client for the given ws:// or wss:// URL.
func NewClient(url string, settings Settings, log logging.Logger) *Client {
	if log == nil {
		log = logging.Noop()
	}
	return &Client{
		url:      url,
		settings: settings,
		dialer: &websocket.Dialer{
			HandshakeTimeout: settings.HandshakeTimeout,
		},
		log: log.With(logging.Component("channel"), logging.String("url", url)),
	}
}

// OnState registers a connection state callback. It must be set before Run.
func (c *Client) OnState(fn StateFunc) {
	c.onState = fn
}

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Run connects and reads until ctx is cancelled, reconnecting after
// ReconnectDelay whenever the connection drops.
func (c *Client) Run(ctx context.Context, handle Handler) error {
	for {
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			c.log.Warn(ctx, "dial failed", logging.Err(err))
			c.setState(false, err)
		} else {
			c.log.Info(ctx, "connected")
			err = c.serve(ctx, conn, handle)
			c.log.Info(ctx, "disconnected", logging.Err(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.settings.ReconnectDelay):
		}
	}
}

func (c *Client) serve(ctx context.Context, conn *websocket.Conn, handle Handler) error {
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	c.setState(true, nil)

	serveCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		c.connMu.Lock()
		c.conn = nil
		c.connMu.Unlock()
		conn.Close()
	}()

	if c.settings.MaxMessageSize > 0 {
		conn.SetReadLimit(c.settings.MaxMessageSize)
	}
	c.extendRead(conn)
	conn.SetPongHandler(func(string) error {
		c.extendRead(conn)
		return nil
	})

	go c.pingLoop(serveCtx, conn)

	// Unblock ReadJSON when the caller cancels.
	go func() {
		<-serveCtx.Done()
		conn.Close()
	}()

	var readErr error
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			readErr = err
			break
		}
		c.extendRead(conn)

		inbound, err := Decode(msg)
		if err != nil {
			c.log.Warn(ctx, "dropping inbound message", logging.String("type", msg.Type), logging.Err(err))
			continue
		}
		handle(inbound)
	}

	c.setState(false, readErr)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return readErr
}

func (c *Client) extendRead(conn *websocket.Conn) {
	if c.settings.ReadTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(c.settings.ReadTimeout))
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	if c.settings.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.settings.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.settings.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Send writes one message. It does not wait for any acknowledgement and
// does not retry.
func (c *Client) Send(msg Message) error {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.settings.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
	}
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("sending %s: %w", msg.Type, err)
	}
	return nil
}

func (c *Client) setState(connected bool, err error) {
	c.connected.Store(connected)
	if c.onState != nil {
		c.onState(connected, err)
	}
}
