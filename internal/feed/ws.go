package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"options-strategy-lab/internal/domain"
	"options-strategy-lab/internal/observability"
)

// WSConfig configures the live feed connection.
type WSConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultWSConfig returns default feed connection configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Subscription names what a live feed connection asks the quote server
// for: an underlying plus the contract ids whose quotes it needs.
type Subscription struct {
	Underlying string   `json:"underlying"`
	Contracts  []string `json:"contracts"`
}

type wsSubscribeRequest struct {
	Action     string   `json:"action"`
	Underlying string   `json:"underlying"`
	Contracts  []string `json:"contracts,omitempty"`
}

type wsErrorFrame struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// WSSource streams ticks from a quote server over a websocket. It
// reconnects with exponential backoff and resubscribes after every
// reconnect. Frames are forwarded as-is; ordering is restored by a
// ReorderBuffer layered on top.
//
// A WSSource is single-use: Ticks may be called once.
type WSSource struct {
	endpoint string
	sub      Subscription
	config   WSConfig
	logger   zerolog.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	out  chan *domain.Tick
	done chan struct{}
	wg   sync.WaitGroup

	// reconnecting indicates reconnection in progress
	reconnecting atomic.Bool
}

var _ Source = (*WSSource)(nil)

// NewWSSource creates a live feed source. Nil config uses defaults.
func NewWSSource(endpoint string, sub Subscription, config *WSConfig, logger zerolog.Logger) *WSSource {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	return &WSSource{
		endpoint: endpoint,
		sub:      sub,
		config:   cfg,
		logger:   logger.With().Str("component", "ws_feed").Logger(),
		out:      make(chan *domain.Tick, 10000),
		done:     make(chan struct{}),
	}
}

// Bounded is always false for live sources.
func (c *WSSource) Bounded() bool {
	return false
}

// Ticks connects, subscribes, and starts streaming. Cancelling ctx
// closes the source.
func (c *WSSource) Ticks(ctx context.Context) (<-chan *domain.Tick, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("feed closed")
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	if err := c.subscribe(); err != nil {
		c.connMu.Lock()
		if c.conn != nil {
			c.conn.Close()
			c.conn = nil
		}
		c.connMu.Unlock()
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()

	return c.out, nil
}

// connect establishes the websocket connection.
func (c *WSSource) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// subscribe sends the subscription request on the current connection.
func (c *WSSource) subscribe() error {
	req := wsSubscribeRequest{
		Action:     "subscribe",
		Underlying: c.sub.Underlying,
		Contracts:  c.sub.Contracts,
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected")
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}
	return nil
}

// Close closes the connection and the tick channel.
func (c *WSSource) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	close(c.out)
	return nil
}

// readLoop reads frames and forwards decoded ticks.
func (c *WSSource) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			// Connection error - attempt reconnect with exponential backoff
			if !c.reconnecting.Swap(true) {
				go c.reconnect(reconnectDelay)
			}

			// Increase delay for next reconnect (exponential backoff)
			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read
		reconnectDelay = c.config.ReconnectDelay

		c.handleMessage(message)
	}
}

// reconnect attempts to reconnect and resubscribe.
func (c *WSSource) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	// Wait before reconnecting
	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	// Close existing connection
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	// Attempt reconnect
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		// Reconnect failed, will retry on next read error
		c.logger.Warn().Err(err).Msg("reconnect failed")
		return
	}

	if err := c.subscribe(); err != nil {
		c.logger.Warn().Err(err).Msg("resubscribe failed")
		return
	}

	observability.RecordFeedReconnect()
	c.logger.Info().Str("endpoint", c.endpoint).Msg("reconnected")
}

// handleMessage decodes an incoming frame.
func (c *WSSource) handleMessage(message []byte) {
	var w wireTick
	if err := json.Unmarshal(message, &w); err == nil && !w.Timestamp.IsZero() {
		tick := w.toDomain()

		// Block until we can send - never drop ticks
		select {
		case c.out <- tick:
		case <-c.done:
		}
		return
	}

	var errFrame wsErrorFrame
	if err := json.Unmarshal(message, &errFrame); err == nil && errFrame.Error != nil {
		c.logger.Error().
			Int("code", errFrame.Error.Code).
			Str("message", errFrame.Error.Message).
			Msg("feed error frame")
		return
	}

	c.logger.Debug().Int("bytes", len(message)).Msg("ignoring unrecognized frame")
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *WSSource) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect
					c.logger.Debug().Err(err).Msg("ping write failed")
				}
			}
			c.connMu.Unlock()
		}
	}
}
