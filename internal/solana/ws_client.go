package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrClientClosed is returned by a closed WebSocket client.
var ErrClientClosed = errors.New("websocket client closed")

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
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
	// SubscribeTimeout bounds the wait for a subscription confirmation.
	SubscribeTimeout time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
	}
}

// WSClientImpl keeps one slotSubscribe subscription alive and fans slots out to listeners.
// Every (re)connect sends slotSubscribe again.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig
	logger   *zap.Logger

	requestID atomic.Uint64
	closed    atomic.Bool
	done      chan struct{}
	wg        sync.WaitGroup

	mu         sync.Mutex
	conn       *websocket.Conn
	listeners  []chan SlotNotification
	latest     *SlotNotification
	subscribed chan struct{} // closed on the first confirmation
	confirmed  bool
}

var _ WSClient = (*WSClientImpl)(nil)

// NewWSClient connects to endpoint and starts the slot subscription.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig, logger *zap.Logger) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &WSClientImpl{
		endpoint:   endpoint,
		config:     cfg,
		logger:     logger,
		done:       make(chan struct{}),
		subscribed: make(chan struct{}),
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.run(conn)
	return c, nil
}

func (c *WSClientImpl) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

// SubscribeSlots returns a channel of slot updates. The channel holds only the newest
// slot when the consumer falls behind and is closed by Close.
func (c *WSClientImpl) SubscribeSlots(ctx context.Context) (<-chan SlotNotification, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	ch := make(chan SlotNotification, 1)
	c.mu.Lock()
	if c.latest != nil {
		ch <- *c.latest
	}
	c.listeners = append(c.listeners, ch)
	subscribed := c.subscribed
	c.mu.Unlock()

	timer := time.NewTimer(c.config.SubscribeTimeout)
	defer timer.Stop()

	var err error
	select {
	case <-subscribed:
		return ch, nil
	case <-c.done:
		return nil, ErrClientClosed
	case <-ctx.Done():
		err = ctx.Err()
	case <-timer.C:
		err = fmt.Errorf("slot subscription not confirmed after %v", c.config.SubscribeTimeout)
	}

	c.removeListener(ch)
	return nil, err
}

func (c *WSClientImpl) removeListener(ch chan SlotNotification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, l := range c.listeners {
		if l == ch {
			c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
			return
		}
	}
}

// Close stops the client and closes every listener channel. Safe to call twice.
func (c *WSClientImpl) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.config.WriteTimeout))
		c.conn.Close()
	}
	c.mu.Unlock()

	c.wg.Wait()

	c.mu.Lock()
	for _, ch := range c.listeners {
		close(ch)
	}
	c.listeners = nil
	c.mu.Unlock()
	return nil
}

// run serves connections until Close, reconnecting with exponential backoff.
func (c *WSClientImpl) run(conn *websocket.Conn) {
	defer c.wg.Done()

	delay := c.config.ReconnectDelay
	for {
		err := c.serve(conn)
		if c.closed.Load() {
			return
		}
		c.logger.Warn("slot feed disconnected, reconnecting", zap.Error(err), zap.Duration("delay", delay))

		for {
			select {
			case <-c.done:
				return
			case <-time.After(delay):
			}
			delay = min(delay*2, c.config.MaxReconnectDelay)

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			conn, err = c.dial(ctx)
			cancel()
			if err == nil {
				delay = c.config.ReconnectDelay
				break
			}
			c.logger.Warn("websocket reconnect failed", zap.Error(err))
		}
	}
}

// serve subscribes on conn and reads until the connection fails.
func (c *WSClientImpl) serve(conn *websocket.Conn) error {
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		conn.Close()
		return ErrClientClosed
	}
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()

	reqID := c.requestID.Add(1)
	conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := conn.WriteJSON(wsRequest{JSONRPC: "2.0", ID: reqID, Method: "slotSubscribe"}); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	})

	stopPing := make(chan struct{})
	defer close(stopPing)
	go c.ping(conn, stopPing)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		c.handleMessage(reqID, message)
	}
}

// ping sends ping frames until stop is closed. Failures surface on the next read.
func (c *WSClientImpl) ping(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.config.WriteTimeout))
		}
	}
}

func (c *WSClientImpl) handleMessage(reqID uint64, message []byte) {
	var msg wsMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Debug("unreadable websocket message", zap.Error(err))
		return
	}

	switch {
	case msg.Method == "slotNotification" && msg.Params != nil:
		v := msg.Params.Result
		c.publish(SlotNotification{Slot: v.Slot, Parent: v.Parent, Root: v.Root})
	case msg.Error != nil:
		c.logger.Warn("websocket error response",
			zap.Uint64("id", msg.ID),
			zap.Int("code", msg.Error.Code),
			zap.String("message", msg.Error.Message))
	case msg.ID == reqID && msg.Result != nil:
		c.logger.Debug("slot subscription confirmed", zap.Int64("subscription", *msg.Result))
		c.mu.Lock()
		if !c.confirmed {
			c.confirmed = true
			close(c.subscribed)
		}
		c.mu.Unlock()
	}
}

// publish delivers n to every listener, replacing an unread older slot.
func (c *WSClientImpl) publish(n SlotNotification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.latest = &n
	for _, ch := range c.listeners {
		select {
		case <-ch:
		default:
		}
		ch <- n
	}
}

type wsRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
}

// wsMessage covers subscription confirmations, errors and notifications.
type wsMessage struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id,omitempty"`
	Method  string        `json:"method,omitempty"`
	Result  *int64        `json:"result,omitempty"` // subscription ID
	Error   *wsError      `json:"error,omitempty"`
	Params  *wsSlotParams `json:"params,omitempty"`
}

type wsError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type wsSlotParams struct {
	Subscription int64       `json:"subscription"`
	Result       wsSlotValue `json:"result"`
}

type wsSlotValue struct {
	Parent int64 `json:"parent"`
	Root   int64 `json:"root"`
	Slot   int64 `json:"slot"`
}
