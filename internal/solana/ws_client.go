package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

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
	// SubscribeTimeout bounds the wait for a subscription id.
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

// signatureSub is one outstanding signatureSubscribe.
type signatureSub struct {
	signature string
	ch        chan SignatureNotification
	once      sync.Once
}

func (s *signatureSub) deliver(n SignatureNotification) {
	s.once.Do(func() {
		s.ch <- n // buffered, never blocks
		close(s.ch)
	})
}

func (s *signatureSub) abandon() {
	s.once.Do(func() { close(s.ch) })
}

// WSClientImpl implements WSClient using gorilla/websocket.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig
	logger   *slog.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// subs maps subscription ID to the waiting subscriber
	subs   map[int64]*signatureSub
	subsMu sync.Mutex

	// pendingSubs maps request ID to channel waiting for subscription ID
	pendingSubs   map[uint64]chan int64
	pendingSubsMu sync.Mutex

	// done signals shutdown
	done chan struct{}
	wg   sync.WaitGroup

	// reconnecting indicates reconnection in progress
	reconnecting atomic.Bool
}

// NewWSClient creates a new WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.SubscribeTimeout == 0 {
		cfg.SubscribeTimeout = 30 * time.Second
	}

	c := &WSClientImpl{
		endpoint:    endpoint,
		config:      cfg,
		logger:      slog.Default().With("component", "solana_ws"),
		subs:        make(map[int64]*signatureSub),
		pendingSubs: make(map[uint64]chan int64),
		done:        make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	// Start reader goroutine
	c.wg.Add(1)
	go c.readLoop()

	// Start ping goroutine
	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// Compile-time interface check.
var _ WSClient = (*WSClientImpl)(nil)

// connect establishes WebSocket connection.
func (c *WSClientImpl) connect(ctx context.Context) error {
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

// SubscribeSignature subscribes to confirmation of a single signature.
func (c *WSClientImpl) SubscribeSignature(ctx context.Context, signature string) (<-chan SignatureNotification, func(), error) {
	subID, err := c.subscribe(ctx, signature)
	if err != nil {
		return nil, nil, err
	}

	sub := &signatureSub{
		signature: signature,
		ch:        make(chan SignatureNotification, 1),
	}
	c.subsMu.Lock()
	c.subs[subID] = sub
	c.subsMu.Unlock()

	cancel := func() {
		c.subsMu.Lock()
		var found bool
		for id, s := range c.subs {
			if s == sub {
				delete(c.subs, id)
				subID, found = id, true
				break
			}
		}
		c.subsMu.Unlock()
		sub.abandon()
		if found {
			c.unsubscribe(subID)
		}
	}

	return sub.ch, cancel, nil
}

// subscribe sends signatureSubscribe and waits for the subscription id.
func (c *WSClientImpl) subscribe(ctx context.Context, signature string) (int64, error) {
	if c.closed.Load() {
		return 0, fmt.Errorf("client closed")
	}

	reqID := c.requestID.Add(1)
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "signatureSubscribe",
		Params: []interface{}{
			signature,
			map[string]string{"commitment": CommitmentConfirmed},
		},
	}

	// Create channel to receive subscription ID
	confirmCh := make(chan int64, 1)
	c.pendingSubsMu.Lock()
	c.pendingSubs[reqID] = confirmCh
	c.pendingSubsMu.Unlock()

	dropPending := func() {
		c.pendingSubsMu.Lock()
		delete(c.pendingSubs, reqID)
		c.pendingSubsMu.Unlock()
	}

	if err := c.write(req); err != nil {
		dropPending()
		return 0, err
	}

	select {
	case subID, ok := <-confirmCh:
		if !ok {
			return 0, fmt.Errorf("client closed")
		}
		return subID, nil
	case <-time.After(c.config.SubscribeTimeout):
		dropPending()
		return 0, fmt.Errorf("subscription timeout after %s", c.config.SubscribeTimeout)
	case <-c.done:
		return 0, fmt.Errorf("client closed")
	case <-ctx.Done():
		dropPending()
		return 0, ctx.Err()
	}
}

// unsubscribe sends signatureUnsubscribe; failures are ignored since the
// server drops signature subscriptions after the first notification anyway.
func (c *WSClientImpl) unsubscribe(subID int64) {
	_ = c.write(wsRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  "signatureUnsubscribe",
		Params:  []interface{}{subID},
	})
}

func (c *WSClientImpl) write(req wsRequest) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write %s: %w", req.Method, err)
	}
	return nil
}

// Close closes the WebSocket connection.
func (c *WSClientImpl) Close() error {
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

	// Release all waiting subscribers
	c.subsMu.Lock()
	for id, sub := range c.subs {
		sub.abandon()
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	// Close pending subscription channels
	c.pendingSubsMu.Lock()
	for id, ch := range c.pendingSubs {
		close(ch)
		delete(c.pendingSubs, id)
	}
	c.pendingSubsMu.Unlock()

	c.wg.Wait()
	return nil
}

// readLoop reads messages from WebSocket and dispatches to subscribers.
func (c *WSClientImpl) readLoop() {
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
func (c *WSClientImpl) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		c.logger.Warn("reconnect failed", "error", err)
		return
	}

	c.resubscribeAll()
}

// resubscribeAll re-registers outstanding signatures after reconnect.
// Subscribers whose signature cannot be resubscribed are released so
// callers fall back to status polling.
func (c *WSClientImpl) resubscribeAll() {
	c.subsMu.Lock()
	old := make(map[int64]*signatureSub, len(c.subs))
	for id, sub := range c.subs {
		old[id] = sub
	}
	c.subsMu.Unlock()

	for oldID, sub := range old {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		newID, err := c.subscribe(ctx, sub.signature)
		cancel()

		c.subsMu.Lock()
		delete(c.subs, oldID)
		if err == nil {
			c.subs[newID] = sub
		}
		c.subsMu.Unlock()

		if err != nil {
			c.logger.Warn("resubscribe failed", "signature", sub.signature, "error", err)
			sub.abandon()
		}
	}
}

// handleMessage processes incoming WebSocket message.
func (c *WSClientImpl) handleMessage(message []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		c.logger.Warn("malformed message", "error", err)
		return
	}

	switch {
	case env.Method == "signatureNotification" && env.Params != nil:
		c.handleSignatureNotification(env.Params)
	case env.Error != nil:
		// Subscription will time out on the caller side
		c.logger.Warn("error response", "code", env.Error.Code, "message", env.Error.Message)
	case env.ID != 0 && env.Result != nil:
		var subID int64
		if err := json.Unmarshal(env.Result, &subID); err == nil {
			c.handleSubscribeResponse(env.ID, subID)
		}
	}
}

// handleSubscribeResponse handles subscription confirmation.
func (c *WSClientImpl) handleSubscribeResponse(reqID uint64, subID int64) {
	c.pendingSubsMu.Lock()
	ch, ok := c.pendingSubs[reqID]
	if ok {
		delete(c.pendingSubs, reqID)
	}
	c.pendingSubsMu.Unlock()

	if ok {
		select {
		case ch <- subID:
		default:
		}
	}
}

// handleSignatureNotification dispatches the one-shot notification to its subscriber.
func (c *WSClientImpl) handleSignatureNotification(params *wsNotificationParams) {
	c.subsMu.Lock()
	sub, ok := c.subs[params.Subscription]
	if ok {
		delete(c.subs, params.Subscription)
	}
	c.subsMu.Unlock()

	if !ok {
		return
	}

	n := SignatureNotification{
		Signature: sub.signature,
		Err:       params.Result.Value.Err,
	}
	if params.Result.Context != nil {
		n.Slot = params.Result.Context.Slot
	}
	sub.deliver(n)
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *WSClientImpl) pingLoop() {
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
				// Connection might be dead, reader will handle reconnect
				_ = c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// wsEnvelope covers subscription responses, errors and notifications.
type wsEnvelope struct {
	JSONRPC string                `json:"jsonrpc"`
	ID      uint64                `json:"id"`
	Method  string                `json:"method"`
	Result  json.RawMessage       `json:"result"`
	Error   *RPCError             `json:"error"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext       `json:"context"`
	Value   wsSignatureValue `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsSignatureValue struct {
	Err interface{} `json:"err"`
}
