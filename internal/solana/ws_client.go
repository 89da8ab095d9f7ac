package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClientClosed is returned by operations on a closed WebSocket client.
var ErrClientClosed = errors.New("websocket client closed")

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the exponential reconnect backoff.
	MaxReconnectDelay time.Duration
	// PingInterval is how often keepalive ping frames are sent.
	PingInterval time.Duration
	// ReadTimeout bounds a single read; a stalled connection trips reconnect.
	ReadTimeout time.Duration
	// WriteTimeout bounds a single write.
	WriteTimeout time.Duration
	// SubscribeTimeout bounds the wait for a subscription confirmation.
	SubscribeTimeout time.Duration
}

// DefaultWSConfig returns the production WebSocket configuration. Reconnect
// backoff starts at 10s and is capped at 5 minutes; actual waits get jitter.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    10 * time.Second,
		MaxReconnectDelay: 5 * time.Minute,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
	}
}

// subscription is the bookkeeping for one live logsSubscribe stream. The
// filter is kept so the stream can be re-established after a reconnect
// without the subscriber noticing.
type subscription struct {
	filter LogsFilter
	ch     chan LogNotification
}

// WSClientImpl implements WSClient using gorilla/websocket. It owns the
// connection lifecycle: keepalive pings, read-timeout detection, reconnect
// with jittered exponential backoff, and transparent resubscription.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig
	logger   *log.Logger

	connMu sync.Mutex
	conn   *websocket.Conn

	closed       atomic.Bool
	reconnecting atomic.Bool
	requestID    atomic.Uint64

	// counters backing the diagnostics surface
	messagesSeen  atomic.Int64
	reconnects    atomic.Int64
	lastMessageMs atomic.Int64

	subsMu sync.RWMutex
	subs   map[int64]*subscription // keyed by server-assigned subscription ID

	awaitMu  sync.Mutex
	awaiting map[uint64]chan int64 // request ID -> confirmation channel

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWSClient connects to the endpoint and starts the reader and keepalive
// loops. A nil config uses DefaultWSConfig.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	c := &WSClientImpl{
		endpoint: endpoint,
		config:   cfg,
		logger:   log.New(log.Writer(), "[ws] ", log.LstdFlags),
		subs:     make(map[int64]*subscription),
		awaiting: make(map[uint64]chan int64),
		done:     make(chan struct{}),
	}

	if err := c.dial(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

// dial establishes the WebSocket connection.
func (c *WSClientImpl) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	return nil
}

// SubscribeLogs opens a logsSubscribe stream for the filter. The returned
// channel survives reconnects and is closed only when the client closes.
func (c *WSClientImpl) SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error) {
	subID, err := c.requestSubscription(ctx, filter)
	if err != nil {
		return nil, err
	}

	// Large buffer so a burst of pool births never forces a drop; the
	// dispatch path blocks rather than losing events.
	sub := &subscription{filter: filter, ch: make(chan LogNotification, 10000)}
	c.subsMu.Lock()
	c.subs[subID] = sub
	c.subsMu.Unlock()

	return sub.ch, nil
}

// requestSubscription sends a logsSubscribe request and waits for the
// server-assigned subscription ID.
func (c *WSClientImpl) requestSubscription(ctx context.Context, filter LogsFilter) (int64, error) {
	if c.closed.Load() {
		return 0, ErrClientClosed
	}

	reqID := c.requestID.Add(1)

	confirm := make(chan int64, 1)
	c.awaitMu.Lock()
	c.awaiting[reqID] = confirm
	c.awaitMu.Unlock()
	forget := func() {
		c.awaitMu.Lock()
		delete(c.awaiting, reqID)
		c.awaitMu.Unlock()
	}

	if err := c.writeJSON(subscribeRequest(reqID, filter)); err != nil {
		forget()
		return 0, err
	}

	select {
	case subID := <-confirm:
		return subID, nil
	case <-time.After(c.config.SubscribeTimeout):
		forget()
		return 0, fmt.Errorf("subscription confirmation timeout after %s", c.config.SubscribeTimeout)
	case <-c.done:
		return 0, ErrClientClosed
	case <-ctx.Done():
		forget()
		return 0, ctx.Err()
	}
}

// subscribeRequest builds the logsSubscribe JSON-RPC payload. An empty
// mentions list subscribes to all logs.
func subscribeRequest(reqID uint64, filter LogsFilter) wsRequest {
	criteria := make(map[string]interface{})
	if len(filter.Mentions) > 0 {
		criteria["mentions"] = filter.Mentions
	} else {
		criteria["all"] = nil
	}

	return wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "logsSubscribe",
		Params: []interface{}{
			criteria,
			map[string]string{"commitment": "confirmed"},
		},
	}
}

// writeJSON sends one frame under the connection lock.
func (c *WSClientImpl) writeJSON(v interface{}) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return errors.New("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

// Close shuts the connection down and closes every subscriber channel.
func (c *WSClientImpl) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.subsMu.Lock()
	for id, sub := range c.subs {
		close(sub.ch)
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	c.awaitMu.Lock()
	for id, ch := range c.awaiting {
		close(ch)
		delete(c.awaiting, id)
	}
	c.awaitMu.Unlock()

	c.wg.Wait()
	return nil
}

// Stats reports connection-level counters for the diagnostics surface.
func (c *WSClientImpl) Stats() (messagesSeen, reconnects, lastMessageMs int64) {
	return c.messagesSeen.Load(), c.reconnects.Load(), c.lastMessageMs.Load()
}

// readLoop reads frames and dispatches them. A read error drops the
// connection and hands recovery to the reconnect loop, which owns the
// backoff and keeps redialing until the endpoint answers.
func (c *WSClientImpl) readLoop() {
	defer c.wg.Done()

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			if c.sleep(100 * time.Millisecond) {
				return
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.dropConn(conn)
			if !c.reconnecting.Swap(true) {
				go c.reconnect()
			}
			continue
		}

		c.dispatch(frame)
	}
}

// dropConn clears the connection if it is still the current one, so
// writers fail fast while the redial loop runs.
func (c *WSClientImpl) dropConn(conn *websocket.Conn) {
	c.connMu.Lock()
	if c.conn == conn {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()
}

// sleep waits for d or shutdown; reports true when the client is closing.
func (c *WSClientImpl) sleep(d time.Duration) bool {
	select {
	case <-c.done:
		return true
	case <-time.After(d):
		return false
	}
}

// reconnect redials with jittered exponential backoff until the endpoint
// answers or the client closes, then re-establishes every stream. A dead
// connection is never terminal: once the cap is reached the loop keeps
// trying at the capped delay.
func (c *WSClientImpl) reconnect() {
	defer c.reconnecting.Store(false)

	delay := c.config.ReconnectDelay
	for !c.closed.Load() {
		// Jitter so a fleet of subscribers does not stampede the
		// provider after an outage.
		wait := delay
		if j := int64(delay / 4); j > 0 {
			wait += time.Duration(rand.Int63n(j))
		}
		if c.sleep(wait) {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := c.dial(ctx)
		cancel()
		if err != nil {
			c.logger.Printf("reconnect failed, retrying in %s: %v", delay, err)
			delay *= 2
			if delay > c.config.MaxReconnectDelay {
				delay = c.config.MaxReconnectDelay
			}
			continue
		}

		c.reconnects.Add(1)
		c.resubscribeAll()
		return
	}
}

// resubscribeAll re-requests every live subscription on the new connection
// and rebinds the existing channels to the new subscription IDs.
func (c *WSClientImpl) resubscribeAll() {
	c.subsMu.RLock()
	current := make(map[int64]*subscription, len(c.subs))
	for id, sub := range c.subs {
		current[id] = sub
	}
	c.subsMu.RUnlock()

	for oldID, sub := range current {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		newID, err := c.requestSubscription(ctx, sub.filter)
		cancel()
		if err != nil {
			c.logger.Printf("resubscribe failed, keeping old mapping: %v", err)
			continue
		}

		c.subsMu.Lock()
		delete(c.subs, oldID)
		c.subs[newID] = sub
		c.subsMu.Unlock()
	}
}

// dispatch routes one incoming frame: confirmation, notification, or error.
func (c *WSClientImpl) dispatch(frame []byte) {
	c.messagesSeen.Add(1)
	c.lastMessageMs.Store(time.Now().UnixMilli())

	var env wsEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return
	}

	switch {
	case env.Result > 0:
		c.confirmSubscription(env.ID, env.Result)
	case env.Method == "logsNotification" && env.Params != nil:
		c.deliver(env.Params)
	case env.Error != nil:
		// The awaiting subscribe call times out on its own.
		c.logger.Printf("error response: code=%d msg=%s", env.Error.Code, env.Error.Message)
	}
}

// confirmSubscription hands the server-assigned ID to the awaiting caller.
func (c *WSClientImpl) confirmSubscription(reqID uint64, subID int64) {
	c.awaitMu.Lock()
	ch, ok := c.awaiting[reqID]
	if ok {
		delete(c.awaiting, reqID)
	}
	c.awaitMu.Unlock()

	if ok {
		select {
		case ch <- subID:
		default:
		}
	}
}

// deliver pushes a log notification to its subscriber. The send blocks so
// no event is ever dropped; the channel buffer absorbs bursts.
func (c *WSClientImpl) deliver(params *wsNotificationParams) {
	notif := LogNotification{
		Signature: params.Result.Value.Signature,
		Logs:      params.Result.Value.Logs,
		Err:       params.Result.Value.Err,
	}
	if params.Result.Context != nil {
		notif.Slot = params.Result.Context.Slot
	}

	c.subsMu.RLock()
	sub, ok := c.subs[params.Subscription]
	c.subsMu.RUnlock()
	if !ok {
		return
	}

	select {
	case sub.ch <- notif:
	case <-c.done:
	}
}

// pingLoop sends keepalive frames so idle connections are not reaped by
// intermediaries.
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
				// A failed ping surfaces as a read error; the reader
				// owns reconnect.
				c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}

// Wire types.

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// wsEnvelope covers the three frame shapes the server sends: subscription
// confirmations (ID+Result), notifications (Method+Params), and errors.
type wsEnvelope struct {
	JSONRPC string                `json:"jsonrpc"`
	ID      uint64                `json:"id"`
	Result  int64                 `json:"result"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
	Error   *wsError              `json:"error"`
}

type wsError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext  `json:"context"`
	Value   wsLogsValue `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsLogsValue struct {
	Signature string      `json:"signature"`
	Logs      []string    `json:"logs"`
	Err       interface{} `json:"err"`
}
