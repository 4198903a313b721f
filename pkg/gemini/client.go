// Package gemini implements the websocket transport for the Gemini Live API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fk219/webbot-voice/pkg/live"
	"github.com/fk219/webbot-voice/pkg/live/protocol"
)

const (
	defaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1alpha.GenerativeService.BidiGenerateContent"

	defaultConnectTimeout = 15 * time.Second
)

// Client dials live sessions against the Gemini Live API.
type Client struct {
	apiKey   string
	endpoint string
	dialer   *websocket.Dialer
}

// Option customizes a Client.
type Option func(*Client)

// WithEndpoint overrides the service endpoint. Useful for proxies and tests.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// NewClient returns a client authenticating with apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:   apiKey,
		endpoint: defaultEndpoint,
		dialer:   websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dialer == nil {
		c.dialer = &websocket.Dialer{}
	}
	return c
}

// Dial opens a websocket, performs the setup handshake, and returns a
// transport ready to stream. It blocks until the service acknowledges setup.
func (c *Client) Dial(ctx context.Context, setup protocol.Setup) (live.Transport, error) {
	wsURL, err := c.sessionURL()
	if err != nil {
		return nil, err
	}

	dialCtx := ctx
	var cancel context.CancelFunc
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		dialCtx, cancel = context.WithTimeout(ctx, defaultConnectTimeout)
		defer cancel()
	}

	conn, resp, err := c.dialer.DialContext(dialCtx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	if err := conn.WriteJSON(protocol.SetupMessage{Setup: setup}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send setup: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(defaultConnectTimeout))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read setup ack: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	ack, err := protocol.DecodeServerMessage(payload)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("decode setup ack: %w", err)
	}
	if ack.SetupComplete == nil {
		_ = conn.Close()
		return nil, fmt.Errorf("setup not acknowledged by service")
	}

	t := &transport{
		conn: conn,
		msgs: make(chan *protocol.ServerMessage, 256),
		done: make(chan struct{}),
		quit: make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

func (c *Client) sessionURL() (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint: %w", err)
	}
	q := u.Query()
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// transport is an established live websocket connection.
type transport struct {
	conn *websocket.Conn

	msgs chan *protocol.ServerMessage
	done chan struct{}
	quit chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool

	statusMu    sync.Mutex
	closeCode   int
	closeReason string
	err         error
}

// Send writes one realtime input message to the wire.
func (t *transport) Send(msg protocol.RealtimeInputMessage) error {
	if t.closed.Load() {
		return fmt.Errorf("transport is closed")
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteJSON(msg)
}

// Messages yields inbound server messages until the connection ends.
func (t *transport) Messages() <-chan *protocol.ServerMessage {
	return t.msgs
}

// CloseStatus reports the close frame that ended the connection, if any.
func (t *transport) CloseStatus() (int, string) {
	t.statusMu.Lock()
	defer t.statusMu.Unlock()
	return t.closeCode, t.closeReason
}

// Err returns the read error that ended the connection, or nil when it
// finished with a close frame.
func (t *transport) Err() error {
	t.statusMu.Lock()
	defer t.statusMu.Unlock()
	return t.err
}

// Close sends a close frame and tears down the connection.
func (t *transport) Close() error {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		close(t.quit)
		t.writeMu.Lock()
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(2*time.Second))
		t.writeMu.Unlock()
		_ = t.conn.Close()
	})
	<-t.done
	return nil
}

func (t *transport) readLoop() {
	defer close(t.done)
	defer close(t.msgs)

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				t.statusMu.Lock()
				t.closeCode = ce.Code
				t.closeReason = ce.Text
				t.statusMu.Unlock()
				return
			}
			if !t.closed.Load() {
				t.setErr(err)
			}
			return
		}

		msg, err := protocol.DecodeServerMessage(data)
		if err != nil {
			// Unknown frames are skipped, not fatal.
			continue
		}
		// Inbound messages carry control signals the session must not
		// miss, so delivery blocks instead of dropping. Close unblocks a
		// stalled send via quit.
		select {
		case t.msgs <- msg:
		case <-t.quit:
			return
		}
	}
}

func (t *transport) setErr(err error) {
	t.statusMu.Lock()
	defer t.statusMu.Unlock()
	if t.err == nil {
		t.err = err
	}
}
