package gemini

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"sketchd/internal/logging"
)

// ConnState tracks one live connection's lifecycle.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateReady
	StateStreaming
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// LiveConfig configures one bidirectional connection.
type LiveConfig struct {
	Endpoint          string
	APIKey            string
	Model             string
	SystemInstruction string
	Modalities        []string // e.g. ["TEXT"] or ["AUDIO"]
	// ReadTimeout bounds silence from the backend; exceeding it is treated
	// as a connection error, never a silent hang.
	ReadTimeout time.Duration
	// Dialer overrides the default websocket dialer (tests).
	Dialer *websocket.Dialer
}

// LiveClient owns one streaming connection to the generation backend. The
// connection is established lazily on first use and reused across turns; on
// any protocol error it is dropped, and the next call reconnects.
//
// Inbound frames are translated into typed Events and pushed onto a single
// buffered queue that consumers drain via Events(); there is no callback
// registration and therefore no single-subscriber hazard.
type LiveClient struct {
	cfg LiveConfig

	mu    sync.Mutex // guards conn and state
	conn  *websocket.Conn
	state ConnState

	writeMu sync.Mutex // serializes frame writes

	events chan Event
	done   chan struct{}
	closed bool
}

// NewLiveClient builds a client; no connection is made until first use.
func NewLiveClient(cfg LiveConfig) *LiveClient {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 45 * time.Second
	}
	return &LiveClient{
		cfg:    cfg,
		state:  StateDisconnected,
		events: make(chan Event, 256),
		done:   make(chan struct{}),
	}
}

// Events returns the queue of translated inbound events. The queue persists
// across reconnects; connection errors surface as EventError entries.
// Leftovers from a turn abandoned mid-stream are discarded by the next
// StreamTurn, not here.
func (c *LiveClient) Events() <-chan Event {
	return c.events
}

// State reports the current connection state.
func (c *LiveClient) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect establishes the connection now instead of lazily.
func (c *LiveClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureConnectedLocked(ctx)
}

func (c *LiveClient) ensureConnectedLocked(ctx context.Context) error {
	if c.closed {
		return fmt.Errorf("live client is closed")
	}
	if c.conn != nil {
		return nil
	}

	c.state = StateConnecting
	dialer := c.cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	url := c.cfg.Endpoint
	if c.cfg.APIKey != "" {
		url = fmt.Sprintf("%s?key=%s", c.cfg.Endpoint, c.cfg.APIKey)
	}

	logging.Gen("live: connecting model=%s modalities=%v", c.cfg.Model, c.cfg.Modalities)
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		c.state = StateDisconnected
		return fmt.Errorf("live dial failed: %w", err)
	}

	setup := clientFrame{Setup: &SetupPayload{
		Model: c.cfg.Model,
		GenerationConfig: &GenerationConfig{
			ResponseModalities: c.cfg.Modalities,
		},
	}}
	if c.cfg.SystemInstruction != "" {
		setup.Setup.SystemInstruction = &Content{
			Parts: []Part{{Text: c.cfg.SystemInstruction}},
		}
	}
	if err := conn.WriteJSON(setup); err != nil {
		_ = conn.Close()
		c.state = StateDisconnected
		return fmt.Errorf("live setup write failed: %w", err)
	}

	// Handshake: the backend acks setup before any content flows.
	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	var ack serverFrame
	if err := conn.ReadJSON(&ack); err != nil {
		_ = conn.Close()
		c.state = StateDisconnected
		return fmt.Errorf("live setup ack failed: %w", err)
	}
	if ack.SetupComplete == nil {
		// Some backends fold an error into the first frame.
		if ack.Error != nil {
			_ = conn.Close()
			c.state = StateDisconnected
			return fmt.Errorf("live setup rejected: %s", ack.Error.Message)
		}
		// Unexpected but not fatal: treat the frame as regular traffic.
		for _, e := range ack.events() {
			c.push(e)
		}
	}

	c.conn = conn
	c.state = StateReady
	go c.readLoop(conn)
	logging.Gen("live: connected model=%s", c.cfg.Model)
	return nil
}

// readLoop drains one connection, translating frames into events. It exits
// when the connection dies; the next send reconnects lazily.
func (c *LiveClient) readLoop(conn *websocket.Conn) {
	for {
		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		var frame serverFrame
		if err := conn.ReadJSON(&frame); err != nil {
			c.mu.Lock()
			deliberate := c.closed || c.conn != conn
			if c.conn == conn {
				c.conn = nil
				if !c.closed {
					c.state = StateDisconnected
				}
			}
			c.mu.Unlock()
			if !deliberate {
				logging.GenError("live: read failed: %v", err)
				c.push(Event{Kind: EventError, Err: fmt.Errorf("live read failed: %w", err)})
			}
			return
		}

		events := frame.events()
		for _, e := range events {
			if e.Kind == EventTurnComplete {
				c.mu.Lock()
				if c.conn == conn {
					c.state = StateReady
				}
				c.mu.Unlock()
			}
			c.push(e)
		}
	}
}

func (c *LiveClient) push(e Event) {
	select {
	case c.events <- e:
	case <-c.done:
	}
}

func (c *LiveClient) write(ctx context.Context, frame clientFrame) error {
	c.mu.Lock()
	if err := c.ensureConnectedLocked(ctx); err != nil {
		c.mu.Unlock()
		return err
	}
	conn := c.conn
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(frame); err != nil {
		c.Drop()
		return fmt.Errorf("live write failed: %w", err)
	}
	return nil
}

// SendTurn sends one user turn. With turnComplete set, the backend starts
// generating and the client is streaming until the matching turn-complete
// event arrives.
func (c *LiveClient) SendTurn(ctx context.Context, text string, turnComplete bool) error {
	err := c.write(ctx, clientFrame{ClientContent: &ClientContent{
		Turns:        []Content{{Role: "user", Parts: []Part{{Text: text}}}},
		TurnComplete: turnComplete,
	}})
	if err != nil {
		return err
	}
	c.mu.Lock()
	if turnComplete && c.state == StateReady {
		c.state = StateStreaming
	}
	c.mu.Unlock()
	return nil
}

// StreamTurn sends a turn and hands back the event queue for draining until
// EventTurnComplete or EventError. Events still queued from an earlier turn
// that ended early (error or cancellation) are discarded first, so the new
// turn only ever observes its own stream.
func (c *LiveClient) StreamTurn(ctx context.Context, text string) (<-chan Event, error) {
	c.flushEvents()
	if err := c.SendTurn(ctx, text, true); err != nil {
		return nil, err
	}
	return c.events, nil
}

// flushEvents drains whatever is queued without blocking. Callers drop the
// connection before abandoning a turn, so nothing new is in flight when a
// fresh turn flushes.
func (c *LiveClient) flushEvents() {
	for {
		select {
		case <-c.events:
		default:
			return
		}
	}
}

// SendAudio relays one base64 PCM frame verbatim.
func (c *LiveClient) SendAudio(ctx context.Context, b64 string) error {
	return c.write(ctx, clientFrame{RealtimeInput: &RealtimeInput{
		MediaChunks: []Blob{{MimeType: "audio/pcm", Data: b64}},
	}})
}

// SendToolResponses acknowledges tool calls back to the backend.
func (c *LiveClient) SendToolResponses(ctx context.Context, resps []FunctionResponse) error {
	if len(resps) == 0 {
		return nil
	}
	return c.write(ctx, clientFrame{ToolResponse: &ToolResponse{FunctionResponses: resps}})
}

// Drop discards the current connection without closing the client; the next
// call reconnects. Used by callers recovering from a protocol error.
func (c *LiveClient) Drop() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	if !c.closed {
		c.state = StateDisconnected
	}
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// Close tears the client down permanently.
func (c *LiveClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state = StateClosed
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	close(c.done)
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		return conn.Close()
	}
	return nil
}
