package bridge

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"sketchd/internal/canvas"
	"sketchd/internal/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Conn wraps one client websocket with a serialized writer. The drawing
// turn and the audio relay both write to the same client, so every outbound
// frame goes through the write mutex. Conn satisfies session.Sink.
type Conn struct {
	ws *websocket.Conn

	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
}

// newConn wraps an upgraded websocket and starts the ping loop.
func newConn(ws *websocket.Conn) *Conn {
	c := &Conn{ws: ws, done: make(chan struct{})}

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	go c.pingLoop()
	return c
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				logging.BridgeDebug("ping failed: %v", err)
				return
			}
		}
	}
}

// readRaw blocks for the next client frame.
func (c *Conn) readRaw() ([]byte, error) {
	_, raw, err := c.ws.ReadMessage()
	return raw, err
}

func (c *Conn) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

// SendAction forwards one action frame to the client.
func (c *Conn) SendAction(a canvas.Action) error {
	return c.writeJSON(actionMessage(a))
}

// SendComplete signals the end of a turn.
func (c *Conn) SendComplete() error {
	return c.writeJSON(outboundMessage{Type: outboundComplete})
}

// SendError forwards an explanatory error frame. Internal failures always
// surface this way, never as a bare transport close.
func (c *Conn) SendError(msg string) error {
	return c.writeJSON(outboundMessage{Type: outboundError, Error: msg})
}

// SendAudio relays one base64 PCM chunk to the client.
func (c *Conn) SendAudio(b64 string) error {
	return c.writeJSON(outboundMessage{Type: outboundAudio, Data: b64})
}

// Close shuts the websocket down once.
func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.writeMu.Unlock()
		c.ws.Close()
	})
}
