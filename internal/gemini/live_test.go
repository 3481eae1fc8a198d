package gemini

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// liveBackend is a scripted in-process stand-in for the streaming backend.
type liveBackend struct {
	t       *testing.T
	srv     *httptest.Server
	handler func(conn *websocket.Conn)
}

func newLiveBackend(t *testing.T, handler func(conn *websocket.Conn)) *liveBackend {
	b := &liveBackend{t: t, handler: handler}
	upgrader := websocket.Upgrader{}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		b.handler(conn)
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *liveBackend) wsURL() string {
	return "ws" + strings.TrimPrefix(b.srv.URL, "http")
}

// ackSetup consumes the client's setup frame and acknowledges it.
func ackSetup(t *testing.T, conn *websocket.Conn) clientFrame {
	var setup clientFrame
	require.NoError(t, conn.ReadJSON(&setup))
	require.NotNil(t, setup.Setup, "first frame must be setup")
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"setupComplete": map[string]interface{}{}}))
	return setup
}

func drainUntil(t *testing.T, events <-chan Event, stop EventKind) []Event {
	t.Helper()
	var got []Event
	for {
		select {
		case ev := <-events:
			got = append(got, ev)
			if ev.Kind == stop || ev.Kind == EventError {
				return got
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s, got %d events", stop, len(got))
		}
	}
}

func TestLiveClientStreamTurn(t *testing.T) {
	backend := newLiveBackend(t, func(conn *websocket.Conn) {
		setup := ackSetup(t, conn)
		assert.Equal(t, "models/test-live", setup.Setup.Model)
		require.NotNil(t, setup.Setup.GenerationConfig)
		assert.Equal(t, []string{"TEXT"}, setup.Setup.GenerationConfig.ResponseModalities)
		require.NotNil(t, setup.Setup.SystemInstruction)
		assert.Contains(t, setup.Setup.SystemInstruction.Parts[0].Text, "draw")

		var turn clientFrame
		require.NoError(t, conn.ReadJSON(&turn))
		require.NotNil(t, turn.ClientContent)
		assert.True(t, turn.ClientContent.TurnComplete)
		assert.Equal(t, "draw a box", turn.ClientContent.Turns[0].Parts[0].Text)

		conn.WriteJSON(serverFrame{ServerContent: &ServerContent{
			ModelTurn: &Content{Parts: []Part{{Text: `[{"_type":`}}},
		}})
		conn.WriteJSON(serverFrame{ServerContent: &ServerContent{
			ModelTurn: &Content{Parts: []Part{{Text: `"message","text":"hi"}]`}}},
		}})
		conn.WriteJSON(serverFrame{ServerContent: &ServerContent{TurnComplete: true}})
		// Hold the connection open so the client stays Ready until the test
		// finishes; returning here would close it and race the State check.
		var f clientFrame
		_ = conn.ReadJSON(&f)
	})

	c := NewLiveClient(LiveConfig{
		Endpoint:          backend.wsURL(),
		APIKey:            "k",
		Model:             "models/test-live",
		SystemInstruction: "You draw on a canvas.",
		Modalities:        []string{"TEXT"},
		ReadTimeout:       2 * time.Second,
	})
	defer c.Close()

	events, err := c.StreamTurn(context.Background(), "draw a box")
	require.NoError(t, err)

	got := drainUntil(t, events, EventTurnComplete)
	require.Len(t, got, 3)
	assert.Equal(t, EventText, got[0].Kind)
	assert.Equal(t, `[{"_type":`, got[0].Text)
	assert.Equal(t, EventText, got[1].Kind)
	assert.Equal(t, EventTurnComplete, got[2].Kind)
	assert.Equal(t, StateReady, c.State())
}

func TestLiveClientAudioAndToolCalls(t *testing.T) {
	gotToolResponse := make(chan clientFrame, 1)
	backend := newLiveBackend(t, func(conn *websocket.Conn) {
		ackSetup(t, conn)

		var audio clientFrame
		require.NoError(t, conn.ReadJSON(&audio))
		require.NotNil(t, audio.RealtimeInput)
		require.Len(t, audio.RealtimeInput.MediaChunks, 1)
		assert.Equal(t, "audio/pcm", audio.RealtimeInput.MediaChunks[0].MimeType)
		assert.Equal(t, "UENNZGF0YQ==", audio.RealtimeInput.MediaChunks[0].Data)

		conn.WriteJSON(serverFrame{ServerContent: &ServerContent{
			ModelTurn: &Content{Parts: []Part{{InlineData: &Blob{MimeType: "audio/pcm", Data: "cmVwbHk="}}}},
		}})
		conn.WriteJSON(serverFrame{ToolCall: &ToolCall{FunctionCalls: []FunctionCall{
			{ID: "c1", Name: "create_shape", Args: map[string]interface{}{"shape": map[string]interface{}{"id": "a"}}},
		}}})

		var toolResp clientFrame
		require.NoError(t, conn.ReadJSON(&toolResp))
		gotToolResponse <- toolResp
	})

	c := NewLiveClient(LiveConfig{
		Endpoint:    backend.wsURL(),
		Model:       "models/test-live",
		Modalities:  []string{"AUDIO"},
		ReadTimeout: 2 * time.Second,
	})
	defer c.Close()

	require.NoError(t, c.SendAudio(context.Background(), "UENNZGF0YQ=="))

	got := drainUntil(t, c.Events(), EventToolCall)
	require.Len(t, got, 2)
	assert.Equal(t, EventAudio, got[0].Kind)
	assert.Equal(t, "cmVwbHk=", got[0].Audio)
	require.Len(t, got[1].Calls, 1)
	assert.Equal(t, "create_shape", got[1].Calls[0].Name)

	require.NoError(t, c.SendToolResponses(context.Background(), []FunctionResponse{
		{ID: "c1", Name: "create_shape", Response: map[string]interface{}{"success": true}},
	}))

	select {
	case frame := <-gotToolResponse:
		require.NotNil(t, frame.ToolResponse)
		assert.Equal(t, "create_shape", frame.ToolResponse.FunctionResponses[0].Name)
	case <-time.After(2 * time.Second):
		t.Fatal("backend never received the tool response")
	}
}

func TestLiveClientBackendErrorSurfaces(t *testing.T) {
	backend := newLiveBackend(t, func(conn *websocket.Conn) {
		ackSetup(t, conn)
		var turn clientFrame
		require.NoError(t, conn.ReadJSON(&turn))
		conn.WriteJSON(serverFrame{Error: &ServerError{Code: 500, Message: "model overloaded"}})
	})

	c := NewLiveClient(LiveConfig{
		Endpoint:    backend.wsURL(),
		Model:       "m",
		ReadTimeout: 2 * time.Second,
	})
	defer c.Close()

	events, err := c.StreamTurn(context.Background(), "draw")
	require.NoError(t, err)

	got := drainUntil(t, events, EventError)
	last := got[len(got)-1]
	require.Equal(t, EventError, last.Kind)
	assert.Contains(t, last.Err.Error(), "model overloaded")
}

func TestLiveClientStreamTurnDiscardsAbandonedTurnEvents(t *testing.T) {
	// The first turn fails with an in-band error while the backend keeps
	// pushing leftover content. The consumer stops at the error and drops the
	// connection; a second turn must see only its own events, never the
	// leftovers still sitting in the queue.
	backend := newLiveBackend(t, func(conn *websocket.Conn) {
		ackSetup(t, conn)
		var turn clientFrame
		require.NoError(t, conn.ReadJSON(&turn))
		switch turn.ClientContent.Turns[0].Parts[0].Text {
		case "first":
			conn.WriteJSON(serverFrame{Error: &ServerError{Code: 500, Message: "model overloaded"}})
			conn.WriteJSON(serverFrame{ServerContent: &ServerContent{
				ModelTurn: &Content{Parts: []Part{{Text: `[{"_type":"message","text":"stale"}]`}}},
			}})
			conn.WriteJSON(serverFrame{ServerContent: &ServerContent{TurnComplete: true}})
			// Hold the connection open until the client drops it.
			var f clientFrame
			_ = conn.ReadJSON(&f)
		case "second":
			conn.WriteJSON(serverFrame{ServerContent: &ServerContent{
				ModelTurn: &Content{Parts: []Part{{Text: "fresh"}}},
			}})
			conn.WriteJSON(serverFrame{ServerContent: &ServerContent{TurnComplete: true}})
		}
	})

	c := NewLiveClient(LiveConfig{
		Endpoint:    backend.wsURL(),
		Model:       "m",
		ReadTimeout: 2 * time.Second,
	})
	defer c.Close()

	events, err := c.StreamTurn(context.Background(), "first")
	require.NoError(t, err)
	got := drainUntil(t, events, EventError)
	require.Equal(t, EventError, got[len(got)-1].Kind)
	c.Drop()

	// Wait until the abandoned turn's leftovers are actually queued, so the
	// next turn has something to discard.
	require.Eventually(t, func() bool { return len(c.events) >= 2 },
		2*time.Second, 10*time.Millisecond)

	events, err = c.StreamTurn(context.Background(), "second")
	require.NoError(t, err)
	got = drainUntil(t, events, EventTurnComplete)
	require.Len(t, got, 2)
	assert.Equal(t, EventText, got[0].Kind)
	assert.Equal(t, "fresh", got[0].Text)
	assert.Equal(t, EventTurnComplete, got[1].Kind)
}

func TestLiveClientSetupRejected(t *testing.T) {
	backend := newLiveBackend(t, func(conn *websocket.Conn) {
		var setup clientFrame
		require.NoError(t, conn.ReadJSON(&setup))
		conn.WriteJSON(serverFrame{Error: &ServerError{Code: 401, Message: "bad key"}})
	})

	c := NewLiveClient(LiveConfig{
		Endpoint:    backend.wsURL(),
		Model:       "m",
		ReadTimeout: 2 * time.Second,
	})
	defer c.Close()

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
	assert.Equal(t, StateDisconnected, c.State())
}

func TestLiveClientDropReconnects(t *testing.T) {
	connects := make(chan struct{}, 2)
	backend := newLiveBackend(t, func(conn *websocket.Conn) {
		connects <- struct{}{}
		ackSetup(t, conn)
		for {
			var frame clientFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
		}
	})

	c := NewLiveClient(LiveConfig{
		Endpoint:    backend.wsURL(),
		Model:       "m",
		ReadTimeout: 2 * time.Second,
	})
	defer c.Close()

	require.NoError(t, c.SendTurn(context.Background(), "first", false))
	c.Drop()
	assert.Equal(t, StateDisconnected, c.State())

	require.NoError(t, c.SendTurn(context.Background(), "second", false))
	assert.Len(t, connects, 2)
}

func TestLiveClientClosedRejectsUse(t *testing.T) {
	c := NewLiveClient(LiveConfig{Endpoint: "ws://unused", Model: "m"})
	require.NoError(t, c.Close())
	err := c.SendTurn(context.Background(), "x", true)
	assert.Error(t, err)
}
