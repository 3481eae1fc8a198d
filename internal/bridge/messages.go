// Package bridge owns the client-facing real-time connection: websocket
// upgrade, inbound message dispatch, the serialized outbound writer, and the
// direct audio relay to the generation backend.
package bridge

import (
	"encoding/json"

	"sketchd/internal/canvas"
)

// inboundMessage is the envelope for every client frame. Frames with an
// empty type are structured turn requests; everything else is dispatched on
// the type field.
type inboundMessage struct {
	Type string `json:"type,omitempty"`

	// audio_data
	Data string `json:"data,omitempty"`

	// structured turn request
	Messages           []clientMessage          `json:"messages,omitempty"`
	ContextItems       []canvas.ContextItem     `json:"contextItems,omitempty"`
	SelectedShapes     []map[string]interface{} `json:"selectedShapes,omitempty"`
	ViewportBounds     canvas.Bounds            `json:"viewportBounds,omitempty"`
	IsSuggesterEnabled bool                     `json:"isSuggesterEnabled,omitempty"`
	SessionID          string                   `json:"sessionId,omitempty"`
}

type clientMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	inboundAudio  = "audio_data"
	inboundCancel = "cancel"
)

// isTurnRequest reports whether the frame is a structured turn request
// rather than a typed control frame.
func (m *inboundMessage) isTurnRequest() bool {
	return m.Type == "" && len(m.Messages) > 0
}

// latestUserText returns the text of the newest user message, or the last
// message of any role when no user message is present.
func (m *inboundMessage) latestUserText() string {
	for i := len(m.Messages) - 1; i >= 0; i-- {
		if m.Messages[i].Role == "user" || m.Messages[i].Role == "" {
			return m.Messages[i].Content
		}
	}
	if len(m.Messages) > 0 {
		return m.Messages[len(m.Messages)-1].Content
	}
	return ""
}

// outboundMessage is the envelope for every server frame.
type outboundMessage struct {
	Type   string                 `json:"type"`
	Action map[string]interface{} `json:"action,omitempty"`
	Data   string                 `json:"data,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

const (
	outboundAction   = "action"
	outboundComplete = "complete"
	outboundError    = "error"
	outboundAudio    = "audio_data"
)

func actionMessage(a canvas.Action) outboundMessage {
	return outboundMessage{Type: outboundAction, Action: a.Payload()}
}

// decodeInbound parses one raw client frame. Unparseable frames yield an
// error the caller reports back instead of dropping the frame silently.
func decodeInbound(raw []byte) (inboundMessage, error) {
	var m inboundMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return inboundMessage{}, err
	}
	return m, nil
}
