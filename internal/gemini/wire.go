// Package gemini wraps the two connection shapes the generation backend
// exposes: a bidirectional streaming websocket (live) used by the executor
// and the audio relay, and a unary HTTP generate call used by the planner
// and verifier.
package gemini

import "fmt"

// Wire shapes for the bidirectional connection. Field names follow the
// backend's JSON contract exactly; only the subset this engine exchanges is
// modeled.

// Content is one conversational turn.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is one fragment of a turn: text or inline binary data.
type Part struct {
	Text       string `json:"text,omitempty"`
	InlineData *Blob  `json:"inlineData,omitempty"`
}

// Blob carries base64-encoded inline data.
type Blob struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data"`
}

// GenerationConfig selects model behavior for a live connection.
type GenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

// SetupPayload is the first frame sent after connecting.
type SetupPayload struct {
	Model             string            `json:"model"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
}

// ClientContent carries a user turn and the turn-completion flag.
type ClientContent struct {
	Turns        []Content `json:"turns,omitempty"`
	TurnComplete bool      `json:"turnComplete"`
}

// RealtimeInput carries streamed media (base64 PCM audio frames).
type RealtimeInput struct {
	MediaChunks []Blob `json:"mediaChunks,omitempty"`
}

// FunctionResponse acknowledges one tool call.
type FunctionResponse struct {
	ID       string                 `json:"id,omitempty"`
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
}

// ToolResponse carries tool-call acknowledgements back to the backend.
type ToolResponse struct {
	FunctionResponses []FunctionResponse `json:"functionResponses"`
}

// clientFrame is the envelope for every outbound live frame; exactly one
// field is set per frame.
type clientFrame struct {
	Setup         *SetupPayload  `json:"setup,omitempty"`
	ClientContent *ClientContent `json:"clientContent,omitempty"`
	RealtimeInput *RealtimeInput `json:"realtimeInput,omitempty"`
	ToolResponse  *ToolResponse  `json:"toolResponse,omitempty"`
}

// ServerContent is the model's incremental output.
type ServerContent struct {
	ModelTurn    *Content `json:"modelTurn,omitempty"`
	TurnComplete bool     `json:"turnComplete,omitempty"`
	Interrupted  bool     `json:"interrupted,omitempty"`
}

// FunctionCall is one tool invocation requested by the model.
type FunctionCall struct {
	ID   string                 `json:"id,omitempty"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// ToolCall groups the function calls of one frame.
type ToolCall struct {
	FunctionCalls []FunctionCall `json:"functionCalls,omitempty"`
}

// ServerError is an error payload delivered in-band.
type ServerError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// serverFrame is the envelope for every inbound live frame.
type serverFrame struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *ServerContent `json:"serverContent,omitempty"`
	ToolCall      *ToolCall      `json:"toolCall,omitempty"`
	Error         *ServerError   `json:"error,omitempty"`
}

// EventKind discriminates translated live events.
type EventKind int

const (
	EventText EventKind = iota
	EventAudio
	EventToolCall
	EventTurnComplete
	EventError
)

// Event is the typed form of one inbound live frame, pushed into the
// client's event queue by the receive loop. This replaces single-subscriber
// callback registration: any number of turns can drain the same queue
// without re-subscribing.
type Event struct {
	Kind  EventKind
	Text  string
	Audio string // base64 PCM
	Calls []FunctionCall
	Err   error
}

func (k EventKind) String() string {
	switch k {
	case EventText:
		return "text"
	case EventAudio:
		return "audio"
	case EventToolCall:
		return "tool_call"
	case EventTurnComplete:
		return "turn_complete"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// events translates one inbound frame into zero or more Events.
func (f *serverFrame) events() []Event {
	var out []Event
	if f.ServerContent != nil {
		if mt := f.ServerContent.ModelTurn; mt != nil {
			for _, p := range mt.Parts {
				if p.Text != "" {
					out = append(out, Event{Kind: EventText, Text: p.Text})
				}
				if p.InlineData != nil && p.InlineData.Data != "" {
					out = append(out, Event{Kind: EventAudio, Audio: p.InlineData.Data})
				}
			}
		}
		if f.ServerContent.TurnComplete {
			out = append(out, Event{Kind: EventTurnComplete})
		}
	}
	if f.ToolCall != nil && len(f.ToolCall.FunctionCalls) > 0 {
		out = append(out, Event{Kind: EventToolCall, Calls: f.ToolCall.FunctionCalls})
	}
	if f.Error != nil {
		out = append(out, Event{
			Kind: EventError,
			Err:  fmt.Errorf("backend error %d: %s", f.Error.Code, f.Error.Message),
		})
	}
	return out
}
