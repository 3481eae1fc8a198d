package bridge

import (
	"context"
	"sync"

	"sketchd/internal/canvas"
	"sketchd/internal/decode"
	"sketchd/internal/gemini"
	"sketchd/internal/logging"
)

// liveStream is the slice of the live client the relay drives.
type liveStream interface {
	Events() <-chan gemini.Event
	SendAudio(ctx context.Context, b64 string) error
	SendToolResponses(ctx context.Context, resps []gemini.FunctionResponse) error
	Drop()
	Close() error
}

// audioRelay is the direct low-latency voice path: inbound client audio
// frames go straight to a dedicated audio-modality generation connection,
// bypassing the session controller, and everything the backend emits is
// translated back onto the same client connection. It runs concurrently
// with any in-flight drawing turn; the Conn's writer lock keeps the two
// from interleaving frames.
type audioRelay struct {
	conn    *Conn
	factory func() liveStream

	mu     sync.Mutex
	live   liveStream
	cancel context.CancelFunc
}

func newAudioRelay(conn *Conn, factory func() liveStream) *audioRelay {
	return &audioRelay{conn: conn, factory: factory}
}

// Forward relays one inbound base64 PCM chunk, establishing the audio
// connection on the first frame.
func (r *audioRelay) Forward(ctx context.Context, b64 string) error {
	r.mu.Lock()
	if r.live == nil {
		r.live = r.factory()
		rctx, cancel := context.WithCancel(context.Background())
		r.cancel = cancel
		go r.drain(rctx, r.live)
		logging.Bridge("audio relay: opened generation connection")
	}
	live := r.live
	r.mu.Unlock()
	return live.SendAudio(ctx, b64)
}

// drain translates backend events into client frames until the relay is
// closed or the event queue ends.
func (r *audioRelay) drain(ctx context.Context, live liveStream) {
	emitter := decode.NewEmitter(func(a canvas.Action) {
		if !a.Complete {
			return
		}
		if err := r.conn.SendAction(a); err != nil {
			logging.BridgeError("audio relay: client write failed: %v", err)
		}
	})

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-live.Events():
			if !ok {
				return
			}
			switch ev.Kind {
			case gemini.EventAudio:
				if err := r.conn.SendAudio(ev.Audio); err != nil {
					logging.BridgeError("audio relay: client write failed: %v", err)
					return
				}
			case gemini.EventText:
				emitter.Feed(ev.Text)
			case gemini.EventToolCall:
				r.handleToolCalls(ctx, live, ev.Calls)
			case gemini.EventTurnComplete:
				emitter.Finish()
				if err := r.conn.SendComplete(); err != nil {
					logging.BridgeError("audio relay: client write failed: %v", err)
					return
				}
			case gemini.EventError:
				// The generation connection drops and reconnects on the next
				// frame; the client stays up for the next turn.
				logging.BridgeError("audio relay: backend error: %v", ev.Err)
				r.conn.SendError(ev.Err.Error())
				live.Drop()
			}
		}
	}
}

// handleToolCalls translates backend function calls into client actions and
// acknowledges each call so the backend can continue its turn.
func (r *audioRelay) handleToolCalls(ctx context.Context, live liveStream, calls []gemini.FunctionCall) {
	resps := make([]gemini.FunctionResponse, 0, len(calls))
	for _, call := range calls {
		a, ok := translateCall(call)
		ok = ok && r.conn.SendAction(a) == nil
		result := map[string]interface{}{"success": ok}
		if !ok {
			result["error"] = "unsupported call"
		}
		resps = append(resps, gemini.FunctionResponse{
			ID:       call.ID,
			Name:     call.Name,
			Response: result,
		})
	}
	if err := live.SendToolResponses(ctx, resps); err != nil {
		logging.BridgeError("audio relay: tool response failed: %v", err)
	}
}

// translateCall maps a backend function call onto a canvas action. The call
// name doubles as the action discriminator when the arguments omit one.
func translateCall(call gemini.FunctionCall) (canvas.Action, bool) {
	payload := make(map[string]interface{}, len(call.Args)+1)
	for k, v := range call.Args {
		payload[k] = v
	}
	if _, ok := payload["_type"]; !ok {
		payload["_type"] = call.Name
	}
	a, ok := canvas.FromPayload(payload)
	if !ok || a.Kind == canvas.KindUnknown {
		logging.Bridge("audio relay: unsupported tool call %q", call.Name)
		return canvas.Action{}, false
	}
	a.Complete = true
	return a, true
}

// Close tears down the relay's generation connection, if any.
func (r *audioRelay) Close() {
	r.mu.Lock()
	live := r.live
	cancel := r.cancel
	r.live = nil
	r.cancel = nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if live != nil {
		live.Close()
		logging.Bridge("audio relay: closed generation connection")
	}
}
