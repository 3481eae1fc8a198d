package agents

import (
	"context"
	"fmt"
	"strings"

	"sketchd/internal/canvas"
	"sketchd/internal/decode"
	"sketchd/internal/gemini"
	"sketchd/internal/logging"
)

// TurnStreamer is the streaming mode of the generation backend: send one
// turn, drain typed events until turn-complete. Satisfied by
// *gemini.LiveClient, which connects lazily with the executor's instruction
// preamble on first use.
type TurnStreamer interface {
	StreamTurn(ctx context.Context, prompt string) (<-chan gemini.Event, error)
	// Drop discards the underlying connection after a protocol error so the
	// next task reconnects fresh.
	Drop()
}

// Executor turns one task into a live stream of canvas actions by running
// the backend's token stream through the partial-stream decoder's emission
// policy.
type Executor struct {
	stream TurnStreamer
	// forcePrefix, when configured, is quoted to the model to bias the
	// response toward the expected array shape. The decoder never assumes
	// the prefix is actually present.
	forcePrefix string
}

// NewExecutor builds an executor over a streaming client.
func NewExecutor(stream TurnStreamer, forcePrefix string) *Executor {
	return &Executor{stream: stream, forcePrefix: forcePrefix}
}

// ExecuteTask streams the actions for one task. The action channel is
// closed when the turn completes; a terminal failure is delivered on the
// error channel after the action channel closes. Actions already finalized
// before a failure are never retracted.
func (e *Executor) ExecuteTask(ctx context.Context, text string, knownShapes []canvas.Shape, bounds canvas.Bounds) (<-chan canvas.Action, <-chan error) {
	out := make(chan canvas.Action, 32)
	errc := make(chan error, 1)

	go func() {
		defer close(errc)
		defer close(out)

		events, err := e.stream.StreamTurn(ctx, e.buildPrompt(text, knownShapes, bounds))
		if err != nil {
			errc <- fmt.Errorf("executor turn failed: %w", err)
			return
		}

		emitter := decode.NewEmitter(func(a canvas.Action) {
			logging.Decode("emit %s complete=%v ref=%s", a.Kind, a.Complete, a.Ref())
			select {
			case out <- a:
			case <-ctx.Done():
			}
		})

		for {
			select {
			case <-ctx.Done():
				e.stream.Drop()
				errc <- ctx.Err()
				return
			case ev, ok := <-events:
				if !ok {
					emitter.Finish()
					return
				}
				switch ev.Kind {
				case gemini.EventText:
					emitter.Feed(ev.Text)
				case gemini.EventTurnComplete:
					emitter.Finish()
					logging.Agents("executor: task done, %d actions, %d bytes",
						emitter.Emitted(), len(emitter.Buffer()))
					return
				case gemini.EventError:
					// In-band error frames leave the transport readable, so
					// the connection must be discarded here; the next task
					// reconnects fresh. The controller decides what to
					// surface.
					e.stream.Drop()
					errc <- ev.Err
					return
				default:
					logging.AgentsError("executor: unexpected %s event on drawing stream", ev.Kind)
				}
			}
		}
	}()

	return out, errc
}

func (e *Executor) buildPrompt(text string, knownShapes []canvas.Shape, bounds canvas.Bounds) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n\n", text)
	b.WriteString("Known shapes:\n")
	b.WriteString(renderShapes(knownShapes))
	b.WriteString("\n")
	b.WriteString(renderBounds(bounds))
	if e.forcePrefix != "" {
		fmt.Fprintf(&b, "\n\nBegin your response with: %s", e.forcePrefix)
	}
	return b.String()
}

// ExecutorSystem returns the instruction preamble a live connection serving
// this role should be configured with.
func ExecutorSystem(override string) string {
	if override != "" {
		return override
	}
	return defaultExecutorSystem
}
