package agents

import (
	"context"
	"fmt"
	"strings"

	"sketchd/internal/canvas"
	"sketchd/internal/decode"
	"sketchd/internal/logging"
)

// Verifier reviews a set of actions against the canvas state they produced
// and returns corrective actions. It is invoked per task when the review
// toggle is on, and once per turn for whole-diagram consistency.
type Verifier struct {
	client TextClient
	system string
}

// NewVerifier builds a verifier over a unary client.
func NewVerifier(client TextClient, systemOverride string) *Verifier {
	system := systemOverride
	if system == "" {
		system = defaultVerifierSystem
	}
	return &Verifier{client: client, system: system}
}

// VerifyActions asks the backend to review the given actions. A response
// with no parseable action array is treated as "nothing to correct", not an
// error; only transport-level failures propagate.
func (v *Verifier) VerifyActions(ctx context.Context, taskText string, acts []canvas.Action, knownShapes []canvas.Shape, bounds canvas.Bounds) ([]canvas.Action, error) {
	raw, err := v.client.CompleteWithSystem(ctx, v.system, v.buildPrompt(taskText, acts, knownShapes, bounds))
	if err != nil {
		return nil, fmt.Errorf("verifier call failed: %w", err)
	}

	// decode.Actions scans past fences and prose on its own; keep only the
	// syntactically complete entries.
	decoded := decode.Actions(raw)
	out := make([]canvas.Action, 0, len(decoded))
	for _, a := range decoded {
		if a.Complete {
			out = append(out, a)
		}
	}
	logging.Agents("verifier: %d corrective actions for %q", len(out), truncate(taskText, 60))
	return out, nil
}

func (v *Verifier) buildPrompt(taskText string, acts []canvas.Action, knownShapes []canvas.Shape, bounds canvas.Bounds) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task under review: %s\n\n", taskText)
	b.WriteString("Actions produced:\n")
	b.WriteString(renderActions(acts))
	b.WriteString("\nResulting shapes:\n")
	b.WriteString(renderShapes(knownShapes))
	b.WriteString("\n")
	b.WriteString(renderBounds(bounds))
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
