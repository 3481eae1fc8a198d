package agents

import (
	"encoding/json"
	"fmt"
	"strings"

	"sketchd/internal/canvas"
)

// Built-in role instruction preambles. Deployments override these via
// config; the engine only depends on the response shapes described below,
// and even those are parsed defensively.

const defaultPlannerSystem = `You plan drawing work on a shared canvas.
Given the conversation and the current canvas context, respond with a JSON
object: {"message": <one-line summary for the user>, "todos": [{"id": <id or
empty>, "text": <one concrete drawing step>, "status": "todo"}]}.
Return the full task list, keeping items that are already done. If the
request needs no canvas changes, omit the "todos" field.`

const defaultExecutorSystem = `You draw on a shared canvas by emitting
actions. Respond with a JSON array of action objects, each with a "_type"
field: create (with "shape": {id,type,x,y,...}), update (with "id" and
"patch"), move (with "id","x","y"), delete (with "id"), connect (with
"from","to"), or message (with "text"). Emit only the array.`

const defaultVerifierSystem = `You review actions applied to a shared
canvas. Check the produced actions against the task and the resulting
shapes: dangling references, overlapping shapes, missing pieces. Respond
with a JSON array of corrective action objects (same schema the drawing
role uses). Respond with [] when nothing needs fixing.`

// renderShapes serializes known shapes for prompt grounding.
func renderShapes(shapes []canvas.Shape) string {
	if len(shapes) == 0 {
		return "(canvas is empty)"
	}
	var b strings.Builder
	for _, s := range shapes {
		raw, err := json.Marshal(s.Payload())
		if err != nil {
			continue
		}
		b.Write(raw)
		b.WriteByte('\n')
	}
	return b.String()
}

// renderActions serializes already-produced actions for the review pass.
func renderActions(acts []canvas.Action) string {
	if len(acts) == 0 {
		return "(no actions)"
	}
	var b strings.Builder
	for _, a := range acts {
		raw, err := json.Marshal(a.Raw)
		if err != nil {
			continue
		}
		b.Write(raw)
		b.WriteByte('\n')
	}
	return b.String()
}

func renderBounds(b canvas.Bounds) string {
	return fmt.Sprintf("Viewport: %s", b.String())
}
