// Package canvas defines the shared drawing vocabulary: shapes, viewport
// bounds, opaque context items, and the typed actions that mutate a canvas.
// This package exists to break import cycles between decode, agents, session,
// and bridge. Types here are foundational value data with no I/O.
package canvas

import (
	"encoding/json"
	"fmt"
)

// Shape is the engine-side view of one canvas shape. Only the fields the
// orchestration loop reasons about are lifted out; everything else the model
// emitted is preserved verbatim in Props so it round-trips to the client.
type Shape struct {
	ID    string                 `json:"id"`
	Type  string                 `json:"type,omitempty"`
	X     float64                `json:"x"`
	Y     float64                `json:"y"`
	Props map[string]interface{} `json:"props,omitempty"`
}

// ShapeFromPayload lifts a decoded JSON object into a Shape. Unrecognized
// keys are kept in Props.
func ShapeFromPayload(m map[string]interface{}) Shape {
	s := Shape{
		ID:   ExtractString(m["id"]),
		Type: ExtractString(m["type"]),
	}
	if x, ok := ExtractFloat64(m["x"]); ok {
		s.X = x
	}
	if y, ok := ExtractFloat64(m["y"]); ok {
		s.Y = y
	}
	for k, v := range m {
		switch k {
		case "id", "type", "x", "y":
		default:
			if s.Props == nil {
				s.Props = make(map[string]interface{})
			}
			s.Props[k] = v
		}
	}
	return s
}

// Payload converts a Shape back into the wire representation the client and
// the generation backend both speak.
func (s Shape) Payload() map[string]interface{} {
	m := make(map[string]interface{}, len(s.Props)+4)
	for k, v := range s.Props {
		m[k] = v
	}
	m["id"] = s.ID
	if s.Type != "" {
		m["type"] = s.Type
	}
	m["x"] = s.X
	m["y"] = s.Y
	return m
}

// Bounds is a viewport rectangle in canvas coordinates.
type Bounds struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// String renders bounds the way prompts reference them.
func (b Bounds) String() string {
	return fmt.Sprintf("x=%.0f y=%.0f w=%.0f h=%.0f", b.X, b.Y, b.W, b.H)
}

// ContextItem is an opaque, externally supplied shape/area/point reference
// passed through to the role agents as grounding. The engine never mutates
// one; it only deduplicates before merging into a prompt.
type ContextItem map[string]interface{}

// identity returns the key used for deduplication: the item's id when it has
// one, otherwise its canonical JSON rendering.
func (ci ContextItem) identity() string {
	if id := ExtractString(ci["id"]); id != "" {
		return id
	}
	raw, err := json.Marshal(ci)
	if err != nil {
		return fmt.Sprintf("%v", map[string]interface{}(ci))
	}
	return string(raw)
}

// DedupeContextItems returns items with duplicates (by identity) removed,
// preserving first-seen order. The input slice is not modified.
func DedupeContextItems(items []ContextItem) []ContextItem {
	if len(items) < 2 {
		return items
	}
	seen := make(map[string]bool, len(items))
	out := make([]ContextItem, 0, len(items))
	for _, it := range items {
		key := it.identity()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
	}
	return out
}
