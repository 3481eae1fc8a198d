package agents

import (
	"encoding/json"
	"fmt"
	"strings"

	"sketchd/internal/decode"
)

// decodeObject unmarshals a model response into v, tolerating the wrappers
// models actually produce: direct JSON, markdown code fences, and JSON
// embedded in surrounding prose. It fails only when no candidate parses.
func decodeObject(raw string, v interface{}) error {
	s := strings.TrimSpace(raw)

	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}

	if stripped := stripCodeFences(s); stripped != s {
		if err := json.Unmarshal([]byte(stripped), v); err == nil {
			return nil
		}
	}

	// Fish object candidates out of mixed content, trying the latest first
	// since models tend to restate the final answer last.
	candidates := decode.FindObjects(s)
	for i := len(candidates) - 1; i >= 0; i-- {
		if err := json.Unmarshal([]byte(candidates[i]), v); err == nil {
			return nil
		}
	}

	return fmt.Errorf("no parseable JSON object in response (%d bytes)", len(raw))
}

// stripCodeFences removes ```json ... ``` wrapping.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
