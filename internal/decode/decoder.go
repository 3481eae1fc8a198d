package decode

import (
	"encoding/json"

	"sketchd/internal/canvas"
)

// Actions reconstructs the ordered action list currently parseable from the
// full accumulated model output (not just the newest delta).
//
// Every returned action except possibly the last is syntactically complete
// (Complete=true). When the buffer ends inside a still-open object, that
// object is recovered via CloseAndParse and returned last with
// Complete=false, so callers can preview the action being written.
//
// Malformed closed objects are skipped by advancing the scan past the
// offending opening brace; the scan position strictly increases, so the
// decoder always makes forward progress and never errors on any prefix.
func Actions(buf string) []canvas.Action {
	arr := findArrayStart(buf)
	if arr < 0 {
		return nil
	}

	var out []canvas.Action
	i := arr + 1
	for i < len(buf) {
		start := nextObjectStart(buf, i)
		if start < 0 {
			return out
		}
		end := matchObjectEnd(buf, start)
		if end < 0 {
			// Trailing object still being streamed: peek at it by
			// temporarily closing its open tokens.
			if m, ok := CloseAndParse(buf[start:]); ok {
				if a, valid := canvas.FromPayload(m); valid {
					a.Complete = false
					out = append(out, a)
				}
			}
			return out
		}

		var m map[string]interface{}
		if err := json.Unmarshal([]byte(buf[start:end+1]), &m); err != nil {
			// Brace miscount or stray garbage: skip past the opening brace
			// and keep scanning rather than aborting the whole pass.
			i = start + 1
			continue
		}
		if a, valid := canvas.FromPayload(m); valid {
			a.Complete = true
			out = append(out, a)
		}
		i = end + 1
	}
	return out
}
