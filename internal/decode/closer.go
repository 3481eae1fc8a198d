package decode

import "encoding/json"

// CloseAndParse lets a caller peek at a confidently-valid partial JSON
// object without waiting for the stream to finish. It tracks every still-open
// {, [ and " token in buf, appends the matching closers needed to make the
// buffer syntactically valid, attempts a parse, and throws the temporary
// closers away. The input is never modified, so repeated calls on the same
// buffer yield the same result.
//
// A dangling "key": is completed with a zero placeholder so the surrounding
// object still parses; a value cut off mid-token (e.g. `tru`) cannot be
// repaired by appending closers and reports ok=false.
func CloseAndParse(buf string) (map[string]interface{}, bool) {
	closed, ok := closeJSON(buf)
	if !ok {
		return nil, false
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(closed), &m); err != nil {
		return nil, false
	}
	return m, true
}

// closeJSON returns a syntactically closed copy of buf. ok is false when buf
// contains no JSON opening at all.
func closeJSON(buf string) (string, bool) {
	var (
		stack        []byte
		inString     bool
		escape       bool
		stringIsKey  bool
		pendingColon bool
		lastSig      byte
		lastSigIdx   = -1
	)

	for i := 0; i < len(buf); i++ {
		b := buf[i]
		if escape {
			escape = false
			continue
		}
		if inString {
			if b == '\\' {
				escape = true
			} else if b == '"' {
				inString = false
				if stringIsKey {
					pendingColon = true
				}
				lastSig, lastSigIdx = '"', i
			}
			continue
		}
		switch b {
		case ' ', '\t', '\n', '\r':
		case '"':
			inString = true
			stringIsKey = len(stack) > 0 && stack[len(stack)-1] == '{' &&
				(lastSig == '{' || lastSig == ',')
		case ':':
			pendingColon = false
			lastSig, lastSigIdx = b, i
		case '{', '[':
			stack = append(stack, b)
			lastSig, lastSigIdx = b, i
		case '}':
			if len(stack) > 0 && stack[len(stack)-1] == '{' {
				stack = stack[:len(stack)-1]
			}
			lastSig, lastSigIdx = b, i
		case ']':
			if len(stack) > 0 && stack[len(stack)-1] == '[' {
				stack = stack[:len(stack)-1]
			}
			lastSig, lastSigIdx = b, i
		default:
			lastSig, lastSigIdx = b, i
		}
	}

	if len(stack) == 0 && !inString {
		if lastSigIdx < 0 {
			return "", false
		}
		return buf, true
	}

	out := buf
	if !inString && lastSig == ',' && lastSigIdx >= 0 {
		// A trailing comma cannot be closed over; work on a copy with the
		// comma elided.
		out = buf[:lastSigIdx]
	}

	suffix := make([]byte, 0, len(stack)+4)
	if inString {
		if escape {
			suffix = append(suffix, '\\')
		}
		suffix = append(suffix, '"')
		if stringIsKey {
			suffix = append(suffix, ':', '0')
		}
	} else {
		if lastSig == ':' {
			suffix = append(suffix, '0')
		} else if pendingColon {
			suffix = append(suffix, ':', '0')
		}
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			suffix = append(suffix, '}')
		} else {
			suffix = append(suffix, ']')
		}
	}
	return out + string(suffix), true
}
