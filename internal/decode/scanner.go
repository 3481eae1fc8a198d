// Package decode reconstructs typed canvas actions from a growing,
// possibly truncated model-output buffer. It is pure: no I/O, no logging,
// no state beyond what the caller passes in. Nothing in this package ever
// panics on malformed input; the worst case is "no actions yet".
package decode

// The scanners below iterate bytes and track string/escape state manually.
// It is safe to iterate bytes for the ASCII delimiters ({, }, [, ], ", \)
// because UTF-8 guarantees ASCII bytes never appear inside a multi-byte
// sequence.

// findArrayStart returns the index of the first '[' that occurs outside a
// string literal, or -1 when the buffer holds no array opening yet.
func findArrayStart(s string) int {
	var inString, escape bool
	for i := 0; i < len(s); i++ {
		b := s[i]
		if escape {
			escape = false
			continue
		}
		if inString {
			if b == '\\' {
				escape = true
			} else if b == '"' {
				inString = false
			}
			continue
		}
		switch b {
		case '"':
			inString = true
		case '[':
			return i
		}
	}
	return -1
}

// nextObjectStart returns the index of the first '{' at or after i that
// occurs outside a string literal, or -1.
func nextObjectStart(s string, i int) int {
	var inString, escape bool
	for ; i < len(s); i++ {
		b := s[i]
		if escape {
			escape = false
			continue
		}
		if inString {
			if b == '\\' {
				escape = true
			} else if b == '"' {
				inString = false
			}
			continue
		}
		switch b {
		case '"':
			inString = true
		case '{':
			return i
		}
	}
	return -1
}

// matchObjectEnd returns the index of the '}' closing the object that opens
// at start, or -1 when the object is still unterminated. s[start] must be '{'.
func matchObjectEnd(s string, start int) int {
	var inString, escape bool
	depth := 0
	for i := start; i < len(s); i++ {
		b := s[i]
		if escape {
			escape = false
			continue
		}
		if inString {
			if b == '\\' {
				escape = true
			} else if b == '"' {
				inString = false
			}
			continue
		}
		switch b {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 && b == '}' {
				return i
			}
			if depth < 0 {
				return -1
			}
		}
	}
	return -1
}

// FindObjects scans the input for top-level JSON object candidates and
// returns each candidate substring. It handles nested braces and string
// escaping to identify boundaries; unterminated trailing objects are not
// returned. Used by callers that need to fish a JSON object out of prose or
// code-fenced model output.
func FindObjects(s string) []string {
	var candidates []string
	i := 0
	for {
		start := nextObjectStart(s, i)
		if start < 0 {
			return candidates
		}
		end := matchObjectEnd(s, start)
		if end < 0 {
			return candidates
		}
		candidates = append(candidates, s[start:end+1])
		i = end + 1
	}
}
