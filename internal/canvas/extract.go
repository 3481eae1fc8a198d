package canvas

import (
	"fmt"
	"strconv"
)

// Safe, type-aware extraction from decoded JSON payload values. Model output
// is not trusted to use consistent types ("x": "100" and "x": 100 both occur
// in the wild), so every lookup goes through these instead of bare type
// assertions that panic on mismatch.

// ExtractString extracts a string representation from a payload value.
func ExtractString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// ExtractFloat64 extracts a float64 value from a payload value.
// Returns (value, true) on success, (0, false) if the type is incompatible.
func ExtractFloat64(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// ExtractBool extracts a boolean from a payload value. String forms
// ("true"/"false") are accepted because some model outputs quote booleans.
func ExtractBool(v interface{}) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		if t == "true" {
			return true, true
		}
		if t == "false" {
			return false, true
		}
		return false, false
	default:
		return false, false
	}
}

// ExtractMap extracts a nested object from a payload value.
func ExtractMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}
