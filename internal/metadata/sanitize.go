// Package metadata normalizes caller-supplied metadata into a storage-safe
// mapping of scalar values.
package metadata

import (
	"encoding/json"
	"log"
)

// Sanitize returns a copy of meta where every value is a scalar:
//   - nil values become the empty string
//   - strings, booleans, and all numeric types pass through unchanged
//   - anything else is JSON-encoded into a string; if encoding fails the
//     value is replaced with the empty string rather than dropped
//
// Keys are never dropped and the function is idempotent.
func Sanitize(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(meta))
	for key, value := range meta {
		if value == nil {
			out[key] = ""
			continue
		}
		if isScalar(value) {
			out[key] = value
			continue
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			log.Printf("metadata: cannot serialize key %q: %v", key, err)
			out[key] = ""
			continue
		}
		out[key] = string(encoded)
	}
	return out
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64,
		json.Number:
		return true
	}
	return false
}
