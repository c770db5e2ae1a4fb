package llm

import (
	"encoding/json"
	"fmt"
)

// ExtractJSONObject returns the first valid top-level JSON object embedded
// in text. Oracle responses are instructed to be a bare JSON object, but
// models sometimes wrap the answer in code fences or surrounding prose;
// this scans for balanced braces outside string literals and unmarshals
// the first candidate that parses.
func ExtractJSONObject(text string) (map[string]any, error) {
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			if depth > 0 {
				inString = !inString
			}
		case '{':
			if !inString {
				if depth == 0 {
					start = i
				}
				depth++
			}
		case '}':
			if !inString && depth > 0 {
				depth--
				if depth == 0 {
					candidate := text[start : i+1]
					var obj map[string]any
					if err := json.Unmarshal([]byte(candidate), &obj); err == nil {
						return obj, nil
					}
					// Not valid JSON; keep scanning past this candidate.
					inString = false
				}
			}
		}
	}

	return nil, fmt.Errorf("no valid JSON object found in response")
}
