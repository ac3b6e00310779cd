package extraction

import (
	"encoding/json"
	"fmt"
)

// ParseResponse parses the model's free-text response into a loose
// JSON object. It first attempts a direct parse; if the response wraps the
// JSON in prose (markdown fences, explanations), it falls back to locating
// the first balanced object and parsing that. When neither works it returns
// ErrResponseNotParseable with the raw response attached for diagnostics.
func ParseResponse(response string) (map[string]any, error) {
	var direct map[string]any
	if err := json.Unmarshal([]byte(response), &direct); err == nil {
		return direct, nil
	}

	candidate, ok := firstJSONObject(response)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrResponseNotParseable, response)
	}

	var recovered map[string]any
	if err := json.Unmarshal([]byte(candidate), &recovered); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrResponseNotParseable, response)
	}

	return recovered, nil
}

// firstJSONObject finds the first balanced {...} substring in s.
// The scan is quote- and escape-aware so braces inside string values do not
// throw off the depth count.
func firstJSONObject(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}

		switch {
		case inString && c == '\\':
			escaped = true
		case c == '"':
			if start >= 0 {
				inString = !inString
			}
		case inString:
			// Ignore structure inside string values.
		case c == '{':
			if start < 0 {
				start = i
			}
			depth++
		case c == '}':
			if start >= 0 {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}

	return "", false
}
