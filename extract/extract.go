// Package extract recovers structured objects from free-form oracle output.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// FirstObject returns the earliest syntactically valid JSON object embedded
// in s, tolerating surrounding prose, multiple JSON-looking fragments, and
// nested braces. A fenced code block is preferred; otherwise every opening
// brace starts a depth-counted scan and the first candidate that parses wins.
// The second return is false when no candidate parses; malformed input never
// produces an error.
func FirstObject(s string) (json.RawMessage, bool) {
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		if candidate := []byte(m[1]); json.Valid(candidate) {
			return candidate, true
		}
	}

	for start := 0; start < len(s); start++ {
		if s[start] != '{' {
			continue
		}
		depth := 0
		for i := start; i < len(s); i++ {
			switch s[i] {
			case '{':
				depth++
			case '}':
				depth--
			}
			if depth == 0 {
				if candidate := []byte(s[start : i+1]); json.Valid(candidate) {
					return candidate, true
				}
				// Unbalanced-looking or invalid snippet: try the next start.
				break
			}
		}
	}
	return nil, false
}

// Truncate shortens raw oracle output to limit characters for error messages
// and logs, cutting on a rune boundary so multibyte output stays valid UTF-8.
func Truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
