package llm

import (
	"encoding/json"
	"strings"
)

// ExtractJSON tries to extract a JSON document from a response that might
// have prose or markdown fences around it. Candidate object and array
// slices are validated; the earliest valid structure wins. When nothing
// parses the input is returned unchanged so the caller's unmarshal error
// carries the raw text.
func ExtractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	if json.Valid([]byte(trimmed)) {
		return trimmed
	}

	best := -1
	result := text

	for _, brackets := range []struct{ open, close string }{
		{"{", "}"},
		{"[", "]"},
	} {
		start := strings.Index(text, brackets.open)
		end := strings.LastIndex(text, brackets.close)

		if start == -1 || end <= start {
			continue
		}

		candidate := text[start : end+1]
		if !json.Valid([]byte(candidate)) {
			continue
		}

		if best == -1 || start < best {
			best = start
			result = candidate
		}
	}

	return result
}
