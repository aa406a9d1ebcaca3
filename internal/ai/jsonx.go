package ai

import (
	"encoding/json"
	"strings"
)

// ExtractJSONObject returns the first balanced {...} object found anywhere in
// text. Braces inside JSON strings are ignored.
func ExtractJSONObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	for start >= 0 {
		if end := matchBrace(text, start); end > 0 {
			return text[start : end+1], nil
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", ErrNoJSONObject
}

func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// StripCodeFence returns the body of the first ```json (or bare ```) fence.
// Text without a fence is returned trimmed.
func StripCodeFence(text string) string {
	if _, after, ok := strings.Cut(text, "```json"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	parts := strings.SplitN(text, "```", 3)
	if len(parts) >= 2 {
		return strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(text)
}

// DecodeObject extracts the first JSON object from text and unmarshals it into v.
func DecodeObject(text string, v any) error {
	obj, err := ExtractJSONObject(text)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(obj), v)
}

// DecodeFenced unmarshals text after stripping a surrounding code fence.
func DecodeFenced(text string, v any) error {
	return json.Unmarshal([]byte(StripCodeFence(text)), v)
}
