package model

import (
	"encoding/json"
	"strings"
)

// ExtractJSONAnswer implements the json_answer population rule from spec.md
// §6: the raw text must be scanned for either a fenced code block (```json
// ... ``` or ``` ... ```) or, failing that, the first balanced `{...}`
// substring; whichever is found is parsed as JSON. Returns nil if neither is
// present or if the candidate does not parse.
func ExtractJSONAnswer(rawText string) map[string]any {
	if candidate := fencedJSONBlock(rawText); candidate != "" {
		if m, ok := parseJSONObject(candidate); ok {
			return m
		}
	}
	if candidate := firstBalancedBraces(rawText); candidate != "" {
		if m, ok := parseJSONObject(candidate); ok {
			return m
		}
	}
	return nil
}

func parseJSONObject(s string) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, false
	}
	return m, true
}

// fencedJSONBlock returns the content of the first fenced code block in s,
// with an optional json/JSON language tag stripped; later fences are not
// considered.
func fencedJSONBlock(s string) string {
	const fence = "```"
	start := strings.Index(s, fence)
	if start == -1 {
		return ""
	}
	rest := s[start+len(fence):]
	rest = strings.TrimPrefix(rest, "json")
	rest = strings.TrimPrefix(rest, "JSON")
	end := strings.Index(rest, fence)
	if end == -1 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}

// firstBalancedBraces scans s for the first substring starting at a '{' that
// is balanced (equal numbers of '{' and '}', respecting quoted strings).
func firstBalancedBraces(s string) string {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
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
				return s[start : i+1]
			}
		}
	}
	return ""
}
