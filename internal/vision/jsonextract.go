package vision

import "strings"

// ExtractJSON recovers the first complete JSON value from model output.
// Models sometimes wrap responses in Markdown fences or add prose around the
// JSON despite instructions; this strips the wrapping and returns the value
// between the first opening bracket and its matching close. The scan is
// string-aware so braces inside string literals don't unbalance it.
func ExtractJSON(raw string) (string, bool) {
	s := strings.TrimSpace(raw)

	// Drop ```json ... ``` or ``` ... ``` fences.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := -1
	var open, close byte
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			start = i
			open = s[i]
			close = '}'
			if open == '[' {
				close = ']'
			}
			break
		}
	}
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
