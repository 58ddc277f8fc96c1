package data

import (
	"errors"
	"strings"
)

var (
	ErrNoJSONObject = errors.New("no json object in answer")
	ErrNoJSONArray  = errors.New("no json array in answer")
)

// StripFences removes a surrounding markdown code fence, if any.
func StripFences(ans string) string {
	s := strings.TrimSpace(ans)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// SanitizeAnswer returns the first balanced {...} block of an LLM answer.
func SanitizeAnswer(ans string) (string, error) {
	match := balanced(StripFences(ans), '{', '}')
	if match == "" {
		return "", ErrNoJSONObject
	}
	return match, nil
}

// SanitizeArray returns the first balanced [...] block of an LLM answer.
func SanitizeArray(ans string) (string, error) {
	match := balanced(StripFences(ans), '[', ']')
	if match == "" {
		return "", ErrNoJSONArray
	}
	return match, nil
}

func balanced(s string, open, closing byte) string {
	start := strings.IndexByte(s, open)
	if start < 0 {
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
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
