// Package jsonutil recovers a JSON object from free-form model output: raw
// JSON, fenced code blocks, or an object embedded in surrounding prose.
package jsonutil

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var ErrNoJSON = errors.New("jsonutil: no JSON object found")

var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)\\n\\s*```")

// DecodeObject tries, in order: the whole text, the first fenced code block,
// and the first balanced {...} span. out is untouched on failure.
func DecodeObject(text string, out any) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrNoJSON
	}

	if err := json.Unmarshal([]byte(text), out); err == nil {
		return nil
	}

	var lastErr error
	found := false
	if block := FromCodeBlock(text); block != "" {
		found = true
		if err := json.Unmarshal([]byte(block), out); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if obj := BalancedObject(text); obj != "" {
		found = true
		if err := json.Unmarshal([]byte(obj), out); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if !found {
		return ErrNoJSON
	}
	return lastErr
}

func FromCodeBlock(text string) string {
	matches := codeBlockRe.FindStringSubmatch(text)
	if len(matches) >= 2 {
		return strings.TrimSpace(matches[1])
	}
	return ""
}

// BalancedObject returns the first brace-balanced object in text, respecting
// string literals and escapes.
func BalancedObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
