/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Model Response Parsing
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package llm

import (
	"encoding/json"
	"strings"
)

// StripCodeFence removes a surrounding markdown code fence, if any.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```JSON", "```"} {
		if after, found := strings.CutPrefix(s, prefix); found {
			s = after
			break
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ExtractJSONArray returns the substring from the first '[' to the last ']'.
func ExtractJSONArray(s string) (string, bool) {
	return between(s, '[', ']')
}

// ExtractJSONObject returns the substring from the first '{' to the last '}'.
func ExtractJSONObject(s string) (string, bool) {
	return between(s, '{', '}')
}

func between(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// DecodeObject decodes a model response into v. It tries the response as-is,
// then makes a single repair attempt: the outermost {...} span, or for a
// response cut off mid-object, everything up to the last complete member.
func DecodeObject(raw string, v any) bool {
	text := StripCodeFence(raw)
	if json.Unmarshal([]byte(text), v) == nil {
		return true
	}

	candidate, ok := ExtractJSONObject(text)
	if !ok || !json.Valid([]byte(candidate)) {
		candidate, ok = closeTruncatedObject(text)
		if !ok {
			return false
		}
	}
	return json.Unmarshal([]byte(candidate), v) == nil
}

// DecodeArray decodes a model response holding a JSON array into v, trying
// the response as-is and then the outermost [...] span.
func DecodeArray(raw string, v any) bool {
	text := StripCodeFence(raw)
	if json.Unmarshal([]byte(text), v) == nil {
		return true
	}
	candidate, ok := ExtractJSONArray(text)
	if !ok {
		return false
	}
	return json.Unmarshal([]byte(candidate), v) == nil
}

func closeTruncatedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", false
	}
	body := s[start:]
	for cut := strings.LastIndexByte(body, ','); cut > 0; cut = strings.LastIndexByte(body[:cut], ',') {
		candidate := body[:cut] + "}"
		if json.Valid([]byte(candidate)) {
			return candidate, true
		}
	}
	return "", false
}
