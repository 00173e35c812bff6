package util

import (
	"regexp"
	"strings"
)

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?(.*?)```")

// ExtractJSON returns the JSON object or array embedded in free-form model
// output: a fenced code block if present, otherwise the span from the first
// '{' or '[' to the last '}' or ']'. Text with no JSON is returned unchanged.
func ExtractJSON(text string) string {
	if m := fencedBlock.FindStringSubmatch(text); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}

	start := firstIndex(text, "{", "[")
	if start == -1 {
		return text
	}
	end := max(strings.LastIndex(text, "}"), strings.LastIndex(text, "]"))
	if end > start {
		return text[start : end+1]
	}
	return text
}

func firstIndex(s string, subs ...string) int {
	best := -1
	for _, sub := range subs {
		if i := strings.Index(s, sub); i != -1 && (best == -1 || i < best) {
			best = i
		}
	}
	return best
}
