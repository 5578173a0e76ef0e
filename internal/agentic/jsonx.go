package agentic

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSON pulls a JSON object out of an LLM response. Models wrap
// their output unpredictably, so three strategies are tried in order:
// the whole payload, a fenced code block, then the outermost brace span.
// The first strategy that parses wins; false means none did.
func ExtractJSON(text string, v any) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	if json.Unmarshal([]byte(text), v) == nil {
		return true
	}

	if m := fencedBlockRe.FindStringSubmatch(text); m != nil {
		if json.Unmarshal([]byte(strings.TrimSpace(m[1])), v) == nil {
			return true
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if json.Unmarshal([]byte(text[start:end+1]), v) == nil {
			return true
		}
	}
	return false
}
