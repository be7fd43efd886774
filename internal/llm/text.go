package llm

import "strings"

// StripThinkingTags removes <think>...</think> blocks from LLM output.
// Some models (e.g. qwen3) wrap their reasoning in these tags.
func StripThinkingTags(s string) string {
	for {
		start := strings.Index(s, "<think>")
		if start == -1 {
			break
		}
		end := strings.Index(s, "</think>")
		if end == -1 {
			s = strings.TrimSpace(s[:start])
			break
		}
		s = s[:start] + s[end+len("</think>"):]
	}
	return strings.TrimSpace(s)
}

// StripMarkdownFences removes thinking tags and the outermost ``` fence pair,
// if present.
func StripMarkdownFences(s string) string {
	s = StripThinkingTags(s)
	lines := strings.Split(s, "\n")

	start := 0
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			start = i + 1
			break
		}
	}
	end := len(lines)
	for i := len(lines) - 1; i >= start; i-- {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "```") {
			end = i
			break
		}
	}
	if start == 0 && end == len(lines) {
		return s
	}
	return strings.TrimSpace(strings.Join(lines[start:end], "\n"))
}

// ExtractJSONObject returns the span from the first '{' to the last '}' in s,
// or "" when there is none. Models often wrap JSON in prose.
func ExtractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return ""
	}
	return s[start : end+1]
}
