package classify

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/efebarandurmaz/codechart/internal/ir"
	"github.com/efebarandurmaz/codechart/internal/llm"
)

const (
	maxCategoryLen = 60
	maxSummaryLen  = 400
	maxKeyFlows    = 5
)

var (
	categoryKeyPattern = regexp.MustCompile(`(?i)"?\bcategory"?\s*[:=]\s*"?([^"\n,}]+)`)
	summaryKeyPattern  = regexp.MustCompile(`(?i)"?\b(?:overall_)?summary"?\s*[:=]\s*"?([^"\n}]+)`)
	bulletPattern      = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+)$`)
	spacePattern       = regexp.MustCompile(`\s+`)
	slashSpacePattern  = regexp.MustCompile(`\s*/\s*`)
)

// categoryKeyword maps a word or phrase found in free text to a category.
type categoryKeyword struct {
	Keyword  string
	Category string
}

// categoryKeywords are searched in prose answers that carry no category key.
// The match closest to the start of the text wins, longer phrases first.
var categoryKeywords = []categoryKeyword{
	{"frontend/components", "Frontend/Components"},
	{"frontend/pages", "Frontend/Pages"},
	{"frontend/hooks", "Frontend/Hooks"},
	{"backend/api", "Backend/API"},
	{"backend/services", "Backend/Services"},
	{"database/models", "Database/Models"},
	{"frontend", "Frontend"},
	{"backend", "Backend"},
	{"database", "Database"},
	{"utilities", "Utilities"},
	{"utility", "Utilities"},
	{"config", "Config"},
	{"configuration", "Config"},
	{"tests", "Tests"},
	{"test", "Tests"},
	{"styles", "Styles"},
	{"stylesheet", "Styles"},
}

type keywordMatcher struct {
	pattern  *regexp.Regexp
	category string
}

var keywordMatchers = compileKeywords(categoryKeywords)

func compileKeywords(table []categoryKeyword) []keywordMatcher {
	out := make([]keywordMatcher, 0, len(table))
	for _, k := range table {
		out = append(out, keywordMatcher{
			pattern:  regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(k.Keyword) + `\b`),
			category: k.Category,
		})
	}
	return out
}

// matchCategory finds the earliest known category named in text and returns
// it with the byte span of the match.
func matchCategory(text string) (string, int, int, bool) {
	best, start, end := "", -1, -1
	for _, m := range keywordMatchers {
		loc := m.pattern.FindStringIndex(text)
		if loc == nil {
			continue
		}
		if start < 0 || loc[0] < start || (loc[0] == start && loc[1] > end) {
			best, start, end = m.category, loc[0], loc[1]
		}
	}
	return best, start, end, start >= 0
}

// DecodeClassification parses a collaborator answer. It tries strict JSON
// first, then a "category:" key, then known category names anywhere in the
// text. ok is false when no stage finds a category.
func DecodeClassification(text string) (Classification, bool) {
	text = llm.StripMarkdownFences(text)

	if obj := llm.ExtractJSONObject(text); obj != "" {
		var raw struct {
			Category string `json:"category"`
			Summary  string `json:"summary"`
		}
		if err := json.Unmarshal([]byte(obj), &raw); err == nil {
			if cat := normalizeCategory(raw.Category); cat != "" {
				return Classification{Category: cat, Summary: normalizeSummary(raw.Summary)}, true
			}
		}
	}

	summary := ""
	if s := summaryKeyPattern.FindStringSubmatch(text); s != nil {
		summary = s[1]
	}
	if m := categoryKeyPattern.FindStringSubmatch(text); m != nil {
		if cat := normalizeCategory(m[1]); cat != "" {
			return Classification{Category: cat, Summary: normalizeSummary(summary)}, true
		}
	}

	text = slashSpacePattern.ReplaceAllString(strings.TrimSpace(text), "/")
	cat, start, end, ok := matchCategory(text)
	if !ok {
		return Classification{}, false
	}
	if summary == "" {
		summary = proseSummary(text, start, end)
	}
	return Classification{Category: cat, Summary: normalizeSummary(summary)}, true
}

// proseSummary uses the text after a leading "Area - ..." label, or the
// whole answer when the category is named mid-sentence.
func proseSummary(text string, start, end int) string {
	if start == 0 {
		if rest := strings.TrimLeft(text[end:], " -:|,."); rest != "" {
			return rest
		}
	}
	return text
}

// DecodeNarrative parses an overall-summary answer, strict JSON first and then
// a text fallback. The fallback takes a "summary:" line or else the first
// prose line that is not a heading, and collects bulleted lines as key flows.
func DecodeNarrative(text string) (Narrative, bool) {
	text = llm.StripMarkdownFences(text)

	if obj := llm.ExtractJSONObject(text); obj != "" {
		var raw struct {
			Summary        string   `json:"summary"`
			OverallSummary string   `json:"overall_summary"`
			KeyFlows       []string `json:"key_flows"`
			KeyFlowsCamel  []string `json:"keyFlows"`
		}
		if err := json.Unmarshal([]byte(obj), &raw); err == nil {
			summary := firstNonEmpty(raw.Summary, raw.OverallSummary)
			flows := raw.KeyFlows
			if len(flows) == 0 {
				flows = raw.KeyFlowsCamel
			}
			if summary != "" {
				return Narrative{Summary: collapse(summary, 0), KeyFlows: cleanFlows(flows)}, true
			}
		}
	}

	var summary string
	if m := summaryKeyPattern.FindStringSubmatch(text); m != nil {
		summary = m[1]
	}
	var flows []string
	for _, line := range strings.Split(text, "\n") {
		if m := bulletPattern.FindStringSubmatch(line); m != nil {
			flows = append(flows, m[1])
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		trimmed := strings.TrimSpace(strings.Trim(line, "*` "))
		if summary == "" && trimmed != "" && !strings.ContainsAny(trimmed[:1], "{[") {
			summary = trimmed
		}
	}
	summary = collapse(summary, 0)
	if summary == "" {
		return Narrative{}, false
	}
	return Narrative{Summary: summary, KeyFlows: cleanFlows(flows)}, true
}

func normalizeCategory(s string) string {
	s = strings.Trim(strings.TrimSpace(s), `"'.`)
	s = slashSpacePattern.ReplaceAllString(s, "/")
	s = collapse(s, maxCategoryLen)
	s = strings.Trim(s, "/ ")
	switch strings.ToLower(s) {
	case "null", "none", "unknown", "n/a":
		return ""
	}
	return s
}

func normalizeSummary(s string) string {
	s = collapse(strings.Trim(strings.TrimSpace(s), `"'`), maxSummaryLen)
	if s == "" {
		return ir.DefaultSummary
	}
	return s
}

func collapse(s string, limit int) string {
	s = strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
	if limit > 0 {
		s = strings.TrimSpace(Truncate(s, limit))
	}
	return s
}

func cleanFlows(flows []string) []string {
	out := make([]string, 0, len(flows))
	for _, f := range flows {
		f = collapse(strings.Trim(f, `"'`), maxSummaryLen)
		if f == "" {
			continue
		}
		out = append(out, f)
		if len(out) == maxKeyFlows {
			break
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
