package classify

import (
	"fmt"
	"path/filepath"
	"strings"
)

const classifySystemPrompt = `You label source files of a JavaScript/TypeScript project.
Answer with a single JSON object and nothing else:
{"category": "<Area/Subarea>", "summary": "<one sentence>"}

Use a short category with an optional "/" subarea, for example:
Frontend/Components, Frontend/Pages, Frontend/Hooks, Backend/API,
Backend/Services, Database/Models, Utilities, Config, Tests, Styles.
The summary describes what the file does in at most 25 words.`

const narrateSystemPrompt = `You explain the structure of a JavaScript/TypeScript project.
You receive one-line summaries of some of its files.
Answer with a single JSON object and nothing else:
{"summary": "<two to four sentences about the whole project>",
 "key_flows": ["<main data or control flow>", "..."]}
List at most five key flows.`

func classifyUserPrompt(path, snippet string) string {
	return fmt.Sprintf("File: %s\n\n```\n%s\n```", filepath.Base(path), snippet)
}

func narrateUserPrompt(summaries []string) string {
	var b strings.Builder
	b.WriteString("File summaries:\n")
	for _, s := range summaries {
		b.WriteString("- ")
		b.WriteString(s)
		b.WriteString("\n")
	}
	return b.String()
}
