package history

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DiffType is how an item changed between two analyses.
type DiffType string

const (
	DiffAdded    DiffType = "added"
	DiffRemoved  DiffType = "removed"
	DiffModified DiffType = "modified"
)

// AnalysisDiff is the complete diff between two stored analyses.
type AnalysisDiff struct {
	OldID        string        `json:"old_id"`
	NewID        string        `json:"new_id"`
	ScoreDelta   float64       `json:"score_delta"`
	FileDiffs    []FileDiff    `json:"file_diffs"`
	DiagramDiffs []DiagramDiff `json:"diagram_diffs"`
	StageDiffs   []StageDiff   `json:"stage_diffs"`
	Summary      DiffSummary   `json:"summary"`
}

// FileDiff is a change to the analyzed facts of one file.
type FileDiff struct {
	Path        string   `json:"path"`
	Type        DiffType `json:"type"`
	OldCategory string   `json:"old_category,omitempty"`
	NewCategory string   `json:"new_category,omitempty"`
	LOCDelta    int      `json:"loc_delta"`
}

// DiagramDiff is a line diff of one diagram kind.
type DiagramDiff struct {
	Kind         string     `json:"kind"`
	Type         DiffType   `json:"type"`
	LinesAdded   int        `json:"lines_added"`
	LinesRemoved int        `json:"lines_removed"`
	Hunks        []DiffHunk `json:"hunks,omitempty"`
}

// DiffHunk is one changed region of a diagram with its context.
type DiffHunk struct {
	OldStart int        `json:"old_start"`
	OldCount int        `json:"old_count"`
	NewStart int        `json:"new_start"`
	NewCount int        `json:"new_count"`
	Lines    []DiffLine `json:"lines"`
}

// Diff line types.
const (
	lineContext = "context"
	lineAdd     = "add"
	lineRemove  = "remove"
)

// DiffLine is one hunk line; Type is context, add or remove.
type DiffLine struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	OldNum  int    `json:"old_num,omitempty"`
	NewNum  int    `json:"new_num,omitempty"`
}

// StageDiff captures changes in an agent stage between two analyses.
type StageDiff struct {
	Name          string  `json:"name"`
	ScoreDelta    float64 `json:"score_delta"`
	LLMCallsDelta int     `json:"llm_calls_delta"`
	TokensDelta   int     `json:"tokens_delta"`
	DurationDelta int64   `json:"duration_delta_ms"`
	StatusChanged bool    `json:"status_changed"`
	OldStatus     string  `json:"old_status,omitempty"`
	NewStatus     string  `json:"new_status,omitempty"`
}

// DiffSummary provides aggregate stats about the diff.
type DiffSummary struct {
	FilesAdded       int  `json:"files_added"`
	FilesRemoved     int  `json:"files_removed"`
	FilesModified    int  `json:"files_modified"`
	Recategorized    int  `json:"recategorized"`
	DiagramsChanged  int  `json:"diagrams_changed"`
	DiagramLinesAdd  int  `json:"diagram_lines_added"`
	DiagramLinesDrop int  `json:"diagram_lines_removed"`
	ScoreImproved    bool `json:"score_improved"`
}

// Diff compares two stored analyses, typically of the same repository.
func Diff(from, to *Record) *AnalysisDiff {
	d := &AnalysisDiff{
		OldID:        from.ID,
		NewID:        to.ID,
		ScoreDelta:   to.Score - from.Score,
		FileDiffs:    diffFiles(from.Files, to.Files),
		DiagramDiffs: diffDiagrams(from.Diagrams, to.Diagrams),
		StageDiffs:   diffStages(from.Stages, to.Stages),
	}
	d.Summary = summarize(d)
	return d
}

func indexFiles(files []FileEntry) map[string]FileEntry {
	m := make(map[string]FileEntry, len(files))
	for _, f := range files {
		m[f.Path] = f
	}
	return m
}

// diffFiles reports files present on one side only, and files whose hash
// or line count moved. Results are sorted by path.
func diffFiles(oldFiles, newFiles []FileEntry) []FileDiff {
	before, after := indexFiles(oldFiles), indexFiles(newFiles)

	var out []FileDiff
	for path, was := range before {
		cur, kept := after[path]
		switch {
		case !kept:
			out = append(out, FileDiff{Path: path, Type: DiffRemoved, OldCategory: was.Category, LOCDelta: -was.LOC})
		case was.Hash != cur.Hash || was.LOC != cur.LOC:
			out = append(out, FileDiff{Path: path, Type: DiffModified, OldCategory: was.Category, NewCategory: cur.Category, LOCDelta: cur.LOC - was.LOC})
		}
	}
	for path, cur := range after {
		if _, existed := before[path]; !existed {
			out = append(out, FileDiff{Path: path, Type: DiffAdded, NewCategory: cur.Category, LOCDelta: cur.LOC})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func diffDiagrams(oldDiagrams, newDiagrams map[string]string) []DiagramDiff {
	kinds := make(map[string]bool)
	for k := range oldDiagrams {
		kinds[k] = true
	}
	for k := range newDiagrams {
		kinds[k] = true
	}
	sorted := make([]string, 0, len(kinds))
	for k := range kinds {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	var diffs []DiagramDiff
	for _, kind := range sorted {
		oldText, inOld := oldDiagrams[kind]
		newText, inNew := newDiagrams[kind]
		switch {
		case !inOld:
			diffs = append(diffs, DiagramDiff{Kind: kind, Type: DiffAdded, LinesAdded: countLines(newText)})
		case !inNew:
			diffs = append(diffs, DiagramDiff{Kind: kind, Type: DiffRemoved, LinesRemoved: countLines(oldText)})
		case oldText != newText:
			dd := DiagramDiff{Kind: kind, Type: DiffModified, Hunks: computeHunks(oldText, newText)}
			dd.LinesAdded, dd.LinesRemoved = lineCounts(dd.Hunks)
			diffs = append(diffs, dd)
		}
	}
	return diffs
}

func countLines(s string) int { return len(splitLines(s)) }

func lineCounts(hunks []DiffHunk) (added, removed int) {
	for _, h := range hunks {
		for _, l := range h.Lines {
			switch l.Type {
			case lineAdd:
				added++
			case lineRemove:
				removed++
			}
		}
	}
	return added, removed
}

func splitLines(s string) []string {
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

// computeHunks groups a line diff into unified-style hunks with three lines
// of context. Line numbers are 1-based.
func computeHunks(oldText, newText string) []DiffHunk {
	a, b := splitLines(oldText), splitLines(newText)
	m := difflib.NewMatcher(a, b)

	var hunks []DiffHunk
	for _, group := range m.GetGroupedOpCodes(3) {
		first, last := group[0], group[len(group)-1]
		h := DiffHunk{
			OldStart: first.I1 + 1,
			OldCount: last.I2 - first.I1,
			NewStart: first.J1 + 1,
			NewCount: last.J2 - first.J1,
		}
		changed := false
		for _, op := range group {
			if op.Tag == 'e' {
				for k := 0; k < op.I2-op.I1; k++ {
					h.Lines = append(h.Lines, DiffLine{Type: lineContext, Content: a[op.I1+k], OldNum: op.I1 + k + 1, NewNum: op.J1 + k + 1})
				}
				continue
			}
			changed = true
			// 'r' is a delete followed by an insert.
			for i := op.I1; i < op.I2; i++ {
				h.Lines = append(h.Lines, DiffLine{Type: lineRemove, Content: a[i], OldNum: i + 1})
			}
			for j := op.J1; j < op.J2; j++ {
				h.Lines = append(h.Lines, DiffLine{Type: lineAdd, Content: b[j], NewNum: j + 1})
			}
		}
		if changed {
			hunks = append(hunks, h)
		}
	}
	return hunks
}

// diffStages compares stages by name. A stage absent from old counts as
// changed from nothing.
func diffStages(oldStages, newStages []AgentStageInfo) []StageDiff {
	prev := make(map[string]AgentStageInfo, len(oldStages))
	for _, st := range oldStages {
		prev[st.Name] = st
	}

	out := make([]StageDiff, 0, len(newStages))
	for _, cur := range newStages {
		was, seen := prev[cur.Name]
		out = append(out, StageDiff{
			Name:          cur.Name,
			ScoreDelta:    cur.Score - was.Score,
			LLMCallsDelta: cur.LLMCalls - was.LLMCalls,
			TokensDelta:   cur.tokens() - was.tokens(),
			DurationDelta: (cur.Duration - was.Duration).Milliseconds(),
			StatusChanged: !seen || cur.Status != was.Status,
			OldStatus:     was.Status,
			NewStatus:     cur.Status,
		})
	}
	return out
}

func summarize(d *AnalysisDiff) DiffSummary {
	s := DiffSummary{ScoreImproved: d.ScoreDelta > 0}
	for _, fd := range d.FileDiffs {
		switch fd.Type {
		case DiffAdded:
			s.FilesAdded++
		case DiffRemoved:
			s.FilesRemoved++
		case DiffModified:
			s.FilesModified++
			if fd.OldCategory != fd.NewCategory {
				s.Recategorized++
			}
		}
	}
	for _, dd := range d.DiagramDiffs {
		s.DiagramsChanged++
		s.DiagramLinesAdd += dd.LinesAdded
		s.DiagramLinesDrop += dd.LinesRemoved
	}
	return s
}

var diffMarks = map[string]string{lineContext: " ", lineAdd: "+", lineRemove: "-"}

// FormatDiff renders d for `codechart history diff`.
func FormatDiff(d *AnalysisDiff) string {
	var b strings.Builder
	sum := d.Summary

	fmt.Fprintf(&b, "Diff: %s -> %s\nScore: %+.2f\n\n", d.OldID, d.NewID, d.ScoreDelta)
	fmt.Fprintf(&b, "Files: +%d -%d ~%d (%d recategorized)\n",
		sum.FilesAdded, sum.FilesRemoved, sum.FilesModified, sum.Recategorized)
	for _, fd := range d.FileDiffs {
		mark := "~"
		if fd.Type == DiffAdded {
			mark = "+"
		} else if fd.Type == DiffRemoved {
			mark = "-"
		}
		fmt.Fprintf(&b, "  %s %s", mark, fd.Path)
		if fd.Type == DiffModified && fd.OldCategory != fd.NewCategory {
			fmt.Fprintf(&b, " [%s -> %s]", fd.OldCategory, fd.NewCategory)
		}
		if fd.LOCDelta != 0 {
			fmt.Fprintf(&b, " (%+d lines)", fd.LOCDelta)
		}
		b.WriteByte('\n')
	}

	if len(d.DiagramDiffs) > 0 {
		b.WriteString("\nDiagrams:\n")
	}
	for _, dd := range d.DiagramDiffs {
		fmt.Fprintf(&b, "  %s %s: +%d -%d\n", dd.Type, dd.Kind, dd.LinesAdded, dd.LinesRemoved)
		for _, h := range dd.Hunks {
			fmt.Fprintf(&b, "    @@ -%d,%d +%d,%d @@\n", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
			for _, l := range h.Lines {
				fmt.Fprintf(&b, "    %s%s\n", diffMarks[l.Type], l.Content)
			}
		}
	}

	if len(d.StageDiffs) > 0 {
		b.WriteString("\nAgent Stages:\n")
	}
	for _, sd := range d.StageDiffs {
		fmt.Fprintf(&b, "  %s: score %+.2f, llm_calls %+d, tokens %+d",
			sd.Name, sd.ScoreDelta, sd.LLMCallsDelta, sd.TokensDelta)
		if sd.StatusChanged {
			fmt.Fprintf(&b, " [%s -> %s]", sd.OldStatus, sd.NewStatus)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
