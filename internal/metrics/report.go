package metrics

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Colors of the dark report theme.
const (
	colorBg     = "#0d1117"
	colorBorder = "#30363d"
	colorBlue   = "#58a6ff"
	colorGreen  = "#3fb950"
	colorRed    = "#f85149"
	colorYellow = "#d29922"
	colorGray   = "#8b949e"
	colorBright = "#f0f6fc"
)

type report struct {
	title   lipgloss.Style
	section lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	errLine lipgloss.Style
	box     lipgloss.Style
	badge   func(score float64) lipgloss.Style
}

// newReport binds styles to w so color is dropped when w is not a terminal.
func newReport(w io.Writer) *report {
	r := lipgloss.NewRenderer(w)
	return &report{
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color(colorBright)),
		section: r.NewStyle().Bold(true).Foreground(lipgloss.Color(colorBlue)).MarginTop(1),
		label:   r.NewStyle().Foreground(lipgloss.Color(colorGray)).Width(14),
		value:   r.NewStyle().Foreground(lipgloss.Color(colorBright)),
		errLine: r.NewStyle().Foreground(lipgloss.Color(colorRed)),
		box: r.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorBorder)).
			Padding(0, 2),
		badge: func(score float64) lipgloss.Style {
			bg := colorRed
			switch {
			case score >= 0.8:
				bg = colorGreen
			case score >= 0.5:
				bg = colorYellow
			}
			return r.NewStyle().Bold(true).Padding(0, 1).
				Background(lipgloss.Color(bg)).
				Foreground(lipgloss.Color(colorBg))
		},
	}
}

func (r *report) row(label string, value any) string {
	return r.label.Render(label) + r.value.Render(fmt.Sprint(value))
}

func (r *report) render(m *PipelineMetrics) string {
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		r.title.Render("CODECHART ANALYSIS REPORT"), "  ",
		r.badge(m.Score).Render(fmt.Sprintf("%.2f", m.Score)))

	lines := []string{
		header,
		r.row("Duration", m.Duration.Round(time.Millisecond)),
		r.row("LLM Mode", m.LLMMode),

		r.section.Render("SOURCE"),
		r.row("Root", m.Source.Root),
		r.row("Files", m.Source.FileCount),
		r.row("Degraded", m.Source.DegradedCount),
		r.row("Skipped", m.Source.SkippedCount),
		r.row("Functions", m.Source.FunctionCount),
		r.row("Imports", m.Source.EdgeCount),
		r.row("Categories", m.Source.CategoryCount),
		r.row("Lines", m.Source.TotalLines),

		r.section.Render("DIAGRAMS"),
		r.row("Kinds", strings.Join(m.Diagrams.Kinds, ", ")),
		r.row("Total Size", formatBytes(m.Diagrams.TotalBytes)),

		r.section.Render("AGENTS"),
	}
	for _, a := range m.Agents {
		status := "OK"
		if a.Errors > 0 {
			status = fmt.Sprintf("%d errors", a.Errors)
		}
		lines = append(lines, r.row(a.Name, fmt.Sprintf("%8s  [%s] %s", a.Duration.Round(time.Millisecond), a.Mode, status)))
	}
	if len(m.Errors) > 0 {
		lines = append(lines, r.section.Render("ERRORS"))
		for _, e := range m.Errors {
			lines = append(lines, r.errLine.Render("• "+e))
		}
	}
	return r.box.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
