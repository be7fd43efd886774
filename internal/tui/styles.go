package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/efebarandurmaz/codechart/internal/agents"
	"github.com/efebarandurmaz/codechart/internal/diagram"
)

// Dark theme palette.
const (
	ColorBg     = "#0d1117"
	ColorCard   = "#161b22"
	ColorBorder = "#30363d"
	ColorBlue   = "#58a6ff"
	ColorGreen  = "#3fb950"
	ColorRed    = "#f85149"
	ColorYellow = "#d29922"
	ColorGray   = "#8b949e"
	ColorText   = "#c9d1d9"
	ColorBright = "#f0f6fc"
)

// Styles holds the lipgloss styles shared by the screens.
type Styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Help     lipgloss.Style
	Muted    lipgloss.Style
	Error    lipgloss.Style

	StatusSuccess lipgloss.Style
	StatusFailed  lipgloss.Style
	StatusPartial lipgloss.Style
	StatusPending lipgloss.Style

	CodeBlock lipgloss.Style
	LineNo    lipgloss.Style

	Tab       lipgloss.Style
	ActiveTab lipgloss.Style

	Spinner lipgloss.Style
}

func badge(bg string) lipgloss.Style {
	return lipgloss.NewStyle().
		Background(lipgloss.Color(bg)).
		Foreground(lipgloss.Color(ColorBg)).
		Padding(0, 1).
		Bold(true)
}

// DefaultStyles creates the default style set.
func DefaultStyles() *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(ColorBright)),
		Subtitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorText)),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorGray)).
			Italic(true),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorGray)),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorRed)),

		StatusSuccess: badge(ColorGreen),
		StatusFailed:  badge(ColorRed),
		StatusPartial: badge(ColorYellow),
		StatusPending: badge(ColorGray),

		CodeBlock: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorText)).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorBorder)).
			Padding(0, 1),
		LineNo: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorGray)),

		Tab: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorGray)).
			Padding(0, 2),
		ActiveTab: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorBlue)).
			Bold(true).
			Padding(0, 2).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderTop(false).
			BorderLeft(false).
			BorderRight(false).
			BorderForeground(lipgloss.Color(ColorBlue)),

		Spinner: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorBlue)),
	}
}

// Status returns the badge style for an agent outcome.
func (s *Styles) Status(status agents.AgentStatus) lipgloss.Style {
	switch status {
	case agents.StatusSuccess:
		return s.StatusSuccess
	case agents.StatusFailed:
		return s.StatusFailed
	case agents.StatusPartial, agents.StatusPassthrough:
		return s.StatusPartial
	default:
		return s.StatusPending
	}
}

// ScoreColor returns a badge colored by score: green from 0.8, yellow from
// 0.5, red below.
func ScoreColor(score float64) lipgloss.Style {
	switch {
	case score >= 0.8:
		return badge(ColorGreen)
	case score >= 0.5:
		return badge(ColorYellow)
	default:
		return badge(ColorRed)
	}
}

// CategoryStyle colors a category name the way the component diagram
// fills its block.
func CategoryStyle(category string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(diagram.ComponentColor(category)))
}
