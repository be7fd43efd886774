package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	tabOverview = "Overview"
	tabFiles    = "Files"
)

// BrowseModel pages through an analysis: an overview, the file table and
// one tab per diagram source.
type BrowseModel struct {
	session   *Session
	styles    *Styles
	tabs      []string
	active    int
	viewport  viewport.Model
	filter    textinput.Model
	filtering bool
	width     int
	height    int
	quitting  bool
	help      help.Model
	keys      keyMap
}

type keyMap struct {
	Next   key.Binding
	Prev   key.Binding
	Up     key.Binding
	Down   key.Binding
	Filter key.Binding
	Enter  key.Binding
	Escape key.Binding
	Quit   key.Binding
}

func (km keyMap) ShortHelp() []key.Binding {
	return []key.Binding{km.Next, km.Prev, km.Up, km.Down, km.Filter, km.Quit}
}

func (km keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{km.Next, km.Prev},
		{km.Up, km.Down},
		{km.Filter, km.Enter, km.Escape, km.Quit},
	}
}

func newKeyMap() keyMap {
	return keyMap{
		Next: key.NewBinding(
			key.WithKeys("tab", "right", "l"),
			key.WithHelp("tab/→", "next tab"),
		),
		Prev: key.NewBinding(
			key.WithKeys("shift+tab", "left", "h"),
			key.WithHelp("shift+tab/←", "prev tab"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "scroll down"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter files"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "apply"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "clear"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// NewBrowseModel builds the browser over session.
func NewBrowseModel(session *Session) BrowseModel {
	ti := textinput.New()
	ti.Placeholder = "name, category or summary"
	ti.Prompt = "/ "
	ti.Width = 40

	tabs := []string{tabOverview, tabFiles}
	for _, d := range session.Diagrams {
		tabs = append(tabs, d.Title)
	}

	m := BrowseModel{
		session:  session,
		styles:   DefaultStyles(),
		tabs:     tabs,
		viewport: viewport.New(80, 18),
		filter:   ti,
		width:    80,
		height:   24,
		help:     help.New(),
		keys:     newKeyMap(),
	}
	m.refresh()
	return m
}

func (m BrowseModel) Init() tea.Cmd {
	return nil
}

// ActiveTab returns the title of the visible tab.
func (m BrowseModel) ActiveTab() string {
	return m.tabs[m.active]
}

func (m BrowseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = max(msg.Height-8, 3)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if m.filtering {
			switch {
			case key.Matches(msg, m.keys.Enter):
				m.filtering = false
				m.filter.Blur()
				return m, nil
			case key.Matches(msg, m.keys.Escape):
				m.filtering = false
				m.filter.Blur()
				m.filter.SetValue("")
				m.refresh()
				return m, nil
			default:
				m.filter, cmd = m.filter.Update(msg)
				m.refresh()
				return m, cmd
			}
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Next):
			m.active = (m.active + 1) % len(m.tabs)
			m.refresh()
			return m, nil
		case key.Matches(msg, m.keys.Prev):
			m.active = (m.active - 1 + len(m.tabs)) % len(m.tabs)
			m.refresh()
			return m, nil
		case key.Matches(msg, m.keys.Filter):
			m.active = 1
			m.filtering = true
			m.refresh()
			return m, m.filter.Focus()
		case key.Matches(msg, m.keys.Escape):
			if m.filter.Value() != "" {
				m.filter.SetValue("")
				m.refresh()
			}
			return m, nil
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// refresh rebuilds the viewport content for the active tab.
func (m *BrowseModel) refresh() {
	var content string
	switch tab := m.tabs[m.active]; tab {
	case tabOverview:
		content = m.renderOverview()
	case tabFiles:
		content = m.renderFiles()
	default:
		content = m.renderSource(m.session.Diagrams[m.active-2].Content)
	}
	m.viewport.SetContent(content)
	m.viewport.GotoTop()
}

func (m BrowseModel) View() string {
	if m.quitting {
		return ""
	}
	sections := []string{
		m.renderTopBar(),
		m.renderTabs(),
		m.styles.CodeBlock.Width(max(m.width-2, 20)).Render(m.viewport.View()),
		m.renderBottom(),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m BrowseModel) renderTopBar() string {
	title := m.styles.Title.Render("codechart · " + m.session.RepoName)
	parts := []string{title, m.styles.Muted.Render(m.session.AnalysisID)}
	if score := m.session.Score(); score >= 0 {
		parts = append(parts, ScoreColor(score).Render(fmt.Sprintf("%.2f", score)))
	}
	return strings.Join(parts, "  ")
}

func (m BrowseModel) renderTabs() string {
	var rendered []string
	for i, t := range m.tabs {
		if i == m.active {
			rendered = append(rendered, m.styles.ActiveTab.Render(t))
		} else {
			rendered = append(rendered, m.styles.Tab.Render(t))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Bottom, rendered...)
}

func (m BrowseModel) renderOverview() string {
	s := m.session
	var b strings.Builder

	if s.Summary != "" {
		b.WriteString(m.styles.Title.Render("Summary"))
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Width(max(m.viewport.Width-2, 20)).Render(s.Summary))
		b.WriteString("\n\n")
	}

	if len(s.KeyFlows) > 0 {
		b.WriteString(m.styles.Title.Render("Key flows"))
		b.WriteString("\n")
		for _, f := range s.KeyFlows {
			fmt.Fprintf(&b, "  • %s\n", f)
		}
		b.WriteString("\n")
	}

	b.WriteString(m.styles.Title.Render("Categories"))
	b.WriteString("\n")
	for _, c := range s.Categories {
		fmt.Fprintf(&b, "  %-28s %d\n", CategoryStyle(c.Name).Render(c.Name), c.Files)
	}
	fmt.Fprintf(&b, "\n  %d files, %d dependencies\n", len(s.Files), s.Edges)

	if len(s.Stages) > 0 {
		b.WriteString("\n")
		b.WriteString(m.styles.Title.Render("Stages"))
		b.WriteString("\n")
		for _, st := range s.Stages {
			fmt.Fprintf(&b, "  %-14s %s %.2f", st.Name, m.styles.Status(st.Status).Render(string(st.Status)), st.Score)
			if st.Errors > 0 {
				b.WriteString(m.styles.Error.Render(fmt.Sprintf("  %d errors", st.Errors)))
			}
			b.WriteString("\n")
		}
	}

	if len(s.Warnings) > 0 {
		b.WriteString("\n")
		b.WriteString(m.styles.Title.Render("Warnings"))
		b.WriteString("\n")
		for _, w := range s.Warnings {
			b.WriteString(m.styles.Error.Render("  ! " + w))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m BrowseModel) renderFiles() string {
	rows := m.session.FilterFiles(m.filter.Value())
	if len(rows) == 0 {
		return m.styles.Muted.Render("no files match " + fmt.Sprintf("%q", m.filter.Value()))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-28s %-22s %5s  %s\n", "FILE", "CATEGORY", "FUNCS", "SUMMARY")
	summaryWidth := max(m.viewport.Width-60, 10)
	for _, f := range rows {
		name := truncate(f.Name, 28)
		if f.Degraded {
			name = m.styles.Error.Render(fmt.Sprintf("%-28s", name))
		} else {
			name = fmt.Sprintf("%-28s", name)
		}
		cat := CategoryStyle(f.Category).Render(fmt.Sprintf("%-22s", truncate(f.Category, 22)))
		fmt.Fprintf(&b, "%s %s %5d  %s\n", name, cat, f.Functions, truncate(f.Summary, summaryWidth))
	}
	return b.String()
}

// renderSource numbers each line of a diagram source.
func (m BrowseModel) renderSource(src string) string {
	lines := strings.Split(strings.TrimRight(src, "\n"), "\n")
	width := max(m.viewport.Width-8, 10)
	var b strings.Builder
	for i, line := range lines {
		b.WriteString(m.styles.LineNo.Render(fmt.Sprintf("%4d │ ", i+1)))
		b.WriteString(truncate(line, width))
		b.WriteString("\n")
	}
	return b.String()
}

func (m BrowseModel) renderBottom() string {
	if m.filtering {
		return m.filter.View()
	}
	view := m.help.ShortHelpView(m.keys.ShortHelp())
	if q := m.filter.Value(); q != "" {
		view = m.styles.Muted.Render(fmt.Sprintf("filter: %q  ", q)) + view
	}
	return m.styles.Help.Render(view)
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width < 4 {
		return "..."
	}
	return string(r[:width-3]) + "..."
}
