package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/efebarandurmaz/codechart/internal/agents"
	"github.com/efebarandurmaz/codechart/internal/pipeline"
)

type stageStartedMsg struct {
	stage string
	at    time.Time
}

type stageFinishedMsg struct {
	stage  string
	status agents.AgentStatus
	score  float64
	errors int
	at     time.Time
}

type analysisDoneMsg struct {
	res *pipeline.Result
	err error
}

type stageState struct {
	name     string
	started  time.Time
	finished time.Time
	running  bool
	status   agents.AgentStatus
	score    float64
	errors   int
}

// ProgressModel shows the pipeline stages while an analysis runs and quits
// once it finishes.
type ProgressModel struct {
	styles  *Styles
	source  string
	stages  []*stageState
	spinner spinner.Model
	result  *pipeline.Result
	err     error
	done    bool
	aborted bool
}

// NewProgressModel prepares the progress screen for an analysis of source.
func NewProgressModel(source string) ProgressModel {
	styles := DefaultStyles()
	stages := make([]*stageState, len(StageOrder))
	for i, name := range StageOrder {
		stages[i] = &stageState{name: name}
	}
	return ProgressModel{
		styles:  styles,
		source:  source,
		stages:  stages,
		spinner: spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(styles.Spinner)),
	}
}

func (m ProgressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Aborted reports whether the user quit before the analysis finished.
func (m ProgressModel) Aborted() bool { return m.aborted }

func (m ProgressModel) stage(name string) *stageState {
	for _, s := range m.stages {
		if s.name == name {
			return s
		}
	}
	return nil
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stageStartedMsg:
		if s := m.stage(msg.stage); s != nil {
			s.running = true
			s.started = msg.at
		}
		return m, nil

	case stageFinishedMsg:
		if s := m.stage(msg.stage); s != nil {
			s.running = false
			s.finished = msg.at
			s.status = msg.status
			s.score = msg.score
			s.errors = msg.errors
		}
		return m, nil

	case analysisDoneMsg:
		m.done = true
		m.result = msg.res
		m.err = msg.err
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.aborted = true
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m ProgressModel) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Analyzing " + m.source))
	b.WriteString("\n\n")

	for _, s := range m.stages {
		switch {
		case s.running:
			fmt.Fprintf(&b, "  %s %-14s\n", m.spinner.View(), s.name)
		case s.status != "":
			took := s.finished.Sub(s.started).Round(time.Millisecond)
			fmt.Fprintf(&b, "  %s %-14s %s %s",
				m.styles.Status(s.status).Render(" "), s.name,
				m.styles.Muted.Render(fmt.Sprintf("%.2f", s.score)),
				m.styles.Muted.Render(took.String()))
			if s.errors > 0 {
				b.WriteString(m.styles.Error.Render(fmt.Sprintf("  %d errors", s.errors)))
			}
			b.WriteString("\n")
		default:
			fmt.Fprintf(&b, "  %s %s\n", m.styles.Muted.Render("·"), m.styles.Muted.Render(s.name))
		}
	}

	if m.done && m.err != nil {
		b.WriteString("\n")
		b.WriteString(m.styles.Error.Render("analysis failed: " + m.err.Error()))
		b.WriteString("\n")
	}
	if !m.done {
		b.WriteString("\n")
		b.WriteString(m.styles.Help.Render("q to cancel"))
		b.WriteString("\n")
	}
	return b.String()
}

// programObserver forwards stage events to a running program.
type programObserver struct {
	send func(tea.Msg)
	now  func() time.Time
}

func (o programObserver) StageStarted(_, stage string) {
	o.send(stageStartedMsg{stage: stage, at: o.now()})
}

func (o programObserver) StageFinished(_, stage string, r *agents.AgentResult) {
	msg := stageFinishedMsg{stage: stage, at: o.now(), status: agents.StatusFailed}
	if r != nil {
		msg.status = r.Status
		msg.score = r.Score
		msg.errors = len(r.Errors)
	}
	o.send(msg)
}
