package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/efebarandurmaz/codechart/internal/pipeline"
)

// ErrAborted is returned when the user quits the progress screen.
var ErrAborted = errors.New("analysis cancelled")

// RunAnalysis runs p on req behind the progress screen. The pipeline is
// copied so its observer and progress writer are left untouched.
func RunAnalysis(ctx context.Context, p *pipeline.Pipeline, req pipeline.Request) (*pipeline.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	prog := tea.NewProgram(NewProgressModel(req.Source), tea.WithContext(ctx))

	run := *p
	run.Progress = nil
	run.Observer = programObserver{send: prog.Send, now: time.Now}

	done := make(chan analysisDoneMsg, 1)
	go func() {
		res, err := run.Run(ctx, req)
		msg := analysisDoneMsg{res: res, err: err}
		done <- msg
		prog.Send(msg)
	}()

	final, err := prog.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return nil, fmt.Errorf("TUI error: %w", err)
	}
	if pm, ok := final.(ProgressModel); ok && pm.Aborted() {
		cancel()
		<-done
		return nil, ErrAborted
	}
	d := <-done
	return d.res, d.err
}

// Browse opens the browser over res in the alternate screen.
func Browse(res *pipeline.Result) error {
	p := tea.NewProgram(NewBrowseModel(NewSession(res)), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// LoadResult decodes a result.json written by an earlier analysis.
func LoadResult(path string) (*pipeline.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}
	var res pipeline.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &res, nil
}
