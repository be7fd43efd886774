package dashboard

import (
	"time"

	"github.com/efebarandurmaz/codechart/internal/agents"
	"github.com/efebarandurmaz/codechart/internal/pipeline"
)

// Emitter records run transitions in the store and broadcasts them. It
// satisfies pipeline.Observer.
type Emitter struct {
	store *Store
	hub   *Hub
	now   func() time.Time
}

var _ pipeline.Observer = (*Emitter)(nil)

func NewEmitter(store *Store, hub *Hub) *Emitter {
	return &Emitter{store: store, hub: hub, now: time.Now}
}

// RunQueued registers a run that is waiting for a free slot.
func (e *Emitter) RunQueued(id, source, repoName string) Run {
	run := &Run{
		ID:        id,
		Source:    source,
		RepoName:  repoName,
		Status:    StatusPending,
		Stages:    make([]StageResult, 0, 3),
		StartedAt: e.now(),
	}
	e.store.CreateRun(run)
	return run.clone()
}

// RunStarted marks the run as running.
func (e *Emitter) RunStarted(id string) {
	run, ok := e.store.UpdateRun(id, func(r *Run) { r.Status = StatusRunning })
	if ok {
		e.broadcast(EventRunStarted, id, "", run)
	}
}

func (e *Emitter) StageStarted(id, stage string) {
	now := e.now()
	e.store.UpdateRun(id, func(r *Run) {
		r.Stages = append(r.Stages, StageResult{Stage: stage, Status: StatusRunning, StartedAt: now})
	})
	e.broadcast(EventStageStarted, id, stage, nil)
}

func (e *Emitter) StageFinished(id, stage string, res *agents.AgentResult) {
	now := e.now()
	var sr StageResult
	e.store.UpdateRun(id, func(r *Run) {
		for i := len(r.Stages) - 1; i >= 0; i-- {
			if r.Stages[i].Stage != stage {
				continue
			}
			st := &r.Stages[i]
			st.Status = StatusCompleted
			st.CompletedAt = &now
			st.Duration = now.Sub(st.StartedAt)
			if res != nil {
				st.Score = res.Score
				st.Errors = len(res.Errors)
				st.Mode = string(res.Status)
				if res.Metrics != nil {
					st.LLMCalls = res.Metrics.LLMCalls
					r.LLMCalls += res.Metrics.LLMCalls
				}
			}
			sr = *st
			return
		}
	})
	e.broadcast(EventStageFinished, id, stage, sr)
}

// RunCompleted copies the result's totals into the run.
func (e *Emitter) RunCompleted(id string, res *pipeline.Result) {
	now := e.now()
	run, ok := e.store.UpdateRun(id, func(r *Run) {
		r.Status = StatusCompleted
		r.CompletedAt = &now
		r.Files = len(res.Files)
		r.Diagrams = len(res.Diagrams)
		r.Warnings = append([]string(nil), res.Warnings...)
		if res.Record != nil {
			r.Score = res.Record.Score
		}
	})
	if ok {
		e.broadcast(EventRunCompleted, id, "", run)
	}
}

// RunFailed marks the run and any stage still running as failed.
func (e *Emitter) RunFailed(id string, err error) {
	now := e.now()
	run, ok := e.store.UpdateRun(id, func(r *Run) {
		r.Status = StatusFailed
		r.CompletedAt = &now
		r.Error = err.Error()
		for i := range r.Stages {
			if r.Stages[i].Status == StatusRunning {
				r.Stages[i].Status = StatusFailed
				r.Stages[i].CompletedAt = &now
				r.Stages[i].Duration = now.Sub(r.Stages[i].StartedAt)
			}
		}
	})
	if ok {
		e.broadcast(EventRunFailed, id, "", run)
	}
}

func (e *Emitter) broadcast(typ, id, stage string, data any) {
	e.hub.Broadcast(&Event{Type: typ, Timestamp: e.now(), RunID: id, Stage: stage, Data: data})
}
