package dashboard

import (
	"sort"
	"sync"
	"time"
)

const maxRuns = 100

// Store keeps recent runs in memory. Finished runs beyond maxRuns are evicted
// oldest first; the analyses themselves live in history.
type Store struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

func NewStore() *Store {
	return &Store{runs: make(map[string]*Run)}
}

// CreateRun adds run, replacing any run with the same id.
func (s *Store) CreateRun(run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	s.evictOldRuns()
}

// GetRun returns a copy of the run.
func (s *Store) GetRun(id string) (Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return Run{}, false
	}
	return run.clone(), true
}

// ListRuns returns copies of all runs, newest first.
func (s *Store) ListRuns() []Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run.clone())
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].ID > runs[j].ID
		}
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs
}

// UpdateRun applies fn under the lock and returns a copy of the result.
func (s *Store) UpdateRun(id string, fn func(*Run)) (Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return Run{}, false
	}
	fn(run)
	return run.clone(), true
}

// Stats computes aggregate statistics over tracked runs.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{TotalRuns: len(s.runs)}
	var total time.Duration
	for _, run := range s.runs {
		switch run.Status {
		case StatusPending, StatusRunning:
			stats.ActiveRuns++
		case StatusCompleted:
			stats.CompletedRuns++
			if run.CompletedAt != nil {
				total += run.CompletedAt.Sub(run.StartedAt)
			}
		case StatusFailed:
			stats.FailedRuns++
		}
		stats.TotalLLMCalls += run.LLMCalls
	}
	if stats.CompletedRuns > 0 {
		stats.AvgDuration = total.Seconds() / float64(stats.CompletedRuns)
	}
	if finished := stats.CompletedRuns + stats.FailedRuns; finished > 0 {
		stats.SuccessRate = float64(stats.CompletedRuns) / float64(finished)
	}
	return stats
}

// evictOldRuns must be called with the lock held.
func (s *Store) evictOldRuns() {
	if len(s.runs) <= maxRuns {
		return
	}
	type finished struct {
		id string
		at time.Time
	}
	var done []finished
	for id, run := range s.runs {
		if run.Status != StatusCompleted && run.Status != StatusFailed {
			continue
		}
		at := run.StartedAt
		if run.CompletedAt != nil {
			at = *run.CompletedAt
		}
		done = append(done, finished{id, at})
	}
	sort.Slice(done, func(i, j int) bool { return done[i].at.Before(done[j].at) })

	excess := len(s.runs) - maxRuns
	for i := 0; i < excess && i < len(done); i++ {
		delete(s.runs, done[i].id)
	}
}

func (r *Run) clone() Run {
	c := *r
	c.Stages = append([]StageResult(nil), r.Stages...)
	c.Warnings = append([]string(nil), r.Warnings...)
	return c
}
