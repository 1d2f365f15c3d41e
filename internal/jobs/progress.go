package jobs

import (
	"sync"

	"routeplan/internal/model"
)

// Sink collects progress and partial results for one running job. The
// orchestrator writes checkpoints into it; the manager reads the last
// snapshot back out when a job is cancelled mid-flight.
type Sink struct {
	mu       sync.Mutex
	progress int
	partial  *model.OptimizationResult
	onUpdate func(pct int, note string)
}

// NewSink wires a sink to the manager's progress callback.
func NewSink(onUpdate func(pct int, note string)) *Sink {
	return &Sink{onUpdate: onUpdate}
}

// Progress records a checkpoint and notifies the manager. Progress never
// moves backwards.
func (s *Sink) Progress(pct int, note string) {
	s.mu.Lock()
	if pct < s.progress {
		pct = s.progress
	}
	s.progress = pct
	cb := s.onUpdate
	s.mu.Unlock()
	if cb != nil {
		cb(pct, note)
	}
}

// Snapshot stores the best result assembled so far. Called after each batch
// so a cancelled job can still hand back what it finished.
func (s *Sink) Snapshot(res *model.OptimizationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partial = res
}

// Partial returns the last snapshot, marked as partial output.
func (s *Sink) Partial() *model.OptimizationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.partial == nil {
		return nil
	}
	cp := *s.partial
	cp.Partial = true
	return &cp
}

// Current returns the last recorded progress percentage.
func (s *Sink) Current() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}
