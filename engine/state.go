package engine

import (
	"sync"
	"time"

	"spiritual-shorts-pipeline/types"
)

// Phase is where the engine currently is in its cycle
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseGenerating   Phase = "generating"
	PhaseScoring      Phase = "scoring"
	PhaseRegenerating Phase = "regenerating"
	PhaseSynthesizing Phase = "synthesizing"
	PhasePublishing   Phase = "publishing"
	PhaseRecording    Phase = "recording"
)

// State is the engine-owned run state. Only the engine writes it; readers
// take a Snapshot.
type State struct {
	mu          sync.RWMutex
	phase       Phase
	stats       types.CycleStats
	nextTrigger time.Time
	lastReport  *Report
}

// Snapshot is a copy of State safe to hand to other goroutines
type Snapshot struct {
	Phase       Phase            `json:"phase"`
	Stats       types.CycleStats `json:"stats"`
	NextTrigger time.Time        `json:"next_trigger,omitempty"`
	LastReport  *Report          `json:"last_report,omitempty"`
}

// NewState returns an idle State with zero stats
func NewState() *State {
	return &State{phase: PhaseIdle}
}

// Snapshot copies the current state, including the last cycle report
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{Phase: s.phase, Stats: s.stats, NextTrigger: s.nextTrigger}
	if s.lastReport != nil {
		r := *s.lastReport
		snap.LastReport = &r
	}
	return snap
}

// Phase returns the current cycle phase
func (s *State) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Stats returns the cumulative cycle counters
func (s *State) Stats() types.CycleStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

func (s *State) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

func (s *State) setStats(stats types.CycleStats) {
	s.mu.Lock()
	s.stats = stats
	s.mu.Unlock()
}

// SetNextTrigger records when the scheduler will start the next cycle
func (s *State) SetNextTrigger(t time.Time) {
	s.mu.Lock()
	s.nextTrigger = t
	s.mu.Unlock()
}

func (s *State) setReport(r *Report) {
	s.mu.Lock()
	s.lastReport = r
	s.mu.Unlock()
}
