// Package metrics maintains the engine's process-wide counters.
//
// All mutation is append-only increment through a single mutation
// point; counters are zeroed at startup and persist for the process
// lifetime. External observability collectors consume the read-only
// Snapshot.
package metrics

import (
	"sync"
	"time"

	"github.com/covenant-ai/covenant/core/pkg/contracts"
)

// LevelStats aggregates per-level round latency.
type LevelStats struct {
	Rounds       uint64        `json:"rounds"`
	TotalLatency time.Duration `json:"total_latency_ns"`
	MaxLatency   time.Duration `json:"max_latency_ns"`
}

// MeanLatency returns the average round latency at this level.
func (s LevelStats) MeanLatency() time.Duration {
	if s.Rounds == 0 {
		return 0
	}
	return s.TotalLatency / time.Duration(s.Rounds)
}

// Snapshot is a point-in-time, caller-owned copy of all counters.
type Snapshot struct {
	TotalEvaluations   uint64                                    `json:"total_evaluations"`
	Approved           uint64                                    `json:"approved"`
	Denied             uint64                                    `json:"denied"`
	Undetermined       uint64                                    `json:"undetermined"`
	ValidationRejected uint64                                    `json:"validation_rejected"`
	BudgetRejected     uint64                                    `json:"budget_rejected"`
	IntegrityFailures  uint64                                    `json:"integrity_failures"`
	ApprovalRate       float64                                   `json:"approval_rate"`
	Levels             map[contracts.VerificationLevel]LevelStats `json:"levels"`
	AgentExclusions    map[string]uint64                         `json:"agent_exclusions"`
}

// Recorder is the engine's metrics sink.
type Recorder struct {
	mu                 sync.Mutex
	totalEvaluations   uint64
	approved           uint64
	denied             uint64
	undetermined       uint64
	validationRejected uint64
	budgetRejected     uint64
	integrityFailures  uint64
	levels             map[contracts.VerificationLevel]*LevelStats
	agentExclusions    map[string]uint64
}

// NewRecorder creates a zeroed recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		levels:          make(map[contracts.VerificationLevel]*LevelStats),
		agentExclusions: make(map[string]uint64),
	}
}

// RecordEvaluation counts one completed evaluation.
func (r *Recorder) RecordEvaluation(decision contracts.Decision, undetermined bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalEvaluations++
	if undetermined {
		r.undetermined++
	}
	if decision == contracts.DecisionAllow {
		r.approved++
	} else {
		r.denied++
	}
}

// RecordRound counts one dispatch round at a level.
func (r *Recorder) RecordRound(level contracts.VerificationLevel, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats, ok := r.levels[level]
	if !ok {
		stats = &LevelStats{}
		r.levels[level] = stats
	}
	stats.Rounds++
	stats.TotalLatency += latency
	if latency > stats.MaxLatency {
		stats.MaxLatency = latency
	}
}

// RecordExclusion counts one agent abstention.
func (r *Recorder) RecordExclusion(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agentExclusions[agentID]++
}

// RecordValidationRejection counts a malformed submission.
func (r *Recorder) RecordValidationRejection() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validationRejected++
}

// RecordBudgetRejection counts a pre-dispatch budget denial.
func (r *Recorder) RecordBudgetRejection() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.budgetRejected++
}

// RecordIntegrityFailure counts a fatal proof chain mismatch.
func (r *Recorder) RecordIntegrityFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.integrityFailures++
}

// Snapshot returns a copy of all counters.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		TotalEvaluations:   r.totalEvaluations,
		Approved:           r.approved,
		Denied:             r.denied,
		Undetermined:       r.undetermined,
		ValidationRejected: r.validationRejected,
		BudgetRejected:     r.budgetRejected,
		IntegrityFailures:  r.integrityFailures,
		Levels:             make(map[contracts.VerificationLevel]LevelStats, len(r.levels)),
		AgentExclusions:    make(map[string]uint64, len(r.agentExclusions)),
	}
	if r.totalEvaluations > 0 {
		snap.ApprovalRate = float64(r.approved) / float64(r.totalEvaluations)
	}
	for level, stats := range r.levels {
		snap.Levels[level] = *stats
	}
	for id, n := range r.agentExclusions {
		snap.AgentExclusions[id] = n
	}
	return snap
}
