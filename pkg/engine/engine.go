// Package engine is the constitutional evaluation core: it normalizes
// a submitted action, fans it out to the registered agents through the
// verification level ladder, aggregates their votes, and returns a
// decision backed by a hash-linked proof chain.
//
// The level controller is an explicit finite state machine over the
// ordered ladder. Escalation is monotonic and stops at the ladder
// maximum, so worst-case latency is bounded and an evaluation cannot
// loop.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/covenant-ai/covenant/core/pkg/agents"
	"github.com/covenant-ai/covenant/core/pkg/budget"
	"github.com/covenant-ai/covenant/core/pkg/consensus"
	"github.com/covenant-ai/covenant/core/pkg/contracts"
	"github.com/covenant-ai/covenant/core/pkg/dispatch"
	"github.com/covenant-ai/covenant/core/pkg/metrics"
	"github.com/covenant-ai/covenant/core/pkg/normalize"
	"github.com/covenant-ai/covenant/core/pkg/proofchain"
)

// Version identifies the engine generation for health reporting.
const Version = "6.0.0"

// Health is the engine's liveness report.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Agents  int    `json:"agents"`
}

// Engine evaluates actions against the constitutional framework.
type Engine struct {
	registry   *agents.Registry
	dispatcher *dispatch.Dispatcher
	normalizer *normalize.Normalizer
	recorder   *metrics.Recorder
	consensus  consensus.Config

	ladder       contracts.Ladder
	defaultLevel contracts.VerificationLevel

	enforcer   *budget.Enforcer
	proofStore proofchain.Store

	logger *slog.Logger
	clock  func() time.Time
}

// New creates an engine over the given registry with default ladder,
// threshold, and pool size. Collaborators (budget enforcer, proof
// store) are injected through the Set methods.
func New(registry *agents.Registry) (*Engine, error) {
	normalizer, err := normalize.New()
	if err != nil {
		return nil, err
	}
	e := &Engine{
		registry:     registry,
		dispatcher:   dispatch.New(dispatch.DefaultPoolSize),
		normalizer:   normalizer,
		recorder:     metrics.NewRecorder(),
		consensus:    consensus.DefaultConfig(),
		ladder:       contracts.DefaultLadder(),
		defaultLevel: contracts.LevelStandard,
		logger:       slog.Default().With("component", "engine"),
		clock:        time.Now,
	}
	return e, nil
}

// WithClock overrides the clock for deterministic testing.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// SetDispatcher replaces the default dispatcher (e.g. to change the
// worker pool size).
func (e *Engine) SetDispatcher(d *dispatch.Dispatcher) { e.dispatcher = d }

// SetBudgetEnforcer injects pre-dispatch budget enforcement.
func (e *Engine) SetBudgetEnforcer(enforcer *budget.Enforcer) { e.enforcer = enforcer }

// SetProofStore injects persistence for completed proof chains.
func (e *Engine) SetProofStore(store proofchain.Store) { e.proofStore = store }

// SetConsensusConfig overrides the aggregation parameters.
func (e *Engine) SetConsensusConfig(cfg consensus.Config) { e.consensus = cfg }

// SetLadder replaces the verification ladder. The ladder must be
// valid; the default starting level is clamped into it.
func (e *Engine) SetLadder(ladder contracts.Ladder) error {
	if err := ladder.Validate(); err != nil {
		return err
	}
	e.ladder = ladder
	if !ladder.Contains(e.defaultLevel) {
		e.defaultLevel = ladder.Min()
	}
	return nil
}

// SetDefaultLevel sets the starting level for actions that do not
// request one.
func (e *Engine) SetDefaultLevel(level contracts.VerificationLevel) error {
	if !e.ladder.Contains(level) {
		return fmt.Errorf("level %s is not in the ladder", level)
	}
	e.defaultLevel = level
	return nil
}

// Metrics returns a snapshot of the engine's counters.
func (e *Engine) Metrics() metrics.Snapshot { return e.recorder.Snapshot() }

// Recorder exposes the live recorder for observability bridges.
func (e *Engine) Recorder() *metrics.Recorder { return e.recorder }

// Health reports engine liveness.
func (e *Engine) Health() Health {
	return Health{Status: "healthy", Version: Version, Agents: e.registry.Len()}
}

// Submit evaluates a raw action synchronously: the caller blocks until
// a terminal decision (or Undetermined) is reached.
//
// Error classes: ValidationError and BudgetExceededError reject before
// any agent work. ProofIntegrityError aborts an otherwise complete
// round; a result with a broken chain is never returned. Per-agent
// failures never surface as errors, only as warnings in the result.
func (e *Engine) Submit(ctx context.Context, raw map[string]any) (*contracts.EvaluationResult, error) {
	start := e.clock()

	action, err := e.normalizer.Normalize(raw)
	if err != nil {
		e.recorder.RecordValidationRejection()
		return nil, err
	}

	if _, err := e.enforcer.Check(); err != nil {
		e.recorder.RecordBudgetRejection()
		e.logger.Warn("action rejected by budget", "action_id", action.ID, "error", err)
		return nil, err
	}

	builder := proofchain.NewBuilder(action.ID).WithClock(e.clock)
	if err := builder.AppendFingerprint(action.Fingerprint); err != nil {
		return nil, err
	}

	level := e.initialLevel(action.RequestedLevel)
	var (
		outcome      consensus.Outcome
		warnings     []string
		undetermined bool
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		policy, ok := e.ladder.PolicyFor(level)
		if !ok {
			return nil, fmt.Errorf("engine: no policy for level %s", level)
		}
		participants := e.registry.ParticipantsFor(policy.Capabilities)

		roundStart := e.clock()
		round := e.dispatcher.Dispatch(ctx, action, participants, policy.AgentTimeout)

		for _, ex := range round.Excluded {
			warnings = append(warnings, ex.Warning())
			e.recorder.RecordExclusion(ex.AgentID)
			if ex.Veto {
				warnings = append(warnings,
					fmt.Sprintf("veto-capable agent %s excluded: proceeding fail-closed", ex.AgentID))
			}
		}

		// Vote entries are appended in registry order, independent of
		// completion order, so chain hashes are reproducible.
		for _, agent := range participants {
			vote, voted := round.Votes[agent.ID]
			if !voted {
				continue
			}
			if err := builder.AppendVote(level, vote); err != nil {
				return nil, err
			}
		}

		outcome = consensus.Aggregate(participants, round.Votes, e.consensus)
		if err := builder.AppendAggregate(level, outcome.Decision, outcome.Score, outcome.Confidence, outcome.VetoFired); err != nil {
			return nil, err
		}
		e.recorder.RecordRound(level, e.clock().Sub(roundStart))

		if outcome.VetoFired {
			e.logger.Info("veto fired, decision is final",
				"action_id", action.ID, "agent_id", outcome.VetoAgent, "level", level.String())
			break
		}
		if outcome.Confidence >= policy.MinConfidence {
			break
		}

		next, ok := e.ladder.Next(level)
		if !ok {
			undetermined = true
			outcome.Decision = contracts.DecisionDeny
			warnings = append(warnings, fmt.Sprintf("verification exhausted at %s", level))
			e.logger.Warn("verification exhausted",
				"action_id", action.ID, "level", level.String(), "confidence", outcome.Confidence)
			break
		}

		reason := fmt.Sprintf("confidence %.2f below required %.2f", outcome.Confidence, policy.MinConfidence)
		if err := builder.AppendTransition(level, next, reason); err != nil {
			return nil, err
		}
		warnings = append(warnings, fmt.Sprintf("escalated %s -> %s: %s", level, next, reason))
		level = next
	}

	if err := builder.Verify(); err != nil {
		e.recorder.RecordIntegrityFailure()
		e.logger.Error("proof chain integrity failure", "action_id", action.ID, "error", err)
		return nil, err
	}

	result := &contracts.EvaluationResult{
		ActionID:     action.ID,
		Decision:     outcome.Decision,
		Confidence:   outcome.Confidence,
		Score:        outcome.Score,
		Violations:   outcome.Violations,
		Warnings:     warnings,
		LevelReached: level,
		Undetermined: undetermined,
		ProofChain:   builder.Entries(),
		Latency:      e.clock().Sub(start),
		EvaluatedAt:  e.clock().UTC(),
	}

	if e.proofStore != nil {
		if err := e.proofStore.SaveChain(ctx, action.ID, result.ProofChain); err != nil {
			e.logger.Error("proof chain persistence failed", "action_id", action.ID, "error", err)
		}
	}

	e.recorder.RecordEvaluation(result.Decision, result.Undetermined)
	e.logger.Info("evaluation complete",
		"action_id", action.ID,
		"decision", string(result.Decision),
		"score", result.Score,
		"confidence", result.Confidence,
		"level", level.String(),
		"chain_len", len(result.ProofChain))

	return result, nil
}

// ExportProofChain returns the persisted chain for an action; read
// only, for external audit sinks.
func (e *Engine) ExportProofChain(ctx context.Context, actionID string) ([]contracts.ProofEntry, error) {
	if e.proofStore == nil {
		return nil, fmt.Errorf("engine: no proof store configured")
	}
	return e.proofStore.Chain(ctx, actionID)
}

func (e *Engine) initialLevel(requested contracts.VerificationLevel) contracts.VerificationLevel {
	if requested == 0 || !e.ladder.Contains(requested) {
		return e.defaultLevel
	}
	return requested
}
