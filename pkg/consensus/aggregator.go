// Package consensus combines agent votes into a single decision,
// confidence, and violation set.
//
// The aggregation is fail-closed at every ambiguity: a score exactly
// at the threshold denies, an all-abstain round scores zero, and a
// deny from any veto-capable participant overrides the aggregate
// entirely.
package consensus

import (
	"github.com/covenant-ai/covenant/core/pkg/agents"
	"github.com/covenant-ai/covenant/core/pkg/contracts"
)

// DefaultApprovalThreshold is the documented default; it is a
// configuration value, not a constant of the algorithm.
const DefaultApprovalThreshold = 0.66

// Config parameterizes aggregation.
type Config struct {
	// ApprovalThreshold is compared against the normalized score.
	// allow requires score strictly above it.
	ApprovalThreshold float64
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{ApprovalThreshold: DefaultApprovalThreshold}
}

// Outcome is the aggregate of one round.
type Outcome struct {
	Decision   contracts.Decision
	Confidence float64 // in [0,1]
	Score      float64 // normalized weighted consensus in [0,1]
	Violations []string
	// VetoFired is set when a veto-capable participant voted deny;
	// it short-circuits escalation.
	VetoFired bool
	VetoAgent string
	// Participating counts agents that returned a vote.
	Participating int
}

// Aggregate combines the round's votes.
//
// Raw score is Σ(signed·weight·confidence)/Σ(weight) over voting
// participants, signed being +1 for allow and −1 for deny, then
// normalized into [0,1] as (raw+1)/2. Confidence is the weighted mean
// of vote confidences. Participants are walked in registry order so
// violation ordering is deterministic.
func Aggregate(participants []*agents.Agent, votes map[string]*contracts.AgentVote, cfg Config) Outcome {
	out := Outcome{Decision: contracts.DecisionDeny}

	var weightSum, scoreSum, confSum float64
	for _, agent := range participants {
		vote, ok := votes[agent.ID]
		if !ok {
			continue
		}
		out.Participating++

		signed := 1.0
		if vote.Vote == contracts.VoteDeny {
			signed = -1.0
			if agent.Veto && !out.VetoFired {
				out.VetoFired = true
				out.VetoAgent = agent.ID
			}
		}
		weightSum += agent.Weight
		scoreSum += signed * agent.Weight * vote.Confidence
		confSum += agent.Weight * vote.Confidence
		out.Violations = append(out.Violations, vote.Violations...)
	}

	if weightSum == 0 {
		// All abstained (or zero total weight): nothing to trust.
		out.Score = 0
		out.Confidence = 0
		return out
	}

	out.Score = clamp01((scoreSum/weightSum + 1) / 2)
	out.Confidence = clamp01(confSum / weightSum)

	if out.VetoFired {
		// Maximal certainty on a safety-critical rejection.
		out.Decision = contracts.DecisionDeny
		out.Confidence = 1.0
		return out
	}

	// Strict inequality: a score exactly at the threshold denies.
	if out.Score > cfg.ApprovalThreshold {
		out.Decision = contracts.DecisionAllow
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
