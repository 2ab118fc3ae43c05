//go:build property
// +build property

// Package consensus_test contains property-based tests for aggregation
// bounds and veto dominance.
package consensus_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/covenant-ai/covenant/core/pkg/agents"
	"github.com/covenant-ai/covenant/core/pkg/consensus"
	"github.com/covenant-ai/covenant/core/pkg/contracts"
)

func noopEvaluate(ctx context.Context, action *contracts.Action) (*contracts.AgentVote, error) {
	return nil, nil
}

func rosterWithVotes(confidences []float64, denyMask uint8) ([]*agents.Agent, map[string]*contracts.AgentVote) {
	registry := agents.NewRegistry()
	votes := make(map[string]*contracts.AgentVote, len(confidences))
	for i, c := range confidences {
		id := fmt.Sprintf("agent-%02d", i)
		_ = registry.Register(agents.Spec{ID: id, Capability: contracts.CapabilitySafety, Weight: 1}, noopEvaluate)
		vote := contracts.VoteAllow
		if denyMask&(1<<uint(i%8)) != 0 {
			vote = contracts.VoteDeny
		}
		votes[id] = &contracts.AgentVote{AgentID: id, Vote: vote, Confidence: c}
	}
	return registry.ParticipantsFor(nil), votes
}

// TestAggregateBounds verifies score and confidence stay in [0,1] for
// any vote combination.
func TestAggregateBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("score and confidence are bounded", prop.ForAll(
		func(confidences []float64, denyMask uint8) bool {
			participants, votes := rosterWithVotes(confidences, denyMask)
			out := consensus.Aggregate(participants, votes, consensus.DefaultConfig())
			return out.Score >= 0 && out.Score <= 1 && out.Confidence >= 0 && out.Confidence <= 1
		},
		gen.SliceOf(gen.Float64Range(0, 1)),
		gen.UInt8(),
	))

	properties.TestingRun(t)
}

// TestVetoAlwaysDenies verifies a veto-capable deny forces the final
// decision regardless of the other votes.
func TestVetoAlwaysDenies(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("veto deny dominates any aggregate", prop.ForAll(
		func(confidences []float64, vetoConfidence float64) bool {
			registry := agents.NewRegistry()
			votes := make(map[string]*contracts.AgentVote)
			_ = registry.Register(agents.Spec{ID: "veto-agent", Capability: contracts.CapabilitySafety, Weight: 1, Veto: true}, noopEvaluate)
			votes["veto-agent"] = &contracts.AgentVote{AgentID: "veto-agent", Vote: contracts.VoteDeny, Confidence: vetoConfidence}
			for i, c := range confidences {
				id := fmt.Sprintf("agent-%02d", i)
				_ = registry.Register(agents.Spec{ID: id, Capability: contracts.CapabilityEthics, Weight: 1}, noopEvaluate)
				votes[id] = &contracts.AgentVote{AgentID: id, Vote: contracts.VoteAllow, Confidence: c}
			}

			out := consensus.Aggregate(registry.ParticipantsFor(nil), votes, consensus.DefaultConfig())
			return out.Decision == contracts.DecisionDeny && out.VetoFired && out.Confidence == 1.0
		},
		gen.SliceOf(gen.Float64Range(0, 1)),
		gen.Float64Range(0.01, 1),
	))

	properties.TestingRun(t)
}
