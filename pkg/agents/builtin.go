package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/covenant-ai/covenant/core/pkg/contracts"
)

// Default roster weights. Safety carries veto power; everything else
// contributes weight only.
const defaultWeight = 1.0

// RegisterDefaults installs the six standard evaluators: safety,
// privacy, fairness, adversarial, ethics, and the CEL-backed
// compliance agent with its default rule set.
func RegisterDefaults(r *Registry) error {
	compliance, err := NewComplianceAgent(nil)
	if err != nil {
		return err
	}

	specs := []struct {
		spec Spec
		fn   EvaluateFunc
	}{
		{Spec{ID: "safety-monitor", Capability: contracts.CapabilitySafety, Weight: defaultWeight, Veto: true}, SafetyEvaluator},
		{Spec{ID: "privacy-guardian", Capability: contracts.CapabilityPrivacy, Weight: defaultWeight}, PrivacyEvaluator},
		{Spec{ID: "fairness-auditor", Capability: contracts.CapabilityFairness, Weight: defaultWeight}, FairnessEvaluator},
		{Spec{ID: "adversarial-tester", Capability: contracts.CapabilityAdversarial, Weight: defaultWeight}, AdversarialEvaluator},
		{Spec{ID: "ethics-reviewer", Capability: contracts.CapabilityEthics, Weight: defaultWeight}, EthicsEvaluator},
		{Spec{ID: "compliance-officer", Capability: contracts.CapabilityCompliance, Weight: defaultWeight}, compliance.Evaluate},
	}
	for _, s := range specs {
		if err := r.Register(s.spec, s.fn); err != nil {
			return err
		}
	}
	return nil
}

// SafetyEvaluator denies actions whose parameters declare harm or a
// risk score above 0.7.
func SafetyEvaluator(ctx context.Context, action *contracts.Action) (*contracts.AgentVote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if numberParam(action.Parameters, "harm") > 0 {
		return deny(0.95, "declared harm is never acceptable",
			"safety: potential harm detected"), nil
	}
	if risk := numberParam(action.Parameters, "risk"); risk > 0.7 {
		return deny(0.9, fmt.Sprintf("risk score %.2f exceeds 0.70", risk),
			"safety: risk above tolerance"), nil
	}
	return allow(0.9, "no safety signals in parameters"), nil
}

// PrivacyEvaluator denies PII handling without recorded consent and
// flags restricted identifier keys.
func PrivacyEvaluator(ctx context.Context, action *contracts.Action) (*contracts.AgentVote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	restricted := []string{"ssn", "social_security", "credit_card", "cc_number"}
	var violations []string
	for key := range action.Parameters {
		lower := strings.ToLower(key)
		for _, bad := range restricted {
			if lower == bad {
				violations = append(violations, "privacy: restricted key "+key)
			}
		}
	}
	if len(violations) > 0 {
		return deny(0.9, "restricted identifiers present in parameters", violations...), nil
	}

	if boolParam(action.Parameters, "contains_pii") && !boolParam(action.Context, "consent") {
		return deny(0.85, "PII processing requires consent in context",
			"privacy: PII without consent"), nil
	}
	return allow(0.9, "no privacy signals"), nil
}

// FairnessEvaluator denies actions with a declared bias score above
// 0.3.
func FairnessEvaluator(ctx context.Context, action *contracts.Action) (*contracts.AgentVote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if bias := numberParam(action.Parameters, "bias_score"); bias > 0.3 {
		return deny(0.8, fmt.Sprintf("bias score %.2f exceeds 0.30", bias),
			"fairness: bias above tolerance"), nil
	}
	return allow(0.85, "no fairness signals"), nil
}

// AdversarialEvaluator denies actions whose description or string
// parameters carry prompt-injection markers.
func AdversarialEvaluator(ctx context.Context, action *contracts.Action) (*contracts.AgentVote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	markers := []string{"ignore previous instructions", "jailbreak", "system prompt override"}
	haystacks := []string{strings.ToLower(action.Description)}
	for _, v := range action.Parameters {
		if s, ok := v.(string); ok {
			haystacks = append(haystacks, strings.ToLower(s))
		}
	}
	for _, h := range haystacks {
		for _, m := range markers {
			if strings.Contains(h, m) {
				return deny(0.9, "injection marker detected: "+m,
					"adversarial: injection attempt"), nil
			}
		}
	}
	return allow(0.85, "no adversarial markers"), nil
}

// EthicsEvaluator denies deceptive or manipulative actions.
func EthicsEvaluator(ctx context.Context, action *contracts.Action) (*contracts.AgentVote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if boolParam(action.Context, "deceptive") || action.Type == "manipulation" {
		return deny(0.85, "deceptive intent declared",
			"ethics: deceptive action"), nil
	}
	return allow(0.85, "no ethics signals"), nil
}

func allow(confidence float64, rationale string) *contracts.AgentVote {
	return &contracts.AgentVote{Vote: contracts.VoteAllow, Confidence: confidence, Rationale: rationale}
}

func deny(confidence float64, rationale string, violations ...string) *contracts.AgentVote {
	return &contracts.AgentVote{
		Vote:       contracts.VoteDeny,
		Confidence: confidence,
		Rationale:  rationale,
		Violations: violations,
	}
}

func numberParam(m map[string]any, key string) float64 {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case interface{ Float64() (float64, error) }: // json.Number
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func boolParam(m map[string]any, key string) bool {
	if m == nil {
		return false
	}
	b, _ := m[key].(bool)
	return b
}
