// Package contracts defines the shared data contracts of the
// constitutional evaluation engine: actions, agent votes, verification
// levels, evaluation results, proof chain entries, and the caller
// visible error taxonomy.
//
// Everything here is a plain value type. Once an Action is submitted
// and once a result or proof entry is produced, it is never mutated.
package contracts

import "time"

// Capability classifies what an agent evaluates. The set is open:
// new capabilities are introduced by registration, never by code
// changes in the engine.
type Capability string

const (
	CapabilitySafety         Capability = "safety"
	CapabilityFairness       Capability = "fairness"
	CapabilityPrivacy        Capability = "privacy"
	CapabilityPerformance    Capability = "performance"
	CapabilityCausal         Capability = "causal"
	CapabilityAdversarial    Capability = "adversarial"
	CapabilityExplainability Capability = "explainability"
	CapabilityBias           Capability = "bias"
	CapabilityEthics         Capability = "ethics"
	CapabilityCompliance     Capability = "compliance"
)

// Action is the unit of work submitted for policy evaluation.
// Immutable once produced by the normalizer.
type Action struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Description string         `json:"description,omitempty"`
	Actor       string         `json:"actor"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
	// RequestedLevel is the caller's desired starting rigor.
	// Zero means "engine default".
	RequestedLevel VerificationLevel `json:"requested_level,omitempty"`
	// Fingerprint is the deterministic content hash over the action's
	// canonical encoding. It excludes the generated ID and submission
	// time so that identical content always fingerprints identically.
	Fingerprint string    `json:"fingerprint"`
	SubmittedAt time.Time `json:"submitted_at"`
}
