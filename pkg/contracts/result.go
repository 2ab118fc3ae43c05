package contracts

import "time"

// Decision is the engine's final verdict on an action.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
)

// GenesisHash is the fixed previous-hash value of the first proof
// chain entry.
const GenesisHash = "genesis"

// ProofEntryType categorizes a proof chain entry.
type ProofEntryType string

const (
	ProofEntryFingerprint ProofEntryType = "fingerprint"
	ProofEntryVote        ProofEntryType = "vote"
	ProofEntryAggregate   ProofEntryType = "aggregate"
	ProofEntryTransition  ProofEntryType = "transition"
)

// ProofEntry is one link of the append-only, hash-chained audit
// record of an evaluation. ContentHash is computed over the entry's
// canonical payload concatenated with PrevHash; the timestamp is
// metadata and does not participate in the hash.
type ProofEntry struct {
	Sequence    uint64         `json:"sequence"` // starts at 0
	EntryType   ProofEntryType `json:"entry_type"`
	ContentHash string         `json:"content_hash"`
	PrevHash    string         `json:"prev_hash"`
	Timestamp   time.Time      `json:"timestamp"`
	Payload     map[string]any `json:"payload"`
}

// EvaluationResult is created once per completed evaluation and is
// immutable thereafter.
type EvaluationResult struct {
	ActionID   string   `json:"action_id"`
	Decision   Decision `json:"decision"`
	Confidence float64  `json:"confidence"` // in [0,1]
	Score      float64  `json:"score"`      // normalized consensus score in [0,1]
	Violations []string `json:"violations,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	// LevelReached is the highest verification level the evaluation
	// terminated at.
	LevelReached VerificationLevel `json:"level_reached"`
	// Undetermined is set when the ladder was exhausted without a
	// confident decision. Policy is fail-closed: Decision is deny.
	Undetermined bool          `json:"undetermined,omitempty"`
	ProofChain   []ProofEntry  `json:"proof_chain"`
	Latency      time.Duration `json:"latency_ns"`
	EvaluatedAt  time.Time     `json:"evaluated_at"`
}
