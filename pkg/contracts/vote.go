package contracts

import "time"

// Vote is an agent's verdict on an action.
type Vote string

const (
	VoteAllow Vote = "allow"
	VoteDeny  Vote = "deny"
)

// AgentVote is produced once per agent per dispatch round and never
// mutated. An agent that times out or errors produces no vote at all;
// it is recorded as an exclusion, not as a vote.
type AgentVote struct {
	AgentID    string        `json:"agent_id"`
	Vote       Vote          `json:"vote"`
	Confidence float64       `json:"confidence"` // in [0,1]
	Violations []string      `json:"violations,omitempty"`
	Rationale  string        `json:"rationale,omitempty"`
	Latency    time.Duration `json:"latency_ns"`
}
