// Package agents holds the evaluator registry and the built-in
// evaluation agents.
//
// Agents are polymorphic over a single contract: Evaluate an action
// within a deadline and return a vote. New capabilities are added by
// registration, never by subclassing; an LLM-backed or remote
// evaluator registers the same way the built-in rule agents do.
package agents

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/covenant-ai/covenant/core/pkg/contracts"
)

var (
	// ErrAgentNotFound is returned when an agent id is not registered.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrDuplicateAgent is returned when an agent id is already taken.
	ErrDuplicateAgent = errors.New("agent already registered")
)

// EvaluateFunc is the single evaluation contract every agent
// implements. The context carries the per-level deadline; an agent
// that does not return before it expires is treated as abstaining.
type EvaluateFunc func(ctx context.Context, action *contracts.Action) (*contracts.AgentVote, error)

// Spec describes a registered agent.
type Spec struct {
	ID         string               `json:"id"`
	Capability contracts.Capability `json:"capability"`
	Weight     float64              `json:"weight"`
	// Veto makes a deny vote from this agent force the final decision
	// to deny regardless of the aggregate score.
	Veto bool `json:"veto"`
}

// Agent is a registered evaluator.
type Agent struct {
	Spec
	evaluate EvaluateFunc
}

// Evaluate runs the agent's evaluation function.
func (a *Agent) Evaluate(ctx context.Context, action *contracts.Action) (*contracts.AgentVote, error) {
	return a.evaluate(ctx, action)
}

// Registry is the read-mostly set of registered evaluators. It is
// safe for concurrent reads across evaluation rounds.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*Agent
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]*Agent)}
}

// Register adds an evaluator under spec. Weight must be non-negative
// and the id unique.
func (r *Registry) Register(spec Spec, fn EvaluateFunc) error {
	if spec.ID == "" {
		return fmt.Errorf("agent id must not be empty")
	}
	if spec.Capability == "" {
		return fmt.Errorf("agent %s: capability must not be empty", spec.ID)
	}
	if spec.Weight < 0 {
		return fmt.Errorf("agent %s: weight must be non-negative", spec.ID)
	}
	if fn == nil {
		return fmt.Errorf("agent %s: evaluate function must not be nil", spec.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[spec.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateAgent, spec.ID)
	}
	r.agents[spec.ID] = &Agent{Spec: spec, evaluate: fn}
	return nil
}

// Unregister removes an agent (e.g. for revocation).
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[id]; !exists {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	delete(r.agents, id)
	return nil
}

// Get returns a registered agent by id.
func (r *Registry) Get(id string) (*Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return a, nil
}

// List returns all agents ordered by id.
func (r *Registry) List() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortAgents(r.agents, nil)
}

// ParticipantsFor resolves the agent subset active at a verification
// level, ordered deterministically by agent id so proof chain hashing
// is reproducible regardless of completion order. An empty capability
// list means every registered agent participates.
func (r *Registry) ParticipantsFor(capabilities []contracts.Capability) []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var filter map[contracts.Capability]bool
	if len(capabilities) > 0 {
		filter = make(map[contracts.Capability]bool, len(capabilities))
		for _, c := range capabilities {
			filter[c] = true
		}
	}
	return sortAgents(r.agents, filter)
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

func sortAgents(agents map[string]*Agent, filter map[contracts.Capability]bool) []*Agent {
	out := make([]*Agent, 0, len(agents))
	for _, a := range agents {
		if filter == nil || filter[a.Capability] {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
