// Package dispatch fans an action out to the participating agents and
// joins their votes at an explicit barrier.
//
// The round is fan-out/fan-in: every agent either returns a vote or
// hits its deadline before aggregation starts; partial results are
// never handed to the aggregator early. Agents run concurrently on a
// worker pool bounded independently of request concurrency.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/covenant-ai/covenant/core/pkg/agents"
	"github.com/covenant-ai/covenant/core/pkg/contracts"
)

// DefaultPoolSize caps concurrent agent evaluations across all rounds.
const DefaultPoolSize = 16

// Exclusion records an agent that produced no vote.
type Exclusion struct {
	AgentID string
	Reason  contracts.ExclusionReason
	Veto    bool
	Err     error
}

// Warning renders the exclusion in the result's warning format.
func (e Exclusion) Warning() string {
	return fmt.Sprintf("agent %s excluded: %s", e.AgentID, e.Reason)
}

// Round is the joined outcome of one dispatch.
type Round struct {
	// Votes maps agent id to its vote, for participants that returned
	// in time. Iteration order is up to the caller; the proof chain
	// walks participants in registry order.
	Votes map[string]*contracts.AgentVote
	// Excluded lists abstaining agents in registry order.
	Excluded []Exclusion
}

// Dispatcher runs evaluation rounds on a bounded worker pool.
type Dispatcher struct {
	sem    *semaphore.Weighted
	logger *slog.Logger
	clock  func() time.Time
}

// New creates a dispatcher with the given pool size.
func New(poolSize int64) *Dispatcher {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	return &Dispatcher{
		sem:    semaphore.NewWeighted(poolSize),
		logger: slog.Default().With("component", "dispatch"),
		clock:  time.Now,
	}
}

// WithClock overrides the clock for deterministic testing.
func (d *Dispatcher) WithClock(clock func() time.Time) *Dispatcher {
	d.clock = clock
	return d
}

type agentResult struct {
	vote *contracts.AgentVote
	err  error
}

// Dispatch runs every participant against the action with a per-agent
// deadline and joins at the barrier. A participant that errors or
// misses its deadline becomes an Exclusion; its in-flight call is
// cancelled cooperatively and abandoned rather than awaited.
func (d *Dispatcher) Dispatch(ctx context.Context, action *contracts.Action, participants []*agents.Agent, timeout time.Duration) *Round {
	results := make([]agentResult, len(participants))
	done := make(chan int, len(participants))

	for i, agent := range participants {
		go func(i int, agent *agents.Agent) {
			results[i] = d.runAgent(ctx, action, agent, timeout)
			done <- i
		}(i, agent)
	}
	for range participants {
		<-done
	}

	round := &Round{Votes: make(map[string]*contracts.AgentVote, len(participants))}
	for i, agent := range participants {
		res := results[i]
		switch {
		case res.err == nil && res.vote != nil:
			round.Votes[agent.ID] = res.vote
		case isDeadline(res.err):
			round.Excluded = append(round.Excluded, Exclusion{
				AgentID: agent.ID, Reason: contracts.ExclusionTimeout, Veto: agent.Veto, Err: res.err,
			})
		default:
			err := res.err
			if err == nil {
				err = fmt.Errorf("agent returned no vote")
			}
			round.Excluded = append(round.Excluded, Exclusion{
				AgentID: agent.ID, Reason: contracts.ExclusionError, Veto: agent.Veto, Err: err,
			})
		}
	}

	for _, ex := range round.Excluded {
		d.logger.Warn("agent excluded from round",
			"agent_id", ex.AgentID, "action_id", action.ID, "reason", string(ex.Reason), "error", ex.Err)
	}
	return round
}

// runAgent executes a single agent under the pool bound and deadline.
// The agent call itself runs in an inner goroutine: if the deadline
// fires while the agent ignores cancellation, the slot is released and
// the call abandoned so the barrier never blocks on a stuck agent.
func (d *Dispatcher) runAgent(ctx context.Context, action *contracts.Action, agent *agents.Agent, timeout time.Duration) agentResult {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return agentResult{err: err}
	}
	defer d.sem.Release(1)

	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := d.clock()
	inner := make(chan agentResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				inner <- agentResult{err: fmt.Errorf("agent panic: %v", r)}
			}
		}()
		vote, err := agent.Evaluate(actx, action)
		inner <- agentResult{vote: vote, err: err}
	}()

	select {
	case res := <-inner:
		if res.err == nil && res.vote != nil {
			res.vote.AgentID = agent.ID
			res.vote.Latency = d.clock().Sub(start)
			if err := validVote(res.vote); err != nil {
				return agentResult{err: err}
			}
		}
		return res
	case <-actx.Done():
		return agentResult{err: actx.Err()}
	}
}

func validVote(v *contracts.AgentVote) error {
	if v.Vote != contracts.VoteAllow && v.Vote != contracts.VoteDeny {
		return fmt.Errorf("invalid vote value %q", v.Vote)
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return fmt.Errorf("confidence %.3f out of [0,1]", v.Confidence)
	}
	return nil
}

func isDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
