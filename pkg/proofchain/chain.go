// Package proofchain builds the append-only, hash-linked audit record
// of an evaluation round.
//
// Each entry's content hash is computed over its canonical (JCS)
// payload concatenated with the previous entry's content hash, so any
// mutation of a past entry invalidates every hash after it. Integrity
// is verified by recomputation, never by trusting stored pointers.
package proofchain

import (
	"fmt"
	"sync"
	"time"

	"github.com/covenant-ai/covenant/core/pkg/canonicalize"
	"github.com/covenant-ai/covenant/core/pkg/contracts"
)

// Builder accumulates one evaluation's proof chain. Entries are only
// ever appended; each round owns its own builder so no cross-round
// locking is needed.
type Builder struct {
	mu       sync.Mutex
	actionID string
	entries  []contracts.ProofEntry
	headHash string
	clock    func() time.Time
}

// NewBuilder creates an empty chain for one action.
func NewBuilder(actionID string) *Builder {
	return &Builder{
		actionID: actionID,
		headHash: contracts.GenesisHash,
		clock:    time.Now,
	}
}

// WithClock overrides the clock for deterministic testing.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

// AppendFingerprint records the action fingerprint as the chain root.
func (b *Builder) AppendFingerprint(fingerprint string) error {
	return b.append(contracts.ProofEntryFingerprint, map[string]any{
		"action_id":   b.actionID,
		"fingerprint": fingerprint,
	})
}

// AppendVote records one participating agent's vote. Callers append
// votes in the registry's deterministic agent order, independent of
// real completion order, so chain hashes are reproducible.
func (b *Builder) AppendVote(level contracts.VerificationLevel, vote *contracts.AgentVote) error {
	return b.append(contracts.ProofEntryVote, map[string]any{
		"level":      level.String(),
		"agent_id":   vote.AgentID,
		"vote":       string(vote.Vote),
		"confidence": vote.Confidence,
		"violations": vote.Violations,
		"rationale":  vote.Rationale,
	})
}

// AppendAggregate records the round's combined outcome.
func (b *Builder) AppendAggregate(level contracts.VerificationLevel, decision contracts.Decision, score, confidence float64, vetoFired bool) error {
	return b.append(contracts.ProofEntryAggregate, map[string]any{
		"level":      level.String(),
		"decision":   string(decision),
		"score":      score,
		"confidence": confidence,
		"veto":       vetoFired,
	})
}

// AppendTransition records an escalation between levels.
func (b *Builder) AppendTransition(from, to contracts.VerificationLevel, reason string) error {
	return b.append(contracts.ProofEntryTransition, map[string]any{
		"from":   from.String(),
		"to":     to.String(),
		"reason": reason,
	})
}

func (b *Builder) append(entryType contracts.ProofEntryType, payload map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	hash, err := entryHash(payload, b.headHash)
	if err != nil {
		return fmt.Errorf("proofchain: %w", err)
	}

	entry := contracts.ProofEntry{
		Sequence:    uint64(len(b.entries)),
		EntryType:   entryType,
		ContentHash: hash,
		PrevHash:    b.headHash,
		Timestamp:   b.clock(),
		Payload:     payload,
	}
	b.entries = append(b.entries, entry)
	b.headHash = hash
	return nil
}

// Entries returns a copy of the chain so far.
func (b *Builder) Entries() []contracts.ProofEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]contracts.ProofEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Head returns the current head hash.
func (b *Builder) Head() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.headHash
}

// Len returns the number of entries.
func (b *Builder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Verify recomputes every hash in the chain. Any mismatch is a
// ProofIntegrityError and fatal for the evaluation that produced the
// chain.
func (b *Builder) Verify() error {
	return VerifyEntries(b.Entries())
}

// VerifyEntries checks an ordered chain: sequence monotonicity, prev
// hash linkage, and content hash recomputation from the stored
// payloads.
func VerifyEntries(entries []contracts.ProofEntry) error {
	prev := contracts.GenesisHash
	for i, entry := range entries {
		if entry.Sequence != uint64(i) {
			return &contracts.ProofIntegrityError{Sequence: entry.Sequence,
				Reason: fmt.Sprintf("sequence gap: expected %d", i)}
		}
		if entry.PrevHash != prev {
			return &contracts.ProofIntegrityError{Sequence: entry.Sequence,
				Reason: fmt.Sprintf("prev hash mismatch: expected %s, got %s", prev, entry.PrevHash)}
		}
		computed, err := entryHash(entry.Payload, entry.PrevHash)
		if err != nil {
			return &contracts.ProofIntegrityError{Sequence: entry.Sequence,
				Reason: fmt.Sprintf("recompute failed: %v", err)}
		}
		if computed != entry.ContentHash {
			return &contracts.ProofIntegrityError{Sequence: entry.Sequence, Reason: "content hash mismatch"}
		}
		prev = entry.ContentHash
	}
	return nil
}

func entryHash(payload map[string]any, prevHash string) (string, error) {
	canonical, err := canonicalize.JCS(payload)
	if err != nil {
		return "", fmt.Errorf("canonicalize payload: %w", err)
	}
	return canonicalize.HashBytes(append(canonical, []byte(prevHash)...)), nil
}
