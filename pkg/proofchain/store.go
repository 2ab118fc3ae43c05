package proofchain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/covenant-ai/covenant/core/pkg/contracts"
)

// ErrChainNotFound is returned when no chain exists for an action.
var ErrChainNotFound = errors.New("proof chain not found")

// Store persists completed proof chains, keyed by action id. External
// consumers (audit sinks, anchoring services) read through it; nothing
// ever rewrites a stored chain.
type Store interface {
	SaveChain(ctx context.Context, actionID string, entries []contracts.ProofEntry) error
	Chain(ctx context.Context, actionID string) ([]contracts.ProofEntry, error)
}

// MemoryStore is a thread-safe in-memory Store.
type MemoryStore struct {
	mu     sync.RWMutex
	chains map[string][]contracts.ProofEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chains: make(map[string][]contracts.ProofEntry)}
}

// SaveChain stores a chain. A chain is written once per action;
// re-saving the same action id is rejected to preserve append-only
// semantics.
func (s *MemoryStore) SaveChain(ctx context.Context, actionID string, entries []contracts.ProofEntry) error {
	if actionID == "" {
		return fmt.Errorf("action id must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.chains[actionID]; exists {
		return fmt.Errorf("chain for action %s already stored", actionID)
	}
	chain := make([]contracts.ProofEntry, len(entries))
	copy(chain, entries)
	s.chains[actionID] = chain
	return nil
}

// Chain returns the stored chain for an action.
func (s *MemoryStore) Chain(ctx context.Context, actionID string) ([]contracts.ProofEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chain, ok := s.chains[actionID]
	if !ok {
		return nil, fmt.Errorf("%w: action %s", ErrChainNotFound, actionID)
	}
	out := make([]contracts.ProofEntry, len(chain))
	copy(out, chain)
	return out, nil
}
