// Package audit exports verified proof chains to external consumers.
//
// Export is fail-closed: a chain that does not verify is never handed
// out, regardless of what the store returned.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/covenant-ai/covenant/core/pkg/canonicalize"
	"github.com/covenant-ai/covenant/core/pkg/contracts"
	"github.com/covenant-ai/covenant/core/pkg/proofchain"
)

// Manifest wraps an exported chain with a checksum over its entry
// hashes, so a consumer can detect truncation or reordering without
// re-verifying every payload.
type Manifest struct {
	ActionID   string                 `json:"action_id"`
	Entries    []contracts.ProofEntry `json:"entries"`
	EntryCount int                    `json:"entry_count"`
	HeadHash   string                 `json:"head_hash"`
	Checksum   string                 `json:"checksum"`
	ExportedAt time.Time              `json:"exported_at"`
}

// Exporter reads chains from a store and packages them for export.
type Exporter struct {
	store  proofchain.Store
	logger *slog.Logger
	clock  func() time.Time
}

// NewExporter creates an exporter over the given store.
func NewExporter(store proofchain.Store) *Exporter {
	return &Exporter{
		store:  store,
		logger: slog.Default().With("component", "audit"),
		clock:  time.Now,
	}
}

// WithClock overrides the clock for deterministic testing.
func (e *Exporter) WithClock(clock func() time.Time) *Exporter {
	e.clock = clock
	return e
}

// ExportProofChain loads, verifies, and packages the chain for an
// action. A chain that fails verification returns the integrity error
// and no manifest.
func (e *Exporter) ExportProofChain(ctx context.Context, actionID string) (*Manifest, error) {
	entries, err := e.store.Chain(ctx, actionID)
	if err != nil {
		return nil, err
	}
	if err := proofchain.VerifyEntries(entries); err != nil {
		e.logger.Error("refusing to export broken chain", "action_id", actionID, "error", err)
		return nil, fmt.Errorf("audit: chain for action %s failed verification: %w", actionID, err)
	}

	head := contracts.GenesisHash
	if len(entries) > 0 {
		head = entries[len(entries)-1].ContentHash
	}
	return &Manifest{
		ActionID:   actionID,
		Entries:    entries,
		EntryCount: len(entries),
		HeadHash:   head,
		Checksum:   chainChecksum(entries),
		ExportedAt: e.clock().UTC(),
	}, nil
}

// chainChecksum hashes the concatenated content hashes in order.
func chainChecksum(entries []contracts.ProofEntry) string {
	var b strings.Builder
	for _, entry := range entries {
		b.WriteString(entry.ContentHash)
	}
	return canonicalize.HashBytes([]byte(b.String()))
}
