package proofchain

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/covenant-ai/covenant/core/pkg/contracts"
)

// SQLiteStore persists proof chains in a SQLite database. Open the
// database with the modernc.org/sqlite driver; the store only speaks
// database/sql.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the store and its schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS proof_entries (
        action_id TEXT NOT NULL,
        sequence INTEGER NOT NULL,
        entry_type TEXT NOT NULL,
        content_hash TEXT NOT NULL,
        prev_hash TEXT NOT NULL,
        timestamp DATETIME NOT NULL,
        payload JSON NOT NULL,
        PRIMARY KEY (action_id, sequence)
    );`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// SaveChain writes all entries of a chain in one transaction. The
// primary key rejects rewrites of an already-stored sequence.
func (s *SQLiteStore) SaveChain(ctx context.Context, actionID string, entries []contracts.ProofEntry) error {
	if actionID == "" {
		return fmt.Errorf("action id must not be empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insert = `
        INSERT INTO proof_entries (action_id, sequence, entry_type, content_hash, prev_hash, timestamp, payload)
        VALUES (?, ?, ?, ?, ?, ?, ?)`
	for _, e := range entries {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload at %d: %w", e.Sequence, err)
		}
		if _, err := tx.ExecContext(ctx, insert,
			actionID, e.Sequence, string(e.EntryType), e.ContentHash, e.PrevHash,
			e.Timestamp.UTC().Format(time.RFC3339Nano), string(payload)); err != nil {
			return fmt.Errorf("insert entry %d: %w", e.Sequence, err)
		}
	}
	return tx.Commit()
}

// Chain loads the ordered chain for an action.
func (s *SQLiteStore) Chain(ctx context.Context, actionID string) ([]contracts.ProofEntry, error) {
	const query = `
        SELECT sequence, entry_type, content_hash, prev_hash, timestamp, payload
        FROM proof_entries
        WHERE action_id = ?
        ORDER BY sequence ASC`
	rows, err := s.db.QueryContext(ctx, query, actionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []contracts.ProofEntry
	for rows.Next() {
		var (
			e       contracts.ProofEntry
			etype   string
			ts      string
			payload []byte
		)
		if err := rows.Scan(&e.Sequence, &etype, &e.ContentHash, &e.PrevHash, &ts, &payload); err != nil {
			return nil, err
		}
		e.EntryType = contracts.ProofEntryType(etype)
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parse timestamp at %d: %w", e.Sequence, err)
		}
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload at %d: %w", e.Sequence, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: action %s", ErrChainNotFound, actionID)
	}
	return entries, nil
}
