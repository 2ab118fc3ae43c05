package proofchain

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covenant-ai/covenant/core/pkg/contracts"
)

func newMockStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS proof_entries")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	store, err := NewSQLiteStore(db)
	require.NoError(t, err)
	return store, mock
}

func sampleEntries(t *testing.T) []contracts.ProofEntry {
	t.Helper()
	b := NewBuilder("a-1").WithClock(fixedClock())
	require.NoError(t, b.AppendFingerprint("sha256:abc"))
	require.NoError(t, b.AppendAggregate(contracts.LevelStandard, contracts.DecisionAllow, 0.95, 0.9, false))
	return b.Entries()
}

func TestSQLiteStoreSaveChain(t *testing.T) {
	store, mock := newMockStore(t)
	entries := sampleEntries(t)

	mock.ExpectBegin()
	for _, e := range entries {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO proof_entries")).
			WithArgs("a-1", e.Sequence, string(e.EntryType), e.ContentHash, e.PrevHash,
				sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, store.SaveChain(context.Background(), "a-1", entries))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStoreSaveChainRollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)
	entries := sampleEntries(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO proof_entries")).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := store.SaveChain(context.Background(), "a-1", entries)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStoreChain(t *testing.T) {
	store, mock := newMockStore(t)
	entries := sampleEntries(t)

	rows := sqlmock.NewRows([]string{"sequence", "entry_type", "content_hash", "prev_hash", "timestamp", "payload"})
	for _, e := range entries {
		rows.AddRow(e.Sequence, string(e.EntryType), e.ContentHash, e.PrevHash,
			e.Timestamp.UTC().Format(time.RFC3339Nano), `{"action_id":"a-1","fingerprint":"sha256:abc"}`)
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT sequence, entry_type, content_hash, prev_hash, timestamp, payload")).
		WithArgs("a-1").
		WillReturnRows(rows)

	got, err := store.Chain(context.Background(), "a-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, entries[0].ContentHash, got[0].ContentHash)
	assert.Equal(t, contracts.ProofEntryFingerprint, got[0].EntryType)
}

func TestSQLiteStoreChainNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT sequence")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"sequence", "entry_type", "content_hash", "prev_hash", "timestamp", "payload"}))

	_, err := store.Chain(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrChainNotFound)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	entries := sampleEntries(t)

	require.NoError(t, store.SaveChain(context.Background(), "a-1", entries))

	got, err := store.Chain(context.Background(), "a-1")
	require.NoError(t, err)
	assert.Equal(t, entries, got)
	assert.NoError(t, VerifyEntries(got))

	// Append-only: re-saving is rejected.
	assert.Error(t, store.SaveChain(context.Background(), "a-1", entries))

	_, err = store.Chain(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrChainNotFound)
}
