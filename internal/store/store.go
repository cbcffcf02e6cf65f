// Package store defines the persistence interface for vault records.
// Records are kept in their fixed byte layout keyed by derived address.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/atmx/vault-engine/internal/model"
)

// ErrNotFound is returned when no record exists at an address.
var ErrNotFound = errors.New("store: record not found")

// Record is one persisted blob.
type Record struct {
	Address model.Identity
	Kind    model.Kind
	Data    []byte
}

// Store is the persistence interface. Commit is the only write path and
// applies all records of one operation plus its journal entry atomically.
type Store interface {
	// --- Records ---

	// GetRecord returns the raw record at addr, or ErrNotFound.
	GetRecord(ctx context.Context, addr model.Identity) ([]byte, error)

	// ListRecords returns every record of a kind.
	ListRecords(ctx context.Context, kind model.Kind) ([]Record, error)

	// Commit writes records and appends entry in one atomic unit.
	Commit(ctx context.Context, records []Record, entry *model.JournalEntry) error

	// --- Immutable journal ---

	// GetJournalByWallet returns entries involving wallet, oldest first.
	GetJournalByWallet(ctx context.Context, wallet model.Identity) ([]model.JournalEntry, error)

	// ListJournal returns the most recent entries, newest first.
	ListJournal(ctx context.Context, limit int) ([]model.JournalEntry, error)
}
