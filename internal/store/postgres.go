package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/atmx/vault-engine/internal/model"
)

// Schema creates the tables PostgresStore expects.
const Schema = `
CREATE TABLE IF NOT EXISTS vault_records (
	address    BYTEA PRIMARY KEY,
	kind       TEXT NOT NULL,
	data       BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS vault_records_kind_idx ON vault_records (kind);

CREATE TABLE IF NOT EXISTS vault_journal (
	seq          BIGSERIAL PRIMARY KEY,
	id           UUID NOT NULL UNIQUE,
	op           TEXT NOT NULL,
	signer       BYTEA NOT NULL,
	wallet       BYTEA NOT NULL,
	counterparty BYTEA NOT NULL,
	amount       NUMERIC(26, 6) NOT NULL,
	fee          NUMERIC(26, 6) NOT NULL,
	reference    TEXT NOT NULL DEFAULT '',
	timestamp    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS vault_journal_wallet_idx ON vault_journal (wallet);
CREATE INDEX IF NOT EXISTS vault_journal_counterparty_idx ON vault_journal (counterparty);
`

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Records are stored verbatim as BYTEA; journal amounts are NUMERIC so
// they read as exact decimals in SQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies Schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRecord(ctx context.Context, addr model.Identity) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM vault_records WHERE address = $1`, addr[:]).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", addr.Short(), err)
	}
	return data, nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, kind model.Kind) ([]Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT address, data FROM vault_records WHERE kind = $1 ORDER BY updated_at`, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var addr, data []byte
		if err := rows.Scan(&addr, &data); err != nil {
			return nil, err
		}
		r := Record{Kind: kind, Data: data}
		copy(r.Address[:], addr)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Commit upserts every record and inserts the journal entry in a single
// transaction.
func (s *PostgresStore) Commit(ctx context.Context, records []Record, e *model.JournalEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range records {
		if _, err := tx.Exec(ctx,
			`INSERT INTO vault_records (address, kind, data, updated_at)
			 VALUES ($1, $2, $3, now())
			 ON CONFLICT (address) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
			r.Address[:], string(r.Kind), r.Data,
		); err != nil {
			return fmt.Errorf("store: upsert %s %s: %w", r.Kind, r.Address.Short(), err)
		}
	}

	if e != nil {
		if _, err := tx.Exec(ctx,
			`INSERT INTO vault_journal (id, op, signer, wallet, counterparty, amount, fee, reference, timestamp)
			 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8, $9)`,
			e.ID, e.Op, e.Signer[:], e.Wallet[:], e.Counterparty[:],
			model.ToDecimal(e.Amount).String(), model.ToDecimal(e.Fee).String(),
			e.Reference, e.Timestamp,
		); err != nil {
			return fmt.Errorf("store: insert journal %s: %w", e.Op, err)
		}
	}

	return tx.Commit(ctx)
}

// Put stores a record outside any operation, for seeding external
// records such as a fee policy.
func (s *PostgresStore) Put(ctx context.Context, r Record) error {
	return s.Commit(ctx, []Record{r}, nil)
}

func (s *PostgresStore) GetJournalByWallet(ctx context.Context, wallet model.Identity) ([]model.JournalEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::TEXT, op, signer, wallet, counterparty, amount::TEXT, fee::TEXT, reference, timestamp
		 FROM vault_journal WHERE wallet = $1 OR counterparty = $1 ORDER BY seq`, wallet[:])
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanJournal(rows)
}

func (s *PostgresStore) ListJournal(ctx context.Context, limit int) ([]model.JournalEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id::TEXT, op, signer, wallet, counterparty, amount::TEXT, fee::TEXT, reference, timestamp
		 FROM vault_journal ORDER BY seq DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanJournal(rows)
}

// pgxRows is the subset of pgx.Rows scanJournal needs.
type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanJournal(rows pgxRows) ([]model.JournalEntry, error) {
	var entries []model.JournalEntry
	for rows.Next() {
		var e model.JournalEntry
		var signer, wallet, counterparty []byte
		var amountS, feeS string

		if err := rows.Scan(&e.ID, &e.Op, &signer, &wallet, &counterparty,
			&amountS, &feeS, &e.Reference, &e.Timestamp); err != nil {
			return nil, err
		}
		copy(e.Signer[:], signer)
		copy(e.Wallet[:], wallet)
		copy(e.Counterparty[:], counterparty)

		amount, _ := decimal.NewFromString(amountS)
		fee, _ := decimal.NewFromString(feeS)
		e.Amount, _ = model.FromDecimal(amount)
		e.Fee, _ = model.FromDecimal(fee)

		entries = append(entries, e)
	}
	return entries, rows.Err()
}
