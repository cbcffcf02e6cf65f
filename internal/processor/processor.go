// Package processor applies vault operations. Each operation runs as one
// atomic unit: it loads the records it touches, validates every
// precondition, mutates private copies, issues any asset transfers, and
// commits all changed records together with a journal entry. A rejected
// operation leaves no trace.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/atmx/vault-engine/internal/metrics"
	"github.com/atmx/vault-engine/internal/model"
	"github.com/atmx/vault-engine/internal/store"
	"github.com/atmx/vault-engine/internal/token"
)

// Request carries the host-verified context of one operation.
type Request struct {
	// Signer is the identity that signed the operation, unset if unsigned.
	Signer model.Slot `json:"signer"`
	// Caller is the invoking component for whitelist-gated operations.
	Caller model.Identity `json:"caller"`
	// Holding is the user's external asset holding.
	Holding model.Identity `json:"holding"`
	// PoolHolding optionally names the pooled holding; it must match
	// Config.VaultHolding when set.
	PoolHolding model.Identity `json:"pool_holding"`
	// Destination receives penalty or fee legs.
	Destination model.Identity `json:"destination"`
	// FeePolicy is the address of the fee policy record.
	FeePolicy model.Identity `json:"fee_policy"`
	// Payer funds provisioning of a missing sub-account.
	Payer model.Slot `json:"payer"`
}

// Observer is notified of every committed operation.
type Observer func(entry model.JournalEntry)

// Processor applies operations against a Store.
type Processor struct {
	store     store.Store
	tokens    token.Transferer
	locker    store.Locker
	program   model.Identity
	now       func() time.Time
	observers []Observer
}

// Option configures a Processor.
type Option func(*Processor)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// WithLocker replaces the default in-process lock.
func WithLocker(l store.Locker) Option {
	return func(p *Processor) { p.locker = l }
}

// WithObserver registers a post-commit observer.
func WithObserver(o Observer) Option {
	return func(p *Processor) { p.observers = append(p.observers, o) }
}

// New creates a processor for the vault deployed under program.
func New(st store.Store, tokens token.Transferer, program model.Identity, opts ...Option) *Processor {
	p := &Processor{
		store:   st,
		tokens:  tokens,
		locker:  &store.LocalLocker{},
		program: program,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Program is the identity record addresses are derived under.
func (p *Processor) Program() model.Identity { return p.program }

// Authority is the vault's own signing identity for outbound transfers.
func (p *Processor) Authority() model.Identity { return model.ConfigAddress(p.program) }

// run executes fn under the execution lock and commits its effects.
func (p *Processor) run(ctx context.Context, op string, req Request, fn func(tx *txn) error) (*model.JournalEntry, error) {
	started := time.Now()

	unlock, err := p.locker.Lock(ctx)
	if err != nil {
		metrics.ObserveOperation(op, "lock_error", started)
		return nil, fmt.Errorf("processor: %s: %w", op, err)
	}
	defer unlock()

	tx := p.begin(ctx, op, req)
	if err := fn(tx); err != nil {
		p.reject(op, err, started)
		return nil, err
	}
	if err := tx.finish(); err != nil {
		p.reject(op, err, started)
		return nil, err
	}

	metrics.ObserveOperation(op, "ok", started)
	for kind, fee := range tx.fees {
		metrics.FeesCollected.WithLabelValues(kind).Add(float64(fee))
	}
	slog.Info("operation applied",
		"op", op,
		"id", tx.entry.ID,
		"wallet", tx.entry.Wallet.Short(),
		"amount", tx.entry.Amount,
		"fee", tx.entry.Fee,
		"records", len(tx.order),
		"transfers", len(tx.legs),
	)
	for _, o := range p.observers {
		o(tx.entry)
	}
	entry := tx.entry
	return &entry, nil
}

func (p *Processor) reject(op string, err error, started time.Time) {
	result := "error"
	if code, ok := model.CodeOf(err); ok {
		result = code.Name()
	}
	metrics.ObserveOperation(op, result, started)
	slog.Warn("operation rejected", "op", op, "result", result, "err", err)
}

func (p *Processor) begin(ctx context.Context, op string, req Request) *txn {
	now := p.now().UTC()
	signer, _ := req.Signer.Get()
	return &txn{
		ctx:    ctx,
		p:      p,
		req:    req,
		ts:     now.Unix(),
		staged: make(map[model.Identity]store.Record),
		fees:   make(map[string]uint64),
		entry: model.JournalEntry{
			ID:        uuid.New().String(),
			Op:        op,
			Signer:    signer,
			Timestamp: now,
		},
	}
}

// finish issues queued transfers and commits staged records. Transfers
// that succeeded before a later failure are reversed.
func (tx *txn) finish() error {
	done := make([]token.Transfer, 0, len(tx.legs))
	for _, leg := range tx.legs {
		if err := tx.p.tokens.Transfer(tx.ctx, leg); err != nil {
			metrics.TokenTransfers.WithLabelValues(leg.Reason, "error").Inc()
			tx.compensate(done)
			return transferError(leg, err)
		}
		metrics.TokenTransfers.WithLabelValues(leg.Reason, "ok").Inc()
		done = append(done, leg)
	}

	records := make([]store.Record, 0, len(tx.order))
	for _, addr := range tx.order {
		records = append(records, tx.staged[addr])
	}
	if err := tx.p.store.Commit(tx.ctx, records, &tx.entry); err != nil {
		tx.compensate(done)
		return fmt.Errorf("processor: commit %s: %w", tx.entry.Op, err)
	}
	return nil
}

func (tx *txn) compensate(done []token.Transfer) {
	ctx := context.WithoutCancel(tx.ctx)
	for i := len(done) - 1; i >= 0; i-- {
		leg := done[i]
		owner, err := tx.p.tokens.Owner(ctx, leg.Destination)
		if err == nil {
			err = tx.p.tokens.Transfer(ctx, leg.Reverse(owner))
		}
		metrics.CompensatingTransfers.Inc()
		if err != nil {
			slog.Error("compensating transfer failed",
				"op", tx.entry.Op,
				"reason", leg.Reason,
				"amount", leg.Amount,
				"err", err,
			)
		}
	}
}

func transferError(leg token.Transfer, err error) error {
	switch {
	case errors.Is(err, token.ErrInsufficientFunds):
		return model.Remap(model.ErrInsufficientBalance, fmt.Errorf("%s transfer: %w", leg.Reason, err))
	case errors.Is(err, token.ErrNotOwner), errors.Is(err, token.ErrUnknownHolding):
		return model.Remap(model.ErrInvalidAccount, fmt.Errorf("%s transfer: %w", leg.Reason, err))
	}
	return fmt.Errorf("processor: %s transfer: %w", leg.Reason, err)
}
