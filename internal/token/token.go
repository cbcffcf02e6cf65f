// Package token is the boundary to the external fungible-asset transfer
// primitive. The vault never edits asset balances itself; it only asks a
// Transferer to move funds between holdings.
package token

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/atmx/vault-engine/internal/model"
)

var (
	ErrUnknownHolding    = errors.New("token: unknown holding")
	ErrNotOwner          = errors.New("token: authority does not own source holding")
	ErrInsufficientFunds = errors.New("token: insufficient funds")
)

// Transfer moves Amount from Source to Destination, authorized by
// Authority. Reason labels the leg for metrics and logs.
type Transfer struct {
	Source      model.Identity
	Destination model.Identity
	Authority   model.Identity
	Amount      uint64
	Reason      string
}

// Reverse returns the compensating transfer. Authority is left to the
// caller because the reverse leg is signed by the destination's owner.
func (t Transfer) Reverse(authority model.Identity) Transfer {
	return Transfer{
		Source:      t.Destination,
		Destination: t.Source,
		Authority:   authority,
		Amount:      t.Amount,
		Reason:      t.Reason + "_reversal",
	}
}

// Transferer is the asset transfer primitive.
type Transferer interface {
	Transfer(ctx context.Context, t Transfer) error
	Owner(ctx context.Context, holding model.Identity) (model.Identity, error)
}

type holding struct {
	owner   model.Identity
	balance uint64
}

// Ledger is an in-memory Transferer for development and tests.
type Ledger struct {
	mu       sync.Mutex
	holdings map[model.Identity]*holding
}

func NewLedger() *Ledger {
	return &Ledger{holdings: make(map[model.Identity]*holding)}
}

// Open creates or resets a holding.
func (l *Ledger) Open(id, owner model.Identity, balance uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.holdings[id] = &holding{owner: owner, balance: balance}
}

// Balance returns the holding's balance, 0 if unknown.
func (l *Ledger) Balance(id model.Identity) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.holdings[id]; ok {
		return h.balance
	}
	return 0
}

func (l *Ledger) Owner(_ context.Context, id model.Identity) (model.Identity, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.holdings[id]
	if !ok {
		return model.Identity{}, fmt.Errorf("%w: %s", ErrUnknownHolding, id.Short())
	}
	return h.owner, nil
}

func (l *Ledger) Transfer(_ context.Context, t Transfer) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	src, ok := l.holdings[t.Source]
	if !ok {
		return fmt.Errorf("%w: source %s", ErrUnknownHolding, t.Source.Short())
	}
	dst, ok := l.holdings[t.Destination]
	if !ok {
		return fmt.Errorf("%w: destination %s", ErrUnknownHolding, t.Destination.Short())
	}
	if src.owner != t.Authority {
		return ErrNotOwner
	}
	if src.balance < t.Amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, src.balance, t.Amount)
	}
	if dst.balance+t.Amount < dst.balance {
		return fmt.Errorf("token: destination balance overflow")
	}
	src.balance -= t.Amount
	dst.balance += t.Amount
	return nil
}
