package token

import (
	"context"
	"errors"
	"testing"

	"github.com/atmx/vault-engine/internal/model"
)

func TestLedger_Transfer(t *testing.T) {
	l := NewLedger()
	alice, vault := model.Identity{1}, model.Identity{2}
	l.Open(alice, alice, 100)
	l.Open(vault, model.Identity{3}, 0)

	ctx := context.Background()
	if err := l.Transfer(ctx, Transfer{Source: alice, Destination: vault, Authority: alice, Amount: 60}); err != nil {
		t.Fatal(err)
	}
	if l.Balance(alice) != 40 || l.Balance(vault) != 60 {
		t.Errorf("balances %d/%d", l.Balance(alice), l.Balance(vault))
	}

	err := l.Transfer(ctx, Transfer{Source: vault, Destination: alice, Authority: alice, Amount: 1})
	if !errors.Is(err, ErrNotOwner) {
		t.Errorf("expected ErrNotOwner, got %v", err)
	}
	err = l.Transfer(ctx, Transfer{Source: alice, Destination: vault, Authority: alice, Amount: 41})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}
	err = l.Transfer(ctx, Transfer{Source: alice, Destination: model.Identity{9}, Authority: alice, Amount: 1})
	if !errors.Is(err, ErrUnknownHolding) {
		t.Errorf("expected ErrUnknownHolding, got %v", err)
	}
}

func TestTransfer_Reverse(t *testing.T) {
	tr := Transfer{Source: model.Identity{1}, Destination: model.Identity{2}, Authority: model.Identity{1}, Amount: 5, Reason: "deposit"}
	r := tr.Reverse(model.Identity{7})
	if r.Source != tr.Destination || r.Destination != tr.Source || r.Authority != (model.Identity{7}) || r.Amount != 5 {
		t.Errorf("reverse = %+v", r)
	}
}
