package processor

import (
	"context"
	"errors"

	"github.com/atmx/vault-engine/internal/auth"
	"github.com/atmx/vault-engine/internal/model"
	"github.com/atmx/vault-engine/internal/token"
)

// Setup names the components a vault is bound to at initialization.
type Setup struct {
	AssetMint         model.Identity `json:"asset_mint"`
	VaultHolding      model.Identity `json:"vault_holding"`
	LedgerProgram     model.Identity `json:"ledger_program"`
	DelegationProgram model.Identity `json:"delegation_program"`
	FundProgram       model.Slot     `json:"fund_program"`
}

// Initialize writes the vault config with the signer as admin. The
// pooled holding must already be owned by the vault authority.
func (p *Processor) Initialize(ctx context.Context, req Request, s Setup) (*model.JournalEntry, error) {
	return p.run(ctx, "initialize", req, func(tx *txn) error {
		admin, err := auth.RequireSigner(req.Signer)
		if err != nil {
			return err
		}
		if _, ok, err := tx.raw(model.ConfigAddress(p.program)); err != nil {
			return err
		} else if ok {
			return model.Fail(model.ErrAlreadyInitialized, "vault config")
		}
		if s.VaultHolding.IsZero() || s.LedgerProgram.IsZero() {
			return model.Fail(model.ErrInvalidAccount, "vault holding and ledger program are required")
		}
		owner, err := p.tokens.Owner(ctx, s.VaultHolding)
		if errors.Is(err, token.ErrUnknownHolding) {
			return model.Remap(model.ErrInvalidAccount, err)
		}
		if err != nil {
			return err
		}
		if owner != p.Authority() {
			return model.Fail(model.ErrInvalidPda, "vault holding owned by %s, not the vault authority", owner.Short())
		}
		cfg := &model.Config{
			Admin:             admin,
			AssetMint:         s.AssetMint,
			VaultHolding:      s.VaultHolding,
			LedgerProgram:     s.LedgerProgram,
			FundProgram:       s.FundProgram,
			DelegationProgram: s.DelegationProgram,
		}
		tx.record(admin, s.VaultHolding, 0, 0)
		return tx.putConfig(cfg)
	})
}

// admin loads config and verifies the signer is its admin.
func (tx *txn) admin() (*model.Config, error) {
	cfg, err := tx.config()
	if err != nil {
		return nil, err
	}
	if err := auth.RequireAdmin(cfg, tx.req.Signer); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (p *Processor) AddAuthorizedCaller(ctx context.Context, req Request, caller model.Identity) (*model.JournalEntry, error) {
	return p.run(ctx, "add_authorized_caller", req, func(tx *txn) error {
		cfg, err := tx.admin()
		if err != nil {
			return err
		}
		added, err := cfg.AddCaller(caller)
		if err != nil {
			return err
		}
		tx.record(caller, model.Identity{}, 0, 0)
		if !added {
			return nil
		}
		return tx.putConfig(cfg)
	})
}

func (p *Processor) RemoveAuthorizedCaller(ctx context.Context, req Request, caller model.Identity) (*model.JournalEntry, error) {
	return p.run(ctx, "remove_authorized_caller", req, func(tx *txn) error {
		cfg, err := tx.admin()
		if err != nil {
			return err
		}
		tx.record(caller, model.Identity{}, 0, 0)
		if !cfg.RemoveCaller(caller) {
			return nil
		}
		return tx.putConfig(cfg)
	})
}

// SetPaused toggles the pause flag, which blocks deposit and withdraw.
func (p *Processor) SetPaused(ctx context.Context, req Request, paused bool) (*model.JournalEntry, error) {
	op := "unpause"
	if paused {
		op = "pause"
	}
	return p.run(ctx, op, req, func(tx *txn) error {
		cfg, err := tx.admin()
		if err != nil {
			return err
		}
		cfg.Paused = paused
		return tx.putConfig(cfg)
	})
}

func (p *Processor) UpdateAdmin(ctx context.Context, req Request, admin model.Identity) (*model.JournalEntry, error) {
	return p.run(ctx, "update_admin", req, func(tx *txn) error {
		cfg, err := tx.admin()
		if err != nil {
			return err
		}
		if admin.IsZero() {
			return model.Fail(model.ErrInvalidAccount, "admin cannot be the zero identity")
		}
		tx.record(admin, cfg.Admin, 0, 0)
		cfg.Admin = admin
		return tx.putConfig(cfg)
	})
}

// SetFundProgram sets or, with the zero identity, clears the fee-pool
// owner.
func (p *Processor) SetFundProgram(ctx context.Context, req Request, fund model.Identity) (*model.JournalEntry, error) {
	return p.run(ctx, "set_fund_program", req, func(tx *txn) error {
		cfg, err := tx.admin()
		if err != nil {
			return err
		}
		cfg.FundProgram = model.Slot{}
		if !fund.IsZero() {
			cfg.FundProgram = model.Some(fund)
		}
		tx.record(fund, model.Identity{}, 0, 0)
		return tx.putConfig(cfg)
	})
}

func (p *Processor) SetLedgerProgram(ctx context.Context, req Request, ledger model.Identity) (*model.JournalEntry, error) {
	return p.run(ctx, "set_ledger_program", req, func(tx *txn) error {
		cfg, err := tx.admin()
		if err != nil {
			return err
		}
		if ledger.IsZero() {
			return model.Fail(model.ErrInvalidAccount, "ledger program cannot be the zero identity")
		}
		cfg.LedgerProgram = ledger
		tx.record(ledger, model.Identity{}, 0, 0)
		return tx.putConfig(cfg)
	})
}

// AddRelayer delegates relayer rights to id.
func (p *Processor) AddRelayer(ctx context.Context, req Request, id model.Identity) (*model.JournalEntry, error) {
	return p.run(ctx, "add_relayer", req, func(tx *txn) error {
		if _, err := tx.admin(); err != nil {
			return err
		}
		reg, err := tx.registry()
		if err != nil {
			return err
		}
		added, err := reg.Add(id)
		if err != nil {
			return err
		}
		tx.record(id, model.Identity{}, 0, 0)
		if !added {
			return nil
		}
		return tx.putRegistry(reg)
	})
}

func (p *Processor) RemoveRelayer(ctx context.Context, req Request, id model.Identity) (*model.JournalEntry, error) {
	return p.run(ctx, "remove_relayer", req, func(tx *txn) error {
		if _, err := tx.admin(); err != nil {
			return err
		}
		reg, err := tx.registry()
		if err != nil {
			return err
		}
		tx.record(id, model.Identity{}, 0, 0)
		if !reg.Remove(id) {
			return nil
		}
		return tx.putRegistry(reg)
	})
}
