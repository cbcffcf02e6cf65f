package processor

import (
	"context"

	"github.com/atmx/vault-engine/internal/auth"
	"github.com/atmx/vault-engine/internal/model"
)

// InitializePredictionMarketUser creates the signer's prediction-market
// account.
func (p *Processor) InitializePredictionMarketUser(ctx context.Context, req Request) (*model.JournalEntry, error) {
	return p.run(ctx, "initialize_pm_user", req, func(tx *txn) error {
		wallet, err := auth.RequireSigner(req.Signer)
		if err != nil {
			return err
		}
		if _, err := tx.config(); err != nil {
			return err
		}
		if _, ok, err := tx.pmUser(wallet); err != nil {
			return err
		} else if ok {
			return model.Fail(model.ErrAlreadyInitialized, "prediction market account %s", wallet.Short())
		}
		tx.record(wallet, model.Identity{}, 0, 0)
		return tx.putPMUser(model.NewPMUserAccount(wallet, tx.ts))
	})
}

// PMLock moves amount from the user's available balance into their
// prediction-market account, provisioning it if a payer is named.
func (p *Processor) PMLock(ctx context.Context, req Request, wallet model.Identity, amount uint64) (*model.JournalEntry, error) {
	return p.run(ctx, "pm_lock", req, func(tx *txn) error {
		amt, err := positive(amount)
		if err != nil {
			return err
		}
		_, u, err := tx.gated(wallet)
		if err != nil {
			return err
		}
		if err := u.Debit(amt, tx.ts); err != nil {
			return err
		}
		pm, err := tx.ensurePMUser(wallet)
		if err != nil {
			return err
		}
		if err := pm.Lock(amt, tx.ts); err != nil {
			return err
		}
		tx.record(wallet, model.Identity{}, amt, 0)
		if err := tx.putUser(u); err != nil {
			return err
		}
		return tx.putPMUser(pm)
	})
}

// PMUnlock returns amount of prediction-market locked funds to available.
func (p *Processor) PMUnlock(ctx context.Context, req Request, wallet model.Identity, amount uint64) (*model.JournalEntry, error) {
	return p.run(ctx, "pm_unlock", req, func(tx *txn) error {
		amt, err := positive(amount)
		if err != nil {
			return err
		}
		_, u, err := tx.gated(wallet)
		if err != nil {
			return err
		}
		pm, err := tx.requirePMUser(wallet)
		if err != nil {
			return err
		}
		if err := pm.Unlock(amt, tx.ts); err != nil {
			return err
		}
		if err := u.Credit(amt, tx.ts); err != nil {
			return err
		}
		tx.record(wallet, model.Identity{}, amt, 0)
		if err := tx.putUser(u); err != nil {
			return err
		}
		return tx.putPMUser(pm)
	})
}

// PMSettle converts a resolved market position into pending settlement.
func (p *Processor) PMSettle(ctx context.Context, req Request, wallet model.Identity, locked, settlement uint64) (*model.JournalEntry, error) {
	return p.run(ctx, "pm_settle", req, func(tx *txn) error {
		release, err := signed(locked)
		if err != nil {
			return err
		}
		amt, err := signed(settlement)
		if err != nil {
			return err
		}
		cfg, err := tx.config()
		if err != nil {
			return err
		}
		if err := tx.caller(cfg); err != nil {
			return err
		}
		pm, err := tx.ensurePMUser(wallet)
		if err != nil {
			return err
		}
		if err := pm.Settle(release, amt, tx.ts); err != nil {
			return err
		}
		tx.record(wallet, model.Identity{}, amt, 0)
		return tx.putPMUser(pm)
	})
}

// PMClaimSettlement moves the signer's pending settlement to available.
func (p *Processor) PMClaimSettlement(ctx context.Context, req Request) (*model.JournalEntry, error) {
	return p.run(ctx, "pm_claim_settlement", req, func(tx *txn) error {
		wallet, err := auth.RequireSigner(req.Signer)
		if err != nil {
			return err
		}
		pm, err := tx.requirePMUser(wallet)
		if err != nil {
			return err
		}
		u, err := tx.user(wallet)
		if err != nil {
			return err
		}
		if pm.Wallet != wallet {
			return model.Fail(model.ErrInvalidAccount, "prediction market account wallet mismatch")
		}
		amount, err := pm.Claim(tx.ts)
		if err != nil {
			return err
		}
		tx.record(wallet, model.Identity{}, amount, 0)
		if amount <= 0 {
			return tx.putPMUser(pm)
		}
		if err := u.Credit(amount, tx.ts); err != nil {
			return err
		}
		if err := tx.putPMUser(pm); err != nil {
			return err
		}
		return tx.putUser(u)
	})
}

// AdminPMForceUnlock returns up to amount (0 = all) of prediction-market
// locked funds to available without touching cumulative totals.
func (p *Processor) AdminPMForceUnlock(ctx context.Context, req Request, wallet model.Identity, amount uint64) (*model.JournalEntry, error) {
	return p.run(ctx, "admin_pm_force_unlock", req, func(tx *txn) error {
		amt, err := signed(amount)
		if err != nil {
			return err
		}
		if _, err := tx.admin(); err != nil {
			return err
		}
		pm, err := tx.requirePMUser(wallet)
		if err != nil {
			return err
		}
		u, err := tx.user(wallet)
		if err != nil {
			return err
		}
		released, err := pm.ForceUnlock(amt, tx.ts)
		if err != nil {
			return err
		}
		tx.record(wallet, model.Identity{}, released, 0)
		if released == 0 {
			return nil
		}
		if err := u.Credit(released, tx.ts); err != nil {
			return err
		}
		if err := tx.putPMUser(pm); err != nil {
			return err
		}
		return tx.putUser(u)
	})
}

func (tx *txn) requirePMUser(wallet model.Identity) (*model.PMUserAccount, error) {
	pm, ok, err := tx.pmUser(wallet)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.Fail(model.ErrNotInitialized, "prediction market account %s", wallet.Short())
	}
	return pm, nil
}
