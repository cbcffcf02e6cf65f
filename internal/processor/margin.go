package processor

import (
	"context"

	"github.com/atmx/vault-engine/internal/auth"
	"github.com/atmx/vault-engine/internal/model"
	"github.com/atmx/vault-engine/internal/safemath"
	"github.com/atmx/vault-engine/internal/token"
)

// InitializeUser creates the signer's margin account.
func (p *Processor) InitializeUser(ctx context.Context, req Request) (*model.JournalEntry, error) {
	return p.run(ctx, "initialize_user", req, func(tx *txn) error {
		wallet, err := auth.RequireSigner(req.Signer)
		if err != nil {
			return err
		}
		if _, err := tx.config(); err != nil {
			return err
		}
		if _, ok, err := tx.raw(model.UserAddress(p.program, wallet)); err != nil {
			return err
		} else if ok {
			return model.Fail(model.ErrAlreadyInitialized, "user account %s", wallet.Short())
		}
		tx.record(wallet, model.Identity{}, 0, 0)
		return tx.putUser(model.NewUserAccount(wallet, tx.ts))
	})
}

// Deposit moves amount from the signer's holding into the pool and
// credits their available balance.
func (p *Processor) Deposit(ctx context.Context, req Request, amount uint64) (*model.JournalEntry, error) {
	return p.run(ctx, "deposit", req, func(tx *txn) error {
		wallet, err := auth.RequireSigner(req.Signer)
		if err != nil {
			return err
		}
		amt, err := positive(amount)
		if err != nil {
			return err
		}
		cfg, err := tx.config()
		if err != nil {
			return err
		}
		if cfg.Paused {
			return model.ErrVaultPaused
		}
		if err := tx.checkPool(cfg); err != nil {
			return err
		}
		if req.Holding.IsZero() {
			return model.Fail(model.ErrInvalidAccount, "source holding not supplied")
		}
		u, err := tx.user(wallet)
		if err != nil {
			return err
		}
		if err := u.Deposit(amt, tx.ts); err != nil {
			return err
		}
		total, ok := safemath.AddU64(cfg.TotalDeposits, amount)
		if !ok {
			return model.ErrOverflow
		}
		cfg.TotalDeposits = total

		tx.transfer(token.Transfer{
			Source:      req.Holding,
			Destination: cfg.VaultHolding,
			Authority:   wallet,
			Amount:      amount,
			Reason:      "deposit",
		})
		tx.record(wallet, model.Identity{}, amt, 0)
		if err := tx.putUser(u); err != nil {
			return err
		}
		return tx.putConfig(cfg)
	})
}

// Withdraw debits the signer's available balance and pays out from the
// pool to their holding.
func (p *Processor) Withdraw(ctx context.Context, req Request, amount uint64) (*model.JournalEntry, error) {
	return p.run(ctx, "withdraw", req, func(tx *txn) error {
		wallet, err := auth.RequireSigner(req.Signer)
		if err != nil {
			return err
		}
		amt, err := positive(amount)
		if err != nil {
			return err
		}
		cfg, err := tx.config()
		if err != nil {
			return err
		}
		if cfg.Paused {
			return model.ErrVaultPaused
		}
		if err := tx.checkPool(cfg); err != nil {
			return err
		}
		if req.Holding.IsZero() {
			return model.Fail(model.ErrInvalidAccount, "destination holding not supplied")
		}
		u, err := tx.user(wallet)
		if err != nil {
			return err
		}
		if err := u.Withdraw(amt, tx.ts); err != nil {
			return err
		}
		tx.outbound(cfg, req.Holding, amount, "withdraw")
		tx.record(wallet, model.Identity{}, amt, 0)
		return tx.putUser(u)
	})
}

// lockTotal adds to Config.TotalLocked.
func lockTotal(cfg *model.Config, amount int64) error {
	total, ok := safemath.AddU64(cfg.TotalLocked, uint64(amount))
	if !ok {
		return model.ErrOverflow
	}
	cfg.TotalLocked = total
	return nil
}

// unlockTotal subtracts from Config.TotalLocked, stopping at zero.
func unlockTotal(cfg *model.Config, amount int64) {
	if total, ok := safemath.SubU64(cfg.TotalLocked, uint64(amount)); ok {
		cfg.TotalLocked = total
		return
	}
	cfg.TotalLocked = 0
}

// gated loads config and the user account for a whitelist-gated
// margin operation.
func (tx *txn) gated(wallet model.Identity) (*model.Config, *model.UserAccount, error) {
	cfg, err := tx.config()
	if err != nil {
		return nil, nil, err
	}
	if err := tx.caller(cfg); err != nil {
		return nil, nil, err
	}
	u, err := tx.user(wallet)
	if err != nil {
		return nil, nil, err
	}
	return cfg, u, nil
}

func (p *Processor) LockMargin(ctx context.Context, req Request, wallet model.Identity, amount uint64) (*model.JournalEntry, error) {
	return p.run(ctx, "lock_margin", req, func(tx *txn) error {
		amt, err := signed(amount)
		if err != nil {
			return err
		}
		cfg, u, err := tx.gated(wallet)
		if err != nil {
			return err
		}
		if err := u.LockMargin(amt, tx.ts); err != nil {
			return err
		}
		if err := lockTotal(cfg, amt); err != nil {
			return err
		}
		tx.record(wallet, model.Identity{}, amt, 0)
		return tx.putMargin(cfg, u)
	})
}

func (p *Processor) ReleaseMargin(ctx context.Context, req Request, wallet model.Identity, amount uint64) (*model.JournalEntry, error) {
	return p.run(ctx, "release_margin", req, func(tx *txn) error {
		amt, err := signed(amount)
		if err != nil {
			return err
		}
		cfg, u, err := tx.gated(wallet)
		if err != nil {
			return err
		}
		if err := u.ReleaseMargin(amt, tx.ts); err != nil {
			return err
		}
		unlockTotal(cfg, amt)
		tx.record(wallet, model.Identity{}, amt, 0)
		return tx.putMargin(cfg, u)
	})
}

// Close describes a position close reported by the settlement caller.
type Close struct {
	MarginToRelease uint64 `json:"margin_to_release"`
	RealizedPnL     int64  `json:"realized_pnl"`
	Fee             uint64 `json:"fee"`
}

// ClosePositionSettle releases margin, books realized P&L and charges the
// trading fee. Locked residue under the dust threshold is swept back to
// available.
func (p *Processor) ClosePositionSettle(ctx context.Context, req Request, wallet model.Identity, c Close) (*model.JournalEntry, error) {
	return p.run(ctx, "close_position_settle", req, func(tx *txn) error {
		release, err := signed(c.MarginToRelease)
		if err != nil {
			return err
		}
		fee, err := signed(c.Fee)
		if err != nil {
			return err
		}
		cfg, u, err := tx.gated(wallet)
		if err != nil {
			return err
		}
		freed, err := u.ClosePosition(release, c.RealizedPnL, fee, tx.ts)
		if err != nil {
			return err
		}
		unlockTotal(cfg, freed)
		tx.record(wallet, model.Identity{}, c.RealizedPnL, fee)
		return tx.putMargin(cfg, u)
	})
}

// Liquidation describes a forced close. Margin is informational; the
// account's whole locked balance is zeroed.
type Liquidation struct {
	Margin        uint64 `json:"margin"`
	UserRemainder uint64 `json:"user_remainder"`
	Penalty       uint64 `json:"penalty"`
}

// LiquidatePosition zeroes locked margin, credits the remainder and moves
// the penalty from the pool to the insurance destination.
func (p *Processor) LiquidatePosition(ctx context.Context, req Request, wallet model.Identity, l Liquidation) (*model.JournalEntry, error) {
	return p.run(ctx, "liquidate_position", req, func(tx *txn) error {
		remainder, err := signed(l.UserRemainder)
		if err != nil {
			return err
		}
		penalty, err := signed(l.Penalty)
		if err != nil {
			return err
		}
		cfg, u, err := tx.gated(wallet)
		if err != nil {
			return err
		}
		freed, err := u.Liquidate(remainder, tx.ts)
		if err != nil {
			return err
		}
		unlockTotal(cfg, freed)
		if l.Penalty > 0 {
			if err := tx.checkPool(cfg); err != nil {
				return err
			}
			if req.Destination.IsZero() {
				return model.Fail(model.ErrInvalidAccount, "insurance destination not supplied")
			}
			tx.outbound(cfg, req.Destination, l.Penalty, "liquidation_penalty")
		}
		tx.record(wallet, req.Destination, remainder, penalty)
		return tx.putMargin(cfg, u)
	})
}

// AdminForceReleaseMargin releases up to amount of locked margin
// (0 releases everything) for recovery of stuck positions.
func (p *Processor) AdminForceReleaseMargin(ctx context.Context, req Request, wallet model.Identity, amount uint64) (*model.JournalEntry, error) {
	return p.run(ctx, "admin_force_release_margin", req, func(tx *txn) error {
		amt, err := signed(amount)
		if err != nil {
			return err
		}
		cfg, err := tx.admin()
		if err != nil {
			return err
		}
		u, err := tx.user(wallet)
		if err != nil {
			return err
		}
		released, err := u.ForceRelease(amt, tx.ts)
		if err != nil {
			return err
		}
		tx.record(wallet, model.Identity{}, released, 0)
		if released == 0 {
			return nil
		}
		unlockTotal(cfg, released)
		return tx.putMargin(cfg, u)
	})
}

func (tx *txn) putMargin(cfg *model.Config, u *model.UserAccount) error {
	if err := tx.putUser(u); err != nil {
		return err
	}
	return tx.putConfig(cfg)
}
