package processor

import (
	"context"

	"github.com/atmx/vault-engine/internal/feepolicy"
	"github.com/atmx/vault-engine/internal/model"
)

// chargeFee queues the fee leg to the policy's destination and, when
// total is non-nil, adds the fee to that running total.
func (tx *txn) chargeFee(cfg *model.Config, pol *feepolicy.Policy, total *feepolicy.Total, fee uint64, reason string) error {
	if fee == 0 {
		return nil
	}
	if err := tx.checkPool(cfg); err != nil {
		return err
	}
	dest, err := tx.feeDestination(pol)
	if err != nil {
		return err
	}
	tx.outbound(cfg, dest, fee, reason)
	tx.collect(reason, fee)
	if total != nil {
		pol.AddTotal(*total, fee)
		tx.putFeePolicy(pol)
	}
	return nil
}

func totalOf(t feepolicy.Total) *feepolicy.Total { return &t }

// PMLockWithFee locks gross-fee into the prediction-market account at the
// minting rate and routes the fee to the fee pool.
func (p *Processor) PMLockWithFee(ctx context.Context, req Request, wallet model.Identity, gross uint64) (*model.JournalEntry, error) {
	return p.run(ctx, "pm_lock_with_fee", req, func(tx *txn) error {
		amt, err := positive(gross)
		if err != nil {
			return err
		}
		cfg, u, err := tx.gated(wallet)
		if err != nil {
			return err
		}
		pol, err := tx.feePolicy()
		if err != nil {
			return err
		}
		fee, net := pol.Split(feepolicy.RateMinting, gross)
		if err := u.Debit(amt, tx.ts); err != nil {
			return err
		}
		pm, err := tx.ensurePMUser(wallet)
		if err != nil {
			return err
		}
		if err := pm.Lock(int64(net), tx.ts); err != nil {
			return err
		}
		if err := tx.chargeFee(cfg, pol, totalOf(feepolicy.TotalMinting), fee, "minting"); err != nil {
			return err
		}
		tx.record(wallet, model.Identity{}, int64(net), int64(fee))
		if err := tx.putUser(u); err != nil {
			return err
		}
		return tx.putPMUser(pm)
	})
}

// PMUnlockWithFee unlocks gross from the prediction-market account and
// credits gross-fee at the redemption rate.
func (p *Processor) PMUnlockWithFee(ctx context.Context, req Request, wallet model.Identity, gross uint64) (*model.JournalEntry, error) {
	return p.run(ctx, "pm_unlock_with_fee", req, func(tx *txn) error {
		amt, err := positive(gross)
		if err != nil {
			return err
		}
		cfg, u, err := tx.gated(wallet)
		if err != nil {
			return err
		}
		pol, err := tx.feePolicy()
		if err != nil {
			return err
		}
		fee, net := pol.Split(feepolicy.RateRedemption, gross)
		pm, err := tx.requirePMUser(wallet)
		if err != nil {
			return err
		}
		if err := pm.Unlock(amt, tx.ts); err != nil {
			return err
		}
		if err := u.Credit(int64(net), tx.ts); err != nil {
			return err
		}
		if err := tx.chargeFee(cfg, pol, totalOf(feepolicy.TotalRedemption), fee, "redemption"); err != nil {
			return err
		}
		tx.record(wallet, model.Identity{}, int64(net), int64(fee))
		if err := tx.putUser(u); err != nil {
			return err
		}
		return tx.putPMUser(pm)
	})
}

// PMTradeWithFee charges the taker or maker rate on a matched amount. The
// fee comes out of the pool, which already holds the traded funds.
func (p *Processor) PMTradeWithFee(ctx context.Context, req Request, amount uint64, isTaker bool) (*model.JournalEntry, error) {
	return p.run(ctx, "pm_trade_with_fee", req, func(tx *txn) error {
		cfg, err := tx.config()
		if err != nil {
			return err
		}
		if err := tx.caller(cfg); err != nil {
			return err
		}
		if amount == 0 {
			return nil
		}
		if err := tx.checkPool(cfg); err != nil {
			return err
		}
		pol, err := tx.feePolicy()
		if err != nil {
			return err
		}
		rate := feepolicy.RateMaker
		if isTaker {
			rate = feepolicy.RateTaker
		}
		fee, _ := pol.Split(rate, amount)
		if err := tx.chargeFee(cfg, pol, totalOf(feepolicy.TotalTrading), fee, "trading"); err != nil {
			return err
		}
		amt, err := signed(amount)
		if err != nil {
			return err
		}
		tx.record(model.Identity{}, model.Identity{}, amt, int64(fee))
		return nil
	})
}

// PMSettleWithFee settles a position crediting settlement minus the
// settlement-rate fee to pending settlement.
func (p *Processor) PMSettleWithFee(ctx context.Context, req Request, wallet model.Identity, locked, settlement uint64) (*model.JournalEntry, error) {
	return p.run(ctx, "pm_settle_with_fee", req, func(tx *txn) error {
		release, err := signed(locked)
		if err != nil {
			return err
		}
		if _, err := signed(settlement); err != nil {
			return err
		}
		cfg, err := tx.config()
		if err != nil {
			return err
		}
		if err := tx.caller(cfg); err != nil {
			return err
		}
		pol, err := tx.feePolicy()
		if err != nil {
			return err
		}
		fee, net := pol.Split(feepolicy.RateSettlement, settlement)
		pm, err := tx.ensurePMUser(wallet)
		if err != nil {
			return err
		}
		if err := pm.SettleNet(release, int64(net), tx.ts); err != nil {
			return err
		}
		if err := tx.chargeFee(cfg, pol, nil, fee, "settlement"); err != nil {
			return err
		}
		tx.record(wallet, model.Identity{}, int64(net), int64(fee))
		return tx.putPMUser(pm)
	})
}
