package processor

import (
	"context"
	"errors"

	"github.com/atmx/vault-engine/internal/auth"
	"github.com/atmx/vault-engine/internal/model"
	"github.com/atmx/vault-engine/internal/safemath"
	"github.com/atmx/vault-engine/internal/token"
)

// UsdcToken is the instrument index shared between margin and spot
// balances.
const UsdcToken uint16 = 0

// InitializeSpotUser creates the signer's spot account.
func (p *Processor) InitializeSpotUser(ctx context.Context, req Request) (*model.JournalEntry, error) {
	return p.run(ctx, "initialize_spot_user", req, func(tx *txn) error {
		wallet, err := auth.RequireSigner(req.Signer)
		if err != nil {
			return err
		}
		if _, err := tx.config(); err != nil {
			return err
		}
		if _, ok, err := tx.spotUser(wallet); err != nil {
			return err
		} else if ok {
			return model.Fail(model.ErrAlreadyInitialized, "spot account %s", wallet.Short())
		}
		tx.record(wallet, model.Identity{}, 0, 0)
		return tx.putSpotUser(model.NewSpotUserAccount(wallet, tx.ts))
	})
}

// spotPool resolves the pooled holding for an instrument. Spot
// instruments may use their own pool as long as the vault owns it.
func (tx *txn) spotPool(cfg *model.Config) (model.Identity, error) {
	pool := tx.req.PoolHolding
	if pool.IsZero() {
		return cfg.VaultHolding, nil
	}
	owner, err := tx.p.tokens.Owner(tx.ctx, pool)
	if errors.Is(err, token.ErrUnknownHolding) {
		return model.Identity{}, model.Remap(model.ErrInvalidAccount, err)
	}
	if err != nil {
		return model.Identity{}, err
	}
	if owner != tx.p.Authority() {
		return model.Identity{}, model.Fail(model.ErrInvalidAccount, "pool %s is not owned by the vault", pool.Short())
	}
	return pool, nil
}

// selfSpot loads the signer's own spot account.
func (tx *txn) selfSpot() (model.Identity, *model.SpotUserAccount, error) {
	wallet, err := auth.RequireSigner(tx.req.Signer)
	if err != nil {
		return wallet, nil, err
	}
	s, err := tx.requireSpotUser(wallet)
	if err != nil {
		return wallet, nil, err
	}
	if s.Wallet != wallet {
		return wallet, nil, model.Fail(model.ErrUnauthorizedUser, "spot account belongs to %s", s.Wallet.Short())
	}
	return wallet, s, nil
}

// SpotDeposit moves an instrument from the signer's holding into the pool
// and credits their spot balance.
func (p *Processor) SpotDeposit(ctx context.Context, req Request, tokenIndex uint16, amount uint64) (*model.JournalEntry, error) {
	return p.run(ctx, "spot_deposit", req, func(tx *txn) error {
		wallet, s, err := tx.selfSpot()
		if err != nil {
			return err
		}
		amt, err := signed(amount)
		if err != nil {
			return err
		}
		cfg, err := tx.config()
		if err != nil {
			return err
		}
		pool, err := tx.spotPool(cfg)
		if err != nil {
			return err
		}
		if req.Holding.IsZero() {
			return model.Fail(model.ErrInvalidAccount, "source holding not supplied")
		}
		if err := s.Deposit(tokenIndex, amt, tx.ts); err != nil {
			return model.Remap(model.ErrDepositFailed, err)
		}
		tx.transfer(token.Transfer{
			Source:      req.Holding,
			Destination: pool,
			Authority:   wallet,
			Amount:      amount,
			Reason:      "spot_deposit",
		})
		tx.record(wallet, model.Identity{}, amt, 0)
		return tx.putSpotUser(s)
	})
}

// SpotWithdraw debits the signer's spot balance and pays out from the
// pool.
func (p *Processor) SpotWithdraw(ctx context.Context, req Request, tokenIndex uint16, amount uint64) (*model.JournalEntry, error) {
	return p.run(ctx, "spot_withdraw", req, func(tx *txn) error {
		wallet, s, err := tx.selfSpot()
		if err != nil {
			return err
		}
		amt, err := signed(amount)
		if err != nil {
			return err
		}
		cfg, err := tx.config()
		if err != nil {
			return err
		}
		pool, err := tx.spotPool(cfg)
		if err != nil {
			return err
		}
		if req.Holding.IsZero() {
			return model.Fail(model.ErrInvalidAccount, "destination holding not supplied")
		}
		if err := s.Withdraw(tokenIndex, amt, tx.ts); err != nil {
			return model.Remap(model.ErrInsufficientBalance, err)
		}
		tx.transfer(token.Transfer{
			Source:      pool,
			Destination: req.Holding,
			Authority:   p.Authority(),
			Amount:      amount,
			Reason:      "spot_withdraw",
		})
		tx.record(wallet, model.Identity{}, amt, 0)
		return tx.putSpotUser(s)
	})
}

// gatedSpot loads a spot account for a whitelist-gated operation.
func (tx *txn) gatedSpot(wallet model.Identity) (*model.SpotUserAccount, error) {
	cfg, err := tx.config()
	if err != nil {
		return nil, err
	}
	if err := tx.caller(cfg); err != nil {
		return nil, err
	}
	return tx.requireSpotUser(wallet)
}

func (p *Processor) SpotLockBalance(ctx context.Context, req Request, wallet model.Identity, tokenIndex uint16, amount uint64) (*model.JournalEntry, error) {
	return p.run(ctx, "spot_lock_balance", req, func(tx *txn) error {
		amt, err := signed(amount)
		if err != nil {
			return err
		}
		s, err := tx.gatedSpot(wallet)
		if err != nil {
			return err
		}
		if err := s.Lock(tokenIndex, amt, tx.ts); err != nil {
			return model.Remap(model.ErrInsufficientBalance, err)
		}
		tx.record(wallet, model.Identity{}, amt, 0)
		return tx.putSpotUser(s)
	})
}

func (p *Processor) SpotUnlockBalance(ctx context.Context, req Request, wallet model.Identity, tokenIndex uint16, amount uint64) (*model.JournalEntry, error) {
	return p.run(ctx, "spot_unlock_balance", req, func(tx *txn) error {
		amt, err := signed(amount)
		if err != nil {
			return err
		}
		s, err := tx.gatedSpot(wallet)
		if err != nil {
			return err
		}
		if err := s.Unlock(tokenIndex, amt, tx.ts); err != nil {
			return model.Remap(model.ErrInsufficientBalance, err)
		}
		tx.record(wallet, model.Identity{}, amt, 0)
		return tx.putSpotUser(s)
	})
}

// SpotTrade is one account's side of a fill settled against locked
// funds.
type SpotTrade struct {
	IsBuy       bool   `json:"is_buy"`
	BaseToken   uint16 `json:"base_token"`
	QuoteToken  uint16 `json:"quote_token"`
	BaseAmount  uint64 `json:"base_amount"`
	QuoteAmount uint64 `json:"quote_amount"`
	Sequence    uint64 `json:"sequence"`
}

func (p *Processor) SpotSettleTrade(ctx context.Context, req Request, wallet model.Identity, t SpotTrade) (*model.JournalEntry, error) {
	return p.run(ctx, "spot_settle_trade", req, func(tx *txn) error {
		trade, err := toTrade(t.IsBuy, t.BaseToken, t.QuoteToken, t.BaseAmount, t.QuoteAmount, 0, t.Sequence)
		if err != nil {
			return err
		}
		s, err := tx.gatedSpot(wallet)
		if err != nil {
			return err
		}
		if err := s.SettleTrade(trade, tx.ts); err != nil {
			return model.Remap(model.ErrSettlementFailed, err)
		}
		tx.record(wallet, model.Identity{}, trade.QuoteAmount, 0)
		return tx.putSpotUser(s)
	})
}

func toTrade(isBuy bool, base, quote uint16, baseAmt, quoteAmt, fee, seq uint64) (model.Trade, error) {
	b, err := signed(baseAmt)
	if err != nil {
		return model.Trade{}, err
	}
	q, err := signed(quoteAmt)
	if err != nil {
		return model.Trade{}, err
	}
	f, err := signed(fee)
	if err != nil {
		return model.Trade{}, err
	}
	return model.Trade{
		IsBuy:       isBuy,
		BaseToken:   base,
		QuoteToken:  quote,
		BaseAmount:  b,
		QuoteAmount: q,
		Fee:         f,
		Sequence:    seq,
	}, nil
}

// RelayerSpotDeposit credits an off-ledger spot deposit, provisioning the
// spot account if needed.
func (p *Processor) RelayerSpotDeposit(ctx context.Context, req Request, wallet model.Identity, tokenIndex uint16, amount uint64) (*model.JournalEntry, error) {
	return p.run(ctx, "relayer_spot_deposit", req, func(tx *txn) error {
		cfg, err := tx.config()
		if err != nil {
			return err
		}
		signer, err := tx.relayer(cfg, model.ErrUnauthorizedAdmin)
		if err != nil {
			return err
		}
		amt, err := signed(amount)
		if err != nil {
			return err
		}
		s, err := tx.spotUserOrNew(wallet)
		if err != nil {
			return err
		}
		if err := s.Deposit(tokenIndex, amt, tx.ts); err != nil {
			return model.Remap(model.ErrDepositFailed, err)
		}
		tx.record(wallet, signer, amt, 0)
		return tx.putSpotUser(s)
	})
}

func (p *Processor) RelayerSpotWithdraw(ctx context.Context, req Request, wallet model.Identity, tokenIndex uint16, amount uint64) (*model.JournalEntry, error) {
	return p.run(ctx, "relayer_spot_withdraw", req, func(tx *txn) error {
		cfg, err := tx.config()
		if err != nil {
			return err
		}
		signer, err := tx.relayer(cfg, model.ErrUnauthorizedAdmin)
		if err != nil {
			return err
		}
		amt, err := signed(amount)
		if err != nil {
			return err
		}
		s, err := tx.requireSpotUser(wallet)
		if err != nil {
			return err
		}
		if err := s.Withdraw(tokenIndex, amt, tx.ts); err != nil {
			return model.Remap(model.ErrInsufficientBalance, err)
		}
		tx.record(wallet, signer, amt, 0)
		return tx.putSpotUser(s)
	})
}

// Fill is a matched spot trade between two accounts.
type Fill struct {
	Maker       model.Identity `json:"maker"`
	Taker       model.Identity `json:"taker"`
	BaseToken   uint16         `json:"base_token"`
	QuoteToken  uint16         `json:"quote_token"`
	BaseAmount  uint64         `json:"base_amount"`
	QuoteAmount uint64         `json:"quote_amount"`
	MakerFee    uint64         `json:"maker_fee"`
	TakerFee    uint64         `json:"taker_fee"`
	TakerIsBuy  bool           `json:"taker_is_buy"`
	Sequence    uint64         `json:"sequence"`
}

// RelayerSpotSettleTrade settles both sides of a fill. Either both sides
// apply or neither does.
func (p *Processor) RelayerSpotSettleTrade(ctx context.Context, req Request, f Fill) (*model.JournalEntry, error) {
	return p.run(ctx, "relayer_spot_settle_trade", req, func(tx *txn) error {
		cfg, err := tx.config()
		if err != nil {
			return err
		}
		if _, err := tx.relayer(cfg, model.ErrUnauthorizedAdmin); err != nil {
			return err
		}
		if f.Maker == f.Taker {
			return model.Fail(model.ErrInvalidAccount, "maker and taker are the same account")
		}
		takerSide, err := toTrade(f.TakerIsBuy, f.BaseToken, f.QuoteToken, f.BaseAmount, f.QuoteAmount, f.TakerFee, f.Sequence)
		if err != nil {
			return err
		}
		makerSide, err := toTrade(!f.TakerIsBuy, f.BaseToken, f.QuoteToken, f.BaseAmount, f.QuoteAmount, f.MakerFee, f.Sequence)
		if err != nil {
			return err
		}
		maker, err := tx.requireSpotUser(f.Maker)
		if err != nil {
			return err
		}
		taker, err := tx.requireSpotUser(f.Taker)
		if err != nil {
			return err
		}
		if err := maker.SettleTradeFunded(makerSide, tx.ts); err != nil {
			return model.Remap(model.ErrSettlementFailed, err)
		}
		if err := taker.SettleTradeFunded(takerSide, tx.ts); err != nil {
			return model.Remap(model.ErrSettlementFailed, err)
		}
		fees, ok := safemath.Add(takerSide.Fee, makerSide.Fee)
		if !ok {
			return model.ErrOverflow
		}
		tx.record(f.Taker, f.Maker, takerSide.QuoteAmount, fees)
		if err := tx.putSpotUser(maker); err != nil {
			return err
		}
		return tx.putSpotUser(taker)
	})
}

// SpotAllocateFromVault moves margin available balance into the spot
// account's USDC slot.
func (p *Processor) SpotAllocateFromVault(ctx context.Context, req Request, wallet model.Identity, amount uint64) (*model.JournalEntry, error) {
	return p.run(ctx, "spot_allocate_from_vault", req, func(tx *txn) error {
		cfg, err := tx.config()
		if err != nil {
			return err
		}
		if _, err := tx.relayer(cfg, model.ErrUnauthorizedAdmin); err != nil {
			return err
		}
		amt, err := positive(amount)
		if err != nil {
			return err
		}
		u, err := tx.user(wallet)
		if err != nil {
			return err
		}
		if err := u.Debit(amt, tx.ts); err != nil {
			return err
		}
		s, err := tx.spotUserOrNew(wallet)
		if err != nil {
			return err
		}
		if err := s.Deposit(UsdcToken, amt, tx.ts); err != nil {
			return model.Remap(model.ErrDepositFailed, err)
		}
		tx.record(wallet, model.Identity{}, amt, 0)
		if err := tx.putUser(u); err != nil {
			return err
		}
		return tx.putSpotUser(s)
	})
}

// SpotReleaseToVault moves spot USDC back to margin available balance.
func (p *Processor) SpotReleaseToVault(ctx context.Context, req Request, wallet model.Identity, amount uint64) (*model.JournalEntry, error) {
	return p.run(ctx, "spot_release_to_vault", req, func(tx *txn) error {
		cfg, err := tx.config()
		if err != nil {
			return err
		}
		if _, err := tx.relayer(cfg, model.ErrUnauthorizedAdmin); err != nil {
			return err
		}
		amt, err := positive(amount)
		if err != nil {
			return err
		}
		s, err := tx.requireSpotUser(wallet)
		if err != nil {
			return err
		}
		if err := s.Withdraw(UsdcToken, amt, tx.ts); err != nil {
			return model.Remap(model.ErrInsufficientBalance, err)
		}
		u, err := tx.user(wallet)
		if err != nil {
			return err
		}
		if err := u.Credit(amt, tx.ts); err != nil {
			return err
		}
		tx.record(wallet, model.Identity{}, amt, 0)
		if err := tx.putSpotUser(s); err != nil {
			return err
		}
		return tx.putUser(u)
	})
}
