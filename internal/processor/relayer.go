package processor

import (
	"context"

	"github.com/atmx/vault-engine/internal/model"
	"github.com/atmx/vault-engine/internal/safemath"
)

// RelayerDeposit credits a deposit observed off-ledger, provisioning the
// user's margin account if needed. No asset moves here; the bridge that
// observed the deposit already funded the pool.
func (p *Processor) RelayerDeposit(ctx context.Context, req Request, wallet model.Identity, amount uint64) (*model.JournalEntry, error) {
	return p.run(ctx, "relayer_deposit", req, func(tx *txn) error {
		cfg, err := tx.config()
		if err != nil {
			return err
		}
		signer, err := tx.relayer(cfg, model.ErrInvalidRelayer)
		if err != nil {
			return err
		}
		amt, err := positive(amount)
		if err != nil {
			return err
		}
		u, err := tx.userOrNew(wallet)
		if err != nil {
			return err
		}
		if err := u.Deposit(amt, tx.ts); err != nil {
			return err
		}
		tx.record(wallet, signer, amt, 0)
		return tx.putUser(u)
	})
}

// RelayerWithdraw debits a withdrawal that the relayer pays out
// off-ledger.
func (p *Processor) RelayerWithdraw(ctx context.Context, req Request, wallet model.Identity, amount uint64) (*model.JournalEntry, error) {
	return p.run(ctx, "relayer_withdraw", req, func(tx *txn) error {
		cfg, err := tx.config()
		if err != nil {
			return err
		}
		signer, err := tx.relayer(cfg, model.ErrInvalidRelayer)
		if err != nil {
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
		if err := u.Withdraw(amt, tx.ts); err != nil {
			return err
		}
		tx.record(wallet, signer, amt, 0)
		return tx.putUser(u)
	})
}

// InternalTransfer moves funds between two margin accounts.
type InternalTransfer struct {
	From          model.Identity `json:"from"`
	To            model.Identity `json:"to"`
	Amount        uint64         `json:"amount"`
	Fee           uint64         `json:"fee"`
	TransferType  uint8          `json:"transfer_type"`
	ReferenceHash model.Identity `json:"reference_hash"`
}

// RelayerInternalTransfer debits amount+fee from From and credits amount
// to To. The fee leaves the pool when the request names a destination.
func (p *Processor) RelayerInternalTransfer(ctx context.Context, req Request, t InternalTransfer) (*model.JournalEntry, error) {
	return p.run(ctx, "relayer_internal_transfer", req, func(tx *txn) error {
		cfg, err := tx.config()
		if err != nil {
			return err
		}
		if _, err := tx.relayer(cfg, model.ErrUnauthorizedAdmin); err != nil {
			return err
		}
		if t.From == t.To {
			return model.Fail(model.ErrInvalidUserAccount, "transfer source and destination are the same account")
		}
		amt, err := positive(t.Amount)
		if err != nil {
			return err
		}
		fee, err := signed(t.Fee)
		if err != nil {
			return err
		}
		gross, ok := safemath.Add(amt, fee)
		if !ok {
			return model.ErrOverflow
		}
		from, err := tx.user(t.From)
		if err != nil {
			return err
		}
		to, err := tx.user(t.To)
		if err != nil {
			return err
		}
		if err := from.Debit(gross, tx.ts); err != nil {
			return err
		}
		if err := to.Credit(amt, tx.ts); err != nil {
			return err
		}
		tx.routeFee(cfg, t.Fee, "internal_transfer")
		tx.record(t.From, t.To, amt, fee)
		tx.entry.Reference = t.ReferenceHash.String()
		if err := tx.putUser(from); err != nil {
			return err
		}
		return tx.putUser(to)
	})
}

// routeFee sends a relayer-charged fee to the request's destination, or
// leaves it in the pool when none is named.
func (tx *txn) routeFee(cfg *model.Config, fee uint64, reason string) {
	if fee == 0 || tx.req.Destination.IsZero() {
		return
	}
	tx.outbound(cfg, tx.req.Destination, fee, reason)
	tx.collect(reason, fee)
}
