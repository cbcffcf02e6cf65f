package processor

import (
	"context"

	"github.com/atmx/vault-engine/internal/model"
	"github.com/atmx/vault-engine/internal/safemath"
)

// RecurringTerms opens a recurring payment authorization.
type RecurringTerms struct {
	Payer           model.Identity `json:"payer"`
	Payee           model.Identity `json:"payee"`
	Amount          uint64         `json:"amount"`
	IntervalSeconds int64          `json:"interval_seconds"`
	MaxCycles       uint32         `json:"max_cycles"`
	RegistrationFee uint64         `json:"registration_fee"`
}

// InitRecurringAuth records an authorization and charges the payer the
// registration fee.
func (p *Processor) InitRecurringAuth(ctx context.Context, req Request, t RecurringTerms) (*model.JournalEntry, error) {
	return p.run(ctx, "init_recurring_auth", req, func(tx *txn) error {
		cfg, err := tx.config()
		if err != nil {
			return err
		}
		if _, err := tx.relayer(cfg, model.ErrUnauthorizedAdmin); err != nil {
			return err
		}
		if t.Payer == t.Payee {
			return model.Fail(model.ErrInvalidUserAccount, "payer and payee are the same account")
		}
		if _, err := positive(t.Amount); err != nil {
			return err
		}
		if t.IntervalSeconds <= 0 {
			return model.Fail(model.ErrInvalidAmount, "interval must be positive")
		}
		fee, err := signed(t.RegistrationFee)
		if err != nil {
			return err
		}
		if _, ok, err := tx.recurring(t.Payer, t.Payee); err != nil {
			return err
		} else if ok {
			return model.Fail(model.ErrAlreadyInitialized, "recurring authorization %s -> %s", t.Payer.Short(), t.Payee.Short())
		}
		payer, err := tx.user(t.Payer)
		if err != nil {
			return err
		}
		if err := payer.Debit(fee, tx.ts); err != nil {
			return err
		}
		tx.routeFee(cfg, t.RegistrationFee, "recurring_registration")
		a := model.NewRecurringAuth(t.Payer, t.Payee, t.Amount, t.IntervalSeconds, t.MaxCycles, tx.ts)
		tx.record(t.Payer, t.Payee, 0, fee)
		if err := tx.putUser(payer); err != nil {
			return err
		}
		return tx.putRecurring(a)
	})
}

// RecurringPayment executes one cycle of an authorization.
type RecurringPayment struct {
	Payer  model.Identity `json:"payer"`
	Payee  model.Identity `json:"payee"`
	Amount uint64         `json:"amount"`
	Fee    uint64         `json:"fee"`
	Cycle  uint64         `json:"cycle"`
}

// ExecuteRecurringPayment debits amount+fee from the payer and credits
// amount to the payee. Cycle must be exactly one past the executed count.
func (p *Processor) ExecuteRecurringPayment(ctx context.Context, req Request, pay RecurringPayment) (*model.JournalEntry, error) {
	return p.run(ctx, "execute_recurring_payment", req, func(tx *txn) error {
		cfg, err := tx.config()
		if err != nil {
			return err
		}
		if _, err := tx.relayer(cfg, model.ErrUnauthorizedAdmin); err != nil {
			return err
		}
		a, ok, err := tx.recurring(pay.Payer, pay.Payee)
		if err != nil {
			return err
		}
		if !ok {
			return model.Fail(model.ErrNotInitialized, "recurring authorization %s -> %s", pay.Payer.Short(), pay.Payee.Short())
		}
		if !a.Active {
			return model.ErrRecurringAuthNotActive
		}
		if pay.Cycle != a.NextCycle() {
			return model.Fail(model.ErrInvalidCycleCount, "cycle %d, expected %d", pay.Cycle, a.NextCycle())
		}
		if pay.Amount > a.Amount {
			return model.Fail(model.ErrInvalidAmount, "amount %d exceeds authorized %d", pay.Amount, a.Amount)
		}
		amt, err := signed(pay.Amount)
		if err != nil {
			return err
		}
		fee, err := signed(pay.Fee)
		if err != nil {
			return err
		}
		gross, ok := safemath.Add(amt, fee)
		if !ok {
			return model.ErrOverflow
		}
		payer, err := tx.user(pay.Payer)
		if err != nil {
			return err
		}
		payee, err := tx.user(pay.Payee)
		if err != nil {
			return err
		}
		if err := payer.Debit(gross, tx.ts); err != nil {
			return err
		}
		if err := payee.Credit(amt, tx.ts); err != nil {
			return err
		}
		if err := a.Execute(tx.ts); err != nil {
			return model.Remap(model.ErrRecurringAuthExecutionFailed, err)
		}
		tx.routeFee(cfg, pay.Fee, "recurring_payment")
		tx.record(pay.Payer, pay.Payee, amt, fee)
		if err := tx.putUser(payer); err != nil {
			return err
		}
		if err := tx.putUser(payee); err != nil {
			return err
		}
		return tx.putRecurring(a)
	})
}

// CancelRecurringAuth deactivates an authorization. The record is kept.
func (p *Processor) CancelRecurringAuth(ctx context.Context, req Request, payer, payee model.Identity) (*model.JournalEntry, error) {
	return p.run(ctx, "cancel_recurring_auth", req, func(tx *txn) error {
		a, err := tx.relayerRecurring(payer, payee)
		if err != nil {
			return err
		}
		a.Cancel()
		tx.record(payer, payee, 0, 0)
		return tx.putRecurring(a)
	})
}

// UpdateRecurringStateHash stores an off-ledger state commitment on the
// authorization.
func (p *Processor) UpdateRecurringStateHash(ctx context.Context, req Request, payer, payee, hash model.Identity) (*model.JournalEntry, error) {
	return p.run(ctx, "update_recurring_state_hash", req, func(tx *txn) error {
		a, err := tx.relayerRecurring(payer, payee)
		if err != nil {
			return err
		}
		a.StateHash = hash
		tx.record(payer, payee, 0, 0)
		tx.entry.Reference = hash.String()
		return tx.putRecurring(a)
	})
}

func (tx *txn) relayerRecurring(payer, payee model.Identity) (*model.RecurringAuth, error) {
	cfg, err := tx.config()
	if err != nil {
		return nil, err
	}
	if _, err := tx.relayer(cfg, model.ErrUnauthorizedAdmin); err != nil {
		return nil, err
	}
	a, ok, err := tx.recurring(payer, payee)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.Fail(model.ErrNotInitialized, "recurring authorization %s -> %s", payer.Short(), payee.Short())
	}
	return a, nil
}
