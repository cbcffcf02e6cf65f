package model

import "github.com/atmx/vault-engine/internal/safemath"

// PMUserAccountSize is the persisted width of PMUserAccount.
const PMUserAccountSize = 8 + 32 + 1 + 8*6 + 64

// PMUserAccount is the prediction-market sub-ledger for one wallet. Its
// deposit and withdrawal totals count internal moves from and to the
// user's main account.
type PMUserAccount struct {
	Wallet            Identity `json:"wallet"`
	Bump              uint8    `json:"bump"`
	Locked            int64    `json:"locked_e6"`
	PendingSettlement int64    `json:"pending_settlement_e6"`
	TotalDeposited    int64    `json:"total_deposited_e6"`
	TotalWithdrawn    int64    `json:"total_withdrawn_e6"`
	RealizedPnL       int64    `json:"realized_pnl_e6"`
	LastUpdateTS      int64    `json:"last_update_ts"`
}

func NewPMUserAccount(wallet Identity, now int64) *PMUserAccount {
	return &PMUserAccount{Wallet: wallet, Bump: DefaultBump, LastUpdateTS: now}
}

func (*PMUserAccount) Kind() Kind { return KindPMUser }

// Equity is locked plus pending settlement.
func (p *PMUserAccount) Equity() int64 { return p.Locked + p.PendingSettlement }

func (p *PMUserAccount) Lock(amount, now int64) error {
	locked, ok1 := safemath.Add(p.Locked, amount)
	total, ok2 := safemath.Add(p.TotalDeposited, amount)
	if !ok1 || !ok2 {
		return ErrOverflow
	}
	p.Locked, p.TotalDeposited, p.LastUpdateTS = locked, total, now
	return nil
}

func (p *PMUserAccount) Unlock(amount, now int64) error {
	if p.Locked < amount {
		return Fail(ErrInsufficientMargin, "prediction market locked %d < %d", p.Locked, amount)
	}
	total, ok := safemath.Add(p.TotalWithdrawn, amount)
	if !ok {
		return ErrOverflow
	}
	p.Locked -= amount
	p.TotalWithdrawn, p.LastUpdateTS = total, now
	return nil
}

// Settle releases locked into pending settlement and books
// settlement-release as realized P&L, which may be negative.
func (p *PMUserAccount) Settle(release, settlement, now int64) error {
	if p.Locked < release {
		return Fail(ErrInsufficientMargin, "prediction market locked %d < release %d", p.Locked, release)
	}
	pending, ok1 := safemath.Add(p.PendingSettlement, settlement)
	delta, ok2 := safemath.Sub(settlement, release)
	if !ok1 || !ok2 {
		return ErrOverflow
	}
	pnl, ok := safemath.Add(p.RealizedPnL, delta)
	if !ok {
		return ErrOverflow
	}
	p.Locked -= release
	p.PendingSettlement, p.RealizedPnL, p.LastUpdateTS = pending, pnl, now
	return nil
}

// SettleNet releases locked and credits a fee-net amount to pending
// settlement without booking realized P&L.
func (p *PMUserAccount) SettleNet(release, net, now int64) error {
	if p.Locked < release {
		return Fail(ErrInsufficientMargin, "prediction market locked %d < release %d", p.Locked, release)
	}
	pending, ok := safemath.Add(p.PendingSettlement, net)
	if !ok {
		return ErrOverflow
	}
	p.Locked -= release
	p.PendingSettlement, p.LastUpdateTS = pending, now
	return nil
}

// Claim zeroes pending settlement and returns the claimed amount.
func (p *PMUserAccount) Claim(now int64) (int64, error) {
	amount := p.PendingSettlement
	total, ok := safemath.Add(p.TotalWithdrawn, amount)
	if !ok {
		return 0, ErrOverflow
	}
	p.PendingSettlement, p.TotalWithdrawn, p.LastUpdateTS = 0, total, now
	return amount, nil
}

// ForceUnlock drops up to amount of locked (0 = all) and returns the
// amount released. Cumulative totals are left alone.
func (p *PMUserAccount) ForceUnlock(amount, now int64) (int64, error) {
	release := amount
	if amount == 0 {
		release = p.Locked
	}
	if release <= 0 {
		return 0, nil
	}
	if p.Locked < release {
		return 0, Fail(ErrInsufficientMargin, "prediction market locked %d < release %d", p.Locked, release)
	}
	p.Locked -= release
	p.LastUpdateTS = now
	return release, nil
}

func (p *PMUserAccount) MarshalBinary() ([]byte, error) {
	w := newWriter(PMUserAccountSize)
	w.u64(PMUserDiscriminator)
	w.raw(p.Wallet[:])
	w.u8(p.Bump)
	w.i64(p.Locked)
	w.i64(p.PendingSettlement)
	w.i64(p.TotalDeposited)
	w.i64(p.TotalWithdrawn)
	w.i64(p.RealizedPnL)
	w.i64(p.LastUpdateTS)
	w.skip(64)
	return w.buf, nil
}

func (p *PMUserAccount) UnmarshalBinary(data []byte) error {
	r, err := newReader(data, PMUserAccountSize, PMUserDiscriminator)
	if err != nil {
		return err
	}
	*p = PMUserAccount{
		Wallet:            r.identity(),
		Bump:              r.u8(),
		Locked:            r.i64(),
		PendingSettlement: r.i64(),
		TotalDeposited:    r.i64(),
		TotalWithdrawn:    r.i64(),
		RealizedPnL:       r.i64(),
		LastUpdateTS:      r.i64(),
	}
	return nil
}
