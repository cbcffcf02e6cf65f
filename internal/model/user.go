package model

import "github.com/atmx/vault-engine/internal/safemath"

// UserAccountSize is the persisted width of UserAccount.
const UserAccountSize = 8 + 32 + 1 + 8*6 + 64

// DustThreshold is the residual locked margin (one quote unit) swept into
// available by ClosePosition.
const DustThreshold int64 = 1_000_000

// UserAccount is a user's main balance record. All amounts are e6 units.
type UserAccount struct {
	Wallet         Identity `json:"wallet"`
	Bump           uint8    `json:"bump"`
	Available      int64    `json:"available_balance_e6"`
	Locked         int64    `json:"locked_margin_e6"`
	UnrealizedPnL  int64    `json:"unrealized_pnl_e6"`
	TotalDeposited int64    `json:"total_deposited_e6"`
	TotalWithdrawn int64    `json:"total_withdrawn_e6"`
	LastUpdateTS   int64    `json:"last_update_ts"`
}

// NewUserAccount returns an empty account for wallet.
func NewUserAccount(wallet Identity, now int64) *UserAccount {
	return &UserAccount{Wallet: wallet, Bump: DefaultBump, LastUpdateTS: now}
}

func (*UserAccount) Kind() Kind { return KindUser }

// Equity is available + locked + unrealized P&L. It is never persisted.
func (u *UserAccount) Equity() (int64, error) {
	sum, ok := safemath.Add(u.Available, u.Locked)
	if !ok {
		return 0, ErrOverflow
	}
	if sum, ok = safemath.Add(sum, u.UnrealizedPnL); !ok {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Deposit credits available and the cumulative deposit total.
func (u *UserAccount) Deposit(amount, now int64) error {
	avail, ok1 := safemath.Add(u.Available, amount)
	total, ok2 := safemath.Add(u.TotalDeposited, amount)
	if !ok1 || !ok2 {
		return ErrOverflow
	}
	u.Available, u.TotalDeposited, u.LastUpdateTS = avail, total, now
	return nil
}

// Withdraw debits available and adds to the cumulative withdrawal total.
func (u *UserAccount) Withdraw(amount, now int64) error {
	if u.Available < amount {
		return Fail(ErrInsufficientBalance, "available %d < %d", u.Available, amount)
	}
	avail, ok1 := safemath.Sub(u.Available, amount)
	total, ok2 := safemath.Add(u.TotalWithdrawn, amount)
	if !ok1 || !ok2 {
		return ErrOverflow
	}
	u.Available, u.TotalWithdrawn, u.LastUpdateTS = avail, total, now
	return nil
}

// Credit adds to available without touching cumulative totals.
func (u *UserAccount) Credit(amount, now int64) error {
	avail, ok := safemath.Add(u.Available, amount)
	if !ok {
		return ErrOverflow
	}
	u.Available, u.LastUpdateTS = avail, now
	return nil
}

// Debit removes from available without touching cumulative totals.
func (u *UserAccount) Debit(amount, now int64) error {
	if u.Available < amount {
		return Fail(ErrInsufficientBalance, "available %d < %d", u.Available, amount)
	}
	avail, ok := safemath.Sub(u.Available, amount)
	if !ok {
		return ErrOverflow
	}
	u.Available, u.LastUpdateTS = avail, now
	return nil
}

// LockMargin moves amount from available to locked.
func (u *UserAccount) LockMargin(amount, now int64) error {
	if u.Available < amount {
		return Fail(ErrInsufficientBalance, "available %d < %d", u.Available, amount)
	}
	avail, ok1 := safemath.Sub(u.Available, amount)
	locked, ok2 := safemath.Add(u.Locked, amount)
	if !ok1 || !ok2 {
		return ErrOverflow
	}
	u.Available, u.Locked, u.LastUpdateTS = avail, locked, now
	return nil
}

// ReleaseMargin moves amount from locked back to available.
func (u *UserAccount) ReleaseMargin(amount, now int64) error {
	if u.Locked < amount {
		return Fail(ErrInsufficientMargin, "locked %d < %d", u.Locked, amount)
	}
	locked, ok1 := safemath.Sub(u.Locked, amount)
	avail, ok2 := safemath.Add(u.Available, amount)
	if !ok1 || !ok2 {
		return ErrOverflow
	}
	u.Available, u.Locked, u.LastUpdateTS = avail, locked, now
	return nil
}

// ClosePosition releases margin, sweeps sub-threshold residual margin,
// applies realized P&L and then debits the fee. It returns how much locked
// margin left the account in total. The receiver is untouched on error.
func (u *UserAccount) ClosePosition(release, pnl, fee, now int64) (int64, error) {
	if u.Locked < release {
		return 0, Fail(ErrInsufficientMargin, "locked %d < release %d", u.Locked, release)
	}
	locked, ok1 := safemath.Sub(u.Locked, release)
	avail, ok2 := safemath.Add(u.Available, release)
	if !ok1 || !ok2 {
		return 0, ErrOverflow
	}
	if locked > 0 && locked < DustThreshold {
		var ok bool
		if avail, ok = safemath.Add(avail, locked); !ok {
			return 0, ErrOverflow
		}
		locked = 0
	}
	avail, ok := safemath.Add(avail, pnl)
	if !ok {
		return 0, ErrOverflow
	}
	if avail < fee {
		return 0, Fail(ErrInsufficientBalance, "available %d < fee %d", avail, fee)
	}
	if avail, ok = safemath.Sub(avail, fee); !ok {
		return 0, ErrOverflow
	}
	freed := u.Locked - locked
	u.Available, u.Locked, u.LastUpdateTS = avail, locked, now
	return freed, nil
}

// Liquidate zeroes locked margin unconditionally and credits the user's
// remainder. It returns the margin that was zeroed.
func (u *UserAccount) Liquidate(remainder, now int64) (int64, error) {
	avail, ok := safemath.Add(u.Available, remainder)
	if !ok {
		return 0, ErrOverflow
	}
	freed := u.Locked
	u.Available, u.Locked, u.LastUpdateTS = avail, 0, now
	return freed, nil
}

// ForceRelease moves up to amount of locked margin to available; amount 0
// releases everything. It returns the amount released, which is 0 when
// there was nothing to release.
func (u *UserAccount) ForceRelease(amount, now int64) (int64, error) {
	release := amount
	if amount == 0 {
		release = u.Locked
	}
	if release > u.Locked {
		return 0, Fail(ErrInsufficientMargin, "locked %d < release %d", u.Locked, release)
	}
	if release <= 0 {
		return 0, nil
	}
	if err := u.ReleaseMargin(release, now); err != nil {
		return 0, err
	}
	return release, nil
}

func (u *UserAccount) MarshalBinary() ([]byte, error) {
	w := newWriter(UserAccountSize)
	w.u64(UserAccountDiscriminator)
	w.raw(u.Wallet[:])
	w.u8(u.Bump)
	w.i64(u.Available)
	w.i64(u.Locked)
	w.i64(u.UnrealizedPnL)
	w.i64(u.TotalDeposited)
	w.i64(u.TotalWithdrawn)
	w.i64(u.LastUpdateTS)
	w.skip(64)
	return w.buf, nil
}

func (u *UserAccount) UnmarshalBinary(data []byte) error {
	r, err := newReader(data, UserAccountSize, UserAccountDiscriminator)
	if err != nil {
		return err
	}
	*u = UserAccount{
		Wallet:         r.identity(),
		Bump:           r.u8(),
		Available:      r.i64(),
		Locked:         r.i64(),
		UnrealizedPnL:  r.i64(),
		TotalDeposited: r.i64(),
		TotalWithdrawn: r.i64(),
		LastUpdateTS:   r.i64(),
	}
	return nil
}
