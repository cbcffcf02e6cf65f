package model

import (
	"errors"
	"testing"
)

func TestUserAccount_DepositWithdraw(t *testing.T) {
	u := NewUserAccount(Identity{1}, 0)
	if err := u.Deposit(5_000_000, 10); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := u.Withdraw(2_000_000, 11); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if u.Available != 3_000_000 || u.TotalDeposited != 5_000_000 || u.TotalWithdrawn != 2_000_000 {
		t.Errorf("unexpected balances: %+v", u)
	}
	if u.LastUpdateTS != 11 {
		t.Errorf("last update = %d, want 11", u.LastUpdateTS)
	}
}

func TestUserAccount_WithdrawInsufficient(t *testing.T) {
	u := NewUserAccount(Identity{1}, 0)
	u.Available = 100
	err := u.Withdraw(101, 1)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected InsufficientBalance, got %v", err)
	}
	if u.Available != 100 || u.TotalWithdrawn != 0 {
		t.Error("failed withdraw must not mutate the account")
	}
}

func TestUserAccount_LockRelease(t *testing.T) {
	u := &UserAccount{Available: 1_000}
	if err := u.LockMargin(1_001, 0); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("lock more than available: %v", err)
	}
	if err := u.LockMargin(600, 0); err != nil {
		t.Fatal(err)
	}
	if err := u.ReleaseMargin(601, 0); !errors.Is(err, ErrInsufficientMargin) {
		t.Errorf("release more than locked: %v", err)
	}
	if err := u.ReleaseMargin(200, 0); err != nil {
		t.Fatal(err)
	}
	if u.Available != 600 || u.Locked != 400 {
		t.Errorf("available=%d locked=%d, want 600/400", u.Available, u.Locked)
	}
}

func TestUserAccount_ClosePositionDustSweep(t *testing.T) {
	u := &UserAccount{Available: 0, Locked: 5_900_000}
	freed, err := u.ClosePosition(5_000_000, 0, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	// 900_000 residual is under the 1_000_000 threshold and swept.
	if u.Locked != 0 || u.Available != 5_900_000 {
		t.Errorf("available=%d locked=%d, want 5900000/0", u.Available, u.Locked)
	}
	if freed != 5_900_000 {
		t.Errorf("freed = %d, want 5900000", freed)
	}
}

func TestUserAccount_ClosePositionKeepsLargeResidual(t *testing.T) {
	u := &UserAccount{Available: 0, Locked: 3_000_000}
	if _, err := u.ClosePosition(2_000_000, 0, 0, 1); err != nil {
		t.Fatal(err)
	}
	if u.Locked != 1_000_000 {
		t.Errorf("locked = %d; exactly the threshold is not dust", u.Locked)
	}
}

func TestUserAccount_ClosePositionPnLAndFee(t *testing.T) {
	u := &UserAccount{Available: 100, Locked: 2_000_000}
	if _, err := u.ClosePosition(2_000_000, -500_000, 10_000, 1); err != nil {
		t.Fatal(err)
	}
	if u.Available != 1_490_100 {
		t.Errorf("available = %d, want 1490100", u.Available)
	}
}

func TestUserAccount_ClosePositionFeeExceedsBalance(t *testing.T) {
	u := &UserAccount{Available: 0, Locked: 2_000_000}
	_, err := u.ClosePosition(2_000_000, -1_999_000, 5_000, 1)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected InsufficientBalance, got %v", err)
	}
	if u.Locked != 2_000_000 || u.Available != 0 {
		t.Error("failed close must leave the account untouched")
	}
}

func TestUserAccount_Liquidate(t *testing.T) {
	u := &UserAccount{Available: 10, Locked: 7_000_000}
	freed, err := u.Liquidate(1_000_000, 1)
	if err != nil {
		t.Fatal(err)
	}
	if freed != 7_000_000 || u.Locked != 0 || u.Available != 1_000_010 {
		t.Errorf("freed=%d locked=%d available=%d", freed, u.Locked, u.Available)
	}
}

func TestUserAccount_ForceRelease(t *testing.T) {
	u := &UserAccount{Locked: 300}
	if _, err := u.ForceRelease(301, 0); !errors.Is(err, ErrInsufficientMargin) {
		t.Errorf("expected InsufficientMargin, got %v", err)
	}
	got, err := u.ForceRelease(0, 0)
	if err != nil || got != 300 {
		t.Fatalf("release all = %d, %v", got, err)
	}
	got, err = u.ForceRelease(0, 0)
	if err != nil || got != 0 {
		t.Errorf("release on empty = %d, %v; want no-op", got, err)
	}
}

func TestUserAccount_Equity(t *testing.T) {
	u := &UserAccount{Available: 10, Locked: 20, UnrealizedPnL: -5}
	if eq, err := u.Equity(); err != nil || eq != 25 {
		t.Errorf("equity = %d, %v", eq, err)
	}
}

func TestPMUserAccount_Lifecycle(t *testing.T) {
	p := NewPMUserAccount(Identity{2}, 0)
	if err := p.Lock(1_000, 1); err != nil {
		t.Fatal(err)
	}
	if err := p.Unlock(1_001, 1); !errors.Is(err, ErrInsufficientMargin) {
		t.Errorf("unlock over locked: %v", err)
	}
	if err := p.Settle(600, 400, 2); err != nil {
		t.Fatal(err)
	}
	if p.Locked != 400 || p.PendingSettlement != 400 || p.RealizedPnL != -200 {
		t.Errorf("after settle: %+v", p)
	}
	claimed, err := p.Claim(3)
	if err != nil || claimed != 400 {
		t.Fatalf("claim = %d, %v", claimed, err)
	}
	if p.PendingSettlement != 0 || p.TotalWithdrawn != 400 {
		t.Errorf("after claim: %+v", p)
	}
}

func TestPMUserAccount_SettleNetSkipsPnL(t *testing.T) {
	p := &PMUserAccount{Locked: 1_000}
	if err := p.SettleNet(1_000, 1_980, 1); err != nil {
		t.Fatal(err)
	}
	if p.Locked != 0 || p.PendingSettlement != 1_980 || p.RealizedPnL != 0 {
		t.Errorf("after settle net: %+v", p)
	}
}

func TestPMUserAccount_ForceUnlock(t *testing.T) {
	p := &PMUserAccount{Locked: 50}
	if got, _ := p.ForceUnlock(0, 0); got != 50 || p.Locked != 0 {
		t.Errorf("force unlock all = %d, locked %d", got, p.Locked)
	}
	if got, err := p.ForceUnlock(0, 0); got != 0 || err != nil {
		t.Errorf("empty force unlock = %d, %v", got, err)
	}
}
