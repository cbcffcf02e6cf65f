package model

import (
	"errors"
	"testing"
)

const (
	usdc uint16 = 0
	btc  uint16 = 1
)

func TestSpotUserAccount_SlotsAssignedInOrder(t *testing.T) {
	s := NewSpotUserAccount(Identity{3}, 0)
	for i := 0; i < MaxTokenSlots; i++ {
		if err := s.Deposit(uint16(100+i), 1, 0); err != nil {
			t.Fatalf("deposit token %d: %v", 100+i, err)
		}
	}
	err := s.Deposit(999, 1, 0)
	if !errors.Is(err, ErrTokenSlotsFull) {
		t.Fatalf("expected TokenSlotsFull, got %v", err)
	}
	if s.TokenCount != MaxTokenSlots {
		t.Errorf("token count = %d", s.TokenCount)
	}
	// Existing instruments still accept deposits after saturation.
	if err := s.Deposit(100, 1, 0); err != nil {
		t.Errorf("deposit to existing slot: %v", err)
	}
}

func TestSpotUserAccount_RejectsNonPositive(t *testing.T) {
	s := NewSpotUserAccount(Identity{3}, 0)
	for name, fn := range map[string]func() error{
		"deposit":  func() error { return s.Deposit(usdc, 0, 0) },
		"withdraw": func() error { return s.Withdraw(usdc, -1, 0) },
		"lock":     func() error { return s.Lock(usdc, 0, 0) },
		"unlock":   func() error { return s.Unlock(usdc, 0, 0) },
	} {
		if err := fn(); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("%s: expected InvalidAmount, got %v", name, err)
		}
	}
	if s.TokenCount != 0 {
		t.Error("rejected deposit must not allocate a slot")
	}
}

func TestSpotUserAccount_SettleTradeBuy(t *testing.T) {
	s := NewSpotUserAccount(Identity{3}, 0)
	s.Deposit(usdc, 10_000, 0)
	s.Lock(usdc, 6_000, 0)

	err := s.SettleTrade(Trade{IsBuy: true, BaseToken: btc, QuoteToken: usdc, BaseAmount: 2, QuoteAmount: 5_000, Sequence: 1}, 5)
	if err != nil {
		t.Fatal(err)
	}
	q, _ := s.Balance(usdc)
	b, _ := s.Balance(btc)
	if q.Locked != 1_000 || q.Available != 4_000 || b.Available != 2 {
		t.Errorf("quote=%+v base=%+v", q, b)
	}
	if s.LastSettledSequence != 1 {
		t.Errorf("watermark = %d", s.LastSettledSequence)
	}
}

func TestSpotUserAccount_ReplayRejected(t *testing.T) {
	s := NewSpotUserAccount(Identity{3}, 0)
	s.Deposit(usdc, 10_000, 0)
	s.Lock(usdc, 10_000, 0)
	trade := Trade{IsBuy: true, BaseToken: btc, QuoteToken: usdc, BaseAmount: 1, QuoteAmount: 1_000, Sequence: 7}
	if err := s.SettleTrade(trade, 0); err != nil {
		t.Fatal(err)
	}
	before := *s
	for _, seq := range []uint64{7, 3} {
		trade.Sequence = seq
		if err := s.SettleTrade(trade, 0); !errors.Is(err, ErrSettlementFailed) {
			t.Errorf("seq %d: expected SettlementFailed, got %v", seq, err)
		}
		if err := s.SettleTradeFunded(trade, 0); !errors.Is(err, ErrSettlementFailed) {
			t.Errorf("funded seq %d: expected SettlementFailed, got %v", seq, err)
		}
	}
	if *s != before {
		t.Error("replayed settlement mutated the account")
	}
}

func TestSpotUserAccount_FundedBuyFallsBackToLocked(t *testing.T) {
	s := NewSpotUserAccount(Identity{3}, 0)
	s.Deposit(usdc, 1_000, 0)
	s.Lock(usdc, 800, 0) // available 200, locked 800

	err := s.SettleTradeFunded(Trade{IsBuy: true, BaseToken: btc, QuoteToken: usdc, BaseAmount: 5, QuoteAmount: 490, Fee: 10, Sequence: 1}, 0)
	if err != nil {
		t.Fatal(err)
	}
	q, _ := s.Balance(usdc)
	if q.Available != 0 || q.Locked != 500 {
		t.Errorf("quote = %+v, want available 0 locked 500", q)
	}
}

func TestSpotUserAccount_FundedSellNetsFee(t *testing.T) {
	s := NewSpotUserAccount(Identity{3}, 0)
	s.Deposit(btc, 10, 0)
	err := s.SettleTradeFunded(Trade{IsBuy: false, BaseToken: btc, QuoteToken: usdc, BaseAmount: 4, QuoteAmount: 4_000, Fee: 40, Sequence: 1}, 0)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := s.Balance(btc)
	q, _ := s.Balance(usdc)
	if b.Available != 6 || q.Available != 3_960 {
		t.Errorf("base=%+v quote=%+v", b, q)
	}
}

func TestSpotUserAccount_FundedFailureLeavesNoTrace(t *testing.T) {
	s := NewSpotUserAccount(Identity{3}, 0)
	s.Deposit(usdc, 100, 0)
	before := *s
	err := s.SettleTradeFunded(Trade{IsBuy: true, BaseToken: btc, QuoteToken: usdc, BaseAmount: 1, QuoteAmount: 100, Fee: 1, Sequence: 1}, 0)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected InsufficientBalance, got %v", err)
	}
	if *s != before {
		t.Error("failed settlement allocated slots or moved funds")
	}

	s.Deposit(btc, 1, 0)
	err = s.SettleTradeFunded(Trade{IsBuy: false, BaseToken: btc, QuoteToken: usdc, BaseAmount: 1, QuoteAmount: 5, Fee: 6, Sequence: 1}, 0)
	if !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("fee above quote: %v", err)
	}
}
