package model

import "github.com/atmx/vault-engine/internal/safemath"

// MaxTokenSlots is the fixed instrument capacity of a spot account.
const MaxTokenSlots = 16

const tokenBalanceSize = 2 + 8 + 8 + 14

// SpotUserAccountSize is the persisted width of SpotUserAccount.
const SpotUserAccountSize = 8 + 32 + 1 + 8 + 2 + MaxTokenSlots*tokenBalanceSize + 8 + 64

// TokenBalance is one instrument slot of a spot account.
type TokenBalance struct {
	TokenIndex uint16 `json:"token_index"`
	Available  int64  `json:"available_e6"`
	Locked     int64  `json:"locked_e6"`
}

// SpotUserAccount holds per-instrument balances. Slots are assigned in
// first-touch order and never reclaimed.
type SpotUserAccount struct {
	Wallet              Identity                    `json:"wallet"`
	Bump                uint8                       `json:"bump"`
	LastSettledSequence uint64                      `json:"last_settled_sequence"`
	TokenCount          uint16                      `json:"token_count"`
	Balances            [MaxTokenSlots]TokenBalance `json:"-"`
	LastUpdateTS        int64                       `json:"last_update_ts"`
}

func NewSpotUserAccount(wallet Identity, now int64) *SpotUserAccount {
	return &SpotUserAccount{Wallet: wallet, Bump: DefaultBump, LastUpdateTS: now}
}

func (*SpotUserAccount) Kind() Kind { return KindSpotUser }

// Tokens returns the occupied slots in assignment order.
func (s *SpotUserAccount) Tokens() []TokenBalance {
	out := make([]TokenBalance, s.TokenCount)
	copy(out, s.Balances[:s.TokenCount])
	return out
}

// Balance returns the slot for token, if assigned.
func (s *SpotUserAccount) Balance(token uint16) (TokenBalance, bool) {
	if i, ok := s.find(token); ok {
		return s.Balances[i], true
	}
	return TokenBalance{}, false
}

func (s *SpotUserAccount) find(token uint16) (int, bool) {
	for i := 0; i < int(s.TokenCount); i++ {
		if s.Balances[i].TokenIndex == token {
			return i, true
		}
	}
	return 0, false
}

func (s *SpotUserAccount) findOrCreate(token uint16) (int, error) {
	if i, ok := s.find(token); ok {
		return i, nil
	}
	if int(s.TokenCount) >= MaxTokenSlots {
		return 0, Fail(ErrTokenSlotsFull, "no free slot for token %d", token)
	}
	i := int(s.TokenCount)
	s.Balances[i] = TokenBalance{TokenIndex: token}
	s.TokenCount++
	return i, nil
}

// apply runs fn against a copy and commits it only if fn succeeds.
func (s *SpotUserAccount) apply(fn func(n *SpotUserAccount) error) error {
	next := *s
	if err := fn(&next); err != nil {
		return err
	}
	*s = next
	return nil
}

func (s *SpotUserAccount) Deposit(token uint16, amount, now int64) error {
	if amount <= 0 {
		return Fail(ErrInvalidAmount, "deposit amount must be positive")
	}
	return s.apply(func(n *SpotUserAccount) error {
		i, err := n.findOrCreate(token)
		if err != nil {
			return err
		}
		avail, ok := safemath.Add(n.Balances[i].Available, amount)
		if !ok {
			return ErrOverflow
		}
		n.Balances[i].Available = avail
		n.LastUpdateTS = now
		return nil
	})
}

func (s *SpotUserAccount) Withdraw(token uint16, amount, now int64) error {
	if amount <= 0 {
		return Fail(ErrInvalidAmount, "withdraw amount must be positive")
	}
	i, ok := s.find(token)
	if !ok {
		return Fail(ErrInsufficientBalance, "token %d not held", token)
	}
	if s.Balances[i].Available < amount {
		return Fail(ErrInsufficientBalance, "token %d available %d < %d", token, s.Balances[i].Available, amount)
	}
	s.Balances[i].Available -= amount
	s.LastUpdateTS = now
	return nil
}

func (s *SpotUserAccount) Lock(token uint16, amount, now int64) error {
	if amount <= 0 {
		return Fail(ErrInvalidAmount, "lock amount must be positive")
	}
	i, ok := s.find(token)
	if !ok {
		return Fail(ErrInsufficientBalance, "token %d not held", token)
	}
	b := s.Balances[i]
	if b.Available < amount {
		return Fail(ErrInsufficientBalance, "token %d available %d < %d", token, b.Available, amount)
	}
	locked, ok := safemath.Add(b.Locked, amount)
	if !ok {
		return ErrOverflow
	}
	s.Balances[i].Available = b.Available - amount
	s.Balances[i].Locked = locked
	s.LastUpdateTS = now
	return nil
}

func (s *SpotUserAccount) Unlock(token uint16, amount, now int64) error {
	if amount <= 0 {
		return Fail(ErrInvalidAmount, "unlock amount must be positive")
	}
	i, ok := s.find(token)
	if !ok {
		return Fail(ErrInsufficientBalance, "token %d not held", token)
	}
	b := s.Balances[i]
	if b.Locked < amount {
		return Fail(ErrInsufficientBalance, "token %d locked %d < %d", token, b.Locked, amount)
	}
	avail, ok := safemath.Add(b.Available, amount)
	if !ok {
		return ErrOverflow
	}
	s.Balances[i].Locked = b.Locked - amount
	s.Balances[i].Available = avail
	s.LastUpdateTS = now
	return nil
}

// Trade describes one side of a spot fill as seen by a single account.
type Trade struct {
	IsBuy       bool
	BaseToken   uint16
	QuoteToken  uint16
	BaseAmount  int64
	QuoteAmount int64
	Fee         int64
	Sequence    uint64
}

func (s *SpotUserAccount) checkSequence(seq uint64) error {
	if seq <= s.LastSettledSequence {
		return Fail(ErrSettlementFailed, "sequence %d already settled (watermark %d)", seq, s.LastSettledSequence)
	}
	return nil
}

// SettleTrade applies a fill against previously locked funds: a buy spends
// locked quote and receives available base, a sell the mirror. Fee is
// ignored. The sequence must exceed the watermark.
func (s *SpotUserAccount) SettleTrade(t Trade, now int64) error {
	if err := s.checkSequence(t.Sequence); err != nil {
		return err
	}
	payToken, payAmt, recvToken, recvAmt := t.QuoteToken, t.QuoteAmount, t.BaseToken, t.BaseAmount
	if !t.IsBuy {
		payToken, payAmt, recvToken, recvAmt = t.BaseToken, t.BaseAmount, t.QuoteToken, t.QuoteAmount
	}
	return s.apply(func(n *SpotUserAccount) error {
		i, ok := n.find(payToken)
		if !ok {
			return Fail(ErrInsufficientBalance, "token %d not held", payToken)
		}
		if n.Balances[i].Locked < payAmt {
			return Fail(ErrInsufficientBalance, "token %d locked %d < %d", payToken, n.Balances[i].Locked, payAmt)
		}
		n.Balances[i].Locked -= payAmt
		j, err := n.findOrCreate(recvToken)
		if err != nil {
			return err
		}
		avail, ok := safemath.Add(n.Balances[j].Available, recvAmt)
		if !ok {
			return ErrOverflow
		}
		n.Balances[j].Available = avail
		n.LastSettledSequence = t.Sequence
		n.LastUpdateTS = now
		return nil
	})
}

// SettleTradeFunded applies a relayer-reported fill. The paying leg draws
// from available first and falls back to locked for the remainder. A buy
// pays quote+fee and receives base; a sell pays base and receives
// quote-fee.
func (s *SpotUserAccount) SettleTradeFunded(t Trade, now int64) error {
	if err := s.checkSequence(t.Sequence); err != nil {
		return err
	}
	return s.apply(func(n *SpotUserAccount) error {
		var payToken, recvToken uint16
		var cost, credit int64
		var ok bool
		if t.IsBuy {
			payToken, recvToken = t.QuoteToken, t.BaseToken
			if cost, ok = safemath.Add(t.QuoteAmount, t.Fee); !ok {
				return ErrOverflow
			}
			credit = t.BaseAmount
		} else {
			payToken, recvToken = t.BaseToken, t.QuoteToken
			cost = t.BaseAmount
			if credit, ok = safemath.Sub(t.QuoteAmount, t.Fee); !ok {
				return ErrOverflow
			}
			if credit < 0 {
				return Fail(ErrInvalidAmount, "fee %d exceeds quote amount %d", t.Fee, t.QuoteAmount)
			}
		}

		i, err := n.findOrCreate(payToken)
		if err != nil {
			return err
		}
		b := n.Balances[i]
		switch {
		case b.Available >= cost:
			b.Available -= cost
		default:
			total, ok := safemath.Add(b.Available, b.Locked)
			if !ok || total < cost {
				return Fail(ErrInsufficientBalance, "token %d holds %d+%d < %d", payToken, b.Available, b.Locked, cost)
			}
			b.Locked -= cost - b.Available
			b.Available = 0
		}
		n.Balances[i] = b

		j, err := n.findOrCreate(recvToken)
		if err != nil {
			return err
		}
		avail, ok := safemath.Add(n.Balances[j].Available, credit)
		if !ok {
			return ErrOverflow
		}
		n.Balances[j].Available = avail
		n.LastSettledSequence = t.Sequence
		n.LastUpdateTS = now
		return nil
	})
}

func (s *SpotUserAccount) MarshalBinary() ([]byte, error) {
	w := newWriter(SpotUserAccountSize)
	w.u64(SpotUserDiscriminator)
	w.raw(s.Wallet[:])
	w.u8(s.Bump)
	w.u64(s.LastSettledSequence)
	w.u16(s.TokenCount)
	for _, b := range s.Balances {
		w.u16(b.TokenIndex)
		w.i64(b.Available)
		w.i64(b.Locked)
		w.skip(14)
	}
	w.i64(s.LastUpdateTS)
	w.skip(64)
	return w.buf, nil
}

func (s *SpotUserAccount) UnmarshalBinary(data []byte) error {
	r, err := newReader(data, SpotUserAccountSize, SpotUserDiscriminator)
	if err != nil {
		return err
	}
	var out SpotUserAccount
	out.Wallet = r.identity()
	out.Bump = r.u8()
	out.LastSettledSequence = r.u64()
	out.TokenCount = r.u16()
	if out.TokenCount > MaxTokenSlots {
		return Fail(ErrInvalidAccount, "token count %d exceeds capacity", out.TokenCount)
	}
	for i := range out.Balances {
		out.Balances[i].TokenIndex = r.u16()
		out.Balances[i].Available = r.i64()
		out.Balances[i].Locked = r.i64()
		r.skip(14)
	}
	out.LastUpdateTS = r.i64()
	*s = out
	return nil
}
