package model

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestRecordSizes(t *testing.T) {
	cases := map[string]struct{ got, want int }{
		"config":    {ConfigSize, 569},
		"user":      {UserAccountSize, 153},
		"pm_user":   {PMUserAccountSize, 153},
		"spot_user": {SpotUserAccountSize, 635},
		"recurring": {RecurringAuthSize, 210},
	}
	for name, c := range cases {
		if c.got != c.want {
			t.Errorf("%s size = %d, want %d", name, c.got, c.want)
		}
	}
}

func TestConfig_UnsetSlotsEncodeAsZero(t *testing.T) {
	cfg := &Config{Admin: Identity{9}, LedgerProgram: Identity{7}}
	cfg.AddCaller(Identity{5})
	data, err := cfg.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	// First whitelist slot starts after discriminator + admin + mint + vault.
	const callersOffset = 8 + 32*3
	if data[callersOffset] != 5 {
		t.Errorf("slot 0 first byte = %d, want 5", data[callersOffset])
	}
	for _, b := range data[callersOffset+32 : callersOffset+32*MaxAuthorizedCallers] {
		if b != 0 {
			t.Fatal("empty slots must be all-zero on disk")
		}
	}
	fundOffset := callersOffset + 32*MaxAuthorizedCallers + 32
	for _, b := range data[fundOffset : fundOffset+32] {
		if b != 0 {
			t.Fatal("unset fund program must be all-zero on disk")
		}
	}

	var back Config
	if err := back.UnmarshalBinary(data); err != nil {
		t.Fatal(err)
	}
	if back.FundProgram.IsSet() {
		t.Error("fund program decoded as set")
	}
	if got := back.Callers(); len(got) != 1 || got[0] != (Identity{5}) {
		t.Errorf("callers = %v", got)
	}
	if back.Admin != cfg.Admin || back.LedgerProgram != cfg.LedgerProgram {
		t.Error("identity fields lost in round trip")
	}
}

func TestUserAccount_LayoutOffsets(t *testing.T) {
	u := &UserAccount{Wallet: Identity{1}, Bump: 254, Available: 42, Locked: -1}
	data, _ := u.MarshalBinary()
	if got := binary.LittleEndian.Uint64(data); got != UserAccountDiscriminator {
		t.Errorf("discriminator = %#x", got)
	}
	if data[40] != 254 {
		t.Errorf("bump at 40 = %d", data[40])
	}
	if got := int64(binary.LittleEndian.Uint64(data[41:])); got != 42 {
		t.Errorf("available at 41 = %d", got)
	}
	if got := int64(binary.LittleEndian.Uint64(data[49:])); got != -1 {
		t.Errorf("locked at 49 = %d", got)
	}
}

func TestDecode_WrongDiscriminator(t *testing.T) {
	u := &UserAccount{Wallet: Identity{1}}
	data, _ := u.MarshalBinary()
	var p PMUserAccount
	if err := p.UnmarshalBinary(data); !errors.Is(err, ErrInvalidAccount) {
		t.Errorf("expected InvalidAccount, got %v", err)
	}
	if err := u.UnmarshalBinary(data[:10]); !errors.Is(err, ErrInvalidAccount) {
		t.Errorf("short data: %v", err)
	}
	if k, ok := KindOf(data); !ok || k != KindUser {
		t.Errorf("KindOf = %q, %v", k, ok)
	}
}

func TestSpotUserAccount_RoundTrip(t *testing.T) {
	s := NewSpotUserAccount(Identity{4}, 77)
	s.Deposit(3, 500, 78)
	s.Lock(3, 200, 79)
	s.LastSettledSequence = 12
	data, _ := s.MarshalBinary()
	var back SpotUserAccount
	if err := back.UnmarshalBinary(data); err != nil {
		t.Fatal(err)
	}
	if back != *s {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", back, *s)
	}
}

func TestDerive_Deterministic(t *testing.T) {
	program := Identity{0xAA}
	wallet := Identity{0x01}
	a := UserAddress(program, wallet)
	if a != UserAddress(program, wallet) {
		t.Error("derivation is not deterministic")
	}
	if a == PMUserAddress(program, wallet) || a == SpotUserAddress(program, wallet) {
		t.Error("different seeds must give different addresses")
	}
	if RecurringAuthAddress(program, Identity{1}, Identity{2}) == RecurringAuthAddress(program, Identity{2}, Identity{1}) {
		t.Error("recurring auth address must depend on payer/payee order")
	}
}

func TestParseIdentity(t *testing.T) {
	id := Identity{0xde, 0xad}
	back, err := ParseIdentity(id.String())
	if err != nil || back != id {
		t.Fatalf("parse %s = %v, %v", id, back, err)
	}
	if _, err := ParseIdentity("0x1234"); err == nil {
		t.Error("short identity should fail")
	}
}

func TestErrorCodes(t *testing.T) {
	if ErrInvalidInstruction.Code() != 0 || ErrRecurringAuthExecutionFailed.Code() != 25 {
		t.Error("error codes shifted")
	}
	err := Remap(ErrDepositFailed, Fail(ErrTokenSlotsFull, "x"))
	if code, ok := CodeOf(err); !ok || code != ErrDepositFailed {
		t.Errorf("CodeOf = %v, %v", code, ok)
	}
}
