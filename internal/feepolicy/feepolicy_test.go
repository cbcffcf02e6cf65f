package feepolicy

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/atmx/vault-engine/internal/model"
)

func TestParse_TooShort(t *testing.T) {
	if _, err := Parse(make([]byte, MinSize-1)); !errors.Is(err, model.ErrInvalidAccount) {
		t.Errorf("expected InvalidAccount, got %v", err)
	}
}

func TestPolicy_ReadsOffsets(t *testing.T) {
	dest := model.Identity{0xFE}
	raw := Build(Params{Destination: dest, MintingBps: 50, RedemptionBps: 25, TakerBps: 30, MakerBps: 10, SettlementBps: 100})
	p, err := Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if p.Destination() != dest {
		t.Error("destination mismatch")
	}
	want := map[Rate]uint16{RateMinting: 50, RateRedemption: 25, RateTaker: 30, RateMaker: 10, RateSettlement: 100}
	for r, bps := range want {
		if got := p.Rate(r); got != bps {
			t.Errorf("rate %d = %d, want %d", r, got, bps)
		}
	}
	if binary.LittleEndian.Uint16(raw[45:]) != 30 {
		t.Error("taker rate not at offset 45")
	}
	if err := p.CheckDestination(model.Identity{1}); !errors.Is(err, model.ErrInvalidAccount) {
		t.Errorf("wrong destination: %v", err)
	}
}

func TestPolicy_SplitFiftyBps(t *testing.T) {
	p, _ := Parse(Build(Params{MintingBps: 50}))
	fee, net := p.Split(RateMinting, 1_000_000)
	if fee != 5_000 || net != 995_000 {
		t.Errorf("fee=%d net=%d", fee, net)
	}
}

func TestPolicy_AddTotalWritesInPlace(t *testing.T) {
	raw := Build(Params{})
	p, _ := Parse(raw)
	p.AddTotal(TotalTrading, 1_500)
	p.AddTotal(TotalTrading, 500)
	if got := int64(binary.LittleEndian.Uint64(p.Bytes()[73:])); got != 2_000 {
		t.Errorf("trading total at 73 = %d", got)
	}
	if p.Total(TotalMinting) != 0 || p.Total(TotalRedemption) != 0 {
		t.Error("other totals touched")
	}
	if binary.LittleEndian.Uint64(raw[73:]) != 0 {
		t.Error("Parse must copy the input")
	}
}

func TestPolicy_AddTotalSaturates(t *testing.T) {
	p, _ := Parse(Build(Params{}))
	p.AddTotal(TotalMinting, math.MaxInt64-1)
	p.AddTotal(TotalMinting, 10)
	if p.Total(TotalMinting) != math.MaxInt64 {
		t.Errorf("total = %d, want saturation", p.Total(TotalMinting))
	}
}
