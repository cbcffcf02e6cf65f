// Package feepolicy reads and updates the prediction-market fee policy
// record owned by the fund subsystem. The record is accessed only by byte
// offset so this package stays format-compatible with the owner's
// encoding without sharing its type.
package feepolicy

import (
	"encoding/binary"
	"math"

	"github.com/atmx/vault-engine/internal/model"
	"github.com/atmx/vault-engine/internal/safemath"
)

// Field offsets within the record.
const (
	offsetDestination    = 8
	offsetBump           = 40
	offsetMintingBps     = 41
	offsetRedemptionBps  = 43
	offsetTakerBps       = 45
	offsetMakerBps       = 47
	offsetSettlementBps  = 49
	offsetProtocolShare  = 51
	offsetMakerReward    = 53
	offsetCreatorShare   = 55
	offsetTotalMinting   = 57
	offsetTotalRedeem    = 65
	offsetTotalTrading   = 73

	// MinSize is the shortest record this package accepts.
	MinSize = 150
)

// Rate selects a basis-point rate.
type Rate int

const (
	RateMinting Rate = iota
	RateRedemption
	RateTaker
	RateMaker
	RateSettlement
)

var rateOffsets = map[Rate]int{
	RateMinting:    offsetMintingBps,
	RateRedemption: offsetRedemptionBps,
	RateTaker:      offsetTakerBps,
	RateMaker:      offsetMakerBps,
	RateSettlement: offsetSettlementBps,
}

// Total selects a running fee total. Settlement fees have no total.
type Total int

const (
	TotalMinting Total = iota
	TotalRedemption
	TotalTrading
)

var totalOffsets = map[Total]int{
	TotalMinting:    offsetTotalMinting,
	TotalRedemption: offsetTotalRedeem,
	TotalTrading:    offsetTotalTrading,
}

func (t Total) String() string {
	switch t {
	case TotalMinting:
		return "minting"
	case TotalRedemption:
		return "redemption"
	case TotalTrading:
		return "trading"
	}
	return "unknown"
}

// Policy is a mutable view over a copy of the raw record.
type Policy struct {
	data []byte
}

// Parse copies data and validates its length.
func Parse(data []byte) (*Policy, error) {
	if len(data) < MinSize {
		return nil, model.Fail(model.ErrInvalidAccount, "fee policy is %d bytes, want at least %d", len(data), MinSize)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Policy{data: buf}, nil
}

// Destination is the fee vault that receives collected fees.
func (p *Policy) Destination() model.Identity {
	var id model.Identity
	copy(id[:], p.data[offsetDestination:offsetDestination+32])
	return id
}

// CheckDestination fails unless dest is the configured fee vault.
func (p *Policy) CheckDestination(dest model.Identity) error {
	if dest != p.Destination() {
		return model.Fail(model.ErrInvalidAccount, "fee destination %s does not match policy", dest.Short())
	}
	return nil
}

func (p *Policy) Rate(r Rate) uint16 {
	off := rateOffsets[r]
	return binary.LittleEndian.Uint16(p.data[off:])
}

// Split applies rate r to gross, returning the fee and the net remainder.
func (p *Policy) Split(r Rate, gross uint64) (fee, net uint64) {
	return safemath.FeeSplit(gross, p.Rate(r))
}

func (p *Policy) Total(t Total) int64 {
	off := totalOffsets[t]
	return int64(binary.LittleEndian.Uint64(p.data[off:]))
}

// AddTotal adds fee to a running total, saturating at the int64 limit.
func (p *Policy) AddTotal(t Total, fee uint64) {
	off := totalOffsets[t]
	cur := p.Total(t)
	inc := int64(math.MaxInt64)
	if fee <= math.MaxInt64 {
		inc = int64(fee)
	}
	next, ok := safemath.Add(cur, inc)
	if !ok {
		next = math.MaxInt64
	}
	binary.LittleEndian.PutUint64(p.data[off:], uint64(next))
}

// Bytes returns the record with any updated totals.
func (p *Policy) Bytes() []byte { return p.data }

// Params describes a fee policy for Build.
type Params struct {
	Destination   model.Identity
	MintingBps    uint16
	RedemptionBps uint16
	TakerBps      uint16
	MakerBps      uint16
	SettlementBps uint16
}

// Discriminator marks records produced by Build.
const Discriminator uint64 = 0x504D5F4645455F43 // "PM_FEE_C"

// Build encodes a fresh record with zero totals, for bootstrapping a
// deployment where the fund subsystem has not written one yet.
func Build(p Params) []byte {
	data := make([]byte, MinSize)
	binary.LittleEndian.PutUint64(data, Discriminator)
	copy(data[offsetDestination:], p.Destination[:])
	data[offsetBump] = model.DefaultBump
	binary.LittleEndian.PutUint16(data[offsetMintingBps:], p.MintingBps)
	binary.LittleEndian.PutUint16(data[offsetRedemptionBps:], p.RedemptionBps)
	binary.LittleEndian.PutUint16(data[offsetTakerBps:], p.TakerBps)
	binary.LittleEndian.PutUint16(data[offsetMakerBps:], p.MakerBps)
	binary.LittleEndian.PutUint16(data[offsetSettlementBps:], p.SettlementBps)
	return data
}
