package model

import (
	"encoding/binary"
)

// Kind names a persisted record type.
type Kind string

const (
	KindConfig          Kind = "config"
	KindUser            Kind = "user"
	KindPMUser          Kind = "pm_user"
	KindSpotUser        Kind = "spot_user"
	KindRecurringAuth   Kind = "recurring_auth"
	KindRelayerRegistry Kind = "relayer_registry"

	// KindFeePolicy records are owned by the fund subsystem and handled
	// only through package feepolicy.
	KindFeePolicy Kind = "fee_policy"
)

const (
	ConfigDiscriminator          uint64 = 0x5641554C545F434F // "VAULT_CO"
	UserAccountDiscriminator     uint64 = 0x555345525F414343 // "USER_ACC"
	PMUserDiscriminator          uint64 = 0x504D5F55534552   // "PM_USER"
	SpotUserDiscriminator        uint64 = 0x53504F545F555352 // "SPOT_USR"
	RecurringAuthDiscriminator   uint64 = 0x5245435F41555448 // "REC_AUTH"
	RelayerRegistryDiscriminator uint64 = 0x52454C4159455253 // "RELAYERS"
)

var kindByDiscriminator = map[uint64]Kind{
	ConfigDiscriminator:          KindConfig,
	UserAccountDiscriminator:     KindUser,
	PMUserDiscriminator:          KindPMUser,
	SpotUserDiscriminator:        KindSpotUser,
	RecurringAuthDiscriminator:   KindRecurringAuth,
	RelayerRegistryDiscriminator: KindRelayerRegistry,
}

// KindOf identifies a record by its leading discriminator.
func KindOf(data []byte) (Kind, bool) {
	if len(data) < 8 {
		return "", false
	}
	k, ok := kindByDiscriminator[binary.LittleEndian.Uint64(data)]
	return k, ok
}

// Record is implemented by every persisted record type.
type Record interface {
	Kind() Kind
	MarshalBinary() ([]byte, error)
	UnmarshalBinary(data []byte) error
}

// writer fills a fixed-size little-endian buffer field by field.
type writer struct {
	buf []byte
	off int
}

func newWriter(size int) *writer { return &writer{buf: make([]byte, size)} }

func (w *writer) u8(v uint8) {
	w.buf[w.off] = v
	w.off++
}

func (w *writer) boolean(v bool) {
	if v {
		w.u8(1)
		return
	}
	w.u8(0)
}

func (w *writer) u16(v uint16) {
	binary.LittleEndian.PutUint16(w.buf[w.off:], v)
	w.off += 2
}

func (w *writer) u32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[w.off:], v)
	w.off += 4
}

func (w *writer) u64(v uint64) {
	binary.LittleEndian.PutUint64(w.buf[w.off:], v)
	w.off += 8
}

func (w *writer) i64(v int64) { w.u64(uint64(v)) }

func (w *writer) raw(b []byte) {
	copy(w.buf[w.off:], b)
	w.off += len(b)
}

func (w *writer) skip(n int) { w.off += n }

// reader consumes a record written by writer. Callers check the length
// once up front; individual reads do not.
type reader struct {
	buf []byte
	off int
}

func newReader(data []byte, size int, disc uint64) (*reader, error) {
	if len(data) < size {
		return nil, Fail(ErrInvalidAccount, "record is %d bytes, want %d", len(data), size)
	}
	if got := binary.LittleEndian.Uint64(data); got != disc {
		return nil, Fail(ErrInvalidAccount, "discriminator %#x, want %#x", got, disc)
	}
	return &reader{buf: data, off: 8}, nil
}

func (r *reader) u8() uint8 {
	v := r.buf[r.off]
	r.off++
	return v
}

func (r *reader) boolean() (bool, error) {
	switch v := r.u8(); v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, Fail(ErrInvalidAccount, "invalid bool byte %d at offset %d", v, r.off-1)
	}
}

func (r *reader) u16() uint16 {
	v := binary.LittleEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v
}

func (r *reader) u32() uint32 {
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

func (r *reader) u64() uint64 {
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v
}

func (r *reader) i64() int64 { return int64(r.u64()) }

func (r *reader) identity() Identity {
	var id Identity
	copy(id[:], r.buf[r.off:r.off+IdentityLength])
	r.off += IdentityLength
	return id
}

func (r *reader) skip(n int) { r.off += n }
