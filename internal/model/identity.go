package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// IdentityLength is the byte width of every identity and address.
const IdentityLength = 32

// Identity is a 32-byte principal or record address. The all-zero value
// only appears at the storage boundary, where it encodes an unset slot.
type Identity [IdentityLength]byte

// ParseIdentity decodes a hex identity, with or without a 0x prefix.
func ParseIdentity(s string) (Identity, error) {
	var id Identity
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return id, fmt.Errorf("model: parse identity: %w", err)
	}
	if len(b) != IdentityLength {
		return id, fmt.Errorf("model: identity must be %d bytes, got %d", IdentityLength, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// MustIdentity is ParseIdentity for constants and tests.
func MustIdentity(s string) Identity {
	id, err := ParseIdentity(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id Identity) IsZero() bool { return id == Identity{} }

func (id Identity) String() string { return hexutil.Encode(id[:]) }

// Short returns the first four bytes in hex, for log lines.
func (id Identity) Short() string { return hexutil.Encode(id[:4]) }

func (id Identity) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Slot is an optional identity: either unset or set to a specific
// identity. The zero Slot is unset. It is written as the all-zero identity
// only when a record is encoded.
type Slot struct {
	id  Identity
	set bool
}

// Some returns a set slot holding id.
func Some(id Identity) Slot { return Slot{id: id, set: true} }

// Get returns the held identity and whether the slot is set.
func (s Slot) Get() (Identity, bool) { return s.id, s.set }

func (s Slot) IsSet() bool { return s.set }

// Is reports whether the slot is set to id.
func (s Slot) Is(id Identity) bool { return s.set && s.id == id }

func (s Slot) String() string {
	if !s.set {
		return "unset"
	}
	return s.id.String()
}

func (s Slot) MarshalJSON() ([]byte, error) {
	if !s.set {
		return []byte("null"), nil
	}
	return json.Marshal(s.id)
}

func (s *Slot) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = Slot{}
		return nil
	}
	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	*s = slotFromWire(id)
	return nil
}

func slotFromWire(id Identity) Slot {
	if id.IsZero() {
		return Slot{}
	}
	return Some(id)
}

func (s Slot) wire() Identity {
	if !s.set {
		return Identity{}
	}
	return s.id
}
