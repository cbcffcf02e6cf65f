package model

// MaxRelayers bounds the relayer registry.
const MaxRelayers = 10

// RelayerRegistrySize is the persisted width of RelayerRegistry.
const RelayerRegistrySize = 8 + 32*MaxRelayers + 32

// RelayerRegistry lists identities the admin has delegated relayer
// operations to. It is separate from the caller whitelist so Config keeps
// its layout.
type RelayerRegistry struct {
	Relayers [MaxRelayers]Slot `json:"relayers"`
}

func (*RelayerRegistry) Kind() Kind { return KindRelayerRegistry }

func (r *RelayerRegistry) Has(id Identity) bool {
	for _, s := range r.Relayers {
		if s.Is(id) {
			return true
		}
	}
	return false
}

// Add is idempotent; a full registry fails with ErrInvalidAccount.
func (r *RelayerRegistry) Add(id Identity) (bool, error) {
	if id.IsZero() {
		return false, Fail(ErrInvalidAccount, "zero identity cannot be a relayer")
	}
	if r.Has(id) {
		return false, nil
	}
	for i, s := range r.Relayers {
		if !s.IsSet() {
			r.Relayers[i] = Some(id)
			return true, nil
		}
	}
	return false, Fail(ErrInvalidAccount, "relayer registry is full")
}

func (r *RelayerRegistry) Remove(id Identity) bool {
	for i, s := range r.Relayers {
		if s.Is(id) {
			r.Relayers[i] = Slot{}
			return true
		}
	}
	return false
}

func (r *RelayerRegistry) MarshalBinary() ([]byte, error) {
	w := newWriter(RelayerRegistrySize)
	w.u64(RelayerRegistryDiscriminator)
	for _, s := range r.Relayers {
		id := s.wire()
		w.raw(id[:])
	}
	w.skip(32)
	return w.buf, nil
}

func (r *RelayerRegistry) UnmarshalBinary(data []byte) error {
	rd, err := newReader(data, RelayerRegistrySize, RelayerRegistryDiscriminator)
	if err != nil {
		return err
	}
	var out RelayerRegistry
	for i := range out.Relayers {
		out.Relayers[i] = slotFromWire(rd.identity())
	}
	*r = out
	return nil
}
