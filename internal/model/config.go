package model

// MaxAuthorizedCallers bounds the caller whitelist.
const MaxAuthorizedCallers = 10

// ConfigSize is the persisted width of Config.
const ConfigSize = 8 + 32*3 + 32*MaxAuthorizedCallers + 32*3 + 8 + 8 + 1 + 32

// Config is the single deployment-wide record.
type Config struct {
	Admin             Identity                   `json:"admin"`
	AssetMint         Identity                   `json:"asset_mint"`
	VaultHolding      Identity                   `json:"vault_holding"`
	AuthorizedCallers [MaxAuthorizedCallers]Slot `json:"authorized_callers"`
	LedgerProgram     Identity                   `json:"ledger_program"`
	FundProgram       Slot                       `json:"fund_program"`
	DelegationProgram Identity                   `json:"delegation_program"`
	TotalDeposits     uint64                     `json:"total_deposits_e6"`
	TotalLocked       uint64                     `json:"total_locked_e6"`
	Paused            bool                       `json:"paused"`
}

func (*Config) Kind() Kind { return KindConfig }

// HasCaller reports whether id occupies a whitelist slot.
func (c *Config) HasCaller(id Identity) bool {
	for _, s := range c.AuthorizedCallers {
		if s.Is(id) {
			return true
		}
	}
	return false
}

// AddCaller places id in the first free whitelist slot. Adding a present
// caller is a no-op. The zero identity cannot be stored because it is the
// unset marker on disk.
func (c *Config) AddCaller(id Identity) (added bool, err error) {
	if id.IsZero() {
		return false, Fail(ErrInvalidAccount, "zero identity cannot be whitelisted")
	}
	if c.HasCaller(id) {
		return false, nil
	}
	for i, s := range c.AuthorizedCallers {
		if !s.IsSet() {
			c.AuthorizedCallers[i] = Some(id)
			return true, nil
		}
	}
	return false, Fail(ErrInvalidAccount, "authorized caller list is full")
}

// RemoveCaller clears the slot holding id. Removing an absent caller is a
// no-op.
func (c *Config) RemoveCaller(id Identity) bool {
	for i, s := range c.AuthorizedCallers {
		if s.Is(id) {
			c.AuthorizedCallers[i] = Slot{}
			return true
		}
	}
	return false
}

// Callers returns the occupied whitelist entries in slot order.
func (c *Config) Callers() []Identity {
	var out []Identity
	for _, s := range c.AuthorizedCallers {
		if id, ok := s.Get(); ok {
			out = append(out, id)
		}
	}
	return out
}

func (c *Config) MarshalBinary() ([]byte, error) {
	w := newWriter(ConfigSize)
	w.u64(ConfigDiscriminator)
	w.raw(c.Admin[:])
	w.raw(c.AssetMint[:])
	w.raw(c.VaultHolding[:])
	for _, s := range c.AuthorizedCallers {
		id := s.wire()
		w.raw(id[:])
	}
	w.raw(c.LedgerProgram[:])
	fund := c.FundProgram.wire()
	w.raw(fund[:])
	w.raw(c.DelegationProgram[:])
	w.u64(c.TotalDeposits)
	w.u64(c.TotalLocked)
	w.boolean(c.Paused)
	w.skip(32)
	return w.buf, nil
}

func (c *Config) UnmarshalBinary(data []byte) error {
	r, err := newReader(data, ConfigSize, ConfigDiscriminator)
	if err != nil {
		return err
	}
	var out Config
	out.Admin = r.identity()
	out.AssetMint = r.identity()
	out.VaultHolding = r.identity()
	for i := range out.AuthorizedCallers {
		out.AuthorizedCallers[i] = slotFromWire(r.identity())
	}
	out.LedgerProgram = r.identity()
	out.FundProgram = slotFromWire(r.identity())
	out.DelegationProgram = r.identity()
	out.TotalDeposits = r.u64()
	out.TotalLocked = r.u64()
	if out.Paused, err = r.boolean(); err != nil {
		return err
	}
	*c = out
	return nil
}
