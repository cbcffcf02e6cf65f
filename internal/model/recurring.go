package model

// RecurringAuthSize is the persisted width of RecurringAuth.
const RecurringAuthSize = 8 + 32 + 32 + 1 + 8 + 8 + 4 + 4 + 1 + 8 + 8 + 32 + 64

// RecurringAuth authorizes a fixed payment from payer to payee once per
// cycle. MaxCycles 0 means unbounded. Cancelled and exhausted records are
// kept for audit.
type RecurringAuth struct {
	Payer           Identity `json:"payer"`
	Payee           Identity `json:"payee"`
	Bump            uint8    `json:"bump"`
	Amount          uint64   `json:"amount_e6"`
	IntervalSeconds int64    `json:"interval_seconds"`
	MaxCycles       uint32   `json:"max_cycles"`
	CurrentCycles   uint32   `json:"current_cycles"`
	Active          bool     `json:"is_active"`
	CreatedAt       int64    `json:"created_at"`
	LastExecutedAt  int64    `json:"last_executed_at"`
	StateHash       Identity `json:"state_hash"`
}

func NewRecurringAuth(payer, payee Identity, amount uint64, interval int64, maxCycles uint32, now int64) *RecurringAuth {
	return &RecurringAuth{
		Payer:           payer,
		Payee:           payee,
		Bump:            DefaultBump,
		Amount:          amount,
		IntervalSeconds: interval,
		MaxCycles:       maxCycles,
		Active:          true,
		CreatedAt:       now,
	}
}

func (*RecurringAuth) Kind() Kind { return KindRecurringAuth }

// NextCycle is the only cycle index Execute will accept.
func (a *RecurringAuth) NextCycle() uint64 { return uint64(a.CurrentCycles) + 1 }

// Execute advances one cycle and deactivates the record once a bounded
// authorization reaches MaxCycles.
func (a *RecurringAuth) Execute(now int64) error {
	if !a.Active {
		return ErrRecurringAuthNotActive
	}
	if a.CurrentCycles == ^uint32(0) {
		return Fail(ErrRecurringAuthExecutionFailed, "cycle counter exhausted")
	}
	a.CurrentCycles++
	a.LastExecutedAt = now
	if a.MaxCycles > 0 && a.CurrentCycles >= a.MaxCycles {
		a.Active = false
	}
	return nil
}

// Cancel is terminal.
func (a *RecurringAuth) Cancel() { a.Active = false }

func (a *RecurringAuth) MarshalBinary() ([]byte, error) {
	w := newWriter(RecurringAuthSize)
	w.u64(RecurringAuthDiscriminator)
	w.raw(a.Payer[:])
	w.raw(a.Payee[:])
	w.u8(a.Bump)
	w.u64(a.Amount)
	w.i64(a.IntervalSeconds)
	w.u32(a.MaxCycles)
	w.u32(a.CurrentCycles)
	w.boolean(a.Active)
	w.i64(a.CreatedAt)
	w.i64(a.LastExecutedAt)
	w.raw(a.StateHash[:])
	w.skip(64)
	return w.buf, nil
}

func (a *RecurringAuth) UnmarshalBinary(data []byte) error {
	r, err := newReader(data, RecurringAuthSize, RecurringAuthDiscriminator)
	if err != nil {
		return err
	}
	var out RecurringAuth
	out.Payer = r.identity()
	out.Payee = r.identity()
	out.Bump = r.u8()
	out.Amount = r.u64()
	out.IntervalSeconds = r.i64()
	out.MaxCycles = r.u32()
	out.CurrentCycles = r.u32()
	if out.Active, err = r.boolean(); err != nil {
		return err
	}
	out.CreatedAt = r.i64()
	out.LastExecutedAt = r.i64()
	out.StateHash = r.identity()
	*a = out
	return nil
}
