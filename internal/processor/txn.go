package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/atmx/vault-engine/internal/auth"
	"github.com/atmx/vault-engine/internal/feepolicy"
	"github.com/atmx/vault-engine/internal/model"
	"github.com/atmx/vault-engine/internal/safemath"
	"github.com/atmx/vault-engine/internal/store"
	"github.com/atmx/vault-engine/internal/token"
)

// txn stages the effects of one operation. Reads go through the staged
// set so an operation sees its own writes.
type txn struct {
	ctx    context.Context
	p      *Processor
	req    Request
	ts     int64
	staged map[model.Identity]store.Record
	order  []model.Identity
	legs   []token.Transfer
	fees   map[string]uint64
	entry  model.JournalEntry
}

func (tx *txn) raw(addr model.Identity) ([]byte, bool, error) {
	if r, ok := tx.staged[addr]; ok {
		return r.Data, true, nil
	}
	data, err := tx.p.store.GetRecord(tx.ctx, addr)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("processor: load %s: %w", addr.Short(), err)
	}
	return data, true, nil
}

func (tx *txn) load(addr model.Identity, rec model.Record) (bool, error) {
	data, ok, err := tx.raw(addr)
	if err != nil || !ok {
		return false, err
	}
	if err := rec.UnmarshalBinary(data); err != nil {
		return false, err
	}
	return true, nil
}

func (tx *txn) put(addr model.Identity, rec model.Record) error {
	data, err := rec.MarshalBinary()
	if err != nil {
		return err
	}
	tx.putRaw(addr, rec.Kind(), data)
	return nil
}

func (tx *txn) putRaw(addr model.Identity, kind model.Kind, data []byte) {
	if _, ok := tx.staged[addr]; !ok {
		tx.order = append(tx.order, addr)
	}
	tx.staged[addr] = store.Record{Address: addr, Kind: kind, Data: data}
}

// transfer queues an asset movement; zero amounts are dropped.
func (tx *txn) transfer(t token.Transfer) {
	if t.Amount == 0 {
		return
	}
	tx.legs = append(tx.legs, t)
}

// outbound queues a transfer out of the pooled holding signed by the
// vault authority.
func (tx *txn) outbound(cfg *model.Config, dest model.Identity, amount uint64, reason string) {
	tx.transfer(token.Transfer{
		Source:      cfg.VaultHolding,
		Destination: dest,
		Authority:   tx.p.Authority(),
		Amount:      amount,
		Reason:      reason,
	})
}

func (tx *txn) collect(kind string, fee uint64) {
	if fee > 0 {
		tx.fees[kind] += fee
	}
}

func (tx *txn) config() (*model.Config, error) {
	cfg := &model.Config{}
	ok, err := tx.load(model.ConfigAddress(tx.p.program), cfg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.Fail(model.ErrNotInitialized, "vault config")
	}
	return cfg, nil
}

func (tx *txn) putConfig(cfg *model.Config) error {
	return tx.put(model.ConfigAddress(tx.p.program), cfg)
}

func (tx *txn) user(wallet model.Identity) (*model.UserAccount, error) {
	u := &model.UserAccount{}
	ok, err := tx.load(model.UserAddress(tx.p.program, wallet), u)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.Fail(model.ErrNotInitialized, "user account %s", wallet.Short())
	}
	if u.Wallet != wallet {
		return nil, model.Fail(model.ErrInvalidAccount, "user account wallet mismatch")
	}
	return u, nil
}

// userOrNew provisions a zeroed account when none exists.
func (tx *txn) userOrNew(wallet model.Identity) (*model.UserAccount, error) {
	u, err := tx.user(wallet)
	if code, ok := model.CodeOf(err); ok && code == model.ErrNotInitialized {
		return model.NewUserAccount(wallet, tx.ts), nil
	}
	return u, err
}

func (tx *txn) putUser(u *model.UserAccount) error {
	return tx.put(model.UserAddress(tx.p.program, u.Wallet), u)
}

func (tx *txn) pmUser(wallet model.Identity) (*model.PMUserAccount, bool, error) {
	pm := &model.PMUserAccount{}
	ok, err := tx.load(model.PMUserAddress(tx.p.program, wallet), pm)
	if err != nil || !ok {
		return nil, false, err
	}
	return pm, true, nil
}

// ensurePMUser loads the prediction-market account or provisions it when
// the request names a payer.
func (tx *txn) ensurePMUser(wallet model.Identity) (*model.PMUserAccount, error) {
	pm, ok, err := tx.pmUser(wallet)
	if err != nil {
		return nil, err
	}
	if ok {
		return pm, nil
	}
	if !tx.req.Payer.IsSet() {
		return nil, model.Fail(model.ErrInvalidAccount, "prediction market account for %s missing and no payer", wallet.Short())
	}
	return model.NewPMUserAccount(wallet, tx.ts), nil
}

func (tx *txn) putPMUser(pm *model.PMUserAccount) error {
	return tx.put(model.PMUserAddress(tx.p.program, pm.Wallet), pm)
}

func (tx *txn) spotUser(wallet model.Identity) (*model.SpotUserAccount, bool, error) {
	s := &model.SpotUserAccount{}
	ok, err := tx.load(model.SpotUserAddress(tx.p.program, wallet), s)
	if err != nil || !ok {
		return nil, false, err
	}
	return s, true, nil
}

// requireSpotUser fails with ErrNotInitialized when the account is missing.
func (tx *txn) requireSpotUser(wallet model.Identity) (*model.SpotUserAccount, error) {
	s, ok, err := tx.spotUser(wallet)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.Fail(model.ErrNotInitialized, "spot account %s", wallet.Short())
	}
	return s, nil
}

// spotUserOrNew provisions a spot account on behalf of a relayer.
func (tx *txn) spotUserOrNew(wallet model.Identity) (*model.SpotUserAccount, error) {
	s, ok, err := tx.spotUser(wallet)
	if err != nil {
		return nil, err
	}
	if !ok {
		return model.NewSpotUserAccount(wallet, tx.ts), nil
	}
	return s, nil
}

func (tx *txn) putSpotUser(s *model.SpotUserAccount) error {
	return tx.put(model.SpotUserAddress(tx.p.program, s.Wallet), s)
}

func (tx *txn) recurring(payer, payee model.Identity) (*model.RecurringAuth, bool, error) {
	a := &model.RecurringAuth{}
	ok, err := tx.load(model.RecurringAuthAddress(tx.p.program, payer, payee), a)
	if err != nil || !ok {
		return nil, false, err
	}
	return a, true, nil
}

func (tx *txn) putRecurring(a *model.RecurringAuth) error {
	return tx.put(model.RecurringAuthAddress(tx.p.program, a.Payer, a.Payee), a)
}

// registry returns the relayer registry, empty if never written.
func (tx *txn) registry() (*model.RelayerRegistry, error) {
	reg := &model.RelayerRegistry{}
	if _, err := tx.load(model.RelayerRegistryAddress(tx.p.program), reg); err != nil {
		return nil, err
	}
	return reg, nil
}

func (tx *txn) putRegistry(reg *model.RelayerRegistry) error {
	return tx.put(model.RelayerRegistryAddress(tx.p.program), reg)
}

func (tx *txn) feePolicy() (*feepolicy.Policy, error) {
	addr := tx.req.FeePolicy
	if addr.IsZero() {
		return nil, model.Fail(model.ErrInvalidAccount, "fee policy not supplied")
	}
	data, ok, err := tx.raw(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.Fail(model.ErrInvalidAccount, "fee policy %s not found", addr.Short())
	}
	return feepolicy.Parse(data)
}

func (tx *txn) putFeePolicy(pol *feepolicy.Policy) {
	tx.putRaw(tx.req.FeePolicy, model.KindFeePolicy, pol.Bytes())
}

// feeDestination resolves the fee leg's destination against the policy.
func (tx *txn) feeDestination(pol *feepolicy.Policy) (model.Identity, error) {
	dest := tx.req.Destination
	if dest.IsZero() {
		return pol.Destination(), nil
	}
	if err := pol.CheckDestination(dest); err != nil {
		return model.Identity{}, err
	}
	return dest, nil
}

// checkPool verifies a presented pooled holding against the config.
func (tx *txn) checkPool(cfg *model.Config) error {
	if !tx.req.PoolHolding.IsZero() && tx.req.PoolHolding != cfg.VaultHolding {
		return model.Fail(model.ErrInvalidAccount, "pool holding %s does not match config", tx.req.PoolHolding.Short())
	}
	return nil
}

// caller runs the whitelist gate against the request's caller.
func (tx *txn) caller(cfg *model.Config) error {
	kind, err := auth.VerifyCaller(cfg, tx.req.Caller)
	if err != nil {
		return err
	}
	tx.entry.Reference = string(kind)
	return nil
}

func (tx *txn) relayer(cfg *model.Config, denied model.Error) (model.Identity, error) {
	reg, err := tx.registry()
	if err != nil {
		return model.Identity{}, err
	}
	return auth.RequireRelayer(cfg, reg, tx.req.Signer, denied)
}

// record fills the journal's subject fields.
func (tx *txn) record(wallet, counterparty model.Identity, amount, fee int64) {
	tx.entry.Wallet = wallet
	tx.entry.Counterparty = counterparty
	tx.entry.Amount = amount
	tx.entry.Fee = fee
}

// signed converts a wire amount into the signed e6 domain.
func signed(v uint64) (int64, error) {
	n, ok := safemath.Signed(v)
	if !ok {
		return 0, model.Fail(model.ErrOverflow, "amount %d exceeds signed range", v)
	}
	return n, nil
}

// positive additionally rejects zero.
func positive(v uint64) (int64, error) {
	if v == 0 {
		return 0, model.Fail(model.ErrInvalidAmount, "amount must be positive")
	}
	return signed(v)
}
