package processor

import (
	"context"
	"errors"

	"github.com/atmx/vault-engine/internal/feepolicy"
	"github.com/atmx/vault-engine/internal/model"
	"github.com/atmx/vault-engine/internal/store"
)

// Reads bypass the execution lock and observe the last committed state.

func (p *Processor) read(ctx context.Context, addr model.Identity, rec model.Record) error {
	data, err := p.store.GetRecord(ctx, addr)
	if err != nil {
		return err
	}
	return rec.UnmarshalBinary(data)
}

// Config returns the vault config or store.ErrNotFound.
func (p *Processor) Config(ctx context.Context) (*model.Config, error) {
	cfg := &model.Config{}
	if err := p.read(ctx, model.ConfigAddress(p.program), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (p *Processor) User(ctx context.Context, wallet model.Identity) (*model.UserAccount, error) {
	u := &model.UserAccount{}
	if err := p.read(ctx, model.UserAddress(p.program, wallet), u); err != nil {
		return nil, err
	}
	return u, nil
}

func (p *Processor) PMUser(ctx context.Context, wallet model.Identity) (*model.PMUserAccount, error) {
	pm := &model.PMUserAccount{}
	if err := p.read(ctx, model.PMUserAddress(p.program, wallet), pm); err != nil {
		return nil, err
	}
	return pm, nil
}

func (p *Processor) SpotUser(ctx context.Context, wallet model.Identity) (*model.SpotUserAccount, error) {
	s := &model.SpotUserAccount{}
	if err := p.read(ctx, model.SpotUserAddress(p.program, wallet), s); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *Processor) RecurringAuth(ctx context.Context, payer, payee model.Identity) (*model.RecurringAuth, error) {
	a := &model.RecurringAuth{}
	if err := p.read(ctx, model.RecurringAuthAddress(p.program, payer, payee), a); err != nil {
		return nil, err
	}
	return a, nil
}

// Relayers lists delegated relayers; an unwritten registry is empty.
func (p *Processor) Relayers(ctx context.Context) ([]model.Identity, error) {
	reg := &model.RelayerRegistry{}
	err := p.read(ctx, model.RelayerRegistryAddress(p.program), reg)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	var out []model.Identity
	for _, s := range reg.Relayers {
		if id, ok := s.Get(); ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// FeePolicy parses the fee policy record at addr.
func (p *Processor) FeePolicy(ctx context.Context, addr model.Identity) (*feepolicy.Policy, error) {
	data, err := p.store.GetRecord(ctx, addr)
	if err != nil {
		return nil, err
	}
	return feepolicy.Parse(data)
}

func (p *Processor) Journal(ctx context.Context, wallet model.Identity) ([]model.JournalEntry, error) {
	return p.store.GetJournalByWallet(ctx, wallet)
}

func (p *Processor) RecentJournal(ctx context.Context, limit int) ([]model.JournalEntry, error) {
	return p.store.ListJournal(ctx, limit)
}
