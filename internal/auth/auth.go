// Package auth resolves which identities may drive which operations:
// the administrator, the settlement caller and fee-pool owner named in
// Config, whitelisted callers, and delegated relayers.
package auth

import (
	"github.com/atmx/vault-engine/internal/model"
)

// CallerKind classifies an authorized caller.
type CallerKind string

const (
	CallerLedgerConfig CallerKind = "ledger_config"
	CallerLedger       CallerKind = "ledger_program"
	CallerWhitelisted  CallerKind = "whitelisted"
	CallerFundProgram  CallerKind = "fund_program"
)

// IsAuthorized reports whether caller is the settlement caller, the
// fee-pool owner, or a whitelisted identity.
func IsAuthorized(cfg *model.Config, caller model.Identity) bool {
	if caller == cfg.LedgerProgram {
		return true
	}
	if cfg.FundProgram.Is(caller) {
		return true
	}
	return cfg.HasCaller(caller)
}

// VerifyCaller gates whitelist-only operations. A caller must pass
// IsAuthorized; it is then classified, with the settlement caller's
// derived config sub-address recognised first.
func VerifyCaller(cfg *model.Config, caller model.Identity) (CallerKind, error) {
	if !IsAuthorized(cfg, caller) {
		return "", model.Fail(model.ErrUnauthorizedCaller, "caller %s not authorized", caller.Short())
	}
	switch {
	case caller == model.LedgerConfigAddress(cfg.LedgerProgram):
		return CallerLedgerConfig, nil
	case caller == cfg.LedgerProgram:
		return CallerLedger, nil
	case cfg.HasCaller(caller):
		return CallerWhitelisted, nil
	case cfg.FundProgram.Is(caller):
		return CallerFundProgram, nil
	}
	return "", model.ErrInvalidCallerPda
}

// RequireSigner returns the signing identity or ErrMissingSignature.
func RequireSigner(signer model.Slot) (model.Identity, error) {
	id, ok := signer.Get()
	if !ok {
		return model.Identity{}, model.ErrMissingSignature
	}
	return id, nil
}

// RequireAdmin checks that signer signed and is the configured admin.
func RequireAdmin(cfg *model.Config, signer model.Slot) error {
	id, err := RequireSigner(signer)
	if err != nil {
		return err
	}
	if id != cfg.Admin {
		return model.Fail(model.ErrInvalidAdmin, "%s is not the admin", id.Short())
	}
	return nil
}

// RequireRelayer checks that signer signed and is either the admin or a
// delegated relayer. denied is the failure reported otherwise, since the
// relayer operations historically differ in which code they return.
func RequireRelayer(cfg *model.Config, reg *model.RelayerRegistry, signer model.Slot, denied model.Error) (model.Identity, error) {
	id, err := RequireSigner(signer)
	if err != nil {
		return id, err
	}
	if id == cfg.Admin {
		return id, nil
	}
	if reg != nil && reg.Has(id) {
		return id, nil
	}
	return id, model.Fail(denied, "%s is not a relayer", id.Short())
}
