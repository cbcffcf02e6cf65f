package auth

import (
	"errors"
	"testing"

	"github.com/atmx/vault-engine/internal/model"
)

var (
	admin  = model.Identity{0xAD}
	ledger = model.Identity{0x1E}
	fund   = model.Identity{0xF0}
	listed = model.Identity{0x11}
	other  = model.Identity{0x99}
)

func newConfig(t *testing.T) *model.Config {
	t.Helper()
	cfg := &model.Config{Admin: admin, LedgerProgram: ledger, FundProgram: model.Some(fund)}
	if _, err := cfg.AddCaller(listed); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestIsAuthorized_IdentityClasses(t *testing.T) {
	cfg := newConfig(t)
	for name, id := range map[string]model.Identity{"ledger": ledger, "fund": fund, "whitelisted": listed} {
		if !IsAuthorized(cfg, id) {
			t.Errorf("%s should be authorized", name)
		}
	}
	if IsAuthorized(cfg, other) {
		t.Error("unknown identity authorized")
	}
	if IsAuthorized(cfg, model.Identity{}) {
		t.Error("zero identity must never match an empty slot")
	}
}

func TestIsAuthorized_UnsetFundProgram(t *testing.T) {
	cfg := newConfig(t)
	cfg.FundProgram = model.Slot{}
	if IsAuthorized(cfg, fund) {
		t.Error("fund program authorized after being unset")
	}
}

func TestVerifyCaller(t *testing.T) {
	cfg := newConfig(t)
	kind, err := VerifyCaller(cfg, ledger)
	if err != nil || kind != CallerLedger {
		t.Errorf("ledger: %q, %v", kind, err)
	}
	if kind, _ := VerifyCaller(cfg, fund); kind != CallerFundProgram {
		t.Errorf("fund: %q", kind)
	}
	if _, err := VerifyCaller(cfg, other); !errors.Is(err, model.ErrUnauthorizedCaller) {
		t.Errorf("other: %v", err)
	}

	sub := model.LedgerConfigAddress(ledger)
	cfg.AddCaller(sub)
	if kind, _ := VerifyCaller(cfg, sub); kind != CallerLedgerConfig {
		t.Errorf("ledger config sub-address: %q", kind)
	}
}

func TestRequireAdmin(t *testing.T) {
	cfg := newConfig(t)
	if err := RequireAdmin(cfg, model.Some(admin)); err != nil {
		t.Errorf("admin rejected: %v", err)
	}
	if err := RequireAdmin(cfg, model.Some(other)); !errors.Is(err, model.ErrInvalidAdmin) {
		t.Errorf("expected InvalidAdmin, got %v", err)
	}
	if err := RequireAdmin(cfg, model.Slot{}); !errors.Is(err, model.ErrMissingSignature) {
		t.Errorf("expected MissingSignature, got %v", err)
	}
}

func TestRequireRelayer(t *testing.T) {
	cfg := newConfig(t)
	reg := &model.RelayerRegistry{}
	relayer := model.Identity{0x77}

	if _, err := RequireRelayer(cfg, reg, model.Some(relayer), model.ErrUnauthorizedAdmin); !errors.Is(err, model.ErrUnauthorizedAdmin) {
		t.Errorf("unregistered relayer: %v", err)
	}
	reg.Add(relayer)
	if _, err := RequireRelayer(cfg, reg, model.Some(relayer), model.ErrUnauthorizedAdmin); err != nil {
		t.Errorf("registered relayer rejected: %v", err)
	}
	if _, err := RequireRelayer(cfg, nil, model.Some(admin), model.ErrInvalidRelayer); err != nil {
		t.Errorf("admin rejected: %v", err)
	}
	if _, err := RequireRelayer(cfg, reg, model.Some(other), model.ErrInvalidRelayer); !errors.Is(err, model.ErrInvalidRelayer) {
		t.Errorf("expected InvalidRelayer, got %v", err)
	}
}
