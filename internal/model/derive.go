package model

import (
	"github.com/ethereum/go-ethereum/crypto"
)

// DefaultBump is the derivation nonce stored in records created here.
const DefaultBump uint8 = 255

var (
	SeedConfig          = []byte("vault_config")
	SeedUser            = []byte("user")
	SeedPMUser          = []byte("prediction_market_user")
	SeedSpotUser        = []byte("spot_user")
	SeedRecurringAuth   = []byte("recurring_auth")
	SeedRelayerRegistry = []byte("relayer_registry")
	SeedLedgerConfig    = []byte("ledger_config")

	deriveDomain = []byte("vault-derived")
)

// Derive computes a deterministic record address owned by program from
// the given seeds: keccak256(program || seeds... || bump || domain).
func Derive(program Identity, seeds ...[]byte) Identity {
	parts := make([][]byte, 0, len(seeds)+3)
	parts = append(parts, program[:])
	parts = append(parts, seeds...)
	parts = append(parts, []byte{DefaultBump}, deriveDomain)
	return Identity(crypto.Keccak256Hash(parts...))
}

// ConfigAddress is the deployment config address. It doubles as the
// vault's own signing authority for outbound transfers.
func ConfigAddress(program Identity) Identity {
	return Derive(program, SeedConfig)
}

func UserAddress(program, wallet Identity) Identity {
	return Derive(program, SeedUser, wallet[:])
}

func PMUserAddress(program, wallet Identity) Identity {
	return Derive(program, SeedPMUser, wallet[:])
}

func SpotUserAddress(program, wallet Identity) Identity {
	return Derive(program, SeedSpotUser, wallet[:])
}

func RecurringAuthAddress(program, payer, payee Identity) Identity {
	return Derive(program, SeedRecurringAuth, payer[:], payee[:])
}

func RelayerRegistryAddress(program Identity) Identity {
	return Derive(program, SeedRelayerRegistry)
}

// LedgerConfigAddress is the settlement caller's config sub-address,
// derived under the settlement caller's own program identity.
func LedgerConfigAddress(ledgerProgram Identity) Identity {
	return Derive(ledgerProgram, SeedLedgerConfig)
}
