package model

import "time"

// JournalEntry is an immutable record of one applied operation. Entries
// are written in the same commit as the records the operation changed and
// are never modified or deleted.
type JournalEntry struct {
	ID           string    `json:"id" db:"id"`
	Op           string    `json:"op" db:"op"`
	Signer       Identity  `json:"signer" db:"signer"`
	Wallet       Identity  `json:"wallet" db:"wallet"`
	Counterparty Identity  `json:"counterparty" db:"counterparty"`
	Amount       int64     `json:"amount_e6" db:"amount_e6"`
	Fee          int64     `json:"fee_e6" db:"fee_e6"`
	Reference    string    `json:"reference,omitempty" db:"reference"`
	Timestamp    time.Time `json:"timestamp" db:"timestamp"`
}

// Involves reports whether wallet is either party of the entry.
func (e *JournalEntry) Involves(wallet Identity) bool {
	return e.Wallet == wallet || e.Counterparty == wallet
}
