package model

import (
	"errors"
	"fmt"
)

// Error is the closed set of operation failures. Codes are positional and
// part of the wire contract; append only.
type Error uint32

const (
	ErrInvalidInstruction Error = iota
	ErrInsufficientBalance
	ErrInsufficientMargin
	ErrUnauthorizedCaller
	ErrVaultPaused
	ErrInvalidAmount
	ErrInvalidAccount
	ErrOverflow
	ErrInsuranceFundInsufficient
	ErrInvalidPda
	ErrAlreadyInitialized
	ErrNotInitialized
	ErrInvalidAdmin
	ErrInvalidCallerPda
	ErrCallerNotSigner
	ErrInvalidRelayer
	ErrUnauthorizedAdmin
	ErrUnauthorizedUser
	ErrDepositFailed
	ErrSettlementFailed
	ErrTokenSlotsFull
	ErrMissingSignature
	ErrInvalidUserAccount
	ErrRecurringAuthNotActive
	ErrInvalidCycleCount
	ErrRecurringAuthExecutionFailed
)

var errorNames = [...]string{
	ErrInvalidInstruction:           "InvalidInstruction",
	ErrInsufficientBalance:          "InsufficientBalance",
	ErrInsufficientMargin:           "InsufficientMargin",
	ErrUnauthorizedCaller:           "UnauthorizedCaller",
	ErrVaultPaused:                  "VaultPaused",
	ErrInvalidAmount:                "InvalidAmount",
	ErrInvalidAccount:               "InvalidAccount",
	ErrOverflow:                     "Overflow",
	ErrInsuranceFundInsufficient:    "InsuranceFundInsufficient",
	ErrInvalidPda:                   "InvalidPda",
	ErrAlreadyInitialized:           "AlreadyInitialized",
	ErrNotInitialized:               "NotInitialized",
	ErrInvalidAdmin:                 "InvalidAdmin",
	ErrInvalidCallerPda:             "InvalidCallerPda",
	ErrCallerNotSigner:              "CallerNotSigner",
	ErrInvalidRelayer:               "InvalidRelayer",
	ErrUnauthorizedAdmin:            "UnauthorizedAdmin",
	ErrUnauthorizedUser:             "UnauthorizedUser",
	ErrDepositFailed:                "DepositFailed",
	ErrSettlementFailed:             "SettlementFailed",
	ErrTokenSlotsFull:               "TokenSlotsFull",
	ErrMissingSignature:             "MissingSignature",
	ErrInvalidUserAccount:           "InvalidUserAccount",
	ErrRecurringAuthNotActive:       "RecurringAuthNotActive",
	ErrInvalidCycleCount:            "InvalidCycleCount",
	ErrRecurringAuthExecutionFailed: "RecurringAuthExecutionFailed",
}

// Name returns the variant name, e.g. "InsufficientBalance".
func (e Error) Name() string {
	if int(e) < len(errorNames) {
		return errorNames[e]
	}
	return fmt.Sprintf("Error(%d)", uint32(e))
}

func (e Error) Code() uint32 { return uint32(e) }

func (e Error) Error() string { return "vault: " + e.Name() }

// CodeOf returns the outermost Error in err's chain.
func CodeOf(err error) (Error, bool) {
	var e Error
	if errors.As(err, &e) {
		return e, true
	}
	return 0, false
}

// Fail returns code annotated with a detail message. The result matches
// code under errors.Is and CodeOf.
func Fail(code Error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", code, fmt.Sprintf(format, args...))
}

// Remap reports cause under a different code, keeping cause in the chain.
func Remap(code Error, cause error) error {
	return fmt.Errorf("%w: %w", code, cause)
}
