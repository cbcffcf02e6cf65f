package instruction

import "fmt"

// Opcode is the leading byte of an encoded instruction. Values are part
// of the wire contract; append only.
type Opcode uint8

const (
	OpInitialize Opcode = iota
	OpInitializeUser
	OpDeposit
	OpWithdraw
	OpLockMargin
	OpReleaseMargin
	OpClosePositionSettle
	OpLiquidatePosition
	OpAddAuthorizedCaller
	OpRemoveAuthorizedCaller
	OpSetPaused
	OpUpdateAdmin
	OpSetFundProgram
	OpSetLedgerProgram
	OpAdminForceReleaseMargin
	OpInitializePredictionMarketUser
	OpPMLock
	OpPMUnlock
	OpPMSettle
	OpPMClaimSettlement
	OpAdminPMForceUnlock
	OpRelayerDeposit
	OpRelayerWithdraw
	OpPMLockWithFee
	OpPMUnlockWithFee
	OpPMTradeWithFee
	OpPMSettleWithFee
	OpInitializeSpotUser
	OpSpotDeposit
	OpSpotWithdraw
	OpSpotLockBalance
	OpSpotUnlockBalance
	OpSpotSettleTrade
	OpRelayerSpotDeposit
	OpRelayerSpotWithdraw
	OpRelayerSpotSettleTrade
	OpSpotAllocateFromVault
	OpSpotReleaseToVault
	OpRelayerInternalTransfer
	OpInitRecurringAuth
	OpExecuteRecurringPayment
	OpCancelRecurringAuth
	OpAddRelayer
	OpRemoveRelayer
	OpUpdateRecurringStateHash

	opCount
)

var opNames = [opCount]string{
	OpInitialize:                     "initialize",
	OpInitializeUser:                 "initialize_user",
	OpDeposit:                        "deposit",
	OpWithdraw:                       "withdraw",
	OpLockMargin:                     "lock_margin",
	OpReleaseMargin:                  "release_margin",
	OpClosePositionSettle:            "close_position_settle",
	OpLiquidatePosition:              "liquidate_position",
	OpAddAuthorizedCaller:            "add_authorized_caller",
	OpRemoveAuthorizedCaller:         "remove_authorized_caller",
	OpSetPaused:                      "set_paused",
	OpUpdateAdmin:                    "update_admin",
	OpSetFundProgram:                 "set_fund_program",
	OpSetLedgerProgram:               "set_ledger_program",
	OpAdminForceReleaseMargin:        "admin_force_release_margin",
	OpInitializePredictionMarketUser: "initialize_pm_user",
	OpPMLock:                         "pm_lock",
	OpPMUnlock:                       "pm_unlock",
	OpPMSettle:                       "pm_settle",
	OpPMClaimSettlement:              "pm_claim_settlement",
	OpAdminPMForceUnlock:             "admin_pm_force_unlock",
	OpRelayerDeposit:                 "relayer_deposit",
	OpRelayerWithdraw:                "relayer_withdraw",
	OpPMLockWithFee:                  "pm_lock_with_fee",
	OpPMUnlockWithFee:                "pm_unlock_with_fee",
	OpPMTradeWithFee:                 "pm_trade_with_fee",
	OpPMSettleWithFee:                "pm_settle_with_fee",
	OpInitializeSpotUser:             "initialize_spot_user",
	OpSpotDeposit:                    "spot_deposit",
	OpSpotWithdraw:                   "spot_withdraw",
	OpSpotLockBalance:                "spot_lock_balance",
	OpSpotUnlockBalance:              "spot_unlock_balance",
	OpSpotSettleTrade:                "spot_settle_trade",
	OpRelayerSpotDeposit:             "relayer_spot_deposit",
	OpRelayerSpotWithdraw:            "relayer_spot_withdraw",
	OpRelayerSpotSettleTrade:         "relayer_spot_settle_trade",
	OpSpotAllocateFromVault:          "spot_allocate_from_vault",
	OpSpotReleaseToVault:             "spot_release_to_vault",
	OpRelayerInternalTransfer:        "relayer_internal_transfer",
	OpInitRecurringAuth:              "init_recurring_auth",
	OpExecuteRecurringPayment:        "execute_recurring_payment",
	OpCancelRecurringAuth:            "cancel_recurring_auth",
	OpAddRelayer:                     "add_relayer",
	OpRemoveRelayer:                  "remove_relayer",
	OpUpdateRecurringStateHash:       "update_recurring_state_hash",
}

func (o Opcode) String() string {
	if o < opCount {
		return opNames[o]
	}
	return fmt.Sprintf("opcode(%d)", uint8(o))
}

// OpcodeByName resolves the snake_case name used by the JSON surface.
func OpcodeByName(name string) (Opcode, bool) {
	for i, n := range opNames {
		if n == name {
			return Opcode(i), true
		}
	}
	return 0, false
}
