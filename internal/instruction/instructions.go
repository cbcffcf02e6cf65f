package instruction

import (
	"context"

	"github.com/atmx/vault-engine/internal/model"
	"github.com/atmx/vault-engine/internal/processor"
)

type result = *model.JournalEntry

// Instruction is one decoded vault operation.
type Instruction interface {
	Opcode() Opcode
	fields(c *codec)
	apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error)
}

// WalletAmount is the payload shared by most single-account operations.
type WalletAmount struct {
	Wallet model.Identity `json:"wallet"`
	Amount uint64         `json:"amount"`
}

func (w *WalletAmount) fields(c *codec) {
	c.identity(&w.Wallet)
	c.u64(&w.Amount)
}

// TokenAmount is a spot payload for the signer's own account.
type TokenAmount struct {
	Token  uint16 `json:"token"`
	Amount uint64 `json:"amount"`
}

func (t *TokenAmount) fields(c *codec) {
	c.u16(&t.Token)
	c.u64(&t.Amount)
}

// WalletTokenAmount is a spot payload naming the account.
type WalletTokenAmount struct {
	Wallet model.Identity `json:"wallet"`
	Token  uint16         `json:"token"`
	Amount uint64         `json:"amount"`
}

func (t *WalletTokenAmount) fields(c *codec) {
	c.identity(&t.Wallet)
	c.u16(&t.Token)
	c.u64(&t.Amount)
}

// Target names a single identity.
type Target struct {
	ID model.Identity `json:"id"`
}

func (t *Target) fields(c *codec) { c.identity(&t.ID) }

// Pair names a recurring authorization.
type Pair struct {
	Payer model.Identity `json:"payer"`
	Payee model.Identity `json:"payee"`
}

func (p *Pair) fields(c *codec) {
	c.identity(&p.Payer)
	c.identity(&p.Payee)
}

// Settlement is the payload of prediction-market settlement.
type Settlement struct {
	Wallet     model.Identity `json:"wallet"`
	Locked     uint64         `json:"locked"`
	Settlement uint64         `json:"settlement"`
}

func (s *Settlement) fields(c *codec) {
	c.identity(&s.Wallet)
	c.u64(&s.Locked)
	c.u64(&s.Settlement)
}

type empty struct{}

func (empty) fields(*codec) {}

// --- Config and margin ---

type Initialize struct{ processor.Setup }

func (*Initialize) Opcode() Opcode { return OpInitialize }
func (i *Initialize) fields(c *codec) {
	c.identity(&i.AssetMint)
	c.identity(&i.VaultHolding)
	c.identity(&i.LedgerProgram)
	c.identity(&i.DelegationProgram)
	c.slot(&i.FundProgram)
}
func (i *Initialize) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.Initialize(ctx, req, i.Setup)
}

type InitializeUser struct{ empty }

func (*InitializeUser) Opcode() Opcode { return OpInitializeUser }
func (*InitializeUser) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.InitializeUser(ctx, req)
}

type Amount struct {
	Amount uint64 `json:"amount"`
}

func (a *Amount) fields(c *codec) { c.u64(&a.Amount) }

type Deposit struct{ Amount }

func (*Deposit) Opcode() Opcode { return OpDeposit }
func (d *Deposit) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.Deposit(ctx, req, d.Amount.Amount)
}

type Withdraw struct{ Amount }

func (*Withdraw) Opcode() Opcode { return OpWithdraw }
func (w *Withdraw) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.Withdraw(ctx, req, w.Amount.Amount)
}

type LockMargin struct{ WalletAmount }

func (*LockMargin) Opcode() Opcode { return OpLockMargin }
func (l *LockMargin) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.LockMargin(ctx, req, l.Wallet, l.Amount)
}

type ReleaseMargin struct{ WalletAmount }

func (*ReleaseMargin) Opcode() Opcode { return OpReleaseMargin }
func (r *ReleaseMargin) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.ReleaseMargin(ctx, req, r.Wallet, r.Amount)
}

type ClosePositionSettle struct {
	Wallet model.Identity `json:"wallet"`
	processor.Close
}

func (*ClosePositionSettle) Opcode() Opcode { return OpClosePositionSettle }
func (s *ClosePositionSettle) fields(c *codec) {
	c.identity(&s.Wallet)
	c.u64(&s.MarginToRelease)
	c.i64(&s.RealizedPnL)
	c.u64(&s.Fee)
}
func (s *ClosePositionSettle) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.ClosePositionSettle(ctx, req, s.Wallet, s.Close)
}

type LiquidatePosition struct {
	Wallet model.Identity `json:"wallet"`
	processor.Liquidation
}

func (*LiquidatePosition) Opcode() Opcode { return OpLiquidatePosition }
func (l *LiquidatePosition) fields(c *codec) {
	c.identity(&l.Wallet)
	c.u64(&l.Margin)
	c.u64(&l.UserRemainder)
	c.u64(&l.Penalty)
}
func (l *LiquidatePosition) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.LiquidatePosition(ctx, req, l.Wallet, l.Liquidation)
}

type AddAuthorizedCaller struct{ Target }

func (*AddAuthorizedCaller) Opcode() Opcode { return OpAddAuthorizedCaller }
func (a *AddAuthorizedCaller) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.AddAuthorizedCaller(ctx, req, a.ID)
}

type RemoveAuthorizedCaller struct{ Target }

func (*RemoveAuthorizedCaller) Opcode() Opcode { return OpRemoveAuthorizedCaller }
func (r *RemoveAuthorizedCaller) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.RemoveAuthorizedCaller(ctx, req, r.ID)
}

type SetPaused struct {
	Paused bool `json:"paused"`
}

func (*SetPaused) Opcode() Opcode { return OpSetPaused }
func (s *SetPaused) fields(c *codec) { c.boolean(&s.Paused) }
func (s *SetPaused) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.SetPaused(ctx, req, s.Paused)
}

type UpdateAdmin struct{ Target }

func (*UpdateAdmin) Opcode() Opcode { return OpUpdateAdmin }
func (u *UpdateAdmin) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.UpdateAdmin(ctx, req, u.ID)
}

// SetFundProgram clears the fee-pool owner when ID is zero.
type SetFundProgram struct{ Target }

func (*SetFundProgram) Opcode() Opcode { return OpSetFundProgram }
func (s *SetFundProgram) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.SetFundProgram(ctx, req, s.ID)
}

type SetLedgerProgram struct{ Target }

func (*SetLedgerProgram) Opcode() Opcode { return OpSetLedgerProgram }
func (s *SetLedgerProgram) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.SetLedgerProgram(ctx, req, s.ID)
}

// AdminForceReleaseMargin releases everything when Amount is zero.
type AdminForceReleaseMargin struct{ WalletAmount }

func (*AdminForceReleaseMargin) Opcode() Opcode { return OpAdminForceReleaseMargin }
func (a *AdminForceReleaseMargin) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.AdminForceReleaseMargin(ctx, req, a.Wallet, a.Amount)
}

// --- Prediction market ---

type InitializePredictionMarketUser struct{ empty }

func (*InitializePredictionMarketUser) Opcode() Opcode { return OpInitializePredictionMarketUser }
func (*InitializePredictionMarketUser) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.InitializePredictionMarketUser(ctx, req)
}

type PMLock struct{ WalletAmount }

func (*PMLock) Opcode() Opcode { return OpPMLock }
func (l *PMLock) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.PMLock(ctx, req, l.Wallet, l.Amount)
}

type PMUnlock struct{ WalletAmount }

func (*PMUnlock) Opcode() Opcode { return OpPMUnlock }
func (u *PMUnlock) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.PMUnlock(ctx, req, u.Wallet, u.Amount)
}

type PMSettle struct{ Settlement }

func (*PMSettle) Opcode() Opcode { return OpPMSettle }
func (s *PMSettle) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.PMSettle(ctx, req, s.Wallet, s.Locked, s.Settlement.Settlement)
}

type PMClaimSettlement struct{ empty }

func (*PMClaimSettlement) Opcode() Opcode { return OpPMClaimSettlement }
func (*PMClaimSettlement) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.PMClaimSettlement(ctx, req)
}

type AdminPMForceUnlock struct{ WalletAmount }

func (*AdminPMForceUnlock) Opcode() Opcode { return OpAdminPMForceUnlock }
func (a *AdminPMForceUnlock) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.AdminPMForceUnlock(ctx, req, a.Wallet, a.Amount)
}

type RelayerDeposit struct{ WalletAmount }

func (*RelayerDeposit) Opcode() Opcode { return OpRelayerDeposit }
func (d *RelayerDeposit) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.RelayerDeposit(ctx, req, d.Wallet, d.Amount)
}

type RelayerWithdraw struct{ WalletAmount }

func (*RelayerWithdraw) Opcode() Opcode { return OpRelayerWithdraw }
func (w *RelayerWithdraw) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.RelayerWithdraw(ctx, req, w.Wallet, w.Amount)
}

type PMLockWithFee struct{ WalletAmount }

func (*PMLockWithFee) Opcode() Opcode { return OpPMLockWithFee }
func (l *PMLockWithFee) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.PMLockWithFee(ctx, req, l.Wallet, l.Amount)
}

type PMUnlockWithFee struct{ WalletAmount }

func (*PMUnlockWithFee) Opcode() Opcode { return OpPMUnlockWithFee }
func (u *PMUnlockWithFee) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.PMUnlockWithFee(ctx, req, u.Wallet, u.Amount)
}

type PMTradeWithFee struct {
	Amount  uint64 `json:"amount"`
	IsTaker bool   `json:"is_taker"`
}

func (*PMTradeWithFee) Opcode() Opcode { return OpPMTradeWithFee }
func (t *PMTradeWithFee) fields(c *codec) {
	c.u64(&t.Amount)
	c.boolean(&t.IsTaker)
}
func (t *PMTradeWithFee) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.PMTradeWithFee(ctx, req, t.Amount, t.IsTaker)
}

type PMSettleWithFee struct{ Settlement }

func (*PMSettleWithFee) Opcode() Opcode { return OpPMSettleWithFee }
func (s *PMSettleWithFee) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.PMSettleWithFee(ctx, req, s.Wallet, s.Locked, s.Settlement.Settlement)
}

// --- Spot ---

type InitializeSpotUser struct{ empty }

func (*InitializeSpotUser) Opcode() Opcode { return OpInitializeSpotUser }
func (*InitializeSpotUser) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.InitializeSpotUser(ctx, req)
}

type SpotDeposit struct{ TokenAmount }

func (*SpotDeposit) Opcode() Opcode { return OpSpotDeposit }
func (d *SpotDeposit) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.SpotDeposit(ctx, req, d.Token, d.Amount)
}

type SpotWithdraw struct{ TokenAmount }

func (*SpotWithdraw) Opcode() Opcode { return OpSpotWithdraw }
func (w *SpotWithdraw) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.SpotWithdraw(ctx, req, w.Token, w.Amount)
}

type SpotLockBalance struct{ WalletTokenAmount }

func (*SpotLockBalance) Opcode() Opcode { return OpSpotLockBalance }
func (l *SpotLockBalance) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.SpotLockBalance(ctx, req, l.Wallet, l.Token, l.Amount)
}

type SpotUnlockBalance struct{ WalletTokenAmount }

func (*SpotUnlockBalance) Opcode() Opcode { return OpSpotUnlockBalance }
func (u *SpotUnlockBalance) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.SpotUnlockBalance(ctx, req, u.Wallet, u.Token, u.Amount)
}

type SpotSettleTrade struct {
	Wallet model.Identity `json:"wallet"`
	processor.SpotTrade
}

func (*SpotSettleTrade) Opcode() Opcode { return OpSpotSettleTrade }
func (s *SpotSettleTrade) fields(c *codec) {
	c.identity(&s.Wallet)
	c.boolean(&s.IsBuy)
	c.u16(&s.BaseToken)
	c.u16(&s.QuoteToken)
	c.u64(&s.BaseAmount)
	c.u64(&s.QuoteAmount)
	c.u64(&s.Sequence)
}
func (s *SpotSettleTrade) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.SpotSettleTrade(ctx, req, s.Wallet, s.SpotTrade)
}

type RelayerSpotDeposit struct{ WalletTokenAmount }

func (*RelayerSpotDeposit) Opcode() Opcode { return OpRelayerSpotDeposit }
func (d *RelayerSpotDeposit) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.RelayerSpotDeposit(ctx, req, d.Wallet, d.Token, d.Amount)
}

type RelayerSpotWithdraw struct{ WalletTokenAmount }

func (*RelayerSpotWithdraw) Opcode() Opcode { return OpRelayerSpotWithdraw }
func (w *RelayerSpotWithdraw) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.RelayerSpotWithdraw(ctx, req, w.Wallet, w.Token, w.Amount)
}

type RelayerSpotSettleTrade struct{ processor.Fill }

func (*RelayerSpotSettleTrade) Opcode() Opcode { return OpRelayerSpotSettleTrade }
func (f *RelayerSpotSettleTrade) fields(c *codec) {
	c.identity(&f.Maker)
	c.identity(&f.Taker)
	c.u16(&f.BaseToken)
	c.u16(&f.QuoteToken)
	c.u64(&f.BaseAmount)
	c.u64(&f.QuoteAmount)
	c.u64(&f.MakerFee)
	c.u64(&f.TakerFee)
	c.boolean(&f.TakerIsBuy)
	c.u64(&f.Sequence)
}
func (f *RelayerSpotSettleTrade) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.RelayerSpotSettleTrade(ctx, req, f.Fill)
}

type SpotAllocateFromVault struct{ WalletAmount }

func (*SpotAllocateFromVault) Opcode() Opcode { return OpSpotAllocateFromVault }
func (a *SpotAllocateFromVault) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.SpotAllocateFromVault(ctx, req, a.Wallet, a.Amount)
}

type SpotReleaseToVault struct{ WalletAmount }

func (*SpotReleaseToVault) Opcode() Opcode { return OpSpotReleaseToVault }
func (r *SpotReleaseToVault) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.SpotReleaseToVault(ctx, req, r.Wallet, r.Amount)
}

// --- Relayer transfers and recurring payments ---

type RelayerInternalTransfer struct{ processor.InternalTransfer }

func (*RelayerInternalTransfer) Opcode() Opcode { return OpRelayerInternalTransfer }
func (t *RelayerInternalTransfer) fields(c *codec) {
	c.identity(&t.From)
	c.identity(&t.To)
	c.u64(&t.Amount)
	c.u64(&t.Fee)
	c.u8(&t.TransferType)
	c.identity(&t.ReferenceHash)
}
func (t *RelayerInternalTransfer) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.RelayerInternalTransfer(ctx, req, t.InternalTransfer)
}

type InitRecurringAuth struct{ processor.RecurringTerms }

func (*InitRecurringAuth) Opcode() Opcode { return OpInitRecurringAuth }
func (i *InitRecurringAuth) fields(c *codec) {
	c.identity(&i.Payer)
	c.identity(&i.Payee)
	c.u64(&i.Amount)
	c.i64(&i.IntervalSeconds)
	c.u32(&i.MaxCycles)
	c.u64(&i.RegistrationFee)
}
func (i *InitRecurringAuth) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.InitRecurringAuth(ctx, req, i.RecurringTerms)
}

type ExecuteRecurringPayment struct{ processor.RecurringPayment }

func (*ExecuteRecurringPayment) Opcode() Opcode { return OpExecuteRecurringPayment }
func (e *ExecuteRecurringPayment) fields(c *codec) {
	c.identity(&e.Payer)
	c.identity(&e.Payee)
	c.u64(&e.Amount)
	c.u64(&e.Fee)
	c.u64(&e.Cycle)
}
func (e *ExecuteRecurringPayment) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.ExecuteRecurringPayment(ctx, req, e.RecurringPayment)
}

type CancelRecurringAuth struct{ Pair }

func (*CancelRecurringAuth) Opcode() Opcode { return OpCancelRecurringAuth }
func (x *CancelRecurringAuth) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.CancelRecurringAuth(ctx, req, x.Payer, x.Payee)
}

type AddRelayer struct{ Target }

func (*AddRelayer) Opcode() Opcode { return OpAddRelayer }
func (a *AddRelayer) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.AddRelayer(ctx, req, a.ID)
}

type RemoveRelayer struct{ Target }

func (*RemoveRelayer) Opcode() Opcode { return OpRemoveRelayer }
func (r *RemoveRelayer) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.RemoveRelayer(ctx, req, r.ID)
}

type UpdateRecurringStateHash struct {
	Pair
	Hash model.Identity `json:"hash"`
}

func (*UpdateRecurringStateHash) Opcode() Opcode { return OpUpdateRecurringStateHash }
func (u *UpdateRecurringStateHash) fields(c *codec) {
	u.Pair.fields(c)
	c.identity(&u.Hash)
}
func (u *UpdateRecurringStateHash) apply(ctx context.Context, p *processor.Processor, req processor.Request) (result, error) {
	return p.UpdateRecurringStateHash(ctx, req, u.Payer, u.Payee, u.Hash)
}

func newInstruction(op Opcode) Instruction {
	switch op {
	case OpInitialize:
		return &Initialize{}
	case OpInitializeUser:
		return &InitializeUser{}
	case OpDeposit:
		return &Deposit{}
	case OpWithdraw:
		return &Withdraw{}
	case OpLockMargin:
		return &LockMargin{}
	case OpReleaseMargin:
		return &ReleaseMargin{}
	case OpClosePositionSettle:
		return &ClosePositionSettle{}
	case OpLiquidatePosition:
		return &LiquidatePosition{}
	case OpAddAuthorizedCaller:
		return &AddAuthorizedCaller{}
	case OpRemoveAuthorizedCaller:
		return &RemoveAuthorizedCaller{}
	case OpSetPaused:
		return &SetPaused{}
	case OpUpdateAdmin:
		return &UpdateAdmin{}
	case OpSetFundProgram:
		return &SetFundProgram{}
	case OpSetLedgerProgram:
		return &SetLedgerProgram{}
	case OpAdminForceReleaseMargin:
		return &AdminForceReleaseMargin{}
	case OpInitializePredictionMarketUser:
		return &InitializePredictionMarketUser{}
	case OpPMLock:
		return &PMLock{}
	case OpPMUnlock:
		return &PMUnlock{}
	case OpPMSettle:
		return &PMSettle{}
	case OpPMClaimSettlement:
		return &PMClaimSettlement{}
	case OpAdminPMForceUnlock:
		return &AdminPMForceUnlock{}
	case OpRelayerDeposit:
		return &RelayerDeposit{}
	case OpRelayerWithdraw:
		return &RelayerWithdraw{}
	case OpPMLockWithFee:
		return &PMLockWithFee{}
	case OpPMUnlockWithFee:
		return &PMUnlockWithFee{}
	case OpPMTradeWithFee:
		return &PMTradeWithFee{}
	case OpPMSettleWithFee:
		return &PMSettleWithFee{}
	case OpInitializeSpotUser:
		return &InitializeSpotUser{}
	case OpSpotDeposit:
		return &SpotDeposit{}
	case OpSpotWithdraw:
		return &SpotWithdraw{}
	case OpSpotLockBalance:
		return &SpotLockBalance{}
	case OpSpotUnlockBalance:
		return &SpotUnlockBalance{}
	case OpSpotSettleTrade:
		return &SpotSettleTrade{}
	case OpRelayerSpotDeposit:
		return &RelayerSpotDeposit{}
	case OpRelayerSpotWithdraw:
		return &RelayerSpotWithdraw{}
	case OpRelayerSpotSettleTrade:
		return &RelayerSpotSettleTrade{}
	case OpSpotAllocateFromVault:
		return &SpotAllocateFromVault{}
	case OpSpotReleaseToVault:
		return &SpotReleaseToVault{}
	case OpRelayerInternalTransfer:
		return &RelayerInternalTransfer{}
	case OpInitRecurringAuth:
		return &InitRecurringAuth{}
	case OpExecuteRecurringPayment:
		return &ExecuteRecurringPayment{}
	case OpCancelRecurringAuth:
		return &CancelRecurringAuth{}
	case OpAddRelayer:
		return &AddRelayer{}
	case OpRemoveRelayer:
		return &RemoveRelayer{}
	case OpUpdateRecurringStateHash:
		return &UpdateRecurringStateHash{}
	}
	return nil
}
