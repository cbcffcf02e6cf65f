// Package api exposes the vault over HTTP: instruction submission, record
// queries and a WebSocket feed of committed operations.
//
// Amounts are returned both as raw e6 integers and as exact decimals.
package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/atmx/vault-engine/internal/feepolicy"
	"github.com/atmx/vault-engine/internal/instruction"
	"github.com/atmx/vault-engine/internal/model"
	"github.com/atmx/vault-engine/internal/processor"
	"github.com/atmx/vault-engine/internal/store"
)

// Service handles vault HTTP requests.
type Service struct {
	proc *processor.Processor
	disp *instruction.Dispatcher
}

func NewService(p *processor.Processor) *Service {
	return &Service{proc: p, disp: instruction.NewDispatcher(p)}
}

// Routes registers every vault endpoint on r. hub may be nil.
func (s *Service) Routes(r chi.Router, hub *Hub) {
	if hub != nil {
		r.Get("/ws", hub.HandleWS)
	}

	r.Post("/instructions", s.Submit)

	r.Get("/config", s.GetConfig)
	r.Get("/relayers", s.GetRelayers)
	r.Get("/fee-policies/{address}", s.GetFeePolicy)
	r.Get("/journal", s.GetRecentJournal)

	r.Get("/users/{wallet}", s.GetUser)
	r.Get("/users/{wallet}/pm", s.GetPMUser)
	r.Get("/users/{wallet}/spot", s.GetSpotUser)
	r.Get("/users/{wallet}/journal", s.GetJournal)

	r.Get("/recurring/{payer}/{payee}", s.GetRecurringAuth)
}

// --- Request/Response types ---

// SubmitRequest is the JSON body for POST /instructions. Either Data (the
// encoded instruction, hex or base64) or Op with an optional JSON Payload
// must be set.
type SubmitRequest struct {
	Request processor.Request `json:"request"`
	Data    string            `json:"data,omitempty"`
	Op      string            `json:"op,omitempty"`
	Payload json.RawMessage   `json:"payload,omitempty"`
}

// SubmitResponse is returned for an applied instruction.
type SubmitResponse struct {
	Entry  *model.JournalEntry `json:"entry"`
	Amount decimal.Decimal     `json:"amount"`
	Fee    decimal.Decimal     `json:"fee"`
}

// UserView is a margin account with its derived equity.
type UserView struct {
	*model.UserAccount
	EquityE6  int64           `json:"equity_e6"`
	Available decimal.Decimal `json:"available_balance"`
	Locked    decimal.Decimal `json:"locked_margin"`
	Equity    decimal.Decimal `json:"equity"`
}

type PMUserView struct {
	*model.PMUserAccount
	EquityE6          int64           `json:"equity_e6"`
	Locked            decimal.Decimal `json:"locked"`
	PendingSettlement decimal.Decimal `json:"pending_settlement"`
	RealizedPnL       decimal.Decimal `json:"realized_pnl"`
	Equity            decimal.Decimal `json:"equity"`
}

type TokenView struct {
	model.TokenBalance
	Available decimal.Decimal `json:"available"`
	Locked    decimal.Decimal `json:"locked"`
}

// SpotUserView lists only the occupied instrument slots.
type SpotUserView struct {
	*model.SpotUserAccount
	Tokens []TokenView `json:"tokens"`
}

type ConfigView struct {
	*model.Config
	Authority     model.Identity   `json:"authority"`
	Callers       []model.Identity `json:"callers"`
	TotalDeposits decimal.Decimal  `json:"total_deposits"`
	TotalLocked   decimal.Decimal  `json:"total_locked"`
}

type FeePolicyView struct {
	Address         model.Identity  `json:"address"`
	Destination     model.Identity  `json:"destination"`
	MintingBps      uint16          `json:"minting_bps"`
	RedemptionBps   uint16          `json:"redemption_bps"`
	TakerBps        uint16          `json:"taker_bps"`
	MakerBps        uint16          `json:"maker_bps"`
	SettlementBps   uint16          `json:"settlement_bps"`
	TotalMinting    decimal.Decimal `json:"total_minting_fees"`
	TotalRedemption decimal.Decimal `json:"total_redemption_fees"`
	TotalTrading    decimal.Decimal `json:"total_trading_fees"`
}

// --- HTTP Handlers ---

// Submit handles POST /api/v1/instructions
func (s *Service) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	var (
		entry *model.JournalEntry
		err   error
	)
	switch {
	case req.Data != "" && req.Op != "":
		writeError(w, "set either data or op, not both", http.StatusBadRequest)
		return
	case req.Data != "":
		raw, derr := decodeData(req.Data)
		if derr != nil {
			writeError(w, "data must be hex or base64", http.StatusBadRequest)
			return
		}
		entry, err = s.disp.Dispatch(ctx, req.Request, raw)
	case req.Op != "":
		inst, perr := instruction.Parse(req.Op, req.Payload)
		if perr != nil {
			writeOpError(w, perr)
			return
		}
		entry, err = s.disp.Apply(ctx, req.Request, inst)
	default:
		writeError(w, "data or op is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeOpError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SubmitResponse{
		Entry:  entry,
		Amount: model.ToDecimal(entry.Amount),
		Fee:    model.ToDecimal(entry.Fee),
	})
}

func decodeData(s string) ([]byte, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return hexutil.Decode(s)
	}
	return base64.StdEncoding.DecodeString(s)
}

// GetConfig handles GET /api/v1/config
func (s *Service) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.proc.Config(r.Context())
	if err != nil {
		writeReadError(w, err, "vault not initialized")
		return
	}
	callers := cfg.Callers()
	if callers == nil {
		callers = []model.Identity{}
	}
	writeJSON(w, http.StatusOK, ConfigView{
		Config:        cfg,
		Authority:     s.proc.Authority(),
		Callers:       callers,
		TotalDeposits: model.UnsignedToDecimal(cfg.TotalDeposits),
		TotalLocked:   model.UnsignedToDecimal(cfg.TotalLocked),
	})
}

// GetUser handles GET /api/v1/users/{wallet}
func (s *Service) GetUser(w http.ResponseWriter, r *http.Request) {
	wallet, ok := identityParam(w, r, "wallet")
	if !ok {
		return
	}
	u, err := s.proc.User(r.Context(), wallet)
	if err != nil {
		writeReadError(w, err, "user account not found")
		return
	}
	equity, err := u.Equity()
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UserView{
		UserAccount: u,
		EquityE6:    equity,
		Available:   model.ToDecimal(u.Available),
		Locked:      model.ToDecimal(u.Locked),
		Equity:      model.ToDecimal(equity),
	})
}

// GetPMUser handles GET /api/v1/users/{wallet}/pm
func (s *Service) GetPMUser(w http.ResponseWriter, r *http.Request) {
	wallet, ok := identityParam(w, r, "wallet")
	if !ok {
		return
	}
	pm, err := s.proc.PMUser(r.Context(), wallet)
	if err != nil {
		writeReadError(w, err, "prediction market account not found")
		return
	}
	equity := pm.Equity()
	writeJSON(w, http.StatusOK, PMUserView{
		PMUserAccount:     pm,
		EquityE6:          equity,
		Locked:            model.ToDecimal(pm.Locked),
		PendingSettlement: model.ToDecimal(pm.PendingSettlement),
		RealizedPnL:       model.ToDecimal(pm.RealizedPnL),
		Equity:            model.ToDecimal(equity),
	})
}

// GetSpotUser handles GET /api/v1/users/{wallet}/spot
func (s *Service) GetSpotUser(w http.ResponseWriter, r *http.Request) {
	wallet, ok := identityParam(w, r, "wallet")
	if !ok {
		return
	}
	su, err := s.proc.SpotUser(r.Context(), wallet)
	if err != nil {
		writeReadError(w, err, "spot account not found")
		return
	}
	tokens := make([]TokenView, 0, su.TokenCount)
	for _, tb := range su.Tokens() {
		tokens = append(tokens, TokenView{
			TokenBalance: tb,
			Available:    model.ToDecimal(tb.Available),
			Locked:       model.ToDecimal(tb.Locked),
		})
	}
	writeJSON(w, http.StatusOK, SpotUserView{SpotUserAccount: su, Tokens: tokens})
}

// GetRecurringAuth handles GET /api/v1/recurring/{payer}/{payee}
func (s *Service) GetRecurringAuth(w http.ResponseWriter, r *http.Request) {
	payer, ok := identityParam(w, r, "payer")
	if !ok {
		return
	}
	payee, ok := identityParam(w, r, "payee")
	if !ok {
		return
	}
	auth, err := s.proc.RecurringAuth(r.Context(), payer, payee)
	if err != nil {
		writeReadError(w, err, "recurring authorization not found")
		return
	}
	writeJSON(w, http.StatusOK, auth)
}

// GetRelayers handles GET /api/v1/relayers
func (s *Service) GetRelayers(w http.ResponseWriter, r *http.Request) {
	relayers, err := s.proc.Relayers(r.Context())
	if err != nil {
		writeError(w, "failed to load relayers", http.StatusInternalServerError)
		return
	}
	if relayers == nil {
		relayers = []model.Identity{}
	}
	writeJSON(w, http.StatusOK, relayers)
}

// GetFeePolicy handles GET /api/v1/fee-policies/{address}
func (s *Service) GetFeePolicy(w http.ResponseWriter, r *http.Request) {
	addr, ok := identityParam(w, r, "address")
	if !ok {
		return
	}
	pol, err := s.proc.FeePolicy(r.Context(), addr)
	if err != nil {
		writeReadError(w, err, "fee policy not found")
		return
	}
	writeJSON(w, http.StatusOK, FeePolicyView{
		Address:         addr,
		Destination:     pol.Destination(),
		MintingBps:      pol.Rate(feepolicy.RateMinting),
		RedemptionBps:   pol.Rate(feepolicy.RateRedemption),
		TakerBps:        pol.Rate(feepolicy.RateTaker),
		MakerBps:        pol.Rate(feepolicy.RateMaker),
		SettlementBps:   pol.Rate(feepolicy.RateSettlement),
		TotalMinting:    model.ToDecimal(pol.Total(feepolicy.TotalMinting)),
		TotalRedemption: model.ToDecimal(pol.Total(feepolicy.TotalRedemption)),
		TotalTrading:    model.ToDecimal(pol.Total(feepolicy.TotalTrading)),
	})
}

// GetJournal handles GET /api/v1/users/{wallet}/journal
func (s *Service) GetJournal(w http.ResponseWriter, r *http.Request) {
	wallet, ok := identityParam(w, r, "wallet")
	if !ok {
		return
	}
	entries, err := s.proc.Journal(r.Context(), wallet)
	if err != nil {
		writeError(w, "failed to load journal", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetRecentJournal handles GET /api/v1/journal?limit=N
func (s *Service) GetRecentJournal(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, "limit must be between 1 and 1000", http.StatusBadRequest)
			return
		}
		limit = n
	}
	entries, err := s.proc.RecentJournal(r.Context(), limit)
	if err != nil {
		writeError(w, "failed to load journal", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- helpers ---

func identityParam(w http.ResponseWriter, r *http.Request, name string) (model.Identity, bool) {
	id, err := model.ParseIdentity(chi.URLParam(r, name))
	if err != nil {
		writeError(w, name+": "+err.Error(), http.StatusBadRequest)
		return model.Identity{}, false
	}
	return id, true
}

func writeReadError(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, notFound, http.StatusNotFound)
		return
	}
	writeError(w, "failed to read record", http.StatusInternalServerError)
}

// statusFor maps a rejection to an HTTP status.
func statusFor(err error) int {
	if errors.Is(err, store.ErrLockTimeout) {
		return http.StatusServiceUnavailable
	}
	code, ok := model.CodeOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch code {
	case model.ErrUnauthorizedCaller, model.ErrInvalidAdmin, model.ErrInvalidCallerPda,
		model.ErrCallerNotSigner, model.ErrInvalidRelayer, model.ErrUnauthorizedAdmin,
		model.ErrUnauthorizedUser, model.ErrMissingSignature:
		return http.StatusForbidden
	case model.ErrAlreadyInitialized, model.ErrNotInitialized, model.ErrVaultPaused,
		model.ErrRecurringAuthNotActive, model.ErrInvalidCycleCount, model.ErrSettlementFailed:
		return http.StatusConflict
	case model.ErrInsufficientBalance, model.ErrInsufficientMargin, model.ErrInsuranceFundInsufficient,
		model.ErrTokenSlotsFull:
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadRequest
}

// writeOpError writes a rejection with its error name and numeric code.
func writeOpError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := map[string]any{"error": err.Error()}
	if code, ok := model.CodeOf(err); ok {
		body["code"] = code.Name()
		body["code_num"] = code.Code()
	} else if status == http.StatusInternalServerError {
		body["error"] = "internal error"
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
