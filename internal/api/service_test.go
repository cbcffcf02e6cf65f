package api_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/atmx/vault-engine/internal/api"
	"github.com/atmx/vault-engine/internal/feepolicy"
	"github.com/atmx/vault-engine/internal/instruction"
	"github.com/atmx/vault-engine/internal/model"
	"github.com/atmx/vault-engine/internal/processor"
	"github.com/atmx/vault-engine/internal/store"
	"github.com/atmx/vault-engine/internal/token"
)

var (
	program    = model.Identity{0xAA, 0x02}
	admin      = model.Identity{0x01}
	ledgerProg = model.Identity{0x02}
	vault      = model.Identity{0x10}
	feeVault   = model.Identity{0x12}
	policyAddr = model.Identity{0x13}
	alice      = model.Identity{0x21}
	aliceHold  = model.Identity{0xEE, 0x21}
)

type testEnv struct {
	proc   *processor.Processor
	ledger *token.Ledger
	router chi.Router
}

// newTestEnv creates an initialized vault behind a chi router.
func newTestEnv(t *testing.T, opts ...processor.Option) *testEnv {
	t.Helper()
	ms := store.NewMemoryStore()
	ledger := token.NewLedger()
	opts = append(opts, processor.WithClock(func() time.Time { return time.Unix(1_700_000_000, 0) }))
	proc := processor.New(ms, ledger, program, opts...)
	ledger.Open(vault, proc.Authority(), 0)
	ledger.Open(aliceHold, alice, 10_000_000)
	ledger.Open(feeVault, model.Identity{0x03}, 0)

	if _, err := proc.Initialize(context.Background(), signedBy(admin), processor.Setup{
		VaultHolding:  vault,
		LedgerProgram: ledgerProg,
	}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	err := ms.Put(context.Background(), store.Record{
		Address: policyAddr,
		Kind:    model.KindFeePolicy,
		Data:    feepolicy.Build(feepolicy.Params{Destination: feeVault, MintingBps: 50, TakerBps: 20}),
	})
	if err != nil {
		t.Fatalf("seed fee policy: %v", err)
	}

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		api.NewService(proc).Routes(r, nil)
	})
	return &testEnv{proc: proc, ledger: ledger, router: r}
}

func signedBy(id model.Identity) processor.Request {
	return processor.Request{Signer: model.Some(id)}
}

func (e *testEnv) submit(t *testing.T, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", "/api/v1/instructions", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(t *testing.T, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	if out != nil && w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return w
}

// fundAlice provisions alice and deposits amount through the API.
func (e *testEnv) fundAlice(t *testing.T, amount uint64) {
	t.Helper()
	if w := e.submit(t, api.SubmitRequest{Request: signedBy(alice), Op: "initialize_user"}); w.Code != http.StatusOK {
		t.Fatalf("initialize_user: %d %s", w.Code, w.Body)
	}
	req := signedBy(alice)
	req.Holding = aliceHold
	w := e.submit(t, api.SubmitRequest{
		Request: req,
		Op:      "deposit",
		Payload: json.RawMessage(`{"amount":` + decimal.NewFromInt(int64(amount)).String() + `}`),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("deposit: %d %s", w.Code, w.Body)
	}
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	code, _ := body["code"].(string)
	return code
}

// --- Submission ---

func TestSubmit_NamedOperation(t *testing.T) {
	e := newTestEnv(t)
	e.fundAlice(t, 1_500_000)

	req := signedBy(alice)
	req.Holding = aliceHold
	w := e.submit(t, api.SubmitRequest{Request: req, Op: "withdraw", Payload: json.RawMessage(`{"amount":500000}`)})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	var resp api.SubmitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Entry.Op != "withdraw" || resp.Entry.Wallet != alice {
		t.Errorf("entry = %+v", resp.Entry)
	}
	if !resp.Amount.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("amount = %s, want 0.5", resp.Amount)
	}
	if got := e.ledger.Balance(aliceHold); got != 9_000_000 {
		t.Errorf("alice holding = %d, want 9000000", got)
	}
}

func TestSubmit_EncodedHexAndBase64(t *testing.T) {
	e := newTestEnv(t)
	e.fundAlice(t, 2_000_000)

	raw := instruction.Encode(&instruction.Withdraw{Amount: instruction.Amount{Amount: 250_000}})
	req := signedBy(alice)
	req.Holding = aliceHold

	for _, data := range []string{hexutil.Encode(raw), base64.StdEncoding.EncodeToString(raw)} {
		if w := e.submit(t, api.SubmitRequest{Request: req, Data: data}); w.Code != http.StatusOK {
			t.Fatalf("submit %q: %d %s", data, w.Code, w.Body)
		}
	}
	u, err := e.proc.User(context.Background(), alice)
	if err != nil {
		t.Fatal(err)
	}
	if u.Available != 1_500_000 {
		t.Errorf("available = %d, want 1500000", u.Available)
	}
}

func TestSubmit_BadRequests(t *testing.T) {
	e := newTestEnv(t)

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/instructions", strings.NewReader("{")))
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body: %d", w.Code)
	}

	cases := []api.SubmitRequest{
		{},
		{Op: "deposit", Data: "0x02"},
		{Data: "not base64!"},
	}
	for _, c := range cases {
		if w := e.submit(t, c); w.Code != http.StatusBadRequest {
			t.Errorf("%+v: expected 400, got %d", c, w.Code)
		}
	}

	w = e.submit(t, api.SubmitRequest{Op: "mint_money"})
	if w.Code != http.StatusBadRequest || errorCode(t, w) != "InvalidInstruction" {
		t.Errorf("unknown op: %d %s", w.Code, w.Body)
	}
	w = e.submit(t, api.SubmitRequest{Data: "0xff"})
	if w.Code != http.StatusBadRequest || errorCode(t, w) != "InvalidInstruction" {
		t.Errorf("unknown opcode: %d %s", w.Code, w.Body)
	}
	w = e.submit(t, api.SubmitRequest{Op: "deposit", Payload: json.RawMessage(`{"amount":1,"extra":2}`)})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown payload field: %d", w.Code)
	}
}

func TestSubmit_RejectionStatus(t *testing.T) {
	e := newTestEnv(t)
	e.fundAlice(t, 1_000_000)

	tests := []struct {
		name   string
		body   api.SubmitRequest
		status int
		code   string
	}{
		{
			name:   "unlisted caller",
			body:   api.SubmitRequest{Request: processor.Request{Caller: model.Identity{0x77}}, Op: "lock_margin", Payload: json.RawMessage(`{"wallet":"` + alice.String() + `","amount":1}`)},
			status: http.StatusForbidden,
			code:   "UnauthorizedCaller",
		},
		{
			name:   "second initialize",
			body:   api.SubmitRequest{Request: signedBy(admin), Op: "initialize", Payload: json.RawMessage(`{"vault_holding":"` + vault.String() + `","ledger_program":"` + ledgerProg.String() + `"}`)},
			status: http.StatusConflict,
			code:   "AlreadyInitialized",
		},
		{
			name:   "overdraw",
			body:   api.SubmitRequest{Request: processor.Request{Signer: model.Some(alice), Holding: aliceHold}, Op: "withdraw", Payload: json.RawMessage(`{"amount":2000000}`)},
			status: http.StatusUnprocessableEntity,
			code:   "InsufficientBalance",
		},
		{
			name:   "zero amount",
			body:   api.SubmitRequest{Request: processor.Request{Signer: model.Some(alice), Holding: aliceHold}, Op: "deposit", Payload: json.RawMessage(`{"amount":0}`)},
			status: http.StatusBadRequest,
			code:   "InvalidAmount",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.submit(t, tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.status, w.Body)
			}
			if got := errorCode(t, w); got != tt.code {
				t.Errorf("code = %q, want %q", got, tt.code)
			}
		})
	}
}

// --- Queries ---

func TestGetUser_WithEquity(t *testing.T) {
	e := newTestEnv(t)
	e.fundAlice(t, 3_000_000)
	if _, err := e.proc.AddAuthorizedCaller(context.Background(), signedBy(admin), model.Identity{0x50}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.proc.LockMargin(context.Background(), processor.Request{Caller: model.Identity{0x50}}, alice, 1_000_000); err != nil {
		t.Fatal(err)
	}

	var view struct {
		Available string `json:"available_balance"`
		Locked    string `json:"locked_margin"`
		Equity    string `json:"equity"`
		EquityE6  int64  `json:"equity_e6"`
		RawAvail  int64  `json:"available_balance_e6"`
	}
	if w := e.get(t, "/api/v1/users/"+alice.String(), &view); w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body)
	}
	if view.Available != "2" || view.Locked != "1" || view.Equity != "3" {
		t.Errorf("view = %+v", view)
	}
	if view.EquityE6 != 3_000_000 || view.RawAvail != 2_000_000 {
		t.Errorf("raw amounts = %+v", view)
	}

	var cfg struct {
		Callers     []model.Identity `json:"callers"`
		TotalLocked string           `json:"total_locked"`
		Authority   model.Identity   `json:"authority"`
	}
	e.get(t, "/api/v1/config", &cfg)
	if len(cfg.Callers) != 1 || cfg.TotalLocked != "1" || cfg.Authority != e.proc.Authority() {
		t.Errorf("config view = %+v", cfg)
	}
}

func TestGetUser_NotFoundAndBadID(t *testing.T) {
	e := newTestEnv(t)
	if w := e.get(t, "/api/v1/users/"+model.Identity{0x99}.String(), nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown user: %d", w.Code)
	}
	if w := e.get(t, "/api/v1/users/0x1234", nil); w.Code != http.StatusBadRequest {
		t.Errorf("short id: %d", w.Code)
	}
	if w := e.get(t, "/api/v1/users/"+alice.String()+"/pm", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown pm user: %d", w.Code)
	}
}

func TestGetSubLedgers(t *testing.T) {
	e := newTestEnv(t)
	e.fundAlice(t, 5_000_000)
	ctx := context.Background()
	if _, err := e.proc.InitializePredictionMarketUser(ctx, signedBy(alice)); err != nil {
		t.Fatal(err)
	}
	if _, err := e.proc.SpotAllocateFromVault(ctx, signedBy(admin), alice, 1_250_000); err != nil {
		t.Fatal(err)
	}

	var pm struct {
		Locked string `json:"locked"`
		Equity string `json:"equity"`
	}
	if w := e.get(t, "/api/v1/users/"+alice.String()+"/pm", &pm); w.Code != http.StatusOK {
		t.Fatalf("pm: %d %s", w.Code, w.Body)
	}
	if pm.Locked != "0" || pm.Equity != "0" {
		t.Errorf("pm view = %+v", pm)
	}

	var spot struct {
		Tokens []struct {
			TokenIndex uint16 `json:"token_index"`
			Available  string `json:"available"`
		} `json:"tokens"`
	}
	if w := e.get(t, "/api/v1/users/"+alice.String()+"/spot", &spot); w.Code != http.StatusOK {
		t.Fatalf("spot: %d %s", w.Code, w.Body)
	}
	if len(spot.Tokens) != 1 || spot.Tokens[0].TokenIndex != 0 || spot.Tokens[0].Available != "1.25" {
		t.Errorf("spot view = %+v", spot)
	}
}

func TestGetRecurringAndRelayers(t *testing.T) {
	e := newTestEnv(t)
	e.fundAlice(t, 1_000_000)
	ctx := context.Background()
	payee := model.Identity{0x22}

	var relayers []model.Identity
	if w := e.get(t, "/api/v1/relayers", &relayers); w.Code != http.StatusOK || len(relayers) != 0 {
		t.Fatalf("relayers: %d %v", w.Code, relayers)
	}
	if w := e.get(t, "/api/v1/recurring/"+alice.String()+"/"+payee.String(), nil); w.Code != http.StatusNotFound {
		t.Errorf("missing auth: %d", w.Code)
	}

	relayer := model.Identity{0x05}
	if _, err := e.proc.AddRelayer(ctx, signedBy(admin), relayer); err != nil {
		t.Fatal(err)
	}
	if _, err := e.proc.InitRecurringAuth(ctx, signedBy(relayer), processor.RecurringTerms{
		Payer: alice, Payee: payee, Amount: 100_000, IntervalSeconds: 3600, MaxCycles: 3,
	}); err != nil {
		t.Fatal(err)
	}

	e.get(t, "/api/v1/relayers", &relayers)
	if len(relayers) != 1 || relayers[0] != relayer {
		t.Errorf("relayers = %v", relayers)
	}
	var auth model.RecurringAuth
	if w := e.get(t, "/api/v1/recurring/"+alice.String()+"/"+payee.String(), &auth); w.Code != http.StatusOK {
		t.Fatalf("auth: %d %s", w.Code, w.Body)
	}
	if !auth.Active || auth.MaxCycles != 3 || auth.Amount != 100_000 {
		t.Errorf("auth = %+v", auth)
	}
}

func TestGetFeePolicyAndJournal(t *testing.T) {
	e := newTestEnv(t)
	e.fundAlice(t, 1_000_000)

	var pol api.FeePolicyView
	if w := e.get(t, "/api/v1/fee-policies/"+policyAddr.String(), &pol); w.Code != http.StatusOK {
		t.Fatalf("fee policy: %d %s", w.Code, w.Body)
	}
	if pol.Destination != feeVault || pol.MintingBps != 50 || pol.TakerBps != 20 || !pol.TotalMinting.IsZero() {
		t.Errorf("policy = %+v", pol)
	}
	if w := e.get(t, "/api/v1/fee-policies/"+model.Identity{0x98}.String(), nil); w.Code != http.StatusNotFound {
		t.Errorf("missing policy: %d", w.Code)
	}

	var entries []model.JournalEntry
	e.get(t, "/api/v1/users/"+alice.String()+"/journal", &entries)
	if len(entries) != 2 || entries[0].Op != "initialize_user" || entries[1].Op != "deposit" {
		t.Errorf("alice journal = %+v", entries)
	}
	e.get(t, "/api/v1/journal?limit=1", &entries)
	if len(entries) != 1 || entries[0].Op != "deposit" {
		t.Errorf("recent journal = %+v", entries)
	}
	if w := e.get(t, "/api/v1/journal?limit=0", nil); w.Code != http.StatusBadRequest {
		t.Errorf("limit 0: %d", w.Code)
	}
}

// --- WebSocket ---

func TestHub_BroadcastsCommittedOperations(t *testing.T) {
	hub := api.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	e := newTestEnv(t, processor.WithObserver(hub.Publish))
	r := chi.NewRouter()
	r.Get("/ws", hub.HandleWS)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() < 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	e.fundAlice(t, 750_000)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ops []string
	for {
		var ev api.Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read: %v (got %v)", err, ops)
		}
		if ev.Entry.Op == "initialize" {
			continue
		}
		ops = append(ops, ev.Entry.Op)
		if ev.Entry.Op == "deposit" {
			if ev.Amount != "0.75" {
				t.Errorf("deposit event amount = %s", ev.Amount)
			}
			break
		}
	}
	if len(ops) != 2 || ops[0] != "initialize_user" {
		t.Errorf("ops = %v", ops)
	}
}
