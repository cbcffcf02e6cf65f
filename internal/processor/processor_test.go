package processor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atmx/vault-engine/internal/feepolicy"
	"github.com/atmx/vault-engine/internal/model"
	"github.com/atmx/vault-engine/internal/processor"
	"github.com/atmx/vault-engine/internal/store"
	"github.com/atmx/vault-engine/internal/token"
)

var (
	ctx     = context.Background()
	program = model.Identity{0xAA, 0x01}

	admin      = model.Identity{0x01}
	ledgerProg = model.Identity{0x02}
	fundProg   = model.Identity{0x03}
	outsider   = model.Identity{0x04}
	relayer    = model.Identity{0x05}
	vault      = model.Identity{0x10}
	insurance  = model.Identity{0x11}
	feeVault   = model.Identity{0x12}
	policyAddr = model.Identity{0x13}

	alice = model.Identity{0x21}
	bob   = model.Identity{0x22}
)

const now = 1_700_000_000

type env struct {
	t       *testing.T
	proc    *processor.Processor
	store   *store.MemoryStore
	ledger  *token.Ledger
	entries []model.JournalEntry
}

// newEnv creates an initialized vault over an in-memory store and token
// ledger, with a fee policy seeded at policyAddr.
func newEnv(t *testing.T) *env {
	t.Helper()
	ms := store.NewMemoryStore()
	e := &env{t: t, store: ms, ledger: token.NewLedger()}
	e.proc = processor.New(ms, e.ledger, program,
		processor.WithClock(func() time.Time { return time.Unix(now, 0) }),
		processor.WithObserver(func(entry model.JournalEntry) { e.entries = append(e.entries, entry) }),
	)
	e.ledger.Open(vault, e.proc.Authority(), 0)
	e.ledger.Open(insurance, model.Identity{0x7F}, 0)
	e.ledger.Open(feeVault, fundProg, 0)

	_, err := e.proc.Initialize(ctx, signedBy(admin), processor.Setup{
		AssetMint:         model.Identity{0xA0},
		VaultHolding:      vault,
		LedgerProgram:     ledgerProg,
		DelegationProgram: model.Identity{0xD0},
		FundProgram:       model.Some(fundProg),
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	err = ms.Put(ctx, store.Record{
		Address: policyAddr,
		Kind:    model.KindFeePolicy,
		Data: feepolicy.Build(feepolicy.Params{
			Destination:   feeVault,
			MintingBps:    50,
			RedemptionBps: 30,
			TakerBps:      20,
			MakerBps:      10,
			SettlementBps: 100,
		}),
	})
	if err != nil {
		t.Fatalf("seed fee policy: %v", err)
	}
	return e
}

func signedBy(id model.Identity) processor.Request {
	return processor.Request{Signer: model.Some(id)}
}

func byCaller(id model.Identity) processor.Request {
	return processor.Request{Caller: id}
}

func holdingOf(wallet model.Identity) model.Identity {
	return model.Identity{0xEE, wallet[0]}
}

// fund opens an external holding for wallet, creates its margin account
// and deposits amount.
func (e *env) fund(wallet model.Identity, amount uint64) {
	e.t.Helper()
	e.ledger.Open(holdingOf(wallet), wallet, amount)
	if _, err := e.proc.InitializeUser(ctx, signedBy(wallet)); err != nil {
		e.t.Fatalf("initialize user: %v", err)
	}
	if amount == 0 {
		return
	}
	req := signedBy(wallet)
	req.Holding = holdingOf(wallet)
	if _, err := e.proc.Deposit(ctx, req, amount); err != nil {
		e.t.Fatalf("deposit: %v", err)
	}
}

func (e *env) user(wallet model.Identity) *model.UserAccount {
	e.t.Helper()
	u, err := e.proc.User(ctx, wallet)
	if err != nil {
		e.t.Fatalf("load user: %v", err)
	}
	return u
}

func (e *env) pm(wallet model.Identity) *model.PMUserAccount {
	e.t.Helper()
	pm, err := e.proc.PMUser(ctx, wallet)
	if err != nil {
		e.t.Fatalf("load pm user: %v", err)
	}
	return pm
}

func (e *env) spot(wallet model.Identity) *model.SpotUserAccount {
	e.t.Helper()
	s, err := e.proc.SpotUser(ctx, wallet)
	if err != nil {
		e.t.Fatalf("load spot user: %v", err)
	}
	return s
}

func (e *env) addRelayer(id model.Identity) {
	e.t.Helper()
	if _, err := e.proc.AddRelayer(ctx, signedBy(admin), id); err != nil {
		e.t.Fatalf("add relayer: %v", err)
	}
}

func expectCode(t *testing.T, err error, want model.Error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got success", want.Name())
	}
	got, ok := model.CodeOf(err)
	if !ok || got != want {
		t.Fatalf("expected %s, got %v", want.Name(), err)
	}
}

func mustOK(t *testing.T) func(*model.JournalEntry, error) {
	return func(_ *model.JournalEntry, err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

// --- Atomic commit ---

type failingStore struct {
	store.Store
}

func (failingStore) Commit(context.Context, []store.Record, *model.JournalEntry) error {
	return errors.New("disk full")
}

func TestRun_CommitFailureReversesTransfers(t *testing.T) {
	e := newEnv(t)
	e.fund(alice, 0)

	failing := processor.New(failingStore{e.store}, e.ledger, program,
		processor.WithClock(func() time.Time { return time.Unix(now, 0) }))
	e.ledger.Open(holdingOf(alice), alice, 1_000_000)

	req := signedBy(alice)
	req.Holding = holdingOf(alice)
	if _, err := failing.Deposit(ctx, req, 400_000); err == nil {
		t.Fatal("expected commit failure")
	}
	if got := e.ledger.Balance(holdingOf(alice)); got != 1_000_000 {
		t.Errorf("holding balance = %d, want 1000000 after reversal", got)
	}
	if got := e.ledger.Balance(vault); got != 0 {
		t.Errorf("vault balance = %d, want 0 after reversal", got)
	}
	if got := e.user(alice).Available; got != 0 {
		t.Errorf("available = %d, want 0", got)
	}
}

func TestRun_TransferFailureLeavesNoTrace(t *testing.T) {
	e := newEnv(t)
	e.fund(alice, 0)
	e.ledger.Open(holdingOf(alice), alice, 100)
	before := len(e.entries)

	req := signedBy(alice)
	req.Holding = holdingOf(alice)
	_, err := e.proc.Deposit(ctx, req, 500)
	expectCode(t, err, model.ErrInsufficientBalance)

	if got := e.user(alice).Available; got != 0 {
		t.Errorf("available = %d, want 0", got)
	}
	if len(e.entries) != before {
		t.Error("rejected operation was journaled")
	}
	journal, _ := e.proc.Journal(ctx, alice)
	for _, j := range journal {
		if j.Op == "deposit" {
			t.Error("rejected deposit found in journal")
		}
	}
}

func TestRun_JournalsAppliedOperation(t *testing.T) {
	e := newEnv(t)
	e.fund(alice, 2_000_000)

	journal, err := e.proc.Journal(ctx, alice)
	if err != nil {
		t.Fatal(err)
	}
	if len(journal) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(journal))
	}
	dep := journal[1]
	if dep.Op != "deposit" || dep.Amount != 2_000_000 || dep.Signer != alice {
		t.Errorf("unexpected deposit entry: %+v", dep)
	}
	if dep.ID == "" || dep.Timestamp.Unix() != now {
		t.Errorf("entry missing id or timestamp: %+v", dep)
	}
}
