package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atmx/vault-engine/internal/model"
)

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.GetRecord(context.Background(), model.Identity{1}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_CommitCopiesData(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	data := []byte{1, 2, 3}
	if err := s.Commit(ctx, []Record{{Address: model.Identity{1}, Kind: model.KindUser, Data: data}}, nil); err != nil {
		t.Fatal(err)
	}
	data[0] = 9

	got, _ := s.GetRecord(ctx, model.Identity{1})
	if got[0] != 1 {
		t.Error("store kept a reference to caller's slice")
	}
	got[1] = 9
	again, _ := s.GetRecord(ctx, model.Identity{1})
	if again[1] != 2 {
		t.Error("store returned its internal slice")
	}
}

func TestMemoryStore_ListRecordsByKind(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.Commit(ctx, []Record{
		{Address: model.Identity{1}, Kind: model.KindUser, Data: []byte{1}},
		{Address: model.Identity{2}, Kind: model.KindSpotUser, Data: []byte{2}},
		{Address: model.Identity{3}, Kind: model.KindUser, Data: []byte{3}},
	}, nil)
	users, _ := s.ListRecords(ctx, model.KindUser)
	if len(users) != 2 {
		t.Errorf("got %d user records, want 2", len(users))
	}
}

func TestMemoryStore_Journal(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	alice, bob := model.Identity{0xA}, model.Identity{0xB}
	now := time.Now().UTC()

	s.Commit(ctx, nil, &model.JournalEntry{ID: "1", Op: "deposit", Wallet: alice, Amount: 10, Timestamp: now})
	s.Commit(ctx, nil, &model.JournalEntry{ID: "2", Op: "relayer_internal_transfer", Wallet: alice, Counterparty: bob, Amount: 5, Timestamp: now})
	s.Commit(ctx, nil, &model.JournalEntry{ID: "3", Op: "deposit", Wallet: bob, Amount: 7, Timestamp: now})

	bobs, _ := s.GetJournalByWallet(ctx, bob)
	if len(bobs) != 2 || bobs[0].ID != "2" || bobs[1].ID != "3" {
		t.Errorf("bob's journal = %+v", bobs)
	}

	recent, _ := s.ListJournal(ctx, 2)
	if len(recent) != 2 || recent[0].ID != "3" || recent[1].ID != "2" {
		t.Errorf("recent = %+v", recent)
	}
	all, _ := s.ListJournal(ctx, 0)
	if len(all) != 3 {
		t.Errorf("all = %d entries", len(all))
	}
}

func TestLocalLocker_Serializes(t *testing.T) {
	var l LocalLocker
	unlock, err := l.Lock(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	acquired := make(chan struct{})
	go func() {
		u, err := l.Lock(context.Background())
		if err == nil {
			u()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first held")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	unlock() // idempotent
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired")
	}
}

func TestLocalLocker_CancelledContext(t *testing.T) {
	var l LocalLocker
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Lock(ctx); err == nil {
		t.Error("expected error for cancelled context")
	}
}
