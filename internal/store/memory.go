package store

import (
	"context"
	"sync"

	"github.com/atmx/vault-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu      sync.RWMutex
	records map[model.Identity]Record
	journal []model.JournalEntry
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[model.Identity]Record),
	}
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (s *MemoryStore) GetRecord(_ context.Context, addr model.Identity) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[addr]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBytes(r.Data), nil
}

func (s *MemoryStore) ListRecords(_ context.Context, kind model.Kind) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, r := range s.records {
		if r.Kind == kind {
			out = append(out, Record{Address: r.Address, Kind: r.Kind, Data: cloneBytes(r.Data)})
		}
	}
	return out, nil
}

func (s *MemoryStore) Commit(_ context.Context, records []Record, entry *model.JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		s.records[r.Address] = Record{Address: r.Address, Kind: r.Kind, Data: cloneBytes(r.Data)}
	}
	if entry != nil {
		s.journal = append(s.journal, *entry)
	}
	return nil
}

// Put stores a record outside any operation, for seeding external
// records such as a fee policy.
func (s *MemoryStore) Put(ctx context.Context, r Record) error {
	return s.Commit(ctx, []Record{r}, nil)
}

func (s *MemoryStore) GetJournalByWallet(_ context.Context, wallet model.Identity) ([]model.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.JournalEntry
	for _, e := range s.journal {
		if e.Involves(wallet) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (s *MemoryStore) ListJournal(_ context.Context, limit int) ([]model.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.journal)
	if limit <= 0 || limit > n {
		limit = n
	}
	result := make([]model.JournalEntry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		result = append(result, s.journal[i])
	}
	return result, nil
}
