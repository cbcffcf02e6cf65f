package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/vault-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Commits go to the primary store and invalidate the touched keys;
// reads check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) Commit(ctx context.Context, records []Record, entry *model.JournalEntry) error {
	if err := s.primary.Commit(ctx, records, entry); err != nil {
		return err
	}
	keys := make([]string, 0, len(records)+2)
	for _, r := range records {
		keys = append(keys, recordKey(r.Address))
	}
	if entry != nil {
		keys = append(keys, journalKey(entry.Wallet))
		if !entry.Counterparty.IsZero() {
			keys = append(keys, journalKey(entry.Counterparty))
		}
	}
	// Invalidate; next read will re-populate.
	s.rdb.Del(ctx, keys...)
	return nil
}

// Put seeds a record on primaries that support it.
func (s *CachedStore) Put(ctx context.Context, r Record) error {
	return s.Commit(ctx, []Record{r}, nil)
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetRecord(ctx context.Context, addr model.Identity) ([]byte, error) {
	data, err := s.rdb.Get(ctx, recordKey(addr)).Bytes()
	if err == nil {
		return data, nil
	}

	// Cache miss: read from primary.
	data, err = s.primary.GetRecord(ctx, addr)
	if err != nil {
		return nil, err
	}
	s.rdb.Set(ctx, recordKey(addr), data, s.ttl)
	return data, nil
}

func (s *CachedStore) GetJournalByWallet(ctx context.Context, wallet model.Identity) ([]model.JournalEntry, error) {
	data, err := s.rdb.Get(ctx, journalKey(wallet)).Bytes()
	if err == nil {
		var entries []model.JournalEntry
		if json.Unmarshal(data, &entries) == nil {
			return entries, nil
		}
	}

	entries, err := s.primary.GetJournalByWallet(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(entries); err == nil {
		s.rdb.Set(ctx, journalKey(wallet), data, s.ttl)
	}
	return entries, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListRecords(ctx context.Context, kind model.Kind) ([]Record, error) {
	return s.primary.ListRecords(ctx, kind)
}

func (s *CachedStore) ListJournal(ctx context.Context, limit int) ([]model.JournalEntry, error) {
	return s.primary.ListJournal(ctx, limit)
}

// --- Cache helpers ---

func recordKey(addr model.Identity) string    { return fmt.Sprintf("vault:record:%s", addr) }
func journalKey(wallet model.Identity) string { return fmt.Sprintf("vault:journal:%s", wallet) }

// unlockLua deletes the lock key only if it still holds the caller's token.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// ErrLockTimeout is returned when the execution lock cannot be acquired
// before the context ends.
var ErrLockTimeout = errors.New("store: execution lock not acquired")
