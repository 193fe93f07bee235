package ledger

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory Store used by tests and local dry runs. It
// mirrors the DynamoDB contract, including returning logically expired
// entries from Get.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func memKey(roleID, actionKey string) string {
	return roleID + "\x00" + actionKey
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, roleID, actionKey string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[memKey(roleID, actionKey)]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// Put implements Store.
func (s *MemoryStore) Put(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[memKey(entry.RoleID, entry.ActionKey)] = entry
	return nil
}

// RefreshTTL implements Store.
func (s *MemoryStore) RefreshTTL(ctx context.Context, roleID, actionKey string, expiresAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memKey(roleID, actionKey)
	entry, ok := s.entries[key]
	if !ok {
		return fmt.Errorf("ledger refresh (%s, %s): entry does not exist", roleID, actionKey)
	}
	entry.ExpiresAt = expiresAt
	s.entries[key] = entry
	return nil
}

// Len returns the number of stored entries. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
