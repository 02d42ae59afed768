package store

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore is a threadsafe in-memory AccountStore useful for tests and
// single-instance demo servers. NOT suitable for production: nothing
// survives a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account // key = lowercase(username)
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*Account)}
}

// Load implements AccountStore.
func (m *MemoryStore) Load(_ context.Context, username string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acc, ok := m.accounts[normalizeUsername(username)]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return acc.clone(), nil
}

// Create implements AccountStore. The map insert under the write lock is
// the uniqueness constraint; check-then-insert races are impossible here.
func (m *MemoryStore) Create(_ context.Context, account *Account) error {
	key := normalizeUsername(account.Username)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.accounts[key]; exists {
		return ErrAccountExists
	}
	cp := account.clone()
	cp.normalize()
	m.accounts[key] = cp
	return nil
}

// Upsert implements AccountStore.
func (m *MemoryStore) Upsert(_ context.Context, username string, mutate func(*Account)) (*Account, error) {
	key := normalizeUsername(username)
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[key]
	if !ok {
		acc = DefaultAccount(username)
	}
	cp := acc.clone()
	mutate(cp)
	cp.normalize()
	m.accounts[key] = cp
	return cp.clone(), nil
}

// Close implements AccountStore.
func (m *MemoryStore) Close() error { return nil }

// Usernames share one flat namespace, compared case-insensitively.
func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
