package store

import (
	"context"
	"errors"
)

// AccountStore defines operations for account persistence. One interface
// covers every medium (in-memory, legacy flat file, per-user JSON files,
// MongoDB); the backend is selected once at startup and callers never
// branch on the medium.
type AccountStore interface {
	// Load returns the account for a username, or ErrAccountNotFound.
	// Implementations never auto-create on read; missing means missing.
	Load(ctx context.Context, username string) (*Account, error)

	// Create inserts a new account. Username uniqueness is enforced by the
	// storage layer itself (unique index, exclusive file create, map insert
	// under lock) so concurrent registrations cannot both succeed.
	// Returns ErrAccountExists on conflict.
	Create(ctx context.Context, account *Account) error

	// Upsert atomically read-modify-writes one account. A missing account
	// materializes as DefaultAccount(username) before the mutator runs, so
	// an upsert never clobbers fields the mutator did not touch and an
	// insert always carries the default credential/profile/ledger.
	Upsert(ctx context.Context, username string, mutate func(*Account)) (*Account, error)

	// Close releases any underlying client or file handles.
	Close() error
}

// Domain-level errors returned by every AccountStore implementation.
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
)
