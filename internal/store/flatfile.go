package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/codxp/xptracker/internal/ledger"
	"github.com/codxp/xptracker/internal/logging"
)

// SentinelUsername is the only account the legacy flat-file medium knows.
const SentinelUsername = "default"

// FlatFileStore is the legacy medium: one fixed-path text file of exactly
// 12 newline-delimited integers (4 per category, categories in canonical
// order), holding the ledger of the single credential-less "default"
// account. A missing file is lazily created zero-filled on first read —
// for this medium the file IS the account, so there is no registration
// flow to provision it. Malformed lines parse as 0.
type FlatFileStore struct {
	mu   sync.Mutex // flat-file RMW is not atomic, serialize it
	path string
}

// NewFlatFileStore returns a store backed by the given tokens file.
func NewFlatFileStore(path string) *FlatFileStore {
	return &FlatFileStore{path: path}
}

// Load implements AccountStore. Only SentinelUsername resolves; any other
// name is ErrAccountNotFound.
func (f *FlatFileStore) Load(_ context.Context, username string) (*Account, error) {
	if normalizeUsername(username) != SentinelUsername {
		return nil, ErrAccountNotFound
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	l, err := f.readLedger()
	if err != nil {
		return nil, err
	}
	acc := DefaultAccount(SentinelUsername)
	acc.Tokens = l
	return acc, nil
}

// Create implements AccountStore. The sentinel account always exists and
// nothing else can be registered on this medium.
func (f *FlatFileStore) Create(_ context.Context, account *Account) error {
	if normalizeUsername(account.Username) == SentinelUsername {
		return ErrAccountExists
	}
	return fmt.Errorf("flat-file backend: cannot create %q, only the %q account is supported",
		account.Username, SentinelUsername)
}

// Upsert implements AccountStore. Only the ledger persists on this medium;
// credential and profile mutations are accepted but not durable.
func (f *FlatFileStore) Upsert(_ context.Context, username string, mutate func(*Account)) (*Account, error) {
	if normalizeUsername(username) != SentinelUsername {
		return nil, fmt.Errorf("flat-file backend: cannot upsert %q, only the %q account is supported",
			username, SentinelUsername)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	l, err := f.readLedger()
	if err != nil {
		return nil, err
	}
	acc := DefaultAccount(SentinelUsername)
	acc.Tokens = l
	mutate(acc)
	acc.normalize()
	if def := DefaultAccount(SentinelUsername); acc.PasswordHash != def.PasswordHash || acc.Profile != def.Profile {
		logging.Warn("flat-file backend: only tokens persist, credential/profile changes for %q are dropped",
			SentinelUsername)
	}
	if err := f.writeLedger(acc.Tokens); err != nil {
		return nil, err
	}
	return acc, nil
}

// Close implements AccountStore.
func (f *FlatFileStore) Close() error { return nil }

// readLedger parses the 12-line layout, creating a zero-filled file if it
// does not exist yet. A short file still yields a complete ledger: the
// lines that are present fill the leading slots, the rest stay 0.
func (f *FlatFileStore) readLedger() (ledger.Ledger, error) {
	raw, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		l := ledger.NewLedger()
		if err := f.writeLedger(l); err != nil {
			return nil, err
		}
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tokens file: %w", err)
	}

	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	values := make([]int, 0, len(lines))
	for _, line := range lines {
		values = append(values, ledger.ParseCount(line))
	}
	for len(values) < ledger.NumSlots*3 {
		values = append(values, 0)
	}

	l := ledger.NewLedger()
	for i, c := range ledger.Categories() {
		l[c] = ledger.NormalizeBucket(values[i*ledger.NumSlots : (i+1)*ledger.NumSlots])
	}
	return l, nil
}

// writeLedger serializes the full 12-line layout, write-temp-then-rename
// so a crash mid-write never leaves a truncated file behind.
func (f *FlatFileStore) writeLedger(l ledger.Ledger) error {
	var sb strings.Builder
	for _, c := range ledger.Categories() {
		b := l[c]
		for i := 0; i < ledger.NumSlots; i++ {
			sb.WriteString(strconv.Itoa(b[i]))
			sb.WriteByte('\n')
		}
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".tokens-*")
	if err != nil {
		return fmt.Errorf("write tokens file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(sb.String()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write tokens file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write tokens file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write tokens file: %w", err)
	}
	return nil
}
