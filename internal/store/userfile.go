package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/codxp/xptracker/internal/ledger"
)

// UserFileStore keeps one JSON document per username under
// <dataDir>/users/<username>.json. Unlike the legacy flat file it never
// auto-creates on read: accounts exist only after Create or Upsert.
type UserFileStore struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-username write serialization
}

// userDocument is the persisted JSON layout. Field names are part of the
// on-disk contract shared with the original tooling.
type userDocument struct {
	PasswordHash string           `json:"password_hash"`
	Tokens       map[string][]int `json:"tokens"`
	CodUsername  string           `json:"cod_username"`
	Prestige     string           `json:"prestige"`
	Level        int              `json:"level"`
}

// NewUserFileStore returns a store rooted at dataDir. The users directory
// is created lazily on first write.
func NewUserFileStore(dataDir string) *UserFileStore {
	return &UserFileStore{
		dir:   filepath.Join(dataDir, "users"),
		locks: make(map[string]*sync.Mutex),
	}
}

func (u *UserFileStore) path(username string) string {
	return filepath.Join(u.dir, normalizeUsername(username)+".json")
}

// lock returns the mutex serializing writes for one username.
func (u *UserFileStore) lock(username string) *sync.Mutex {
	key := normalizeUsername(username)
	u.mu.Lock()
	defer u.mu.Unlock()
	l, ok := u.locks[key]
	if !ok {
		l = &sync.Mutex{}
		u.locks[key] = l
	}
	return l
}

// Load implements AccountStore.
func (u *UserFileStore) Load(_ context.Context, username string) (*Account, error) {
	raw, err := os.ReadFile(u.path(username))
	if os.IsNotExist(err) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read user file: %w", err)
	}
	return decodeUserDocument(username, raw), nil
}

// Create implements AccountStore. O_EXCL makes the file create itself the
// uniqueness constraint; two concurrent registrations race on the kernel,
// not on a check-then-write.
func (u *UserFileStore) Create(_ context.Context, account *Account) error {
	if err := os.MkdirAll(u.dir, 0o755); err != nil {
		return fmt.Errorf("create users dir: %w", err)
	}
	lock := u.lock(account.Username)
	lock.Lock()
	defer lock.Unlock()

	file, err := os.OpenFile(u.path(account.Username), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if os.IsExist(err) {
		return ErrAccountExists
	}
	if err != nil {
		return fmt.Errorf("create user file: %w", err)
	}
	defer file.Close()

	cp := account.clone()
	cp.normalize()
	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(encodeUserDocument(cp)); err != nil {
		return fmt.Errorf("write user file: %w", err)
	}
	return nil
}

// Upsert implements AccountStore.
func (u *UserFileStore) Upsert(_ context.Context, username string, mutate func(*Account)) (*Account, error) {
	if err := os.MkdirAll(u.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create users dir: %w", err)
	}
	lock := u.lock(username)
	lock.Lock()
	defer lock.Unlock()

	acc := DefaultAccount(username)
	raw, err := os.ReadFile(u.path(username))
	if err == nil {
		acc = decodeUserDocument(username, raw)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read user file: %w", err)
	}

	mutate(acc)
	acc.normalize()

	if err := u.writeDocument(username, acc); err != nil {
		return nil, err
	}
	return acc.clone(), nil
}

// Close implements AccountStore.
func (u *UserFileStore) Close() error { return nil }

// writeDocument persists atomically via temp file + rename.
func (u *UserFileStore) writeDocument(username string, acc *Account) error {
	payload, err := json.MarshalIndent(encodeUserDocument(acc), "", "  ")
	if err != nil {
		return fmt.Errorf("encode user file: %w", err)
	}
	tmp, err := os.CreateTemp(u.dir, ".user-*")
	if err != nil {
		return fmt.Errorf("write user file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(payload, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write user file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write user file: %w", err)
	}
	if err := os.Rename(tmpName, u.path(username)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write user file: %w", err)
	}
	return nil
}

// decodeUserDocument tolerates missing or short fields: absent buckets
// read back as zeros, a corrupt level clamps into range. A file that is
// not valid JSON at all degrades to the default document — lenient by
// the same policy as numeric parsing.
func decodeUserDocument(username string, raw []byte) *Account {
	var doc userDocument
	_ = json.Unmarshal(raw, &doc)

	acc := &Account{
		Username:     username,
		PasswordHash: doc.PasswordHash,
		Tokens:       ledger.FromSlices(doc.Tokens),
		Profile: Profile{
			CodUsername: doc.CodUsername,
			Prestige:    doc.Prestige,
			Level:       ClampLevel(doc.Level),
		},
	}
	return acc
}

func encodeUserDocument(acc *Account) userDocument {
	return userDocument{
		PasswordHash: acc.PasswordHash,
		Tokens:       acc.Tokens.ToSlices(),
		CodUsername:  acc.Profile.CodUsername,
		Prestige:     acc.Profile.Prestige,
		Level:        acc.Profile.Level,
	}
}
