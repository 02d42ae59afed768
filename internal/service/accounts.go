package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/codxp/xptracker/internal/auth"
	"github.com/codxp/xptracker/internal/ledger"
	"github.com/codxp/xptracker/internal/store"
)

// AccountService is the facade orchestrating credentials, session tokens
// and the token ledger over one AccountStore. HTTP handlers and the
// console tool go through here; neither touches the store directly.
type AccountService struct {
	store  store.AccountStore
	tokens *auth.TokenService
}

// NewAccountService wires the facade. Both collaborators are constructed
// once at startup and passed in; there is no ambient global state.
func NewAccountService(s store.AccountStore, tokens *auth.TokenService) *AccountService {
	return &AccountService{store: s, tokens: tokens}
}

// Register creates an account with a hashed credential, a zeroed ledger
// and the default profile. Returns ErrExists for a taken username; the
// uniqueness check lives in the storage layer, so concurrent duplicate
// registrations resolve to exactly one winner.
func (as *AccountService) Register(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return fmt.Errorf("%w: username and password are required", ErrValidation)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	acc := store.DefaultAccount(username)
	acc.PasswordHash = hash
	return as.store.Create(ctx, acc)
}

// ValidateCredentials reports whether the password matches the stored
// credential. It returns false — never an error — for a missing account,
// an account without a credential, or a hash mismatch, so callers cannot
// distinguish "no such user" from "wrong password".
func (as *AccountService) ValidateCredentials(ctx context.Context, username, password string) bool {
	acc, err := as.store.Load(ctx, strings.TrimSpace(username))
	if err != nil || acc.PasswordHash == "" {
		return false
	}
	return auth.CheckPassword(acc.PasswordHash, password)
}

// Login validates the credential and issues a session token. The error is
// a uniform ErrUnauthorized for any credential failure.
func (as *AccountService) Login(ctx context.Context, username, password string) (string, error) {
	if !as.ValidateCredentials(ctx, username, password) {
		return "", ErrUnauthorized
	}
	return as.tokens.Issue(strings.TrimSpace(username))
}

// IssueToken signs a session token without credential validation, for
// flows that already authenticated (registration response).
func (as *AccountService) IssueToken(username string) (string, error) {
	return as.tokens.Issue(strings.TrimSpace(username))
}

// VerifyToken resolves a bearer token to its username.
func (as *AccountService) VerifyToken(token string) (string, bool) {
	return as.tokens.Verify(token)
}

// ChangePassword replaces the credential after validating the old one.
// Returns ErrNotFound if the account is missing, ErrUnauthorized if the
// old password does not match.
func (as *AccountService) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: new password is required", ErrValidation)
	}
	acc, err := as.store.Load(ctx, strings.TrimSpace(username))
	if err != nil {
		return err
	}
	if acc.PasswordHash == "" || !auth.CheckPassword(acc.PasswordHash, oldPassword) {
		return ErrUnauthorized
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = as.store.Upsert(ctx, username, func(a *store.Account) {
		a.PasswordHash = hash
	})
	return err
}

// ReadLedger returns a structurally complete ledger for the username.
// A missing account yields a zeroed ledger, not an error, and is NOT
// materialized in the store.
func (as *AccountService) ReadLedger(ctx context.Context, username string) (ledger.Ledger, error) {
	acc, err := as.store.Load(ctx, username)
	if err == store.ErrAccountNotFound {
		return ledger.NewLedger(), nil
	}
	if err != nil {
		return nil, err
	}
	return acc.Tokens, nil
}

// WriteLedger replaces the whole three-category map, clamping counts to
// >= 0. Credential and profile fields are untouched.
func (as *AccountService) WriteLedger(ctx context.Context, username string, l ledger.Ledger) error {
	normalized := l.Normalize()
	_, err := as.store.Upsert(ctx, username, func(a *store.Account) {
		a.Tokens = normalized
	})
	return err
}

// EditSlot read-modify-writes a single bucket position. Negative input
// clamps to 0 rather than erroring; an out-of-range slot index is the one
// genuinely invalid shape and yields ErrValidation.
func (as *AccountService) EditSlot(ctx context.Context, username string, cat ledger.Category, slot, value int) error {
	if slot < 0 || slot >= ledger.NumSlots {
		return fmt.Errorf("%w: slot index %d out of range", ErrValidation, slot)
	}
	if value < 0 {
		value = 0
	}
	_, err := as.store.Upsert(ctx, username, func(a *store.Account) {
		b := a.Tokens[cat]
		b[slot] = value
		a.Tokens[cat] = b
	})
	return err
}

// Totals derives the per-category and grand totals for a ledger snapshot.
func (as *AccountService) Totals(l ledger.Ledger) ledger.Report {
	return ledger.ComputeReport(l)
}

// TotalsReport renders the deterministic text report for a ledger snapshot.
func (as *AccountService) TotalsReport(l ledger.Ledger) string {
	return ledger.BuildTotalsReport(l)
}

// GetProfile returns the account profile, level clamped on read.
func (as *AccountService) GetProfile(ctx context.Context, username string) (store.Profile, error) {
	acc, err := as.store.Load(ctx, username)
	if err != nil {
		return store.Profile{}, err
	}
	return acc.Profile, nil
}

// UpdateProfile replaces the profile fields, clamping the level. The
// credential and ledger are untouched.
func (as *AccountService) UpdateProfile(ctx context.Context, username, codUsername, prestige string, level int) error {
	_, err := as.store.Upsert(ctx, username, func(a *store.Account) {
		a.Profile = store.Profile{
			CodUsername: codUsername,
			Prestige:    prestige,
			Level:       store.ClampLevel(level),
		}
	})
	return err
}
