package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codxp/xptracker/internal/auth"
	"github.com/codxp/xptracker/internal/ledger"
	"github.com/codxp/xptracker/internal/store"
)

func newService(t *testing.T) *AccountService {
	t.Helper()
	tokens, err := auth.NewTokenService("")
	require.NoError(t, err)
	return NewAccountService(store.NewMemoryStore(), tokens)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "alice", "hunter2"))

	// Duplicate registration fails with ErrExists.
	assert.ErrorIs(t, svc.Register(ctx, "alice", "other"), ErrExists)

	token, err := svc.Login(ctx, "alice", "hunter2")
	require.NoError(t, err)
	username, ok := svc.VerifyToken(token)
	assert.True(t, ok)
	assert.Equal(t, "alice", username)

	_, err = svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.Login(ctx, "nobody", "hunter2")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRegisterValidation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Register(ctx, "", "pw"), ErrValidation)
	assert.ErrorIs(t, svc.Register(ctx, "   ", "pw"), ErrValidation)
	assert.ErrorIs(t, svc.Register(ctx, "bob", ""), ErrValidation)
}

func TestValidateCredentialsNeverErrors(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	// Nonexistent user: false, not an error.
	assert.False(t, svc.ValidateCredentials(ctx, "ghost", "pw"))

	require.NoError(t, svc.Register(ctx, "carol", "secret"))
	assert.True(t, svc.ValidateCredentials(ctx, "carol", "secret"))
	assert.False(t, svc.ValidateCredentials(ctx, "carol", "wrong"))
}

func TestValidateCredentialsEmptyHash(t *testing.T) {
	tokens, err := auth.NewTokenService("")
	require.NoError(t, err)
	s := store.NewMemoryStore()
	svc := NewAccountService(s, tokens)
	ctx := context.Background()

	// Credential-less account (e.g. upsert-materialized) never validates.
	_, err = s.Upsert(ctx, "nopass", func(a *store.Account) {})
	require.NoError(t, err)
	assert.False(t, svc.ValidateCredentials(ctx, "nopass", ""))
	assert.False(t, svc.ValidateCredentials(ctx, "nopass", "anything"))
}

func TestChangePassword(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.ChangePassword(ctx, "ghost", "a", "b"), ErrNotFound)

	require.NoError(t, svc.Register(ctx, "dave", "oldpw"))
	assert.ErrorIs(t, svc.ChangePassword(ctx, "dave", "wrong", "newpw"), ErrUnauthorized)
	require.NoError(t, svc.ChangePassword(ctx, "dave", "oldpw", "newpw"))

	assert.False(t, svc.ValidateCredentials(ctx, "dave", "oldpw"))
	assert.True(t, svc.ValidateCredentials(ctx, "dave", "newpw"))
}

func TestChangePasswordPreservesLedger(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "erin", "pw"))
	l := ledger.NewLedger()
	l[ledger.Weapon] = ledger.Bucket{0, 3, 0, 0}
	require.NoError(t, svc.WriteLedger(ctx, "erin", l))

	require.NoError(t, svc.ChangePassword(ctx, "erin", "pw", "pw2"))

	got, err := svc.ReadLedger(ctx, "erin")
	require.NoError(t, err)
	assert.Equal(t, ledger.Bucket{0, 3, 0, 0}, got[ledger.Weapon])
}

func TestWriteThenReadLedgerRoundTrip(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.Register(ctx, "frank", "pw"))

	l := ledger.NewLedger()
	l[ledger.Regular] = ledger.Bucket{1, 2, 3, 4}
	l[ledger.BattlePass] = ledger.Bucket{0, 0, 0, 9}
	require.NoError(t, svc.WriteLedger(ctx, "frank", l))

	got, err := svc.ReadLedger(ctx, "frank")
	require.NoError(t, err)
	assert.Equal(t, l, got)

	// Writing preserves the credential.
	assert.True(t, svc.ValidateCredentials(ctx, "frank", "pw"))
}

func TestReadLedgerMissingUserIsZeroed(t *testing.T) {
	svc := newService(t)

	got, err := svc.ReadLedger(context.Background(), "never-created")
	require.NoError(t, err)
	assert.Equal(t, ledger.NewLedger(), got)

	// And the read did not materialize an account.
	_, err = svc.GetProfile(context.Background(), "never-created")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEditSlot(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.Register(ctx, "gina", "pw"))

	require.NoError(t, svc.EditSlot(ctx, "gina", ledger.Regular, 2, 7))
	got, err := svc.ReadLedger(ctx, "gina")
	require.NoError(t, err)
	assert.Equal(t, ledger.Bucket{0, 0, 7, 0}, got[ledger.Regular])

	// Negative value clamps to zero, never stores a negative.
	require.NoError(t, svc.EditSlot(ctx, "gina", ledger.Regular, 2, -5))
	got, err = svc.ReadLedger(ctx, "gina")
	require.NoError(t, err)
	assert.Equal(t, ledger.Bucket{}, got[ledger.Regular])

	// Out-of-range slot index is a validation error.
	assert.ErrorIs(t, svc.EditSlot(ctx, "gina", ledger.Regular, 4, 1), ErrValidation)
	assert.ErrorIs(t, svc.EditSlot(ctx, "gina", ledger.Regular, -1, 1), ErrValidation)
}

func TestProfileRoundTrip(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.Register(ctx, "hank", "pw"))

	p, err := svc.GetProfile(ctx, "hank")
	require.NoError(t, err)
	assert.Equal(t, store.Profile{Level: store.MinLevel}, p)

	require.NoError(t, svc.UpdateProfile(ctx, "hank", "HankTV", "Prestige 2", 4200))
	p, err = svc.GetProfile(ctx, "hank")
	require.NoError(t, err)
	assert.Equal(t, "HankTV", p.CodUsername)
	assert.Equal(t, "Prestige 2", p.Prestige)
	assert.Equal(t, store.MaxLevel, p.Level)

	// Profile update did not clobber the credential.
	assert.True(t, svc.ValidateCredentials(ctx, "hank", "pw"))
}

func TestTotalsReportDelegation(t *testing.T) {
	svc := newService(t)

	l := ledger.NewLedger()
	l[ledger.Regular] = ledger.Bucket{1, 0, 0, 0}
	r := svc.Totals(l)
	assert.Equal(t, 15, r.PerCategory[ledger.Regular].Minutes)
	assert.Equal(t, 0.25, r.PerCategory[ledger.Regular].Hours)
	assert.Equal(t, 15, r.Grand.Minutes)

	text := svc.TotalsReport(l)
	assert.Contains(t, text, "Regular: 15 minutes (0.25 hours)")
	assert.Contains(t, text, "Grand Total: 15 minutes (0.25 hours)")
}
