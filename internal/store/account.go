package store

import "github.com/codxp/xptracker/internal/ledger"

// Profile carries the player-facing account fields shown next to the
// token inventory. Level is always kept inside [MinLevel, MaxLevel].
type Profile struct {
	CodUsername string `json:"cod_username" bson:"cod_username"`
	Prestige    string `json:"prestige" bson:"prestige"`
	Level       int    `json:"level" bson:"level"`
}

const (
	MinLevel = 1
	MaxLevel = 1000
)

// ClampLevel forces a level into the valid range. Out-of-range and corrupt
// stored values read back as the nearest bound (or MinLevel for zero).
func ClampLevel(level int) int {
	if level < MinLevel {
		return MinLevel
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}

// Account is one user record: unique username, bcrypt password hash
// (empty for credential-less accounts such as the legacy sentinel),
// the token ledger and the profile.
type Account struct {
	Username     string
	PasswordHash string
	Tokens       ledger.Ledger
	Profile      Profile
}

// DefaultAccount returns the default-on-insert document for a username:
// no credential, zeroed ledger, empty profile at level 1.
func DefaultAccount(username string) *Account {
	return &Account{
		Username: username,
		Tokens:   ledger.NewLedger(),
		Profile:  Profile{Level: MinLevel},
	}
}

// normalize repairs an account loaded from any medium: structurally
// complete ledger and clamped level. Lenient by design, never fails.
func (a *Account) normalize() {
	if a.Tokens == nil {
		a.Tokens = ledger.NewLedger()
	} else {
		a.Tokens = a.Tokens.Normalize()
	}
	a.Profile.Level = ClampLevel(a.Profile.Level)
}

// clone returns an independent copy so callers can't mutate stored state.
func (a *Account) clone() *Account {
	cp := *a
	cp.Tokens = a.Tokens.Clone()
	return &cp
}
