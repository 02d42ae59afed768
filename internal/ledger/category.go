package ledger

import (
	"fmt"
	"strings"
)

// Category identifies one of the three double-XP token types.
// The set is closed; new categories are never added at runtime.
type Category string

const (
	Regular    Category = "regular"
	Weapon     Category = "weapon"
	BattlePass Category = "battlepass"
)

// categories holds the canonical iteration order. Reports, persisted
// layouts and API payloads all rely on this order being stable.
var categories = [3]Category{Regular, Weapon, BattlePass}

// Categories returns all token categories in canonical order.
func Categories() []Category {
	return categories[:]
}

// Key returns the stable string key used in persisted documents.
func (c Category) Key() string {
	return string(c)
}

// Label returns the display label (capitalized key).
func (c Category) Label() string {
	if c == "" {
		return ""
	}
	return strings.ToUpper(string(c[:1])) + string(c[1:])
}

// ParseCategory resolves a case-insensitive category key.
func ParseCategory(s string) (Category, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, c := range categories {
		if key == string(c) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown token category %q", s)
}
