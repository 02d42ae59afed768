package service

import (
	"errors"

	"github.com/codxp/xptracker/internal/store"
)

// Error taxonomy surfaced to callers (HTTP handlers, console tool).
// Anything not in this set is a storage failure: fatal to the request,
// never retried here, mapped to a generic server error by the caller.
var (
	ErrNotFound     = store.ErrAccountNotFound
	ErrExists       = store.ErrAccountExists
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("invalid input")
)
