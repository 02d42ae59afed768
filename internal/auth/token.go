package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is the absolute lifetime of a session token. There is no
// refresh or rotation; an expired token requires a fresh login.
const TokenTTL = 1 * time.Hour

const issuer = "xptracker"

// TokenService signs and verifies stateless session tokens. The HMAC key
// is held by the service instance, constructed once at startup — tokens
// issued by one process verify only where the same key material is loaded.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// claims carries the session payload: subject = username plus the
// registered expiry/issue timestamps.
type claims struct {
	jwt.RegisteredClaims
}

// NewTokenService builds a service from a base64-encoded secret. An empty
// secret generates a random 32-byte key, which limits token validity to
// this process lifetime; pass a shared secret to verify across instances.
func NewTokenService(base64Secret string) (*TokenService, error) {
	if base64Secret == "" {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
		return &TokenService{secret: secret, ttl: TokenTTL}, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(base64Secret)
	if err != nil {
		return nil, err
	}
	if len(decoded) < 32 {
		return nil, errors.New("token secret must be at least 32 bytes")
	}
	return &TokenService{secret: decoded, ttl: TokenTTL}, nil
}

// GenerateSecret returns a fresh base64-encoded 32-byte secret, suitable
// for the config file of a multi-instance deployment.
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Issue creates a signed session token for the username, valid for TokenTTL.
func (ts *TokenService) Issue(username string) (string, error) {
	now := time.Now()
	c := &claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(ts.secret)
}

// Verify checks signature and expiry and returns the subject username.
// Any failure — malformed token, wrong signature, expired, empty subject —
// uniformly yields ok=false; callers treat that as "unauthenticated".
func (ts *TokenService) Verify(tokenString string) (username string, ok bool) {
	c := &claims{}
	token, err := jwt.ParseWithClaims(tokenString, c, func(token *jwt.Token) (interface{}, error) {
		if _, isHMAC := token.Method.(*jwt.SigningMethodHMAC); !isHMAC {
			return nil, errors.New("unexpected signing method")
		}
		return ts.secret, nil
	})
	if err != nil || !token.Valid || c.Subject == "" {
		return "", false
	}
	return c.Subject, true
}
