package auth

import (
	"strings"
	"testing"
	"time"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "hunter2" {
		t.Fatal("hash equals plaintext")
	}
	if !CheckPassword(hash, "hunter2") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "hunter3") {
		t.Error("wrong password accepted")
	}
	if CheckPassword("", "hunter2") {
		t.Error("empty hash accepted a password")
	}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	ts, err := NewTokenService("")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	token, err := ts.Issue("alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("not a JWT: %s", token)
	}

	username, ok := ts.Verify(token)
	if !ok {
		t.Fatal("fresh token did not verify")
	}
	if username != "alice" {
		t.Errorf("subject = %q, want alice", username)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	ts, err := NewTokenService("")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	for _, bad := range []string{
		"",
		"not-a-token",
		"a.b.c",
		"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid.signature",
	} {
		if username, ok := ts.Verify(bad); ok || username != "" {
			t.Errorf("garbage token %q verified as %q", bad, username)
		}
	}
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	issuerSvc, err := NewTokenService("")
	if err != nil {
		t.Fatal(err)
	}
	verifierSvc, err := NewTokenService("")
	if err != nil {
		t.Fatal(err)
	}

	token, err := issuerSvc.Issue("alice")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := verifierSvc.Verify(token); ok {
		t.Error("token signed with a different key verified")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	ts, err := NewTokenService("")
	if err != nil {
		t.Fatal(err)
	}
	ts.ttl = -time.Minute // token is born expired

	token, err := ts.Issue("alice")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ts.Verify(token); ok {
		t.Error("expired token verified")
	}
}

func TestSharedSecretVerifiesAcrossInstances(t *testing.T) {
	secret, err := GenerateSecret()
	if err != nil {
		t.Fatal(err)
	}

	a, err := NewTokenService(secret)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewTokenService(secret)
	if err != nil {
		t.Fatal(err)
	}

	token, err := a.Issue("bob")
	if err != nil {
		t.Fatal(err)
	}
	username, ok := b.Verify(token)
	if !ok || username != "bob" {
		t.Errorf("shared-secret verification failed: %q %v", username, ok)
	}
}

func TestNewTokenServiceRejectsBadSecrets(t *testing.T) {
	for _, bad := range []string{
		"too-short",
		"invalid-base64-@#$%",
		"c2hvcnQ=", // decodes to fewer than 32 bytes
	} {
		if _, err := NewTokenService(bad); err == nil {
			t.Errorf("secret %q was accepted", bad)
		}
	}
}
