// Package tokentest mints unverified-but-well-formed access tokens for tests.
package tokentest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var key = []byte("tokentest-signing-key")

type claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Mint returns an HS256 token for subject expiring at exp.
func Mint(t testing.TB, subject string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: subject + "@example.com",
		Role:  "user",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(exp.Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	s, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return s
}

// MintNoExp returns a well-formed token that lacks the exp claim.
func MintNoExp(t testing.TB, subject string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
	})
	s, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return s
}
