package tokens

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload carried by an access token.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Info is derived from a token and the current time. It is never cached:
// expiry is relative to the moment it was computed.
type Info struct {
	Raw             string
	Claims          Claims
	ExpiresAt       time.Time
	IsExpired       bool
	TimeUntilExpiry time.Duration
}

var parser = jwt.NewParser()

// ParseClaims decodes the claims of a three-segment JWT without verifying
// its signature; verification is the backend's job. A token without an exp
// claim is rejected since its lifetime cannot be managed.
func ParseClaims(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, err
	}
	if claims.ExpiresAt == nil {
		return nil, jwt.ErrTokenRequiredClaimMissing
	}
	return claims, nil
}

// ParseAt computes Info as of now, or returns nil if raw cannot be decoded.
func ParseAt(raw string, now time.Time) *Info {
	claims, err := ParseClaims(raw)
	if err != nil {
		return nil
	}
	expiresAt := claims.ExpiresAt.Time
	return &Info{
		Raw:             raw,
		Claims:          *claims,
		ExpiresAt:       expiresAt,
		IsExpired:       !expiresAt.After(now),
		TimeUntilExpiry: expiresAt.Sub(now),
	}
}
