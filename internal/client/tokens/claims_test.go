package tokens

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/authsession/internal/client/tokens/tokentest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAt_DecodesClaimsAndExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	raw := tokentest.Mint(t, "u1", now.Add(10*time.Minute))

	info := ParseAt(raw, now)
	require.NotNil(t, info)

	assert.Equal(t, raw, info.Raw)
	assert.Equal(t, "u1", info.Claims.Subject)
	assert.Equal(t, "u1@example.com", info.Claims.Email)
	assert.Equal(t, "user", info.Claims.Role)
	assert.Equal(t, now.Add(10*time.Minute).Unix(), info.ExpiresAt.Unix())
	assert.False(t, info.IsExpired)
	assert.Equal(t, 10*time.Minute, info.TimeUntilExpiry)
}

func TestParseAt_ExpiryBoundaryIsExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	raw := tokentest.Mint(t, "u1", now)

	info := ParseAt(raw, now)
	require.NotNil(t, info)
	assert.True(t, info.IsExpired, "exp == now counts as expired")
	assert.Equal(t, time.Duration(0), info.TimeUntilExpiry)
}

func TestParseAt_UndecodableReturnsNil(t *testing.T) {
	now := time.Now()
	for name, raw := range map[string]string{
		"empty":          "",
		"one segment":    "abc",
		"two segments":   "abc.def",
		"bad base64":     "a.b.c",
		"json not jwt":   "eyJhbGciOiJIUzI1NiJ9.bm90LWpzb24.c2ln",
		"missing expiry": tokentest.MintNoExp(t, "u1"),
	} {
		t.Run(name, func(t *testing.T) {
			assert.Nil(t, ParseAt(raw, now))
		})
	}
}

func TestParseAt_IsPureForSameInstant(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	raw := tokentest.Mint(t, "u1", now.Add(time.Minute))

	assert.Equal(t, ParseAt(raw, now), ParseAt(raw, now))
}

func TestParseClaims_DoesNotVerifySignature(t *testing.T) {
	raw := tokentest.Mint(t, "u1", time.Now().Add(time.Hour))
	tampered := raw[:len(raw)-2] + "xx"

	c, err := ParseClaims(tampered)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.Subject)
}
