package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSentinels_AreDistinct(t *testing.T) {
	all := []error{
		ErrNotFound, ErrMalformedToken, ErrNoRefreshToken, ErrInvalidCredentials,
		ErrAuthenticationExpired, ErrUnauthorized, ErrRefreshAlreadyInFlight,
		ErrNetwork, ErrValidation, ErrAlreadyExists, ErrInvalidToken,
		ErrTokenExpired, ErrRefreshTokenExpired,
	}
	for i := range all {
		for j := range all {
			if i == j {
				continue
			}
			require.False(t, errors.Is(all[i], all[j]), "%v matches %v", all[i], all[j])
		}
	}
}

func TestSentinels_SurviveWrapping(t *testing.T) {
	err := fmt.Errorf("refresh: %w", ErrAuthenticationExpired)
	require.ErrorIs(t, err, ErrAuthenticationExpired)
	require.NotErrorIs(t, err, ErrNetwork)
}
