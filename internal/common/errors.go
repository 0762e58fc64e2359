package common

import "errors"

var (
	// Storage-level errors.
	ErrNotFound = errors.New("not found")

	// Token lifecycle errors.
	ErrMalformedToken = errors.New("malformed token")
	ErrNoRefreshToken = errors.New("no refresh token")

	// Session errors.
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrAuthenticationExpired  = errors.New("authentication expired")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrRefreshAlreadyInFlight = errors.New("refresh already in flight")

	// Transport errors: ErrNetwork is retried, ErrValidation never is.
	ErrNetwork    = errors.New("network error")
	ErrValidation = errors.New("validation error")

	// Backend errors.
	ErrAlreadyExists       = errors.New("already exists")
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)
