// Package common contains shared constants and sentinel errors used across
// the authsession components.
package common

import "time"

// AuthorizationHeaderName is the HTTP header used to carry the access token
// on outbound requests, as "Bearer <token>".
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the raw access token in AuthorizationHeaderName.
const BearerPrefix = "Bearer "

// DefaultRefreshThreshold is how long before expiry a proactive refresh starts.
const DefaultRefreshThreshold = 5 * time.Minute

// Backend endpoints of the auth REST contract.
const (
	LoginPath    = "/auth/login"
	RegisterPath = "/auth/register"
	RefreshPath  = "/auth/refresh"
	LogoutPath   = "/auth/logout"
	MePath       = "/auth/me"
)
