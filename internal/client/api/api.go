// Package api holds the JSON shapes of the backend auth REST contract.
//
//	POST /auth/login    {email,password}      -> AuthResult
//	POST /auth/register {email,password,name} -> AuthResult
//	POST /auth/refresh  {refreshToken}        -> AuthResult (refreshToken optional)
//	POST /auth/logout
//	GET  /auth/me                             -> User
//
// Every response body is wrapped in Envelope.
package api

import (
	"encoding/json"
	"time"
)

type Envelope struct {
	Data      json.RawMessage     `json:"data,omitempty"`
	Success   bool                `json:"success"`
	Message   string              `json:"message,omitempty"`
	Errors    map[string][]string `json:"errors,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type AuthResult struct {
	User         User   `json:"user"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int64  `json:"expiresIn,omitempty"`
}
