package httpserver

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/authsession/internal/client/api"
	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/dmitrijs2005/authsession/internal/server/users"
)

func toAPIUser(u *users.User) api.User {
	return api.User{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

func toAuthResult(u *users.User, p *users.TokenPair) api.AuthResult {
	return api.AuthResult{
		User:         toAPIUser(u),
		Token:        p.AccessToken,
		RefreshToken: p.RefreshToken,
		ExpiresIn:    int64(p.ExpiresIn.Seconds()),
	}
}

func (s *HTTPServer) login(w http.ResponseWriter, r *http.Request) {
	var in api.Credentials
	if err := decode(w, r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body", nil)
		return
	}

	user, pair, err := s.users.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "invalid credentials", nil)
			return
		}
		s.logger.Error(r.Context(), "login failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}

	s.logger.Info(r.Context(), "Logged in", "user", user.ID)
	respond(w, http.StatusOK, toAuthResult(user, pair))
}

func (s *HTTPServer) register(w http.ResponseWriter, r *http.Request) {
	var in api.RegisterInput
	if err := decode(w, r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body", nil)
		return
	}

	user, pair, err := s.users.Register(r.Context(), in.Email, in.Password, in.Name)
	if err != nil {
		var ve *users.ValidationError
		switch {
		case errors.As(err, &ve):
			respondError(w, http.StatusUnprocessableEntity, "validation failed", ve.Fields)
		case errors.Is(err, common.ErrAlreadyExists):
			respondError(w, http.StatusConflict, "email already registered", nil)
		default:
			s.logger.Error(r.Context(), "registration failed", "error", err)
			respondError(w, http.StatusInternalServerError, "internal error", nil)
		}
		return
	}

	s.logger.Info(r.Context(), "Registered", "user", user.ID)
	respond(w, http.StatusCreated, toAuthResult(user, pair))
}

func (s *HTTPServer) refresh(w http.ResponseWriter, r *http.Request) {
	var in api.RefreshRequest
	if err := decode(w, r, &in); err != nil || in.RefreshToken == "" {
		respondError(w, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}

	user, pair, err := s.users.RefreshToken(r.Context(), in.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrInvalidToken):
			respondError(w, http.StatusUnauthorized, "invalid refresh token", nil)
		case errors.Is(err, common.ErrRefreshTokenExpired):
			respondError(w, http.StatusUnauthorized, "refresh token expired", nil)
		default:
			s.logger.Error(r.Context(), "refresh failed", "error", err)
			respondError(w, http.StatusInternalServerError, "internal error", nil)
		}
		return
	}

	respond(w, http.StatusOK, toAuthResult(user, pair))
}

func (s *HTTPServer) logout(w http.ResponseWriter, r *http.Request) {
	var in api.RefreshRequest
	// an empty body is a valid logout
	_ = decode(w, r, &in)

	if err := s.users.Logout(r.Context(), in.RefreshToken); err != nil {
		s.logger.Error(r.Context(), "logout failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}
	respond(w, http.StatusOK, struct{}{})
}

func (s *HTTPServer) me(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	respond(w, http.StatusOK, toAPIUser(user))
}
