// Package users implements the backend's account and token operations:
// registration, login, refresh-token rotation and logout.
package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/dmitrijs2005/authsession/internal/server/auth"
	"github.com/dmitrijs2005/authsession/internal/server/config"
	"github.com/dmitrijs2005/authsession/internal/server/refreshtokens"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// ValidationError lists field problems of a registration.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("validation failed: %v", e.Fields) }

func (e *ValidationError) Unwrap() error { return common.ErrValidation }

type Service struct {
	repo                         Repository
	refreshTokenRepo             refreshtokens.Repository
	reuse                        *refreshtokens.ReuseCache
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration

	// rotateMu serializes rotations so that concurrent presenters of one
	// refresh token observe a single exchange.
	rotateMu sync.Mutex
}

func NewService(repo Repository, refreshTokenRepo refreshtokens.Repository, cfg *config.Config) *Service {
	return &Service{
		repo:                         repo,
		refreshTokenRepo:             refreshTokenRepo,
		reuse:                        refreshtokens.NewReuseCache(cfg.ReuseGrace),
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
	}
}

// Register creates an account and signs it in.
func (s *Service) Register(ctx context.Context, email, password, name string) (*User, *TokenPair, error) {
	fields := map[string][]string{}
	if _, err := mail.ParseAddress(email); err != nil {
		fields["email"] = append(fields["email"], "must be a valid email address")
	}
	if len(password) < minPasswordLength {
		fields["password"] = append(fields["password"], fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	if len(fields) > 0 {
		return nil, nil, &ValidationError{Fields: fields}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("error hashing password: %w", err)
	}

	user, err := s.repo.Create(ctx, &User{Email: email, Name: name, Role: "user", PasswordHash: hash})
	if err != nil {
		return nil, nil, fmt.Errorf("error creating user: %w", err)
	}

	pair, err := s.generateTokenPair(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Login checks the password and issues a fresh pair. Unknown users and wrong
// passwords are indistinguishable.
func (s *Service) Login(ctx context.Context, email, password string) (*User, *TokenPair, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil, common.ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, nil, common.ErrInvalidCredentials
	}

	pair, err := s.generateTokenPair(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// RefreshToken rotates refreshToken: it is deleted and a new pair is issued.
// Presenting an already rotated token within the reuse grace period returns
// the pair it was rotated into.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*User, *TokenPair, error) {
	s.rotateMu.Lock()
	defer s.rotateMu.Unlock()

	if e := s.reuse.Get(refreshToken); e != nil {
		user, err := s.repo.GetByID(ctx, e.UserID)
		if err != nil {
			return nil, nil, fmt.Errorf("error loading user: %w", err)
		}
		return user, &TokenPair{AccessToken: e.AccessToken, RefreshToken: e.RefreshToken, ExpiresIn: s.accessTokenValidityDuration}, nil
	}

	token, err := s.refreshTokenRepo.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil, common.ErrInvalidToken
		}
		return nil, nil, fmt.Errorf("error searching refresh token: %w", err)
	}
	if token.Expires.Before(time.Now()) {
		_ = s.refreshTokenRepo.Delete(ctx, refreshToken)
		return nil, nil, common.ErrRefreshTokenExpired
	}

	user, err := s.repo.GetByID(ctx, token.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("error loading user: %w", err)
	}

	if err := s.refreshTokenRepo.Delete(ctx, refreshToken); err != nil {
		return nil, nil, fmt.Errorf("error deleting refresh token: %w", err)
	}
	pair, err := s.generateTokenPair(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	s.reuse.Store(refreshToken, refreshtokens.Exchange{
		UserID:       user.ID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
	return user, pair, nil
}

// Logout revokes refreshToken. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	s.reuse.Forget(refreshToken)
	if err := s.refreshTokenRepo.Delete(ctx, refreshToken); err != nil && !errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("error deleting refresh token: %w", err)
	}
	return nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// Authenticate resolves a bearer access token to its user.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*User, error) {
	id, err := auth.ParseToken(accessToken, s.jwtSecret)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.GetByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) generateAccessToken(user *User) (string, error) {
	return auth.GenerateToken(auth.Identity{UserID: user.ID, Email: user.Email, Role: user.Role}, s.jwtSecret, s.accessTokenValidityDuration)
}

func (s *Service) generateRefreshToken() (string, error) {
	return common.MakeRandHexString(32)
}

func (s *Service) generateTokenPair(ctx context.Context, user *User) (*TokenPair, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("error generating access token: %w", err)
	}

	refreshToken, err := s.generateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("error generating refresh token: %w", err)
	}

	if err := s.refreshTokenRepo.Create(ctx, user.ID, refreshToken, s.refreshTokenValidityDuration); err != nil {
		return nil, fmt.Errorf("error saving refresh token: %w", err)
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken, ExpiresIn: s.accessTokenValidityDuration}, nil
}
