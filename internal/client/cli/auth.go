package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/authsession/internal/client/api"
	"github.com/dmitrijs2005/authsession/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func (a *App) isLoggedIn() bool {
	return a.session.Session().IsAuthenticated
}

func (a *App) getStatus() string {
	s := a.session.Session()
	if !s.IsAuthenticated || s.User == nil {
		return "(anonymous)"
	}
	return fmt.Sprintf("(%s)", s.User.Email)
}

// Register prompts for email, name and password and creates an account,
// which also signs the user in. The password is wiped before returning.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return err
	}
	name, err := getSimpleText(a.reader, "Name", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.reader, a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if _, err := a.session.Register(ctx, api.RegisterInput{Email: email, Password: string(password), Name: name}); err != nil {
		return registerError(err)
	}
	return nil
}

func registerError(err error) error {
	if errors.Is(err, common.ErrValidation) {
		return fmt.Errorf("registration rejected: %w", err)
	}
	return err
}

// Login prompts for credentials and signs in. Wrong credentials are
// reported without a stack of wrapped causes.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.reader, a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if _, err := a.session.Login(ctx, api.Credentials{Email: email, Password: string(password)}); err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			return common.ErrInvalidCredentials
		}
		return err
	}
	return nil
}

// Logout always ends the local session; backend failures are only logged.
func (a *App) Logout(ctx context.Context) error {
	return a.session.Logout(ctx)
}
