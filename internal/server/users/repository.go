package users

import (
	"context"
)

// Repository stores accounts. Emails are unique case-insensitively; Create
// reports a taken email with common.ErrAlreadyExists and lookups report a
// missing account with common.ErrNotFound.
type Repository interface {
	Create(ctx context.Context, user *User) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
}
