package identity

import (
	"context"
	"errors"
	"time"
)

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrEmailTaken         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is inactive")
)

type AccountRepository interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	SetActive(ctx context.Context, id string, active bool) error
}

// CredentialStore owns password verification. Verify returns
// ErrInvalidCredentials for an unknown email and a wrong password alike.
type CredentialStore interface {
	Set(ctx context.Context, subjectID, email, password string) error
	Verify(ctx context.Context, email, password string) (subjectID string, err error)
}

// ProfileSeeder creates the empty profile every new account gets.
type ProfileSeeder interface {
	SeedProfile(ctx context.Context, subjectID, firstName, lastName string) error
}

// ProfileSeederFunc adapts a function to ProfileSeeder.
type ProfileSeederFunc func(ctx context.Context, subjectID, firstName, lastName string) error

func (f ProfileSeederFunc) SeedProfile(ctx context.Context, subjectID, firstName, lastName string) error {
	return f(ctx, subjectID, firstName, lastName)
}

// TxRunner runs fn atomically. A nil TxRunner runs fn directly.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error
