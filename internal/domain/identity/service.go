package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/healthportal/portal/internal/platform/auth"
)

// ValidationError carries a client-facing message for a rejected request.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(msg string) error { return &ValidationError{Message: msg} }

// TokenIssuer mints session credentials. *auth.TokenService implements it.
type TokenIssuer interface {
	Issue(subjectID, email string, role auth.Role) (string, error)
}

type Service struct {
	accounts AccountRepository
	creds    CredentialStore
	profiles ProfileSeeder
	tokens   TokenIssuer
	tx       TxRunner
	now      func() time.Time

	// OnDeactivate is called after an account is deactivated, typically
	// to drop it from a credential validity cache.
	OnDeactivate func(subjectID string)
}

func NewService(accounts AccountRepository, creds CredentialStore, profiles ProfileSeeder, tokens TokenIssuer, tx TxRunner) *Service {
	return &Service{
		accounts: accounts,
		creds:    creds,
		profiles: profiles,
		tokens:   tokens,
		tx:       tx,
		now:      time.Now,
	}
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx(ctx, fn)
}

// Register creates a patient account. Providers are never self-registered.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)

	if req.Email == "" || req.Password == "" || req.FirstName == "" || req.LastName == "" {
		return nil, invalid("Missing required fields")
	}
	if !req.Consent {
		return nil, invalid("Consent is required")
	}
	if err := checkPassword(req.Password); err != nil {
		return nil, err
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, invalid("Invalid email address")
	}

	acct, err := s.createAccount(ctx, req.Email, req.Password, auth.RolePatient, req.FirstName, req.LastName)
	if err != nil {
		return nil, err
	}
	return s.respond(acct)
}

// CreateProvider seeds a provider account from the command line.
func (s *Service) CreateProvider(ctx context.Context, email, password, firstName, lastName string) (*Account, error) {
	if email == "" || password == "" || firstName == "" || lastName == "" {
		return nil, invalid("Missing required fields")
	}
	if err := checkPassword(password); err != nil {
		return nil, err
	}
	return s.createAccount(ctx, email, password, auth.RoleProvider, firstName, lastName)
}

func checkPassword(password string) error {
	if len(password) < MinPasswordLength {
		return invalid(fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > MaxPasswordLength {
		return invalid(fmt.Sprintf("Password must be at most %d bytes", MaxPasswordLength))
	}
	return nil
}

func (s *Service) createAccount(ctx context.Context, email, password string, role auth.Role, firstName, lastName string) (*Account, error) {
	acct := &Account{
		ID:       uuid.New().String(),
		Email:    email,
		Role:     role,
		IsActive: true,
	}

	err := s.inTx(ctx, func(ctx context.Context) error {
		if err := s.accounts.Create(ctx, acct); err != nil {
			return err
		}
		if err := s.creds.Set(ctx, acct.ID, email, password); err != nil {
			return err
		}
		return s.profiles.SeedProfile(ctx, acct.ID, firstName, lastName)
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	return acct, nil
}

// Login checks the password, rejects inactive accounts and records the
// login time before issuing a credential.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, invalid("Email and password are required")
	}

	subjectID, err := s.creds.Verify(ctx, strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		return nil, err
	}

	acct, err := s.accounts.GetByID(ctx, subjectID)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !acct.IsActive {
		return nil, ErrAccountInactive
	}

	now := s.now().UTC()
	if err := s.accounts.TouchLastLogin(ctx, acct.ID, now); err != nil {
		return nil, err
	}
	acct.LastLoginAt = &now

	return s.respond(acct)
}

func (s *Service) respond(acct *Account) (*AuthResponse, error) {
	token, err := s.tokens.Issue(acct.ID, acct.Email, acct.Role)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &AuthResponse{Token: token, User: acct.View()}, nil
}

// Verify returns the caller's account as currently stored, so a role
// change shows up here before the credential expires.
func (s *Service) Verify(ctx context.Context, subjectID string) (*UserView, error) {
	acct, err := s.accounts.GetByID(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	view := acct.View()
	return &view, nil
}

// Deactivate blocks future logins and, through OnDeactivate, existing
// credentials once the validity cache notices.
func (s *Service) Deactivate(ctx context.Context, subjectID string) error {
	if err := s.accounts.SetActive(ctx, subjectID, false); err != nil {
		return err
	}
	if s.OnDeactivate != nil {
		s.OnDeactivate(subjectID)
	}
	return nil
}

// Reactivate reverses Deactivate.
func (s *Service) Reactivate(ctx context.Context, subjectID string) error {
	return s.accounts.SetActive(ctx, subjectID, true)
}

// IsActive implements auth.AccountStatusSource. A missing account is
// reported as inactive rather than as an error.
func (s *Service) IsActive(ctx context.Context, subjectID string) (bool, error) {
	acct, err := s.accounts.GetByID(ctx, subjectID)
	if errors.Is(err, ErrAccountNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return acct.IsActive, nil
}

// EmailOf returns the login email of an account.
func (s *Service) EmailOf(ctx context.Context, subjectID string) (string, error) {
	acct, err := s.accounts.GetByID(ctx, subjectID)
	if err != nil {
		return "", err
	}
	return acct.Email, nil
}

// FindByEmail is used by the admin commands.
func (s *Service) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return s.accounts.GetByEmail(ctx, email)
}
