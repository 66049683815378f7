package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/healthportal/portal/internal/platform/auth"
	"github.com/healthportal/portal/internal/platform/db"
)

const uniqueViolation = "23505"

// -- Account Repository --

type accountRepoPG struct {
	pool db.Querier
}

func NewAccountRepo(pool db.Querier) AccountRepository {
	return &accountRepoPG{pool: pool}
}

func (r *accountRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const accountCols = `id, email, role, is_active, created_at, last_login_at`

func (r *accountRepoPG) Create(ctx context.Context, a *Account) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO accounts (id, email, role, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		a.ID, a.Email, string(a.Role), a.IsActive,
	).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *accountRepoPG) GetByID(ctx context.Context, id string) (*Account, error) {
	return r.scanOne(ctx, `SELECT `+accountCols+` FROM accounts WHERE id = $1`, id)
}

func (r *accountRepoPG) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return r.scanOne(ctx, `SELECT `+accountCols+` FROM accounts WHERE LOWER(email) = LOWER($1)`, email)
}

func (r *accountRepoPG) scanOne(ctx context.Context, query string, arg string) (*Account, error) {
	var (
		a    Account
		role string
	)
	err := r.conn(ctx).QueryRow(ctx, query, arg).Scan(&a.ID, &a.Email, &role, &a.IsActive, &a.CreatedAt, &a.LastLoginAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select account: %w", err)
	}
	a.Role, err = auth.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", a.ID, err)
	}
	return &a, nil
}

func (r *accountRepoPG) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, `UPDATE accounts SET last_login_at = $2 WHERE id = $1`, id, at)
}

func (r *accountRepoPG) SetActive(ctx context.Context, id string, active bool) error {
	return r.exec(ctx, `UPDATE accounts SET is_active = $2 WHERE id = $1`, id, active)
}

func (r *accountRepoPG) exec(ctx context.Context, query string, args ...interface{}) error {
	tag, err := r.conn(ctx).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// -- Credential Store --

type credentialStorePG struct {
	pool      db.Querier
	cost      int
	dummyHash []byte
}

// NewCredentialStore returns a bcrypt-backed store with the given cost.
func NewCredentialStore(pool db.Querier, cost int) (CredentialStore, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cost)
	}
	// Unknown emails are compared against this hash so both failure paths
	// cost the same.
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}
	return &credentialStorePG{pool: pool, cost: cost, dummyHash: dummy}, nil
}

func (s *credentialStorePG) Set(ctx context.Context, subjectID, email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	_, err = db.Conn(ctx, s.pool).Exec(ctx, `
		INSERT INTO credentials (subject_id, email, password_hash)
		VALUES ($1, $2, $3)
		ON CONFLICT (subject_id) DO UPDATE SET password_hash = EXCLUDED.password_hash, updated_at = NOW()`,
		subjectID, strings.ToLower(email), string(hash),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrEmailTaken
		}
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}

func (s *credentialStorePG) Verify(ctx context.Context, email, password string) (string, error) {
	var subjectID, hash string
	err := db.Conn(ctx, s.pool).QueryRow(ctx,
		`SELECT subject_id, password_hash FROM credentials WHERE LOWER(email) = LOWER($1)`, email,
	).Scan(&subjectID, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("select credential: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return subjectID, nil
}
