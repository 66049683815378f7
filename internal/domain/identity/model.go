package identity

import (
	"time"

	"github.com/healthportal/portal/internal/platform/auth"
)

// Account is the portal's record of a principal. Credentials live in a
// separate store; the account only carries role and status.
type Account struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Role        auth.Role  `json:"role"`
	IsActive    bool       `json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// UserView is the account summary returned to clients.
type UserView struct {
	UID   string    `json:"uid"`
	Email string    `json:"email"`
	Role  auth.Role `json:"role"`
}

func (a *Account) View() UserView {
	return UserView{UID: a.ID, Email: a.Email, Role: a.Role}
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token string   `json:"token"`
	User  UserView `json:"user"`
}

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Consent   bool   `json:"consent"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Password length bounds for registration and provider creation. bcrypt
// rejects anything longer than MaxPasswordLength bytes.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)
