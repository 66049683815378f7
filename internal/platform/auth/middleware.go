package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthportal/portal/internal/platform/metrics"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated principal attached to a request context.
type Identity struct {
	SubjectID string
	Email     string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Verifier verifies a raw bearer credential.
type Verifier interface {
	Verify(token string) (*Identity, error)
}

// StatusChecker reports whether a subject may still use issued credentials.
type StatusChecker interface {
	Active(ctx context.Context, subjectID string) (bool, error)
}

// GuardConfig configures the authentication phase of the access guard.
type GuardConfig struct {
	Verifier Verifier
	// Validity is optional. When nil, credentials are trusted until expiry.
	Validity StatusChecker
	// Skipper lets public routes through without a credential.
	Skipper func(c echo.Context) bool
	Logger  zerolog.Logger
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the authenticated identity, if any.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}

// SubjectFromContext returns the authenticated subject ID or "".
func SubjectFromContext(ctx context.Context) string {
	if id, ok := IdentityFromContext(ctx); ok {
		return id.SubjectID
	}
	return ""
}

// Authenticate is the first phase of the access guard. Every failure ends
// the request with 401 before the handler runs; the message differs by
// cause but the status does not.
func Authenticate(cfg GuardConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}

			tokenStr, err := bearerToken(c.Request())
			if err != nil {
				return unauthorized(err)
			}

			id, err := cfg.Verifier.Verify(tokenStr)
			if err != nil {
				return unauthorized(err)
			}

			ctx := c.Request().Context()
			if cfg.Validity != nil {
				active, err := cfg.Validity.Active(ctx, id.SubjectID)
				if err != nil {
					cfg.Logger.Error().Err(err).
						Str("subject_id", id.SubjectID).
						Msg("credential validity lookup failed")
					return echo.NewHTTPError(http.StatusInternalServerError, "Authentication failed")
				}
				if !active {
					metrics.AuthFailures.WithLabelValues("inactive").Inc()
					return echo.NewHTTPError(http.StatusUnauthorized, "Account is inactive")
				}
			}

			c.SetRequest(c.Request().WithContext(WithIdentity(ctx, id)))
			return next(c)
		}
	}
}

// bearerToken extracts the credential from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrNoCredential
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", ErrMalformed
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrNoCredential
	}
	return token, nil
}

func unauthorized(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ErrNoCredential):
		metrics.AuthFailures.WithLabelValues("no_credential").Inc()
		return echo.NewHTTPError(http.StatusUnauthorized, "No token provided")
	case errors.Is(err, ErrExpired):
		metrics.AuthFailures.WithLabelValues("expired").Inc()
		return echo.NewHTTPError(http.StatusUnauthorized, "Token expired")
	default:
		metrics.AuthFailures.WithLabelValues("invalid").Inc()
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	}
}
