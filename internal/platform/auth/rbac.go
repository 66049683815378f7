package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/healthportal/portal/internal/platform/metrics"
)

// RequireRole is the second phase of the access guard. It answers 401 when
// Authenticate never attached an identity and 403 when the identity's role
// is outside the allowed set. It never consults the account store.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	allowed := make(map[Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}
			if !allowed[id.Role] {
				metrics.AuthFailures.WithLabelValues("forbidden").Inc()
				return echo.NewHTTPError(http.StatusForbidden, "Forbidden: Insufficient permissions")
			}
			return next(c)
		}
	}
}

// RequireIdentity returns the identity or the 401 the guard would have
// produced. Handlers use it instead of trusting route wiring.
func RequireIdentity(c echo.Context) (*Identity, error) {
	id, ok := IdentityFromContext(c.Request().Context())
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	return id, nil
}
