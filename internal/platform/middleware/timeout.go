package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout puts a deadline on the request context. Repository calls
// honor it through pgx; a handler that fails because the deadline passed
// is answered with 503 instead of a generic 500. A zero timeout disables
// the middleware.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if timeout <= 0 {
			return next
		}
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Response().Committed {
				var he *echo.HTTPError
				if !errors.As(err, &he) || he.Code >= 500 {
					return echo.NewHTTPError(http.StatusServiceUnavailable, "Request timed out").SetInternal(err)
				}
			}
			return err
		}
	}
}
