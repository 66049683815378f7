package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists routes that bypass authentication: infrastructure
// endpoints, public content and the credential-issuing endpoints.
var publicPaths = map[string]bool{
	"/health":                 true,
	"/health/db":              true,
	"/metrics":                true,
	"/api/public/health-info": true,
	"/api/auth/register":      true,
	"/api/auth/login":         true,
}

// AuthSkipper returns true for requests whose route should skip
// authentication. It matches on the registered route path, so unknown
// URLs still go through the guard.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether the given route path is public.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
