package identity

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/healthportal/portal/internal/platform/auth"
	"github.com/healthportal/portal/internal/platform/hipaa"
)

type Handler struct {
	svc   *Service
	audit hipaa.Recorder
}

// NewHandler builds the auth endpoints. Causes of 500 responses are logged
// by the central error handler.
func NewHandler(svc *Service, audit hipaa.Recorder) *Handler {
	return &Handler{svc: svc, audit: audit}
}

// RegisterRoutes mounts /auth under api. register and login are public
// through the guard's skipper; verify and logout need a credential.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/auth")
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.GET("/verify", h.Verify)
	g.POST("/logout", h.Logout)
}

func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	resp, err := h.svc.Register(c.Request().Context(), req)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			return echo.NewHTTPError(http.StatusBadRequest, verr.Message)
		case errors.Is(err, ErrEmailTaken):
			return echo.NewHTTPError(http.StatusBadRequest, "Email already in use")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "Registration failed").SetInternal(err)
		}
	}

	h.audit.Record(c.Request().Context(),
		hipaa.EntryFromRequest(c, resp.User.UID, hipaa.ActionRegister, hipaa.ResourceAuth, ""))

	return c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	resp, err := h.svc.Login(c.Request().Context(), req)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			return echo.NewHTTPError(http.StatusBadRequest, verr.Message)
		case errors.Is(err, ErrInvalidCredentials):
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
		case errors.Is(err, ErrAccountInactive):
			return echo.NewHTTPError(http.StatusForbidden, "Account is inactive")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "Login failed").SetInternal(err)
		}
	}

	h.audit.Record(c.Request().Context(),
		hipaa.EntryFromRequest(c, resp.User.UID, hipaa.ActionLogin, hipaa.ResourceAuth, ""))

	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Verify(c echo.Context) error {
	id, err := auth.RequireIdentity(c)
	if err != nil {
		return err
	}

	user, err := h.svc.Verify(c.Request().Context(), id.SubjectID)
	if errors.Is(err, ErrAccountNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Verification failed").SetInternal(err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"user": user})
}

// Logout is advisory: credentials are stateless, so the client discards
// its token and the server only records the event.
func (h *Handler) Logout(c echo.Context) error {
	id, err := auth.RequireIdentity(c)
	if err != nil {
		return err
	}

	h.audit.Record(c.Request().Context(),
		hipaa.EntryFromRequest(c, id.SubjectID, hipaa.ActionLogout, hipaa.ResourceAuth, ""))

	return c.JSON(http.StatusOK, map[string]string{"message": "Logged out successfully"})
}
