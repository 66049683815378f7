package portal

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/healthportal/portal/internal/platform/auth"
	"github.com/healthportal/portal/internal/platform/hipaa"
	"github.com/healthportal/portal/pkg/pagination"
)

type Handler struct {
	svc   *Service
	audit hipaa.Recorder
}

func NewHandler(svc *Service, audit hipaa.Recorder) *Handler {
	return &Handler{svc: svc, audit: audit}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/patient", auth.RequireRole(auth.RolePatient))
	g.GET("/profile", h.GetProfile)
	g.PUT("/profile", h.UpdateProfile)
	g.GET("/dashboard", h.GetDashboard)
	g.POST("/goals", h.LogGoal)
	g.GET("/goals", h.GetGoals)
	g.PATCH("/reminders/:id", h.CompleteReminder)
}

func (h *Handler) GetProfile(c echo.Context) error {
	id, err := auth.RequireIdentity(c)
	if err != nil {
		return err
	}

	p, err := h.svc.GetProfile(c.Request().Context(), id.SubjectID)
	if errors.Is(err, ErrProfileNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Profile not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch profile").SetInternal(err)
	}

	h.audit.Record(c.Request().Context(),
		hipaa.EntryFromRequest(c, id.SubjectID, hipaa.ActionViewProfile, hipaa.ResourceProfile, id.SubjectID))

	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	id, err := auth.RequireIdentity(c)
	if err != nil {
		return err
	}

	var u ProfileUpdate
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	err = h.svc.UpdateProfile(c.Request().Context(), id.SubjectID, u)
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusBadRequest, verr.Message)
	case errors.Is(err, ErrProfileNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Profile not found")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update profile").SetInternal(err)
	}

	h.audit.Record(c.Request().Context(),
		hipaa.EntryFromRequest(c, id.SubjectID, hipaa.ActionUpdateProfile, hipaa.ResourceProfile, id.SubjectID))

	return c.JSON(http.StatusOK, map[string]string{"message": "Profile updated successfully"})
}

func (h *Handler) GetDashboard(c echo.Context) error {
	id, err := auth.RequireIdentity(c)
	if err != nil {
		return err
	}

	d, err := h.svc.Dashboard(c.Request().Context(), id.SubjectID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch dashboard data").SetInternal(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) LogGoal(c echo.Context) error {
	id, err := auth.RequireIdentity(c)
	if err != nil {
		return err
	}

	var req LogGoalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	g, err := h.svc.LogGoal(c.Request().Context(), id.SubjectID, req)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return echo.NewHTTPError(http.StatusBadRequest, verr.Message)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to log goal").SetInternal(err)
	}

	h.audit.Record(c.Request().Context(),
		hipaa.EntryFromRequest(c, id.SubjectID, hipaa.ActionLogGoal, hipaa.ResourceGoal, g.ID))

	return c.JSON(http.StatusCreated, g)
}

// GetGoals returns a bare array, newest first. limit and offset page
// through history beyond the default window.
func (h *Handler) GetGoals(c echo.Context) error {
	id, err := auth.RequireIdentity(c)
	if err != nil {
		return err
	}

	pg := pagination.FromContextWithDefault(c, DefaultHistoryLimit)
	f := GoalFilter{
		StartDate: c.QueryParam("startDate"),
		EndDate:   c.QueryParam("endDate"),
		Type:      GoalType(c.QueryParam("type")),
		Limit:     pg.Limit,
		Offset:    pg.Offset,
	}

	goals, err := h.svc.GoalHistory(c.Request().Context(), id.SubjectID, f)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return echo.NewHTTPError(http.StatusBadRequest, verr.Message)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch goals").SetInternal(err)
	}
	if goals == nil {
		goals = []*Goal{}
	}
	return c.JSON(http.StatusOK, goals)
}

func (h *Handler) CompleteReminder(c echo.Context) error {
	id, err := auth.RequireIdentity(c)
	if err != nil {
		return err
	}

	rm, err := h.svc.CompleteReminder(c.Request().Context(), id.SubjectID, c.Param("id"))
	if errors.Is(err, ErrReminderNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Reminder not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update reminder").SetInternal(err)
	}

	h.audit.Record(c.Request().Context(),
		hipaa.EntryFromRequest(c, id.SubjectID, hipaa.ActionCompleteReminder, hipaa.ResourceReminder, rm.ID))

	return c.JSON(http.StatusOK, rm)
}
