package careteam

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/healthportal/portal/internal/domain/portal"
	"github.com/healthportal/portal/internal/platform/auth"
	"github.com/healthportal/portal/internal/platform/hipaa"
)

type Handler struct {
	svc   *Service
	audit hipaa.Recorder
}

func NewHandler(svc *Service, audit hipaa.Recorder) *Handler {
	return &Handler{svc: svc, audit: audit}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/provider", auth.RequireRole(auth.RoleProvider))
	g.GET("/patients", h.ListPatients)
	g.GET("/patients/:id", h.GetPatientDetails)
	g.POST("/patients/:id/reminders", h.CreateReminder)
	g.GET("/compliance", h.GetCompliance)
}

func (h *Handler) ListPatients(c echo.Context) error {
	id, err := auth.RequireIdentity(c)
	if err != nil {
		return err
	}

	patients, err := h.svc.ListPatients(c.Request().Context(), id.SubjectID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch patients").SetInternal(err)
	}
	return c.JSON(http.StatusOK, patients)
}

func patientError(err error, fallback string) error {
	switch {
	case errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
	case errors.Is(err, ErrNotAssigned):
		return echo.NewHTTPError(http.StatusForbidden, "Access denied")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, fallback).SetInternal(err)
	}
}

func (h *Handler) GetPatientDetails(c echo.Context) error {
	id, err := auth.RequireIdentity(c)
	if err != nil {
		return err
	}

	patientID := c.Param("id")
	d, err := h.svc.PatientDetails(c.Request().Context(), id.SubjectID, patientID)
	if err != nil {
		return patientError(err, "Failed to fetch patient details")
	}

	h.audit.Record(c.Request().Context(),
		hipaa.EntryFromRequest(c, id.SubjectID, hipaa.ActionViewPatientDetails, hipaa.ResourcePatient, patientID))

	return c.JSON(http.StatusOK, d)
}

func (h *Handler) CreateReminder(c echo.Context) error {
	id, err := auth.RequireIdentity(c)
	if err != nil {
		return err
	}

	var req portal.CreateReminderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	rm, err := h.svc.CreateReminder(c.Request().Context(), id.SubjectID, c.Param("id"), req)
	if err != nil {
		var verr *portal.ValidationError
		if errors.As(err, &verr) {
			return echo.NewHTTPError(http.StatusBadRequest, verr.Message)
		}
		return patientError(err, "Failed to create reminder")
	}

	h.audit.Record(c.Request().Context(),
		hipaa.EntryFromRequest(c, id.SubjectID, hipaa.ActionCreateReminder, hipaa.ResourceReminder, rm.ID))

	return c.JSON(http.StatusCreated, rm)
}

// GetCompliance returns {compliance: [...]} and, when some patients could
// not be evaluated, a failures list naming them.
func (h *Handler) GetCompliance(c echo.Context) error {
	id, err := auth.RequireIdentity(c)
	if err != nil {
		return err
	}

	res, err := h.svc.Compliance(c.Request().Context(), id.SubjectID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch compliance data").SetInternal(err)
	}

	h.audit.Record(c.Request().Context(),
		hipaa.EntryFromRequest(c, id.SubjectID, hipaa.ActionViewCompliance, hipaa.ResourceCompliance, ""))

	return c.JSON(http.StatusOK, res)
}
