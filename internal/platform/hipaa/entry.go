package hipaa

import (
	"time"

	"github.com/labstack/echo/v4"
)

// Audit actions recorded by the portal.
const (
	ActionRegister           = "register"
	ActionLogin              = "login"
	ActionLogout             = "logout"
	ActionViewProfile        = "view_profile"
	ActionUpdateProfile      = "update_profile"
	ActionLogGoal            = "log_goal"
	ActionCompleteReminder   = "complete_reminder"
	ActionViewPatientDetails = "view_patient_details"
	ActionViewCompliance     = "view_compliance"
	ActionCreateReminder     = "create_reminder"
)

// Audited resource kinds.
const (
	ResourceAuth       = "auth"
	ResourceProfile    = "profile"
	ResourceGoal       = "goal"
	ResourceReminder   = "reminder"
	ResourcePatient    = "patient"
	ResourceCompliance = "compliance"
)

// Entry is one row of the append-only activity trail.
type Entry struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resourceId,omitempty"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
	RequestID  string    `json:"requestId,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// EntryFromRequest fills the network fields of an entry from the request.
func EntryFromRequest(c echo.Context, userID, action, resource, resourceID string) Entry {
	rid, _ := c.Get("request_id").(string)
	return Entry{
		UserID:     userID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		IPAddress:  c.RealIP(),
		UserAgent:  c.Request().UserAgent(),
		RequestID:  rid,
	}
}

// Filter selects entries for listing. Zero fields match everything.
type Filter struct {
	UserID   string
	Action   string
	Resource string
	Since    time.Time
	Until    time.Time
	Limit    int
}

func (f *Filter) applyDefaults() {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	if f.Limit > 1000 {
		f.Limit = 1000
	}
}

func (f Filter) matches(e *Entry) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Resource != "" && e.Resource != f.Resource {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	return true
}
