package careteam

import (
	"github.com/healthportal/portal/internal/domain/portal"
)

type GoalsStatus struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

type ReminderSummary struct {
	Title   string `json:"title"`
	DueDate string `json:"dueDate"`
}

// PatientSummary is one row of a provider's patient list.
type PatientSummary struct {
	ID               string           `json:"id"`
	Email            string           `json:"email"`
	FirstName        string           `json:"firstName"`
	LastName         string           `json:"lastName"`
	GoalsStatus      GoalsStatus      `json:"goalsStatus"`
	UpcomingReminder *ReminderSummary `json:"upcomingReminder"`
}

// PatientView flattens the profile next to the account identifiers.
type PatientView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	*portal.Profile
}

type PatientDetails struct {
	Patient   PatientView        `json:"patient"`
	Goals     []*portal.Goal     `json:"goals"`
	Reminders []*portal.Reminder `json:"reminders"`
}
