package portal

import (
	"time"
)

// DateLayout is the calendar-day key used for goals and reminder due dates.
const DateLayout = "2006-01-02"

// DateKey formats t as a calendar-day key in t's location.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ValidDate reports whether s is a well-formed calendar-day key.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

type GoalType string

const (
	GoalSteps      GoalType = "steps"
	GoalActiveTime GoalType = "active_time"
	GoalSleep      GoalType = "sleep"
	GoalWater      GoalType = "water"
)

var validGoalTypes = map[GoalType]bool{
	GoalSteps: true, GoalActiveTime: true, GoalSleep: true, GoalWater: true,
}

func (t GoalType) Valid() bool { return validGoalTypes[t] }

type ReminderType string

const (
	ReminderPreventiveCare ReminderType = "preventive_care"
	ReminderMedication     ReminderType = "medication"
	ReminderAppointment    ReminderType = "appointment"
)

var validReminderTypes = map[ReminderType]bool{
	ReminderPreventiveCare: true, ReminderMedication: true, ReminderAppointment: true,
}

func (t ReminderType) Valid() bool { return validReminderTypes[t] }

type ReminderStatus string

const (
	ReminderUpcoming  ReminderStatus = "upcoming"
	ReminderCompleted ReminderStatus = "completed"
	ReminderMissed    ReminderStatus = "missed"
)

type EmergencyContact struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Relationship string `json:"relationship"`
}

// Profile holds the demographic and care details of an account. Providers
// have one too; only patients carry an assigned provider.
type Profile struct {
	SubjectID          string            `json:"userId"`
	FirstName          string            `json:"firstName"`
	LastName           string            `json:"lastName"`
	DateOfBirth        string            `json:"dateOfBirth,omitempty"`
	Phone              string            `json:"phone,omitempty"`
	Allergies          []string          `json:"allergies"`
	CurrentMedications []string          `json:"currentMedications"`
	EmergencyContact   *EmergencyContact `json:"emergencyContact,omitempty"`
	AssignedProvider   string            `json:"assignedProvider,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

// FullName joins first and last name with a single space.
func (p *Profile) FullName() string {
	return p.FirstName + " " + p.LastName
}

// ProfileUpdate is a partial update. Empty strings and nil slices leave the
// stored value alone; an empty JSON array clears a list.
type ProfileUpdate struct {
	FirstName          string            `json:"firstName"`
	LastName           string            `json:"lastName"`
	DateOfBirth        string            `json:"dateOfBirth"`
	Phone              string            `json:"phone"`
	Allergies          []string          `json:"allergies"`
	CurrentMedications []string          `json:"currentMedications"`
	EmergencyContact   *EmergencyContact `json:"emergencyContact"`
}

// Empty reports whether the update would change nothing.
func (u *ProfileUpdate) Empty() bool {
	return u.FirstName == "" && u.LastName == "" && u.DateOfBirth == "" && u.Phone == "" &&
		u.Allergies == nil && u.CurrentMedications == nil && u.EmergencyContact == nil
}

type Goal struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Date      string    `json:"date"`
	Type      GoalType  `json:"type"`
	Target    float64   `json:"target"`
	Current   float64   `json:"current"`
	Unit      string    `json:"unit"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LogGoalRequest uses pointers for the numbers so a zero is told apart
// from a missing field.
type LogGoalRequest struct {
	Type    string   `json:"type"`
	Target  *float64 `json:"target"`
	Current *float64 `json:"current"`
	Unit    string   `json:"unit"`
	Date    string   `json:"date"`
}

// GoalFilter narrows a goal history query. Dates are inclusive.
type GoalFilter struct {
	StartDate string
	EndDate   string
	Type      GoalType
	Limit     int
	Offset    int
}

type Reminder struct {
	ID          string         `json:"id"`
	UserID      string         `json:"userId"`
	Type        ReminderType   `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	DueDate     string         `json:"dueDate"`
	Status      ReminderStatus `json:"status"`
	CreatedBy   string         `json:"createdBy"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// CreateReminderRequest is what a provider submits for an assigned patient.
type CreateReminderRequest struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate"`
}

type HealthTip struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// Dashboard is the patient landing view. HealthTip is null when no tip is
// active.
type Dashboard struct {
	Goals     []*Goal     `json:"goals"`
	Reminders []*Reminder `json:"reminders"`
	HealthTip *HealthTip  `json:"healthTip"`
}
