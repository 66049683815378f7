package portal

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

const (
	dashboardReminderLimit = 5
	healthTipPoolSize      = 10
	DefaultHistoryLimit    = 30
)

// ValidationError carries a client-facing message for a rejected request.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(msg string) error { return &ValidationError{Message: msg} }

type Service struct {
	profiles  ProfileRepository
	goals     GoalRepository
	reminders ReminderRepository
	tips      HealthTipRepository

	now  func() time.Time
	loc  *time.Location
	pick func(n int) int
}

func NewService(profiles ProfileRepository, goals GoalRepository, reminders ReminderRepository, tips HealthTipRepository) *Service {
	return &Service{
		profiles:  profiles,
		goals:     goals,
		reminders: reminders,
		tips:      tips,
		now:       time.Now,
		loc:       time.Local,
		pick:      rand.IntN,
	}
}

// SetLocation changes the time zone that decides which day is "today".
func (s *Service) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

// Today returns the current date key in the service's time zone.
func (s *Service) Today() string {
	return DateKey(s.now().In(s.loc))
}

// -- Profiles --

func (s *Service) GetProfile(ctx context.Context, subjectID string) (*Profile, error) {
	return s.profiles.Get(ctx, subjectID)
}

func (s *Service) UpdateProfile(ctx context.Context, subjectID string, u ProfileUpdate) error {
	if u.DateOfBirth != "" && !ValidDate(u.DateOfBirth) {
		return invalid("Invalid date of birth")
	}
	if u.Empty() {
		// Nothing to change, but the profile must still exist.
		_, err := s.profiles.Get(ctx, subjectID)
		return err
	}
	return s.profiles.Update(ctx, subjectID, u)
}

// SeedProfile creates the empty profile that goes with a new account.
func (s *Service) SeedProfile(ctx context.Context, subjectID, firstName, lastName string) error {
	return s.profiles.Create(ctx, &Profile{
		SubjectID: subjectID,
		FirstName: firstName,
		LastName:  lastName,
	})
}

// AssignProvider links a patient's profile to a provider. An empty
// providerID unassigns.
func (s *Service) AssignProvider(ctx context.Context, patientID, providerID string) error {
	return s.profiles.AssignProvider(ctx, patientID, providerID)
}

// -- Dashboard --

func (s *Service) Dashboard(ctx context.Context, subjectID string) (*Dashboard, error) {
	goals, err := s.goals.ListByDate(ctx, subjectID, s.Today())
	if err != nil {
		return nil, err
	}
	reminders, err := s.reminders.ListUpcoming(ctx, subjectID, dashboardReminderLimit)
	if err != nil {
		return nil, err
	}
	tips, err := s.tips.ListActive(ctx, healthTipPoolSize)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{Goals: goals, Reminders: reminders}
	if d.Goals == nil {
		d.Goals = []*Goal{}
	}
	if d.Reminders == nil {
		d.Reminders = []*Reminder{}
	}
	if len(tips) > 0 {
		d.HealthTip = tips[s.pick(len(tips))]
	}
	return d, nil
}

// -- Goals --

// LogGoal stores one goal entry. Completion is decided here, once.
func (s *Service) LogGoal(ctx context.Context, subjectID string, req LogGoalRequest) (*Goal, error) {
	req.Type = strings.TrimSpace(req.Type)
	req.Unit = strings.TrimSpace(req.Unit)
	if req.Type == "" || req.Target == nil || req.Current == nil || req.Unit == "" {
		return nil, invalid("Missing required fields")
	}
	t := GoalType(req.Type)
	if !t.Valid() {
		return nil, invalid("Invalid goal type")
	}
	date := req.Date
	if date == "" {
		date = s.Today()
	} else if !ValidDate(date) {
		return nil, invalid("Invalid date")
	}

	g := &Goal{
		UserID:    subjectID,
		Date:      date,
		Type:      t,
		Target:    *req.Target,
		Current:   *req.Current,
		Unit:      req.Unit,
		Completed: *req.Current >= *req.Target,
	}
	if err := s.goals.Create(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Service) GoalHistory(ctx context.Context, subjectID string, f GoalFilter) ([]*Goal, error) {
	if f.StartDate != "" && !ValidDate(f.StartDate) {
		return nil, invalid("Invalid startDate")
	}
	if f.EndDate != "" && !ValidDate(f.EndDate) {
		return nil, invalid("Invalid endDate")
	}
	if f.Type != "" && !f.Type.Valid() {
		return nil, invalid("Invalid goal type")
	}
	if f.Limit <= 0 {
		f.Limit = DefaultHistoryLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.goals.History(ctx, subjectID, f)
}

func (s *Service) GoalsToday(ctx context.Context, subjectID string) ([]*Goal, error) {
	return s.goals.ListByDate(ctx, subjectID, s.Today())
}

// GoalsSince returns a subject's goals dated within the last days days,
// today included, newest first.
func (s *Service) GoalsSince(ctx context.Context, subjectID string, days int) ([]*Goal, error) {
	since := DateKey(s.now().In(s.loc).AddDate(0, 0, -days))
	return s.goals.ListSince(ctx, subjectID, since)
}

// -- Reminders --

func (s *Service) CreateReminder(ctx context.Context, subjectID, createdBy string, req CreateReminderRequest) (*Reminder, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Type == "" || req.Title == "" || req.DueDate == "" {
		return nil, invalid("Missing required fields")
	}
	t := ReminderType(req.Type)
	if !t.Valid() {
		return nil, invalid("Invalid reminder type")
	}
	if !ValidDate(req.DueDate) {
		return nil, invalid("Invalid dueDate")
	}

	rm := &Reminder{
		UserID:      subjectID,
		Type:        t,
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		DueDate:     req.DueDate,
		Status:      ReminderUpcoming,
		CreatedBy:   createdBy,
	}
	if err := s.reminders.Create(ctx, rm); err != nil {
		return nil, err
	}
	return rm, nil
}

func (s *Service) CompleteReminder(ctx context.Context, subjectID, reminderID string) (*Reminder, error) {
	return s.reminders.MarkCompleted(ctx, subjectID, reminderID)
}

// NextReminder returns the soonest upcoming reminder, or nil.
func (s *Service) NextReminder(ctx context.Context, subjectID string) (*Reminder, error) {
	rs, err := s.reminders.ListUpcoming(ctx, subjectID, 1)
	if err != nil || len(rs) == 0 {
		return nil, err
	}
	return rs[0], nil
}

func (s *Service) RecentReminders(ctx context.Context, subjectID string, limit int) ([]*Reminder, error) {
	return s.reminders.ListRecent(ctx, subjectID, limit)
}

// SweepMissedReminders marks every upcoming reminder due before today as
// missed and returns how many changed.
func (s *Service) SweepMissedReminders(ctx context.Context) (int64, error) {
	n, err := s.reminders.MarkOverdueMissed(ctx, s.Today())
	if err != nil {
		return 0, fmt.Errorf("sweep missed reminders: %w", err)
	}
	return n, nil
}
