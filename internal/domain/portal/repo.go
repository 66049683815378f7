package portal

import (
	"context"
	"errors"
)

var (
	ErrProfileNotFound  = errors.New("profile not found")
	ErrReminderNotFound = errors.New("reminder not found")
)

type ProfileRepository interface {
	Get(ctx context.Context, subjectID string) (*Profile, error)
	Create(ctx context.Context, p *Profile) error
	Update(ctx context.Context, subjectID string, u ProfileUpdate) error
	// ListByProvider returns the profiles whose assigned provider is
	// providerID, ordered by last then first name.
	ListByProvider(ctx context.Context, providerID string) ([]*Profile, error)
	AssignProvider(ctx context.Context, patientID, providerID string) error
}

type GoalRepository interface {
	Create(ctx context.Context, g *Goal) error
	ListByDate(ctx context.Context, subjectID, date string) ([]*Goal, error)
	// ListSince returns goals dated on or after since, newest first.
	ListSince(ctx context.Context, subjectID, since string) ([]*Goal, error)
	History(ctx context.Context, subjectID string, f GoalFilter) ([]*Goal, error)
}

type ReminderRepository interface {
	Create(ctx context.Context, r *Reminder) error
	// ListUpcoming returns upcoming reminders, soonest due first.
	ListUpcoming(ctx context.Context, subjectID string, limit int) ([]*Reminder, error)
	// ListRecent returns reminders of any status, latest due date first.
	ListRecent(ctx context.Context, subjectID string, limit int) ([]*Reminder, error)
	CountByStatus(ctx context.Context, subjectID string, status ReminderStatus) (int, error)
	// MarkCompleted completes a reminder owned by subjectID. Reminders of
	// other subjects are reported as ErrReminderNotFound.
	MarkCompleted(ctx context.Context, subjectID, reminderID string) (*Reminder, error)
	// MarkOverdueMissed moves upcoming reminders due before today to missed.
	MarkOverdueMissed(ctx context.Context, today string) (int64, error)
}

type HealthTipRepository interface {
	ListActive(ctx context.Context, limit int) ([]*HealthTip, error)
}
