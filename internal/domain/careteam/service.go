package careteam

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/healthportal/portal/internal/domain/compliance"
	"github.com/healthportal/portal/internal/domain/portal"
)

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrNotAssigned     = errors.New("patient not assigned to provider")
)

const (
	detailGoalDays      = 7
	detailReminderLimit = 10
)

// PatientRecords is the slice of the patient portal a provider may read
// and write. *portal.Service implements it.
type PatientRecords interface {
	GetProfile(ctx context.Context, subjectID string) (*portal.Profile, error)
	GoalsToday(ctx context.Context, subjectID string) ([]*portal.Goal, error)
	GoalsSince(ctx context.Context, subjectID string, days int) ([]*portal.Goal, error)
	NextReminder(ctx context.Context, subjectID string) (*portal.Reminder, error)
	RecentReminders(ctx context.Context, subjectID string, limit int) ([]*portal.Reminder, error)
	CreateReminder(ctx context.Context, subjectID, createdBy string, req portal.CreateReminderRequest) (*portal.Reminder, error)
}

// AccountDirectory resolves login emails. *identity.Service implements it.
type AccountDirectory interface {
	EmailOf(ctx context.Context, subjectID string) (string, error)
}

type ComplianceSource interface {
	Aggregate(ctx context.Context, providerID string) (*compliance.Result, error)
}

type Service struct {
	patients       compliance.PatientLister
	records        PatientRecords
	accounts       AccountDirectory
	compliance     ComplianceSource
	maxConcurrency int
}

// NewService wires the provider views. maxConcurrency bounds the patient
// list fan-out the same way it bounds compliance aggregation; zero means
// no bound.
func NewService(patients compliance.PatientLister, records PatientRecords, accounts AccountDirectory, agg ComplianceSource, maxConcurrency int) *Service {
	return &Service{
		patients:       patients,
		records:        records,
		accounts:       accounts,
		compliance:     agg,
		maxConcurrency: maxConcurrency,
	}
}

// ListPatients summarises every patient assigned to providerID, in
// profile order.
func (s *Service) ListPatients(ctx context.Context, providerID string) ([]PatientSummary, error) {
	profiles, err := s.patients.ListByProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("list assigned patients: %w", err)
	}

	out := make([]PatientSummary, len(profiles))
	g, gctx := errgroup.WithContext(ctx)
	if s.maxConcurrency > 0 {
		g.SetLimit(s.maxConcurrency)
	}
	for i, p := range profiles {
		g.Go(func() error {
			sum, err := s.summarise(gctx, p)
			if err != nil {
				return fmt.Errorf("patient %s: %w", p.SubjectID, err)
			}
			out[i] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) summarise(ctx context.Context, p *portal.Profile) (PatientSummary, error) {
	email, err := s.accounts.EmailOf(ctx, p.SubjectID)
	if err != nil {
		return PatientSummary{}, err
	}
	goals, err := s.records.GoalsToday(ctx, p.SubjectID)
	if err != nil {
		return PatientSummary{}, err
	}
	next, err := s.records.NextReminder(ctx, p.SubjectID)
	if err != nil {
		return PatientSummary{}, err
	}

	sum := PatientSummary{
		ID:          p.SubjectID,
		Email:       email,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		GoalsStatus: goalsStatus(goals),
	}
	if next != nil {
		sum.UpcomingReminder = &ReminderSummary{Title: next.Title, DueDate: next.DueDate}
	}
	return sum, nil
}

func goalsStatus(goals []*portal.Goal) GoalsStatus {
	st := GoalsStatus{Total: len(goals)}
	for _, g := range goals {
		if g.Completed {
			st.Completed++
		}
	}
	if st.Total > 0 {
		st.Percentage = int(math.Round(float64(st.Completed) / float64(st.Total) * 100))
	}
	return st
}

// assigned loads a patient's profile and checks it belongs to providerID.
func (s *Service) assigned(ctx context.Context, providerID, patientID string) (*portal.Profile, error) {
	if _, err := uuid.Parse(patientID); err != nil {
		return nil, ErrPatientNotFound
	}
	p, err := s.records.GetProfile(ctx, patientID)
	if errors.Is(err, portal.ErrProfileNotFound) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.AssignedProvider == "" || p.AssignedProvider != providerID {
		return nil, ErrNotAssigned
	}
	return p, nil
}

// PatientDetails returns a patient's profile, the last week of goals and
// the latest reminders.
func (s *Service) PatientDetails(ctx context.Context, providerID, patientID string) (*PatientDetails, error) {
	p, err := s.assigned(ctx, providerID, patientID)
	if err != nil {
		return nil, err
	}

	d := &PatientDetails{Patient: PatientView{ID: p.SubjectID, Profile: p}}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		d.Patient.Email, err = s.accounts.EmailOf(gctx, p.SubjectID)
		return err
	})
	g.Go(func() error {
		var err error
		d.Goals, err = s.records.GoalsSince(gctx, p.SubjectID, detailGoalDays)
		return err
	})
	g.Go(func() error {
		var err error
		d.Reminders, err = s.records.RecentReminders(gctx, p.SubjectID, detailReminderLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if d.Goals == nil {
		d.Goals = []*portal.Goal{}
	}
	if d.Reminders == nil {
		d.Reminders = []*portal.Reminder{}
	}
	return d, nil
}

// CreateReminder adds a reminder to an assigned patient's list.
func (s *Service) CreateReminder(ctx context.Context, providerID, patientID string, req portal.CreateReminderRequest) (*portal.Reminder, error) {
	if _, err := s.assigned(ctx, providerID, patientID); err != nil {
		return nil, err
	}
	return s.records.CreateReminder(ctx, patientID, providerID, req)
}

func (s *Service) Compliance(ctx context.Context, providerID string) (*compliance.Result, error) {
	return s.compliance.Aggregate(ctx, providerID)
}
