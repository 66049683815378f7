// Package compliance reduces a provider's assigned patients' goal and
// reminder records into a per-patient compliance summary.
//
// The provider's profile list is the only way patient IDs enter an
// aggregation. Every query below it is keyed by an ID from that list, so a
// patient assigned to another provider can never be reached.
package compliance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/healthportal/portal/internal/domain/portal"
	"github.com/healthportal/portal/internal/platform/metrics"
)

type Status string

const (
	StatusCompliant      Status = "compliant"
	StatusNeedsAttention Status = "needs_attention"
)

// Record is one patient's line in a compliance summary.
type Record struct {
	PatientID        string `json:"patientId"`
	PatientName      string `json:"patientName"`
	GoalsCompleted   int    `json:"goalsCompleted"`
	GoalsTotal       int    `json:"goalsTotal"`
	MissedReminders  int    `json:"missedReminders"`
	ComplianceStatus Status `json:"complianceStatus"`
}

// Failure names a patient whose records could not be read.
type Failure struct {
	PatientID   string `json:"patientId"`
	PatientName string `json:"patientName"`
	// Reason is "timeout" or "unavailable"; the cause stays in Err.
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

func reasonOf(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "unavailable"
}

// Result holds the records of every patient that could be evaluated, in
// profile order, and the failures when partial results are enabled.
type Result struct {
	Date     string    `json:"date"`
	Records  []Record  `json:"compliance"`
	Failures []Failure `json:"failures,omitempty"`
}

// PatientError is returned when a patient's queries fail and partial
// results are disabled.
type PatientError struct {
	PatientID string
	Err       error
}

func (e *PatientError) Error() string {
	return fmt.Sprintf("patient %s: %v", e.PatientID, e.Err)
}

func (e *PatientError) Unwrap() error { return e.Err }

// Classify applies the compliance rule: compliant only when at least one
// goal was logged today and all of them are completed.
func Classify(completed, total int) Status {
	if total > 0 && completed == total {
		return StatusCompliant
	}
	return StatusNeedsAttention
}

type PatientLister interface {
	ListByProvider(ctx context.Context, providerID string) ([]*portal.Profile, error)
}

type GoalSource interface {
	ListByDate(ctx context.Context, subjectID, date string) ([]*portal.Goal, error)
}

type ReminderCounter interface {
	CountByStatus(ctx context.Context, subjectID string, status portal.ReminderStatus) (int, error)
}

// Options tunes the fan-out.
type Options struct {
	// MaxConcurrency caps how many patients are evaluated at once. Zero
	// means no cap.
	MaxConcurrency int
	// PartialResults reports failed patients in Result.Failures instead of
	// aborting the whole aggregation.
	PartialResults bool
	// PatientTimeout bounds one patient's query pair. Zero means no bound
	// beyond the caller's context.
	PatientTimeout time.Duration
	Clock          func() time.Time
	Location       *time.Location
}

// DefaultOptions returns a bounded pool with partial results enabled.
func DefaultOptions() Options {
	return Options{
		MaxConcurrency: 8,
		PartialResults: true,
		PatientTimeout: 10 * time.Second,
	}
}

type Aggregator struct {
	profiles  PatientLister
	goals     GoalSource
	reminders ReminderCounter
	opts      Options
}

func NewAggregator(profiles PatientLister, goals GoalSource, reminders ReminderCounter, opts Options) *Aggregator {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.MaxConcurrency < 0 {
		opts.MaxConcurrency = 0
	}
	return &Aggregator{profiles: profiles, goals: goals, reminders: reminders, opts: opts}
}

// Aggregate builds the compliance summary for providerID. A failure to
// list the provider's patients always fails the call.
func (a *Aggregator) Aggregate(ctx context.Context, providerID string) (*Result, error) {
	start := time.Now()
	defer func() {
		metrics.ComplianceDuration.Observe(time.Since(start).Seconds())
	}()

	patients, err := a.profiles.ListByProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("list assigned patients: %w", err)
	}

	today := portal.DateKey(a.opts.Clock().In(a.opts.Location))
	records := make([]Record, len(patients))
	errs := make([]error, len(patients))

	g, gctx := errgroup.WithContext(ctx)
	if a.opts.MaxConcurrency > 0 {
		g.SetLimit(a.opts.MaxConcurrency)
	}
	for i, p := range patients {
		g.Go(func() error {
			rec, err := a.evaluate(gctx, p, today)
			if err != nil {
				metrics.CompliancePatients.WithLabelValues("failed").Inc()
				errs[i] = err
				if !a.opts.PartialResults {
					return &PatientError{PatientID: p.SubjectID, Err: err}
				}
				return nil
			}
			metrics.CompliancePatients.WithLabelValues("ok").Inc()
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Date: today, Records: make([]Record, 0, len(patients))}
	for i, p := range patients {
		if errs[i] != nil {
			res.Failures = append(res.Failures, Failure{
				PatientID:   p.SubjectID,
				PatientName: p.FullName(),
				Reason:      reasonOf(errs[i]),
				Err:         errs[i],
			})
			continue
		}
		res.Records = append(res.Records, records[i])
	}
	return res, nil
}

// evaluate runs one patient's goal and reminder queries together.
func (a *Aggregator) evaluate(ctx context.Context, p *portal.Profile, today string) (Record, error) {
	if a.opts.PatientTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.PatientTimeout)
		defer cancel()
	}

	var (
		goals  []*portal.Goal
		missed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		goals, err = a.goals.ListByDate(gctx, p.SubjectID, today)
		if err != nil {
			return fmt.Errorf("goals: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		missed, err = a.reminders.CountByStatus(gctx, p.SubjectID, portal.ReminderMissed)
		if err != nil {
			return fmt.Errorf("missed reminders: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
			return Record{}, fmt.Errorf("timed out after %s: %w", a.opts.PatientTimeout, err)
		}
		return Record{}, err
	}

	completed := 0
	for _, gl := range goals {
		if gl.Completed {
			completed++
		}
	}
	return Record{
		PatientID:        p.SubjectID,
		PatientName:      p.FullName(),
		GoalsCompleted:   completed,
		GoalsTotal:       len(goals),
		MissedReminders:  missed,
		ComplianceStatus: Classify(completed, len(goals)),
	}, nil
}
