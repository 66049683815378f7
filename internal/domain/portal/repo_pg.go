package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/healthportal/portal/internal/platform/db"
)

// -- Profile Repository --

type profileRepoPG struct{ pool db.Querier }

func NewProfileRepo(pool db.Querier) ProfileRepository {
	return &profileRepoPG{pool: pool}
}

func (r *profileRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const profileCols = `subject_id, first_name, last_name, date_of_birth, phone,
	allergies, current_medications, emergency_contact, assigned_provider_id,
	created_at, updated_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	var (
		p          Profile
		dob, phone *string
		assignedTo *string
	)
	err := row.Scan(&p.SubjectID, &p.FirstName, &p.LastName, &dob, &phone,
		&p.Allergies, &p.CurrentMedications, &p.EmergencyContact, &assignedTo,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.DateOfBirth = deref(dob)
	p.Phone = deref(phone)
	p.AssignedProvider = deref(assignedTo)
	return &p, nil
}

func (r *profileRepoPG) Get(ctx context.Context, subjectID string) (*Profile, error) {
	p, err := scanProfile(r.conn(ctx).QueryRow(ctx,
		`SELECT `+profileCols+` FROM profiles WHERE subject_id = $1`, subjectID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select profile: %w", err)
	}
	return p, nil
}

func (r *profileRepoPG) Create(ctx context.Context, p *Profile) error {
	if p.Allergies == nil {
		p.Allergies = []string{}
	}
	if p.CurrentMedications == nil {
		p.CurrentMedications = []string{}
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO profiles (subject_id, first_name, last_name, date_of_birth, phone,
			allergies, current_medications, emergency_contact, assigned_provider_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		p.SubjectID, p.FirstName, p.LastName, nullable(p.DateOfBirth), nullable(p.Phone),
		p.Allergies, p.CurrentMedications, p.EmergencyContact, nullable(p.AssignedProvider),
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (r *profileRepoPG) Update(ctx context.Context, subjectID string, u ProfileUpdate) error {
	var (
		sets []string
		args = []interface{}{subjectID}
	)
	add := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if u.FirstName != "" {
		add("first_name", u.FirstName)
	}
	if u.LastName != "" {
		add("last_name", u.LastName)
	}
	if u.DateOfBirth != "" {
		add("date_of_birth", u.DateOfBirth)
	}
	if u.Phone != "" {
		add("phone", u.Phone)
	}
	if u.Allergies != nil {
		add("allergies", u.Allergies)
	}
	if u.CurrentMedications != nil {
		add("current_medications", u.CurrentMedications)
	}
	if u.EmergencyContact != nil {
		add("emergency_contact", u.EmergencyContact)
	}
	sets = append(sets, "updated_at = NOW()")

	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE profiles SET `+strings.Join(sets, ", ")+` WHERE subject_id = $1`, args...)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (r *profileRepoPG) ListByProvider(ctx context.Context, providerID string) ([]*Profile, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+profileCols+` FROM profiles
		WHERE assigned_provider_id = $1
		ORDER BY last_name, first_name, subject_id`, providerID)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *profileRepoPG) AssignProvider(ctx context.Context, patientID, providerID string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE profiles SET assigned_provider_id = $2, updated_at = NOW()
		WHERE subject_id = $1`, patientID, nullable(providerID))
	if err != nil {
		return fmt.Errorf("assign provider: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// -- Goal Repository --

type goalRepoPG struct{ pool db.Querier }

func NewGoalRepo(pool db.Querier) GoalRepository {
	return &goalRepoPG{pool: pool}
}

func (r *goalRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const goalCols = `id, subject_id, date, type, target, current, unit, completed, created_at, updated_at`

func scanGoal(row pgx.Row) (*Goal, error) {
	var g Goal
	err := row.Scan(&g.ID, &g.UserID, &g.Date, &g.Type, &g.Target, &g.Current,
		&g.Unit, &g.Completed, &g.CreatedAt, &g.UpdatedAt)
	return &g, err
}

func (r *goalRepoPG) Create(ctx context.Context, g *Goal) error {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO goals (id, subject_id, date, type, target, current, unit, completed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		g.ID, g.UserID, g.Date, string(g.Type), g.Target, g.Current, g.Unit, g.Completed,
	).Scan(&g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}
	return nil
}

func (r *goalRepoPG) ListByDate(ctx context.Context, subjectID, date string) ([]*Goal, error) {
	return r.list(ctx, `SELECT `+goalCols+` FROM goals
		WHERE subject_id = $1 AND date = $2
		ORDER BY created_at`, subjectID, date)
}

func (r *goalRepoPG) ListSince(ctx context.Context, subjectID, since string) ([]*Goal, error) {
	return r.list(ctx, `SELECT `+goalCols+` FROM goals
		WHERE subject_id = $1 AND date >= $2
		ORDER BY date DESC, created_at DESC`, subjectID, since)
}

func (r *goalRepoPG) History(ctx context.Context, subjectID string, f GoalFilter) ([]*Goal, error) {
	query := `SELECT ` + goalCols + ` FROM goals WHERE subject_id = $1`
	args := []interface{}{subjectID}

	if f.StartDate != "" {
		args = append(args, f.StartDate)
		query += fmt.Sprintf(" AND date >= $%d", len(args))
	}
	if f.EndDate != "" {
		args = append(args, f.EndDate)
		query += fmt.Sprintf(" AND date <= $%d", len(args))
	}
	if f.Type != "" {
		args = append(args, string(f.Type))
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY date DESC, created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	return r.list(ctx, query, args...)
}

func (r *goalRepoPG) list(ctx context.Context, query string, args ...interface{}) ([]*Goal, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	out := []*Goal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// -- Reminder Repository --

type reminderRepoPG struct{ pool db.Querier }

func NewReminderRepo(pool db.Querier) ReminderRepository {
	return &reminderRepoPG{pool: pool}
}

func (r *reminderRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const reminderCols = `id, subject_id, type, title, description, due_date, status, created_by, created_at`

func scanReminder(row pgx.Row) (*Reminder, error) {
	var rm Reminder
	err := row.Scan(&rm.ID, &rm.UserID, &rm.Type, &rm.Title, &rm.Description,
		&rm.DueDate, &rm.Status, &rm.CreatedBy, &rm.CreatedAt)
	return &rm, err
}

func (r *reminderRepoPG) Create(ctx context.Context, rm *Reminder) error {
	if rm.ID == "" {
		rm.ID = uuid.New().String()
	}
	if rm.Status == "" {
		rm.Status = ReminderUpcoming
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO reminders (id, subject_id, type, title, description, due_date, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		rm.ID, rm.UserID, string(rm.Type), rm.Title, rm.Description, rm.DueDate, string(rm.Status), rm.CreatedBy,
	).Scan(&rm.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert reminder: %w", err)
	}
	return nil
}

func (r *reminderRepoPG) ListUpcoming(ctx context.Context, subjectID string, limit int) ([]*Reminder, error) {
	return r.list(ctx, `SELECT `+reminderCols+` FROM reminders
		WHERE subject_id = $1 AND status = 'upcoming'
		ORDER BY due_date ASC, created_at ASC
		LIMIT $2`, subjectID, limit)
}

func (r *reminderRepoPG) ListRecent(ctx context.Context, subjectID string, limit int) ([]*Reminder, error) {
	return r.list(ctx, `SELECT `+reminderCols+` FROM reminders
		WHERE subject_id = $1
		ORDER BY due_date DESC, created_at DESC
		LIMIT $2`, subjectID, limit)
}

func (r *reminderRepoPG) CountByStatus(ctx context.Context, subjectID string, status ReminderStatus) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM reminders WHERE subject_id = $1 AND status = $2`,
		subjectID, string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count reminders: %w", err)
	}
	return n, nil
}

func (r *reminderRepoPG) MarkCompleted(ctx context.Context, subjectID, reminderID string) (*Reminder, error) {
	if _, err := uuid.Parse(reminderID); err != nil {
		return nil, ErrReminderNotFound
	}
	rm, err := scanReminder(r.conn(ctx).QueryRow(ctx, `
		UPDATE reminders SET status = 'completed'
		WHERE id = $1 AND subject_id = $2
		RETURNING `+reminderCols, reminderID, subjectID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReminderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("complete reminder: %w", err)
	}
	return rm, nil
}

func (r *reminderRepoPG) MarkOverdueMissed(ctx context.Context, today string) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE reminders SET status = 'missed'
		WHERE status = 'upcoming' AND due_date < $1`, today)
	if err != nil {
		return 0, fmt.Errorf("sweep reminders: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *reminderRepoPG) list(ctx context.Context, query string, args ...interface{}) ([]*Reminder, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	out := []*Reminder{}
	for rows.Next() {
		rm, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		out = append(out, rm)
	}
	return out, rows.Err()
}

// -- Health Tip Repository --

type healthTipRepoPG struct{ pool db.Querier }

func NewHealthTipRepo(pool db.Querier) HealthTipRepository {
	return &healthTipRepoPG{pool: pool}
}

func (r *healthTipRepoPG) ListActive(ctx context.Context, limit int) ([]*HealthTip, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT id, title, content, category, is_active, created_at
		FROM health_tips WHERE is_active
		ORDER BY created_at, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list health tips: %w", err)
	}
	defer rows.Close()

	var out []*HealthTip
	for rows.Next() {
		var t HealthTip
		if err := rows.Scan(&t.ID, &t.Title, &t.Content, &t.Category, &t.IsActive, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan health tip: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
