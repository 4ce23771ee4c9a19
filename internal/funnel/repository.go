package funnel

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumen-webinar/backend/internal/models"
)

// Repository persists attendees and attendances. Absent rows are reported as
// (nil, nil); uniqueness races are settled by the database, not by
// check-then-act in Go.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a funnel repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindSession returns a session by ID, or nil when absent.
func (r *Repository) FindSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	const q = `SELECT id, title, description, starts_at, cta_type, cta_label, tags, assistant_id, price_ref, status, presenter_id, created_at, updated_at
		FROM sessions WHERE id = $1`
	var s models.Session
	err := r.pool.QueryRow(ctx, q, id).Scan(&s.ID, &s.Title, &s.Description, &s.StartsAt, &s.CtaType, &s.CtaLabel, &s.Tags, &s.AssistantID, &s.PriceRef, &s.Status, &s.PresenterID, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindOrCreateAttendee returns the attendee for email, creating it if absent.
// The upsert keys on the unique email column so two concurrent first
// registrations converge on one row.
func (r *Repository) FindOrCreateAttendee(ctx context.Context, email, name string) (*models.Attendee, error) {
	const q = `INSERT INTO attendees (email, name)
		VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE SET updated_at = NOW()
		RETURNING id, email, name, call_status, created_at, updated_at`
	var a models.Attendee
	err := r.pool.QueryRow(ctx, q, email, name).Scan(&a.ID, &a.Email, &a.Name, &a.CallStatus, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindAttendance returns the attendance for (attendee, session) with the
// attendee row joined, or nil when absent.
func (r *Repository) FindAttendance(ctx context.Context, attendeeID, sessionID uuid.UUID) (*models.Attendance, error) {
	const q = `SELECT at.id, at.attendee_id, at.session_id, at.stage, at.joined_at, at.updated_at,
			a.id, a.email, a.name, a.call_status, a.created_at, a.updated_at
		FROM attendances at JOIN attendees a ON a.id = at.attendee_id
		WHERE at.attendee_id = $1 AND at.session_id = $2`
	var att models.Attendance
	var user models.Attendee
	err := r.pool.QueryRow(ctx, q, attendeeID, sessionID).Scan(
		&att.ID, &att.AttendeeID, &att.SessionID, &att.Stage, &att.JoinedAt, &att.UpdatedAt,
		&user.ID, &user.Email, &user.Name, &user.CallStatus, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	att.Attendee = &user
	return &att, nil
}

// CreateAttendance inserts the attendance row for (attendee, session) at the
// given stage. The unique constraint arbitrates concurrent inserts: exactly
// one caller creates the row, every other caller gets the existing row back
// with created=false.
func (r *Repository) CreateAttendance(ctx context.Context, attendeeID, sessionID uuid.UUID, stage models.FunnelStage) (att *models.Attendance, created bool, err error) {
	const q = `INSERT INTO attendances (attendee_id, session_id, stage)
		VALUES ($1, $2, $3)
		ON CONFLICT (attendee_id, session_id) DO NOTHING
		RETURNING id, attendee_id, session_id, stage, joined_at, updated_at`
	var a models.Attendance
	err = r.pool.QueryRow(ctx, q, attendeeID, sessionID, stage).Scan(&a.ID, &a.AttendeeID, &a.SessionID, &a.Stage, &a.JoinedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost the race or already registered: hand back the winner's row.
		existing, ferr := r.FindAttendance(ctx, attendeeID, sessionID)
		if ferr != nil {
			return nil, false, ferr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &a, true, nil
}

// UpdateAttendanceStage overwrites the stored stage for (attendee, session).
// Returns nil when no attendance exists; promotion never creates rows.
func (r *Repository) UpdateAttendanceStage(ctx context.Context, attendeeID, sessionID uuid.UUID, stage models.FunnelStage) (*models.Attendance, error) {
	const q = `UPDATE attendances SET stage = $3, updated_at = NOW()
		WHERE attendee_id = $1 AND session_id = $2
		RETURNING id, attendee_id, session_id, stage, joined_at, updated_at`
	var a models.Attendance
	err := r.pool.QueryRow(ctx, q, attendeeID, sessionID, stage).Scan(&a.ID, &a.AttendeeID, &a.SessionID, &a.Stage, &a.JoinedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateAttendanceStageIf overwrites the stage only when the stored stage
// matches from. Used for the live-join ATTENDED promotion so a later stage is
// never clobbered. Returns nil when no row matched.
func (r *Repository) UpdateAttendanceStageIf(ctx context.Context, attendeeID, sessionID uuid.UUID, from, to models.FunnelStage) (*models.Attendance, error) {
	const q = `UPDATE attendances SET stage = $4, updated_at = NOW()
		WHERE attendee_id = $1 AND session_id = $2 AND stage = $3
		RETURNING id, attendee_id, session_id, stage, joined_at, updated_at`
	var a models.Attendance
	err := r.pool.QueryRow(ctx, q, attendeeID, sessionID, from, to).Scan(&a.ID, &a.AttendeeID, &a.SessionID, &a.Stage, &a.JoinedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CountAttendancesByStage returns stored-stage counts for a session. Stages
// with no rows are simply absent from the map.
func (r *Repository) CountAttendancesByStage(ctx context.Context, sessionID uuid.UUID) (map[models.FunnelStage]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT stage, COUNT(*) FROM attendances WHERE session_id = $1 GROUP BY stage`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[models.FunnelStage]int)
	for rows.Next() {
		var stage models.FunnelStage
		var n int
		if err := rows.Scan(&stage, &n); err != nil {
			return nil, err
		}
		counts[stage] = n
	}
	return counts, rows.Err()
}

// ListAttendancesByStage returns attendances at a stored stage with attendee
// rows joined, newest joiners first, capped at limit.
func (r *Repository) ListAttendancesByStage(ctx context.Context, sessionID uuid.UUID, stage models.FunnelStage, limit int) ([]models.Attendance, error) {
	const q = `SELECT at.id, at.attendee_id, at.session_id, at.stage, at.joined_at, at.updated_at,
			a.id, a.email, a.name, a.call_status, a.created_at, a.updated_at
		FROM attendances at JOIN attendees a ON a.id = at.attendee_id
		WHERE at.session_id = $1 AND at.stage = $2
		ORDER BY at.joined_at DESC
		LIMIT $3`
	rows, err := r.pool.Query(ctx, q, sessionID, stage, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Attendance
	for rows.Next() {
		var att models.Attendance
		var user models.Attendee
		if err := rows.Scan(
			&att.ID, &att.AttendeeID, &att.SessionID, &att.Stage, &att.JoinedAt, &att.UpdatedAt,
			&user.ID, &user.Email, &user.Name, &user.CallStatus, &user.CreatedAt, &user.UpdatedAt,
		); err != nil {
			return nil, err
		}
		att.Attendee = &user
		list = append(list, att)
	}
	return list, rows.Err()
}
