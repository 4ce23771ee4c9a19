package leads

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumen-webinar/backend/internal/models"
)

// Repository provides PostgreSQL access to lead export jobs.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const exportColumns = `id, session_id, status, s3_key, row_count, error, created_at, updated_at`

func scanExport(row pgx.Row) (*models.LeadExport, error) {
	var e models.LeadExport
	err := row.Scan(&e.ID, &e.SessionID, &e.Status, &e.S3Key, &e.RowCount, &e.Error, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan lead export: %w", err)
	}
	return &e, nil
}

// Create inserts a pending export job for a session.
func (r *Repository) Create(ctx context.Context, sessionID uuid.UUID) (*models.LeadExport, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO lead_exports (session_id, status)
		VALUES ($1, $2)
		RETURNING `+exportColumns,
		sessionID, models.ExportStatusPending,
	)
	return scanExport(row)
}

// GetByID returns an export job, or (nil, nil) when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.LeadExport, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+exportColumns+`
		FROM lead_exports
		WHERE id = $1`,
		id,
	)
	return scanExport(row)
}

// MarkCompleted records the uploaded object key and row count.
func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID, s3Key string, rowCount int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE lead_exports
		SET status = $2, s3_key = $3, row_count = $4, error = '', updated_at = now()
		WHERE id = $1`,
		id, models.ExportStatusCompleted, s3Key, rowCount,
	)
	if err != nil {
		return fmt.Errorf("mark export completed: %w", err)
	}
	return nil
}

// MarkFailed records a terminal failure message.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE lead_exports
		SET status = $2, error = $3, updated_at = now()
		WHERE id = $1`,
		id, models.ExportStatusFailed, reason,
	)
	if err != nil {
		return fmt.Errorf("mark export failed: %w", err)
	}
	return nil
}

// ListAttendancesForExport returns every attendance for a session joined with
// its attendee, oldest first, for CSV rendering.
func (r *Repository) ListAttendancesForExport(ctx context.Context, sessionID uuid.UUID) ([]models.Attendance, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT at.id, at.attendee_id, at.session_id, at.stage, at.joined_at, at.updated_at,
		       a.id, a.email, a.name, a.call_status, a.created_at
		FROM attendances at
		JOIN attendees a ON a.id = at.attendee_id
		WHERE at.session_id = $1
		ORDER BY at.joined_at ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list attendances for export: %w", err)
	}
	defer rows.Close()

	var out []models.Attendance
	for rows.Next() {
		var at models.Attendance
		var a models.Attendee
		if err := rows.Scan(
			&at.ID, &at.AttendeeID, &at.SessionID, &at.Stage, &at.JoinedAt, &at.UpdatedAt,
			&a.ID, &a.Email, &a.Name, &a.CallStatus, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		at.Attendee = &a
		out = append(out, at)
	}
	return out, rows.Err()
}
