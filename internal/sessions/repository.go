package sessions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumen-webinar/backend/internal/models"
)

// Repository handles session persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a sessions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const sessionColumns = `id, title, description, starts_at, cta_type, cta_label, tags, assistant_id, price_ref, status, presenter_id, created_at, updated_at`

func scanSession(row pgx.Row) (*models.Session, error) {
	var s models.Session
	err := row.Scan(&s.ID, &s.Title, &s.Description, &s.StartsAt, &s.CtaType, &s.CtaLabel, &s.Tags, &s.AssistantID, &s.PriceRef, &s.Status, &s.PresenterID, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a new session in SCHEDULED state.
func (r *Repository) Create(ctx context.Context, s *models.Session) error {
	const q = `INSERT INTO sessions (title, description, starts_at, cta_type, cta_label, tags, assistant_id, price_ref, presenter_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, status, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, s.Title, s.Description, s.StartsAt, s.CtaType, s.CtaLabel, s.Tags, s.AssistantID, s.PriceRef, s.PresenterID).
		Scan(&s.ID, &s.Status, &s.CreatedAt, &s.UpdatedAt)
}

// GetByID returns a session by ID, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	return scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
}

// ListByPresenter returns a presenter's sessions, optionally filtered by
// status, newest start time first.
func (r *Repository) ListByPresenter(ctx context.Context, presenterID uuid.UUID, status *models.SessionStatus) ([]models.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE presenter_id = $1`
	args := []interface{}{presenterID}
	if status != nil {
		q += ` AND status = $2`
		args = append(args, *status)
	}
	rows, err := r.pool.Query(ctx, q+` ORDER BY starts_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// UpdateStatusFrom moves the session to status only when the stored status is
// one of from. The guard runs inside the UPDATE so concurrent transitions
// (end racing cancel) cannot both win. Returns nil when no row matched.
func (r *Repository) UpdateStatusFrom(ctx context.Context, id uuid.UUID, status models.SessionStatus, from []models.SessionStatus) (*models.Session, error) {
	const q = `UPDATE sessions SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)
		RETURNING ` + sessionColumns
	fromStr := make([]string, len(from))
	for i, s := range from {
		fromStr[i] = string(s)
	}
	return scanSession(r.pool.QueryRow(ctx, q, id, status, fromStr))
}
