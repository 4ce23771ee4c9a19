// Package calls tracks the call disposition of attendees for BOOK_A_CALL
// sessions.
package calls

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumen-webinar/backend/internal/models"
)

// Repository handles attendee call-status persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a calls repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpdateCallStatus sets the attendee's call disposition. Returns nil when the
// attendee does not exist. Setting a status is a value write, so repeating it
// is harmless.
func (r *Repository) UpdateCallStatus(ctx context.Context, attendeeID uuid.UUID, status models.CallStatus) (*models.Attendee, error) {
	const q = `UPDATE attendees SET call_status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, email, name, call_status, created_at, updated_at`
	var a models.Attendee
	err := r.pool.QueryRow(ctx, q, attendeeID, status).Scan(&a.ID, &a.Email, &a.Name, &a.CallStatus, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
