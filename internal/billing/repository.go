// Package billing stores platform-level subscription events for downstream
// reconciliation. This service only appends; the billing-state updater that
// consumes the table lives elsewhere.
package billing

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository appends billing events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a billing repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecordEvent appends one provider event. The provider event ID is unique, so
// a redelivered event is a no-op rather than a duplicate row.
func (r *Repository) RecordEvent(ctx context.Context, providerEventID, eventType string, payload []byte) error {
	const q = `INSERT INTO billing_events (provider_event_id, event_type, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider_event_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, q, providerEventID, eventType, payload)
	return err
}
