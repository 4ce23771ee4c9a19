package sessions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-webinar/backend/internal/models"
	"github.com/lumen-webinar/backend/internal/realtime"
	"github.com/lumen-webinar/backend/pkg/apperr"
	"github.com/lumen-webinar/backend/pkg/database"
)

// Store is the persistence surface the lifecycle manager depends on.
type Store interface {
	Create(ctx context.Context, s *models.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	ListByPresenter(ctx context.Context, presenterID uuid.UUID, status *models.SessionStatus) ([]models.Session, error)
	UpdateStatusFrom(ctx context.Context, id uuid.UUID, status models.SessionStatus, from []models.SessionStatus) (*models.Session, error)
}

// Broadcaster publishes control signals on a session's realtime topic.
type Broadcaster interface {
	BroadcastToSessionAndPublish(sessionID uuid.UUID, kind realtime.SignalKind, payload interface{})
}

// Service drives the session lifecycle state machine.
type Service struct {
	store  Store
	hub    Broadcaster
	logger *zap.Logger
}

// NewService creates a session lifecycle service.
func NewService(store Store, hub Broadcaster, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, hub: hub, logger: logger}
}

// Create schedules a new session. Start times in the past are rejected.
func (s *Service) Create(ctx context.Context, session *models.Session) error {
	if session.Title == "" || !session.CtaType.Valid() {
		return apperr.ErrInvalidInput
	}
	if session.StartsAt.Before(time.Now()) {
		return apperr.ErrInvalidInput
	}
	return s.store.Create(ctx, session)
}

// Get returns a session by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	var session *models.Session
	err := database.Retry(ctx, func(ctx context.Context) error {
		var gerr error
		session, gerr = s.store.GetByID(ctx, id)
		return gerr
	})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperr.NotFound("session", id.String())
	}
	return session, nil
}

// ListByPresenter returns a presenter's sessions with an optional status filter.
func (s *Service) ListByPresenter(ctx context.Context, presenterID uuid.UUID, status *models.SessionStatus) ([]models.Session, error) {
	return s.store.ListByPresenter(ctx, presenterID, status)
}

// SetStatus moves the session to newStatus. The transition guard is applied
// atomically against the stored status: the conditional update only matches
// rows whose current status may legally reach newStatus, so two racing
// transitions cannot both succeed. Live transitions are announced on the
// session's realtime topic.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, newStatus models.SessionStatus) (*models.Session, error) {
	if !newStatus.Valid() {
		return nil, apperr.ErrInvalidInput
	}

	updated, err := s.store.UpdateStatusFrom(ctx, id, newStatus, AllowedFrom(newStatus))
	if err != nil {
		return nil, err
	}
	if updated == nil {
		// Nothing matched: absent session or illegal move. Re-read to tell
		// the caller which, and to build the rejection reason.
		current, gerr := s.store.GetByID(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		if current == nil {
			return nil, apperr.NotFound("session", id.String())
		}
		return nil, checkTransition(current.Status, newStatus)
	}

	s.logger.Info("session status changed",
		zap.String("session_id", id.String()),
		zap.String("status", string(newStatus)),
	)
	if s.hub != nil {
		switch newStatus {
		case models.StatusLive:
			s.hub.BroadcastToSessionAndPublish(id, realtime.SignalStartLive, statusPayload(updated))
		default:
			s.hub.BroadcastToSessionAndPublish(id, realtime.SignalSessionStatus, statusPayload(updated))
		}
	}
	return updated, nil
}

func statusPayload(s *models.Session) map[string]interface{} {
	return map[string]interface{}{
		"session_id": s.ID.String(),
		"status":     s.Status,
	}
}
