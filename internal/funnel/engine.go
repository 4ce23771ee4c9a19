package funnel

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-webinar/backend/internal/models"
	"github.com/lumen-webinar/backend/pkg/apperr"
	"github.com/lumen-webinar/backend/pkg/database"
)

// DefaultUserLimit caps per-stage user lists when the caller does not ask
// for a specific limit.
const DefaultUserLimit = 100

// Store is the record-store surface the engine depends on. The pgx
// Repository implements it; tests use an in-memory fake.
type Store interface {
	FindSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	FindOrCreateAttendee(ctx context.Context, email, name string) (*models.Attendee, error)
	FindAttendance(ctx context.Context, attendeeID, sessionID uuid.UUID) (*models.Attendance, error)
	CreateAttendance(ctx context.Context, attendeeID, sessionID uuid.UUID, stage models.FunnelStage) (att *models.Attendance, created bool, err error)
	UpdateAttendanceStage(ctx context.Context, attendeeID, sessionID uuid.UUID, stage models.FunnelStage) (*models.Attendance, error)
	UpdateAttendanceStageIf(ctx context.Context, attendeeID, sessionID uuid.UUID, from, to models.FunnelStage) (*models.Attendance, error)
	CountAttendancesByStage(ctx context.Context, sessionID uuid.UUID) (map[models.FunnelStage]int, error)
	ListAttendancesByStage(ctx context.Context, sessionID uuid.UUID, stage models.FunnelStage, limit int) ([]models.Attendance, error)
}

// AttendeeSummary is one attendee in a per-stage user list.
type AttendeeSummary struct {
	ID         uuid.UUID         `json:"id"`
	Name       string            `json:"name"`
	Email      string            `json:"email"`
	AttendedAt time.Time         `json:"attended_at"`
	CallStatus models.CallStatus `json:"call_status"`
}

// StageBucket is the count (and optionally users) for one visible stage.
type StageBucket struct {
	Stage models.FunnelStage `json:"stage"`
	Count int                `json:"count"`
	Users []AttendeeSummary  `json:"users,omitempty"`
}

// Funnel is the stage breakdown for one session, ordered by funnel position.
type Funnel struct {
	SessionID uuid.UUID      `json:"session_id"`
	CtaType   models.CtaType `json:"cta_type"`
	Tags      []string       `json:"tags"`
	Stages    []StageBucket  `json:"stages"`
}

// Engine classifies attendees into funnel stages and promotes them.
type Engine struct {
	store  Store
	logger *zap.Logger
}

// NewEngine creates a funnel engine.
func NewEngine(store Store, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, logger: logger}
}

// Register enrolls email into a session at stage REGISTERED. The attendee is
// created lazily on first registration anywhere. Registering twice for the
// same session is a conflict that carries the existing attendance, so callers
// can send the prospect to their current funnel position.
func (e *Engine) Register(ctx context.Context, sessionID uuid.UUID, email, name string) (*models.Attendance, error) {
	if email == "" {
		return nil, apperr.ErrInvalidInput
	}
	session, err := e.findSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	attendee, err := e.store.FindOrCreateAttendee(ctx, email, name)
	if err != nil {
		return nil, err
	}

	att, created, err := e.store.CreateAttendance(ctx, attendee.ID, session.ID, models.StageRegistered)
	if err != nil {
		return nil, err
	}
	if att != nil && att.Attendee == nil {
		att.Attendee = attendee
	}
	if !created {
		return nil, &apperr.ConflictError{
			Message:  "already registered for this session",
			Existing: att,
		}
	}
	e.logger.Info("attendee registered",
		zap.String("session_id", session.ID.String()),
		zap.String("attendee_id", attendee.ID.String()),
	)
	return att, nil
}

// Promote moves an existing attendance to the nominal stage, resolved against
// the session's CTA type. Only stages the session exposes are accepted:
// unknown stage strings and the hidden half of the aliased pair never reach
// the store, so counts keep partitioning the session's rows. Promotion never
// creates an attendance: promoting a pair that has not registered fails with
// NotFound. Setting the stage a second time is a no-op value write, so
// redelivered events cannot corrupt counts.
func (e *Engine) Promote(ctx context.Context, attendeeID, sessionID uuid.UUID, nominal models.FunnelStage) (*models.Attendance, error) {
	session, err := e.findSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !ValidNominalStage(session.CtaType, nominal) {
		return nil, fmt.Errorf("stage %q not valid for cta type %s: %w", nominal, session.CtaType, apperr.ErrInvalidInput)
	}
	storage := StorageStage(session.CtaType, nominal)
	att, err := e.store.UpdateAttendanceStage(ctx, attendeeID, sessionID, storage)
	if err != nil {
		return nil, err
	}
	if att == nil {
		return nil, apperr.NotFound("attendance", attendeeID.String()+"/"+sessionID.String())
	}
	e.logger.Info("attendance promoted",
		zap.String("session_id", sessionID.String()),
		zap.String("attendee_id", attendeeID.String()),
		zap.String("stage", string(storage)),
	)
	return att, nil
}

// MarkAttended promotes a REGISTERED attendance to ATTENDED when the viewer
// joins the live room. Attendances already past REGISTERED are left alone.
func (e *Engine) MarkAttended(ctx context.Context, attendeeID, sessionID uuid.UUID) error {
	_, err := e.store.UpdateAttendanceStageIf(ctx, attendeeID, sessionID, models.StageRegistered, models.StageAttended)
	return err
}

// CountsByStage returns the count for every visible stage of the session,
// zero-filled so callers never special-case absent stages. The buckets
// partition all attendance rows: their counts always sum to the session's
// total.
func (e *Engine) CountsByStage(ctx context.Context, sessionID uuid.UUID) (models.CtaType, map[models.FunnelStage]int, error) {
	session, err := e.findSession(ctx, sessionID)
	if err != nil {
		return "", nil, err
	}
	var stored map[models.FunnelStage]int
	err = database.Retry(ctx, func(ctx context.Context) error {
		var cerr error
		stored, cerr = e.store.CountAttendancesByStage(ctx, sessionID)
		return cerr
	})
	if err != nil {
		return "", nil, err
	}

	counts := make(map[models.FunnelStage]int, len(models.AllStages))
	for _, nominal := range VisibleStages(session.CtaType) {
		counts[nominal] = stored[StorageStage(session.CtaType, nominal)]
	}
	return session.CtaType, counts, nil
}

// UsersByStage returns attendee summaries at a nominal stage, newest joiners
// first, capped at limit.
func (e *Engine) UsersByStage(ctx context.Context, sessionID uuid.UUID, nominal models.FunnelStage, limit int) ([]AttendeeSummary, error) {
	session, err := e.findSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return e.usersByStage(ctx, session, nominal, limit)
}

// GetFunnel returns the ordered stage breakdown for a session. When
// includeUsers is set, stages with a nonzero count also carry their attendee
// lists; empty stages skip the query entirely.
func (e *Engine) GetFunnel(ctx context.Context, sessionID uuid.UUID, includeUsers bool, userLimit int) (*Funnel, error) {
	session, err := e.findSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if userLimit <= 0 {
		userLimit = DefaultUserLimit
	}

	_, counts, err := e.CountsByStage(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	f := &Funnel{
		SessionID: session.ID,
		CtaType:   session.CtaType,
		Tags:      session.Tags,
	}
	for _, nominal := range VisibleStages(session.CtaType) {
		bucket := StageBucket{Stage: nominal, Count: counts[nominal]}
		if includeUsers && bucket.Count > 0 {
			users, err := e.usersByStage(ctx, session, nominal, userLimit)
			if err != nil {
				return nil, err
			}
			bucket.Users = users
		}
		f.Stages = append(f.Stages, bucket)
	}
	return f, nil
}

func (e *Engine) usersByStage(ctx context.Context, session *models.Session, nominal models.FunnelStage, limit int) ([]AttendeeSummary, error) {
	storage := StorageStage(session.CtaType, nominal)
	var list []models.Attendance
	err := database.Retry(ctx, func(ctx context.Context) error {
		var lerr error
		list, lerr = e.store.ListAttendancesByStage(ctx, session.ID, storage, limit)
		return lerr
	})
	if err != nil {
		return nil, err
	}
	users := make([]AttendeeSummary, 0, len(list))
	for _, att := range list {
		if att.Attendee == nil {
			continue
		}
		users = append(users, AttendeeSummary{
			ID:         att.Attendee.ID,
			Name:       att.Attendee.Name,
			Email:      att.Attendee.Email,
			AttendedAt: att.JoinedAt,
			CallStatus: att.Attendee.CallStatus,
		})
	}
	return users, nil
}

func (e *Engine) findSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	var session *models.Session
	err := database.Retry(ctx, func(ctx context.Context) error {
		var serr error
		session, serr = e.store.FindSession(ctx, id)
		return serr
	})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperr.NotFound("session", id.String())
	}
	return session, nil
}
