package realtime

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-webinar/backend/internal/models"
	"github.com/lumen-webinar/backend/pkg/apperr"
	"github.com/lumen-webinar/backend/pkg/response"
)

// SessionGetter loads a session so signal publishing can be guarded by
// lifecycle state.
type SessionGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// SignalRequest is the body for POST /sessions/:id/signals.
type SignalRequest struct {
	Kind    SignalKind      `json:"kind" binding:"required"`
	Payload json.RawMessage `json:"payload"`
}

// Handler exposes signal publishing over HTTP for host and automated triggers.
type Handler struct {
	hub      *Hub
	sessions SessionGetter
	logger   *zap.Logger
}

// NewHandler creates a realtime handler.
func NewHandler(hub *Hub, sessions SessionGetter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{hub: hub, sessions: sessions, logger: logger}
}

// PublishSignal handles POST /sessions/:id/signals. The CTA dialog signal is
// only meaningful while the stream is live, so it is rejected in any other
// state; other kinds pass through.
func (h *Handler) PublishSignal(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	var req SignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	session, err := h.sessions.Get(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		h.logger.Error("load session failed", zap.Error(err))
		response.Internal(c, "internal error")
		return
	}
	if req.Kind == SignalOpenCtaDialog && session.Status != models.StatusLive {
		response.Conflict(c, "cta dialog can only be opened while the session is live")
		return
	}

	// Publish through the shared transport only: the subscriber callback
	// broadcasts once per instance, this one included, so local clients do
	// not see the signal twice.
	h.hub.PublishToSessionOnly(sessionID, req.Kind, req.Payload)
	response.OK(c, gin.H{"published": true, "kind": req.Kind})
}

// AudienceCount handles GET /sessions/:id/audience. The count covers clients
// connected to this instance; it is a live-room gauge, not a funnel metric.
func (h *Handler) AudienceCount(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	response.OK(c, gin.H{
		"session_id": sessionID,
		"audience":   h.hub.AudienceCount(sessionID),
	})
}
