package funnel

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-webinar/backend/internal/auth"
	"github.com/lumen-webinar/backend/internal/models"
	"github.com/lumen-webinar/backend/pkg/apperr"
	"github.com/lumen-webinar/backend/pkg/response"
)

// RegisterRequest is the body for POST /sessions/:id/register.
type RegisterRequest struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name" binding:"required"`
}

// PromoteRequest is the body for POST /sessions/:id/attendees/:attendeeId/promote.
type PromoteRequest struct {
	Stage models.FunnelStage `json:"stage" binding:"required"`
}

// Handler handles funnel HTTP endpoints.
type Handler struct {
	engine *Engine
	tokens *auth.TokenService
	logger *zap.Logger
}

// NewHandler creates a funnel handler.
func NewHandler(engine *Engine, tokens *auth.TokenService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{engine: engine, tokens: tokens, logger: logger}
}

// Register handles POST /sessions/:id/register. On success the response also
// carries a channel token for the realtime topic. A duplicate registration is
// a 409 that returns the existing attendance.
func (h *Handler) Register(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	att, err := h.engine.Register(c.Request.Context(), sessionID, req.Email, req.Name)
	if err != nil {
		var conflict *apperr.ConflictError
		if errors.As(err, &conflict) {
			response.ConflictWithData(c, conflict.Message, conflict.Existing)
			return
		}
		h.respondError(c, err, "register failed")
		return
	}

	token, err := h.tokens.Issue(att.AttendeeID, sessionID)
	if err != nil {
		h.logger.Error("issue channel token failed", zap.Error(err))
		response.Internal(c, "failed to issue channel token")
		return
	}
	response.Created(c, gin.H{
		"attendance":    att,
		"channel_token": token,
	})
}

// Promote handles POST /sessions/:id/attendees/:attendeeId/promote.
func (h *Handler) Promote(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	attendeeID, err := uuid.Parse(c.Param("attendeeId"))
	if err != nil {
		response.BadRequest(c, "invalid attendee id")
		return
	}
	var req PromoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !req.Stage.Valid() {
		response.BadRequest(c, "unknown stage: "+string(req.Stage))
		return
	}

	att, err := h.engine.Promote(c.Request.Context(), attendeeID, sessionID, req.Stage)
	if err != nil {
		h.respondError(c, err, "promote failed")
		return
	}
	response.OK(c, att)
}

// GetFunnel handles GET /sessions/:id/funnel.
func (h *Handler) GetFunnel(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	includeUsers := c.DefaultQuery("include_users", "true") == "true"
	userLimit, _ := strconv.Atoi(c.DefaultQuery("user_limit", "100"))

	f, err := h.engine.GetFunnel(c.Request.Context(), sessionID, includeUsers, userLimit)
	if err != nil {
		h.respondError(c, err, "get funnel failed")
		return
	}
	response.OK(c, f)
}

func (h *Handler) respondError(c *gin.Context, err error, logMsg string) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, apperr.ErrInvalidInput):
		response.BadRequest(c, err.Error())
	case errors.Is(err, apperr.ErrTransient):
		h.logger.Warn(logMsg, zap.Error(err))
		response.ServiceUnavailable(c, "store temporarily unavailable, retry")
	default:
		h.logger.Error(logMsg, zap.Error(err))
		response.Internal(c, "internal error")
	}
}
