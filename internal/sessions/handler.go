package sessions

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-webinar/backend/internal/auth"
	"github.com/lumen-webinar/backend/internal/models"
	"github.com/lumen-webinar/backend/pkg/apperr"
	"github.com/lumen-webinar/backend/pkg/response"
)

// CreateRequest is the body for POST /sessions.
type CreateRequest struct {
	Title       string         `json:"title" binding:"required"`
	Description string         `json:"description"`
	StartsAt    time.Time      `json:"starts_at" binding:"required"`
	CtaType     models.CtaType `json:"cta_type" binding:"required"`
	CtaLabel    string         `json:"cta_label"`
	Tags        []string       `json:"tags"`
	AssistantID *string        `json:"assistant_id"`
	PriceRef    *string        `json:"price_ref"`
	PresenterID uuid.UUID      `json:"presenter_id" binding:"required"`
}

// StatusRequest is the body for PATCH /sessions/:id/status.
type StatusRequest struct {
	Status models.SessionStatus `json:"status" binding:"required"`
}

// Handler handles session HTTP endpoints.
type Handler struct {
	svc    *Service
	tokens *auth.TokenService
	logger *zap.Logger
}

// NewHandler creates a sessions handler.
func NewHandler(svc *Service, tokens *auth.TokenService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, tokens: tokens, logger: logger}
}

// Create handles POST /sessions. The response carries a host channel token so
// the presenter can publish control signals on the session topic.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	session := &models.Session{
		Title:       req.Title,
		Description: req.Description,
		StartsAt:    req.StartsAt,
		CtaType:     req.CtaType,
		CtaLabel:    req.CtaLabel,
		Tags:        req.Tags,
		AssistantID: req.AssistantID,
		PriceRef:    req.PriceRef,
		PresenterID: req.PresenterID,
	}
	if session.Tags == nil {
		session.Tags = []string{}
	}
	if err := h.svc.Create(c.Request.Context(), session); err != nil {
		if errors.Is(err, apperr.ErrInvalidInput) {
			response.BadRequest(c, "invalid session: title, future start time and a known cta_type are required")
			return
		}
		h.logger.Error("create session failed", zap.Error(err))
		response.Internal(c, "failed to create session")
		return
	}
	hostToken, err := h.tokens.IssueHost(session.PresenterID, session.ID)
	if err != nil {
		h.logger.Error("issue host channel token failed", zap.Error(err))
		response.Internal(c, "failed to issue host channel token")
		return
	}
	response.Created(c, gin.H{
		"session":            session,
		"host_channel_token": hostToken,
	})
}

// GetByID handles GET /sessions/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	session, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "get session failed")
		return
	}
	response.OK(c, session)
}

// List handles GET /sessions?presenter_id=&status=.
func (h *Handler) List(c *gin.Context) {
	presenterID, err := uuid.Parse(c.Query("presenter_id"))
	if err != nil {
		response.BadRequest(c, "presenter_id required")
		return
	}
	var status *models.SessionStatus
	switch c.Query("status") {
	case "":
	case "upcoming":
		s := models.StatusScheduled
		status = &s
	case "ended":
		s := models.StatusEnded
		status = &s
	default:
		s := models.SessionStatus(c.Query("status"))
		if !s.Valid() {
			response.BadRequest(c, "unknown status filter")
			return
		}
		status = &s
	}
	list, err := h.svc.ListByPresenter(c.Request.Context(), presenterID, status)
	if err != nil {
		h.respondError(c, err, "list sessions failed")
		return
	}
	response.OK(c, list)
}

// SetStatus handles PATCH /sessions/:id/status.
func (h *Handler) SetStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	session, err := h.svc.SetStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		var invalid *apperr.InvalidTransitionError
		if errors.As(err, &invalid) {
			response.Conflict(c, invalid.Error())
			return
		}
		h.respondError(c, err, "set status failed")
		return
	}
	response.OK(c, session)
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
