package calls

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-webinar/backend/internal/models"
	"github.com/lumen-webinar/backend/pkg/response"
)

// UpdateRequest is the body for PATCH /attendees/:id/call-status.
type UpdateRequest struct {
	CallStatus models.CallStatus `json:"call_status" binding:"required"`
}

// Handler handles call status HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a calls handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// UpdateCallStatus handles PATCH /attendees/:id/call-status.
func (h *Handler) UpdateCallStatus(c *gin.Context) {
	attendeeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid attendee id")
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !req.CallStatus.Valid() {
		response.BadRequest(c, "unknown call status")
		return
	}

	attendee, err := h.repo.UpdateCallStatus(c.Request.Context(), attendeeID, req.CallStatus)
	if err != nil {
		h.logger.Error("update call status failed", zap.Error(err), zap.String("attendee_id", attendeeID.String()))
		response.Internal(c, "failed to update call status")
		return
	}
	if attendee == nil {
		response.NotFound(c, "attendee not found")
		return
	}
	response.OK(c, attendee)
}
