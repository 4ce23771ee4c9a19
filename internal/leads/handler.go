package leads

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-webinar/backend/internal/models"
	"github.com/lumen-webinar/backend/pkg/queue"
	"github.com/lumen-webinar/backend/pkg/response"
	"github.com/lumen-webinar/backend/pkg/storage"
)

// SessionGetter looks up a session for export validation.
type SessionGetter interface {
	FindSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// Handler handles lead export HTTP endpoints.
type Handler struct {
	repo     *Repository
	sessions SessionGetter
	queue    *queue.Queue
	s3       *storage.S3
	logger   *zap.Logger
}

// NewHandler creates a lead export handler. s3 may be nil when object storage
// is not configured; download URLs are then unavailable.
func NewHandler(repo *Repository, sessions SessionGetter, q *queue.Queue, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, sessions: sessions, queue: q, s3: s3, logger: logger}
}

// RequestExport handles POST /sessions/:id/leads/export. It records a pending
// job and enqueues it for the worker.
func (h *Handler) RequestExport(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}

	session, err := h.sessions.FindSession(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("find session failed", zap.Error(err), zap.String("session_id", sessionID.String()))
		response.Internal(c, "failed to load session")
		return
	}
	if session == nil {
		response.NotFound(c, "session not found")
		return
	}

	export, err := h.repo.Create(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("create export failed", zap.Error(err), zap.String("session_id", sessionID.String()))
		response.Internal(c, "failed to create export")
		return
	}

	if err := h.queue.EnqueueLeadExport(c.Request.Context(), queue.LeadExportPayload{
		ExportID:  export.ID,
		SessionID: sessionID,
	}); err != nil {
		h.logger.Error("enqueue export failed", zap.Error(err), zap.String("export_id", export.ID.String()))
		if mfErr := h.repo.MarkFailed(c.Request.Context(), export.ID, "enqueue failed"); mfErr != nil {
			h.logger.Error("mark export failed errored", zap.Error(mfErr))
		}
		response.Internal(c, "failed to enqueue export")
		return
	}

	response.Created(c, export)
}

// GetExport handles GET /leads/exports/:id.
func (h *Handler) GetExport(c *gin.Context) {
	export, ok := h.loadExport(c)
	if !ok {
		return
	}
	response.OK(c, export)
}

// GetDownloadURL handles GET /leads/exports/:id/download-url. It returns a
// pre-signed URL for completed exports.
func (h *Handler) GetDownloadURL(c *gin.Context) {
	export, ok := h.loadExport(c)
	if !ok {
		return
	}
	if export.Status != models.ExportStatusCompleted {
		response.Conflict(c, "export is not completed")
		return
	}
	if h.s3 == nil {
		response.ServiceUnavailable(c, "object storage not configured")
		return
	}

	url, err := h.s3.GeneratePresignedDownloadURL(c.Request.Context(), export.S3Key, h.s3.PresignExpire())
	if err != nil {
		h.logger.Error("presign download failed", zap.Error(err), zap.String("export_id", export.ID.String()))
		response.Internal(c, "failed to generate download url")
		return
	}
	response.OK(c, gin.H{
		"download_url": url,
		"expires_in":   int(h.s3.PresignExpire().Seconds()),
	})
}

func (h *Handler) loadExport(c *gin.Context) (*models.LeadExport, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid export id")
		return nil, false
	}
	export, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get export failed", zap.Error(err), zap.String("export_id", id.String()))
		response.Internal(c, "failed to load export")
		return nil, false
	}
	if export == nil {
		response.NotFound(c, "export not found")
		return nil, false
	}
	return export, true
}
