package payments

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-webinar/backend/internal/models"
	"github.com/lumen-webinar/backend/pkg/apperr"
	"github.com/lumen-webinar/backend/pkg/response"
)

// maxBodyBytes bounds webhook payload size.
const maxBodyBytes = 1 << 20

// Promoter moves an attendance to a funnel stage. The funnel engine
// implements it.
type Promoter interface {
	Promote(ctx context.Context, attendeeID, sessionID uuid.UUID, stage models.FunnelStage) (*models.Attendance, error)
}

// BillingSink receives platform-level subscription events for reconciliation.
type BillingSink interface {
	RecordEvent(ctx context.Context, providerEventID, eventType string, payload []byte) error
}

// WebhookHandler ingests signed payment events: verify, classify, act.
type WebhookHandler struct {
	promoter  Promoter
	billing   BillingSink
	secret    string
	tolerance time.Duration
	logger    *zap.Logger
}

// NewWebhookHandler creates the payment webhook handler.
func NewWebhookHandler(promoter Promoter, billing BillingSink, secret string, tolerance time.Duration, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{promoter: promoter, billing: billing, secret: secret, tolerance: tolerance, logger: logger}
}

// HandleEvent handles POST /webhooks/payments.
//
// The raw body is read and verified against the signature header before any
// parsing. Irrelevant event types are acknowledged with 200 so the sender
// does not retry events that will never be handled; only authentication
// failures and internal errors produce a non-2xx status.
func (h *WebhookHandler) HandleEvent(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}

	if err := VerifySignature(body, c.GetHeader(SignatureHeader), h.secret, h.tolerance, time.Now()); err != nil {
		h.logger.Warn("webhook signature rejected", zap.Error(err))
		response.Unauthorized(c, "invalid signature")
		return
	}

	var evt Event
	if err := json.Unmarshal(body, &evt); err != nil {
		response.BadRequest(c, "malformed event payload")
		return
	}

	classified := Classify(evt)
	switch classified.Kind {
	case KindIgnored:
		h.logger.Debug("irrelevant webhook event", zap.String("type", evt.Type))
		response.OK(c, gin.H{"received": true})

	case KindConnectedConversion:
		_, err := h.promoter.Promote(c.Request.Context(), classified.AttendeeID, classified.SessionID, models.StageConverted)
		switch {
		case err == nil:
			h.logger.Info("checkout conversion applied",
				zap.String("event_id", evt.ID),
				zap.String("attendee_id", classified.AttendeeID.String()),
				zap.String("session_id", classified.SessionID.String()),
			)
			response.OK(c, gin.H{"received": true})
		case errors.Is(err, apperr.ErrNotFound):
			// The conversion outran the registration write. Fail the
			// delivery so the sender's redelivery acts as the retry once
			// the registration has landed.
			h.logger.Warn("conversion for unknown attendance, asking for redelivery",
				zap.String("event_id", evt.ID), zap.Error(err))
			response.Internal(c, "attendance not found yet")
		default:
			h.logger.Error("promote failed", zap.String("event_id", evt.ID), zap.Error(err))
			response.Internal(c, "failed to process event")
		}

	case KindConnectedOther:
		// Connected-account lifecycle events other than checkout completion
		// are deliberately not reconciled here; log the sub-type so the
		// dropped events stay visible.
		h.logger.Info("connected-account event acknowledged without action",
			zap.String("event_id", evt.ID), zap.String("type", evt.Type))
		response.OK(c, gin.H{"received": true})

	case KindPlatform:
		if h.billing != nil {
			if err := h.billing.RecordEvent(c.Request.Context(), evt.ID, evt.Type, body); err != nil {
				h.logger.Error("record billing event failed", zap.String("event_id", evt.ID), zap.Error(err))
				response.Internal(c, "failed to record event")
				return
			}
		}
		response.OK(c, gin.H{"received": true})
	}
}
