// Package worker runs background jobs dequeued from Redis.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-webinar/backend/internal/leads"
	"github.com/lumen-webinar/backend/internal/models"
	"github.com/lumen-webinar/backend/pkg/queue"
	"github.com/lumen-webinar/backend/pkg/storage"
)

// LeadExportProcessor processes lead export jobs: read a session's funnel,
// render CSV, upload to S3, update the export row.
type LeadExportProcessor struct {
	repo    *leads.Repository
	funnels leads.SessionGetter
	s3      *storage.S3
	queue   *queue.Queue
	logger  *zap.Logger
}

// NewLeadExportProcessor creates a lead export processor.
func NewLeadExportProcessor(repo *leads.Repository, funnels leads.SessionGetter, s3 *storage.S3, q *queue.Queue, logger *zap.Logger) *LeadExportProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeadExportProcessor{repo: repo, funnels: funnels, s3: s3, queue: q, logger: logger}
}

// Process executes one lead export job.
func (p *LeadExportProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeLeadExport {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.LeadExportPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	export, err := p.repo.GetByID(ctx, payload.ExportID)
	if err != nil || export == nil {
		return fmt.Errorf("export not found: %s", payload.ExportID)
	}
	if export.Status == models.ExportStatusCompleted {
		p.logger.Info("export already completed", zap.String("export_id", export.ID.String()))
		return nil
	}

	session, err := p.funnels.FindSession(ctx, payload.SessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return p.fail(ctx, export.ID, "session not found")
	}

	attendances, err := p.repo.ListAttendancesForExport(ctx, payload.SessionID)
	if err != nil {
		return fmt.Errorf("list attendances: %w", err)
	}
	csvData, rowCount, err := leads.RenderCSV(session.CtaType, attendances)
	if err != nil {
		return p.fail(ctx, export.ID, fmt.Sprintf("render csv: %v", err))
	}

	key := storage.ExportKey(payload.SessionID.String(), payload.ExportID.String())
	if err := p.s3.Upload(ctx, key, "text/csv", bytes.NewReader(csvData)); err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}

	if err := p.repo.MarkCompleted(ctx, export.ID, key, rowCount); err != nil {
		p.logger.Error("mark export completed failed", zap.Error(err), zap.String("export_id", export.ID.String()))
		return fmt.Errorf("update db: %w", err)
	}

	p.logger.Info("lead export completed",
		zap.String("export_id", export.ID.String()),
		zap.String("s3_key", key),
		zap.Int("rows", rowCount))
	return nil
}

// fail marks the export terminally failed and does not retry.
func (p *LeadExportProcessor) fail(ctx context.Context, id uuid.UUID, reason string) error {
	p.logger.Warn("lead export failed permanently", zap.String("export_id", id.String()), zap.String("reason", reason))
	if err := p.repo.MarkFailed(ctx, id, reason); err != nil {
		return fmt.Errorf("mark export failed: %w", err)
	}
	return nil
}

// Run starts the worker loop: dequeue, process, retry on transient error.
func (p *LeadExportProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("lead export worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
