package service

import (
	"context"
	"fmt"
	"time"

	apperrors "zapdispatch/internal/errors"
	"zapdispatch/internal/models"

	"github.com/sirupsen/logrus"
)

// Store is the persistence surface the dispatch core depends on.
type Store interface {
	CreateBatch(ctx context.Context, batch *models.Batch) (int64, error)
	GetBatch(ctx context.Context, id int64) (*models.Batch, error)
	UpdateBatchStatus(ctx context.Context, id int64, status models.BatchStatus) error
	InsertMessages(ctx context.Context, rows []models.MessageInsert) ([]int64, error)
	GetMessagesByIDs(ctx context.Context, ids []int64) ([]*models.Message, error)
	UpdateScheduledAt(ctx context.Context, id int64, scheduledAt time.Time) error
	SelectDueMessages(ctx context.Context, batchID int64, cutoff time.Time, limit int) ([]*models.Message, error)
	ClaimMessage(ctx context.Context, id int64) (bool, error)
	MarkMessageSent(ctx context.Context, id int64, sentAt time.Time) error
	MarkMessageFailed(ctx context.Context, id int64, lastError string) error
	CountMessagesByStatus(ctx context.Context, batchID int64) (map[models.MessageStatus]int, error)
	GetRecentErrors(ctx context.Context, batchID int64, limit int) ([]*models.Message, error)
}

// DispatchService wires the batch builder, jitter scheduler, and dispatch
// processor into the inbound create/resume/status operations. The persisted
// store is the shared state between invocations; the process itself is not
// long-lived.
type DispatchService struct {
	store     Store
	builder   *BatchBuilder
	jitter    *JitterScheduler
	processor *DispatchProcessor
	reporter  *StatusReporter
	window    *WindowPolicy

	defaultJitter models.JitterConfig
	timezone      string
	logger        *logrus.Logger
	now           func() time.Time
}

func NewDispatchService(store Store, builder *BatchBuilder, jitter *JitterScheduler, processor *DispatchProcessor, reporter *StatusReporter, window *WindowPolicy, defaultJitter models.JitterConfig, timezone string, logger *logrus.Logger) *DispatchService {
	return &DispatchService{
		store:         store,
		builder:       builder,
		jitter:        jitter,
		processor:     processor,
		reporter:      reporter,
		window:        window,
		defaultJitter: defaultJitter,
		timezone:      timezone,
		logger:        logger,
		now:           time.Now,
	}
}

// CreateDispatch builds and schedules a new batch and runs its first drain
// slice. Validation rejections happen before any persistence; a batch whose
// contacts all normalize to nothing keeps its header but is reported as the
// distinct no-valid-numbers condition.
func (s *DispatchService) CreateDispatch(ctx context.Context, req *models.DispatchRequest) (*models.DispatchResponse, error) {
	if len(req.Templates) == 0 {
		return nil, ErrNoTemplates
	}
	if len(req.Contacts) == 0 {
		return nil, ErrNoContacts
	}

	anchor, err := s.resolveAnchor(req)
	if err != nil {
		return nil, err
	}

	batchID, err := s.builder.CreateBatch(ctx, req.ListID, req.ListName)
	if err != nil {
		return nil, err
	}

	rows, err := s.builder.BuildMessages(batchID, req.Contacts, req.Templates, anchor, req.CadenceDays, req.ListID)
	if err != nil {
		return nil, err
	}

	ids, err := s.store.InsertMessages(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("failed to insert messages: %w", err)
	}

	jitterCfg := s.resolveJitter(req)
	if err := s.jitter.ApplySchedule(ctx, ids, jitterCfg.MinDelayMs, jitterCfg.MaxDelayMs, jitterCfg.PauseEveryN, jitterCfg.PauseDurationMs); err != nil {
		return nil, err
	}

	if err := s.store.UpdateBatchStatus(ctx, batchID, models.BatchStatusScheduled); err != nil {
		return nil, err
	}

	outcome, err := s.processor.Drain(ctx, batchID)
	if err != nil {
		return nil, err
	}

	return &models.DispatchResponse{
		BatchID:    batchID,
		Queued:     len(ids),
		FirstSlice: outcome,
	}, nil
}

// ResumeDispatch runs one more drain slice for an existing batch. The
// ignoreWindow flag in the request shape is accepted but deliberately not
// acted on.
func (s *DispatchService) ResumeDispatch(ctx context.Context, batchID int64) (*models.DrainOutcome, error) {
	batch, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, fmt.Sprintf("batch %d not found", batchID))
	}

	outcome, err := s.processor.Drain(ctx, batchID)
	if err != nil {
		return nil, err
	}

	return &outcome, nil
}

// Status returns the aggregate snapshot for a batch.
func (s *DispatchService) Status(ctx context.Context, batchID int64) (*models.BatchStatusReport, error) {
	batch, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, fmt.Sprintf("batch %d not found", batchID))
	}

	return s.reporter.Status(ctx, batchID)
}

// resolveAnchor picks the explicit anchor or now, then pushes it to the next
// window opening unless the caller bypassed the window.
func (s *DispatchService) resolveAnchor(req *models.DispatchRequest) (time.Time, error) {
	anchor := s.now()
	if req.Anchor != nil {
		anchor = *req.Anchor
	}

	if req.SkipWindow {
		return anchor, nil
	}

	timezone := s.timezone
	if req.Timezone != "" {
		timezone = req.Timezone
	}

	inWindow, err := s.window.InWindow(anchor, timezone)
	if err != nil {
		return time.Time{}, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "invalid timezone")
	}
	if inWindow {
		return anchor, nil
	}

	next, err := s.window.NextWindowStart(anchor, timezone)
	if err != nil {
		return time.Time{}, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "invalid timezone")
	}

	return next, nil
}

func (s *DispatchService) resolveJitter(req *models.DispatchRequest) models.JitterConfig {
	cfg := s.defaultJitter
	if req.MinDelayMs != nil {
		cfg.MinDelayMs = *req.MinDelayMs
	}
	if req.MaxDelayMs != nil {
		cfg.MaxDelayMs = *req.MaxDelayMs
	}
	if req.PauseEveryN != nil {
		cfg.PauseEveryN = *req.PauseEveryN
	}
	if req.PauseDurationMs != nil {
		cfg.PauseDurationMs = *req.PauseDurationMs
	}
	return cfg
}
