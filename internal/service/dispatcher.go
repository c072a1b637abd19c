package service

import (
	"context"
	"fmt"
	"time"

	"zapdispatch/internal/models"
	"zapdispatch/internal/tracing"
	"zapdispatch/pkg/transport"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Drain exit reasons
const (
	ExitReasonNoJobs     = "no-jobs"
	ExitReasonTimeBudget = "time-budget"
)

// DispatchProcessorConfig carries the drain loop tunables. Everything is
// explicit configuration so tests can compress timeouts.
type DispatchProcessorConfig struct {
	MaxAttempts       int
	BackoffStep       time.Duration
	Slack             time.Duration
	PerIterationLimit int
	TimeBudget        time.Duration
	MaxErrorLength    int
}

// DispatchProcessor drains a batch's due messages through the transport
// inside a wall-clock budget. Drain is designed to be re-invoked with the
// same batch id until nothing is left: each call only claims
// currently-eligible rows, and terminal rows are excluded by the status
// filter. A single concurrent drain per batch is assumed; the conditional
// claim keeps terminal rows from being reclaimed but two live drains can
// still double-send.
type DispatchProcessor struct {
	store     Store
	transport transport.Client
	config    DispatchProcessorConfig
	logger    *logrus.Logger

	// Injected for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

func NewDispatchProcessor(store Store, client transport.Client, config DispatchProcessorConfig, logger *logrus.Logger) *DispatchProcessor {
	return &DispatchProcessor{
		store:     store,
		transport: client,
		config:    config,
		logger:    logger,
		now:       time.Now,
		sleep:     sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// Drain runs one bounded slice of the dispatch loop using the configured
// per-iteration limit and time budget.
func (p *DispatchProcessor) Drain(ctx context.Context, batchID int64) (models.DrainOutcome, error) {
	return p.DrainSlice(ctx, batchID, p.config.PerIterationLimit, p.config.TimeBudget)
}

// DrainSlice repeatedly selects due messages of the batch, claims them, and
// attempts delivery with bounded retries, until no work remains or the
// wall-clock budget runs out. Budget exhaustion is a normal exit, not an
// error. Storage failures abort the slice.
func (p *DispatchProcessor) DrainSlice(ctx context.Context, batchID int64, limit int, budget time.Duration) (models.DrainOutcome, error) {
	ctx, span := tracing.StartSpan(ctx, "dispatch.drain",
		attribute.Int64("batch.id", batchID),
		attribute.Int64("budget.ms", budget.Milliseconds()),
	)
	defer span.End()

	deadline := p.now().Add(budget)
	outcome := models.DrainOutcome{}

	for {
		if !p.now().Before(deadline) {
			outcome.ExitReason = ExitReasonTimeBudget
			break
		}

		cutoff := p.now().Add(p.config.Slack)
		due, err := p.store.SelectDueMessages(ctx, batchID, cutoff, limit)
		if err != nil {
			tracing.RecordError(ctx, err)
			return outcome, fmt.Errorf("failed to select due messages: %w", err)
		}
		if len(due) == 0 {
			outcome.ExitReason = ExitReasonNoJobs
			break
		}

		budgetHit, err := p.processIteration(ctx, due, deadline, &outcome)
		if err != nil {
			tracing.RecordError(ctx, err)
			return outcome, err
		}
		if budgetHit {
			outcome.ExitReason = ExitReasonTimeBudget
			break
		}
	}

	span.SetAttributes(
		attribute.Int("drain.processed", outcome.Processed),
		attribute.String("drain.exit_reason", outcome.ExitReason),
	)

	p.logger.WithFields(logrus.Fields{
		"batchId":    batchID,
		"processed":  outcome.Processed,
		"exitReason": outcome.ExitReason,
	}).Info("Drain slice finished")

	return outcome, nil
}

// processIteration works through one selection in scheduled order. Returns
// whether the deadline passed mid-iteration.
func (p *DispatchProcessor) processIteration(ctx context.Context, due []*models.Message, deadline time.Time, outcome *models.DrainOutcome) (bool, error) {
	for _, msg := range due {
		claimed, err := p.store.ClaimMessage(ctx, msg.ID)
		if err != nil {
			return false, fmt.Errorf("failed to claim message %d: %w", msg.ID, err)
		}
		if !claimed {
			// Another drain finished this row between select and claim.
			continue
		}

		if sendErr := p.attemptSend(ctx, msg); sendErr != nil {
			diagnostic := truncateError(sendErr.Error(), p.config.MaxErrorLength)
			if err := p.store.MarkMessageFailed(ctx, msg.ID, diagnostic); err != nil {
				return false, fmt.Errorf("failed to mark message %d failed: %w", msg.ID, err)
			}
			p.logger.WithFields(logrus.Fields{
				"messageId": msg.ID,
				"batchId":   msg.BatchID,
				"recipient": SanitizeRecipient(msg.Recipient),
			}).WithError(sendErr).Warn("Message exhausted all send attempts")
		} else {
			if err := p.store.MarkMessageSent(ctx, msg.ID, p.now()); err != nil {
				return false, fmt.Errorf("failed to mark message %d sent: %w", msg.ID, err)
			}
			p.logger.WithFields(logrus.Fields{
				"messageId": msg.ID,
				"batchId":   msg.BatchID,
				"recipient": SanitizeRecipient(msg.Recipient),
			}).Debug("Message sent")
		}

		outcome.Processed++

		if !p.now().Before(deadline) {
			return true, nil
		}
	}

	return false, nil
}

// attemptSend delivers one message with bounded retries: linear backoff of
// BackoffStep x attemptNumber between attempts, first success wins.
func (p *DispatchProcessor) attemptSend(ctx context.Context, msg *models.Message) error {
	ctx, span := tracing.StartSpan(ctx, "dispatch.send",
		attribute.Int64("message.id", msg.ID),
	)
	defer span.End()

	var lastErr error
	for attempt := 1; attempt <= p.config.MaxAttempts; attempt++ {
		err := p.transport.SendText(ctx, msg.Recipient, msg.Body)
		if err == nil {
			span.SetAttributes(attribute.Int("send.attempts", attempt))
			return nil
		}
		lastErr = err

		if attempt < p.config.MaxAttempts {
			p.sleep(ctx, time.Duration(attempt)*p.config.BackoffStep)
		}
	}

	tracing.RecordError(ctx, lastErr)
	return lastErr
}

func truncateError(message string, limit int) string {
	if limit > 0 && len(message) > limit {
		return message[:limit]
	}
	return message
}
