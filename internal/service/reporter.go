package service

import (
	"context"
	"fmt"

	"zapdispatch/internal/models"
)

const recentErrorLimit = 10

// StatusReporter aggregates per-batch counts for polling clients. Pure read,
// no mutation.
type StatusReporter struct {
	store Store
}

func NewStatusReporter(store Store) *StatusReporter {
	return &StatusReporter{store: store}
}

// Status buckets the batch's messages: sent; error as failed; queued and
// sending together as queued. Up to the 10 most recently errored messages
// are included for diagnostics.
func (r *StatusReporter) Status(ctx context.Context, batchID int64) (*models.BatchStatusReport, error) {
	counts, err := r.store.CountMessagesByStatus(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate batch %d: %w", batchID, err)
	}

	report := &models.BatchStatusReport{
		Sent:   counts[models.MessageStatusSent],
		Failed: counts[models.MessageStatusError],
		Queued: counts[models.MessageStatusQueued] + counts[models.MessageStatusSending],
	}
	report.InProgress = report.Queued > 0

	recent, err := r.store.GetRecentErrors(ctx, batchID, recentErrorLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent errors for batch %d: %w", batchID, err)
	}

	report.RecentErrors = make([]models.Message, 0, len(recent))
	for _, msg := range recent {
		report.RecentErrors = append(report.RecentErrors, *msg)
	}

	return report, nil
}
