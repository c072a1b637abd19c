package service

import (
	"context"
	"time"

	"zapdispatch/internal/constants"

	"github.com/sirupsen/logrus"
)

// Cleaner removes expired dispatch records.
type Cleaner interface {
	CleanupOldBatches(retentionDays int) error
}

// Scheduler runs the periodic retention cleanup of old batches and their
// messages.
type Scheduler struct {
	cleaner       Cleaner
	retentionDays int
	intervalHours int
	logger        *logrus.Logger
	stopCh        chan struct{}
}

func NewScheduler(cleaner Cleaner, retentionDays, intervalHours int, logger *logrus.Logger) *Scheduler {
	if intervalHours <= 0 {
		intervalHours = constants.DefaultCleanupIntervalHours
	}
	return &Scheduler{
		cleaner:       cleaner,
		retentionDays: retentionDays,
		intervalHours: intervalHours,
		logger:        logger,
		stopCh:        make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(s.intervalHours) * time.Hour)
	defer ticker.Stop()

	s.logger.Info("Starting retention cleanup scheduler")

	s.runCleanup()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context cancelled, stopping")
			return
		case <-s.stopCh:
			s.logger.Info("Scheduler stop signal received, stopping")
			return
		case <-ticker.C:
			s.runCleanup()
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
}

func (s *Scheduler) runCleanup() {
	s.logger.WithField("retentionDays", s.retentionDays).Info("Running scheduled cleanup")

	if err := s.cleaner.CleanupOldBatches(s.retentionDays); err != nil {
		s.logger.WithError(err).Error("Failed to cleanup old batches")
	} else {
		s.logger.Info("Successfully completed cleanup")
	}
}
