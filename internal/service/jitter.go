package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

// JitterScheduler rewrites the scheduled times of a set of persisted
// messages into a monotonically increasing, randomly-gapped, periodically
// paused sequence. The random source is injected so schedules are
// reproducible under test.
type JitterScheduler struct {
	store  Store
	rng    *rand.Rand
	now    func() time.Time
	logger *logrus.Logger
}

func NewJitterScheduler(store Store, rng *rand.Rand, logger *logrus.Logger) *JitterScheduler {
	return &JitterScheduler{
		store:  store,
		rng:    rng,
		now:    time.Now,
		logger: logger,
	}
}

// ApplySchedule loads the messages ordered by their current scheduled time
// ascending and walks a cursor forward over them. The cursor starts at
// max(now, first message's scheduled time), so no message ever moves earlier
// than its pre-jitter value and the resulting schedule is non-decreasing.
func (s *JitterScheduler) ApplySchedule(ctx context.Context, messageIDs []int64, minGapMs, maxGapMs int64, pauseEveryN int, pauseDurationMs int64) error {
	if len(messageIDs) == 0 {
		return nil
	}

	messages, err := s.store.GetMessagesByIDs(ctx, messageIDs)
	if err != nil {
		return fmt.Errorf("failed to load messages for scheduling: %w", err)
	}
	if len(messages) == 0 {
		return nil
	}

	cursor := s.now()
	if first := messages[0].ScheduledAt; first.After(cursor) {
		cursor = first
	}

	for i, msg := range messages {
		if i > 0 {
			cursor = cursor.Add(time.Duration(s.gapMs(minGapMs, maxGapMs)) * time.Millisecond)
			if pauseEveryN > 0 && i%pauseEveryN == 0 {
				cursor = cursor.Add(time.Duration(pauseDurationMs) * time.Millisecond)
			}
		}

		if err := s.store.UpdateScheduledAt(ctx, msg.ID, cursor); err != nil {
			return fmt.Errorf("failed to reschedule message %d: %w", msg.ID, err)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"messages": len(messages),
		"firstAt":  messages[0].ScheduledAt,
		"lastAt":   cursor,
	}).Info("Applied jitter schedule")

	return nil
}

// gapMs draws one inter-message gap: the fixed minimum when the range is
// degenerate, otherwise uniform over the inclusive range [min, max].
func (s *JitterScheduler) gapMs(minGapMs, maxGapMs int64) int64 {
	if minGapMs >= maxGapMs {
		if minGapMs < 0 {
			return 0
		}
		return minGapMs
	}
	return minGapMs + s.rng.Int63n(maxGapMs-minGapMs+1)
}
