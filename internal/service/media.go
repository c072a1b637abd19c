package service

import (
	"context"
	"time"

	apperrors "zapdispatch/internal/errors"
	"zapdispatch/internal/models"
	"zapdispatch/pkg/transport"

	"github.com/sirupsen/logrus"
)

// MediaService is the synchronous media-attachment flow: one normalized
// recipient, one transport call with the same bounded retries as the drain
// loop, no persistence and no scheduling.
type MediaService struct {
	transport   transport.Client
	maxAttempts int
	backoffStep time.Duration
	logger      *logrus.Logger

	sleep func(ctx context.Context, d time.Duration)
}

func NewMediaService(client transport.Client, maxAttempts int, backoffStep time.Duration, logger *logrus.Logger) *MediaService {
	return &MediaService{
		transport:   client,
		maxAttempts: maxAttempts,
		backoffStep: backoffStep,
		logger:      logger,
		sleep:       sleepContext,
	}
}

func (s *MediaService) Send(ctx context.Context, req *models.MediaSendRequest) error {
	if req.MediaURL == "" {
		return apperrors.New(apperrors.ErrCodeBadRequest, "mediaUrl is required")
	}

	recipient := NormalizeAddress(req.Number)
	if recipient == "" {
		return apperrors.New(apperrors.ErrCodeNoValidNumbers, "number did not normalize to a valid address")
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err := s.transport.SendMedia(ctx, recipient, req.MediaURL, req.Caption)
		if err == nil {
			s.logger.WithFields(logrus.Fields{
				"recipient": SanitizeRecipient(recipient),
				"attempts":  attempt,
			}).Info("Media sent")
			return nil
		}
		lastErr = err

		if attempt < s.maxAttempts {
			s.sleep(ctx, time.Duration(attempt)*s.backoffStep)
		}
	}

	return apperrors.Wrap(lastErr, apperrors.ErrCodeTransport, "media send exhausted all attempts")
}
