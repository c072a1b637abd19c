package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"zapdispatch/internal/models"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// fakeStore is an in-memory Store for unit tests.
type fakeStore struct {
	mu          sync.Mutex
	batches     map[int64]*models.Batch
	messages    map[int64]*models.Message
	nextBatchID int64
	nextMsgID   int64

	selectErr error
	claimErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		batches:  make(map[int64]*models.Batch),
		messages: make(map[int64]*models.Message),
	}
}

func (f *fakeStore) CreateBatch(ctx context.Context, batch *models.Batch) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextBatchID++
	stored := *batch
	stored.ID = f.nextBatchID
	stored.CreatedAt = time.Now()
	f.batches[stored.ID] = &stored
	return stored.ID, nil
}

func (f *fakeStore) GetBatch(ctx context.Context, id int64) (*models.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	batch, ok := f.batches[id]
	if !ok {
		return nil, nil
	}
	copied := *batch
	return &copied, nil
}

func (f *fakeStore) UpdateBatchStatus(ctx context.Context, id int64, status models.BatchStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if batch, ok := f.batches[id]; ok {
		batch.Status = status
	}
	return nil
}

func (f *fakeStore) InsertMessages(ctx context.Context, rows []models.MessageInsert) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		f.nextMsgID++
		f.messages[f.nextMsgID] = &models.Message{
			ID:           f.nextMsgID,
			BatchID:      row.BatchID,
			SourceListID: row.SourceListID,
			Recipient:    row.Recipient,
			Status:       models.MessageStatusQueued,
			Body:         row.Body,
			CreatedAt:    time.Now(),
			ScheduledAt:  row.ScheduledAt,
		}
		ids = append(ids, f.nextMsgID)
	}
	return ids, nil
}

func (f *fakeStore) GetMessagesByIDs(ctx context.Context, ids []int64) ([]*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var messages []*models.Message
	for _, id := range ids {
		if msg, ok := f.messages[id]; ok {
			copied := *msg
			messages = append(messages, &copied)
		}
	}
	sortMessages(messages)
	return messages, nil
}

func (f *fakeStore) UpdateScheduledAt(ctx context.Context, id int64, scheduledAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if msg, ok := f.messages[id]; ok {
		msg.ScheduledAt = scheduledAt
	}
	return nil
}

func (f *fakeStore) SelectDueMessages(ctx context.Context, batchID int64, cutoff time.Time, limit int) ([]*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.selectErr != nil {
		return nil, f.selectErr
	}

	var due []*models.Message
	for _, msg := range f.messages {
		if msg.BatchID != batchID {
			continue
		}
		if msg.Status != models.MessageStatusQueued && msg.Status != models.MessageStatusSending {
			continue
		}
		if msg.ScheduledAt.After(cutoff) {
			continue
		}
		copied := *msg
		due = append(due, &copied)
	}
	sortMessages(due)
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (f *fakeStore) ClaimMessage(ctx context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.claimErr != nil {
		return false, f.claimErr
	}

	msg, ok := f.messages[id]
	if !ok {
		return false, nil
	}
	if msg.Status != models.MessageStatusQueued && msg.Status != models.MessageStatusSending {
		return false, nil
	}
	msg.Status = models.MessageStatusSending
	msg.LastError = nil
	return true, nil
}

func (f *fakeStore) MarkMessageSent(ctx context.Context, id int64, sentAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if msg, ok := f.messages[id]; ok {
		msg.Status = models.MessageStatusSent
		msg.LastError = nil
		msg.SentAt = &sentAt
	}
	return nil
}

func (f *fakeStore) MarkMessageFailed(ctx context.Context, id int64, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if msg, ok := f.messages[id]; ok {
		msg.Status = models.MessageStatusError
		msg.LastError = &lastError
	}
	return nil
}

func (f *fakeStore) CountMessagesByStatus(ctx context.Context, batchID int64) (map[models.MessageStatus]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	counts := make(map[models.MessageStatus]int)
	for _, msg := range f.messages {
		if msg.BatchID == batchID {
			counts[msg.Status]++
		}
	}
	return counts, nil
}

func (f *fakeStore) GetRecentErrors(ctx context.Context, batchID int64, limit int) ([]*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errored []*models.Message
	for _, msg := range f.messages {
		if msg.BatchID == batchID && msg.LastError != nil {
			copied := *msg
			errored = append(errored, &copied)
		}
	}
	sort.Slice(errored, func(i, j int) bool { return errored[i].ID > errored[j].ID })
	if len(errored) > limit {
		errored = errored[:limit]
	}
	return errored, nil
}

func sortMessages(messages []*models.Message) {
	sort.Slice(messages, func(i, j int) bool {
		if messages[i].ScheduledAt.Equal(messages[j].ScheduledAt) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].ScheduledAt.Before(messages[j].ScheduledAt)
	})
}

// fakeTransport delegates to caller-provided functions.
type fakeTransport struct {
	mu        sync.Mutex
	sendText  func(number, text string) error
	sendMedia func(number, mediaURL, caption string) error
	textCalls int
}

func (f *fakeTransport) SendText(ctx context.Context, number, text string) error {
	f.mu.Lock()
	f.textCalls++
	f.mu.Unlock()
	if f.sendText == nil {
		return nil
	}
	return f.sendText(number, text)
}

func (f *fakeTransport) SendMedia(ctx context.Context, number, mediaURL, caption string) error {
	if f.sendMedia == nil {
		return nil
	}
	return f.sendMedia(number, mediaURL, caption)
}

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.textCalls
}
