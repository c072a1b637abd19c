package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"zapdispatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProcessorConfig() DispatchProcessorConfig {
	return DispatchProcessorConfig{
		MaxAttempts:       3,
		BackoffStep:       600 * time.Millisecond,
		Slack:             1500 * time.Millisecond,
		PerIterationLimit: 25,
		TimeBudget:        45 * time.Second,
		MaxErrorLength:    2000,
	}
}

// newTestProcessor wires a processor with a manually advanced clock. Sleeps
// advance the clock instead of blocking, so backoff is observable without
// real waiting.
func newTestProcessor(store *fakeStore, client *fakeTransport, cfg DispatchProcessorConfig, start time.Time) (*DispatchProcessor, *time.Time) {
	clock := start
	p := NewDispatchProcessor(store, client, cfg, testLogger())
	p.now = func() time.Time { return clock }
	p.sleep = func(ctx context.Context, d time.Duration) { clock = clock.Add(d) }
	return p, &clock
}

func TestDrainSlice_ZeroBudgetExitsImmediately(t *testing.T) {
	store := newFakeStore()
	client := &fakeTransport{}
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	seedMessages(t, store, 1, 5, now.Add(-time.Minute))

	proc, _ := newTestProcessor(store, client, testProcessorConfig(), now)

	outcome, err := proc.DrainSlice(context.Background(), 1, 25, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, outcome.Processed)
	assert.Equal(t, ExitReasonTimeBudget, outcome.ExitReason)
	assert.Equal(t, 0, client.calls())
}

func TestDrainSlice_NoDueMessages(t *testing.T) {
	store := newFakeStore()
	client := &fakeTransport{}
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	proc, _ := newTestProcessor(store, client, testProcessorConfig(), now)

	outcome, err := proc.DrainSlice(context.Background(), 1, 25, 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, outcome.Processed)
	assert.Equal(t, ExitReasonNoJobs, outcome.ExitReason)
}

func TestDrainSlice_SendsAllDueMessages(t *testing.T) {
	store := newFakeStore()
	client := &fakeTransport{}
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	ids := seedMessages(t, store, 1, 3, now.Add(-time.Minute))

	proc, _ := newTestProcessor(store, client, testProcessorConfig(), now)

	outcome, err := proc.DrainSlice(context.Background(), 1, 25, 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3, outcome.Processed)
	assert.Equal(t, ExitReasonNoJobs, outcome.ExitReason)
	assert.Equal(t, 3, client.calls())

	messages, err := store.GetMessagesByIDs(context.Background(), ids)
	require.NoError(t, err)
	for _, msg := range messages {
		assert.Equal(t, models.MessageStatusSent, msg.Status)
		require.NotNil(t, msg.SentAt)
	}
}

func TestDrainSlice_SlackPicksUpNearDueMessages(t *testing.T) {
	store := newFakeStore()
	client := &fakeTransport{}
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	// One second ahead of now, inside the 1.5s eligibility slack
	seedMessages(t, store, 1, 1, now.Add(time.Second))
	// Far beyond the slack, must not be picked up
	farIDs := seedMessages(t, store, 1, 1, now.Add(time.Hour))

	proc, _ := newTestProcessor(store, client, testProcessorConfig(), now)

	outcome, err := proc.DrainSlice(context.Background(), 1, 25, 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Processed)
	assert.Equal(t, ExitReasonNoJobs, outcome.ExitReason)

	messages, err := store.GetMessagesByIDs(context.Background(), farIDs)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusQueued, messages[0].Status)
}

func TestDrainSlice_RetriesThenSucceeds(t *testing.T) {
	store := newFakeStore()
	attempts := 0
	client := &fakeTransport{
		sendText: func(number, text string) error {
			attempts++
			if attempts < 3 {
				return errors.New("connection reset")
			}
			return nil
		},
	}
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	ids := seedMessages(t, store, 1, 1, now.Add(-time.Minute))

	proc, clock := newTestProcessor(store, client, testProcessorConfig(), now)

	outcome, err := proc.DrainSlice(context.Background(), 1, 25, 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Processed)
	assert.Equal(t, 3, client.calls())

	messages, err := store.GetMessagesByIDs(context.Background(), ids)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusSent, messages[0].Status)

	// Linear backoff: 600ms after attempt 1, 1200ms after attempt 2
	assert.Equal(t, now.Add(1800*time.Millisecond), *clock)
}

func TestDrainSlice_ExhaustedAttemptsMarkError(t *testing.T) {
	store := newFakeStore()
	client := &fakeTransport{
		sendText: func(number, text string) error {
			return errors.New("upstream 500")
		},
	}
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	ids := seedMessages(t, store, 1, 1, now.Add(-time.Minute))

	proc, _ := newTestProcessor(store, client, testProcessorConfig(), now)

	outcome, err := proc.DrainSlice(context.Background(), 1, 25, 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Processed)
	assert.Equal(t, 3, client.calls())

	messages, err := store.GetMessagesByIDs(context.Background(), ids)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusError, messages[0].Status)
	require.NotNil(t, messages[0].LastError)
	assert.Equal(t, "upstream 500", *messages[0].LastError)
}

func TestDrainSlice_ErrorDiagnosticTruncated(t *testing.T) {
	store := newFakeStore()
	long := strings.Repeat("x", 5000)
	client := &fakeTransport{
		sendText: func(number, text string) error {
			return errors.New(long)
		},
	}
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	ids := seedMessages(t, store, 1, 1, now.Add(-time.Minute))

	cfg := testProcessorConfig()
	proc, _ := newTestProcessor(store, client, cfg, now)

	_, err := proc.DrainSlice(context.Background(), 1, 25, 30*time.Second)
	require.NoError(t, err)

	messages, err := store.GetMessagesByIDs(context.Background(), ids)
	require.NoError(t, err)
	require.NotNil(t, messages[0].LastError)
	assert.Len(t, *messages[0].LastError, cfg.MaxErrorLength)
}

func TestDrainSlice_BudgetExhaustedMidIteration(t *testing.T) {
	store := newFakeStore()
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	var clockRef *time.Time
	client := &fakeTransport{
		sendText: func(number, text string) error {
			// Each send consumes 6s of the 10s budget
			*clockRef = clockRef.Add(6 * time.Second)
			return nil
		},
	}

	seedMessages(t, store, 1, 5, now.Add(-time.Minute))

	proc, clock := newTestProcessor(store, client, testProcessorConfig(), now)
	clockRef = clock

	outcome, err := proc.DrainSlice(context.Background(), 1, 25, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Processed)
	assert.Equal(t, ExitReasonTimeBudget, outcome.ExitReason)

	counts, err := store.CountMessagesByStatus(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[models.MessageStatusSent])
	assert.Equal(t, 3, counts[models.MessageStatusQueued])
}

func TestDrainSlice_SkipsRowsClaimedElsewhere(t *testing.T) {
	store := newFakeStore()
	client := &fakeTransport{}
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	ids := seedMessages(t, store, 1, 2, now.Add(-time.Minute))

	// Finish the first row out from under the drain
	require.NoError(t, store.MarkMessageSent(context.Background(), ids[0], now))

	proc, _ := newTestProcessor(store, client, testProcessorConfig(), now)

	outcome, err := proc.DrainSlice(context.Background(), 1, 25, 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Processed)
	assert.Equal(t, 1, client.calls())
}

func TestDrainSlice_ReclaimsRowsStrandedInSending(t *testing.T) {
	store := newFakeStore()
	client := &fakeTransport{}
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	ids := seedMessages(t, store, 1, 1, now.Add(-time.Minute))

	// Simulate a slice killed after claiming but before delivery
	claimed, err := store.ClaimMessage(context.Background(), ids[0])
	require.NoError(t, err)
	require.True(t, claimed)

	proc, _ := newTestProcessor(store, client, testProcessorConfig(), now)

	outcome, err := proc.DrainSlice(context.Background(), 1, 25, 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Processed)

	messages, err := store.GetMessagesByIDs(context.Background(), ids)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusSent, messages[0].Status)
}

func TestDrainSlice_SelectFailureAborts(t *testing.T) {
	store := newFakeStore()
	store.selectErr = fmt.Errorf("database is locked")
	client := &fakeTransport{}
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	proc, _ := newTestProcessor(store, client, testProcessorConfig(), now)

	_, err := proc.DrainSlice(context.Background(), 1, 25, 30*time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to select due messages")
}

func TestTruncateError(t *testing.T) {
	assert.Equal(t, "short", truncateError("short", 2000))
	assert.Equal(t, strings.Repeat("a", 10), truncateError(strings.Repeat("a", 50), 10))
	assert.Equal(t, "unlimited", truncateError("unlimited", 0))
}
