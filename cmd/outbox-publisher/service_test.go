package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subtrackhq/subtrack-backend/pkg/config"
	"github.com/subtrackhq/subtrack-backend/pkg/db/models"
	"github.com/subtrackhq/subtrack-backend/pkg/enums"
	"github.com/subtrackhq/subtrack-backend/pkg/logger"
)

type fakeRepository struct {
	events    []models.OutboxEvent
	fetchErr  error
	published []uuid.UUID
	failed    []uuid.UUID
	failedErr []error
	fetchArgs [][2]int
}

func (f *fakeRepository) FetchUnpublished(limit, maxAttempts int) ([]models.OutboxEvent, error) {
	f.fetchArgs = append(f.fetchArgs, [2]int{limit, maxAttempts})
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.events, nil
}

func (f *fakeRepository) MarkPublished(id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepository) MarkFailed(id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	f.failedErr = append(f.failedErr, err)
	return nil
}

type fakeResult struct {
	err error
}

func (r *fakeResult) Get(ctx context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "msg-1", nil
}

type fakePublisher struct {
	messages []*gcppubsub.Message
	errs     map[string]error
}

func (p *fakePublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	p.messages = append(p.messages, msg)
	if err, ok := p.errs[msg.Attributes[aggregateIDAttribute]]; ok {
		return &fakeResult{err: err}
	}
	return &fakeResult{}
}

func testService(t *testing.T, repo *fakeRepository, pub *fakePublisher) *Service {
	t.Helper()
	cfg := &config.Config{}
	cfg.Outbox.BatchSize = 10
	cfg.Outbox.PollIntervalMS = 5
	cfg.Outbox.MaxAttempts = 3
	svc, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Repository: repo,
		Publisher:  pub,
	})
	require.NoError(t, err)
	return svc
}

func sampleEvent(eventType enums.EmailEventType) models.OutboxEvent {
	return models.OutboxEvent{
		ID:          uuid.New(),
		EventType:   eventType,
		AggregateID: uuid.New(),
		Payload:     []byte(`{"version":1}`),
		CreatedAt:   time.Now(),
	}
}

func TestProcessBatchPublishesAndMarks(t *testing.T) {
	first := sampleEvent(enums.EmailEventMagicLink)
	second := sampleEvent(enums.EmailEventSubscriptionCreated)
	repo := &fakeRepository{events: []models.OutboxEvent{first, second}}
	pub := &fakePublisher{}
	svc := testService(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	require.Len(t, pub.messages, 2)
	assert.Equal(t, "email.magic_link", pub.messages[0].Attributes[eventTypeAttribute])
	assert.Equal(t, first.AggregateID.String(), pub.messages[0].Attributes[aggregateIDAttribute])
	assert.JSONEq(t, `{"version":1}`, string(pub.messages[0].Data))

	assert.Equal(t, []uuid.UUID{first.ID, second.ID}, repo.published)
	assert.Empty(t, repo.failed)
}

func TestProcessBatchMarksFailedAndContinues(t *testing.T) {
	broken := sampleEvent(enums.EmailEventCampaignBatch)
	healthy := sampleEvent(enums.EmailEventVerification)
	repo := &fakeRepository{events: []models.OutboxEvent{broken, healthy}}
	pub := &fakePublisher{errs: map[string]error{
		broken.AggregateID.String(): errors.New("topic unavailable"),
	}}
	svc := testService(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	require.Len(t, repo.failed, 1)
	assert.Equal(t, broken.ID, repo.failed[0])
	assert.EqualError(t, repo.failedErr[0], "topic unavailable")

	require.Len(t, repo.published, 1)
	assert.Equal(t, healthy.ID, repo.published[0])
}

func TestProcessBatchEmptyIsNoop(t *testing.T) {
	repo := &fakeRepository{}
	pub := &fakePublisher{}
	svc := testService(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
	assert.Empty(t, pub.messages)
}

func TestProcessBatchPassesConfiguredLimits(t *testing.T) {
	repo := &fakeRepository{}
	svc := testService(t, repo, &fakePublisher{})

	_, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, repo.fetchArgs, 1)
	assert.Equal(t, [2]int{10, 3}, repo.fetchArgs[0])
}

func TestProcessBatchSurfacesFetchError(t *testing.T) {
	repo := &fakeRepository{fetchErr: errors.New("db down")}
	svc := testService(t, repo, &fakePublisher{})

	processed, err := svc.processBatch(context.Background())
	assert.False(t, processed)
	assert.EqualError(t, err, "db down")
}

func TestNewServiceAppliesDefaults(t *testing.T) {
	svc, err := NewService(ServiceParams{
		Config:     &config.Config{},
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Repository: &fakeRepository{},
		Publisher:  &fakePublisher{},
	})
	require.NoError(t, err)
	assert.Equal(t, defaultBatchSize, svc.batchSize)
	assert.Equal(t, defaultMaxAttempts, svc.maxAttempts)
	assert.Equal(t, time.Duration(defaultPollMs)*time.Millisecond, svc.pollInterval)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)

	_, err = NewService(ServiceParams{
		Config: &config.Config{},
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	assert.Error(t, err)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	repo := &fakeRepository{}
	svc := testService(t, repo, &fakePublisher{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNextBackoffDoublesAndCaps(t *testing.T) {
	base := 500 * time.Millisecond
	assert.Equal(t, time.Second, nextBackoff(base, base, maxBackoff))
	assert.Equal(t, maxBackoff, nextBackoff(8*time.Second, base, maxBackoff))
	assert.Equal(t, time.Second, nextBackoff(0, base, maxBackoff))
}

func TestWithJitterStaysWithinWindow(t *testing.T) {
	d := time.Second
	for i := 0; i < 20; i++ {
		got := withJitter(d)
		assert.GreaterOrEqual(t, got, d)
		assert.Less(t, got, d+jitterWindow)
	}
}
