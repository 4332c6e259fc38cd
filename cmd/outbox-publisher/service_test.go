package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/harvestfield/farmlink-backend/pkg/config"
	"github.com/harvestfield/farmlink-backend/pkg/db/models"
	"github.com/harvestfield/farmlink-backend/pkg/enums"
	"github.com/harvestfield/farmlink-backend/pkg/logger"
	"github.com/harvestfield/farmlink-backend/pkg/outbox"
)

type fakeRepo struct {
	events    []models.OutboxEvent
	fetchErr  error
	published []uuid.UUID
	failed    []uuid.UUID
	markErr   error
}

func (r *fakeRepo) FetchPublishable(limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	if limit < len(r.events) {
		return r.events[:limit], nil
	}
	return r.events, nil
}

func (r *fakeRepo) MarkPublished(id uuid.UUID) error {
	if r.markErr != nil {
		return r.markErr
	}
	r.published = append(r.published, id)
	return nil
}

func (r *fakeRepo) MarkFailed(id uuid.UUID, err error) error {
	r.failed = append(r.failed, id)
	return nil
}

type fakePubSub struct{}

func (fakePubSub) Ping(context.Context) error            { return nil }
func (fakePubSub) Publisher(string) *gcppubsub.Publisher { return nil }

type fakePublishResult struct {
	err error
}

func (r fakePublishResult) Get(context.Context) (string, error) {
	return "server-id", r.err
}

type fakePublisher struct {
	topics  []string
	results []publishResult
	calls   int
}

func (p *fakePublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	p.calls++
	if len(p.results) == 0 {
		return fakePublishResult{}
	}
	result := p.results[0]
	p.results = p.results[1:]
	return result
}

func testConfig() *config.Config {
	return &config.Config{
		PubSub: config.PubSubConfig{
			DomainTopic: "fl-domain-events",
			OrdersTopic: "fl-order-events",
		},
		Outbox: config.OutboxConfig{
			BatchSize:      10,
			PollIntervalMS: 5,
			MaxAttempts:    3,
		},
	}
}

func newTestService(t *testing.T, repo *fakeRepo, pub *fakePublisher) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Config:     testConfig(),
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Repository: repo,
		PubSub:     fakePubSub{},
		PublisherFactory: func(topic string) publisher {
			pub.topics = append(pub.topics, topic)
			return pub
		},
	})
	require.NoError(t, err)
	return svc
}

func envelopePayload(t *testing.T) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	return raw
}

func outboxEvent(t *testing.T, eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType) models.OutboxEvent {
	t.Helper()
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: aggregate,
		AggregateID:   uuid.New(),
		Payload:       envelopePayload(t),
		CreatedAt:     time.Now().UTC(),
	}
}

func TestProcessBatchContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			outboxEvent(t, enums.EventOrderCreated, enums.AggregateOrder),
			outboxEvent(t, enums.EventOrderCreated, enums.AggregateOrder),
		},
	}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
			fakePublishResult{},
		},
	}
	svc := newTestService(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.True(t, processed)
	require.Equal(t, []uuid.UUID{repo.events[0].ID}, repo.failed)
	require.Equal(t, []uuid.UUID{repo.events[1].ID}, repo.published)
}

func TestProcessBatchRoutesEventsByTopic(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			outboxEvent(t, enums.EventOrderCreated, enums.AggregateOrder),
			outboxEvent(t, enums.EventOrderStateChanged, enums.AggregateOrder),
			outboxEvent(t, enums.EventCartConsolidated, enums.AggregateCart),
			outboxEvent(t, enums.EventFarmAvailabilityChanged, enums.AggregateFarm),
		},
	}
	pub := &fakePublisher{}
	svc := newTestService(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.True(t, processed)
	require.Equal(t, []string{
		"fl-order-events",
		"fl-order-events",
		"fl-domain-events",
		"fl-domain-events",
	}, pub.topics)
	require.Len(t, repo.published, 4)
}

func TestProcessBatchSurfacesMarkErrors(t *testing.T) {
	repo := &fakeRepo{
		events:  []models.OutboxEvent{outboxEvent(t, enums.EventCartConsolidated, enums.AggregateCart)},
		markErr: errors.New("connection reset"),
	}
	pub := &fakePublisher{}
	svc := newTestService(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	require.True(t, processed)
	require.ErrorContains(t, err, "connection reset")
}

func TestProcessBatchReportsIdleWhenEmpty(t *testing.T) {
	repo := &fakeRepo{}
	pub := &fakePublisher{}
	svc := newTestService(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.False(t, processed)
	require.Zero(t, pub.calls)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	repo := &fakeRepo{}
	pub := &fakePublisher{}
	svc := newTestService(t, repo, pub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("publisher did not stop after cancel")
	}
}

func TestNewServiceAppliesDefaults(t *testing.T) {
	cfg := testConfig()
	cfg.Outbox = config.OutboxConfig{}
	svc, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Repository: &fakeRepo{},
		PubSub:     fakePubSub{},
	})
	require.NoError(t, err)
	require.Equal(t, defaultBatchSize, svc.batchSize)
	require.Equal(t, defaultMaxAttempts, svc.maxAttempts)
	require.Equal(t, time.Duration(defaultPollMs)*time.Millisecond, svc.pollInterval)
}
