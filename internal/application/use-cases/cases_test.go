package use_cases

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"marketplace/internal/appers"
	"marketplace/internal/application/entity"
	"marketplace/internal/application/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeService struct {
	service.Service
	enqueued []entity.EnqueueRequest
	err      error
}

func (f *fakeService) Enqueue(_ context.Context, req entity.EnqueueRequest) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.enqueued = append(f.enqueued, req)
	return int64(len(f.enqueued)), nil
}

func newUseCase(svc *fakeService) *UseCase {
	return NewUseCase(svc, zap.NewNop().Sugar())
}

func TestConsumerMessageEnqueues(t *testing.T) {
	svc := &fakeService{}
	msg := []byte(`{"event_type":"template.published","aggregate_type":"template","aggregate_id":"t-1","payload":{"title":"Card"}}`)

	require.NoError(t, newUseCase(svc).ConsumerMessage(context.Background(), msg, time.Now()))
	require.Len(t, svc.enqueued, 1)
	assert.Equal(t, "t-1", svc.enqueued[0].AggregateID)
	assert.JSONEq(t, `{"title":"Card"}`, string(svc.enqueued[0].Payload))
}

func TestConsumerMessageInvalid(t *testing.T) {
	cases := map[string]string{
		"not json":         `{"event_type":`,
		"missing id":       `{"event_type":"template.published","aggregate_type":"template"}`,
		"bad event format": `{"event_type":"Published","aggregate_type":"template","aggregate_id":"t-1"}`,
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &fakeService{}
			err := newUseCase(svc).ConsumerMessage(context.Background(), []byte(msg), time.Now())
			require.ErrorIs(t, err, appers.ErrInvalidMessage)
			assert.Empty(t, svc.enqueued)
		})
	}
}

func TestConsumerMessageUnknownTypeIsInvalid(t *testing.T) {
	svc := &fakeService{err: fmt.Errorf("template.archived: %w", appers.ErrUnknownEventType)}
	msg := []byte(`{"event_type":"template.archived","aggregate_type":"template","aggregate_id":"t-1"}`)

	err := newUseCase(svc).ConsumerMessage(context.Background(), msg, time.Now())
	assert.ErrorIs(t, err, appers.ErrInvalidMessage)
}

func TestConsumerMessageStorageErrorIsRetryable(t *testing.T) {
	dbErr := errors.New("connection reset")
	svc := &fakeService{err: dbErr}
	msg := []byte(`{"event_type":"review.created","aggregate_type":"review","aggregate_id":"r-1"}`)

	err := newUseCase(svc).ConsumerMessage(context.Background(), msg, time.Now())
	require.ErrorIs(t, err, dbErr)
	assert.NotErrorIs(t, err, appers.ErrInvalidMessage)
}
