package use_cases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketplace/internal/appers"
	"marketplace/internal/application/entity"
	"marketplace/internal/application/service"
	"marketplace/pkg/validator"

	"go.uber.org/zap"
)

type UseCaser interface {
	Enqueue(ctx context.Context, req entity.EnqueueRequest) (int64, error)
	PublishOrderItemContent(ctx context.Context, in entity.OrderItemContent) (int64, error)
	ConsumerMessage(ctx context.Context, msg []byte, msgTime time.Time) error

	GetEvent(ctx context.Context, id int64) (*entity.LedgerEvent, error)
	ListFailed(ctx context.Context, limit int) ([]entity.LedgerEvent, error)
	ResetEvent(ctx context.Context, id int64) (*entity.LedgerEvent, error)

	GetSyncState(ctx context.Context, aggregateType, aggregateID string) (*entity.SyncStateResponse, error)
	ListNeedsSync(ctx context.Context, aggregateType string, limit int) ([]entity.SyncTracker, error)
	ResetSync(ctx context.Context, aggregateType, aggregateID string) (*entity.ResetSyncResponse, error)

	RunDispatch(ctx context.Context, limit int) (int, error)
	ReclaimStale(ctx context.Context) (int, error)
	PurgeCompleted(ctx context.Context) (int64, error)

	HealthCheck(ctx context.Context) entity.HealthReport
}

type UseCase struct {
	service service.Service
	logger  *zap.SugaredLogger
}

func NewUseCase(service service.Service, logger *zap.SugaredLogger) *UseCase {
	return &UseCase{
		service: service,
		logger:  logger,
	}
}

func (u *UseCase) HealthCheck(ctx context.Context) entity.HealthReport {
	return u.service.HealthCheck(ctx)
}

func (u *UseCase) Enqueue(ctx context.Context, req entity.EnqueueRequest) (int64, error) {
	u.logger.Debugf("[%s %s] Enqueue %s started", req.AggregateType, req.AggregateID, req.EventType)
	return u.service.Enqueue(ctx, req)
}

func (u *UseCase) PublishOrderItemContent(ctx context.Context, in entity.OrderItemContent) (int64, error) {
	u.logger.Debugf("[order_item %s] PublishOrderItemContent started", in.ID)
	return u.service.PublishOrderItemContent(ctx, in)
}

// ConsumerMessage превращает факт из kafka в строку ledger.
// Ошибка с appers.ErrInvalidMessage означает, что сообщение надо пропустить, остальные - повторить.
func (u *UseCase) ConsumerMessage(ctx context.Context, msg []byte, msgTime time.Time) error {
	var req entity.EnqueueRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		return fmt.Errorf("%w: %v", appers.ErrInvalidMessage, err)
	}
	if err := validator.Validate.Struct(&req); err != nil {
		return fmt.Errorf("%w: %v", appers.ErrInvalidMessage, err)
	}

	id, err := u.service.Enqueue(ctx, req)
	if errors.Is(err, appers.ErrUnknownEventType) {
		return fmt.Errorf("%w: %v", appers.ErrInvalidMessage, err)
	}
	if err != nil {
		return err
	}

	u.logger.Debugf("[ID %d] fact %s from kafka enqueued, message time: %s", id, req.EventType, msgTime.Format(time.RFC3339))
	return nil
}

func (u *UseCase) GetEvent(ctx context.Context, id int64) (*entity.LedgerEvent, error) {
	return u.service.GetEvent(ctx, id)
}

func (u *UseCase) ListFailed(ctx context.Context, limit int) ([]entity.LedgerEvent, error) {
	return u.service.ListFailed(ctx, limit)
}

func (u *UseCase) ResetEvent(ctx context.Context, id int64) (*entity.LedgerEvent, error) {
	u.logger.Infof("[ID %d] ResetEvent requested", id)
	return u.service.ResetEvent(ctx, id)
}

func (u *UseCase) GetSyncState(ctx context.Context, aggregateType, aggregateID string) (*entity.SyncStateResponse, error) {
	return u.service.GetSyncState(ctx, aggregateType, aggregateID)
}

func (u *UseCase) ListNeedsSync(ctx context.Context, aggregateType string, limit int) ([]entity.SyncTracker, error) {
	return u.service.ListNeedsSync(ctx, aggregateType, limit)
}

func (u *UseCase) ResetSync(ctx context.Context, aggregateType, aggregateID string) (*entity.ResetSyncResponse, error) {
	u.logger.Infof("[%s %s] ResetSync requested", aggregateType, aggregateID)
	return u.service.ResetSync(ctx, aggregateType, aggregateID)
}

func (u *UseCase) RunDispatch(ctx context.Context, limit int) (int, error) {
	return u.service.Dispatch(ctx, limit)
}

func (u *UseCase) ReclaimStale(ctx context.Context) (int, error) {
	return u.service.ReclaimStale(ctx)
}

func (u *UseCase) PurgeCompleted(ctx context.Context) (int64, error) {
	return u.service.PurgeCompleted(ctx)
}
