package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"marketplace/internal/appers"
	"marketplace/internal/application/entity"
	"marketplace/internal/application/repo"
	"marketplace/pkg/config"
	"marketplace/pkg/metrics"

	"go.uber.org/zap"
)

type Service interface {
	Enqueue(ctx context.Context, req entity.EnqueueRequest) (int64, error)
	PublishOrderItemContent(ctx context.Context, in entity.OrderItemContent) (int64, error)

	GetEvent(ctx context.Context, id int64) (*entity.LedgerEvent, error)
	ListFailed(ctx context.Context, limit int) ([]entity.LedgerEvent, error)
	ResetEvent(ctx context.Context, id int64) (*entity.LedgerEvent, error)

	GetSyncState(ctx context.Context, aggregateType, aggregateID string) (*entity.SyncStateResponse, error)
	ListNeedsSync(ctx context.Context, aggregateType string, limit int) ([]entity.SyncTracker, error)
	ResetSync(ctx context.Context, aggregateType, aggregateID string) (*entity.ResetSyncResponse, error)

	Dispatch(ctx context.Context, limit int) (int, error)
	ReclaimStale(ctx context.Context) (int, error)
	PurgeCompleted(ctx context.Context) (int64, error)
	ValidateOpenEventTypes(ctx context.Context) error

	HealthCheck(ctx context.Context) entity.HealthReport
}

// HealthChecker - внешняя зависимость, доступность которой попадает в /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type ServiceImpl struct {
	repo         repo.Repo
	transactions repo.Transactions
	registry     *Registry
	dispatcher   *Dispatcher
	docstore     HealthChecker
	kafka        HealthChecker
	logger       *zap.SugaredLogger
	m            *metrics.Metrics
	relay        config.RelayConfig
	tracker      config.Tracker
	cron         config.Cron
	now          func() time.Time
}

func NewService(
	repo repo.Repo,
	transactions repo.Transactions,
	registry *Registry,
	dispatcher *Dispatcher,
	docstore HealthChecker,
	kafka HealthChecker,
	logger *zap.SugaredLogger,
	m *metrics.Metrics,
	cfg config.Config,
	now func() time.Time,
) *ServiceImpl {
	if now == nil {
		now = utcNow
	}
	return &ServiceImpl{
		repo:         repo,
		transactions: transactions,
		registry:     registry,
		dispatcher:   dispatcher,
		docstore:     docstore,
		kafka:        kafka,
		logger:       logger,
		m:            m,
		relay:        cfg.Relay,
		tracker:      cfg.Tracker,
		cron:         cfg.Cron,
		now:          now,
	}
}

// Enqueue принимает факт от внешнего производителя. Тип без обработчика отклоняется
// сразу: иначе строка висела бы в ledger до первой попытки доставки.
func (s *ServiceImpl) Enqueue(ctx context.Context, req entity.EnqueueRequest) (int64, error) {
	if !s.registry.Has(req.EventType) {
		s.logger.Warnf("[%s %s] enqueue rejected, unknown event type %q", req.AggregateType, req.AggregateID, req.EventType)
		return 0, fmt.Errorf("%s: %w", req.EventType, appers.ErrUnknownEventType)
	}

	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = s.relay.MaxAttempts
	}

	e := entity.NewLedgerEvent(req.EventType, req.AggregateType, req.AggregateID, req.Payload, maxAttempts)
	return s.transactions.Enqueue(ctx, e, s.now())
}

// PublishOrderItemContent сохраняет содержимое позиции, сбрасывает её tracker
// и ставит событие на доставку. Всё в одной транзакции.
func (s *ServiceImpl) PublishOrderItemContent(ctx context.Context, in entity.OrderItemContent) (int64, error) {
	payload, err := json.Marshal(orderItemContentPayload{
		OrderItemID: in.ID,
		Title:       in.Title,
		Content:     in.Content,
	})
	if err != nil {
		return 0, fmt.Errorf("marshal order item payload: %w", err)
	}

	e := entity.NewLedgerEvent(EventOrderItemContentReady, entity.AggregateOrderItem, in.ID, payload, s.relay.MaxAttempts)
	return s.transactions.PublishOrderItemContent(ctx, in, e, s.now())
}

func (s *ServiceImpl) GetEvent(ctx context.Context, id int64) (*entity.LedgerEvent, error) {
	return s.repo.GetLedgerEvent(ctx, id)
}

func (s *ServiceImpl) ListFailed(ctx context.Context, limit int) ([]entity.LedgerEvent, error) {
	return s.repo.ListFailedLedgerEvents(ctx, clampLimit(limit))
}

func (s *ServiceImpl) ResetEvent(ctx context.Context, id int64) (*entity.LedgerEvent, error) {
	return s.transactions.ResetEvent(ctx, id, s.now())
}

func (s *ServiceImpl) GetSyncState(ctx context.Context, aggregateType, aggregateID string) (*entity.SyncStateResponse, error) {
	t, err := s.repo.GetSyncState(ctx, aggregateType, aggregateID)
	if err != nil {
		return nil, err
	}
	return &entity.SyncStateResponse{SyncTracker: *t, DisplayStatus: t.DisplayStatus()}, nil
}

func (s *ServiceImpl) ListNeedsSync(ctx context.Context, aggregateType string, limit int) ([]entity.SyncTracker, error) {
	return s.repo.ListNeedsSync(ctx, aggregateType, s.tracker.MaxAttempts, clampLimit(limit))
}

func (s *ServiceImpl) ResetSync(ctx context.Context, aggregateType, aggregateID string) (*entity.ResetSyncResponse, error) {
	t, n, err := s.transactions.ResetSync(ctx, aggregateType, aggregateID, s.now())
	if err != nil {
		return nil, err
	}
	return &entity.ResetSyncResponse{Tracker: *t, ResetEvents: n}, nil
}

func (s *ServiceImpl) Dispatch(ctx context.Context, limit int) (int, error) {
	return s.dispatcher.RunOnce(ctx, limit)
}

// ReclaimStale возвращает в очередь строки, которые дольше relay.staleAfter висят в processing.
func (s *ServiceImpl) ReclaimStale(ctx context.Context) (int, error) {
	now := s.now()
	staleAfter := s.relay.StaleAfter
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}

	n, err := s.transactions.ReclaimStale(ctx, now.Add(-staleAfter), now, s.relay.BatchSize)
	if err != nil {
		s.logger.Errorf("reclaim stale ledger events failed: %v", err)
		return 0, err
	}
	if n > 0 {
		if s.m != nil {
			s.m.Relay.ReclaimedTotal.Add(float64(n))
		}
		s.logger.Warnf("reclaimed %d stale ledger events", n)
	}
	return n, nil
}

// PurgeCompleted удаляет completed строки старше cron.retentionDays. 0 - чистка выключена.
func (s *ServiceImpl) PurgeCompleted(ctx context.Context) (int64, error) {
	if s.cron.RetentionDays <= 0 {
		s.logger.Debug("ledger retention disabled, skip purge")
		return 0, nil
	}
	before := s.now().AddDate(0, 0, -s.cron.RetentionDays)
	return s.repo.PurgeCompleted(ctx, before)
}

// ValidateOpenEventTypes - проверка на старте: у каждой незавершённой строки ledger должен быть обработчик.
func (s *ServiceImpl) ValidateOpenEventTypes(ctx context.Context) error {
	types, err := s.repo.DistinctOpenEventTypes(ctx)
	if err != nil {
		return err
	}
	return s.registry.Validate(types)
}

func (s *ServiceImpl) HealthCheck(ctx context.Context) entity.HealthReport {
	report := entity.HealthReport{Database: s.repo.HealthCheck(ctx)}
	if s.docstore != nil {
		report.DocStore = s.docstore.HealthCheck(ctx)
	}
	if s.kafka != nil {
		report.Kafka = s.kafka.HealthCheck(ctx)
	}
	return report
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}
