package service

import (
	"context"
	"fmt"
	"time"

	"marketplace/internal/appers"
	"marketplace/internal/application/entity"
	"marketplace/internal/application/repo"
	"marketplace/pkg/metrics"

	"go.uber.org/zap"
)

// Executor выполняет внешнюю запись для захваченной строки ledger и переводит её дальше.
type Executor struct {
	transactions repo.Transactions
	registry     *Registry
	logger       *zap.SugaredLogger
	m            *metrics.Metrics
	now          func() time.Time
	timeout      time.Duration
}

func NewExecutor(transactions repo.Transactions, registry *Registry, logger *zap.SugaredLogger, m *metrics.Metrics, now func() time.Time, timeout time.Duration) *Executor {
	if now == nil {
		now = utcNow
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Executor{
		transactions: transactions,
		registry:     registry,
		logger:       logger,
		m:            m,
		now:          now,
		timeout:      timeout,
	}
}

// Work - адаптер под ProcessFunc пула: ошибки хранилища уже залогированы в Process.
func (x *Executor) Work(ctx context.Context, wid int, e entity.LedgerEvent) {
	_ = x.Process(ctx, wid, e)
}

// Process никогда не возвращает ошибку внешней записи - она превращается в переход состояния.
// Наружу уходят только ошибки ledger/tracker: значит, под угрозой сама надёжность pipeline.
func (x *Executor) Process(ctx context.Context, wid int, e entity.LedgerEvent) error {
	x.logger.Debugf("[ID %d] relay-process started, workerID: %d, type: %s", e.ID, wid, e.EventType)

	handler, ok := x.registry.Lookup(e.EventType)
	if !ok {
		cause := fmt.Sprintf("no handler registered for event type %q", e.EventType)
		x.logger.Errorf("[ID %d] %s", e.ID, cause)
		return x.fail(ctx, e, cause, true)
	}

	start := time.Now()
	externalID, err := x.invoke(ctx, handler, e)
	if x.m != nil {
		x.m.Relay.ProcessDuration.WithLabelValues(e.EventType).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		x.logger.Warnf("[ID %d] external write failed, attempt: %d, err: %v", e.ID, e.Attempts+1, err)
		return x.fail(ctx, e, err.Error(), appers.IsPermanent(err))
	}
	x.logger.Infof("[ID %d] external write done, externalID: %s", e.ID, externalID)

	// Переходы пишем даже при остановке сервиса: запись во внешнее хранилище уже случилась.
	if _, err = x.transactions.CompleteEvent(context.WithoutCancel(ctx), e.ID, externalID, x.now()); err != nil {
		x.count(e.EventType, "storage_error")
		x.logger.Errorf("[ID %d] mark completed failed, err: %v", e.ID, err)
		return fmt.Errorf("[ID %d] complete: %w", e.ID, err)
	}
	x.count(e.EventType, "completed")
	x.logger.Infof("[ID %d] relay-process completed", e.ID)

	return nil
}

func (x *Executor) invoke(ctx context.Context, h Handler, e entity.LedgerEvent) (externalID string, err error) {
	callCtx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	externalID, err = h(callCtx, e)
	if err == nil && callCtx.Err() != nil {
		// обработчик проигнорировал дедлайн - результат не засчитываем
		err = fmt.Errorf("external write: %w", callCtx.Err())
	}
	return externalID, err
}

func (x *Executor) fail(ctx context.Context, e entity.LedgerEvent, cause string, permanent bool) error {
	ev, err := x.transactions.FailEvent(context.WithoutCancel(ctx), e.ID, cause, permanent, x.now())
	if err != nil {
		x.count(e.EventType, "storage_error")
		x.logger.Errorf("[ID %d] mark failed failed, err: %v", e.ID, err)
		return fmt.Errorf("[ID %d] fail: %w", e.ID, err)
	}

	if ev.Status == entity.LedgerFailed {
		x.count(e.EventType, "failed")
		x.logger.Errorf("[ID %d] gave up after %d attempts, last error: %s", ev.ID, ev.Attempts, cause)
		return nil
	}

	x.count(e.EventType, "retry")
	if ev.NextRetryAt != nil {
		x.logger.Infof("[ID %d] retry scheduled at %s, attempts: %d/%d", ev.ID, ev.NextRetryAt.Format(time.RFC3339), ev.Attempts, ev.MaxAttempts)
	}
	return nil
}

func (x *Executor) count(eventType, result string) {
	if x.m != nil {
		x.m.Relay.ProcessedTotal.WithLabelValues(eventType, result).Inc()
	}
}
