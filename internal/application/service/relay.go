package service

import (
	"context"
	"fmt"
	"time"

	"marketplace/internal/application/entity"
	"marketplace/internal/application/repo"
	"marketplace/pkg/metrics"

	"go.uber.org/zap"
)

// WorkerPool - то, что Dispatcher требует от пула воркеров.
type WorkerPool interface {
	TryReserve() bool
	Release()
	Submit(e entity.LedgerEvent) bool
}

// Dispatcher выбирает подходящие строки ledger и раздаёт их воркерам.
// Сам по таймеру не крутится: его дёргает cron или оператор через API.
type Dispatcher struct {
	repo      repo.Repo
	pool      WorkerPool
	logger    *zap.SugaredLogger
	m         *metrics.Metrics
	now       func() time.Time
	batchSize int
}

func NewDispatcher(r repo.Repo, pool WorkerPool, logger *zap.SugaredLogger, m *metrics.Metrics, now func() time.Time, batchSize int) *Dispatcher {
	if now == nil {
		now = utcNow
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Dispatcher{repo: r, pool: pool, logger: logger, m: m, now: now, batchSize: batchSize}
}

// RunOnce - один проход: до limit подходящих строк, claim каждой и передача в пул.
// Возвращает число отправленных в пул событий, окончания обработки не ждёт.
// Безопасен при параллельном вызове: строку забирает только тот, чей claim прошёл.
func (d *Dispatcher) RunOnce(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = d.batchSize
	}
	now := d.now()

	events, err := d.repo.SelectEligible(ctx, now, limit)
	if err != nil {
		d.countRun("error")
		d.logger.Errorw("select eligible ledger events failed", "err", err)
		return 0, fmt.Errorf("dispatch: %w", err)
	}
	if len(events) == 0 {
		d.countRun("empty")
		return 0, nil
	}

	submitted := 0
	for _, e := range events {
		if err := ctx.Err(); err != nil {
			break
		}

		// Слот берём до claim: если пул забит, строка остаётся pending до следующего тика.
		if !d.pool.TryReserve() {
			d.countSkipped("pool_full", len(events)-submitted)
			d.logger.Debugf("worker pool saturated, %d events left for next run", len(events)-submitted)
			break
		}

		claimed, err := d.repo.ClaimLedgerEvent(ctx, e.ID, now)
		if err != nil {
			d.pool.Release()
			d.countSkipped("claim_error", 1)
			d.logger.Errorf("[ID %d] claim failed, err: %v", e.ID, err)
			continue
		}
		if !claimed {
			d.pool.Release()
			d.countSkipped("already_claimed", 1)
			d.logger.Debugf("[ID %d] already claimed by another dispatcher, skip", e.ID)
			continue
		}

		e.Status = entity.LedgerProcessing
		e.ClaimedAt = &now
		if !d.pool.Submit(e) {
			// пул остановлен между claim и submit - строку вернёт reclaim
			d.pool.Release()
			d.logger.Warnf("[ID %d] pool stopped after claim, left for reclaim", e.ID)
			break
		}
		submitted++
	}

	d.countRun("ok")
	if d.m != nil {
		d.m.Relay.DispatchedTotal.Add(float64(submitted))
	}
	d.logger.Debugf("dispatch run: eligible %d, submitted %d", len(events), submitted)
	return submitted, nil
}

func (d *Dispatcher) countRun(result string) {
	if d.m != nil {
		d.m.Relay.DispatchRunsTotal.WithLabelValues(result).Inc()
	}
}

func (d *Dispatcher) countSkipped(reason string, n int) {
	if d.m != nil {
		d.m.Relay.DispatchSkippedTotal.WithLabelValues(reason).Add(float64(n))
	}
}

func utcNow() time.Time {
	return time.Now().UTC()
}
