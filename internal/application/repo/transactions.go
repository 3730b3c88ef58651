package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace/internal/appers"
	"marketplace/internal/application/entity"

	"go.uber.org/zap"
)

type Transactions interface {
	Enqueue(ctx context.Context, e *entity.LedgerEvent, now time.Time) (int64, error)
	PublishOrderItemContent(ctx context.Context, in entity.OrderItemContent, e *entity.LedgerEvent, now time.Time) (int64, error)

	CompleteEvent(ctx context.Context, id int64, externalID string, now time.Time) (*entity.LedgerEvent, error)
	FailEvent(ctx context.Context, id int64, cause string, permanent bool, now time.Time) (*entity.LedgerEvent, error)
	ResetEvent(ctx context.Context, id int64, now time.Time) (*entity.LedgerEvent, error)
	ResetSync(ctx context.Context, aggregateType, aggregateID string, now time.Time) (*entity.SyncTracker, int64, error)
	ReclaimStale(ctx context.Context, claimedBefore, now time.Time, limit int) (int, error)
}
type TransactionsImpl struct {
	repo              *RepoImpl
	logger            *zap.SugaredLogger
	trackerMaxAttempt int
}

func NewTransactions(repo *RepoImpl, logger *zap.SugaredLogger, trackerMaxAttempts int) *TransactionsImpl {
	if trackerMaxAttempts <= 0 {
		trackerMaxAttempts = entity.DefaultMaxAttempts
	}
	return &TransactionsImpl{repo: repo, logger: logger, trackerMaxAttempt: trackerMaxAttempts}
}

// Enqueue пишет событие в ledger. Если ctx уже несёт транзакцию бизнес-операции,
// запись идёт в неё же (pkg/db.WithinTransaction).
func (t *TransactionsImpl) Enqueue(ctx context.Context, e *entity.LedgerEvent, now time.Time) (int64, error) {
	err := t.repo.db.WithinTransaction(ctx, func(ctx context.Context) error {
		return t.repo.InsertLedgerEvent(ctx, e, now)
	})
	if err != nil {
		t.logger.Errorf("[%s %s] enqueue %s failed: %v", e.AggregateType, e.AggregateID, e.EventType, err)
		return 0, err
	}

	t.logger.Debugf("[ID %d] enqueued %s for %s %s", e.ID, e.EventType, e.AggregateType, e.AggregateID)
	return e.ID, nil
}

// PublishOrderItemContent - producer: новое содержимое позиции заказа, сброс трекера
// и событие в ledger в одной транзакции.
func (t *TransactionsImpl) PublishOrderItemContent(ctx context.Context, in entity.OrderItemContent, e *entity.LedgerEvent, now time.Time) (int64, error) {
	err := t.repo.db.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := t.repo.updateOrderItemContent(ctx, in, now); err != nil {
			return err
		}

		tr, err := t.repo.getTrackerForUpdate(ctx, entity.AggregateOrderItem, in.ID)
		if err != nil {
			return err
		}
		tr.Reset()
		if err := t.repo.saveTracker(ctx, tr); err != nil {
			return err
		}

		return t.repo.InsertLedgerEvent(ctx, e, now)
	})
	if err != nil {
		t.logger.Errorf("[order_item %s] publish content failed: %v", in.ID, err)
		return 0, err
	}

	t.logger.Infof("[ID %d] order_item %s content queued for sync", e.ID, in.ID)
	return e.ID, nil
}

// CompleteEvent: ledger processing -> completed и tracker -> synced одной транзакцией.
func (t *TransactionsImpl) CompleteEvent(ctx context.Context, id int64, externalID string, now time.Time) (*entity.LedgerEvent, error) {
	var ev *entity.LedgerEvent
	err := t.repo.db.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		ev, err = t.repo.getLedgerEventForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if ev.Status == entity.LedgerCompleted {
			t.logger.Infof("[ID %d] already completed, skip", id)
			return nil
		}
		if err = ev.Complete(now); err != nil {
			return fmt.Errorf("%w: %v", appers.ErrLedgerEventNotClaimed, err)
		}
		if err = t.repo.saveLedgerTransition(ctx, ev); err != nil {
			return err
		}

		return t.trackSynced(ctx, ev, externalID, now)
	})
	if err != nil {
		return nil, err
	}

	return ev, nil
}

// FailEvent: ledger fail (ретрай с бэкоффом или терминальный failed) и tracker markFailed
// одной транзакцией.
func (t *TransactionsImpl) FailEvent(ctx context.Context, id int64, cause string, permanent bool, now time.Time) (*entity.LedgerEvent, error) {
	var ev *entity.LedgerEvent
	err := t.repo.db.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		ev, err = t.repo.getLedgerEventForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if permanent {
			err = ev.FailPermanently(cause, now)
		} else {
			err = ev.Fail(cause, now)
		}
		if err != nil {
			return fmt.Errorf("%w: %v", appers.ErrLedgerEventNotClaimed, err)
		}
		if err = t.repo.saveLedgerTransition(ctx, ev); err != nil {
			return err
		}

		return t.trackFailed(ctx, ev, cause)
	})
	if err != nil {
		return nil, err
	}

	return ev, nil
}

func (t *TransactionsImpl) ResetEvent(ctx context.Context, id int64, now time.Time) (*entity.LedgerEvent, error) {
	var ev *entity.LedgerEvent
	err := t.repo.db.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		ev, err = t.repo.getLedgerEventForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err = ev.Reset(now); err != nil {
			return err
		}
		return t.repo.saveLedgerTransition(ctx, ev)
	})
	if err != nil {
		return nil, err
	}

	t.logger.Infof("[ID %d] reset to pending by operator", id)
	return ev, nil
}

// ResetSync сбрасывает tracker агрегата и возвращает в pipeline его failed события ledger.
func (t *TransactionsImpl) ResetSync(ctx context.Context, aggregateType, aggregateID string, now time.Time) (*entity.SyncTracker, int64, error) {
	var tr *entity.SyncTracker
	var resetEvents int64
	err := t.repo.db.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		tr, err = t.repo.getTrackerForUpdate(ctx, aggregateType, aggregateID)
		if err != nil {
			return err
		}
		tr.Reset()
		if err = t.repo.saveTracker(ctx, tr); err != nil {
			return err
		}

		failed, err := t.repo.lockFailedByAggregate(ctx, aggregateType, aggregateID)
		if err != nil {
			return err
		}
		for i := range failed {
			ev := &failed[i]
			if err = ev.Reset(now); err != nil {
				return err
			}
			if err = t.repo.saveLedgerTransition(ctx, ev); err != nil {
				return err
			}
			resetEvents++
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	t.logger.Infof("[%s %s] sync reset, ledger events re-admitted: %d", aggregateType, aggregateID, resetEvents)
	return tr, resetEvents, nil
}

// ReclaimStale возвращает в очередь строки, застрявшие в processing (воркер упал после claim).
// Застревание считается неудачной попыткой, поэтому "ядовитое" событие всё равно упрётся в max_attempts.
func (t *TransactionsImpl) ReclaimStale(ctx context.Context, claimedBefore, now time.Time, limit int) (int, error) {
	reclaimed := 0
	err := t.repo.db.WithinTransaction(ctx, func(ctx context.Context) error {
		stale, err := t.repo.lockStaleProcessing(ctx, claimedBefore, limit)
		if err != nil {
			return err
		}

		cause := "processing lease expired"
		for i := range stale {
			ev := &stale[i]
			if err = ev.Fail(cause, now); err != nil {
				return err
			}
			if err = t.repo.saveLedgerTransition(ctx, ev); err != nil {
				return err
			}
			if err = t.trackFailed(ctx, ev, cause); err != nil {
				return err
			}
			t.logger.Warnf("[ID %d] reclaimed stale processing row, attempts: %d, status: %s", ev.ID, ev.Attempts, ev.Status)
			reclaimed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return reclaimed, nil
}

func (t *TransactionsImpl) trackSynced(ctx context.Context, ev *entity.LedgerEvent, externalID string, now time.Time) error {
	if !IsTracked(ev.AggregateType) {
		return nil
	}

	newer, err := t.repo.hasNewerOpenEvent(ctx, ev)
	if err != nil {
		return err
	}
	if newer {
		// трекер уже сброшен под более свежее содержимое, synced поставит его событие
		t.logger.Infof("[ID %d] newer %s %s event in flight, tracker left pending", ev.ID, ev.AggregateType, ev.AggregateID)
		return nil
	}

	tr, err := t.repo.getTrackerForUpdate(ctx, ev.AggregateType, ev.AggregateID)
	if errors.Is(err, appers.ErrAggregateNotFound) {
		// бизнес-строку удалили, пока событие ждало доставки
		t.logger.Warnf("[ID %d] tracker %s %s not found, ledger completed without tracker", ev.ID, ev.AggregateType, ev.AggregateID)
		return nil
	}
	if err != nil {
		return err
	}

	if err = tr.MarkSynced(externalID, now); err != nil {
		return err
	}
	return t.repo.saveTracker(ctx, tr)
}

func (t *TransactionsImpl) trackFailed(ctx context.Context, ev *entity.LedgerEvent, cause string) error {
	if !IsTracked(ev.AggregateType) {
		return nil
	}

	tr, err := t.repo.getTrackerForUpdate(ctx, ev.AggregateType, ev.AggregateID)
	if errors.Is(err, appers.ErrAggregateNotFound) {
		t.logger.Warnf("[ID %d] tracker %s %s not found, skip markFailed", ev.ID, ev.AggregateType, ev.AggregateID)
		return nil
	}
	if err != nil {
		return err
	}

	if ev.IsTerminalFailure() {
		tr.MarkFailedPermanently(cause, t.trackerMaxAttempt)
	} else {
		tr.MarkFailed(cause, t.trackerMaxAttempt)
	}
	return t.repo.saveTracker(ctx, tr)
}
