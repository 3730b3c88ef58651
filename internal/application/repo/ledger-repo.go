package repo

import (
	"context"
	"fmt"
	"time"

	"marketplace/internal/appers"
	"marketplace/internal/application/entity"
)

func (r *RepoImpl) InsertLedgerEvent(ctx context.Context, e *entity.LedgerEvent, now time.Time) (err error) {
	r.logger.Debugf("[%s %s] InsertLedgerEvent started, type: %s", e.AggregateType, e.AggregateID, e.EventType)
	done := r.observe("insert", "ledger_event")
	defer func() { done(err) }()

	err = r.db.QueryRow(ctx, insertLedgerSQL,
		e.EventType, e.AggregateType, e.AggregateID, string(e.Payload), string(entity.LedgerPending), e.MaxAttempts, now,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert sync_ledger: %w", err)
	}
	e.Status = entity.LedgerPending
	e.Attempts = 0
	e.UpdatedAt = e.CreatedAt

	return nil
}

func (r *RepoImpl) SelectEligible(ctx context.Context, now time.Time, limit int) (res []entity.LedgerEvent, err error) {
	r.logger.Debugf("[now: %s, limit: %d] SelectEligible started", now.Format(time.RFC3339), limit)
	done := r.observe("select", "ledger_eligible")
	defer func() { done(err) }()

	rows, err := r.db.Query(ctx, selectEligibleSQL, now, limit)
	if err != nil {
		return nil, fmt.Errorf("select eligible ledger events: %w", err)
	}

	return collectLedgerEvents(rows)
}

func (r *RepoImpl) ClaimLedgerEvent(ctx context.Context, id int64, now time.Time) (claimed bool, err error) {
	done := r.observe("update", "ledger_claim")
	defer func() { done(err) }()

	tag, err := r.db.Exec(ctx, claimLedgerSQL, id, now)
	if err != nil {
		return false, fmt.Errorf("claim ledger event: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *RepoImpl) GetLedgerEvent(ctx context.Context, id int64) (*entity.LedgerEvent, error) {
	e, err := scanLedgerEvent(r.db.QueryRow(ctx, getLedgerSQL, id))
	if err != nil {
		return nil, notFound(err, appers.ErrLedgerEventNotFound)
	}
	return e, nil
}

func (r *RepoImpl) getLedgerEventForUpdate(ctx context.Context, id int64) (*entity.LedgerEvent, error) {
	e, err := scanLedgerEvent(r.db.QueryRow(ctx, getLedgerForUpdateSQL, id))
	if err != nil {
		return nil, notFound(err, appers.ErrLedgerEventNotFound)
	}
	return e, nil
}

// saveLedgerTransition записывает изменяемые поля после перехода state machine.
// payload и идентификаторы агрегата не трогаем никогда.
func (r *RepoImpl) saveLedgerTransition(ctx context.Context, e *entity.LedgerEvent) (err error) {
	done := r.observe("update", "ledger_transition")
	defer func() { done(err) }()

	tag, err := r.db.Exec(ctx, updateLedgerSQL,
		e.ID, string(e.Status), e.Attempts, e.LastError, e.ProcessedAt, e.NextRetryAt, e.ClaimedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update sync_ledger: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("[ID %d] %w", e.ID, appers.ErrLedgerEventNotFound)
	}
	return nil
}

func (r *RepoImpl) ListFailedLedgerEvents(ctx context.Context, limit int) ([]entity.LedgerEvent, error) {
	rows, err := r.db.Query(ctx, listFailedLedgerSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list failed ledger events: %w", err)
	}
	return collectLedgerEvents(rows)
}

func (r *RepoImpl) lockStaleProcessing(ctx context.Context, claimedBefore time.Time, limit int) ([]entity.LedgerEvent, error) {
	rows, err := r.db.Query(ctx, lockStaleProcessingSQL, claimedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("lock stale processing: %w", err)
	}
	return collectLedgerEvents(rows)
}

func (r *RepoImpl) lockFailedByAggregate(ctx context.Context, aggregateType, aggregateID string) ([]entity.LedgerEvent, error) {
	rows, err := r.db.Query(ctx, lockFailedByAggregateSQL, aggregateType, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("lock failed ledger events by aggregate: %w", err)
	}
	return collectLedgerEvents(rows)
}

func (r *RepoImpl) hasNewerOpenEvent(ctx context.Context, e *entity.LedgerEvent) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, hasNewerOpenEventSQL, e.AggregateType, e.AggregateID, e.ID).Scan(&exists); err != nil {
		return false, fmt.Errorf("newer open ledger events: %w", err)
	}
	return exists, nil
}

func (r *RepoImpl) PurgeCompleted(ctx context.Context, before time.Time) (int64, error) {
	r.logger.Infof("start purging completed ledger events processed before %s", before.Format(time.RFC3339))

	tag, err := r.db.Exec(ctx, purgeCompletedSQL, before)
	if err != nil {
		r.logger.Errorf("error purging completed ledger events: %v", err)
		return 0, fmt.Errorf("purge completed ledger events: %w", err)
	}

	deleted := tag.RowsAffected()
	r.logger.Infof("purged %d completed ledger events", deleted)
	return deleted, nil
}

func (r *RepoImpl) DistinctOpenEventTypes(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, distinctOpenEventTypesSQL)
	if err != nil {
		return nil, fmt.Errorf("distinct open event types: %w", err)
	}
	defer rows.Close()

	var types []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan event type: %w", err)
		}
		types = append(types, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("event type rows err: %w", err)
	}
	return types, nil
}
