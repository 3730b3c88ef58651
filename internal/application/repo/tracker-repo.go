package repo

import (
	"context"
	"fmt"
	"time"

	"marketplace/internal/appers"
	"marketplace/internal/application/entity"
)

// trackerTables - агрегаты, у которых есть поля sync_* прямо на бизнес-строке.
var trackerTables = map[string]string{
	entity.AggregateOrderItem: "order_items",
}

// IsTracked сообщает, ведётся ли для aggregateType денормализованный статус синхронизации.
func IsTracked(aggregateType string) bool {
	_, ok := trackerTables[aggregateType]
	return ok
}

func trackerTable(aggregateType string) (string, error) {
	table, ok := trackerTables[aggregateType]
	if !ok {
		return "", fmt.Errorf("%s: %w", aggregateType, appers.ErrAggregateNotTracked)
	}
	return table, nil
}

func scanTracker(row scanner, aggregateType string) (*entity.SyncTracker, error) {
	t := entity.SyncTracker{AggregateType: aggregateType}
	var status string
	if err := row.Scan(&t.AggregateID, &status, &t.Attempts, &t.Error, &t.ExternalRecordID, &t.SyncedAt); err != nil {
		return nil, err
	}
	t.Status = entity.SyncStatus(status)
	return &t, nil
}

func (r *RepoImpl) GetSyncState(ctx context.Context, aggregateType, aggregateID string) (*entity.SyncTracker, error) {
	table, err := trackerTable(aggregateType)
	if err != nil {
		return nil, err
	}

	t, err := scanTracker(r.db.QueryRow(ctx, fmt.Sprintf(getTrackerSQL, table), aggregateID), aggregateType)
	if err != nil {
		return nil, notFound(err, appers.ErrAggregateNotFound)
	}
	return t, nil
}

func (r *RepoImpl) getTrackerForUpdate(ctx context.Context, aggregateType, aggregateID string) (*entity.SyncTracker, error) {
	table, err := trackerTable(aggregateType)
	if err != nil {
		return nil, err
	}

	t, err := scanTracker(r.db.QueryRow(ctx, fmt.Sprintf(getTrackerForUpdateSQL, table), aggregateID), aggregateType)
	if err != nil {
		return nil, notFound(err, appers.ErrAggregateNotFound)
	}
	return t, nil
}

func (r *RepoImpl) saveTracker(ctx context.Context, t *entity.SyncTracker) (err error) {
	table, err := trackerTable(t.AggregateType)
	if err != nil {
		return err
	}
	done := r.observe("update", "tracker")
	defer func() { done(err) }()

	tag, err := r.db.Exec(ctx, fmt.Sprintf(updateTrackerSQL, table),
		t.AggregateID, string(t.Status), t.Attempts, t.Error, t.ExternalRecordID, t.SyncedAt,
	)
	if err != nil {
		return fmt.Errorf("update %s sync fields: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("[%s %s] %w", t.AggregateType, t.AggregateID, appers.ErrAggregateNotFound)
	}
	return nil
}

func (r *RepoImpl) ListNeedsSync(ctx context.Context, aggregateType string, maxAttempts, limit int) ([]entity.SyncTracker, error) {
	table, err := trackerTable(aggregateType)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, fmt.Sprintf(listNeedsSyncSQL, table), maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("list %s needing sync: %w", table, err)
	}
	defer rows.Close()

	res := make([]entity.SyncTracker, 0)
	for rows.Next() {
		t, err := scanTracker(rows, aggregateType)
		if err != nil {
			return nil, fmt.Errorf("scan tracker: %w", err)
		}
		res = append(res, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tracker rows err: %w", err)
	}
	return res, nil
}

// updateOrderItemContent - запись бизнес-данных позиции заказа (часть producer-транзакции).
func (r *RepoImpl) updateOrderItemContent(ctx context.Context, in entity.OrderItemContent, now time.Time) error {
	tag, err := r.db.Exec(ctx, updateOrderItemContentSQL, in.ID, in.Title, string(in.Content), now)
	if err != nil {
		return fmt.Errorf("update order_items content: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("[order_item %s] %w", in.ID, appers.ErrAggregateNotFound)
	}
	return nil
}
