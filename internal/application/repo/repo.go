package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace/internal/appers"
	"marketplace/internal/application/entity"
	"marketplace/pkg/db"
	"marketplace/pkg/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

type Repo interface {
	InsertLedgerEvent(ctx context.Context, e *entity.LedgerEvent, now time.Time) error
	SelectEligible(ctx context.Context, now time.Time, limit int) ([]entity.LedgerEvent, error)
	ClaimLedgerEvent(ctx context.Context, id int64, now time.Time) (bool, error)
	GetLedgerEvent(ctx context.Context, id int64) (*entity.LedgerEvent, error)
	ListFailedLedgerEvents(ctx context.Context, limit int) ([]entity.LedgerEvent, error)
	PurgeCompleted(ctx context.Context, before time.Time) (int64, error)
	DistinctOpenEventTypes(ctx context.Context) ([]string, error)

	GetSyncState(ctx context.Context, aggregateType, aggregateID string) (*entity.SyncTracker, error)
	ListNeedsSync(ctx context.Context, aggregateType string, maxAttempts, limit int) ([]entity.SyncTracker, error)

	HealthCheck(ctx context.Context) error
}
type RepoImpl struct {
	db     db.DB
	logger *zap.SugaredLogger
	m      *metrics.Metrics
}

func NewRepo(db db.DB, logger *zap.SugaredLogger, m *metrics.Metrics) *RepoImpl {
	return &RepoImpl{db: db, logger: logger, m: m}
}

func (r *RepoImpl) HealthCheck(ctx context.Context) error {
	// Проверяем доступность БД через простой запрос
	var result int
	err := r.db.QueryRow(ctx, "SELECT 1").Scan(&result)
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// observe пишет метрики запроса: op - тип (select/update/...), name - логическое имя запроса.
func (r *RepoImpl) observe(op, name string) func(err error) {
	if r.m == nil {
		return func(error) {}
	}
	start := time.Now()
	r.m.Repo.InFlight.WithLabelValues(op, name).Inc()

	return func(err error) {
		r.m.Repo.InFlight.WithLabelValues(op, name).Dec()
		result, kind := "ok", "none"
		if err != nil {
			result, kind = "error", errorKind(err)
		}
		r.m.Repo.RequestsTotal.WithLabelValues(op, name, result, kind).Inc()
		r.m.Repo.DurationSeconds.WithLabelValues(op, name, result).Observe(time.Since(start).Seconds())
	}
}

func errorKind(err error) string {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return "no_rows"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "context"
	case errors.As(err, &pgErr):
		return pgErr.Code
	default:
		return "other"
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLedgerEvent(row scanner) (*entity.LedgerEvent, error) {
	var e entity.LedgerEvent
	var status string
	if err := row.Scan(
		&e.ID, &e.EventType, &e.AggregateType, &e.AggregateID, &e.Payload, &status,
		&e.Attempts, &e.MaxAttempts, &e.LastError, &e.ProcessedAt, &e.NextRetryAt, &e.ClaimedAt,
		&e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	e.Status = entity.LedgerStatus(status)
	return &e, nil
}

func collectLedgerEvents(rows pgx.Rows) ([]entity.LedgerEvent, error) {
	defer rows.Close()

	res := make([]entity.LedgerEvent, 0)
	for rows.Next() {
		e, err := scanLedgerEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger event: %w", err)
		}
		res = append(res, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger rows err: %w", err)
	}
	return res, nil
}

// notFound переводит pgx.ErrNoRows в доменную ошибку.
func notFound(err error, sentinel appers.ErrorResp) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return err
}
