package db

import (
	"context"
	"fmt"

	"marketplace/pkg/config"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose"
)

// DB - то, что нужно repo: запросы и транзакция, которую несёт context.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	Close()
}

// Pool - часть *pgxpool.Pool, которой пользуется Postgres. В тестах её подменяет pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Close()
}

type Postgres struct {
	Pool Pool
}

func New(pool Pool) *Postgres {
	return &Postgres{Pool: pool}
}

// NewPostgres поднимает пул и накатывает миграции sync_ledger/order_items.
func NewPostgres(ctx context.Context, conf config.Postgres) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(conf.ConnString)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	// размер под пул воркеров relay подгоняет config (fitPostgresPool)
	poolCfg.MaxConns = 12
	if conf.MaxConnections > 0 {
		poolCfg.MaxConns = conf.MaxConnections
	}
	if conf.MinConnections > 0 && conf.MinConnections <= poolCfg.MaxConns {
		poolCfg.MinConns = conf.MinConnections
	}
	if conf.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = conf.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("new pool: %w", err)
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	if !conf.SkipMigrations {
		if err = migrate(poolCfg.ConnConfig, conf.MigrationsDir); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return New(pool), nil
}

// migrate гоняет goose через database/sql поверх pgx stdlib.
func migrate(connCfg *pgx.ConnConfig, dir string) error {
	sqlDB := stdlib.OpenDB(*connCfg)
	defer sqlDB.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.Up(sqlDB, dir); err != nil {
		return fmt.Errorf("migrations %s: %w", dir, err)
	}
	return nil
}

type txKey struct{}

func (p *Postgres) InjectTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func (p *Postgres) ExtractTx(ctx context.Context) pgx.Tx {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return nil
}

// Exec/Query/QueryRow идут через tx из контекста, если она там есть.

func (p *Postgres) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	if tx := p.ExtractTx(ctx); tx != nil {
		return tx.Exec(ctx, query, args...)
	}
	return p.Pool.Exec(ctx, query, args...)
}

func (p *Postgres) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	if tx := p.ExtractTx(ctx); tx != nil {
		return tx.Query(ctx, query, args...)
	}
	return p.Pool.Query(ctx, query, args...)
}

func (p *Postgres) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	if tx := p.ExtractTx(ctx); tx != nil {
		return tx.QueryRow(ctx, query, args...)
	}
	return p.Pool.QueryRow(ctx, query, args...)
}

// WithinTransaction: переход ledger и запись tracker коммитятся вместе.
// Если в контексте уже есть tx, fn выполняется в ней, так событие ledger
// попадает в транзакцию бизнес-операции, которая его породила.
func (p *Postgres) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if p.ExtractTx(ctx) != nil {
		return fn(ctx)
	}

	tx, err := p.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(r)
		}
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			return
		}
		err = tx.Commit(ctx)
	}()

	err = fn(p.InjectTx(ctx, tx))
	return
}

func (p *Postgres) Close() {
	if p.Pool != nil {
		p.Pool.Close()
	}
}
