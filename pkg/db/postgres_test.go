package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
}

func TestExtractTx(t *testing.T) {
	p := &Postgres{}
	assert.Nil(t, p.ExtractTx(context.Background()))

	tx := &fakeTx{}
	ctx := p.InjectTx(context.Background(), tx)
	assert.Same(t, tx, p.ExtractTx(ctx))
}

// вложенный WithinTransaction не открывает новую транзакцию (Pool тут nil)
func TestWithinTransactionJoinsOuterTx(t *testing.T) {
	p := &Postgres{}
	tx := &fakeTx{}
	ctx := p.InjectTx(context.Background(), tx)

	called := false
	err := p.WithinTransaction(ctx, func(inner context.Context) error {
		called = true
		assert.Same(t, tx, p.ExtractTx(inner))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)

	boom := errors.New("boom")
	err = p.WithinTransaction(ctx, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}
