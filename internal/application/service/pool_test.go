package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"marketplace/internal/application/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPoolSaturation(t *testing.T) {
	release := make(chan struct{})
	var processed int32
	pool := NewPool(1, 1, func(ctx context.Context, wid int, e entity.LedgerEvent) {
		<-release
		atomic.AddInt32(&processed, 1)
	}, zap.NewNop().Sugar(), nil)
	pool.Start(context.Background())

	require.True(t, pool.TryReserve())
	require.True(t, pool.Submit(entity.LedgerEvent{ID: 1}))
	require.True(t, pool.TryReserve())
	require.True(t, pool.Submit(entity.LedgerEvent{ID: 2}))

	// workers + queue заняты
	assert.False(t, pool.TryReserve())

	close(release)
	pool.Stop()

	assert.EqualValues(t, 2, atomic.LoadInt32(&processed))
	assert.False(t, pool.TryReserve())
	assert.False(t, pool.Submit(entity.LedgerEvent{ID: 3}))
}

func TestPoolReleaseFreesSlot(t *testing.T) {
	pool := NewPool(1, 0, func(context.Context, int, entity.LedgerEvent) {}, zap.NewNop().Sugar(), nil)

	require.True(t, pool.TryReserve())
	assert.False(t, pool.TryReserve())
	pool.Release()
	assert.True(t, pool.TryReserve())
	pool.Release()
}

// Пул забит: dispatcher не трогает лишние строки, они остаются pending до следующего прохода.
func TestDispatcherLeavesRowsPendingWhenPoolIsFull(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		h.enqueue(t, EventTemplatePublished, entity.AggregateTemplate, fmt.Sprintf("tpl-%d", i), `{}`)
	}

	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(1)
	var once sync.Once
	pool := NewPool(1, 1, func(ctx context.Context, wid int, e entity.LedgerEvent) {
		once.Do(started.Done)
		<-release
		_ = h.executor.Process(ctx, wid, e)
	}, zap.NewNop().Sugar(), nil)
	pool.Start(ctx)

	d := NewDispatcher(h.store, pool, zap.NewNop().Sugar(), nil, h.clock.Now, 100)
	n, err := d.RunOnce(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	started.Wait()
	assert.Equal(t, 2, h.store.countByStatus(entity.LedgerProcessing))
	assert.Equal(t, 3, h.store.countByStatus(entity.LedgerPending))

	close(release)
	pool.Stop()
	assert.Equal(t, 2, h.store.countByStatus(entity.LedgerCompleted))

	// второй проход забирает остаток
	pool2 := NewPool(4, 4, h.executor.Work, zap.NewNop().Sugar(), nil)
	pool2.Start(ctx)
	d2 := NewDispatcher(h.store, pool2, zap.NewNop().Sugar(), nil, h.clock.Now, 100)
	n, err = d2.RunOnce(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	pool2.Stop()
	assert.Equal(t, 5, h.store.countByStatus(entity.LedgerCompleted))
}

func TestExecutorHandlerPanicIsRetried(t *testing.T) {
	h := newHarness(t)
	reg := NewRegistry()
	reg.Register("boom.happened", func(context.Context, entity.LedgerEvent) (string, error) {
		panic("nil map")
	})
	exec := NewExecutor(h.store, reg, zap.NewNop().Sugar(), nil, h.clock.Now, time.Second)

	e := entity.NewLedgerEvent("boom.happened", entity.AggregateTemplate, "tpl-1", nil, 3)
	require.NoError(t, h.store.InsertLedgerEvent(context.Background(), e, h.clock.Now()))
	claimed, err := h.store.ClaimLedgerEvent(context.Background(), e.ID, h.clock.Now())
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, exec.Process(context.Background(), 0, h.store.event(e.ID)))

	ev := h.store.event(e.ID)
	assert.Equal(t, entity.LedgerPending, ev.Status)
	assert.Equal(t, 1, ev.Attempts)
	require.NotNil(t, ev.LastError)
	assert.Contains(t, *ev.LastError, "handler panic")
}

func TestExecutorHandlerTimeout(t *testing.T) {
	h := newHarness(t)
	reg := NewRegistry()
	reg.Register("slow.happened", func(ctx context.Context, _ entity.LedgerEvent) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	exec := NewExecutor(h.store, reg, zap.NewNop().Sugar(), nil, h.clock.Now, 20*time.Millisecond)

	e := entity.NewLedgerEvent("slow.happened", entity.AggregateTemplate, "tpl-1", nil, 3)
	require.NoError(t, h.store.InsertLedgerEvent(context.Background(), e, h.clock.Now()))
	_, err := h.store.ClaimLedgerEvent(context.Background(), e.ID, h.clock.Now())
	require.NoError(t, err)

	require.NoError(t, exec.Process(context.Background(), 0, h.store.event(e.ID)))

	ev := h.store.event(e.ID)
	assert.Equal(t, entity.LedgerPending, ev.Status)
	require.NotNil(t, ev.LastError)
	assert.Contains(t, *ev.LastError, "deadline exceeded")
}

func TestExecutorCompleteWithoutClaimFails(t *testing.T) {
	h := newHarness(t)
	e := entity.NewLedgerEvent(EventTemplatePublished, entity.AggregateTemplate, "tpl-1", nil, 3)
	require.NoError(t, h.store.InsertLedgerEvent(context.Background(), e, h.clock.Now()))

	// строка не в processing: переход отклоняется, а не переписывает состояние
	err := h.executor.Process(context.Background(), 0, h.store.event(e.ID))
	require.Error(t, err)
	assert.Equal(t, entity.LedgerPending, h.store.event(e.ID).Status)
}
