package entity

import (
	"testing"
	"time"

	"marketplace/internal/appers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func claimed(t *testing.T, maxAttempts int) *LedgerEvent {
	t.Helper()
	e := NewLedgerEvent("template.published", AggregateTemplate, "tpl-1", nil, maxAttempts)
	e.ID = 1
	require.NoError(t, e.Claim(t0))
	return e
}

func TestNewLedgerEventDefaults(t *testing.T) {
	e := NewLedgerEvent("order.completed", AggregateOrder, "o-1", nil, 0)

	assert.Equal(t, LedgerPending, e.Status)
	assert.Equal(t, 0, e.Attempts)
	assert.Equal(t, DefaultMaxAttempts, e.MaxAttempts)
	assert.JSONEq(t, `{}`, string(e.Payload))
	assert.True(t, e.IsEligible(t0))
}

func TestClaimOnlyFromEligiblePending(t *testing.T) {
	e := claimed(t, 5)
	assert.Equal(t, LedgerProcessing, e.Status)
	require.NotNil(t, e.ClaimedAt)

	err := e.Claim(t0)
	assert.ErrorIs(t, err, appers.ErrInvalidTransition)

	future := t0.Add(time.Minute)
	delayed := NewLedgerEvent("order.completed", AggregateOrder, "o-1", nil, 5)
	delayed.NextRetryAt = &future
	assert.False(t, delayed.IsEligible(t0))
	assert.ErrorIs(t, delayed.Claim(t0), appers.ErrInvalidTransition)
	assert.True(t, delayed.IsEligible(future))
}

func TestCompleteIsIdempotent(t *testing.T) {
	e := claimed(t, 5)
	cause := "boom"
	e.LastError = &cause

	require.NoError(t, e.Complete(t0))
	assert.Equal(t, LedgerCompleted, e.Status)
	require.NotNil(t, e.ProcessedAt)
	assert.Equal(t, t0, *e.ProcessedAt)
	assert.Nil(t, e.LastError)

	require.NoError(t, e.Complete(t0.Add(time.Hour)))
	assert.Equal(t, t0, *e.ProcessedAt)
}

func TestCompleteRequiresProcessing(t *testing.T) {
	e := NewLedgerEvent("order.completed", AggregateOrder, "o-1", nil, 5)
	assert.ErrorIs(t, e.Complete(t0), appers.ErrInvalidTransition)
}

func TestFailSchedulesBackoff(t *testing.T) {
	e := claimed(t, 5)

	require.NoError(t, e.Fail("timeout", t0))
	assert.Equal(t, LedgerPending, e.Status)
	assert.Equal(t, 1, e.Attempts)
	require.NotNil(t, e.NextRetryAt)
	assert.Equal(t, t0.Add(2*time.Minute), *e.NextRetryAt)
	require.NotNil(t, e.LastError)
	assert.Equal(t, "timeout", *e.LastError)
	assert.False(t, e.IsEligible(t0))
	assert.True(t, e.IsEligible(t0.Add(2*time.Minute)))
}

func TestFailOnLastAttemptIsTerminal(t *testing.T) {
	e := claimed(t, 5)
	now := t0
	for i := 1; i < 5; i++ {
		require.NoError(t, e.Fail("5xx", now))
		assert.Equal(t, LedgerPending, e.Status)
		now = *e.NextRetryAt
		require.NoError(t, e.Claim(now))
	}

	require.Equal(t, 4, e.Attempts)
	require.NoError(t, e.Fail("5xx", now))
	assert.Equal(t, LedgerFailed, e.Status)
	assert.Equal(t, 5, e.Attempts)
	assert.True(t, e.IsTerminalFailure())
	assert.False(t, e.IsEligible(now.Add(24*time.Hour)))
	assert.LessOrEqual(t, e.Attempts, e.MaxAttempts)
}

func TestFailRequiresProcessing(t *testing.T) {
	e := NewLedgerEvent("order.completed", AggregateOrder, "o-1", nil, 5)
	assert.ErrorIs(t, e.Fail("x", t0), appers.ErrInvalidTransition)
	assert.Equal(t, 0, e.Attempts)
}

func TestFailPermanently(t *testing.T) {
	e := claimed(t, 5)

	require.NoError(t, e.FailPermanently("no handler", t0))
	assert.Equal(t, LedgerFailed, e.Status)
	assert.Equal(t, e.MaxAttempts, e.Attempts)
	assert.True(t, e.IsTerminalFailure())
}

func TestReset(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(e *LedgerEvent)
	}{
		{name: "pending", prepare: func(e *LedgerEvent) {}},
		{name: "processing", prepare: func(e *LedgerEvent) { _ = e.Claim(t0) }},
		{name: "failed", prepare: func(e *LedgerEvent) {
			_ = e.Claim(t0)
			_ = e.FailPermanently("x", t0)
		}},
		{name: "pending after retry", prepare: func(e *LedgerEvent) {
			_ = e.Claim(t0)
			_ = e.Fail("x", t0)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewLedgerEvent("order.completed", AggregateOrder, "o-1", nil, 5)
			tt.prepare(e)

			require.NoError(t, e.Reset(t0))
			assert.Equal(t, LedgerPending, e.Status)
			assert.Equal(t, 0, e.Attempts)
			assert.Nil(t, e.LastError)
			assert.Nil(t, e.NextRetryAt)
			assert.True(t, e.IsEligible(t0))
		})
	}
}

func TestResetRejectsCompleted(t *testing.T) {
	e := claimed(t, 5)
	require.NoError(t, e.Complete(t0))

	err := e.Reset(t0)
	assert.ErrorIs(t, err, appers.ErrLedgerEventCompleted)
	assert.Equal(t, LedgerCompleted, e.Status)
	assert.Equal(t, t0, *e.ProcessedAt)
}
