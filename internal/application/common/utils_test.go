package common

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffDoublesPerAttempt(t *testing.T) {
	want := []time.Duration{2 * time.Minute, 4 * time.Minute, 8 * time.Minute, 16 * time.Minute, 32 * time.Minute}

	var prev time.Duration
	for i, w := range want {
		got := Backoff(i + 1)
		assert.Equal(t, w, got, "attempt %d", i+1)
		assert.Greater(t, got, prev)
		prev = got
	}
}

func TestBackoffBounds(t *testing.T) {
	assert.Equal(t, time.Minute, Backoff(0))
	assert.Equal(t, time.Minute, Backoff(-3))
	assert.Equal(t, Backoff(maxBackoffShift), Backoff(1000))
	assert.Greater(t, Backoff(1000), time.Duration(0))
}

func TestExternalIDIsDeterministic(t *testing.T) {
	a := ExternalID("order_item", "42")
	b := ExternalID("order_item", "42")
	assert.Equal(t, a, b)

	parsed, err := uuid.FromString(a)
	require.NoError(t, err)
	assert.Equal(t, byte(uuid.V5), parsed.Version())

	assert.NotEqual(t, a, ExternalID("order_item", "43"))
	assert.NotEqual(t, a, ExternalID("template", "42"))
}

func TestNextBackoffWithJitterRange(t *testing.T) {
	for attempt := 0; attempt < 10; attempt++ {
		base := time.Second << attempt
		if base > 30*time.Second {
			base = 30 * time.Second
		}
		d := NextBackoffWithJitter(attempt)
		assert.GreaterOrEqual(t, d, base/2)
		assert.Less(t, d, base)
	}
}

func TestSleepCtxCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := SleepCtx(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, SleepCtx(context.Background(), 0))
}
