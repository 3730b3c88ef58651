package entity

import (
	"testing"

	"marketplace/internal/appers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTracker() *SyncTracker {
	return &SyncTracker{AggregateType: AggregateOrderItem, AggregateID: "item-1", Status: SyncPending}
}

func TestTrackerMarkSynced(t *testing.T) {
	tr := newTracker()
	cause := "503"
	tr.Error = &cause

	require.NoError(t, tr.MarkSynced("ext-1", t0))
	assert.Equal(t, SyncSynced, tr.Status)
	require.NotNil(t, tr.ExternalRecordID)
	assert.Equal(t, "ext-1", *tr.ExternalRecordID)
	assert.Nil(t, tr.Error)
	assert.Equal(t, DisplayReady, tr.DisplayStatus())
	assert.False(t, tr.NeedsSync(5))
}

func TestTrackerMarkSyncedRequiresExternalID(t *testing.T) {
	tr := newTracker()
	assert.ErrorIs(t, tr.MarkSynced("", t0), appers.ErrInvalidTransition)
	assert.Equal(t, SyncPending, tr.Status)
}

func TestTrackerFailsAfterMaxAndResets(t *testing.T) {
	tr := newTracker()

	for i := 1; i <= 4; i++ {
		tr.MarkFailed("timeout", 5)
		assert.Equal(t, SyncPending, tr.Status, "attempt %d", i)
		assert.Equal(t, i, tr.Attempts)
		assert.True(t, tr.NeedsSync(5))
	}

	tr.MarkFailed("timeout", 5)
	assert.Equal(t, SyncFailed, tr.Status)
	assert.Equal(t, 5, tr.Attempts)
	assert.False(t, tr.NeedsSync(5))
	assert.Equal(t, DisplayFailed, tr.DisplayStatus())

	tr.MarkFailed("timeout", 5)
	assert.Equal(t, 5, tr.Attempts)

	tr.Reset()
	assert.Equal(t, SyncPending, tr.Status)
	assert.Equal(t, 0, tr.Attempts)
	assert.Nil(t, tr.Error)
	assert.Nil(t, tr.ExternalRecordID)
	assert.True(t, tr.NeedsSync(5))
	assert.Equal(t, DisplayProcessing, tr.DisplayStatus())
}

func TestTrackerNeedsSyncFailedBelowMax(t *testing.T) {
	tr := newTracker()
	tr.Status = SyncFailed
	tr.Attempts = 2

	// например, max подняли в конфиге после того, как строка уже упала
	assert.True(t, tr.NeedsSync(5))
	assert.False(t, tr.NeedsSync(2))
}

func TestTrackerMarkFailedPermanently(t *testing.T) {
	tr := newTracker()
	tr.MarkFailed("timeout", 5)

	tr.MarkFailedPermanently("400 bad document", 5)
	assert.Equal(t, SyncFailed, tr.Status)
	assert.Equal(t, 5, tr.Attempts)
	require.NotNil(t, tr.Error)
	assert.Equal(t, "400 bad document", *tr.Error)
	assert.False(t, tr.NeedsSync(5))
}
