package entity

import (
	"fmt"
	"time"

	"marketplace/internal/appers"
)

type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

const (
	AggregateOrderItem = "order_item"
	AggregateOrder     = "order"
	AggregateTemplate  = "template"
	AggregateCategory  = "category"
	AggregateReview    = "review"
)

// Статусы, которые видит пользователь (считаются из SyncTracker).
const (
	DisplayProcessing = "processing"
	DisplayReady      = "ready"
	DisplayFailed     = "failed"
)

// SyncTracker - денормализованные поля статуса репликации на бизнес-строке (order_items).
type SyncTracker struct {
	AggregateType    string     `json:"aggregateType"`
	AggregateID      string     `json:"aggregateId"`
	Status           SyncStatus `json:"syncStatus"`
	Attempts         int        `json:"syncAttempts"`
	Error            *string    `json:"syncError,omitempty"`
	ExternalRecordID *string    `json:"externalRecordId,omitempty"`
	SyncedAt         *time.Time `json:"syncedAt,omitempty"`
}

func (t *SyncTracker) MarkSynced(externalID string, now time.Time) error {
	if externalID == "" {
		return fmt.Errorf("[%s %s] mark synced without external id: %w", t.AggregateType, t.AggregateID, appers.ErrInvalidTransition)
	}
	t.Status = SyncSynced
	t.ExternalRecordID = &externalID
	t.Error = nil
	t.SyncedAt = &now
	return nil
}

func (t *SyncTracker) MarkFailed(cause string, maxAttempts int) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if t.Attempts < maxAttempts {
		t.Attempts++
	}
	if t.Attempts >= maxAttempts {
		t.Status = SyncFailed
	} else {
		t.Status = SyncPending
	}
	t.Error = &cause
}

// MarkFailedPermanently - ledger событие агрегата упало терминально, ретраев больше не будет.
func (t *SyncTracker) MarkFailedPermanently(cause string, maxAttempts int) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if t.Attempts < maxAttempts {
		t.Attempts = maxAttempts
	}
	t.Status = SyncFailed
	t.Error = &cause
}

func (t *SyncTracker) Reset() {
	t.Status = SyncPending
	t.Attempts = 0
	t.Error = nil
	t.ExternalRecordID = nil
	t.SyncedAt = nil
}

// NeedsSync: pending, либо failed с неисчерпанными попытками.
func (t *SyncTracker) NeedsSync(maxAttempts int) bool {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return t.Status == SyncPending || (t.Status == SyncFailed && t.Attempts < maxAttempts)
}

// DisplayStatus - то, что показывает витрина: "processing", "ready" или "failed".
func (t *SyncTracker) DisplayStatus() string {
	switch t.Status {
	case SyncSynced:
		return DisplayReady
	case SyncFailed:
		return DisplayFailed
	default:
		return DisplayProcessing
	}
}

// SyncStateResponse - ответ API по состоянию синхронизации агрегата.
type SyncStateResponse struct {
	SyncTracker
	DisplayStatus string `json:"displayStatus" example:"ready"`
}
