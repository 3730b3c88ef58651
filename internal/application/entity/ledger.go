package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"marketplace/internal/appers"
	"marketplace/internal/application/common"
)

type LedgerStatus string

const (
	LedgerPending    LedgerStatus = "pending"
	LedgerProcessing LedgerStatus = "processing"
	LedgerCompleted  LedgerStatus = "completed"
	LedgerFailed     LedgerStatus = "failed"
)

const DefaultMaxAttempts = 5

// LedgerEvent - строка sync_ledger: один факт, который нужно отразить во внешнем хранилище.
type LedgerEvent struct {
	ID            int64           `db:"id" json:"id"`
	EventType     string          `db:"event_type" json:"eventType"`         // "order.completed" / ...
	AggregateType string          `db:"aggregate_type" json:"aggregateType"` // "order_item" / "template" / ...
	AggregateID   string          `db:"aggregate_id" json:"aggregateId"`
	Payload       json.RawMessage `db:"payload" json:"payload" swaggertype:"object"` // JSONB, не меняется после создания
	Status        LedgerStatus    `db:"status" json:"status"`
	Attempts      int             `db:"attempts" json:"attempts"`
	MaxAttempts   int             `db:"max_attempts" json:"maxAttempts"`
	LastError     *string         `db:"last_error" json:"lastError,omitempty"`
	ProcessedAt   *time.Time      `db:"processed_at" json:"processedAt,omitempty"`
	NextRetryAt   *time.Time      `db:"next_retry_at" json:"nextRetryAt,omitempty"`
	ClaimedAt     *time.Time      `db:"claimed_at" json:"claimedAt,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updatedAt"`
}

// NewLedgerEvent собирает событие в статусе pending. maxAttempts <= 0 заменяется на DefaultMaxAttempts.
func NewLedgerEvent(eventType, aggregateType, aggregateID string, payload json.RawMessage, maxAttempts int) *LedgerEvent {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	return &LedgerEvent{
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       payload,
		Status:        LedgerPending,
		MaxAttempts:   maxAttempts,
	}
}

// IsEligible - событие можно забрать в обработку прямо сейчас.
func (e *LedgerEvent) IsEligible(now time.Time) bool {
	return e.Status == LedgerPending && (e.NextRetryAt == nil || !e.NextRetryAt.After(now))
}

// IsTerminalFailure - попытки исчерпаны, вернуть в pipeline можно только через Reset.
func (e *LedgerEvent) IsTerminalFailure() bool {
	return e.Status == LedgerFailed && e.Attempts >= e.MaxAttempts
}

// Claim: pending -> processing. В БД то же самое делает условный UPDATE (ClaimLedgerEvent).
func (e *LedgerEvent) Claim(now time.Time) error {
	if !e.IsEligible(now) {
		return fmt.Errorf("[ID %d] claim from %s: %w", e.ID, e.Status, appers.ErrInvalidTransition)
	}
	e.Status = LedgerProcessing
	e.ClaimedAt = &now
	e.UpdatedAt = now
	return nil
}

// Complete: processing -> completed. Повторный вызов на completed ничего не меняет.
func (e *LedgerEvent) Complete(now time.Time) error {
	switch e.Status {
	case LedgerCompleted:
		return nil
	case LedgerProcessing:
	default:
		return fmt.Errorf("[ID %d] complete from %s: %w", e.ID, e.Status, appers.ErrInvalidTransition)
	}

	e.Status = LedgerCompleted
	if e.ProcessedAt == nil {
		e.ProcessedAt = &now
	}
	e.LastError = nil
	e.NextRetryAt = nil
	e.ClaimedAt = nil
	e.UpdatedAt = now
	return nil
}

// Fail: processing -> pending (с бэкоффом) или failed, если попытки исчерпаны.
func (e *LedgerEvent) Fail(cause string, now time.Time) error {
	if e.Status != LedgerProcessing {
		return fmt.Errorf("[ID %d] fail from %s: %w", e.ID, e.Status, appers.ErrInvalidTransition)
	}

	if e.Attempts < e.MaxAttempts {
		e.Attempts++
	}
	next := now.Add(common.Backoff(e.Attempts))
	e.NextRetryAt = &next
	e.LastError = &cause
	e.ClaimedAt = nil
	e.UpdatedAt = now

	if e.Attempts < e.MaxAttempts {
		e.Status = LedgerPending
	} else {
		e.Status = LedgerFailed
	}
	return nil
}

// FailPermanently сразу переводит событие в терминальный failed (ошибка не лечится ретраем).
func (e *LedgerEvent) FailPermanently(cause string, now time.Time) error {
	if e.Status != LedgerProcessing {
		return fmt.Errorf("[ID %d] fail from %s: %w", e.ID, e.Status, appers.ErrInvalidTransition)
	}

	e.Attempts = e.MaxAttempts
	e.Status = LedgerFailed
	e.LastError = &cause
	e.NextRetryAt = nil
	e.ClaimedAt = nil
	e.UpdatedAt = now
	return nil
}

// Reset возвращает событие в pending с нулевыми попытками. Completed неизменяем.
func (e *LedgerEvent) Reset(now time.Time) error {
	if e.Status == LedgerCompleted {
		return appers.ErrLedgerEventCompleted
	}

	e.Status = LedgerPending
	e.Attempts = 0
	e.LastError = nil
	e.NextRetryAt = nil
	e.ClaimedAt = nil
	e.UpdatedAt = now
	return nil
}
