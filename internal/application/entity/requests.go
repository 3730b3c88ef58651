package entity

import "encoding/json"

// EnqueueRequest - факт от внешнего производителя (HTTP или kafka).
type EnqueueRequest struct {
	EventType     string          `json:"event_type" validate:"required,event_type"`
	AggregateType string          `json:"aggregate_type" validate:"required,min=1,max=64"`
	AggregateID   string          `json:"aggregate_id" validate:"required,min=1,max=128"`
	Payload       json.RawMessage `json:"payload" swaggertype:"object"`
	MaxAttempts   int             `json:"max_attempts,omitempty" validate:"omitempty,min=1,max=50"`
}

type EnqueueResponse struct {
	ID int64 `json:"id" example:"42"`
}

// OrderItemContent - новое содержимое позиции заказа, готовое к публикации.
type OrderItemContent struct {
	ID      string          `json:"-"`
	Title   string          `json:"title" validate:"omitempty,max=200"`
	Content json.RawMessage `json:"content" validate:"required" swaggertype:"object"`
}

type DispatchResponse struct {
	Submitted int `json:"submitted" example:"10"`
}

type ReclaimResponse struct {
	Reclaimed int `json:"reclaimed" example:"1"`
}

type ResetSyncResponse struct {
	Tracker     SyncTracker `json:"tracker"`
	ResetEvents int64       `json:"resetEvents" example:"1"`
}
