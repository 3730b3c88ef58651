package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"marketplace/internal/appers"
	"marketplace/internal/application/common"
	"marketplace/internal/application/entity"
	"marketplace/internal/transport/docstore"
	"marketplace/internal/transport/producer"
)

const (
	EventTemplatePublished     = "template.published"
	EventTemplateUpdated       = "template.updated"
	EventTemplateUnpublished   = "template.unpublished"
	EventCategoryUpserted      = "category.upserted"
	EventReviewCreated         = "review.created"
	EventOrderItemContentReady = "order_item.content_ready"
	EventOrderCompleted        = "order.completed"
)

type orderItemContentPayload struct {
	OrderItemID string          `json:"order_item_id"`
	Title       string          `json:"title,omitempty"`
	Content     json.RawMessage `json:"content"`
}

// orderEnvelope - то, что уходит в kafka по order.completed.
type orderEnvelope struct {
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	ExternalID    string          `json:"external_id"`
	LedgerEventID int64           `json:"ledger_event_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// RegisterDefaultHandlers подключает обработчики витрины. kafka может быть nil,
// тогда order.completed не регистрируется и такие события не принимаются.
func RegisterDefaultHandlers(reg *Registry, store docstore.Store, kafka producer.Producer, now func() time.Time) {
	if now == nil {
		now = utcNow
	}

	upsert := func(collection string) Handler {
		return func(ctx context.Context, e entity.LedgerEvent) (string, error) {
			externalID := common.ExternalID(e.AggregateType, e.AggregateID)
			doc, err := buildDocument(e, now())
			if err != nil {
				return "", err
			}
			if err = store.Upsert(ctx, collection, externalID, doc); err != nil {
				return "", err
			}
			return externalID, nil
		}
	}

	reg.Register(EventTemplatePublished, upsert(docstore.CollectionTemplates))
	reg.Register(EventTemplateUpdated, upsert(docstore.CollectionTemplates))
	reg.Register(EventCategoryUpserted, upsert(docstore.CollectionCategories))
	reg.Register(EventReviewCreated, upsert(docstore.CollectionReviews))
	reg.Register(EventOrderItemContentReady, upsert(docstore.CollectionOrderItemContents))

	// снятие с публикации - tombstone в тот же документ, чтобы поздний template.updated его не воскресил
	reg.Register(EventTemplateUnpublished, func(ctx context.Context, e entity.LedgerEvent) (string, error) {
		externalID := common.ExternalID(e.AggregateType, e.AggregateID)
		doc := baseDocument(e, now())
		doc["deleted"] = true
		if err := store.Upsert(ctx, docstore.CollectionTemplates, externalID, doc); err != nil {
			return "", err
		}
		return externalID, nil
	})

	if kafka != nil {
		reg.Register(EventOrderCompleted, func(ctx context.Context, e entity.LedgerEvent) (string, error) {
			externalID := common.ExternalID(e.AggregateType, e.AggregateID)
			msg, err := json.Marshal(orderEnvelope{
				EventType:     e.EventType,
				AggregateType: e.AggregateType,
				AggregateID:   e.AggregateID,
				ExternalID:    externalID,
				LedgerEventID: e.ID,
				OccurredAt:    e.CreatedAt,
				Payload:       e.Payload,
			})
			if err != nil {
				return "", appers.Permanent(fmt.Errorf("marshal order envelope: %w", err))
			}
			if err = kafka.ProduceMessage(ctx, externalID, msg); err != nil {
				return "", err
			}
			return externalID, nil
		})
	}
}

// buildDocument: поля payload плюс служебные поля. Payload обязан быть JSON-объектом.
func buildDocument(e entity.LedgerEvent, syncedAt time.Time) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal(e.Payload, &fields); err != nil {
		return nil, appers.Permanent(fmt.Errorf("[ID %d] payload is not a JSON object: %w", e.ID, err))
	}
	if fields == nil {
		return nil, appers.Permanent(fmt.Errorf("[ID %d] payload is null", e.ID))
	}

	doc := baseDocument(e, syncedAt)
	for k, v := range fields {
		switch k {
		case "id":
			// id документа - внешний идентификатор, исходный сохраняем рядом
			doc["source_id"] = v
		case "aggregate_type", "aggregate_id", "event_type", "ledger_event_id", "synced_at":
		default:
			doc[k] = v
		}
	}
	return doc, nil
}

func baseDocument(e entity.LedgerEvent, syncedAt time.Time) map[string]any {
	return map[string]any{
		"aggregate_type":  e.AggregateType,
		"aggregate_id":    e.AggregateID,
		"event_type":      e.EventType,
		"ledger_event_id": e.ID,
		"synced_at":       syncedAt.Unix(),
		"deleted":         false,
	}
}
