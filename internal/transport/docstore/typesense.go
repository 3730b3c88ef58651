package docstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"marketplace/internal/appers"
	"marketplace/pkg/metrics"

	"github.com/cenkalti/backoff/v4"
	"github.com/typesense/typesense-go/typesense"
	"github.com/typesense/typesense-go/typesense/api"
	"go.uber.org/zap"
)

// TypesenseStore пишет документы в коллекции Typesense.
type TypesenseStore struct {
	Client *typesense.Client
	logger *zap.SugaredLogger
	m      *metrics.Metrics
}

func NewTypesenseStore(apiKey string, hosts []string, timeout time.Duration, logger *zap.SugaredLogger, m *metrics.Metrics) *TypesenseStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := typesense.NewClient(
		typesense.WithServer(hosts[0]),
		typesense.WithAPIKey(apiKey),
		typesense.WithConnectionTimeout(timeout),
		typesense.WithCircuitBreakerMaxRequests(50),
		typesense.WithCircuitBreakerInterval(2*time.Minute),
		typesense.WithCircuitBreakerTimeout(1*time.Minute),
	)
	return &TypesenseStore{Client: client, logger: logger, m: m}
}

func (t *TypesenseStore) Driver() string { return DriverTypesense }

// Upsert - id документа задаёт вызывающий (детерминированный внешний id), поэтому повтор безопасен.
func (t *TypesenseStore) Upsert(ctx context.Context, collection, id string, doc map[string]any) error {
	start := time.Now()
	doc["id"] = id

	_, err := t.Client.Collection(collection).Documents().Upsert(ctx, doc)
	if err != nil {
		err = classifyTypesenseError(err)
		result := "error"
		if appers.IsPermanent(err) {
			result = "permanent"
		}
		observe(t.m, DriverTypesense, collection, start, result)
		return fmt.Errorf("failed to upsert document %s/%s in Typesense: %w", collection, id, err)
	}

	observe(t.m, DriverTypesense, collection, start, "ok")
	return nil
}

func (t *TypesenseStore) HealthCheck(ctx context.Context) error {
	if _, err := t.Client.Collections().Retrieve(ctx); err != nil {
		return fmt.Errorf("typesense health check failed: %w", err)
	}
	return nil
}

// EnsureCollections создаёт недостающие коллекции; существующие не трогает.
func (t *TypesenseStore) EnsureCollections(ctx context.Context) error {
	for _, schema := range collectionSchemas() {
		if _, err := t.Client.Collections().Create(ctx, schema); err != nil {
			if strings.Contains(err.Error(), "already exists") {
				continue
			}
			return fmt.Errorf("failed to create collection %s: %w", schema.Name, err)
		}
		t.logger.Infof("typesense collection %s created", schema.Name)
	}
	return nil
}

// EnsureCollectionsWithRetry ждёт Typesense на старте (контейнер может подниматься дольше сервиса).
func (t *TypesenseStore) EnsureCollectionsWithRetry(ctx context.Context, maxElapsed time.Duration) error {
	b := backoff.NewExponentialBackOff()
	if maxElapsed > 0 {
		b.MaxElapsedTime = maxElapsed
	}

	return backoff.RetryNotify(
		func() error { return t.EnsureCollections(ctx) },
		backoff.WithContext(b, ctx),
		func(err error, next time.Duration) {
			t.logger.Warnf("typesense not ready, retry in %s: %v", next, err)
		},
	)
}

// classifyTypesenseError: 4xx кроме 408/429 ретраем не лечится.
func classifyTypesenseError(err error) error {
	var httpErr *typesense.HTTPError
	if errors.As(err, &httpErr) && isPermanentStatus(httpErr.Status) {
		return appers.Permanent(err)
	}
	return err
}

func isPermanentStatus(status int) bool {
	if status == http.StatusRequestTimeout || status == http.StatusTooManyRequests {
		return false
	}
	return status >= 400 && status < 500
}

func collectionSchemas() []*api.CollectionSchema {
	facet := true
	optional := true
	sortBy := "synced_at"
	enableNested := true

	base := func(name string, fields ...api.Field) *api.CollectionSchema {
		all := []api.Field{
			{Name: "aggregate_id", Type: "string", Facet: &facet},
			{Name: "event_type", Type: "string", Facet: &facet},
			{Name: "deleted", Type: "bool", Facet: &facet, Optional: &optional},
			{Name: "synced_at", Type: "int64"},
			{Name: ".*", Type: "auto"},
		}
		return &api.CollectionSchema{
			Name:                name,
			Fields:              append(all, fields...),
			DefaultSortingField: &sortBy,
			EnableNestedFields:  &enableNested,
		}
	}

	return []*api.CollectionSchema{
		base(CollectionTemplates,
			api.Field{Name: "title", Type: "string", Optional: &optional},
			api.Field{Name: "category_id", Type: "string", Facet: &facet, Optional: &optional},
		),
		base(CollectionCategories,
			api.Field{Name: "name", Type: "string", Optional: &optional},
		),
		base(CollectionReviews,
			api.Field{Name: "template_id", Type: "string", Facet: &facet, Optional: &optional},
			api.Field{Name: "rating", Type: "int32", Facet: &facet, Optional: &optional},
		),
		base(CollectionOrderItemContents,
			api.Field{Name: "order_id", Type: "string", Facet: &facet, Optional: &optional},
		),
	}
}
