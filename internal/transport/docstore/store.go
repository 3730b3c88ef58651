package docstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"marketplace/pkg/config"
	"marketplace/pkg/httpclient"
	"marketplace/pkg/metrics"

	"go.uber.org/zap"
)

// Коллекции внешнего хранилища, которые читает витрина.
const (
	CollectionTemplates         = "templates"
	CollectionCategories        = "categories"
	CollectionReviews           = "reviews"
	CollectionOrderItemContents = "order_item_contents"
)

const (
	DriverTypesense = "typesense"
	DriverHTTP      = "http"
)

// Store - внешнее eventually-consistent хранилище документов.
// Upsert по одному и тому же id перезаписывает документ, а не создаёт новый.
type Store interface {
	Upsert(ctx context.Context, collection, id string, doc map[string]any) error
	HealthCheck(ctx context.Context) error
	Driver() string
}

// NewStore собирает драйвер из конфига. Для typesense на старте создаются коллекции.
func NewStore(ctx context.Context, conf config.DocStore, client httpclient.HTTPClient, logger *zap.SugaredLogger, m *metrics.Metrics) (Store, error) {
	switch strings.ToLower(conf.Driver) {
	case DriverTypesense, "":
		hosts := strings.Split(conf.Typesense.Hosts, ",")
		ts := NewTypesenseStore(conf.Typesense.APIKey, hosts, conf.Typesense.ConnectionTimeout, logger, m)
		if err := ts.EnsureCollectionsWithRetry(ctx, conf.Typesense.EnsureTimeout); err != nil {
			return nil, err
		}
		return ts, nil
	case DriverHTTP:
		if conf.BaseURL == "" {
			return nil, fmt.Errorf("docstore: baseURL is required for driver %q", DriverHTTP)
		}
		return NewHTTPStore(conf.BaseURL, conf.APIKey, client, logger, m), nil
	default:
		return nil, fmt.Errorf("docstore: unknown driver %q", conf.Driver)
	}
}

func observe(m *metrics.Metrics, driver, collection string, start time.Time, result string) {
	if m == nil {
		return
	}
	m.DocStore.RequestsTotal.WithLabelValues(driver, collection, result).Inc()
	m.DocStore.RequestDuration.WithLabelValues(driver, collection).Observe(time.Since(start).Seconds())
}
