package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"marketplace/internal/appers"
	"marketplace/pkg/httpclient"
	"marketplace/pkg/metrics"

	"go.uber.org/zap"
)

// HTTPStore - универсальный драйвер: PUT {baseURL}/{collection}/{id} с JSON телом.
type HTTPStore struct {
	baseURL string
	apiKey  string
	client  httpclient.HTTPClient
	logger  *zap.SugaredLogger
	m       *metrics.Metrics
}

func NewHTTPStore(baseURL, apiKey string, client httpclient.HTTPClient, logger *zap.SugaredLogger, m *metrics.Metrics) *HTTPStore {
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
		logger:  logger,
		m:       m,
	}
}

func (s *HTTPStore) Driver() string { return DriverHTTP }

func (s *HTTPStore) Upsert(ctx context.Context, collection, id string, doc map[string]any) error {
	start := time.Now()
	doc["id"] = id

	body, err := json.Marshal(doc)
	if err != nil {
		observe(s.m, DriverHTTP, collection, start, "permanent")
		return appers.Permanent(fmt.Errorf("marshal document %s/%s: %w", collection, id, err))
	}

	endpoint := fmt.Sprintf("%s/%s/%s", s.baseURL, url.PathEscape(collection), url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		observe(s.m, DriverHTTP, collection, start, "permanent")
		return appers.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	s.authorize(req)

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		observe(s.m, DriverHTTP, collection, start, "error")
		return fmt.Errorf("upsert %s/%s: %w", collection, id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		observe(s.m, DriverHTTP, collection, start, "ok")
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	err = fmt.Errorf("upsert %s/%s: status %d: %s", collection, id, resp.StatusCode, strings.TrimSpace(string(msg)))
	if !httpclient.IsRetryableStatus(resp.StatusCode) {
		observe(s.m, DriverHTTP, collection, start, "permanent")
		return appers.Permanent(err)
	}
	observe(s.m, DriverHTTP, collection, start, "error")
	return err
}

// HealthCheck - GET {baseURL}/health, здоровым считаем любой 2xx.
func (s *HTTPStore) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	s.authorize(req)

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("docstore health check failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("docstore health check failed: status %d", resp.StatusCode)
	}
	return nil
}

func (s *HTTPStore) authorize(req *http.Request) {
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
}
