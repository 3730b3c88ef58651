package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"marketplace/internal/application/common"

	"go.uber.org/zap"
)

// RetryClient - короткие повторы внутри одной попытки relay.
// Долгие повторы делает ledger через next_retry_at, здесь только сглаживаем сетевые всплески.
type RetryClient struct {
	delegate    HTTPClient
	maxRetries  int
	ShouldRetry func(*http.Response, error) bool
	logger      *zap.SugaredLogger
}

func NewRetryClient(delegate HTTPClient, maxRetries int, logger *zap.SugaredLogger) *RetryClient {
	if maxRetries <= 0 {
		maxRetries = 1
	}

	return &RetryClient{
		delegate:   delegate,
		maxRetries: maxRetries,
		ShouldRetry: func(resp *http.Response, err error) bool {
			// отмену и дедлайн не ретраим
			if err != nil {
				return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
			}
			if resp == nil {
				return true
			}
			return IsRetryableStatus(resp.StatusCode)
		},
		logger: logger,
	}
}

// IsRetryableStatus: 5xx, 408 и 429 имеет смысл повторить, остальное нет.
func IsRetryableStatus(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout
}

func (c *RetryClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error

	// тело читаем один раз, чтобы пересылать его на каждой попытке
	if req.Body != nil && req.GetBody == nil {
		buf, e := io.ReadAll(req.Body)
		if e != nil {
			return nil, e
		}
		_ = req.Body.Close()
		req.ContentLength = int64(len(buf))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(buf)), nil
		}
	}

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		r := req.Clone(ctx)
		if req.GetBody != nil {
			rc, e := req.GetBody()
			if e != nil {
				return nil, e
			}
			r.Body = rc
		}

		resp, err = c.delegate.Do(ctx, r)

		if !c.ShouldRetry(resp, err) || attempt == c.maxRetries-1 {
			return resp, err
		}

		// соединение возвращаем в пул до повтора
		if resp != nil && resp.Body != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}

		backoff := common.NextBackoffWithJitter(attempt + 1)
		c.logger.Warnf("retry attempt=%d backoff=%s method=%s url=%s err=%v",
			attempt+1, backoff, req.Method, req.URL.String(), err)

		if err = common.SleepCtx(ctx, backoff); err != nil {
			return nil, fmt.Errorf("retry sleep canceled: %w", err)
		}
	}

	return resp, err
}
