package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"marketplace/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRetryClient_RetriesServerErrorAndResendsBody(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"a":1}`, string(body))
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewRetryClient(NewClient(config.HTTPClient{}), 2, zap.NewNop().Sugar())
	req, err := http.NewRequest(http.MethodPut, srv.URL, strings.NewReader(`{"a":1}`))
	require.NoError(t, err)

	resp, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestRetryClient_DoesNotRetryClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewRetryClient(NewClient(config.HTTPClient{}), 3, zap.NewNop().Sugar())
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)

	resp, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestIsRetryableStatus(t *testing.T) {
	assert.True(t, IsRetryableStatus(http.StatusServiceUnavailable))
	assert.True(t, IsRetryableStatus(http.StatusTooManyRequests))
	assert.True(t, IsRetryableStatus(http.StatusRequestTimeout))
	assert.False(t, IsRetryableStatus(http.StatusConflict))
}
