package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/N9work/CrewAi-Project/config"
)

func noWait() backoff.BackOff { return &backoff.ZeroBackOff{} }

func testConfig(endpoint string) config.SearchConfig {
	return config.SearchConfig{
		SerperAPIKey: "test-key",
		Endpoint:     endpoint,
		MaxResults:   5,
		Timeout:      5 * time.Second,
		MaxRetries:   2,
	}
}

func TestInvokeFormatsOrganicResults(t *testing.T) {
	var got struct {
		Q   string `json:"q"`
		Num int    `json:"num"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("X-API-KEY"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"organic":[{"title":"Koh Kradan","link":"https://a.example/kradan","snippet":"beach"},{"title":"Trang night market","link":"https://b.example/market"}],"knowledgeGraph":{"title":"ignored"}}`))
	}))
	defer srv.Close()

	s := New(testConfig(srv.URL), WithBackOff(noWait))
	c, err := s.Invoke(context.Background(), "natural trip in Trang")
	require.NoError(t, err)

	assert.Equal(t, "natural trip in Trang", got.Q)
	assert.Equal(t, 5, got.Num)
	assert.Equal(t, "Search results for: natural trip in Trang", c.Label)
	assert.Equal(t, "- Koh Kradan: https://a.example/kradan\n- Trang night market: https://b.example/market", c.Body)
}

func TestMissingKeyMakesNoRequest(t *testing.T) {
	t.Setenv("SERPER_API_KEY", "")
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.SerperAPIKey = ""
	_, err := New(cfg).Invoke(context.Background(), "anything")

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestServerErrorsRetriedToBound(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "upstream broke", http.StatusBadGateway)
	}))
	defer srv.Close()

	var retries []int
	s := New(testConfig(srv.URL), WithBackOff(noWait), WithRetryHook(func(attempt int, err error) {
		retries = append(retries, attempt)
	}))
	_, err := s.Search(context.Background(), "q")

	var tie *ToolInvocationError
	require.True(t, errors.As(err, &tie))
	assert.Equal(t, http.StatusBadGateway, tie.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
	assert.Equal(t, []int{1, 2}, retries)
}

func TestRetrySucceedsAfterRateLimit(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"organic":[{"title":"Satun","link":"https://s.example"}]}`))
	}))
	defer srv.Close()

	results, err := New(testConfig(srv.URL), WithBackOff(noWait)).Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []Result{{Title: "Satun", Link: "https://s.example"}}, results)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestClientErrorsNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, `{"message":"Unauthorized."}`, http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := New(testConfig(srv.URL), WithBackOff(noWait)).Search(context.Background(), "q")
	var tie *ToolInvocationError
	require.True(t, errors.As(err, &tie))
	assert.Equal(t, http.StatusForbidden, tie.StatusCode)
	assert.Contains(t, tie.Body, "Unauthorized")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestCancelledContextStopsSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(testConfig(srv.URL), WithBackOff(noWait)).Search(ctx, "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormatResultsEmpty(t *testing.T) {
	assert.Equal(t, "", FormatResults(nil))
}

func TestSearchTimeoutStopsWithoutRetry(t *testing.T) {
	var hits int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := testConfig(srv.URL)
	cfg.Timeout = 100 * time.Millisecond
	var retries int32
	s := New(cfg, WithBackOff(noWait), WithRetryHook(func(int, error) { atomic.AddInt32(&retries, 1) }))

	start := time.Now()
	_, err := s.Invoke(context.Background(), "koh lanta")
	elapsed := time.Since(start)

	require.Error(t, err)
	var tie *ToolInvocationError
	require.True(t, errors.As(err, &tie))
	assert.Zero(t, tie.StatusCode)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, elapsed, 2*time.Second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Zero(t, atomic.LoadInt32(&retries))
}
