package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ghostagent/ghost-oracle/internal/logger"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.InitLogger()
}

func noRetries() *RetryConfig {
	return &RetryConfig{MaxRetries: 0}
}

func TestGet_DecodesJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/things/42", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_ = json.NewEncoder(w).Encode(map[string]string{"name": "widget"})
	}))
	defer server.Close()

	client := NewHTTPClient(WithBaseURL(server.URL), WithRetryConfig(noRetries()))

	resp, err := client.Get(context.Background(), "/things/42")
	require.NoError(t, err)

	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, client.ProcessJSONResponse(resp, &out))
	assert.Equal(t, "widget", out.Name)
}

func TestPost_SendsJSONBody(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(WithBaseURL(server.URL), WithRetryConfig(noRetries()))

	_, err := client.Post(context.Background(), "/submit", map[string]string{"key": "value"})
	require.NoError(t, err)
	assert.Equal(t, "value", got["key"])
}

func TestDoRequest_NonSuccessIsHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewHTTPClient(WithBaseURL(server.URL), WithRetryConfig(noRetries()))

	_, err := client.Get(context.Background(), "/missing")
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Contains(t, httpErr.Body, "not here")
}

func TestBearerTokenAndHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "abc", r.Header.Get("X-Request-Id"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(WithBaseURL(server.URL), WithRetryConfig(noRetries()))

	_, err := client.Get(context.Background(), "/",
		WithBearerToken("tok"),
		WithHeader("X-Request-Id", "abc"),
	)
	require.NoError(t, err)
}

func TestDoRequest_RetriesRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(WithBaseURL(server.URL), WithRetryConfig(&RetryConfig{
		MaxRetries:           2,
		InitialInterval:      time.Millisecond,
		MaxInterval:          5 * time.Millisecond,
		Multiplier:           2.0,
		MaxElapsedTime:       time.Second,
		RetryableStatusCodes: []int{http.StatusServiceUnavailable},
	}))

	resp, err := client.Get(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, int32(2), calls.Load())
}

func TestDoRequest_PostBodyIsResentOnRetry(t *testing.T) {
	var calls atomic.Int32
	var lastBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&lastBody)
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(WithBaseURL(server.URL), WithRetryConfig(&RetryConfig{
		MaxRetries:           2,
		InitialInterval:      time.Millisecond,
		MaxInterval:          5 * time.Millisecond,
		Multiplier:           2.0,
		MaxElapsedTime:       time.Second,
		RetryableStatusCodes: []int{http.StatusBadGateway},
	}))

	_, err := client.Post(context.Background(), "/submit", map[string]string{"key": "value"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "value", lastBody["key"])
}

func TestDoRequest_PathWithoutBaseURLMustBeAbsolute(t *testing.T) {
	client := NewHTTPClient(WithRetryConfig(noRetries()))

	_, err := client.Get(context.Background(), "relative/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid path")
}
