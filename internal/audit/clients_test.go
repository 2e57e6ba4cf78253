package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadClient_Fetch(t *testing.T) {
	var requestedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"timestamp":     1700000000,
			"amountWei":     "250000000000000000",
			"originCountry": "GB",
			"metadata":      map[string]interface{}{"purpose": "settlement"},
			"intentHash":    testIntent.Hex(),
		})
	}))
	defer server.Close()

	client := NewPayloadClient(server.URL, time.Second)
	payload, err := client.Fetch(context.Background(), testIntent)
	require.NoError(t, err)

	assert.Equal(t, "/intents/"+testIntent.Hex(), requestedPath)
	assert.Equal(t, int64(1700000000), payload.Timestamp)
	assert.Equal(t, "250000000000000000", payload.AmountWei.String())
	assert.Equal(t, "GB", payload.OriginCountry)
	assert.Equal(t, "settlement", payload.Metadata["purpose"])
	assert.Equal(t, testIntent.Hex(), payload.IntentHash)
}

func TestPayloadClient_MissingAmountDefaultsToZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"timestamp":     1700000000,
			"originCountry": "US",
		})
	}))
	defer server.Close()

	client := NewPayloadClient(server.URL, time.Second)
	payload, err := client.Fetch(context.Background(), testIntent)
	require.NoError(t, err)
	assert.Zero(t, payload.AmountWei.Sign())
}

func TestPayloadClient_NotFoundIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such intent", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewPayloadClient(server.URL, time.Second)
	_, err := client.Fetch(context.Background(), testIntent)
	require.Error(t, err)
}

func TestPayloadClient_MalformedBodyIsError(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "<html>oops</html>"},
		{"non-numeric amount", `{"timestamp":1700000000,"amountWei":1.5,"originCountry":"US"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewPayloadClient(server.URL, time.Second)
			_, err := client.Fetch(context.Background(), testIntent)
			require.Error(t, err)
		})
	}
}

func TestRiskClient_Score(t *testing.T) {
	var gotAuth string
	var gotBody riskRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]int{"riskScore": 42})
	}))
	defer server.Close()

	client := NewRiskClient(server.URL, "secret-token", time.Second)
	score, err := client.Score(context.Background(), testIntent, map[string]interface{}{"purpose": "test"})
	require.NoError(t, err)

	assert.Equal(t, 42, score)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, testIntent.Hex(), gotBody.IntentHash)
	assert.Equal(t, "test", gotBody.Metadata["purpose"])
}

func TestRiskClient_ServerErrorIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewRiskClient(server.URL, "secret-token", time.Second)
	_, err := client.Score(context.Background(), testIntent, nil)
	require.Error(t, err)
}
