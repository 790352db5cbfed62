package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/crucible/types"
)

func TestClient_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req completionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "review this", req.Messages[0].Content)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"approved\":true}"}}]}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL, APIKey: "sk-test", Model: "gpt-test"})
	require.NoError(t, err)

	out, err := client.Complete(context.Background(), "review this")
	require.NoError(t, err)
	assert.Equal(t, `{"approved":true}`, out)
}

func TestClient_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL, Model: "gpt-test"})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, types.IsRetryable(err))

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer empty.Close()

	client, err = NewClient(Config{BaseURL: empty.URL, Model: "gpt-test"})
	require.NoError(t, err)
	_, err = client.Complete(context.Background(), "x")
	assert.True(t, types.IsErrorCode(err, types.ErrUpstreamError))
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{Model: "m"})
	assert.True(t, types.IsErrorCode(err, types.ErrConfiguration))

	_, err = NewClient(Config{BaseURL: "http://localhost"})
	assert.True(t, types.IsErrorCode(err, types.ErrConfiguration))
}
