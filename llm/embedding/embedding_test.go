package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/crucible/internal/cache"
	"github.com/BaSui01/crucible/types"
)

// --- ChooseModel ---

func TestChooseModel(t *testing.T) {
	assert.Equal(t, "req-model", ChooseModel("req-model", "default", "fallback"))
	assert.Equal(t, "default", ChooseModel("", "default", "fallback"))
	assert.Equal(t, "fallback", ChooseModel("", "", "fallback"))
}

// --- New ---

func TestNew(t *testing.T) {
	e, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, "hashing", e.Name())
	assert.Equal(t, DefaultHashingDimensions, e.Dimensions())

	_, err = New(Config{Provider: ProviderOpenAI})
	assert.Error(t, err)

	e, err = New(Config{Provider: ProviderOpenAI, APIKey: "k", Dimensions: 64})
	require.NoError(t, err)
	assert.Equal(t, "openai-embedding", e.Name())
	assert.Equal(t, 64, e.Dimensions())

	_, err = New(Config{Provider: "cohere"})
	assert.Error(t, err)
}

// --- HashingEmbedder ---

func TestHashingEmbedder_Deterministic(t *testing.T) {
	e := NewHashingEmbedder(64)
	a, err := e.Embed(context.Background(), "Parallel teams compete for the solution")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "parallel TEAMS compete, for the solution!")
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)

	var norm float64
	for _, v := range a {
		norm += v * v
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
}

func TestHashingEmbedder_EmptyText(t *testing.T) {
	e := NewHashingEmbedder(0)
	v, err := e.Embed(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, v, DefaultHashingDimensions)
	for _, x := range v {
		assert.Zero(t, x)
	}
}

func TestHashingEmbedder_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHashingEmbedder(8).Embed(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

// --- OpenAIProvider ---

func TestOpenAIProvider_EmbedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)
		assert.Equal(t, []string{"a", "b"}, req.Input)

		// 乱序返回，验证按 index 排序
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}],"model":"m"}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/", Dimensions: 2})
	vecs, err := EmbedAll(context.Background(), p, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0}, {0, 1}}, vecs)
}

func TestOpenAIProvider_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: srv.URL, Timeout: time.Second})
	_, err := p.Embed(context.Background(), "a")
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrUpstreamError))
	assert.True(t, types.IsRetryable(err))
}

func TestMapHTTPError(t *testing.T) {
	e := mapHTTPError(http.StatusBadRequest, "bad", "p")
	assert.Equal(t, types.ErrInvalidRequest, e.Code)
	assert.False(t, e.Retryable)

	e = mapHTTPError(http.StatusBadGateway, "down", "p")
	assert.Equal(t, types.ErrUpstreamError, e.Code)
	assert.True(t, e.Retryable)
}

// --- EmbedAll ---

func TestEmbedAll_Empty(t *testing.T) {
	out, err := EmbedAll(context.Background(), NewHashingEmbedder(4), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

// --- CachedEmbedder ---

type countingEmbedder struct {
	*HashingEmbedder
	calls atomic.Int32
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	c.calls.Add(1)
	return c.HashingEmbedder.Embed(ctx, text)
}

func TestCachedEmbedder(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := cache.DefaultConfig()
	cfg.Addr = mr.Addr()
	cfg.KeyPrefix = "test:"
	cfg.HealthCheckInterval = 0
	mgr, err := cache.NewManager(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer mgr.Close()

	inner := &countingEmbedder{HashingEmbedder: NewHashingEmbedder(16)}
	c := NewCachedEmbedder(inner, mgr, time.Minute, zaptest.NewLogger(t))
	assert.Equal(t, "hashing", c.Name())
	assert.Equal(t, 16, c.Dimensions())

	first, err := c.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	second, err := c.Embed(context.Background(), "hello world")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Len(t, mr.Keys(), 1)
}
