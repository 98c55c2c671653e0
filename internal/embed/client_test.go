package embed

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragsync/ragsync/internal/errors"
)

func fastRetry() errors.RetryConfig {
	return errors.RetryConfig{
		MaxRetries:   3,
		InitialDelay: 1 * time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

// fakeProvider builds an httptest server speaking the OpenAI embeddings
// format. handler may mutate the response or fail selected requests.
func fakeProvider(t *testing.T, handler func(w http.ResponseWriter, r *http.Request) bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler != nil && handler(w, r) {
			return
		}

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var resp embedResponse
		for i := range req.Input {
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: []float32{float32(i), 1.0}})
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestProviderFor(t *testing.T) {
	assert.Equal(t, ProviderDeepInfra, ProviderFor("BAAI/bge-large-en-v1.5"))
	assert.Equal(t, ProviderDeepInfra, ProviderFor("Qwen/Qwen3-Embedding-8B"))
	assert.Equal(t, ProviderOpenAI, ProviderFor("text-embedding-3-small"))
}

func TestEndpointFor(t *testing.T) {
	assert.Equal(t, DeepInfraEndpoint, EndpointFor("BAAI/bge-small-en-v1.5"))
	assert.Equal(t, OpenAIEndpoint, EndpointFor("text-embedding-ada-002"))
}

func TestDimensionsFor(t *testing.T) {
	dim, ok := DimensionsFor("text-embedding-3-small")
	assert.True(t, ok)
	assert.Equal(t, 1536, dim)

	dim, ok = DimensionsFor("Qwen/Qwen3-Embedding-8B")
	assert.True(t, ok)
	assert.Equal(t, 4096, dim)

	_, ok = DimensionsFor("some/unknown-model")
	assert.False(t, ok)
}

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := NewClient("text-embedding-3-small", "")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeCredentialMissing, errors.GetCode(err))
}

func TestEmbedBatch_OrderAndLength(t *testing.T) {
	srv := fakeProvider(t, nil)
	defer srv.Close()

	c, err := NewClient("text-embedding-3-small", "tok", WithEndpoint(srv.URL))
	require.NoError(t, err)

	vectors, err := c.EmbedBatch(context.Background(), []string{"a", "b", "c"})

	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{0, 1}, vectors[0])
	assert.Equal(t, []float32{2, 1}, vectors[2])
}

func TestEmbedBatch_SendsAuthAndModel(t *testing.T) {
	var gotAuth, gotModel string
	srv := fakeProvider(t, func(w http.ResponseWriter, r *http.Request) bool {
		gotAuth = r.Header.Get("Authorization")
		var req embedRequest
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)
		gotModel = req.Model

		var resp embedResponse
		for i := range req.Input {
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: []float32{1}})
		}
		_ = json.NewEncoder(w).Encode(resp)
		return true
	})
	defer srv.Close()

	c, err := NewClient("BAAI/bge-large-en-v1.5", "secret-token", WithEndpoint(srv.URL))
	require.NoError(t, err)

	_, err = c.EmbedBatch(context.Background(), []string{"x"})

	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "BAAI/bge-large-en-v1.5", gotModel)
}

func TestEmbedBatch_RetriesTransientFailures(t *testing.T) {
	// Given: a provider that fails the first two calls with 500
	calls := 0
	srv := fakeProvider(t, func(w http.ResponseWriter, r *http.Request) bool {
		calls++
		if calls <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return true
		}
		return false
	})
	defer srv.Close()

	c, err := NewClient("text-embedding-3-small", "tok",
		WithEndpoint(srv.URL), WithRetryConfig(fastRetry()))
	require.NoError(t, err)

	vectors, err := c.EmbedBatch(context.Background(), []string{"a"})

	require.NoError(t, err)
	assert.Len(t, vectors, 1)
	assert.Equal(t, 3, calls)
}

func TestEmbedBatch_PersistentFailureSurfaces(t *testing.T) {
	calls := 0
	srv := fakeProvider(t, func(w http.ResponseWriter, r *http.Request) bool {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
		return true
	})
	defer srv.Close()

	c, err := NewClient("text-embedding-3-small", "tok",
		WithEndpoint(srv.URL), WithRetryConfig(fastRetry()))
	require.NoError(t, err)

	_, err = c.EmbedBatch(context.Background(), []string{"a"})

	require.Error(t, err)
	assert.Equal(t, 4, calls) // initial + 3 retries
}

func TestEmbedBatch_AuthFailureIsTerminal(t *testing.T) {
	calls := 0
	srv := fakeProvider(t, func(w http.ResponseWriter, r *http.Request) bool {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		return true
	})
	defer srv.Close()

	c, err := NewClient("text-embedding-3-small", "tok",
		WithEndpoint(srv.URL), WithRetryConfig(fastRetry()))
	require.NoError(t, err)

	_, err = c.EmbedBatch(context.Background(), []string{"a"})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, errors.ErrCodeAuthFailed, errors.GetCode(err))
}

func TestEmbedBatch_ModelNotFoundIsTerminal(t *testing.T) {
	srv := fakeProvider(t, func(w http.ResponseWriter, r *http.Request) bool {
		w.WriteHeader(http.StatusNotFound)
		return true
	})
	defer srv.Close()

	c, err := NewClient("no/such-model", "tok",
		WithEndpoint(srv.URL), WithRetryConfig(fastRetry()))
	require.NoError(t, err)

	_, err = c.EmbedBatch(context.Background(), []string{"a"})

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeModelNotFound, errors.GetCode(err))
}

func TestEmbedBatch_CountMismatchFails(t *testing.T) {
	srv := fakeProvider(t, func(w http.ResponseWriter, r *http.Request) bool {
		_ = json.NewEncoder(w).Encode(embedResponse{})
		return true
	})
	defer srv.Close()

	c, err := NewClient("text-embedding-3-small", "tok",
		WithEndpoint(srv.URL), WithRetryConfig(fastRetry()))
	require.NoError(t, err)

	_, err = c.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	c, err := NewClient("text-embedding-3-small", "tok")
	require.NoError(t, err)

	vectors, err := c.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestPool_ReusesClientPerCredential(t *testing.T) {
	p := NewPool()
	defer p.Close()

	a, err := p.Get("text-embedding-3-small", "token-aaaaaaaa")
	require.NoError(t, err)
	b, err := p.Get("text-embedding-3-small", "token-aaaaaaaa")
	require.NoError(t, err)
	c, err := p.Get("text-embedding-3-small", "different-token")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}
