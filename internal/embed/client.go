package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ragsync/ragsync/internal/errors"
)

// HTTPClient is an OpenAI-compatible embeddings client.
// It is safe for concurrent use; the underlying transport pools connections.
type HTTPClient struct {
	model    string
	endpoint string
	token    string
	dims     int
	client   *http.Client
	retry    errors.RetryConfig
}

// Option customizes an HTTPClient.
type Option func(*HTTPClient)

// WithEndpoint overrides the provider endpoint (mainly for tests).
func WithEndpoint(url string) Option {
	return func(c *HTTPClient) { c.endpoint = url }
}

// WithRetryConfig overrides the retry policy.
func WithRetryConfig(cfg errors.RetryConfig) Option {
	return func(c *HTTPClient) { c.retry = cfg }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.client.Timeout = d }
}

// NewClient creates a client for the given model, routed to its provider.
func NewClient(model, token string, opts ...Option) (*HTTPClient, error) {
	if model == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "embedding model must not be empty", nil)
	}
	if token == "" {
		return nil, errors.New(errors.ErrCodeCredentialMissing,
			"no API token for embedding provider", nil).
			WithSuggestion("set EMBEDDING_API_TOKEN or embedding.api_token in the config")
	}

	dims, _ := DimensionsFor(model)
	c := &HTTPClient{
		model:    model,
		endpoint: EndpointFor(model),
		token:    token,
		dims:     dims,
		retry:    errors.DefaultRetryConfig(),
		client: &http.Client{
			Timeout: DefaultRequestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Model returns the model identifier.
func (c *HTTPClient) Model() string { return c.model }

// Dimensions returns the embedding dimension, or 0 if unknown.
func (c *HTTPClient) Dimensions() int { return c.dims }

// Endpoint returns the URL requests are sent to.
func (c *HTTPClient) Endpoint() string { return c.endpoint }

// Close releases idle connections.
func (c *HTTPClient) Close() {
	if t, ok := c.client.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedBatch embeds texts in one provider call, retrying transient failures.
// The result is in input order and has the same length as the input.
func (c *HTTPClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	return errors.RetryWithResult(ctx, c.retry, func() ([][]float32, error) {
		return c.doEmbed(ctx, texts)
	})
}

func (c *HTTPClient) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.New(errors.ErrCodeNetworkUnavailable,
			fmt.Sprintf("embedding request failed: %v", err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, c.classifyStatus(resp.StatusCode, string(msg))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.New(errors.ErrCodeEmbedFailed, "malformed embedding response", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, errors.New(errors.ErrCodeEmbedFailed,
			fmt.Sprintf("embedding count mismatch: sent %d texts, got %d vectors",
				len(texts), len(parsed.Data)), nil)
	}

	// Providers may return rows out of order; the index field is
	// authoritative.
	vectors := make([][]float32, len(texts))
	for _, row := range parsed.Data {
		if row.Index < 0 || row.Index >= len(vectors) {
			return nil, errors.New(errors.ErrCodeEmbedFailed,
				fmt.Sprintf("embedding index %d out of range", row.Index), nil)
		}
		vectors[row.Index] = row.Embedding
	}
	return vectors, nil
}

// classifyStatus maps HTTP statuses onto the error taxonomy. Auth and
// model-not-found are terminal; everything else is retried.
func (c *HTTPClient) classifyStatus(status int, body string) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.AuthError(fmt.Sprintf("embedding provider rejected credentials (HTTP %d)", status), nil)
	case http.StatusNotFound:
		return errors.ModelNotFound(c.model, nil)
	default:
		slog.Debug("embedding request failed",
			slog.Int("status", status),
			slog.String("model", c.model))
		return errors.New(errors.ErrCodeEmbedFailed,
			fmt.Sprintf("embedding request returned HTTP %d: %s", status, truncate(body, 200)), nil)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
