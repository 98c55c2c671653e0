package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/ragsync/ragsync/internal/errors"
)

// DefaultTimeout bounds a single store call. Large upserts are legitimately
// slow, so this is generous.
const DefaultTimeout = 300 * time.Second

// QdrantStore implements Store over the Qdrant REST API.
type QdrantStore struct {
	baseURL string
	apiKey  string
	client  *http.Client
	retry   errors.RetryConfig
}

// QdrantOption customizes a QdrantStore.
type QdrantOption func(*QdrantStore)

// WithAPIKey sends the api-key header on every request.
func WithAPIKey(key string) QdrantOption {
	return func(s *QdrantStore) { s.apiKey = key }
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) QdrantOption {
	return func(s *QdrantStore) { s.client.Timeout = d }
}

// WithRetryConfig overrides the retry policy for upserts.
func WithRetryConfig(cfg errors.RetryConfig) QdrantOption {
	return func(s *QdrantStore) { s.retry = cfg }
}

// NewQdrantStore creates a store client for the given base URL
// (e.g. "http://localhost:6333").
func NewQdrantStore(baseURL string, opts ...QdrantOption) *QdrantStore {
	s := &QdrantStore{
		baseURL: baseURL,
		retry:   errors.DefaultRetryConfig(),
		client: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// envelope is the standard Qdrant response wrapper.
type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
}

func (s *QdrantStore) do(ctx context.Context, method, path string, body any, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.New(errors.ErrCodeNetworkUnavailable,
			fmt.Sprintf("vector store request failed: %v", err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return statusError(resp.StatusCode, string(msg))
	}

	if result != nil {
		var env envelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return errors.New(errors.ErrCodeInternal, "malformed vector store response", err)
		}
		if err := json.Unmarshal(env.Result, result); err != nil {
			return errors.New(errors.ErrCodeInternal, "malformed vector store result", err)
		}
	}
	return nil
}

func statusError(status int, body string) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.AuthError(fmt.Sprintf("vector store rejected credentials (HTTP %d)", status), nil)
	case http.StatusNotFound:
		return errors.New(errors.ErrCodeCollectionNotFound,
			"collection or resource not found", nil)
	case http.StatusConflict:
		return errors.New(errors.ErrCodeCollectionExists, "collection already exists", nil)
	default:
		return errors.New(errors.ErrCodeNetworkUnavailable,
			fmt.Sprintf("vector store returned HTTP %d: %s", status, body), nil)
	}
}

// CreateCollection creates a collection. Fails if it exists.
func (s *QdrantStore) CreateCollection(ctx context.Context, name string, dim int, distance string) error {
	exists, err := s.Exists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return errors.New(errors.ErrCodeCollectionExists,
			fmt.Sprintf("collection %q already exists", name), nil)
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": distance,
		},
	}
	return s.do(ctx, http.MethodPut, "/collections/"+url.PathEscape(name), body, nil)
}

// DeleteCollection removes a collection. Fails if absent.
func (s *QdrantStore) DeleteCollection(ctx context.Context, name string) error {
	exists, err := s.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return errors.CollectionNotFound(name)
	}
	return s.do(ctx, http.MethodDelete, "/collections/"+url.PathEscape(name), nil, nil)
}

// Exists reports whether the collection exists.
func (s *QdrantStore) Exists(ctx context.Context, name string) (bool, error) {
	err := s.do(ctx, http.MethodGet, "/collections/"+url.PathEscape(name), nil, &json.RawMessage{})
	if err == nil {
		return true, nil
	}
	if errors.GetCode(err) == errors.ErrCodeCollectionNotFound {
		return false, nil
	}
	return false, err
}

// ListCollections returns all collection names.
func (s *QdrantStore) ListCollections(ctx context.Context) ([]string, error) {
	var result struct {
		Collections []struct {
			Name string `json:"name"`
		} `json:"collections"`
	}
	if err := s.do(ctx, http.MethodGet, "/collections", nil, &result); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(result.Collections))
	for _, c := range result.Collections {
		names = append(names, c.Name)
	}
	return names, nil
}

// Upsert writes points by id, replacing existing ones. The whole batch is
// retried on transient failures; ids are content-derived, so replays are
// safe.
func (s *QdrantStore) Upsert(ctx context.Context, name string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	body := map[string]any{"points": points}
	path := "/collections/" + url.PathEscape(name) + "/points?wait=true"

	return errors.Retry(ctx, s.retry, func() error {
		err := s.do(ctx, http.MethodPut, path, body, nil)
		if err != nil && errors.GetCode(err) == errors.ErrCodeNetworkUnavailable {
			return errors.New(errors.ErrCodeUpsertFailed, err.Error(), err)
		}
		return err
	})
}

// DeletePoints removes points by id. Idempotent.
func (s *QdrantStore) DeletePoints(ctx context.Context, name string, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	body := map[string]any{"points": ids}
	return s.do(ctx, http.MethodPost,
		"/collections/"+url.PathEscape(name)+"/points/delete?wait=true", body, nil)
}

// Retrieve fetches points by id.
func (s *QdrantStore) Retrieve(ctx context.Context, name string, ids []uuid.UUID) ([]Point, error) {
	body := map[string]any{
		"ids":          ids,
		"with_payload": true,
		"with_vector":  false,
	}

	var points []Point
	err := s.do(ctx, http.MethodPost,
		"/collections/"+url.PathEscape(name)+"/points", body, &points)
	if err != nil {
		return nil, err
	}
	return points, nil
}

// scrollResult is the Qdrant scroll result shape.
type scrollResult struct {
	Points         []Point    `json:"points"`
	NextPageOffset *uuid.UUID `json:"next_page_offset"`
}

// Scroll returns one page of points plus the cursor for the next page.
func (s *QdrantStore) Scroll(ctx context.Context, name string, req ScrollRequest) ([]Point, *uuid.UUID, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 250
	}

	body := map[string]any{
		"limit":       limit,
		"with_vector": req.WithVectors,
	}
	if len(req.PayloadFields) > 0 {
		body["with_payload"] = map[string]any{"include": req.PayloadFields}
	} else {
		body["with_payload"] = true
	}
	if req.Filter != nil {
		body["filter"] = req.Filter
	}
	if req.Offset != nil {
		body["offset"] = req.Offset
	}

	var result scrollResult
	err := s.do(ctx, http.MethodPost,
		"/collections/"+url.PathEscape(name)+"/points/scroll", body, &result)
	if err != nil {
		return nil, nil, err
	}
	return result.Points, result.NextPageOffset, nil
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context, name string) (int, error) {
	var result struct {
		Count int `json:"count"`
	}
	err := s.do(ctx, http.MethodPost,
		"/collections/"+url.PathEscape(name)+"/points/count",
		map[string]any{"exact": true}, &result)
	if err != nil {
		return 0, err
	}
	return result.Count, nil
}
