package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ragsync/ragsync/internal/errors"
)

// MemoryStore is an in-memory Store implementation. It backs tests and
// mirrors Qdrant semantics closely enough that the sync engine cannot tell
// them apart: by-id upsert, idempotent delete, filtered scroll with cursor
// paging.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection

	// UpsertCalls and DeleteCalls count write operations, letting tests
	// assert that unchanged syncs issue no writes.
	UpsertCalls int
	DeleteCalls int
}

type memoryCollection struct {
	dim      int
	distance string
	points   map[uuid.UUID]Point
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

// CreateCollection creates a collection. Fails if it exists.
func (s *MemoryStore) CreateCollection(_ context.Context, name string, dim int, distance string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[name]; ok {
		return errors.New(errors.ErrCodeCollectionExists,
			fmt.Sprintf("collection %q already exists", name), nil)
	}
	s.collections[name] = &memoryCollection{
		dim:      dim,
		distance: distance,
		points:   make(map[uuid.UUID]Point),
	}
	return nil
}

// DeleteCollection removes a collection. Fails if absent.
func (s *MemoryStore) DeleteCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[name]; !ok {
		return errors.CollectionNotFound(name)
	}
	delete(s.collections, name)
	return nil
}

// Exists reports whether the collection exists.
func (s *MemoryStore) Exists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.collections[name]
	return ok, nil
}

// ListCollections returns all collection names, sorted.
func (s *MemoryStore) ListCollections(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Upsert writes points by id, replacing existing ones.
func (s *MemoryStore) Upsert(_ context.Context, name string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[name]
	if !ok {
		return errors.CollectionNotFound(name)
	}

	s.UpsertCalls++
	for _, p := range points {
		col.points[p.ID] = p
	}
	return nil
}

// DeletePoints removes points by id. Idempotent.
func (s *MemoryStore) DeletePoints(_ context.Context, name string, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[name]
	if !ok {
		return errors.CollectionNotFound(name)
	}

	s.DeleteCalls++
	for _, id := range ids {
		delete(col.points, id)
	}
	return nil
}

// Retrieve fetches points by id. Missing ids are silently omitted.
func (s *MemoryStore) Retrieve(_ context.Context, name string, ids []uuid.UUID) ([]Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[name]
	if !ok {
		return nil, errors.CollectionNotFound(name)
	}

	var out []Point
	for _, id := range ids {
		if p, ok := col.points[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Scroll returns one page of points in id order plus the next cursor.
func (s *MemoryStore) Scroll(_ context.Context, name string, req ScrollRequest) ([]Point, *uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[name]
	if !ok {
		return nil, nil, errors.CollectionNotFound(name)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 250
	}

	ids := make([]uuid.UUID, 0, len(col.points))
	for id := range col.points {
		if matchesFilter(col.points[id], req.Filter) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	start := 0
	if req.Offset != nil {
		for i, id := range ids {
			if id.String() >= req.Offset.String() {
				start = i
				break
			}
			start = i + 1
		}
	}

	end := start + limit
	if end > len(ids) {
		end = len(ids)
	}

	page := make([]Point, 0, end-start)
	for _, id := range ids[start:end] {
		page = append(page, project(col.points[id], req))
	}

	var next *uuid.UUID
	if end < len(ids) {
		cursor := ids[end]
		next = &cursor
	}
	return page, next, nil
}

// Count returns the number of points in the collection.
func (s *MemoryStore) Count(_ context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[name]
	if !ok {
		return 0, errors.CollectionNotFound(name)
	}
	return len(col.points), nil
}

// Points returns a snapshot of all points in a collection, for assertions.
func (s *MemoryStore) Points(name string) []Point {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[name]
	if !ok {
		return nil
	}

	out := make([]Point, 0, len(col.points))
	for _, p := range col.points {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

func matchesFilter(p Point, f *Filter) bool {
	if f == nil {
		return true
	}
	for _, cond := range f.Must {
		if !matchesCondition(p, cond) {
			return false
		}
	}
	return true
}

func matchesCondition(p Point, cond FieldCondition) bool {
	var field any
	switch cond.Key {
	case "file_path":
		field = p.Payload.FilePath
	case "parent_file_hash":
		field = p.Payload.ParentFileHash
	case "_collection_metadata":
		field = p.Payload.CollectionMetadata
	default:
		return false
	}

	if len(cond.Match.Any) > 0 {
		str, ok := field.(string)
		if !ok {
			return false
		}
		for _, v := range cond.Match.Any {
			if v == str {
				return true
			}
		}
		return false
	}
	return field == cond.Match.Value
}

func project(p Point, req ScrollRequest) Point {
	if !req.WithVectors {
		p.Vector = nil
	}
	if len(req.PayloadFields) == 0 {
		return p
	}

	var out Payload
	for _, f := range req.PayloadFields {
		switch f {
		case "file_path":
			out.FilePath = p.Payload.FilePath
		case "parent_file_hash":
			out.ParentFileHash = p.Payload.ParentFileHash
		case "chunk_hash":
			out.ChunkHash = p.Payload.ChunkHash
		case "text":
			out.Text = p.Payload.Text
		case "_collection_metadata":
			out.CollectionMetadata = p.Payload.CollectionMetadata
		case "embedding_model":
			out.EmbeddingModel = p.Payload.EmbeddingModel
		}
	}
	p.Payload = out
	return p
}
