// Package vectorstore provides typed operations over a remote vector
// collection. The primary implementation speaks the Qdrant REST API; an
// in-memory implementation backs tests.
package vectorstore

import (
	"context"

	"github.com/google/uuid"
)

// Distance metrics supported at collection creation.
const (
	DistanceCosine    = "Cosine"
	DistanceDot       = "Dot"
	DistanceEuclidean = "Euclid"
)

// Payload is the stored payload of a point. Data points carry the file
// fields; the reserved metadata point carries the collection binding fields.
type Payload struct {
	FilePath       string `json:"file_path,omitempty"`
	ParentFileHash string `json:"parent_file_hash,omitempty"`
	ChunkHash      string `json:"chunk_hash,omitempty"`
	Text           string `json:"text,omitempty"`

	// Metadata point fields
	CollectionMetadata bool   `json:"_collection_metadata,omitempty"`
	EmbeddingModel     string `json:"embedding_model,omitempty"`
	VectorSize         int    `json:"vector_size,omitempty"`
	Distance           string `json:"distance,omitempty"`
}

// Point is a stored {id, vector, payload} record.
type Point struct {
	ID      uuid.UUID `json:"id"`
	Vector  []float32 `json:"vector,omitempty"`
	Payload Payload   `json:"payload"`
}

// ScrollRequest selects a page of points.
type ScrollRequest struct {
	// Filter restricts the scroll; nil scans the whole collection.
	Filter *Filter
	// Limit is the page size.
	Limit int
	// Offset is the cursor from the previous page; nil starts from the top.
	Offset *uuid.UUID
	// PayloadFields limits returned payload fields; empty returns all.
	PayloadFields []string
	// WithVectors includes vectors in the result. Scans used by the sync
	// never set this; vectors are large and the diff does not need them.
	WithVectors bool
}

// Filter is a conjunction of field conditions.
type Filter struct {
	Must []FieldCondition `json:"must,omitempty"`
}

// FieldCondition matches a payload field against a value or a set of values.
type FieldCondition struct {
	Key   string `json:"key"`
	Match Match  `json:"match"`
}

// Match holds either a single value or a set of accepted values.
type Match struct {
	Value any      `json:"value,omitempty"`
	Any   []string `json:"any,omitempty"`
}

// FilePathIs filters points belonging to one logical path.
func FilePathIs(path string) *Filter {
	return &Filter{Must: []FieldCondition{{Key: "file_path", Match: Match{Value: path}}}}
}

// FilePathIn filters points belonging to any of the given logical paths.
func FilePathIn(paths []string) *Filter {
	return &Filter{Must: []FieldCondition{{Key: "file_path", Match: Match{Any: paths}}}}
}

// CollectionInfo describes one collection.
type CollectionInfo struct {
	Name        string
	PointsCount int
}

// Store is the contract the sync engine needs from a vector database.
// Implementations must be safe for concurrent read-only scrolls; writes are
// serialised by the caller.
type Store interface {
	// CreateCollection creates a collection. Fails if it exists.
	CreateCollection(ctx context.Context, name string, dim int, distance string) error

	// DeleteCollection removes a collection. Fails if absent.
	DeleteCollection(ctx context.Context, name string) error

	// Exists reports whether the collection exists.
	Exists(ctx context.Context, name string) (bool, error)

	// ListCollections returns all collection names.
	ListCollections(ctx context.Context) ([]string, error)

	// Upsert writes points by id, replacing existing ones. Atomic per batch.
	Upsert(ctx context.Context, name string, points []Point) error

	// DeletePoints removes points by id. Idempotent.
	DeletePoints(ctx context.Context, name string, ids []uuid.UUID) error

	// Retrieve fetches points by id. Used only for the metadata point.
	Retrieve(ctx context.Context, name string, ids []uuid.UUID) ([]Point, error)

	// Scroll returns one page of points plus the cursor for the next page.
	// A nil next cursor ends the iteration.
	Scroll(ctx context.Context, name string, req ScrollRequest) ([]Point, *uuid.UUID, error)

	// Count returns the number of points in the collection.
	Count(ctx context.Context, name string) (int, error)
}

// ScrollAll pages through a scroll until exhausted, invoking fn per page.
func ScrollAll(ctx context.Context, s Store, name string, req ScrollRequest, fn func([]Point) error) error {
	for {
		points, next, err := s.Scroll(ctx, name, req)
		if err != nil {
			return err
		}
		if len(points) > 0 {
			if err := fn(points); err != nil {
				return err
			}
		}
		if next == nil {
			return nil
		}
		req.Offset = next
	}
}
