// Package collection manages vector collection lifecycle and the reserved
// metadata point that binds a collection to its embedding model.
package collection

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ragsync/ragsync/internal/embed"
	"github.com/ragsync/ragsync/internal/errors"
	"github.com/ragsync/ragsync/internal/fingerprint"
	"github.com/ragsync/ragsync/internal/vectorstore"
)

// Manager wraps a vector store with collection-level operations.
type Manager struct {
	store vectorstore.Store
}

// NewManager creates a collection manager over the given store.
func NewManager(store vectorstore.Store) *Manager {
	return &Manager{store: store}
}

// Info describes one collection.
type Info struct {
	Name string
	// DataPoints excludes the metadata point.
	DataPoints int
	// Model is the bound embedding model, empty if unbound.
	Model      string
	VectorSize int
	Distance   string
}

// Create creates a collection and binds it to an embedding model by
// upserting the reserved metadata point. Both steps must succeed; if the
// metadata upsert fails the collection is deleted so no ambiguous half-state
// remains.
//
// dim may be zero for models with a known dimension; unknown models must be
// explicitly dimensioned.
func (m *Manager) Create(ctx context.Context, name, model string, dim int, distance string) error {
	if distance == "" {
		distance = vectorstore.DistanceCosine
	}
	if dim == 0 {
		known, ok := embed.DimensionsFor(model)
		if !ok {
			return errors.New(errors.ErrCodeInvalidInput,
				fmt.Sprintf("unknown embedding model %q", model), nil).
				WithSuggestion("pass the vector dimension explicitly")
		}
		dim = known
	}

	if err := m.store.CreateCollection(ctx, name, dim, distance); err != nil {
		return err
	}

	meta := vectorstore.Point{
		ID:     fingerprint.MetadataPointID,
		Vector: make([]float32, dim),
		Payload: vectorstore.Payload{
			CollectionMetadata: true,
			EmbeddingModel:     model,
			VectorSize:         dim,
			Distance:           distance,
		},
	}
	if err := m.store.Upsert(ctx, name, []vectorstore.Point{meta}); err != nil {
		// Without its metadata point the collection would look unbound;
		// roll back the creation.
		if delErr := m.store.DeleteCollection(ctx, name); delErr != nil {
			slog.Error("failed to roll back collection after metadata upsert failure",
				slog.String("collection", name),
				slog.String("error", delErr.Error()))
		}
		return fmt.Errorf("failed to write collection metadata: %w", err)
	}

	slog.Info("collection created",
		slog.String("collection", name),
		slog.String("model", model),
		slog.Int("dim", dim),
		slog.String("distance", distance))
	return nil
}

// Delete removes a collection.
func (m *Manager) Delete(ctx context.Context, name string) error {
	return m.store.DeleteCollection(ctx, name)
}

// List returns the names of all collections.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.ListCollections(ctx)
}

// GetInfo returns the point count and model binding of a collection.
func (m *Manager) GetInfo(ctx context.Context, name string) (*Info, error) {
	exists, err := m.store.Exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.CollectionNotFound(name)
	}

	count, err := m.store.Count(ctx, name)
	if err != nil {
		return nil, err
	}

	info := &Info{Name: name, DataPoints: count}

	meta, err := m.metadataPoint(ctx, name)
	if err != nil {
		return nil, err
	}
	if meta != nil {
		info.Model = meta.Payload.EmbeddingModel
		info.VectorSize = meta.Payload.VectorSize
		info.Distance = meta.Payload.Distance
		info.DataPoints = count - 1
	}
	return info, nil
}

// EmbeddingModel returns the model bound to the collection, or empty if the
// collection has no metadata point (legal but unbound).
func (m *Manager) EmbeddingModel(ctx context.Context, name string) (string, error) {
	meta, err := m.metadataPoint(ctx, name)
	if err != nil {
		return "", err
	}
	if meta == nil {
		return "", nil
	}
	return meta.Payload.EmbeddingModel, nil
}

// ResolveModel decides which embedding model a sync uses. The bound model is
// authoritative: a disagreeing request is coerced with a warning, which
// prevents silent dimension mismatches. For unbound collections the
// requested model is used, also with a warning.
func (m *Manager) ResolveModel(ctx context.Context, name, requested string) (string, error) {
	bound, err := m.EmbeddingModel(ctx, name)
	if err != nil {
		return "", err
	}

	switch {
	case bound == "":
		slog.Warn("collection has no model binding, using requested model",
			slog.String("collection", name),
			slog.String("model", requested))
		return requested, nil
	case requested != "" && requested != bound:
		slog.Warn("requested model differs from collection binding, using bound model",
			slog.String("collection", name),
			slog.String("requested", requested),
			slog.String("bound", bound))
		return bound, nil
	default:
		return bound, nil
	}
}

func (m *Manager) metadataPoint(ctx context.Context, name string) (*vectorstore.Point, error) {
	points, err := m.store.Retrieve(ctx, name, []uuid.UUID{fingerprint.MetadataPointID})
	if err != nil {
		return nil, err
	}
	for i := range points {
		if points[i].Payload.CollectionMetadata {
			return &points[i], nil
		}
	}
	return nil, nil
}
